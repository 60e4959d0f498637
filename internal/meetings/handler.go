package meetings

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/raci-tracker/backend/internal/middleware"
	"github.com/raci-tracker/backend/pkg/response"
)

// Handler handles meeting endpoints.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates a meetings handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

func paramID(c *gin.Context, name, what string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		response.BadRequest(c, "invalid "+what+" id")
		return uuid.Nil, false
	}
	return id, true
}

// ListByEvent handles GET /api/meetings/event/:eventId.
func (h *Handler) ListByEvent(c *gin.Context) {
	eventID, ok := paramID(c, "eventId", "event")
	if !ok {
		return
	}
	list, err := h.svc.ListByEvent(c.Request.Context(), middleware.Principal(c), eventID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, list)
}

// Get handles GET /api/meetings/:id.
func (h *Handler) Get(c *gin.Context) {
	id, ok := paramID(c, "id", "meeting")
	if !ok {
		return
	}
	m, err := h.svc.Get(c.Request.Context(), middleware.Principal(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, m)
}

// Create handles POST /api/meetings.
func (h *Handler) Create(c *gin.Context) {
	var in CreateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	m, err := h.svc.Create(c.Request.Context(), middleware.Principal(c), in)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, m)
}

// Update handles PUT /api/meetings/:id.
func (h *Handler) Update(c *gin.Context) {
	id, ok := paramID(c, "id", "meeting")
	if !ok {
		return
	}
	var in UpdateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	m, err := h.svc.Update(c.Request.Context(), middleware.Principal(c), id, in)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, m)
}

// Delete handles DELETE /api/meetings/:id.
func (h *Handler) Delete(c *gin.Context) {
	id, ok := paramID(c, "id", "meeting")
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), middleware.Principal(c), id); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, "meeting deleted successfully")
}
