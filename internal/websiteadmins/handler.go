package websiteadmins

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/raci-tracker/backend/internal/middleware"
	"github.com/raci-tracker/backend/pkg/pagination"
	"github.com/raci-tracker/backend/pkg/response"
)

// Handler handles website admin endpoints. Login is served by the auth handler.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates a website admins handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

func adminID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid website admin id")
		return uuid.Nil, false
	}
	return id, true
}

// List handles GET /api/website-admins.
func (h *Handler) List(c *gin.Context) {
	list, meta, err := h.svc.List(c.Request.Context(), middleware.Principal(c), c.Query("search"), pagination.FromQuery(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Paginated(c, list, meta)
}

// Get handles GET /api/website-admins/:id.
func (h *Handler) Get(c *gin.Context) {
	id, ok := adminID(c)
	if !ok {
		return
	}
	a, err := h.svc.Get(c.Request.Context(), middleware.Principal(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, a)
}

// Create handles POST /api/website-admins.
func (h *Handler) Create(c *gin.Context) {
	var in CreateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	a, err := h.svc.Create(c.Request.Context(), middleware.Principal(c), in)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, a)
}

// Update handles PUT /api/website-admins/:id.
func (h *Handler) Update(c *gin.Context) {
	id, ok := adminID(c)
	if !ok {
		return
	}
	var in UpdateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	a, err := h.svc.Update(c.Request.Context(), middleware.Principal(c), id, in)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, a)
}

// Delete handles DELETE /api/website-admins/:id.
func (h *Handler) Delete(c *gin.Context) {
	id, ok := adminID(c)
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), middleware.Principal(c), id); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, "website admin deleted successfully")
}
