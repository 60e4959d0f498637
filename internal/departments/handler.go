package departments

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/raci-tracker/backend/internal/middleware"
	"github.com/raci-tracker/backend/pkg/pagination"
	"github.com/raci-tracker/backend/pkg/response"
)

// Handler handles department endpoints.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates a departments handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

func paramID(c *gin.Context, what string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid "+what+" id")
		return uuid.Nil, false
	}
	return id, true
}

// List handles GET /api/companies/:id/departments.
func (h *Handler) List(c *gin.Context) {
	companyID, ok := paramID(c, "company")
	if !ok {
		return
	}
	list, meta, err := h.svc.List(c.Request.Context(), middleware.Principal(c), companyID, c.Query("search"), pagination.FromQuery(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Paginated(c, list, meta)
}

// Create handles POST /api/companies/:id/departments.
func (h *Handler) Create(c *gin.Context) {
	companyID, ok := paramID(c, "company")
	if !ok {
		return
	}
	var in CreateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	d, err := h.svc.Create(c.Request.Context(), middleware.Principal(c), companyID, in)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, d)
}

// Get handles GET /api/departments/:id.
func (h *Handler) Get(c *gin.Context) {
	id, ok := paramID(c, "department")
	if !ok {
		return
	}
	d, err := h.svc.Get(c.Request.Context(), middleware.Principal(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, d)
}

// Update handles PUT /api/departments/:id.
func (h *Handler) Update(c *gin.Context) {
	id, ok := paramID(c, "department")
	if !ok {
		return
	}
	var in UpdateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	d, err := h.svc.Update(c.Request.Context(), middleware.Principal(c), id, in)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, d)
}

// Delete handles DELETE /api/departments/:id.
func (h *Handler) Delete(c *gin.Context) {
	id, ok := paramID(c, "department")
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), middleware.Principal(c), id); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, "department deleted successfully")
}
