package users

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/raci-tracker/backend/internal/middleware"
	"github.com/raci-tracker/backend/internal/models"
	"github.com/raci-tracker/backend/pkg/pagination"
	"github.com/raci-tracker/backend/pkg/response"
)

// Handler handles user endpoints.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates a users handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

func userID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid user id")
		return uuid.Nil, false
	}
	return id, true
}

func optionalUUID(c *gin.Context, key string) (*uuid.UUID, bool) {
	v := c.Query(key)
	if v == "" {
		return nil, true
	}
	id, err := uuid.Parse(v)
	if err != nil {
		response.BadRequest(c, "invalid "+key)
		return nil, false
	}
	return &id, true
}

// List handles GET /api/users.
func (h *Handler) List(c *gin.Context) {
	q := ListQuery{Role: models.Role(c.Query("role")), Search: c.Query("search")}
	var ok bool
	if q.DepartmentID, ok = optionalUUID(c, "departmentId"); !ok {
		return
	}
	if q.CompanyID, ok = optionalUUID(c, "companyId"); !ok {
		return
	}
	list, meta, err := h.svc.List(c.Request.Context(), middleware.Principal(c), q, pagination.FromQuery(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Paginated(c, list, meta)
}

// Get handles GET /api/users/:id.
func (h *Handler) Get(c *gin.Context) {
	id, ok := userID(c)
	if !ok {
		return
	}
	u, err := h.svc.Get(c.Request.Context(), middleware.Principal(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, u)
}

// Create handles POST /api/users.
func (h *Handler) Create(c *gin.Context) {
	var in CreateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	u, err := h.svc.Create(c.Request.Context(), middleware.Principal(c), in)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, u)
}

// Update handles PUT /api/users/:id.
func (h *Handler) Update(c *gin.Context) {
	id, ok := userID(c)
	if !ok {
		return
	}
	var in UpdateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	u, err := h.svc.Update(c.Request.Context(), middleware.Principal(c), id, in)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, u)
}

// Delete handles DELETE /api/users/:id.
func (h *Handler) Delete(c *gin.Context) {
	id, ok := userID(c)
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), middleware.Principal(c), id); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, "user deleted successfully")
}
