package dashboard

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/raci-tracker/backend/internal/middleware"
	"github.com/raci-tracker/backend/pkg/response"
)

// Handler serves the role dashboards.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates a dashboard handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

func serve[T any](c *gin.Context, load func(*gin.Context) (T, error)) {
	out, err := load(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, out)
}

// WebsiteAdmin handles GET /api/dashboard/website-admin.
func (h *Handler) WebsiteAdmin(c *gin.Context) {
	serve(c, func(c *gin.Context) (*WebsiteAdmin, error) {
		return h.svc.WebsiteAdmin(c.Request.Context(), middleware.Principal(c))
	})
}

// CompanyAdmin handles GET /api/dashboard/company-admin.
func (h *Handler) CompanyAdmin(c *gin.Context) {
	serve(c, func(c *gin.Context) (*CompanyAdmin, error) {
		return h.svc.CompanyAdmin(c.Request.Context(), middleware.Principal(c))
	})
}

// HOD handles GET /api/dashboard/hod.
func (h *Handler) HOD(c *gin.Context) {
	serve(c, func(c *gin.Context) (*HOD, error) {
		return h.svc.HOD(c.Request.Context(), middleware.Principal(c))
	})
}

// User handles GET /api/dashboard/user.
func (h *Handler) User(c *gin.Context) {
	serve(c, func(c *gin.Context) (*User, error) {
		return h.svc.User(c.Request.Context(), middleware.Principal(c))
	})
}
