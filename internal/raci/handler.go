package raci

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/raci-tracker/backend/internal/middleware"
	"github.com/raci-tracker/backend/pkg/pagination"
	"github.com/raci-tracker/backend/pkg/response"
)

// ReplaceMatrixRequest is the body for PUT /api/raci-matrices/event/:eventId.
type ReplaceMatrixRequest struct {
	Matrix []AssignmentInput `json:"matrix" binding:"dive"`
}

// DecisionRequest is the body for approve and reject.
type DecisionRequest struct {
	Reason string `json:"reason" binding:"max=2000"`
}

// Handler handles RACI matrix, tracker listing and approval endpoints.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates a raci handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

func paramID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		response.BadRequest(c, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

// Matrix handles GET /api/raci-matrices/event/:eventId.
func (h *Handler) Matrix(c *gin.Context) {
	eventID, ok := paramID(c, "eventId")
	if !ok {
		return
	}
	matrix, err := h.svc.Matrix(c.Request.Context(), middleware.Principal(c), eventID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, matrix)
}

// ReplaceMatrix handles PUT /api/raci-matrices/event/:eventId.
func (h *Handler) ReplaceMatrix(c *gin.Context) {
	eventID, ok := paramID(c, "eventId")
	if !ok {
		return
	}
	var req ReplaceMatrixRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	matrix, err := h.svc.ReplaceMatrix(c.Request.Context(), middleware.Principal(c), eventID, req.Matrix)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, matrix)
}

// ApprovalStatus handles GET /api/events/:id/approval-status.
func (h *Handler) ApprovalStatus(c *gin.Context) {
	eventID, ok := paramID(c, "id")
	if !ok {
		return
	}
	view, err := h.svc.ApprovalStatus(c.Request.Context(), middleware.Principal(c), eventID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, view)
}

// MyAssignments handles GET /api/raci-tracker/my-assignments.
func (h *Handler) MyAssignments(c *gin.Context) {
	page := pagination.FromQuery(c)
	list, meta, err := h.svc.MyAssignments(c.Request.Context(), middleware.Principal(c), page)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Paginated(c, list, meta)
}

// CompanyAssignments handles GET /api/raci-tracker/company.
func (h *Handler) CompanyAssignments(c *gin.Context) {
	page := pagination.FromQuery(c)
	list, meta, err := h.svc.CompanyAssignments(c.Request.Context(), middleware.Principal(c), page)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Paginated(c, list, meta)
}

// PendingApprovals handles GET /api/raci/approvals/pending.
func (h *Handler) PendingApprovals(c *gin.Context) {
	list, err := h.svc.PendingApprovals(c.Request.Context(), middleware.Principal(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, list)
}

// Approve handles POST /api/raci/approvals/:id/approve.
func (h *Handler) Approve(c *gin.Context) {
	h.decide(c, DecisionApprove)
}

// Reject handles POST /api/raci/approvals/:id/reject.
func (h *Handler) Reject(c *gin.Context) {
	h.decide(c, DecisionReject)
}

func (h *Handler) decide(c *gin.Context, d Decision) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req DecisionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, "invalid request: "+err.Error())
			return
		}
	}
	result, err := h.svc.Decide(c.Request.Context(), middleware.Principal(c), id, d, req.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, result)
}
