package raci

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/raci-tracker/backend/internal/authz"
	"github.com/raci-tracker/backend/internal/models"
	"github.com/raci-tracker/backend/pkg/apperr"
	"github.com/raci-tracker/backend/pkg/cache"
	"github.com/raci-tracker/backend/pkg/pagination"
)

var errAlreadyDecided = apperr.Conflict("approval was already decided").WithCode(apperr.CodeAlreadyDecided)

// ApprovalInput is one level of the chain requested for an assignment.
type ApprovalInput struct {
	Level      int        `json:"level" binding:"required,min=1"`
	ApproverID *uuid.UUID `json:"approverId"`
}

// AssignmentInput is one row of a requested RACI matrix.
type AssignmentInput struct {
	Type              models.RaciType `json:"type" binding:"required,raci_type"`
	UserID            uuid.UUID       `json:"userId" binding:"required"`
	FinancialLimitMin *float64        `json:"financialLimitMin" binding:"omitempty,min=0"`
	FinancialLimitMax *float64        `json:"financialLimitMax" binding:"omitempty,min=0"`
	Approvals         []ApprovalInput `json:"approvals" binding:"omitempty,dive"`
}

// PrepareMatrix validates a matrix against the company and fills in defaults. Accountable
// assignments without an explicit chain get a single level 1 approval. Every user and
// designated approver must belong to companyID.
func PrepareMatrix(ctx context.Context, q Queries, companyID uuid.UUID, matrix []AssignmentInput) ([]AssignmentInput, error) {
	out := make([]AssignmentInput, 0, len(matrix))
	ids := []uuid.UUID{}
	seen := map[string]bool{}
	for i, in := range matrix {
		if !in.Type.Valid() {
			return nil, apperr.Validation("matrix[%d]: type must be one of R, A, C, I", i)
		}
		if in.UserID == uuid.Nil {
			return nil, apperr.Validation("matrix[%d]: userId is required", i)
		}
		key := string(in.Type) + in.UserID.String()
		if seen[key] {
			return nil, apperr.Validation("matrix[%d]: user is already assigned as %s", i, in.Type)
		}
		seen[key] = true
		if in.FinancialLimitMin != nil && in.FinancialLimitMax != nil && *in.FinancialLimitMin > *in.FinancialLimitMax {
			return nil, apperr.Validation("matrix[%d]: financialLimitMin must not exceed financialLimitMax", i)
		}
		levels := map[int]bool{}
		for _, ap := range in.Approvals {
			if ap.Level < 1 {
				return nil, apperr.Validation("matrix[%d]: approval level must be at least 1", i)
			}
			if levels[ap.Level] {
				return nil, apperr.Validation("matrix[%d]: duplicate approval level %d", i, ap.Level)
			}
			levels[ap.Level] = true
			if ap.ApproverID != nil {
				ids = append(ids, *ap.ApproverID)
			}
		}
		if len(in.Approvals) == 0 && in.Type == models.RaciAccountable {
			in.Approvals = []ApprovalInput{{Level: 1}}
		}
		ids = append(ids, in.UserID)
		out = append(out, in)
	}

	found, err := q.CompanyUserIDs(ctx, companyID, ids)
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		if !found[id] {
			return nil, apperr.Validation("user %s does not belong to this company", id)
		}
	}
	return out, nil
}

// DecisionNotice describes a committed decision for notification fan-out.
type DecisionNotice struct {
	CompanyID     uuid.UUID
	EventID       uuid.UUID
	EventName     string
	ApprovalID    uuid.UUID
	Level         int
	AssigneeID    uuid.UUID
	EventOwnerID  *uuid.UUID
	Status        models.ApprovalStatus
	Reason        string
	DecidedBy     uuid.UUID
	EventStatus   models.ApprovalStatus
	StatusChanged bool
}

// Notifier is told about decisions after they are committed.
type Notifier interface {
	ApprovalDecided(ctx context.Context, n DecisionNotice)
}

// Invalidator drops cached reads for the given scopes.
type Invalidator interface {
	Bump(ctx context.Context, scopes ...string) error
}

// DecisionResult is returned from Decide.
type DecisionResult struct {
	Approval    models.RaciApproval   `json:"approval"`
	EventID     uuid.UUID             `json:"eventId"`
	EventStatus models.ApprovalStatus `json:"eventStatus"`
}

// EventStatusView is the approval summary of an event.
type EventStatusView struct {
	EventID   uuid.UUID             `json:"eventId"`
	Status    models.ApprovalStatus `json:"status"`
	Total     int                   `json:"total"`
	Approved  int                   `json:"approved"`
	Rejected  int                   `json:"rejected"`
	Pending   int                   `json:"pending"`
	Approvals []models.RaciApproval `json:"approvals"`
}

// Service runs the approval workflow and matrix maintenance.
type Service struct {
	store    Store
	notifier Notifier
	cache    Invalidator
	logger   *zap.Logger
	now      func() time.Time
}

// NewService creates a raci service. notifier and cache may be nil.
func NewService(store Store, notifier Notifier, cache Invalidator, logger *zap.Logger) *Service {
	return &Service{store: store, notifier: notifier, cache: cache, logger: logger, now: time.Now}
}

func (s *Service) invalidate(ctx context.Context, companyID uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Bump(ctx, cache.CompanyScope(companyID), cache.PlatformScope); err != nil {
		s.logger.Warn("cache invalidation failed", zap.Error(err))
	}
}

func eventScope(e *EventRef, action authz.Action) authz.Scope {
	return authz.Scope{Resource: authz.ResourceEvent, Action: action, CompanyID: e.CompanyID, DepartmentID: e.DepartmentID}
}

// Decide approves or rejects one approval and recomputes the event status in the same
// transaction. The event row lock serialises concurrent decisions on the event.
func (s *Service) Decide(ctx context.Context, p authz.Principal, approvalID uuid.UUID, d Decision, reason string) (*DecisionResult, error) {
	reason = strings.TrimSpace(reason)
	var (
		result   DecisionResult
		notice   DecisionNotice
		settings *models.CompanySettings
	)
	err := s.store.InTx(ctx, func(q Queries) error {
		ref, err := q.ApprovalByID(ctx, approvalID)
		if err != nil {
			return err
		}
		event, err := q.LockEvent(ctx, ref.EventID)
		if err != nil {
			return err
		}
		settings, err = q.Settings(ctx, event.CompanyID)
		if err != nil {
			return err
		}

		owner := uuid.Nil
		if ref.Approval.ApproverID != nil {
			owner = *ref.Approval.ApproverID
		} else if settings.DefaultApprover == models.ApproverAssignedApprover {
			owner = ref.AssigneeID
		}
		if err := authz.Check(p, authz.Scope{
			Resource: authz.ResourceApproval, Action: authz.ActionDecide,
			CompanyID: event.CompanyID, DepartmentID: event.DepartmentID, OwnerID: owner,
		}); err != nil {
			return err
		}
		if err := CanDecide(p, ApproverContext{
			Approval: ref.Approval, AssigneeID: ref.AssigneeID, DepartmentID: event.DepartmentID, Default: settings.DefaultApprover,
		}); err != nil {
			return err
		}

		chain, err := q.Chain(ctx, ref.Approval.RaciID)
		if err != nil {
			return err
		}
		if err := CanTransition(chain, ref.Approval.ApprovalLevel, settings.ApprovalWorkflow); err != nil {
			return err
		}
		if event.Status == models.StatusRejected {
			return apperr.Conflict("event was already rejected").WithCode(apperr.CodeChainRejected)
		}
		if d == DecisionReject && settings.AllowRejectionFeedback && reason == "" {
			return apperr.Validation("a reason is required when rejecting")
		}

		at := s.now()
		approval := ref.Approval
		approval.Status = d.Status()
		approval.Reason = reason
		approval.ApprovedBy = &p.ID
		approval.ApprovedAt = &at
		if err := q.UpdateApproval(ctx, &approval); err != nil {
			return err
		}

		all, err := q.EventApprovals(ctx, event.ID)
		if err != nil {
			return err
		}
		for i := range all {
			if all[i].ID == approval.ID {
				all[i] = approval
			}
		}
		next := NextEventStatus(event.Status, all)
		if next != event.Status {
			var approvedBy *uuid.UUID
			if next == models.StatusApproved {
				approvedBy = &p.ID
			}
			if err := q.UpdateEventStatus(ctx, event.ID, next, reason, approvedBy); err != nil {
				return err
			}
		}

		result = DecisionResult{Approval: approval, EventID: event.ID, EventStatus: next}
		notice = DecisionNotice{
			CompanyID: event.CompanyID, EventID: event.ID, EventName: event.Name,
			ApprovalID: approval.ID, Level: approval.ApprovalLevel, AssigneeID: ref.AssigneeID,
			EventOwnerID: event.CreatedBy, Status: approval.Status, Reason: reason, DecidedBy: p.ID,
			EventStatus: next, StatusChanged: next != event.Status,
		}
		return nil
	})
	if err != nil {
		if apperr.KindOf(err) == apperr.KindInternal {
			s.logger.Error("decide approval failed", zap.String("approval_id", approvalID.String()), zap.Error(err))
		}
		return nil, err
	}

	s.logger.Info("approval decided",
		zap.String("approval_id", approvalID.String()),
		zap.String("status", string(result.Approval.Status)),
		zap.String("event_status", string(result.EventStatus)),
	)
	s.invalidate(ctx, notice.CompanyID)
	if s.notifier != nil {
		if (d == DecisionApprove && settings.NotifyOnApproval) || (d == DecisionReject && settings.NotifyOnRejection) {
			s.notifier.ApprovalDecided(ctx, notice)
		}
	}
	return &result, nil
}

// canReadEvent allows the event's company admin, its department's HOD, and any user
// assigned on it.
func (s *Service) canReadEvent(p authz.Principal, e *EventRef, matrix []models.RaciAssignment) error {
	err := authz.Check(p, eventScope(e, authz.ActionRead))
	if err == nil || apperr.KindOf(err) != apperr.KindAuthorization {
		return err
	}
	for _, a := range matrix {
		if a.UserID == p.ID {
			return nil
		}
	}
	return err
}

// Matrix returns the assignments of an event.
func (s *Service) Matrix(ctx context.Context, p authz.Principal, eventID uuid.UUID) ([]models.RaciAssignment, error) {
	e, err := s.store.EventRef(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if p.IsWebsiteAdmin() {
		return nil, apperr.Authorization("website admins cannot access tenant resources")
	}
	if e.CompanyID != p.CompanyID {
		return nil, apperr.NotFound("event not found")
	}
	matrix, err := s.store.Matrix(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if err := s.canReadEvent(p, e, matrix); err != nil {
		return nil, err
	}
	return matrix, nil
}

// ReplaceMatrix swaps the event's assignments for matrix. Only pending events whose
// approvals are all still pending may be changed.
func (s *Service) ReplaceMatrix(ctx context.Context, p authz.Principal, eventID uuid.UUID, matrix []AssignmentInput) ([]models.RaciAssignment, error) {
	var companyID uuid.UUID
	err := s.store.InTx(ctx, func(q Queries) error {
		e, err := q.LockEvent(ctx, eventID)
		if err != nil {
			return err
		}
		if err := authz.Check(p, eventScope(e, authz.ActionWrite)); err != nil {
			return err
		}
		if e.Status != models.StatusPending {
			return apperr.Conflict("event is already %s", e.Status).WithCode(apperr.CodeEventNotPending)
		}
		existing, err := q.EventApprovals(ctx, eventID)
		if err != nil {
			return err
		}
		for _, a := range existing {
			if a.Status != models.StatusPending {
				return apperr.Conflict("matrix cannot change after approvals were decided").WithCode(apperr.CodeEventNotPending)
			}
		}
		prepared, err := PrepareMatrix(ctx, q, e.CompanyID, matrix)
		if err != nil {
			return err
		}
		if err := q.DeleteMatrix(ctx, eventID); err != nil {
			return err
		}
		companyID = e.CompanyID
		return q.InsertMatrix(ctx, eventID, prepared)
	})
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, companyID)
	return s.store.Matrix(ctx, eventID)
}

// ApprovalStatus summarises the approvals of an event.
func (s *Service) ApprovalStatus(ctx context.Context, p authz.Principal, eventID uuid.UUID) (*EventStatusView, error) {
	matrix, err := s.Matrix(ctx, p, eventID)
	if err != nil {
		return nil, err
	}
	e, err := s.store.EventRef(ctx, eventID)
	if err != nil {
		return nil, err
	}
	view := &EventStatusView{EventID: eventID, Status: e.Status, Approvals: []models.RaciApproval{}}
	for _, a := range matrix {
		for _, ap := range a.Approvals {
			view.Approvals = append(view.Approvals, ap)
			view.Total++
			switch ap.Status {
			case models.StatusApproved:
				view.Approved++
			case models.StatusRejected:
				view.Rejected++
			default:
				view.Pending++
			}
		}
	}
	return view, nil
}

// MyAssignments lists the principal's own assignments.
func (s *Service) MyAssignments(ctx context.Context, p authz.Principal, page pagination.Params) ([]AssignmentView, pagination.Meta, error) {
	if p.IsWebsiteAdmin() {
		return nil, pagination.Meta{}, apperr.Authorization("website admins have no assignments")
	}
	list, total, err := s.store.UserAssignments(ctx, p.ID, page)
	if err != nil {
		return nil, pagination.Meta{}, err
	}
	return list, pagination.NewMeta(page, total), nil
}

// CompanyAssignments lists assignments across the company for admins, or the department for HODs.
func (s *Service) CompanyAssignments(ctx context.Context, p authz.Principal, page pagination.Params) ([]AssignmentView, pagination.Meta, error) {
	var dept *uuid.UUID
	switch p.Role {
	case models.RoleCompanyAdmin:
	case models.RoleHOD:
		if p.DepartmentID == uuid.Nil {
			return []AssignmentView{}, pagination.NewMeta(page, 0), nil
		}
		dept = &p.DepartmentID
	default:
		return nil, pagination.Meta{}, apperr.Authorization("insufficient permissions")
	}
	list, total, err := s.store.CompanyAssignments(ctx, p.CompanyID, dept, page)
	if err != nil {
		return nil, pagination.Meta{}, err
	}
	return list, pagination.NewMeta(page, total), nil
}

// PendingApprovals lists the pending approvals p could decide right now.
func (s *Service) PendingApprovals(ctx context.Context, p authz.Principal) ([]PendingApproval, error) {
	if p.IsWebsiteAdmin() {
		return nil, apperr.Authorization("website admins cannot access tenant resources")
	}
	settings, err := s.store.Settings(ctx, p.CompanyID)
	if err != nil {
		return nil, err
	}
	f := PendingFilter{CompanyID: p.CompanyID}
	if p.Role != models.RoleCompanyAdmin {
		f.ApproverID = &p.ID
		switch settings.DefaultApprover {
		case models.ApproverDepartmentHead:
			if p.Role == models.RoleHOD && p.DepartmentID != uuid.Nil {
				f.DepartmentID = &p.DepartmentID
			}
		case models.ApproverAssignedApprover:
			f.AssigneeID = &p.ID
		}
	}
	candidates, err := s.store.PendingApprovals(ctx, f)
	if err != nil {
		return nil, err
	}

	// keep only approvals whose chain allows a decision now
	out := make([]PendingApproval, 0, len(candidates))
	chains := map[uuid.UUID][]models.RaciApproval{}
	for _, c := range candidates {
		if CanDecide(p, ApproverContext{Approval: c.RaciApproval, AssigneeID: c.AssigneeID, DepartmentID: c.DepartmentID, Default: settings.DefaultApprover}) != nil {
			continue
		}
		chain, ok := chains[c.RaciID]
		if !ok {
			chain, err = s.store.Chain(ctx, c.RaciID)
			if err != nil {
				return nil, err
			}
			chains[c.RaciID] = chain
		}
		if CanTransition(chain, c.ApprovalLevel, settings.ApprovalWorkflow) != nil {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}
