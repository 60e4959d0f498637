package raci

import (
	"sort"

	"github.com/google/uuid"

	"github.com/raci-tracker/backend/internal/authz"
	"github.com/raci-tracker/backend/internal/models"
	"github.com/raci-tracker/backend/pkg/apperr"
)

// Decision is what an approver does with a pending approval.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

// Status returns the approval status the decision moves to.
func (d Decision) Status() models.ApprovalStatus {
	if d == DecisionReject {
		return models.StatusRejected
	}
	return models.StatusApproved
}

// CanTransition reports whether the approval at level of chain may be decided under policy.
// chain holds every approval of one assignment.
func CanTransition(chain []models.RaciApproval, level int, policy models.ApprovalWorkflow) error {
	var target *models.RaciApproval
	for i := range chain {
		if chain[i].ApprovalLevel == level {
			target = &chain[i]
		}
	}
	if target == nil {
		return apperr.NotFound("approval level %d not found", level)
	}
	if target.Status.Terminal() {
		return apperr.Conflict("approval is already %s", target.Status).WithCode(apperr.CodeAlreadyDecided)
	}
	for _, a := range chain {
		if a.Status == models.StatusRejected {
			return apperr.Conflict("approval chain was rejected at level %d", a.ApprovalLevel).WithCode(apperr.CodeChainRejected)
		}
	}
	if policy == models.WorkflowSequential {
		lower := make([]models.RaciApproval, 0, len(chain))
		for _, a := range chain {
			if a.ApprovalLevel < level {
				lower = append(lower, a)
			}
		}
		sort.Slice(lower, func(i, j int) bool { return lower[i].ApprovalLevel < lower[j].ApprovalLevel })
		for _, a := range lower {
			if a.Status != models.StatusApproved {
				return apperr.Precondition("approval level %d must be approved first", a.ApprovalLevel).WithCode(apperr.CodePreviousLevelPending)
			}
		}
	}
	return nil
}

// Aggregate derives an event status from all approvals of its assignments.
func Aggregate(approvals []models.RaciApproval) models.ApprovalStatus {
	if len(approvals) == 0 {
		return models.StatusPending
	}
	allApproved := true
	for _, a := range approvals {
		switch a.Status {
		case models.StatusRejected:
			return models.StatusRejected
		case models.StatusApproved:
		default:
			allApproved = false
		}
	}
	if allApproved {
		return models.StatusApproved
	}
	return models.StatusPending
}

// NextEventStatus applies the aggregate to the current event status. A rejected event stays rejected.
func NextEventStatus(current models.ApprovalStatus, approvals []models.RaciApproval) models.ApprovalStatus {
	if current == models.StatusRejected {
		return models.StatusRejected
	}
	return Aggregate(approvals)
}

// ApproverContext is what CanDecide needs to know about the approval being decided.
type ApproverContext struct {
	Approval     models.RaciApproval
	AssigneeID   uuid.UUID
	DepartmentID uuid.UUID
	Default      models.DefaultApprover
}

// CanDecide reports whether p holds approver rights. Company admins always do. A designated
// approver_id restricts the approval to that user; otherwise the company's default approver
// setting applies.
func CanDecide(p authz.Principal, ac ApproverContext) error {
	if p.Role == models.RoleCompanyAdmin {
		return nil
	}
	if ac.Approval.ApproverID != nil {
		if *ac.Approval.ApproverID == p.ID {
			return nil
		}
		return apperr.Authorization("approval is assigned to another approver")
	}
	switch ac.Default {
	case models.ApproverDepartmentHead:
		if p.Role == models.RoleHOD && p.DepartmentID != uuid.Nil && p.DepartmentID == ac.DepartmentID {
			return nil
		}
		return apperr.Authorization("only the department head can decide this approval")
	case models.ApproverAssignedApprover:
		if p.ID == ac.AssigneeID {
			return nil
		}
		return apperr.Authorization("only the assigned user can decide this approval")
	default:
		return apperr.Authorization("only company admins can decide this approval")
	}
}
