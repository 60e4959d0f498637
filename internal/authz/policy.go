// Package authz decides whether a principal may act on a tenant-scoped resource.
//
// Check is a pure function: callers load the resource, describe it as a Scope and
// act on the returned error. Cross-tenant access is always reported as not found so
// that callers cannot probe for the existence of another tenant's records.
package authz

import (
	"github.com/google/uuid"

	"github.com/raci-tracker/backend/internal/models"
	"github.com/raci-tracker/backend/pkg/apperr"
)

// Resource is the kind of record being accessed.
type Resource string

const (
	ResourcePlatform   Resource = "platform"
	ResourceCompany    Resource = "company"
	ResourceDepartment Resource = "department"
	ResourceUser       Resource = "user"
	ResourceEvent      Resource = "event"
	ResourceAssignment Resource = "assignment"
	ResourceApproval   Resource = "approval"
	ResourceMeeting    Resource = "meeting"
	ResourceTracker    Resource = "tracker"
	ResourceDashboard  Resource = "dashboard"
)

// Action is what the principal wants to do.
type Action string

const (
	ActionRead   Action = "read"
	ActionWrite  Action = "write"
	ActionDecide Action = "decide"
)

// Principal is the authenticated identity resolved from an access token.
type Principal struct {
	ID           uuid.UUID
	Role         models.Role
	CompanyID    uuid.UUID
	DepartmentID uuid.UUID
}

// IsWebsiteAdmin reports whether p is a platform administrator.
func (p Principal) IsWebsiteAdmin() bool { return p.Role == models.RoleWebsiteAdmin }

// Scope describes the resource being accessed. DepartmentID and OwnerID are
// uuid.Nil when the resource has no department or owner.
type Scope struct {
	Resource     Resource
	Action       Action
	CompanyID    uuid.UUID
	DepartmentID uuid.UUID
	OwnerID      uuid.UUID
}

// Check returns nil when p may perform s.Action on s, otherwise an Authentication,
// Authorization or NotFound error.
func Check(p Principal, s Scope) error {
	if p.ID == uuid.Nil || p.Role == "" {
		return apperr.Authentication("not authenticated")
	}

	if p.IsWebsiteAdmin() {
		if s.Resource == ResourcePlatform || s.Resource == ResourceCompany {
			return nil
		}
		return apperr.Authorization("website admins cannot access tenant resources")
	}

	if s.Resource == ResourcePlatform {
		return apperr.Authorization("insufficient permissions")
	}
	if s.CompanyID == uuid.Nil || s.CompanyID != p.CompanyID {
		return hidden(s.Resource)
	}

	switch p.Role {
	case models.RoleCompanyAdmin:
		return nil
	case models.RoleHOD:
		return checkHOD(p, s)
	case models.RoleUser:
		return checkUser(p, s)
	default:
		return apperr.Authorization("insufficient permissions")
	}
}

func checkHOD(p Principal, s Scope) error {
	if s.OwnerID != uuid.Nil && s.OwnerID == p.ID && (s.Action != ActionDecide || s.Resource == ResourceApproval) {
		return nil
	}
	switch s.Resource {
	case ResourceCompany:
		if s.Action == ActionRead {
			return nil
		}
		return apperr.Authorization("only company admins can modify the company")
	case ResourceDepartment, ResourceUser:
		if s.Action == ActionRead && p.DepartmentID != uuid.Nil && s.DepartmentID == p.DepartmentID {
			return nil
		}
		if s.Action != ActionRead {
			return apperr.Authorization("only company admins can manage %ss", s.Resource)
		}
		return apperr.Authorization("access limited to your department")
	}
	if p.DepartmentID != uuid.Nil && s.DepartmentID == p.DepartmentID {
		return nil
	}
	return apperr.Authorization("access limited to your department")
}

func checkUser(p Principal, s Scope) error {
	if s.Resource == ResourceCompany && s.Action == ActionRead {
		return nil
	}
	if s.OwnerID == uuid.Nil || s.OwnerID != p.ID {
		return apperr.Authorization("insufficient permissions")
	}
	switch s.Action {
	case ActionRead:
		return nil
	case ActionDecide:
		if s.Resource == ResourceApproval {
			return nil
		}
	case ActionWrite:
		if s.Resource == ResourceTracker {
			return nil
		}
	}
	return apperr.Authorization("insufficient permissions")
}

func hidden(r Resource) error {
	switch r {
	case ResourceCompany:
		return apperr.NotFound("company not found")
	case ResourceDepartment:
		return apperr.NotFound("department not found")
	case ResourceUser:
		return apperr.NotFound("user not found")
	case ResourceEvent:
		return apperr.NotFound("event not found")
	case ResourceAssignment:
		return apperr.NotFound("assignment not found")
	case ResourceApproval:
		return apperr.NotFound("approval not found")
	case ResourceMeeting:
		return apperr.NotFound("meeting not found")
	case ResourceTracker:
		return apperr.NotFound("tracker not found")
	default:
		return apperr.NotFound("not found")
	}
}
