// Package users manages tenant users.
//
// Company admins manage every user of their company. Website admins may only manage the
// company_admin accounts of any company, which is how a new tenant gets its first admin.
package users

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/raci-tracker/backend/internal/authz"
	"github.com/raci-tracker/backend/internal/models"
	"github.com/raci-tracker/backend/pkg/apperr"
	"github.com/raci-tracker/backend/pkg/cache"
	"github.com/raci-tracker/backend/pkg/pagination"
	"github.com/raci-tracker/backend/pkg/utils"
)

// CreateInput is the body of POST /api/users. CompanyID is read only from website admins.
type CreateInput struct {
	FullName       string      `json:"fullName" binding:"required,max=255"`
	Email          string      `json:"email" binding:"required,email"`
	Password       string      `json:"password" binding:"required,min=6"`
	Phone          string      `json:"phone" binding:"omitempty,max=32"`
	Designation    string      `json:"designation" binding:"omitempty,max=255"`
	EmployeeID     string      `json:"employeeId" binding:"omitempty,max=64"`
	Role           models.Role `json:"role" binding:"required,oneof=company_admin hod user"`
	DepartmentID   *uuid.UUID  `json:"departmentId"`
	ApprovalAssign bool        `json:"approvalAssign"`
	CompanyID      *uuid.UUID  `json:"companyId"`
}

// UpdateInput is the body of PUT /api/users/:id. Nil fields are left unchanged.
type UpdateInput struct {
	FullName        *string      `json:"fullName" binding:"omitempty,min=1,max=255"`
	Email           *string      `json:"email" binding:"omitempty,email"`
	Password        *string      `json:"password" binding:"omitempty,min=6"`
	Phone           *string      `json:"phone" binding:"omitempty,max=32"`
	Designation     *string      `json:"designation" binding:"omitempty,max=255"`
	EmployeeID      *string      `json:"employeeId" binding:"omitempty,max=64"`
	Role            *models.Role `json:"role" binding:"omitempty,oneof=company_admin hod user"`
	DepartmentID    *uuid.UUID   `json:"departmentId"`
	ClearDepartment bool         `json:"clearDepartment"`
	ApprovalAssign  *bool        `json:"approvalAssign"`
}

// ListQuery holds the listing filters from the query string.
type ListQuery struct {
	CompanyID    *uuid.UUID
	DepartmentID *uuid.UUID
	Role         models.Role
	Search       string
}

// Invalidator drops cached reads for the given scopes.
type Invalidator interface {
	Bump(ctx context.Context, scopes ...string) error
}

// Service implements user management.
type Service struct {
	store  Store
	cache  Invalidator
	logger *zap.Logger
}

// NewService creates a users service. cache may be nil.
func NewService(store Store, cache Invalidator, logger *zap.Logger) *Service {
	return &Service{store: store, cache: cache, logger: logger}
}

func (s *Service) invalidate(ctx context.Context, companyID uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Bump(ctx, cache.CompanyScope(companyID), cache.PlatformScope); err != nil {
		s.logger.Warn("cache invalidation failed", zap.Error(err))
	}
}

// access checks p against an existing user. Only reads treat the user as owner of their own
// record; profile changes go through the auth endpoints.
func access(p authz.Principal, u *models.User, action authz.Action) error {
	if p.IsWebsiteAdmin() {
		if u.Role == models.RoleCompanyAdmin {
			return nil
		}
		return apperr.Authorization("website admins can only manage company admins")
	}
	sc := authz.Scope{Resource: authz.ResourceUser, Action: action, CompanyID: u.CompanyID}
	if u.DepartmentID != nil {
		sc.DepartmentID = *u.DepartmentID
	}
	if action == authz.ActionRead {
		sc.OwnerID = u.ID
	}
	return authz.Check(p, sc)
}

func (s *Service) checkDepartment(ctx context.Context, companyID uuid.UUID, departmentID *uuid.UUID) error {
	if departmentID == nil {
		return nil
	}
	owner, err := s.store.DepartmentCompany(ctx, *departmentID)
	if apperr.IsNotFound(err) || (err == nil && owner != companyID) {
		return apperr.Validation("department does not belong to the company")
	}
	return err
}

// List returns a page of users. HODs are limited to their department; website admins see the
// company admins of the company they name.
func (s *Service) List(ctx context.Context, p authz.Principal, q ListQuery, page pagination.Params) ([]models.User, pagination.Meta, error) {
	f := Filter{CompanyID: p.CompanyID, DepartmentID: q.DepartmentID, Role: q.Role, Search: strings.TrimSpace(q.Search)}
	switch p.Role {
	case models.RoleWebsiteAdmin:
		if q.CompanyID == nil {
			return nil, pagination.Meta{}, apperr.Validation("companyId is required")
		}
		f.CompanyID, f.Role = *q.CompanyID, models.RoleCompanyAdmin
	case models.RoleCompanyAdmin:
	case models.RoleHOD:
		if q.DepartmentID != nil && *q.DepartmentID != p.DepartmentID {
			return nil, pagination.Meta{}, apperr.Authorization("access limited to your department")
		}
		if err := authz.Check(p, authz.Scope{Resource: authz.ResourceUser, Action: authz.ActionRead, CompanyID: p.CompanyID, DepartmentID: p.DepartmentID}); err != nil {
			return nil, pagination.Meta{}, err
		}
		f.DepartmentID = &p.DepartmentID
	default:
		return nil, pagination.Meta{}, apperr.Authorization("insufficient permissions")
	}
	if f.Role != "" && !f.Role.Valid() {
		return nil, pagination.Meta{}, apperr.Validation("role must be company_admin, hod or user")
	}
	list, total, err := s.store.List(ctx, f, page)
	if err != nil {
		return nil, pagination.Meta{}, err
	}
	return list, pagination.NewMeta(page, total), nil
}

// Get returns one user.
func (s *Service) Get(ctx context.Context, p authz.Principal, id uuid.UUID) (*models.User, error) {
	u, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := access(p, u, authz.ActionRead); err != nil {
		return nil, err
	}
	return u, nil
}

// Create adds a user flagged as still using the password chosen by the admin.
func (s *Service) Create(ctx context.Context, p authz.Principal, in CreateInput) (*models.User, error) {
	companyID := p.CompanyID
	if p.IsWebsiteAdmin() {
		if in.CompanyID == nil {
			return nil, apperr.Validation("companyId is required")
		}
		if in.Role != models.RoleCompanyAdmin {
			return nil, apperr.Authorization("website admins can only create company admins")
		}
		companyID = *in.CompanyID
	} else if err := authz.Check(p, authz.Scope{Resource: authz.ResourceUser, Action: authz.ActionWrite, CompanyID: companyID}); err != nil {
		return nil, err
	}
	if !in.Role.Valid() {
		return nil, apperr.Validation("role must be company_admin, hod or user")
	}
	if err := s.checkDepartment(ctx, companyID, in.DepartmentID); err != nil {
		return nil, err
	}
	hash, err := utils.HashPassword(in.Password)
	if err != nil {
		return nil, apperr.Wrap(err, "hash password")
	}
	u := &models.User{
		FullName:          strings.TrimSpace(in.FullName),
		Email:             strings.ToLower(strings.TrimSpace(in.Email)),
		Password:          hash,
		Phone:             strings.TrimSpace(in.Phone),
		Designation:       strings.TrimSpace(in.Designation),
		EmployeeID:        strings.TrimSpace(in.EmployeeID),
		Role:              in.Role,
		CompanyID:         companyID,
		DepartmentID:      in.DepartmentID,
		ApprovalAssign:    in.ApprovalAssign,
		IsDefaultPassword: true,
	}
	if u.FullName == "" {
		return nil, apperr.Validation("fullName is required")
	}
	if err := s.store.Create(ctx, u); err != nil {
		return nil, err
	}
	s.logger.Info("user created", zap.String("user_id", u.ID.String()), zap.String("company_id", companyID.String()),
		zap.String("role", string(u.Role)))
	s.invalidate(ctx, companyID)
	return u, nil
}

func trimmed(dst *string, v *string) {
	if v != nil {
		*dst = strings.TrimSpace(*v)
	}
}

// Update changes a user. A password set by an admin is flagged as default again.
func (s *Service) Update(ctx context.Context, p authz.Principal, id uuid.UUID, in UpdateInput) (*models.User, error) {
	u, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := access(p, u, authz.ActionWrite); err != nil {
		return nil, err
	}
	trimmed(&u.FullName, in.FullName)
	if u.FullName == "" {
		return nil, apperr.Validation("fullName must not be empty")
	}
	if in.Email != nil {
		u.Email = strings.ToLower(strings.TrimSpace(*in.Email))
	}
	trimmed(&u.Phone, in.Phone)
	trimmed(&u.Designation, in.Designation)
	trimmed(&u.EmployeeID, in.EmployeeID)
	if in.Role != nil {
		if !in.Role.Valid() {
			return nil, apperr.Validation("role must be company_admin, hod or user")
		}
		if p.IsWebsiteAdmin() && *in.Role != models.RoleCompanyAdmin {
			return nil, apperr.Authorization("website admins can only manage company admins")
		}
		if u.ID == p.ID && *in.Role != u.Role {
			return nil, apperr.Validation("you cannot change your own role")
		}
		u.Role = *in.Role
	}
	switch {
	case in.ClearDepartment:
		u.DepartmentID = nil
	case in.DepartmentID != nil:
		if err := s.checkDepartment(ctx, u.CompanyID, in.DepartmentID); err != nil {
			return nil, err
		}
		u.DepartmentID = in.DepartmentID
	}
	if in.ApprovalAssign != nil {
		u.ApprovalAssign = *in.ApprovalAssign
	}
	if in.Password != nil {
		if u.Password, err = utils.HashPassword(*in.Password); err != nil {
			return nil, apperr.Wrap(err, "hash password")
		}
		u.IsDefaultPassword = true
	}
	if err := s.store.Update(ctx, u); err != nil {
		return nil, err
	}
	s.invalidate(ctx, u.CompanyID)
	return u, nil
}

// Delete removes a user. Nobody can delete their own account here.
func (s *Service) Delete(ctx context.Context, p authz.Principal, id uuid.UUID) error {
	u, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := access(p, u, authz.ActionWrite); err != nil {
		return err
	}
	if u.ID == p.ID {
		return apperr.Validation("you cannot delete your own account")
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("user deleted", zap.String("user_id", id.String()), zap.String("by", p.ID.String()))
	s.invalidate(ctx, u.CompanyID)
	return nil
}
