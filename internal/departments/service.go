// Package departments manages a company's departments and their heads.
package departments

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
)

// CreateInput is the body of POST /api/companies/:id/departments.
type CreateInput struct {
	Name  string     `json:"name" binding:"required,max=255"`
	HODID *uuid.UUID `json:"hodId"`
}

// UpdateInput is the body of PUT /api/departments/:id. RemoveHOD clears the head.
type UpdateInput struct {
	Name      *string    `json:"name" binding:"omitempty,min=1,max=255"`
	HODID     *uuid.UUID `json:"hodId"`
	RemoveHOD bool       `json:"removeHod"`
}

// Invalidator drops cached reads for the given scopes.
type Invalidator interface {
	Bump(ctx context.Context, scopes ...string) error
}

// Service implements department operations.
type Service struct {
	store  Store
	cache  Invalidator
	logger *zap.Logger
}

// NewService creates a departments service. cache may be nil.
func NewService(store Store, cache Invalidator, logger *zap.Logger) *Service {
	return &Service{store: store, cache: cache, logger: logger}
}

func scope(d *models.Department, action authz.Action) authz.Scope {
	return authz.Scope{Resource: authz.ResourceDepartment, Action: action, CompanyID: d.CompanyID, DepartmentID: d.ID}
}

func (s *Service) invalidate(ctx context.Context, companyID uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Bump(ctx, cache.CompanyScope(companyID)); err != nil {
		s.logger.Warn("cache invalidation failed", zap.Error(err))
	}
}

func (s *Service) checkHOD(ctx context.Context, companyID, userID uuid.UUID) error {
	m, err := s.store.Member(ctx, userID)
	if apperr.IsNotFound(err) || (err == nil && m.CompanyID != companyID) {
		return apperr.Validation("hod must be a user of the same company")
	}
	return err
}

// List returns the departments of a company. A HOD sees only their own department.
func (s *Service) List(ctx context.Context, p authz.Principal, companyID uuid.UUID, search string, page pagination.Params) ([]models.Department, pagination.Meta, error) {
	if err := authz.Check(p, authz.Scope{Resource: authz.ResourceDepartment, Action: authz.ActionRead, CompanyID: companyID, DepartmentID: p.DepartmentID}); err != nil {
		return nil, pagination.Meta{}, err
	}
	var only *uuid.UUID
	if p.Role != models.RoleCompanyAdmin {
		only = &p.DepartmentID
	}
	list, total, err := s.store.List(ctx, companyID, only, strings.TrimSpace(search), page)
	if err != nil {
		return nil, pagination.Meta{}, err
	}
	return list, pagination.NewMeta(page, total), nil
}

// Get returns one department.
func (s *Service) Get(ctx context.Context, p authz.Principal, id uuid.UUID) (*models.Department, error) {
	d, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authz.Check(p, scope(d, authz.ActionRead)); err != nil {
		return nil, err
	}
	return d, nil
}

// Create adds a department and, when hodId is given, assigns its head.
func (s *Service) Create(ctx context.Context, p authz.Principal, companyID uuid.UUID, in CreateInput) (*models.Department, error) {
	d := &models.Department{Name: strings.TrimSpace(in.Name), CompanyID: companyID, HODID: in.HODID}
	if err := authz.Check(p, authz.Scope{Resource: authz.ResourceDepartment, Action: authz.ActionWrite, CompanyID: companyID}); err != nil {
		return nil, err
	}
	if d.Name == "" {
		return nil, apperr.Validation("name is required")
	}
	if d.HODID != nil {
		if err := s.checkHOD(ctx, companyID, *d.HODID); err != nil {
			return nil, err
		}
	}
	if err := s.store.Save(ctx, d, nil); err != nil {
		return nil, err
	}
	s.logger.Info("department created", zap.String("department_id", d.ID.String()), zap.String("company_id", companyID.String()))
	s.invalidate(ctx, companyID)
	return d, nil
}

// Update renames a department and changes or removes its head.
func (s *Service) Update(ctx context.Context, p authz.Principal, id uuid.UUID, in UpdateInput) (*models.Department, error) {
	d, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authz.Check(p, scope(d, authz.ActionWrite)); err != nil {
		return nil, err
	}
	previous := d.HODID
	if in.Name != nil {
		if d.Name = strings.TrimSpace(*in.Name); d.Name == "" {
			return nil, apperr.Validation("name must not be empty")
		}
	}
	switch {
	case in.RemoveHOD:
		d.HODID, d.HODName = nil, ""
	case in.HODID != nil:
		if err := s.checkHOD(ctx, d.CompanyID, *in.HODID); err != nil {
			return nil, err
		}
		d.HODID = in.HODID
	}
	if err := s.store.Save(ctx, d, previous); err != nil {
		return nil, err
	}
	s.invalidate(ctx, d.CompanyID)
	return d, nil
}

// Delete removes a department with its events.
func (s *Service) Delete(ctx context.Context, p authz.Principal, id uuid.UUID) error {
	d, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := authz.Check(p, scope(d, authz.ActionWrite)); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("department deleted", zap.String("department_id", id.String()))
	s.invalidate(ctx, d.CompanyID)
	return nil
}
