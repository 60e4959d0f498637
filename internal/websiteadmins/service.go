// Package websiteadmins manages platform administrators.
package websiteadmins

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/raci-tracker/backend/internal/authz"
	"github.com/raci-tracker/backend/internal/models"
	"github.com/raci-tracker/backend/pkg/apperr"
	"github.com/raci-tracker/backend/pkg/pagination"
	"github.com/raci-tracker/backend/pkg/utils"
)

var errLastAdmin = apperr.Conflict("cannot delete the last website admin").WithCode(apperr.CodeLastAdmin)

// CreateInput is the body of POST /api/website-admins.
type CreateInput struct {
	FullName string `json:"fullName" binding:"required,max=255"`
	Email    string `json:"email" binding:"required,email"`
	Phone    string `json:"phone" binding:"omitempty,max=32"`
	Password string `json:"password" binding:"required,min=6"`
}

// UpdateInput is the body of PUT /api/website-admins/:id. Nil fields are left unchanged.
type UpdateInput struct {
	FullName *string `json:"fullName" binding:"omitempty,min=1,max=255"`
	Email    *string `json:"email" binding:"omitempty,email"`
	Phone    *string `json:"phone" binding:"omitempty,max=32"`
	Password *string `json:"password" binding:"omitempty,min=6"`
}

// Service implements website admin management.
type Service struct {
	store  Store
	logger *zap.Logger
}

// NewService creates a website admins service.
func NewService(store Store, logger *zap.Logger) *Service {
	return &Service{store: store, logger: logger}
}

func platform(p authz.Principal, action authz.Action) error {
	return authz.Check(p, authz.Scope{Resource: authz.ResourcePlatform, Action: action})
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// List returns a page of admins.
func (s *Service) List(ctx context.Context, p authz.Principal, search string, page pagination.Params) ([]models.WebsiteAdmin, pagination.Meta, error) {
	if err := platform(p, authz.ActionRead); err != nil {
		return nil, pagination.Meta{}, err
	}
	list, total, err := s.store.List(ctx, strings.TrimSpace(search), page)
	if err != nil {
		return nil, pagination.Meta{}, err
	}
	return list, pagination.NewMeta(page, total), nil
}

// Get returns one admin.
func (s *Service) Get(ctx context.Context, p authz.Principal, id uuid.UUID) (*models.WebsiteAdmin, error) {
	if err := platform(p, authz.ActionRead); err != nil {
		return nil, err
	}
	return s.store.Get(ctx, id)
}

// Create adds an admin with a hashed password.
func (s *Service) Create(ctx context.Context, p authz.Principal, in CreateInput) (*models.WebsiteAdmin, error) {
	if err := platform(p, authz.ActionWrite); err != nil {
		return nil, err
	}
	hash, err := utils.HashPassword(in.Password)
	if err != nil {
		return nil, apperr.Wrap(err, "hash password")
	}
	a := &models.WebsiteAdmin{
		FullName: strings.TrimSpace(in.FullName),
		Email:    normalizeEmail(in.Email),
		Phone:    strings.TrimSpace(in.Phone),
		Password: hash,
	}
	if a.FullName == "" {
		return nil, apperr.Validation("fullName is required")
	}
	if err := s.store.Create(ctx, a); err != nil {
		return nil, err
	}
	s.logger.Info("website admin created", zap.String("admin_id", a.ID.String()), zap.String("by", p.ID.String()))
	return a, nil
}

// Update changes profile fields and, when given, the password.
func (s *Service) Update(ctx context.Context, p authz.Principal, id uuid.UUID, in UpdateInput) (*models.WebsiteAdmin, error) {
	if err := platform(p, authz.ActionWrite); err != nil {
		return nil, err
	}
	a, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.FullName != nil {
		if a.FullName = strings.TrimSpace(*in.FullName); a.FullName == "" {
			return nil, apperr.Validation("fullName must not be empty")
		}
	}
	if in.Email != nil {
		a.Email = normalizeEmail(*in.Email)
	}
	if in.Phone != nil {
		a.Phone = strings.TrimSpace(*in.Phone)
	}
	if in.Password != nil {
		if a.Password, err = utils.HashPassword(*in.Password); err != nil {
			return nil, apperr.Wrap(err, "hash password")
		}
	}
	if err := s.store.Update(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// Delete removes an admin. The last remaining admin cannot be deleted.
func (s *Service) Delete(ctx context.Context, p authz.Principal, id uuid.UUID) error {
	if err := platform(p, authz.ActionWrite); err != nil {
		return err
	}
	if err := s.store.DeleteUnlessLast(ctx, id); err != nil {
		return err
	}
	s.logger.Info("website admin deleted", zap.String("admin_id", id.String()), zap.String("by", p.ID.String()))
	return nil
}
