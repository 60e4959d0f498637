// Package companies manages tenants, their logo and their persisted approval settings.
package companies

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
	"github.com/raci-tracker/backend/pkg/storage"
)

// Input holds the editable company fields. Nil pointers leave a field unchanged on update.
type Input struct {
	Name     *string `json:"name" binding:"omitempty,min=1,max=255"`
	Domain   *string `json:"domain" binding:"omitempty,max=255"`
	Industry *string `json:"industry" binding:"omitempty,max=255"`
	Size     *string `json:"size" binding:"omitempty,max=64"`
}

// SettingsInput is a partial settings update.
type SettingsInput struct {
	ApprovalWorkflow       *models.ApprovalWorkflow `json:"approvalWorkflow" binding:"omitempty,workflow"`
	DefaultApprover        *models.DefaultApprover  `json:"defaultApprover"`
	AllowRejectionFeedback *bool                    `json:"allowRejectionFeedback"`
	NotifyOnApproval       *bool                    `json:"notifyOnApproval"`
	NotifyOnRejection      *bool                    `json:"notifyOnRejection"`
}

// MyCompany is the caller's company with headline stats.
type MyCompany struct {
	models.Company
	Stats Stats `json:"stats"`
}

// Invalidator drops cached reads for the given scopes.
type Invalidator interface {
	Bump(ctx context.Context, scopes ...string) error
}

// Service implements company operations.
type Service struct {
	store  Store
	blob   storage.Blob
	cache  Invalidator
	logger *zap.Logger
}

// NewService creates a companies service. cache may be nil.
func NewService(store Store, blob storage.Blob, cache Invalidator, logger *zap.Logger) *Service {
	return &Service{store: store, blob: blob, cache: cache, logger: logger}
}

func (s *Service) invalidate(ctx context.Context, id uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Bump(ctx, cache.CompanyScope(id), cache.PlatformScope); err != nil {
		s.logger.Warn("cache invalidation failed", zap.Error(err))
	}
}

// deleteBlob removes a stored object, logging failures. It runs after the request context
// may have been cancelled.
func (s *Service) deleteBlob(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if err := s.blob.Delete(context.WithoutCancel(ctx), key); err != nil {
		s.logger.Warn("delete logo failed", zap.String("key", key), zap.Error(err))
	}
}

func apply(c *models.Company, in Input) {
	if in.Name != nil {
		c.Name = strings.TrimSpace(*in.Name)
	}
	if in.Domain != nil {
		c.Domain = strings.TrimSpace(*in.Domain)
	}
	if in.Industry != nil {
		c.Industry = strings.TrimSpace(*in.Industry)
	}
	if in.Size != nil {
		c.Size = strings.TrimSpace(*in.Size)
	}
}

// Create adds a company with default settings. The logo, when given, is stored first and
// removed again if the insert fails.
func (s *Service) Create(ctx context.Context, p authz.Principal, in Input, logo *storage.Upload) (*models.Company, error) {
	if err := authz.Check(p, authz.Scope{Resource: authz.ResourcePlatform, Action: authz.ActionWrite}); err != nil {
		return nil, err
	}
	c := &models.Company{}
	apply(c, in)
	if c.Name == "" {
		return nil, apperr.Validation("name is required")
	}
	if logo != nil {
		stored, err := storage.Save(ctx, s.blob, storage.FolderLogos, storage.LogoExtensions, logo)
		if err != nil {
			return nil, err
		}
		c.LogoURL, c.LogoKey = stored.URL, stored.Key
	}
	if err := s.store.Create(ctx, c); err != nil {
		s.deleteBlob(ctx, c.LogoKey)
		return nil, err
	}
	s.logger.Info("company created", zap.String("company_id", c.ID.String()))
	s.invalidate(ctx, c.ID)
	return c, nil
}

// List returns companies for the platform view.
func (s *Service) List(ctx context.Context, p authz.Principal, search string, page pagination.Params) ([]Summary, pagination.Meta, error) {
	if err := authz.Check(p, authz.Scope{Resource: authz.ResourcePlatform, Action: authz.ActionRead}); err != nil {
		return nil, pagination.Meta{}, err
	}
	list, total, err := s.store.List(ctx, strings.TrimSpace(search), page)
	if err != nil {
		return nil, pagination.Meta{}, err
	}
	return list, pagination.NewMeta(page, total), nil
}

func (s *Service) load(ctx context.Context, p authz.Principal, id uuid.UUID, action authz.Action) (*models.Company, error) {
	// tenant principals are checked before the lookup so other ids are never probed
	if !p.IsWebsiteAdmin() {
		if err := authz.Check(p, authz.Scope{Resource: authz.ResourceCompany, Action: action, CompanyID: id}); err != nil {
			return nil, err
		}
	}
	c, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authz.Check(p, authz.Scope{Resource: authz.ResourceCompany, Action: action, CompanyID: c.ID}); err != nil {
		return nil, err
	}
	return c, nil
}

// Get returns a company with its settings.
func (s *Service) Get(ctx context.Context, p authz.Principal, id uuid.UUID) (*models.Company, error) {
	return s.load(ctx, p, id, authz.ActionRead)
}

// Mine returns the caller's company and its stats.
func (s *Service) Mine(ctx context.Context, p authz.Principal) (*MyCompany, error) {
	if p.CompanyID == uuid.Nil {
		return nil, apperr.NotFound("you are not associated with any company")
	}
	c, err := s.load(ctx, p, p.CompanyID, authz.ActionRead)
	if err != nil {
		return nil, err
	}
	stats, err := s.store.Stats(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	return &MyCompany{Company: *c, Stats: *stats}, nil
}

// Update changes company fields and optionally replaces the logo. The previous logo is
// deleted only after the update is committed; a new logo is deleted if the update fails.
func (s *Service) Update(ctx context.Context, p authz.Principal, id uuid.UUID, in Input, logo *storage.Upload) (*models.Company, error) {
	c, err := s.load(ctx, p, id, authz.ActionWrite)
	if err != nil {
		return nil, err
	}
	apply(c, in)
	if c.Name == "" {
		return nil, apperr.Validation("name must not be empty")
	}
	oldKey := ""
	if logo != nil {
		stored, err := storage.Save(ctx, s.blob, storage.FolderLogos, storage.LogoExtensions, logo)
		if err != nil {
			return nil, err
		}
		oldKey = c.LogoKey
		c.LogoURL, c.LogoKey = stored.URL, stored.Key
	}
	if err := s.store.Update(ctx, c); err != nil {
		if logo != nil {
			s.deleteBlob(ctx, c.LogoKey)
		}
		return nil, err
	}
	s.deleteBlob(ctx, oldKey)
	s.invalidate(ctx, c.ID)
	return c, nil
}

// UpdateSettings persists a partial settings change. Only the company's own admins may do it.
func (s *Service) UpdateSettings(ctx context.Context, p authz.Principal, id uuid.UUID, in SettingsInput) (*models.Company, error) {
	if p.IsWebsiteAdmin() {
		return nil, apperr.Authorization("only company admins can change settings")
	}
	c, err := s.load(ctx, p, id, authz.ActionWrite)
	if err != nil {
		return nil, err
	}
	settings := *c.Settings
	settings.CompanyID = c.ID
	if in.ApprovalWorkflow != nil {
		if *in.ApprovalWorkflow != models.WorkflowSequential && *in.ApprovalWorkflow != models.WorkflowParallel {
			return nil, apperr.Validation("approvalWorkflow must be sequential or parallel")
		}
		settings.ApprovalWorkflow = *in.ApprovalWorkflow
	}
	if in.DefaultApprover != nil {
		v := models.DefaultApprover(strings.ReplaceAll(string(*in.DefaultApprover), "-", "_"))
		switch v {
		case models.ApproverDepartmentHead, models.ApproverCompanyAdmin, models.ApproverAssignedApprover:
			settings.DefaultApprover = v
		default:
			return nil, apperr.Validation("defaultApprover must be department_head, company_admin or assigned_approver")
		}
	}
	if in.AllowRejectionFeedback != nil {
		settings.AllowRejectionFeedback = *in.AllowRejectionFeedback
	}
	if in.NotifyOnApproval != nil {
		settings.NotifyOnApproval = *in.NotifyOnApproval
	}
	if in.NotifyOnRejection != nil {
		settings.NotifyOnRejection = *in.NotifyOnRejection
	}
	if err := s.store.UpdateSettings(ctx, &settings); err != nil {
		return nil, err
	}
	c.Settings = &settings
	s.logger.Info("company settings updated", zap.String("company_id", c.ID.String()),
		zap.String("workflow", string(settings.ApprovalWorkflow)), zap.String("default_approver", string(settings.DefaultApprover)))
	s.invalidate(ctx, c.ID)
	return c, nil
}

// Delete removes a company and, after the row is gone, its logo.
func (s *Service) Delete(ctx context.Context, p authz.Principal, id uuid.UUID) error {
	if err := authz.Check(p, authz.Scope{Resource: authz.ResourcePlatform, Action: authz.ActionWrite}); err != nil {
		return err
	}
	c, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.deleteBlob(ctx, c.LogoKey)
	s.logger.Info("company deleted", zap.String("company_id", id.String()))
	s.invalidate(ctx, id)
	return nil
}
