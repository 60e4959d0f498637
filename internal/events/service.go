// Package events manages events, their creation together with a RACI matrix, and the
// per-user trackers seeded for every assigned user.
package events

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/raci-tracker/backend/internal/authz"
	"github.com/raci-tracker/backend/internal/models"
	"github.com/raci-tracker/backend/internal/raci"
	"github.com/raci-tracker/backend/pkg/apperr"
	"github.com/raci-tracker/backend/pkg/cache"
	"github.com/raci-tracker/backend/pkg/pagination"
	"github.com/raci-tracker/backend/pkg/storage"
)

// CreateInput is a new event with an optional inline matrix.
type CreateInput struct {
	Name         string                 `json:"name" binding:"required,max=255"`
	Description  string                 `json:"description"`
	DepartmentID uuid.UUID              `json:"departmentId" binding:"required"`
	Matrix       []raci.AssignmentInput `json:"matrix" binding:"omitempty,dive"`
}

// Detail is an event with its matrix and trackers.
type Detail struct {
	models.Event
	Matrix   []models.RaciAssignment `json:"matrix"`
	Trackers []models.EventTracker   `json:"trackers"`
}

// MatrixReader returns an event's assignments after checking the principal may read them.
type MatrixReader interface {
	Matrix(ctx context.Context, p authz.Principal, eventID uuid.UUID) ([]models.RaciAssignment, error)
}

// Notifier is told which users were assigned on a new event.
type Notifier interface {
	EventAssigned(ctx context.Context, e *models.Event, userIDs []uuid.UUID)
}

// Service implements event and tracker operations.
type Service struct {
	store    Store
	matrix   MatrixReader
	blob     storage.Blob
	notifier Notifier
	cache    raci.Invalidator
	logger   *zap.Logger
}

// NewService creates an events service. notifier and cache may be nil.
func NewService(store Store, matrix MatrixReader, blob storage.Blob, notifier Notifier, cache raci.Invalidator, logger *zap.Logger) *Service {
	return &Service{store: store, matrix: matrix, blob: blob, notifier: notifier, cache: cache, logger: logger}
}

// Create inserts the event, its matrix and the trackers of every assigned user in one
// transaction. An uploaded document is stored first and deleted again if the transaction fails.
func (s *Service) Create(ctx context.Context, p authz.Principal, in CreateInput, doc *storage.Upload) (*Detail, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return nil, apperr.Validation("name is required")
	}
	dept, err := s.store.Department(ctx, in.DepartmentID)
	if err != nil {
		return nil, err
	}
	if err := authz.Check(p, authz.Scope{Resource: authz.ResourceEvent, Action: authz.ActionWrite,
		CompanyID: dept.CompanyID, DepartmentID: dept.ID}); err != nil {
		if apperr.IsNotFound(err) {
			return nil, apperr.NotFound("department not found")
		}
		return nil, err
	}

	e := &models.Event{
		Name:         in.Name,
		Description:  strings.TrimSpace(in.Description),
		DepartmentID: dept.ID,
		CompanyID:    dept.CompanyID,
		HODID:        dept.HODID,
		CreatedBy:    &p.ID,
	}

	var stored *storage.Stored
	if doc != nil {
		stored, err = storage.Save(ctx, s.blob, storage.FolderDocuments, storage.DocumentExtensions, doc)
		if err != nil {
			return nil, err
		}
		e.DocumentPath, e.DocumentKey = stored.URL, stored.Key
	}

	var assigned []uuid.UUID
	err = s.store.InTx(ctx, func(tx Tx) error {
		matrix, err := raci.PrepareMatrix(ctx, tx, dept.CompanyID, in.Matrix)
		if err != nil {
			return err
		}
		if err := tx.InsertEvent(ctx, e); err != nil {
			return err
		}
		if err := tx.InsertMatrix(ctx, e.ID, matrix); err != nil {
			return err
		}
		seen := map[uuid.UUID]bool{}
		for _, a := range matrix {
			if !seen[a.UserID] {
				seen[a.UserID] = true
				assigned = append(assigned, a.UserID)
			}
		}
		return nil
	})
	if err != nil {
		if stored != nil {
			if derr := s.blob.Delete(context.WithoutCancel(ctx), stored.Key); derr != nil {
				s.logger.Warn("delete orphaned document failed", zap.String("key", stored.Key), zap.Error(derr))
			}
		}
		if apperr.KindOf(err) == apperr.KindInternal {
			s.logger.Error("create event failed", zap.Error(err))
		}
		return nil, err
	}

	s.logger.Info("event created", zap.String("event_id", e.ID.String()), zap.Int("assignments", len(in.Matrix)))
	if s.cache != nil {
		if err := s.cache.Bump(ctx, cache.CompanyScope(e.CompanyID), cache.PlatformScope); err != nil {
			s.logger.Warn("cache invalidation failed", zap.Error(err))
		}
	}
	if s.notifier != nil && len(assigned) > 0 {
		s.notifier.EventAssigned(ctx, e, assigned)
	}
	return s.Get(ctx, p, e.ID)
}

// Get returns an event the principal may read, with its matrix and trackers.
func (s *Service) Get(ctx context.Context, p authz.Principal, id uuid.UUID) (*Detail, error) {
	matrix, err := s.matrix.Matrix(ctx, p, id)
	if err != nil {
		return nil, err
	}
	e, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	trackers, err := s.store.EventTrackers(ctx, id)
	if err != nil {
		return nil, err
	}
	return &Detail{Event: *e, Matrix: matrix, Trackers: trackers}, nil
}

// ListQuery is what a caller may filter a listing by.
type ListQuery struct {
	DepartmentID *uuid.UUID
	Status       models.ApprovalStatus
	Search       string
}

// List returns events visible to p: the whole company for admins, the own department for
// HODs, and assigned events for users.
func (s *Service) List(ctx context.Context, p authz.Principal, q ListQuery, page pagination.Params) ([]models.Event, pagination.Meta, error) {
	if q.Status != "" && q.Status != models.StatusPending && q.Status != models.StatusApproved && q.Status != models.StatusRejected {
		return nil, pagination.Meta{}, apperr.Validation("unknown status %q", q.Status)
	}
	f := ListFilter{CompanyID: p.CompanyID, Status: q.Status, Search: strings.TrimSpace(q.Search)}
	switch p.Role {
	case models.RoleCompanyAdmin:
		f.DepartmentID = q.DepartmentID
	case models.RoleHOD:
		if q.DepartmentID != nil && *q.DepartmentID != p.DepartmentID {
			return nil, pagination.Meta{}, apperr.Authorization("access limited to your department")
		}
		if p.DepartmentID == uuid.Nil {
			return []models.Event{}, pagination.NewMeta(page, 0), nil
		}
		f.DepartmentID = &p.DepartmentID
	case models.RoleUser:
		f.AssigneeID = &p.ID
		f.DepartmentID = q.DepartmentID
	default:
		return nil, pagination.Meta{}, apperr.Authorization("website admins cannot access tenant resources")
	}
	list, total, err := s.store.List(ctx, f, page)
	if err != nil {
		return nil, pagination.Meta{}, err
	}
	return list, pagination.NewMeta(page, total), nil
}

// MyTrackers lists the principal's trackers.
func (s *Service) MyTrackers(ctx context.Context, p authz.Principal) ([]models.EventTracker, error) {
	if p.IsWebsiteAdmin() {
		return nil, apperr.Authorization("website admins have no trackers")
	}
	return s.store.UserTrackers(ctx, p.ID)
}

// UpdateTracker changes the status of a tracker. Users update their own; admins and the
// event department's HOD may update any in scope.
func (s *Service) UpdateTracker(ctx context.Context, p authz.Principal, id uuid.UUID, status models.TrackerStatus) (*models.EventTracker, error) {
	if !status.Valid() {
		return nil, apperr.Validation("status must be pending, in_progress or completed")
	}
	ref, err := s.store.Tracker(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authz.Check(p, authz.Scope{Resource: authz.ResourceTracker, Action: authz.ActionWrite,
		CompanyID: ref.CompanyID, DepartmentID: ref.DepartmentID, OwnerID: ref.Tracker.UserID}); err != nil {
		return nil, err
	}
	t, err := s.store.UpdateTrackerStatus(ctx, id, status)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		_ = s.cache.Bump(ctx, cache.CompanyScope(ref.CompanyID))
	}
	return t, nil
}
