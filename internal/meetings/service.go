// Package meetings schedules meetings on events with a validated set of guests.
package meetings

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/raci-tracker/backend/internal/authz"
	"github.com/raci-tracker/backend/internal/models"
	"github.com/raci-tracker/backend/pkg/apperr"
)

// CreateInput is the body of POST /api/meetings.
type CreateInput struct {
	EventID      uuid.UUID   `json:"eventId" binding:"required"`
	MeetingDate  time.Time   `json:"meetingDate" binding:"required"`
	Title        string      `json:"title" binding:"required,max=255"`
	Description  string      `json:"description" binding:"max=5000"`
	MeetingURL   string      `json:"meetingUrl" binding:"omitempty,url,max=2048"`
	GuestUserIDs []uuid.UUID `json:"guestUserIds"`
}

// UpdateInput is the body of PUT /api/meetings/:id. A non-nil GuestUserIDs replaces the set.
type UpdateInput struct {
	MeetingDate  *time.Time  `json:"meetingDate"`
	Title        *string     `json:"title" binding:"omitempty,min=1,max=255"`
	Description  *string     `json:"description" binding:"omitempty,max=5000"`
	MeetingURL   *string     `json:"meetingUrl" binding:"omitempty,max=2048"`
	GuestUserIDs []uuid.UUID `json:"guestUserIds"`
}

// Notifier is told about guests newly invited to a meeting.
type Notifier interface {
	MeetingScheduled(ctx context.Context, m Meeting, guestIDs []uuid.UUID)
}

// Service implements meeting operations.
type Service struct {
	store    Store
	notifier Notifier
	logger   *zap.Logger
}

// NewService creates a meetings service. notifier may be nil.
func NewService(store Store, notifier Notifier, logger *zap.Logger) *Service {
	return &Service{store: store, notifier: notifier, logger: logger}
}

func contains(ids []uuid.UUID, id uuid.UUID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// guests collapses duplicates and checks that every guest belongs to the company.
func (s *Service) guests(ctx context.Context, companyID uuid.UUID, ids []uuid.UUID) ([]uuid.UUID, error) {
	set := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil {
			return nil, apperr.Validation("guestUserIds must not contain empty ids")
		}
		if !contains(set, id) {
			set = append(set, id)
		}
	}
	if len(set) == 0 {
		return set, nil
	}
	found, err := s.store.CompanyUserIDs(ctx, companyID, set)
	if err != nil {
		return nil, err
	}
	for _, id := range set {
		if !found[id] {
			return nil, apperr.Validation("guest %s is not a user of this company", id)
		}
	}
	return set, nil
}

func writeScope(companyID, departmentID uuid.UUID) authz.Scope {
	return authz.Scope{Resource: authz.ResourceMeeting, Action: authz.ActionWrite, CompanyID: companyID, DepartmentID: departmentID}
}

func (s *Service) notify(ctx context.Context, m *Meeting, before []uuid.UUID) {
	if s.notifier == nil {
		return
	}
	var added []uuid.UUID
	for _, id := range m.GuestIDs {
		if !contains(before, id) {
			added = append(added, id)
		}
	}
	if len(added) > 0 {
		s.notifier.MeetingScheduled(ctx, *m, added)
	}
}

// ListByEvent returns an event's meetings. Principals without access to the event's
// department see only the meetings they are invited to.
func (s *Service) ListByEvent(ctx context.Context, p authz.Principal, eventID uuid.UUID) ([]Meeting, error) {
	e, err := s.store.Event(ctx, eventID)
	if err != nil {
		return nil, err
	}
	var guest *uuid.UUID
	err = authz.Check(p, authz.Scope{Resource: authz.ResourceMeeting, Action: authz.ActionRead, CompanyID: e.CompanyID, DepartmentID: e.DepartmentID})
	if apperr.KindOf(err) == apperr.KindAuthorization && !p.IsWebsiteAdmin() {
		guest, err = &p.ID, nil
	}
	if err != nil {
		return nil, err
	}
	return s.store.ListByEvent(ctx, eventID, guest)
}

// Get returns one meeting to its department's readers and to its guests.
func (s *Service) Get(ctx context.Context, p authz.Principal, id uuid.UUID) (*Meeting, error) {
	m, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	sc := authz.Scope{Resource: authz.ResourceMeeting, Action: authz.ActionRead, CompanyID: m.CompanyID, DepartmentID: m.DepartmentID}
	if contains(m.GuestIDs, p.ID) {
		sc.OwnerID = p.ID
	}
	if err := authz.Check(p, sc); err != nil {
		return nil, err
	}
	return m, nil
}

// Create schedules a meeting on an event.
func (s *Service) Create(ctx context.Context, p authz.Principal, in CreateInput) (*Meeting, error) {
	e, err := s.store.Event(ctx, in.EventID)
	if err != nil {
		return nil, err
	}
	if err := authz.Check(p, writeScope(e.CompanyID, e.DepartmentID)); err != nil {
		return nil, err
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, apperr.Validation("title is required")
	}
	if in.MeetingDate.IsZero() {
		return nil, apperr.Validation("meetingDate is required")
	}
	guests, err := s.guests(ctx, e.CompanyID, in.GuestUserIDs)
	if err != nil {
		return nil, err
	}
	m := &Meeting{
		RaciMeeting: models.RaciMeeting{
			EventID:     e.ID,
			MeetingDate: in.MeetingDate.UTC(),
			Title:       title,
			Description: strings.TrimSpace(in.Description),
			MeetingURL:  strings.TrimSpace(in.MeetingURL),
			GuestIDs:    guests,
		},
		EventName:    e.Name,
		CompanyID:    e.CompanyID,
		DepartmentID: e.DepartmentID,
	}
	if err := s.store.Save(ctx, &m.RaciMeeting); err != nil {
		return nil, err
	}
	s.logger.Info("meeting scheduled", zap.String("meeting_id", m.ID.String()), zap.String("event_id", e.ID.String()),
		zap.Int("guests", len(guests)))
	s.notify(ctx, m, nil)
	return m, nil
}

// Update changes a meeting. Guests are replaced only when GuestUserIDs is present.
func (s *Service) Update(ctx context.Context, p authz.Principal, id uuid.UUID, in UpdateInput) (*Meeting, error) {
	m, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authz.Check(p, writeScope(m.CompanyID, m.DepartmentID)); err != nil {
		return nil, err
	}
	before := m.GuestIDs
	if in.MeetingDate != nil {
		m.MeetingDate = in.MeetingDate.UTC()
	}
	if in.Title != nil {
		if m.Title = strings.TrimSpace(*in.Title); m.Title == "" {
			return nil, apperr.Validation("title must not be empty")
		}
	}
	if in.Description != nil {
		m.Description = strings.TrimSpace(*in.Description)
	}
	if in.MeetingURL != nil {
		m.MeetingURL = strings.TrimSpace(*in.MeetingURL)
	}
	if in.GuestUserIDs != nil {
		if m.GuestIDs, err = s.guests(ctx, m.CompanyID, in.GuestUserIDs); err != nil {
			return nil, err
		}
	}
	if err := s.store.Save(ctx, &m.RaciMeeting); err != nil {
		return nil, err
	}
	s.notify(ctx, m, before)
	return m, nil
}

// Delete removes a meeting.
func (s *Service) Delete(ctx context.Context, p authz.Principal, id uuid.UUID) error {
	m, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := authz.Check(p, writeScope(m.CompanyID, m.DepartmentID)); err != nil {
		return err
	}
	return s.store.Delete(ctx, id)
}
