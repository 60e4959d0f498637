// Package notify fans domain events out to the email queue and the realtime hub.
package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/raci-tracker/backend/internal/meetings"
	"github.com/raci-tracker/backend/internal/models"
	"github.com/raci-tracker/backend/internal/raci"
	"github.com/raci-tracker/backend/internal/realtime"
	"github.com/raci-tracker/backend/pkg/queue"
)

// EmailQueue accepts email jobs for the worker.
type EmailQueue interface {
	EnqueueEmail(ctx context.Context, payload queue.EmailPayload) error
}

// Broadcaster pushes realtime events to users.
type Broadcaster interface {
	Notify(ctx context.Context, userIDs []uuid.UUID, event string, payload interface{})
}

// Service implements auth.Mailer, raci.Notifier, events.Notifier and meetings.Notifier.
type Service struct {
	queue     EmailQueue
	hub       Broadcaster
	directory Directory
	logger    *zap.Logger
}

// NewService creates a notification service. hub may be nil.
func NewService(q EmailQueue, hub Broadcaster, directory Directory, logger *zap.Logger) *Service {
	return &Service{queue: q, hub: hub, directory: directory, logger: logger}
}

// SendOTP queues the password reset code for delivery.
func (s *Service) SendOTP(ctx context.Context, email, name, code string, ttl time.Duration) error {
	body := fmt.Sprintf("Hello %s,\n\nYour password reset code is %s. It expires in %d minutes.\n\n"+
		"If you did not request a reset, you can ignore this email.\n", greeting(name), code, int(ttl.Minutes()))
	return s.queue.EnqueueEmail(ctx, queue.EmailPayload{
		Kind:           queue.EmailOTP,
		RecipientEmail: email,
		RecipientName:  name,
		Subject:        "Your password reset code",
		Body:           body,
	})
}

func greeting(name string) string {
	if strings.TrimSpace(name) == "" {
		return "there"
	}
	return name
}

type decisionPayload struct {
	EventID        uuid.UUID             `json:"eventId"`
	EventName      string                `json:"eventName"`
	ApprovalID     uuid.UUID             `json:"approvalId"`
	Level          int                   `json:"level"`
	Status         models.ApprovalStatus `json:"status"`
	Reason         string                `json:"reason,omitempty"`
	DecidedBy      uuid.UUID             `json:"decidedBy"`
	ApprovalStatus models.ApprovalStatus `json:"approvalStatus"`
}

// ApprovalDecided tells the assignee and the event creator about a decision. Delivery failures
// are logged; the decision is already committed.
func (s *Service) ApprovalDecided(ctx context.Context, n raci.DecisionNotice) {
	ctx = context.WithoutCancel(ctx)
	ids := []uuid.UUID{n.AssigneeID}
	if n.EventOwnerID != nil && *n.EventOwnerID != n.AssigneeID {
		ids = append(ids, *n.EventOwnerID)
	}
	payload := decisionPayload{
		EventID: n.EventID, EventName: n.EventName, ApprovalID: n.ApprovalID, Level: n.Level,
		Status: n.Status, Reason: n.Reason, DecidedBy: n.DecidedBy, ApprovalStatus: n.EventStatus,
	}
	if s.hub != nil {
		s.hub.Notify(ctx, ids, realtime.EventApprovalDecided, payload)
		if n.StatusChanged {
			s.hub.Notify(ctx, ids, realtime.EventEventStatusChanged, map[string]interface{}{
				"eventId": n.EventID, "eventName": n.EventName, "approvalStatus": n.EventStatus,
			})
		}
	}

	recipients, err := s.directory.Recipients(ctx, ids)
	if err != nil {
		s.logger.Error("resolve decision recipients", zap.String("event_id", n.EventID.String()), zap.Error(err))
		return
	}
	subject := fmt.Sprintf("Approval %s: %s", n.Status, n.EventName)
	for _, r := range recipients {
		var b strings.Builder
		fmt.Fprintf(&b, "Hello %s,\n\nLevel %d approval on \"%s\" was %s.\n", greeting(r.FullName), n.Level, n.EventName, n.Status)
		if n.Reason != "" {
			fmt.Fprintf(&b, "Reason: %s\n", n.Reason)
		}
		fmt.Fprintf(&b, "The event is now %s.\n", n.EventStatus)
		err := s.queue.EnqueueEmail(ctx, queue.EmailPayload{
			Kind:           queue.EmailApprovalDecided,
			RecipientEmail: r.Email,
			RecipientName:  r.FullName,
			Subject:        subject,
			Body:           b.String(),
		})
		if err != nil {
			s.logger.Error("enqueue decision email", zap.String("user_id", r.ID.String()), zap.Error(err))
		}
	}
}

// EventAssigned pushes the new event to the users on its matrix.
func (s *Service) EventAssigned(ctx context.Context, e *models.Event, userIDs []uuid.UUID) {
	if s.hub == nil {
		return
	}
	s.hub.Notify(context.WithoutCancel(ctx), userIDs, realtime.EventEventAssigned, map[string]interface{}{
		"eventId": e.ID, "eventName": e.Name, "departmentId": e.DepartmentID,
	})
}

// MeetingScheduled pushes a meeting to newly invited guests.
func (s *Service) MeetingScheduled(ctx context.Context, m meetings.Meeting, guestIDs []uuid.UUID) {
	if s.hub == nil {
		return
	}
	s.hub.Notify(context.WithoutCancel(ctx), guestIDs, realtime.EventMeetingScheduled, map[string]interface{}{
		"meetingId": m.ID, "eventId": m.EventID, "eventName": m.EventName, "title": m.Title, "meetingDate": m.MeetingDate,
	})
}
