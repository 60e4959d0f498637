package models

import (
	"time"

	"github.com/google/uuid"
)

// ApprovalStatus is the state of an approval or the aggregate state of an event.
type ApprovalStatus string

const (
	StatusPending  ApprovalStatus = "pending"
	StatusApproved ApprovalStatus = "approved"
	StatusRejected ApprovalStatus = "rejected"
)

// Terminal reports whether no further transition is allowed.
func (s ApprovalStatus) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// Event belongs to a department. Its ApprovalStatus is derived from its RACI approvals.
type Event struct {
	ID              uuid.UUID      `json:"id"`
	Name            string         `json:"name"`
	Description     string         `json:"description,omitempty"`
	DepartmentID    uuid.UUID      `json:"departmentId"`
	CompanyID       uuid.UUID      `json:"companyId"`
	HODID           *uuid.UUID     `json:"hodId,omitempty"`
	CreatedBy       *uuid.UUID     `json:"createdBy,omitempty"`
	DocumentPath    string         `json:"documentPath,omitempty"`
	DocumentKey     string         `json:"-"`
	ApprovalStatus  ApprovalStatus `json:"approvalStatus"`
	RejectionReason string         `json:"rejectionReason,omitempty"`
	ApprovedBy      *uuid.UUID     `json:"approvedBy,omitempty"`
	CreatedAt       time.Time      `json:"createdAt"`
	UpdatedAt       time.Time      `json:"updatedAt"`
}

// TrackerStatus is a per-user progress marker on an event.
type TrackerStatus string

const (
	TrackerPending    TrackerStatus = "pending"
	TrackerInProgress TrackerStatus = "in_progress"
	TrackerCompleted  TrackerStatus = "completed"
)

// Valid reports whether s is a known tracker status.
func (s TrackerStatus) Valid() bool {
	return s == TrackerPending || s == TrackerInProgress || s == TrackerCompleted
}

// EventTracker marks one user's progress on one event, independent of RACI type.
type EventTracker struct {
	ID        uuid.UUID     `json:"id"`
	EventID   uuid.UUID     `json:"eventId"`
	EventName string        `json:"eventName,omitempty"`
	UserID    uuid.UUID     `json:"userId"`
	Status    TrackerStatus `json:"status"`
	CreatedAt time.Time     `json:"createdAt"`
	UpdatedAt time.Time     `json:"updatedAt"`
}
