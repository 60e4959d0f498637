package models

import (
	"time"

	"github.com/google/uuid"
)

// RaciType is the RACI role of an assignment.
type RaciType string

const (
	RaciResponsible RaciType = "R"
	RaciAccountable RaciType = "A"
	RaciConsulted   RaciType = "C"
	RaciInformed    RaciType = "I"
)

// Valid reports whether t is one of R, A, C, I.
func (t RaciType) Valid() bool {
	switch t {
	case RaciResponsible, RaciAccountable, RaciConsulted, RaciInformed:
		return true
	}
	return false
}

// RaciAssignment links an event, a user and a RACI type.
type RaciAssignment struct {
	ID                uuid.UUID      `json:"id"`
	EventID           uuid.UUID      `json:"eventId"`
	Type              RaciType       `json:"type"`
	UserID            uuid.UUID      `json:"userId"`
	UserName          string         `json:"userName,omitempty"`
	FinancialLimitMin *float64       `json:"financialLimitMin,omitempty"`
	FinancialLimitMax *float64       `json:"financialLimitMax,omitempty"`
	Approvals         []RaciApproval `json:"approvals,omitempty"`
	CreatedAt         time.Time      `json:"createdAt"`
	UpdatedAt         time.Time      `json:"updatedAt"`
}

// RaciApproval is one level of an assignment's approval chain.
type RaciApproval struct {
	ID            uuid.UUID      `json:"id"`
	RaciID        uuid.UUID      `json:"raciId"`
	ApprovalLevel int            `json:"approvalLevel"`
	ApproverID    *uuid.UUID     `json:"approverId,omitempty"`
	Status        ApprovalStatus `json:"status"`
	Reason        string         `json:"reason,omitempty"`
	ApprovedBy    *uuid.UUID     `json:"approvedBy,omitempty"`
	ApprovedAt    *time.Time     `json:"approvedAt,omitempty"`
	CreatedAt     time.Time      `json:"createdAt"`
	UpdatedAt     time.Time      `json:"updatedAt"`
}

// RaciMeeting is a calendar entry tied to an event.
type RaciMeeting struct {
	ID          uuid.UUID   `json:"id"`
	EventID     uuid.UUID   `json:"eventId"`
	MeetingDate time.Time   `json:"meetingDate"`
	Title       string      `json:"title"`
	Description string      `json:"description,omitempty"`
	MeetingURL  string      `json:"meetingUrl,omitempty"`
	GuestIDs    []uuid.UUID `json:"guestUserIds"`
	CreatedAt   time.Time   `json:"createdAt"`
	UpdatedAt   time.Time   `json:"updatedAt"`
}
