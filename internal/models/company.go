package models

import (
	"time"

	"github.com/google/uuid"
)

// Company is the tenant root.
type Company struct {
	ID        uuid.UUID        `json:"id"`
	Name      string           `json:"name"`
	LogoURL   string           `json:"logoUrl,omitempty"`
	LogoKey   string           `json:"-"`
	Domain    string           `json:"domain,omitempty"`
	Industry  string           `json:"industry,omitempty"`
	Size      string           `json:"size,omitempty"`
	Settings  *CompanySettings `json:"settings,omitempty"`
	CreatedAt time.Time        `json:"createdAt"`
	UpdatedAt time.Time        `json:"updatedAt"`
}

// ApprovalWorkflow selects how approval levels of a chain may be decided.
type ApprovalWorkflow string

const (
	WorkflowSequential ApprovalWorkflow = "sequential"
	WorkflowParallel   ApprovalWorkflow = "parallel"
)

// DefaultApprover decides who may act on an approval without a designated approver.
type DefaultApprover string

const (
	ApproverDepartmentHead   DefaultApprover = "department_head"
	ApproverCompanyAdmin     DefaultApprover = "company_admin"
	ApproverAssignedApprover DefaultApprover = "assigned_approver"
)

// CompanySettings is the persisted approval configuration of a company.
type CompanySettings struct {
	CompanyID              uuid.UUID        `json:"-"`
	ApprovalWorkflow       ApprovalWorkflow `json:"approvalWorkflow"`
	DefaultApprover        DefaultApprover  `json:"defaultApprover"`
	AllowRejectionFeedback bool             `json:"allowRejectionFeedback"`
	NotifyOnApproval       bool             `json:"notifyOnApproval"`
	NotifyOnRejection      bool             `json:"notifyOnRejection"`
	UpdatedAt              time.Time        `json:"updatedAt"`
}

// DefaultCompanySettings returns the settings a new company starts with.
func DefaultCompanySettings(companyID uuid.UUID) CompanySettings {
	return CompanySettings{
		CompanyID:              companyID,
		ApprovalWorkflow:       WorkflowSequential,
		DefaultApprover:        ApproverDepartmentHead,
		AllowRejectionFeedback: true,
		NotifyOnApproval:       true,
		NotifyOnRejection:      true,
	}
}

// Department belongs to one company. HODID is a back-reference, not ownership.
type Department struct {
	ID        uuid.UUID  `json:"id"`
	Name      string     `json:"name"`
	CompanyID uuid.UUID  `json:"companyId"`
	HODID     *uuid.UUID `json:"hodId,omitempty"`
	HODName   string     `json:"hodName,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}
