package models

import (
	"time"

	"github.com/google/uuid"
)

// Role represents a principal's role. website_admin is platform level; the others are tenant scoped.
type Role string

const (
	RoleWebsiteAdmin Role = "website_admin"
	RoleCompanyAdmin Role = "company_admin"
	RoleHOD          Role = "hod"
	RoleUser         Role = "user"
)

// Valid reports whether r is a tenant user role.
func (r Role) Valid() bool {
	switch r {
	case RoleCompanyAdmin, RoleHOD, RoleUser:
		return true
	}
	return false
}

// User is a tenant user. A user belongs to exactly one company.
type User struct {
	ID                uuid.UUID  `json:"id"`
	FullName          string     `json:"fullName"`
	Email             string     `json:"email"`
	Password          string     `json:"-"`
	Phone             string     `json:"phone,omitempty"`
	Designation       string     `json:"designation,omitempty"`
	EmployeeID        string     `json:"employeeId,omitempty"`
	Role              Role       `json:"role"`
	CompanyID         uuid.UUID  `json:"companyId"`
	DepartmentID      *uuid.UUID `json:"departmentId,omitempty"`
	ApprovalAssign    bool       `json:"approvalAssign"`
	IsDefaultPassword bool       `json:"isDefaultPassword"`
	CreatedAt         time.Time  `json:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt"`
}

// WebsiteAdmin is a platform-level administrator, not scoped to any tenant.
type WebsiteAdmin struct {
	ID        uuid.UUID `json:"id"`
	FullName  string    `json:"fullName"`
	Email     string    `json:"email"`
	Password  string    `json:"-"`
	Phone     string    `json:"phone,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
