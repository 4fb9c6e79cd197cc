// internal/models/directory.go
package models

import "time"

type Client struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Code string `json:"code,omitempty"`
}

type Product struct {
	ID       int64  `json:"id"`
	ClientID int64  `json:"clientId"`
	Name     string `json:"name"`
	Category string `json:"category,omitempty"`
}

type Employee struct {
	ID           string    `json:"id"`
	EmployeeCode string    `json:"employeeCode"`
	FullName     string    `json:"fullName"`
	Email        string    `json:"email"`
	Phone        string    `json:"phone,omitempty"`
	Role         string    `json:"role"`
	Department   string    `json:"department,omitempty"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// EmployeeInput carries the writable employee fields.
type EmployeeInput struct {
	EmployeeCode string `json:"employeeCode"`
	FullName     string `json:"fullName"`
	Email        string `json:"email"`
	Phone        string `json:"phone,omitempty"`
	Role         string `json:"role"`
	Department   string `json:"department,omitempty"`
}

var EmployeeRoles = []string{"ADMIN", "INVESTIGATOR", "ANALYST", "FIELD_OFFICER", "REVIEWER"}

type LoginEvent struct {
	ID         string    `json:"id"`
	EmployeeID string    `json:"employeeId,omitempty"`
	Email      string    `json:"email"`
	IPAddress  string    `json:"ipAddress,omitempty"`
	UserAgent  string    `json:"userAgent,omitempty"`
	Success    bool      `json:"success"`
	OccurredAt time.Time `json:"occurredAt"`
}

// LoginHistoryFilter narrows a login-history listing.
type LoginHistoryFilter struct {
	EmployeeID string
	Email      string
	Since      *time.Time
	Limit      int
}

type AuditEntry struct {
	EventType    string                 `json:"eventType"`
	ResourceType string                 `json:"resourceType"`
	ResourceID   string                 `json:"resourceId"`
	Actor        string                 `json:"actor,omitempty"`
	Details      map[string]interface{} `json:"details,omitempty"`
	CreatedAt    time.Time              `json:"createdAt"`
}
