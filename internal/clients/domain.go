// Package clients manages client (patient) records and their
// assignment to clinicians.
package clients

import "time"

// Status tracks where a client is in the care lifecycle.
type Status string

const (
	StatusInquiry   Status = "inquiry"
	StatusActive    Status = "active"
	StatusInactive  Status = "inactive"
	StatusDischarged Status = "discharged"
)

// Client represents a client record. ClinicianID is the owning user
// for ownership checks.
type Client struct {
	ID          int64
	FirstName   string
	LastName    string
	Email       string
	Phone       string
	DateOfBirth *time.Time
	Status      Status
	ClinicianID int64
	ReferralID  *int64
	Notes       string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ListFilters narrows client listings.
type ListFilters struct {
	Status      Status
	ClinicianID int64
	Search      string
	Page        int
	PerPage     int
}
