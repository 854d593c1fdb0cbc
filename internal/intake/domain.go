// Package intake handles public intake form submissions and their
// review into client records.
package intake

import "time"

// FormStatus tracks the review lifecycle of a submission.
type FormStatus string

const (
	StatusSubmitted FormStatus = "submitted"
	StatusReviewed  FormStatus = "reviewed"
	StatusConverted FormStatus = "converted"
	StatusRejected  FormStatus = "rejected"
)

// Form represents an intake submission from the public website.
type Form struct {
	ID                    int64
	FirstName             string
	LastName              string
	Email                 string
	Phone                 string
	DateOfBirth           *time.Time
	ReasonForVisit        string
	InsuranceProvider     string
	EmergencyContactName  string
	EmergencyContactPhone string
	ConsentAccepted       bool
	Status                FormStatus
	ReviewedBy            *int64
	ClientID              *int64
	CreatedAt             time.Time
	UpdatedAt             time.Time
}
