// Package scheduling manages therapy session records.
package scheduling

import "time"

// SessionStatus tracks the lifecycle of a session record.
type SessionStatus string

const (
	StatusScheduled SessionStatus = "scheduled"
	StatusCompleted SessionStatus = "completed"
	StatusCancelled SessionStatus = "cancelled"
	StatusNoShow    SessionStatus = "no_show"
)

// SessionKind categorizes the appointment type.
type SessionKind string

const (
	KindIntake     SessionKind = "intake"
	KindIndividual SessionKind = "individual"
	KindCouples    SessionKind = "couples"
	KindFamily     SessionKind = "family"
	KindGroup      SessionKind = "group"
)

// Session represents a scheduled or held appointment. ClinicianID is
// the owning user for ownership checks.
type Session struct {
	ID          int64
	ClientID    int64
	ClinicianID int64
	Kind        SessionKind
	Status      SessionStatus
	StartsAt    time.Time
	EndsAt      time.Time
	Location    string
	Notes       string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ListFilters narrows session listings.
type ListFilters struct {
	ClinicianID int64
	ClientID    int64
	Status      SessionStatus
	From        time.Time
	To          time.Time
}
