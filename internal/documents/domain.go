// Package documents manages clinical session notes and other practice
// documentation.
package documents

import "time"

// NoteKind categorizes a document.
type NoteKind string

const (
	KindProgressNote  NoteKind = "progress_note"
	KindIntakeSummary NoteKind = "intake_summary"
	KindTreatmentPlan NoteKind = "treatment_plan"
	KindDischarge     NoteKind = "discharge_summary"
)

// Note is a clinical document owned by its author. A signed note is
// part of the permanent record and can no longer be edited.
type Note struct {
	ID        int64
	ClientID  int64
	SessionID *int64
	AuthorID  int64
	Kind      NoteKind
	Title     string
	Body      string
	SignedAt  *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Signed reports whether the note has been locked by a signature.
func (n Note) Signed() bool {
	return n.SignedAt != nil
}

// ListFilters narrows note listings.
type ListFilters struct {
	ClientID int64
	AuthorID int64
	Kind     NoteKind
}
