package scheduling

import (
	"context"
	"log/slog"
	"time"

	"github.com/tidewater-health/tidewater/internal/platform/httpx"
)

// ReminderScheduler enqueues session reminder delivery. Implemented by
// the jobs client; a nil scheduler disables reminders.
type ReminderScheduler interface {
	ScheduleSessionReminder(ctx context.Context, sessionID int64, startsAt time.Time) error
}

// Service wraps session scheduling rules.
type Service struct {
	repo      Repository
	reminders ReminderScheduler
	logger    *slog.Logger
}

// NewService constructs a Service.
func NewService(repo Repository, reminders ReminderScheduler, logger *slog.Logger) *Service {
	return &Service{repo: repo, reminders: reminders, logger: logger}
}

// List returns sessions matching the filters.
func (s *Service) List(ctx context.Context, filters ListFilters) ([]Session, error) {
	return s.repo.List(ctx, filters)
}

// Get fetches a single session.
func (s *Service) Get(ctx context.Context, id int64) (Session, error) {
	return s.repo.Get(ctx, id)
}

// OwnerID exposes ownership resolution for the route guards.
func (s *Service) OwnerID(ctx context.Context, id int64) (int64, bool, error) {
	return s.repo.OwnerID(ctx, id)
}

// Create books a session after checking the clinician's calendar for
// conflicts, then schedules a reminder.
func (s *Service) Create(ctx context.Context, session Session) (Session, error) {
	if err := validateWindow(session); err != nil {
		return Session{}, err
	}
	overlapping, err := s.repo.CountOverlapping(ctx, session)
	if err != nil {
		return Session{}, err
	}
	if overlapping > 0 {
		return Session{}, httpx.Conflict("Clinician already has a session in that time slot")
	}
	session.Status = StatusScheduled
	created, err := s.repo.Create(ctx, session)
	if err != nil {
		return Session{}, err
	}
	s.scheduleReminder(ctx, created)
	return created, nil
}

// Reschedule moves a scheduled session to a new window.
func (s *Service) Reschedule(ctx context.Context, id int64, session Session) (Session, error) {
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return Session{}, err
	}
	if existing.Status != StatusScheduled {
		return Session{}, httpx.Validation("Only scheduled sessions can be rescheduled")
	}
	if err := validateWindow(session); err != nil {
		return Session{}, err
	}
	session.ID = id
	session.ClinicianID = existing.ClinicianID
	overlapping, err := s.repo.CountOverlapping(ctx, session)
	if err != nil {
		return Session{}, err
	}
	if overlapping > 0 {
		return Session{}, httpx.Conflict("Clinician already has a session in that time slot")
	}
	updated, err := s.repo.Update(ctx, id, session)
	if err != nil {
		return Session{}, err
	}
	s.scheduleReminder(ctx, updated)
	return updated, nil
}

// Complete marks a held session completed.
func (s *Service) Complete(ctx context.Context, id int64) (Session, error) {
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return Session{}, err
	}
	if existing.Status != StatusScheduled {
		return Session{}, httpx.Validation("Only scheduled sessions can be completed")
	}
	return s.repo.UpdateStatus(ctx, id, StatusCompleted)
}

// Cancel marks a scheduled session cancelled.
func (s *Service) Cancel(ctx context.Context, id int64) (Session, error) {
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return Session{}, err
	}
	if existing.Status != StatusScheduled {
		return Session{}, httpx.Validation("Only scheduled sessions can be cancelled")
	}
	return s.repo.UpdateStatus(ctx, id, StatusCancelled)
}

// MarkNoShow records that the client did not attend.
func (s *Service) MarkNoShow(ctx context.Context, id int64) (Session, error) {
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return Session{}, err
	}
	if existing.Status != StatusScheduled {
		return Session{}, httpx.Validation("Only scheduled sessions can be marked as no-show")
	}
	return s.repo.UpdateStatus(ctx, id, StatusNoShow)
}

// Delete removes a session record. Completed sessions are part of the
// clinical record and cannot be deleted.
func (s *Service) Delete(ctx context.Context, id int64) error {
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if existing.Status == StatusCompleted {
		return httpx.Validation("Completed sessions cannot be deleted")
	}
	return s.repo.Delete(ctx, id)
}

func (s *Service) scheduleReminder(ctx context.Context, session Session) {
	if s.reminders == nil {
		return
	}
	if err := s.reminders.ScheduleSessionReminder(ctx, session.ID, session.StartsAt); err != nil && s.logger != nil {
		s.logger.Warn("schedule session reminder", slog.Any("error", err), slog.Int64("session_id", session.ID))
	}
}

func validateWindow(session Session) error {
	if !session.EndsAt.After(session.StartsAt) {
		return httpx.Validation("", httpx.FieldError{
			Path:    []string{"endsAt"},
			Message: "Ends at must be after starts at",
		})
	}
	if session.EndsAt.Sub(session.StartsAt) > 8*time.Hour {
		return httpx.Validation("", httpx.FieldError{
			Path:    []string{"endsAt"},
			Message: "Sessions cannot be longer than 8 hours",
		})
	}
	return nil
}
