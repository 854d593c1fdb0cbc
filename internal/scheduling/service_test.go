package scheduling

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tidewater-health/tidewater/internal/platform/httpx"
	"github.com/tidewater-health/tidewater/internal/shared"
)

type memoryScheduleRepo struct {
	sessions map[int64]Session
	nextID   int64
}

func newMemoryScheduleRepo() *memoryScheduleRepo {
	return &memoryScheduleRepo{sessions: make(map[int64]Session)}
}

func (r *memoryScheduleRepo) List(ctx context.Context, filters ListFilters) ([]Session, error) {
	var out []Session
	for _, s := range r.sessions {
		if filters.ClinicianID != 0 && s.ClinicianID != filters.ClinicianID {
			continue
		}
		if filters.Status != "" && s.Status != filters.Status {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

func (r *memoryScheduleRepo) Get(ctx context.Context, id int64) (Session, error) {
	s, ok := r.sessions[id]
	if !ok {
		return Session{}, shared.ErrNotFound
	}
	return s, nil
}

func (r *memoryScheduleRepo) OwnerID(ctx context.Context, id int64) (int64, bool, error) {
	s, ok := r.sessions[id]
	if !ok {
		return 0, false, nil
	}
	return s.ClinicianID, true, nil
}

func (r *memoryScheduleRepo) Create(ctx context.Context, s Session) (Session, error) {
	r.nextID++
	s.ID = r.nextID
	s.CreatedAt = time.Now()
	s.UpdatedAt = s.CreatedAt
	r.sessions[s.ID] = s
	return s, nil
}

func (r *memoryScheduleRepo) Update(ctx context.Context, id int64, s Session) (Session, error) {
	existing, ok := r.sessions[id]
	if !ok {
		return Session{}, shared.ErrNotFound
	}
	existing.StartsAt = s.StartsAt
	existing.EndsAt = s.EndsAt
	existing.Location = s.Location
	existing.Notes = s.Notes
	existing.UpdatedAt = time.Now()
	r.sessions[id] = existing
	return existing, nil
}

func (r *memoryScheduleRepo) UpdateStatus(ctx context.Context, id int64, status SessionStatus) (Session, error) {
	existing, ok := r.sessions[id]
	if !ok {
		return Session{}, shared.ErrNotFound
	}
	existing.Status = status
	r.sessions[id] = existing
	return existing, nil
}

func (r *memoryScheduleRepo) Delete(ctx context.Context, id int64) error {
	if _, ok := r.sessions[id]; !ok {
		return shared.ErrNotFound
	}
	delete(r.sessions, id)
	return nil
}

func (r *memoryScheduleRepo) CountOverlapping(ctx context.Context, s Session) (int, error) {
	count := 0
	for _, existing := range r.sessions {
		if existing.ID == s.ID || existing.ClinicianID != s.ClinicianID {
			continue
		}
		if existing.Status != StatusScheduled {
			continue
		}
		if s.StartsAt.Before(existing.EndsAt) && existing.StartsAt.Before(s.EndsAt) {
			count++
		}
	}
	return count, nil
}

var _ Repository = (*memoryScheduleRepo)(nil)

type fakeReminders struct {
	scheduled []int64
}

func (f *fakeReminders) ScheduleSessionReminder(ctx context.Context, sessionID int64, startsAt time.Time) error {
	f.scheduled = append(f.scheduled, sessionID)
	return nil
}

func baseSession(clinicianID int64, start time.Time) Session {
	return Session{
		ClientID:    10,
		ClinicianID: clinicianID,
		Kind:        KindIndividual,
		StartsAt:    start,
		EndsAt:      start.Add(50 * time.Minute),
	}
}

func TestCreateSchedulesReminder(t *testing.T) {
	repo := newMemoryScheduleRepo()
	reminders := &fakeReminders{}
	svc := NewService(repo, reminders, nil)

	start := time.Now().Add(72 * time.Hour)
	created, err := svc.Create(context.Background(), baseSession(3, start))
	require.NoError(t, err)
	require.Equal(t, StatusScheduled, created.Status)
	require.Equal(t, []int64{created.ID}, reminders.scheduled)
}

func TestCreateRejectsOverlap(t *testing.T) {
	repo := newMemoryScheduleRepo()
	svc := NewService(repo, nil, nil)

	start := time.Now().Add(24 * time.Hour)
	_, err := svc.Create(context.Background(), baseSession(3, start))
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), baseSession(3, start.Add(20*time.Minute)))
	apiErr, ok := httpx.AsError(err)
	require.True(t, ok)
	require.Equal(t, httpx.CodeConflict, apiErr.Code)

	// A different clinician at the same time is fine.
	_, err = svc.Create(context.Background(), baseSession(4, start))
	require.NoError(t, err)
}

func TestCreateRejectsInvertedWindow(t *testing.T) {
	svc := NewService(newMemoryScheduleRepo(), nil, nil)

	start := time.Now().Add(24 * time.Hour)
	s := baseSession(3, start)
	s.EndsAt = start.Add(-time.Hour)
	_, err := svc.Create(context.Background(), s)
	apiErr, ok := httpx.AsError(err)
	require.True(t, ok)
	require.Equal(t, httpx.CodeValidation, apiErr.Code)
}

func TestCompleteOnlyFromScheduled(t *testing.T) {
	repo := newMemoryScheduleRepo()
	svc := NewService(repo, nil, nil)

	created, err := svc.Create(context.Background(), baseSession(3, time.Now().Add(time.Hour)))
	require.NoError(t, err)

	completed, err := svc.Complete(context.Background(), created.ID)
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, completed.Status)

	_, err = svc.Complete(context.Background(), created.ID)
	apiErr, ok := httpx.AsError(err)
	require.True(t, ok)
	require.Equal(t, httpx.CodeValidation, apiErr.Code)
}

func TestDeleteCompletedSessionRejected(t *testing.T) {
	repo := newMemoryScheduleRepo()
	svc := NewService(repo, nil, nil)

	created, err := svc.Create(context.Background(), baseSession(3, time.Now().Add(time.Hour)))
	require.NoError(t, err)
	_, err = svc.Complete(context.Background(), created.ID)
	require.NoError(t, err)

	err = svc.Delete(context.Background(), created.ID)
	apiErr, ok := httpx.AsError(err)
	require.True(t, ok)
	require.Equal(t, httpx.CodeValidation, apiErr.Code)
	require.Equal(t, "Completed sessions cannot be deleted", apiErr.Message)

	// The record is still there.
	_, err = svc.Get(context.Background(), created.ID)
	require.NoError(t, err)
}

func TestDeleteScheduledSession(t *testing.T) {
	repo := newMemoryScheduleRepo()
	svc := NewService(repo, nil, nil)

	created, err := svc.Create(context.Background(), baseSession(3, time.Now().Add(time.Hour)))
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), created.ID))
	_, err = svc.Get(context.Background(), created.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestRescheduleKeepsClinicianAndReschedulesReminder(t *testing.T) {
	repo := newMemoryScheduleRepo()
	reminders := &fakeReminders{}
	svc := NewService(repo, reminders, nil)

	created, err := svc.Create(context.Background(), baseSession(3, time.Now().Add(24*time.Hour)))
	require.NoError(t, err)

	moved := baseSession(99, time.Now().Add(96*time.Hour))
	updated, err := svc.Reschedule(context.Background(), created.ID, moved)
	require.NoError(t, err)
	stored, err := repo.Get(context.Background(), created.ID)
	require.NoError(t, err)
	require.Equal(t, int64(3), stored.ClinicianID)
	require.Equal(t, moved.StartsAt.Unix(), updated.StartsAt.Unix())
	require.Equal(t, []int64{created.ID, created.ID}, reminders.scheduled)
}

func TestCancelThenDeleteAllowed(t *testing.T) {
	repo := newMemoryScheduleRepo()
	svc := NewService(repo, nil, nil)

	created, err := svc.Create(context.Background(), baseSession(3, time.Now().Add(time.Hour)))
	require.NoError(t, err)

	cancelled, err := svc.Cancel(context.Background(), created.ID)
	require.NoError(t, err)
	require.Equal(t, StatusCancelled, cancelled.Status)

	require.NoError(t, svc.Delete(context.Background(), created.ID))
}
