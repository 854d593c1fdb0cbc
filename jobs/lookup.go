package jobs

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGLookup resolves task details straight from the database. The worker
// runs in a separate process, so it queries the tables directly instead
// of going through the API services.
type PGLookup struct {
	pool *pgxpool.Pool
}

// NewPGLookup constructs a lookup backed by the shared pool.
func NewPGLookup(pool *pgxpool.Pool) *PGLookup {
	return &PGLookup{pool: pool}
}

// ReminderInfo loads the client and clinician details for a session
// that is still on the calendar.
func (l *PGLookup) ReminderInfo(ctx context.Context, sessionID int64) (ReminderInfo, bool, error) {
	var info ReminderInfo
	err := l.pool.QueryRow(ctx,
		`SELECT c.first_name || ' ' || c.last_name, c.email, u.first_name || ' ' || u.last_name, s.starts_at, s.location
		 FROM sessions_schedule s
		 JOIN clients c ON c.id = s.client_id
		 JOIN users u ON u.id = s.clinician_id
		 WHERE s.id = $1 AND s.status = 'scheduled'`,
		sessionID).Scan(&info.ClientName, &info.ClientEmail, &info.Clinician, &info.StartsAt, &info.Location)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ReminderInfo{}, false, nil
		}
		return ReminderInfo{}, false, err
	}
	return info, true, nil
}

// FollowUpInfo loads an intake form that is still awaiting review.
func (l *PGLookup) FollowUpInfo(ctx context.Context, formID int64) (FollowUpInfo, bool, error) {
	var info FollowUpInfo
	err := l.pool.QueryRow(ctx,
		`SELECT id, first_name || ' ' || last_name, email, created_at
		 FROM intake_forms
		 WHERE id = $1 AND status = 'submitted'`,
		formID).Scan(&info.FormID, &info.Applicant, &info.Email, &info.Submitted)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return FollowUpInfo{}, false, nil
		}
		return FollowUpInfo{}, false, err
	}
	return info, true, nil
}

var (
	_ SessionLookup = (*PGLookup)(nil)
	_ FormLookup    = (*PGLookup)(nil)
)
