package scheduling

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tidewater-health/tidewater/internal/shared"
)

// Repository defines persistence operations for session records.
type Repository interface {
	List(ctx context.Context, filters ListFilters) ([]Session, error)
	Get(ctx context.Context, id int64) (Session, error)
	OwnerID(ctx context.Context, id int64) (int64, bool, error)
	Create(ctx context.Context, s Session) (Session, error)
	Update(ctx context.Context, id int64, s Session) (Session, error)
	UpdateStatus(ctx context.Context, id int64, status SessionStatus) (Session, error)
	Delete(ctx context.Context, id int64) error
	CountOverlapping(ctx context.Context, s Session) (int, error)
}

// PGRepository provides PostgreSQL backed persistence.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const sessionColumns = `id, client_id, clinician_id, kind, status, starts_at, ends_at, location, notes, created_at, updated_at`

// List returns sessions matching the filters ordered by start time.
func (r *PGRepository) List(ctx context.Context, filters ListFilters) ([]Session, error) {
	where := []string{"1=1"}
	args := []any{}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if filters.ClinicianID != 0 {
		where = append(where, "clinician_id = "+arg(filters.ClinicianID))
	}
	if filters.ClientID != 0 {
		where = append(where, "client_id = "+arg(filters.ClientID))
	}
	if filters.Status != "" {
		where = append(where, "status = "+arg(string(filters.Status)))
	}
	if !filters.From.IsZero() {
		where = append(where, "starts_at >= "+arg(filters.From))
	}
	if !filters.To.IsZero() {
		where = append(where, "starts_at < "+arg(filters.To))
	}
	query := `SELECT ` + sessionColumns + ` FROM sessions_schedule WHERE ` +
		strings.Join(where, " AND ") + ` ORDER BY starts_at`
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var sessions []Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// Get fetches a single session record.
func (r *PGRepository) Get(ctx context.Context, id int64) (Session, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+sessionColumns+` FROM sessions_schedule WHERE id = $1`, id)
	s, err := scanSession(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Session{}, shared.ErrNotFound
		}
		return Session{}, err
	}
	return s, nil
}

// OwnerID resolves the clinician owning a session record.
func (r *PGRepository) OwnerID(ctx context.Context, id int64) (int64, bool, error) {
	var ownerID int64
	err := r.pool.QueryRow(ctx, `SELECT clinician_id FROM sessions_schedule WHERE id = $1`, id).Scan(&ownerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return ownerID, true, nil
}

// Create inserts a new session record.
func (r *PGRepository) Create(ctx context.Context, s Session) (Session, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO sessions_schedule (client_id, clinician_id, kind, status, starts_at, ends_at, location, notes, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
		 RETURNING `+sessionColumns,
		s.ClientID, s.ClinicianID, string(s.Kind), string(s.Status), s.StartsAt, s.EndsAt, s.Location, s.Notes)
	return scanSession(row)
}

// Update reschedules or edits a session.
func (r *PGRepository) Update(ctx context.Context, id int64, s Session) (Session, error) {
	row := r.pool.QueryRow(ctx,
		`UPDATE sessions_schedule SET kind = $2, starts_at = $3, ends_at = $4, location = $5, notes = $6, updated_at = NOW()
		 WHERE id = $1 RETURNING `+sessionColumns,
		id, string(s.Kind), s.StartsAt, s.EndsAt, s.Location, s.Notes)
	updated, err := scanSession(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Session{}, shared.ErrNotFound
		}
		return Session{}, err
	}
	return updated, nil
}

// UpdateStatus moves a session through its lifecycle.
func (r *PGRepository) UpdateStatus(ctx context.Context, id int64, status SessionStatus) (Session, error) {
	row := r.pool.QueryRow(ctx,
		`UPDATE sessions_schedule SET status = $2, updated_at = NOW() WHERE id = $1 RETURNING `+sessionColumns,
		id, string(status))
	updated, err := scanSession(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Session{}, shared.ErrNotFound
		}
		return Session{}, err
	}
	return updated, nil
}

// Delete removes a session record.
func (r *PGRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM sessions_schedule WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// CountOverlapping counts scheduled sessions for the same clinician
// overlapping the candidate window.
func (r *PGRepository) CountOverlapping(ctx context.Context, s Session) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM sessions_schedule
		 WHERE clinician_id = $1 AND status = 'scheduled' AND id <> $2
		   AND starts_at < $4 AND ends_at > $3`,
		s.ClinicianID, s.ID, s.StartsAt, s.EndsAt).Scan(&count)
	return count, err
}

func scanSession(row pgx.Row) (Session, error) {
	var s Session
	var kind, status string
	err := row.Scan(&s.ID, &s.ClientID, &s.ClinicianID, &kind, &status,
		&s.StartsAt, &s.EndsAt, &s.Location, &s.Notes, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return Session{}, err
	}
	s.Kind = SessionKind(kind)
	s.Status = SessionStatus(status)
	return s, nil
}

var _ Repository = (*PGRepository)(nil)
