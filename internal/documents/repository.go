package documents

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tidewater-health/tidewater/internal/shared"
)

// Repository defines persistence operations for clinical notes.
type Repository interface {
	List(ctx context.Context, filters ListFilters) ([]Note, error)
	Get(ctx context.Context, id int64) (Note, error)
	OwnerID(ctx context.Context, id int64) (int64, bool, error)
	Create(ctx context.Context, n Note) (Note, error)
	Update(ctx context.Context, id int64, n Note) (Note, error)
	Sign(ctx context.Context, id int64) (Note, error)
	Delete(ctx context.Context, id int64) error
}

// PGRepository provides PostgreSQL backed persistence.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const noteColumns = `id, client_id, session_id, author_id, kind, title, body, signed_at, created_at, updated_at`

// List returns notes matching the filters, newest first.
func (r *PGRepository) List(ctx context.Context, filters ListFilters) ([]Note, error) {
	where := []string{"1=1"}
	args := []any{}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if filters.ClientID != 0 {
		where = append(where, "client_id = "+arg(filters.ClientID))
	}
	if filters.AuthorID != 0 {
		where = append(where, "author_id = "+arg(filters.AuthorID))
	}
	if filters.Kind != "" {
		where = append(where, "kind = "+arg(string(filters.Kind)))
	}
	query := `SELECT ` + noteColumns + ` FROM clinical_notes WHERE ` +
		strings.Join(where, " AND ") + ` ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Note
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// Get fetches a single note.
func (r *PGRepository) Get(ctx context.Context, id int64) (Note, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+noteColumns+` FROM clinical_notes WHERE id = $1`, id)
	n, err := scanNote(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Note{}, shared.ErrNotFound
		}
		return Note{}, err
	}
	return n, nil
}

// OwnerID resolves the note's author. ok is false when the note does
// not exist.
func (r *PGRepository) OwnerID(ctx context.Context, id int64) (int64, bool, error) {
	var authorID int64
	err := r.pool.QueryRow(ctx, `SELECT author_id FROM clinical_notes WHERE id = $1`, id).Scan(&authorID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return authorID, true, nil
}

// Create inserts a note.
func (r *PGRepository) Create(ctx context.Context, n Note) (Note, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO clinical_notes (client_id, session_id, author_id, kind, title, body, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		 RETURNING `+noteColumns,
		n.ClientID, n.SessionID, n.AuthorID, string(n.Kind), n.Title, n.Body)
	return scanNote(row)
}

// Update mutates an unsigned note's content.
func (r *PGRepository) Update(ctx context.Context, id int64, n Note) (Note, error) {
	row := r.pool.QueryRow(ctx,
		`UPDATE clinical_notes SET kind = $2, title = $3, body = $4, updated_at = NOW()
		 WHERE id = $1
		 RETURNING `+noteColumns,
		id, string(n.Kind), n.Title, n.Body)
	updated, err := scanNote(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Note{}, shared.ErrNotFound
		}
		return Note{}, err
	}
	return updated, nil
}

// Sign stamps the signature time, locking the note.
func (r *PGRepository) Sign(ctx context.Context, id int64) (Note, error) {
	row := r.pool.QueryRow(ctx,
		`UPDATE clinical_notes SET signed_at = NOW(), updated_at = NOW()
		 WHERE id = $1
		 RETURNING `+noteColumns, id)
	signed, err := scanNote(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Note{}, shared.ErrNotFound
		}
		return Note{}, err
	}
	return signed, nil
}

// Delete removes a note.
func (r *PGRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM clinical_notes WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func scanNote(row pgx.Row) (Note, error) {
	var n Note
	var kind string
	err := row.Scan(&n.ID, &n.ClientID, &n.SessionID, &n.AuthorID, &kind,
		&n.Title, &n.Body, &n.SignedAt, &n.CreatedAt, &n.UpdatedAt)
	if err != nil {
		return Note{}, err
	}
	n.Kind = NoteKind(kind)
	return n, nil
}

var _ Repository = (*PGRepository)(nil)
