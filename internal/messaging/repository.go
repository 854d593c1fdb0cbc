package messaging

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tidewater-health/tidewater/internal/shared"
)

// Repository defines persistence operations for message threads.
type Repository interface {
	ListThreads(ctx context.Context, userID int64) ([]Thread, error)
	GetThread(ctx context.Context, id int64) (Thread, error)
	CreateThread(ctx context.Context, t Thread) (Thread, error)
	IsParticipant(ctx context.Context, threadID, userID int64) (bool, error)
	ListMessages(ctx context.Context, threadID int64) ([]Message, error)
	CreateMessage(ctx context.Context, m Message) (Message, error)
	MarkRead(ctx context.Context, threadID, userID int64) error
}

// PGRepository provides PostgreSQL backed persistence.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const threadColumns = `id, subject, client_id, created_by, created_at, updated_at`

// ListThreads returns the threads the user participates in, most
// recently active first.
func (r *PGRepository) ListThreads(ctx context.Context, userID int64) ([]Thread, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT t.id, t.subject, t.client_id, t.created_by, t.created_at, t.updated_at
		 FROM message_threads t
		 JOIN thread_participants p ON p.thread_id = t.id
		 WHERE p.user_id = $1
		 ORDER BY t.updated_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Thread
	for rows.Next() {
		t, err := scanThread(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// GetThread fetches a thread with its participant list.
func (r *PGRepository) GetThread(ctx context.Context, id int64) (Thread, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+threadColumns+` FROM message_threads WHERE id = $1`, id)
	t, err := scanThread(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Thread{}, shared.ErrNotFound
		}
		return Thread{}, err
	}
	rows, err := r.pool.Query(ctx, `SELECT user_id FROM thread_participants WHERE thread_id = $1 ORDER BY user_id`, id)
	if err != nil {
		return Thread{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var userID int64
		if err := rows.Scan(&userID); err != nil {
			return Thread{}, err
		}
		t.Participants = append(t.Participants, userID)
	}
	return t, rows.Err()
}

// CreateThread inserts a thread and its participants atomically.
func (r *PGRepository) CreateThread(ctx context.Context, t Thread) (Thread, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return Thread{}, err
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx,
		`INSERT INTO message_threads (subject, client_id, created_by, created_at, updated_at)
		 VALUES ($1, $2, $3, NOW(), NOW())
		 RETURNING `+threadColumns,
		t.Subject, t.ClientID, t.CreatedBy)
	created, err := scanThread(row)
	if err != nil {
		return Thread{}, err
	}
	for _, userID := range t.Participants {
		if _, err := tx.Exec(ctx,
			`INSERT INTO thread_participants (thread_id, user_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			created.ID, userID); err != nil {
			return Thread{}, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return Thread{}, err
	}
	created.Participants = t.Participants
	return created, nil
}

// IsParticipant reports whether the user belongs to the thread.
func (r *PGRepository) IsParticipant(ctx context.Context, threadID, userID int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM thread_participants WHERE thread_id = $1 AND user_id = $2)`,
		threadID, userID).Scan(&exists)
	return exists, err
}

// ListMessages returns a thread's messages oldest first.
func (r *PGRepository) ListMessages(ctx context.Context, threadID int64) ([]Message, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, thread_id, sender_id, body, created_at
		 FROM messages WHERE thread_id = $1 ORDER BY created_at, id`, threadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ThreadID, &m.SenderID, &m.Body, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// CreateMessage appends a message and bumps the thread's activity time.
func (r *PGRepository) CreateMessage(ctx context.Context, m Message) (Message, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return Message{}, err
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx,
		`INSERT INTO messages (thread_id, sender_id, body, created_at)
		 VALUES ($1, $2, $3, NOW())
		 RETURNING id, thread_id, sender_id, body, created_at`,
		m.ThreadID, m.SenderID, m.Body)
	var created Message
	if err := row.Scan(&created.ID, &created.ThreadID, &created.SenderID, &created.Body, &created.CreatedAt); err != nil {
		return Message{}, err
	}
	if _, err := tx.Exec(ctx, `UPDATE message_threads SET updated_at = NOW() WHERE id = $1`, m.ThreadID); err != nil {
		return Message{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Message{}, err
	}
	return created, nil
}

// MarkRead stamps the participant's read marker at now.
func (r *PGRepository) MarkRead(ctx context.Context, threadID, userID int64) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE thread_participants SET read_at = NOW() WHERE thread_id = $1 AND user_id = $2`,
		threadID, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func scanThread(row pgx.Row) (Thread, error) {
	var t Thread
	err := row.Scan(&t.ID, &t.Subject, &t.ClientID, &t.CreatedBy, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return Thread{}, err
	}
	return t, nil
}

var _ Repository = (*PGRepository)(nil)
