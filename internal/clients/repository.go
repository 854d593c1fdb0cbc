package clients

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tidewater-health/tidewater/internal/shared"
)

// Repository defines persistence operations for client records.
type Repository interface {
	List(ctx context.Context, filters ListFilters) ([]Client, int, error)
	Get(ctx context.Context, id int64) (Client, error)
	OwnerID(ctx context.Context, id int64) (int64, bool, error)
	Create(ctx context.Context, c Client) (Client, error)
	Update(ctx context.Context, id int64, c Client) (Client, error)
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

const clientColumns = `id, first_name, last_name, email, phone, date_of_birth, status, clinician_id, referral_id, notes, created_at, updated_at`

// List returns clients matching the filters plus the unpaged total.
func (r *PGRepository) List(ctx context.Context, filters ListFilters) ([]Client, int, error) {
	where := []string{"1=1"}
	args := []any{}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if filters.Status != "" {
		where = append(where, "status = "+arg(string(filters.Status)))
	}
	if filters.ClinicianID != 0 {
		where = append(where, "clinician_id = "+arg(filters.ClinicianID))
	}
	if filters.Search != "" {
		pattern := "%" + strings.ToLower(filters.Search) + "%"
		where = append(where, "(LOWER(first_name) LIKE "+arg(pattern)+" OR LOWER(last_name) LIKE "+arg(pattern)+" OR LOWER(email) LIKE "+arg(pattern)+")")
	}
	clause := strings.Join(where, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM clients WHERE `+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	page := shared.NewPagination(filters.Page, filters.PerPage, total)
	query := `SELECT ` + clientColumns + ` FROM clients WHERE ` + clause +
		` ORDER BY last_name, first_name LIMIT ` + arg(page.PerPage) + ` OFFSET ` + arg(page.Offset())
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, c)
	}
	return out, total, rows.Err()
}

// Get fetches a single client record.
func (r *PGRepository) Get(ctx context.Context, id int64) (Client, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+clientColumns+` FROM clients WHERE id = $1`, id)
	c, err := scanClient(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Client{}, shared.ErrNotFound
		}
		return Client{}, err
	}
	return c, nil
}

// OwnerID resolves the clinician owning a client record. ok is false
// when the record does not exist.
func (r *PGRepository) OwnerID(ctx context.Context, id int64) (int64, bool, error) {
	var ownerID int64
	err := r.pool.QueryRow(ctx, `SELECT clinician_id FROM clients WHERE id = $1`, id).Scan(&ownerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return ownerID, true, nil
}

// Create inserts a new client record.
func (r *PGRepository) Create(ctx context.Context, c Client) (Client, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO clients (first_name, last_name, email, phone, date_of_birth, status, clinician_id, referral_id, notes, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
		 RETURNING `+clientColumns,
		c.FirstName, c.LastName, c.Email, c.Phone, c.DateOfBirth, string(c.Status), c.ClinicianID, c.ReferralID, c.Notes)
	return scanClient(row)
}

// Update mutates a client record.
func (r *PGRepository) Update(ctx context.Context, id int64, c Client) (Client, error) {
	row := r.pool.QueryRow(ctx,
		`UPDATE clients SET first_name = $2, last_name = $3, email = $4, phone = $5,
		        date_of_birth = $6, status = $7, clinician_id = $8, notes = $9, updated_at = NOW()
		 WHERE id = $1
		 RETURNING `+clientColumns,
		id, c.FirstName, c.LastName, c.Email, c.Phone, c.DateOfBirth, string(c.Status), c.ClinicianID, c.Notes)
	updated, err := scanClient(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Client{}, shared.ErrNotFound
		}
		return Client{}, err
	}
	return updated, nil
}

// Delete removes a client record.
func (r *PGRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM clients WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func scanClient(row pgx.Row) (Client, error) {
	var c Client
	var status string
	err := row.Scan(&c.ID, &c.FirstName, &c.LastName, &c.Email, &c.Phone,
		&c.DateOfBirth, &status, &c.ClinicianID, &c.ReferralID, &c.Notes,
		&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return Client{}, err
	}
	c.Status = Status(status)
	return c, nil
}

var _ Repository = (*PGRepository)(nil)
