package users

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tidewater-health/tidewater/internal/authz"
	"github.com/tidewater-health/tidewater/internal/shared"
)

// Repository defines persistence operations for user management.
type Repository interface {
	List(ctx context.Context) ([]User, error)
	Get(ctx context.Context, id int64) (User, error)
	Create(ctx context.Context, u NewUser, passwordHash string) (User, error)
	Update(ctx context.Context, id int64, u Update) (User, error)
	Deactivate(ctx context.Context, id int64) error
}

// PGRepository provides PostgreSQL backed persistence.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const userColumns = `id, email, username, first_name, last_name, role, is_active, created_at, updated_at`

// List returns all users ordered by id.
func (r *PGRepository) List(ctx context.Context) ([]User, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var users []User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

// Get fetches a single user.
func (r *PGRepository) Get(ctx context.Context, id int64) (User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, shared.ErrNotFound
		}
		return User{}, err
	}
	return user, nil
}

// Create inserts a new account. Unique violations on email/username
// surface as pgconn errors for upstream conflict mapping.
func (r *PGRepository) Create(ctx context.Context, u NewUser, passwordHash string) (User, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO users (email, username, password_hash, first_name, last_name, role, is_active, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, TRUE, NOW(), NOW())
		 RETURNING `+userColumns,
		u.Email, u.Username, passwordHash, u.FirstName, u.LastName, string(u.Role))
	return scanUser(row)
}

// Update mutates account fields.
func (r *PGRepository) Update(ctx context.Context, id int64, u Update) (User, error) {
	row := r.pool.QueryRow(ctx,
		`UPDATE users SET first_name = $2, last_name = $3, role = $4,
		        is_active = COALESCE($5, is_active), updated_at = NOW()
		 WHERE id = $1
		 RETURNING `+userColumns,
		id, u.FirstName, u.LastName, string(u.Role), u.IsActive)
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, shared.ErrNotFound
		}
		return User{}, err
	}
	return user, nil
}

// Deactivate disables an account without destroying its history.
func (r *PGRepository) Deactivate(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET is_active = FALSE, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func scanUser(row pgx.Row) (User, error) {
	var user User
	var role string
	err := row.Scan(&user.ID, &user.Email, &user.Username, &user.FirstName,
		&user.LastName, &role, &user.IsActive, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return User{}, err
	}
	user.Role = authz.Role(role)
	return user, nil
}

var _ Repository = (*PGRepository)(nil)
