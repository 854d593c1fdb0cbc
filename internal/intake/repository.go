package intake

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tidewater-health/tidewater/internal/platform/db"
	"github.com/tidewater-health/tidewater/internal/shared"
)

// Repository defines persistence operations for intake forms.
type Repository interface {
	Create(ctx context.Context, f Form) (Form, error)
	List(ctx context.Context, status FormStatus) ([]Form, error)
	Get(ctx context.Context, id int64) (Form, error)
	MarkReviewed(ctx context.Context, id, reviewerID int64, status FormStatus) error
	Convert(ctx context.Context, id, reviewerID, clinicianID int64) (clientID int64, err error)
}

// PGRepository provides PostgreSQL backed persistence.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const formColumns = `id, first_name, last_name, email, phone, date_of_birth, reason_for_visit, insurance_provider, emergency_contact_name, emergency_contact_phone, consent_accepted, status, reviewed_by, client_id, created_at, updated_at`

// Create stores a new submission.
func (r *PGRepository) Create(ctx context.Context, f Form) (Form, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO intake_forms (first_name, last_name, email, phone, date_of_birth, reason_for_visit,
		        insurance_provider, emergency_contact_name, emergency_contact_phone, consent_accepted,
		        status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW(), NOW())
		 RETURNING `+formColumns,
		f.FirstName, f.LastName, f.Email, f.Phone, f.DateOfBirth, f.ReasonForVisit,
		f.InsuranceProvider, f.EmergencyContactName, f.EmergencyContactPhone,
		f.ConsentAccepted, string(StatusSubmitted))
	return scanForm(row)
}

// List returns submissions, optionally filtered by status.
func (r *PGRepository) List(ctx context.Context, status FormStatus) ([]Form, error) {
	query := `SELECT ` + formColumns + ` FROM intake_forms`
	args := []any{}
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var forms []Form
	for rows.Next() {
		f, err := scanForm(rows)
		if err != nil {
			return nil, err
		}
		forms = append(forms, f)
	}
	return forms, rows.Err()
}

// Get fetches a single submission.
func (r *PGRepository) Get(ctx context.Context, id int64) (Form, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+formColumns+` FROM intake_forms WHERE id = $1`, id)
	f, err := scanForm(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Form{}, shared.ErrNotFound
		}
		return Form{}, err
	}
	return f, nil
}

// MarkReviewed records a review decision without conversion.
func (r *PGRepository) MarkReviewed(ctx context.Context, id, reviewerID int64, status FormStatus) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE intake_forms SET status = $2, reviewed_by = $3, updated_at = NOW() WHERE id = $1 AND status = $4`,
		id, string(status), reviewerID, string(StatusSubmitted))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Convert creates a client record from the submission and marks the
// form converted, atomically.
func (r *PGRepository) Convert(ctx context.Context, id, reviewerID, clinicianID int64) (int64, error) {
	var clientID int64
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var f Form
		row := tx.QueryRow(ctx, `SELECT `+formColumns+` FROM intake_forms WHERE id = $1 FOR UPDATE`, id)
		f, err := scanForm(row)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return shared.ErrNotFound
			}
			return err
		}
		if f.Status == StatusConverted {
			return errors.New("intake: form already converted")
		}
		if err := tx.QueryRow(ctx,
			`INSERT INTO clients (first_name, last_name, email, phone, date_of_birth, status, clinician_id, notes, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, 'inquiry', $6, $7, NOW(), NOW())
			 RETURNING id`,
			f.FirstName, f.LastName, f.Email, f.Phone, f.DateOfBirth, clinicianID, f.ReasonForVisit,
		).Scan(&clientID); err != nil {
			return err
		}
		_, err = tx.Exec(ctx,
			`UPDATE intake_forms SET status = $2, reviewed_by = $3, client_id = $4, updated_at = NOW() WHERE id = $1`,
			id, string(StatusConverted), reviewerID, clientID)
		return err
	})
	if err != nil {
		return 0, err
	}
	return clientID, nil
}

func scanForm(row pgx.Row) (Form, error) {
	var f Form
	var status string
	err := row.Scan(&f.ID, &f.FirstName, &f.LastName, &f.Email, &f.Phone,
		&f.DateOfBirth, &f.ReasonForVisit, &f.InsuranceProvider,
		&f.EmergencyContactName, &f.EmergencyContactPhone, &f.ConsentAccepted,
		&status, &f.ReviewedBy, &f.ClientID, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		return Form{}, err
	}
	f.Status = FormStatus(status)
	return f, nil
}

var _ Repository = (*PGRepository)(nil)
