package crm

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tidewater-health/tidewater/internal/shared"
)

// Repository defines persistence operations for the CRM module.
type Repository interface {
	ListLeads(ctx context.Context, status LeadStatus) ([]Lead, error)
	GetLead(ctx context.Context, id int64) (Lead, error)
	CreateLead(ctx context.Context, l Lead) (Lead, error)
	UpdateLeadStatus(ctx context.Context, id int64, status LeadStatus) (Lead, error)

	ListReferralSources(ctx context.Context) ([]ReferralSource, error)
	CreateReferralSource(ctx context.Context, rs ReferralSource) (ReferralSource, error)
	UpdateReferralSource(ctx context.Context, id int64, rs ReferralSource) (ReferralSource, error)

	ListCampaigns(ctx context.Context) ([]Campaign, error)
	CreateCampaign(ctx context.Context, c Campaign) (Campaign, error)

	CollectStats(ctx context.Context) (Stats, error)
}

// PGRepository provides PostgreSQL backed persistence.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const leadColumns = `id, first_name, last_name, email, phone, source, campaign_id, status, notes, created_at, updated_at`

// ListLeads returns leads, optionally filtered by status.
func (r *PGRepository) ListLeads(ctx context.Context, status LeadStatus) ([]Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM crm_leads`
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
	var leads []Lead
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		leads = append(leads, l)
	}
	return leads, rows.Err()
}

// GetLead fetches a single lead.
func (r *PGRepository) GetLead(ctx context.Context, id int64) (Lead, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+leadColumns+` FROM crm_leads WHERE id = $1`, id)
	l, err := scanLead(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Lead{}, shared.ErrNotFound
		}
		return Lead{}, err
	}
	return l, nil
}

// CreateLead inserts a new lead.
func (r *PGRepository) CreateLead(ctx context.Context, l Lead) (Lead, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO crm_leads (first_name, last_name, email, phone, source, campaign_id, status, notes, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
		 RETURNING `+leadColumns,
		l.FirstName, l.LastName, l.Email, l.Phone, l.Source, l.CampaignID, string(l.Status), l.Notes)
	return scanLead(row)
}

// UpdateLeadStatus moves a lead through the funnel.
func (r *PGRepository) UpdateLeadStatus(ctx context.Context, id int64, status LeadStatus) (Lead, error) {
	row := r.pool.QueryRow(ctx,
		`UPDATE crm_leads SET status = $2, updated_at = NOW() WHERE id = $1 RETURNING `+leadColumns,
		id, string(status))
	l, err := scanLead(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Lead{}, shared.ErrNotFound
		}
		return Lead{}, err
	}
	return l, nil
}

const referralColumns = `id, name, organization, email, phone, specialty, active, created_at, updated_at`

// ListReferralSources returns all referral sources.
func (r *PGRepository) ListReferralSources(ctx context.Context) ([]ReferralSource, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+referralColumns+` FROM referral_sources ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var sources []ReferralSource
	for rows.Next() {
		var rs ReferralSource
		if err := rows.Scan(&rs.ID, &rs.Name, &rs.Organization, &rs.Email, &rs.Phone,
			&rs.Specialty, &rs.Active, &rs.CreatedAt, &rs.UpdatedAt); err != nil {
			return nil, err
		}
		sources = append(sources, rs)
	}
	return sources, rows.Err()
}

// CreateReferralSource inserts a new referral source.
func (r *PGRepository) CreateReferralSource(ctx context.Context, rs ReferralSource) (ReferralSource, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO referral_sources (name, organization, email, phone, specialty, active, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, TRUE, NOW(), NOW())
		 RETURNING `+referralColumns,
		rs.Name, rs.Organization, rs.Email, rs.Phone, rs.Specialty)
	var out ReferralSource
	err := row.Scan(&out.ID, &out.Name, &out.Organization, &out.Email, &out.Phone,
		&out.Specialty, &out.Active, &out.CreatedAt, &out.UpdatedAt)
	return out, err
}

// UpdateReferralSource mutates a referral source.
func (r *PGRepository) UpdateReferralSource(ctx context.Context, id int64, rs ReferralSource) (ReferralSource, error) {
	row := r.pool.QueryRow(ctx,
		`UPDATE referral_sources SET name = $2, organization = $3, email = $4, phone = $5,
		        specialty = $6, active = $7, updated_at = NOW()
		 WHERE id = $1 RETURNING `+referralColumns,
		id, rs.Name, rs.Organization, rs.Email, rs.Phone, rs.Specialty, rs.Active)
	var out ReferralSource
	err := row.Scan(&out.ID, &out.Name, &out.Organization, &out.Email, &out.Phone,
		&out.Specialty, &out.Active, &out.CreatedAt, &out.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ReferralSource{}, shared.ErrNotFound
		}
		return ReferralSource{}, err
	}
	return out, nil
}

const campaignColumns = `id, name, channel, starts_at, ends_at, budget, active, created_at, updated_at`

// ListCampaigns returns all campaigns.
func (r *PGRepository) ListCampaigns(ctx context.Context) ([]Campaign, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+campaignColumns+` FROM crm_campaigns ORDER BY starts_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var campaigns []Campaign
	for rows.Next() {
		var c Campaign
		if err := rows.Scan(&c.ID, &c.Name, &c.Channel, &c.StartsAt, &c.EndsAt,
			&c.Budget, &c.Active, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		campaigns = append(campaigns, c)
	}
	return campaigns, rows.Err()
}

// CreateCampaign inserts a new campaign.
func (r *PGRepository) CreateCampaign(ctx context.Context, c Campaign) (Campaign, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO crm_campaigns (name, channel, starts_at, ends_at, budget, active, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, TRUE, NOW(), NOW())
		 RETURNING `+campaignColumns,
		c.Name, c.Channel, c.StartsAt, c.EndsAt, c.Budget)
	var out Campaign
	err := row.Scan(&out.ID, &out.Name, &out.Channel, &out.StartsAt, &out.EndsAt,
		&out.Budget, &out.Active, &out.CreatedAt, &out.UpdatedAt)
	return out, err
}

// CollectStats aggregates the funnel counters in one round trip per
// table.
func (r *PGRepository) CollectStats(ctx context.Context) (Stats, error) {
	stats := Stats{LeadsByStatus: make(map[string]int)}

	rows, err := r.pool.Query(ctx, `SELECT status, COUNT(*) FROM crm_leads GROUP BY status`)
	if err != nil {
		return Stats{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return Stats{}, err
		}
		stats.LeadsByStatus[status] = count
		stats.TotalLeads += count
	}
	if err := rows.Err(); err != nil {
		return Stats{}, err
	}

	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM crm_campaigns WHERE active`).Scan(&stats.ActiveCampaigns); err != nil {
		return Stats{}, err
	}
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM referral_sources WHERE active`).Scan(&stats.ReferralSources); err != nil {
		return Stats{}, err
	}
	if stats.TotalLeads > 0 {
		stats.ConversionRate = float64(stats.LeadsByStatus[string(LeadStatusConverted)]) / float64(stats.TotalLeads)
	}
	return stats, nil
}

func scanLead(row pgx.Row) (Lead, error) {
	var l Lead
	var status string
	err := row.Scan(&l.ID, &l.FirstName, &l.LastName, &l.Email, &l.Phone,
		&l.Source, &l.CampaignID, &status, &l.Notes, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return Lead{}, err
	}
	l.Status = LeadStatus(status)
	return l, nil
}

var _ Repository = (*PGRepository)(nil)
