package clients

import (
	"context"
	"strconv"

	"github.com/tidewater-health/tidewater/internal/authz"
	"github.com/tidewater-health/tidewater/internal/platform/httpx"
	"github.com/tidewater-health/tidewater/internal/shared"
)

// Service wraps client record business rules.
type Service struct {
	repo  Repository
	audit *shared.AuditLogger
}

// NewService constructs a Service.
func NewService(repo Repository, audit *shared.AuditLogger) *Service {
	return &Service{repo: repo, audit: audit}
}

// List returns clients matching the filters. Interns only see records
// assigned to them regardless of requested filters.
func (s *Service) List(ctx context.Context, principal *authz.Principal, filters ListFilters) ([]Client, int, error) {
	if principal != nil && !authz.HasMinimumRole(principal.Role, authz.RoleScheduler) {
		filters.ClinicianID = principal.ID
	}
	return s.repo.List(ctx, filters)
}

// Get fetches a single client record.
func (s *Service) Get(ctx context.Context, id int64) (Client, error) {
	return s.repo.Get(ctx, id)
}

// Create inserts a validated client record.
func (s *Service) Create(ctx context.Context, actor *authz.Principal, c Client) (Client, error) {
	if c.Status == "" {
		c.Status = StatusInquiry
	}
	created, err := s.repo.Create(ctx, c)
	if err != nil {
		return Client{}, err
	}
	s.recordAudit(ctx, actor, "client.create", created.ID)
	return created, nil
}

// Update mutates a client record. Discharged records are read-only.
func (s *Service) Update(ctx context.Context, actor *authz.Principal, id int64, c Client) (Client, error) {
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return Client{}, err
	}
	if existing.Status == StatusDischarged && c.Status == StatusDischarged {
		return Client{}, httpx.Validation("Discharged clients cannot be modified")
	}
	updated, err := s.repo.Update(ctx, id, c)
	if err != nil {
		return Client{}, err
	}
	s.recordAudit(ctx, actor, "client.update", id)
	return updated, nil
}

// Delete removes a client record.
func (s *Service) Delete(ctx context.Context, actor *authz.Principal, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.recordAudit(ctx, actor, "client.delete", id)
	return nil
}

// OwnerResolver exposes ownership resolution for the route guards.
func (s *Service) OwnerID(ctx context.Context, id int64) (int64, bool, error) {
	return s.repo.OwnerID(ctx, id)
}

func (s *Service) recordAudit(ctx context.Context, actor *authz.Principal, action string, entityID int64) {
	if s.audit == nil || actor == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actor.ID,
		Action:   action,
		Entity:   "client",
		EntityID: strconv.FormatInt(entityID, 10),
	})
}
