package crm

import (
	"context"
	"fmt"

	"github.com/tidewater-health/tidewater/internal/platform/httpx"
)

// Service wraps CRM business rules.
type Service struct {
	repo  Repository
	cache *StatsCache
}

// NewService constructs a Service.
func NewService(repo Repository, cache *StatsCache) *Service {
	return &Service{repo: repo, cache: cache}
}

// ListLeads returns leads, optionally filtered by status.
func (s *Service) ListLeads(ctx context.Context, status LeadStatus) ([]Lead, error) {
	return s.repo.ListLeads(ctx, status)
}

// GetLead fetches a single lead.
func (s *Service) GetLead(ctx context.Context, id int64) (Lead, error) {
	return s.repo.GetLead(ctx, id)
}

// CreateLead inserts a new lead starting at the top of the funnel.
func (s *Service) CreateLead(ctx context.Context, l Lead) (Lead, error) {
	if l.Status == "" {
		l.Status = LeadStatusNew
	}
	created, err := s.repo.CreateLead(ctx, l)
	if err != nil {
		return Lead{}, err
	}
	s.invalidateStats(ctx)
	return created, nil
}

// TransitionLead moves a lead through the funnel, enforcing allowed
// transitions.
func (s *Service) TransitionLead(ctx context.Context, id int64, to LeadStatus) (Lead, error) {
	lead, err := s.repo.GetLead(ctx, id)
	if err != nil {
		return Lead{}, err
	}
	if !CanTransition(lead.Status, to) {
		return Lead{}, httpx.Validation(fmt.Sprintf("Lead cannot move from %s to %s", lead.Status, to))
	}
	updated, err := s.repo.UpdateLeadStatus(ctx, id, to)
	if err != nil {
		return Lead{}, err
	}
	s.invalidateStats(ctx)
	return updated, nil
}

// ListReferralSources returns all referral sources.
func (s *Service) ListReferralSources(ctx context.Context) ([]ReferralSource, error) {
	return s.repo.ListReferralSources(ctx)
}

// CreateReferralSource inserts a referral source.
func (s *Service) CreateReferralSource(ctx context.Context, rs ReferralSource) (ReferralSource, error) {
	created, err := s.repo.CreateReferralSource(ctx, rs)
	if err != nil {
		return ReferralSource{}, err
	}
	s.invalidateStats(ctx)
	return created, nil
}

// UpdateReferralSource mutates a referral source.
func (s *Service) UpdateReferralSource(ctx context.Context, id int64, rs ReferralSource) (ReferralSource, error) {
	updated, err := s.repo.UpdateReferralSource(ctx, id, rs)
	if err != nil {
		return ReferralSource{}, err
	}
	s.invalidateStats(ctx)
	return updated, nil
}

// ListCampaigns returns all campaigns.
func (s *Service) ListCampaigns(ctx context.Context) ([]Campaign, error) {
	return s.repo.ListCampaigns(ctx)
}

// CreateCampaign inserts a campaign.
func (s *Service) CreateCampaign(ctx context.Context, c Campaign) (Campaign, error) {
	created, err := s.repo.CreateCampaign(ctx, c)
	if err != nil {
		return Campaign{}, err
	}
	s.invalidateStats(ctx)
	return created, nil
}

// Stats returns the funnel aggregates, cached.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	if s.cache == nil {
		return s.repo.CollectStats(ctx)
	}
	return s.cache.Get(ctx, s.repo.CollectStats)
}

func (s *Service) invalidateStats(ctx context.Context) {
	if s.cache != nil {
		s.cache.Invalidate(ctx)
	}
}
