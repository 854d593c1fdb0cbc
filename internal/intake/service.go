package intake

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/tidewater-health/tidewater/internal/authz"
	"github.com/tidewater-health/tidewater/internal/platform/httpx"
	"github.com/tidewater-health/tidewater/internal/shared"
)

// FollowUpScheduler enqueues the confirmation email sent after a
// public submission. A nil scheduler disables follow-ups.
type FollowUpScheduler interface {
	EnqueueIntakeFollowUp(ctx context.Context, formID int64, delay time.Duration) error
}

// Service wraps intake review business rules.
type Service struct {
	repo      Repository
	audit     *shared.AuditLogger
	followUps FollowUpScheduler
	logger    *slog.Logger
}

// NewService constructs a Service.
func NewService(repo Repository, audit *shared.AuditLogger, followUps FollowUpScheduler, logger *slog.Logger) *Service {
	return &Service{repo: repo, audit: audit, followUps: followUps, logger: logger}
}

// Submit stores a public submission. Consent is a hard requirement.
func (s *Service) Submit(ctx context.Context, f Form) (Form, error) {
	if !f.ConsentAccepted {
		return Form{}, httpx.Validation("", httpx.FieldError{
			Path:    []string{"consentAccepted"},
			Message: "Consent must be accepted before submitting",
		})
	}
	created, err := s.repo.Create(ctx, f)
	if err != nil {
		return Form{}, err
	}
	if s.followUps != nil {
		if err := s.followUps.EnqueueIntakeFollowUp(ctx, created.ID, time.Minute); err != nil && s.logger != nil {
			s.logger.Warn("enqueue intake follow-up", slog.Any("error", err), slog.Int64("form_id", created.ID))
		}
	}
	return created, nil
}

// List returns submissions for staff review.
func (s *Service) List(ctx context.Context, status FormStatus) ([]Form, error) {
	return s.repo.List(ctx, status)
}

// Get fetches a single submission.
func (s *Service) Get(ctx context.Context, id int64) (Form, error) {
	return s.repo.Get(ctx, id)
}

// Reject marks a submission rejected.
func (s *Service) Reject(ctx context.Context, reviewer *authz.Principal, id int64) error {
	if err := s.repo.MarkReviewed(ctx, id, reviewer.ID, StatusRejected); err != nil {
		return err
	}
	s.recordAudit(ctx, reviewer, "intake.reject", id)
	return nil
}

// Convert turns a submission into a client record assigned to the
// given clinician.
func (s *Service) Convert(ctx context.Context, reviewer *authz.Principal, id, clinicianID int64) (int64, error) {
	clientID, err := s.repo.Convert(ctx, id, reviewer.ID, clinicianID)
	if err != nil {
		return 0, err
	}
	s.recordAudit(ctx, reviewer, "intake.convert", id)
	return clientID, nil
}

func (s *Service) recordAudit(ctx context.Context, actor *authz.Principal, action string, entityID int64) {
	if s.audit == nil || actor == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actor.ID,
		Action:   action,
		Entity:   "intake_form",
		EntityID: strconv.FormatInt(entityID, 10),
	})
}
