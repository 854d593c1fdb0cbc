package users

import (
	"context"
	"strconv"

	"golang.org/x/crypto/bcrypt"

	"github.com/tidewater-health/tidewater/internal/authz"
	"github.com/tidewater-health/tidewater/internal/shared"
)

// Service wraps user administration rules.
type Service struct {
	repo  Repository
	audit *shared.AuditLogger
}

// NewService constructs a Service.
func NewService(repo Repository, audit *shared.AuditLogger) *Service {
	return &Service{repo: repo, audit: audit}
}

// List returns all accounts.
func (s *Service) List(ctx context.Context) ([]User, error) {
	return s.repo.List(ctx)
}

// Get fetches a single account.
func (s *Service) Get(ctx context.Context, id int64) (User, error) {
	return s.repo.Get(ctx, id)
}

// Create provisions a new account with a bcrypt password hash and
// records the mutation.
func (s *Service) Create(ctx context.Context, actor *authz.Principal, u NewUser) (User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(u.Password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, err
	}
	created, err := s.repo.Create(ctx, u, string(hash))
	if err != nil {
		return User{}, err
	}
	s.recordAudit(ctx, actor, "user.create", created.ID, map[string]any{"role": string(created.Role)})
	return created, nil
}

// Update mutates an account.
func (s *Service) Update(ctx context.Context, actor *authz.Principal, id int64, u Update) (User, error) {
	updated, err := s.repo.Update(ctx, id, u)
	if err != nil {
		return User{}, err
	}
	s.recordAudit(ctx, actor, "user.update", id, map[string]any{"role": string(u.Role)})
	return updated, nil
}

// Deactivate disables an account.
func (s *Service) Deactivate(ctx context.Context, actor *authz.Principal, id int64) error {
	if err := s.repo.Deactivate(ctx, id); err != nil {
		return err
	}
	s.recordAudit(ctx, actor, "user.deactivate", id, nil)
	return nil
}

func (s *Service) recordAudit(ctx context.Context, actor *authz.Principal, action string, entityID int64, meta map[string]any) {
	if s.audit == nil || actor == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actor.ID,
		Action:   action,
		Entity:   "user",
		EntityID: strconv.FormatInt(entityID, 10),
		Meta:     meta,
	})
}
