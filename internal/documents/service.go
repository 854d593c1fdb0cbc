package documents

import (
	"context"
	"strconv"

	"github.com/tidewater-health/tidewater/internal/authz"
	"github.com/tidewater-health/tidewater/internal/platform/httpx"
	"github.com/tidewater-health/tidewater/internal/shared"
)

// Service wraps clinical note business rules.
type Service struct {
	repo  Repository
	audit *shared.AuditLogger
}

// NewService constructs a Service.
func NewService(repo Repository, audit *shared.AuditLogger) *Service {
	return &Service{repo: repo, audit: audit}
}

// List returns notes matching the filters. Authors below clinician only
// see their own notes.
func (s *Service) List(ctx context.Context, principal *authz.Principal, filters ListFilters) ([]Note, error) {
	if principal != nil && !authz.HasMinimumRole(principal.Role, authz.RoleClinician) {
		filters.AuthorID = principal.ID
	}
	return s.repo.List(ctx, filters)
}

// Get fetches a single note.
func (s *Service) Get(ctx context.Context, id int64) (Note, error) {
	return s.repo.Get(ctx, id)
}

// Create inserts a note authored by the caller.
func (s *Service) Create(ctx context.Context, author *authz.Principal, n Note) (Note, error) {
	n.AuthorID = author.ID
	created, err := s.repo.Create(ctx, n)
	if err != nil {
		return Note{}, err
	}
	s.recordAudit(ctx, author, "note.create", created.ID)
	return created, nil
}

// Update mutates a note. Signed notes are part of the permanent record
// and refuse edits.
func (s *Service) Update(ctx context.Context, actor *authz.Principal, id int64, n Note) (Note, error) {
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return Note{}, err
	}
	if existing.Signed() {
		return Note{}, httpx.Validation("Signed notes cannot be modified")
	}
	updated, err := s.repo.Update(ctx, id, n)
	if err != nil {
		return Note{}, err
	}
	s.recordAudit(ctx, actor, "note.update", id)
	return updated, nil
}

// Sign locks the note. Signing twice is rejected.
func (s *Service) Sign(ctx context.Context, actor *authz.Principal, id int64) (Note, error) {
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return Note{}, err
	}
	if existing.Signed() {
		return Note{}, httpx.Validation("Note is already signed")
	}
	signed, err := s.repo.Sign(ctx, id)
	if err != nil {
		return Note{}, err
	}
	s.recordAudit(ctx, actor, "note.sign", id)
	return signed, nil
}

// Delete removes an unsigned note.
func (s *Service) Delete(ctx context.Context, actor *authz.Principal, id int64) error {
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if existing.Signed() {
		return httpx.Validation("Signed notes cannot be deleted")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.recordAudit(ctx, actor, "note.delete", id)
	return nil
}

// OwnerID exposes ownership resolution for the route guards.
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
		Entity:   "note",
		EntityID: strconv.FormatInt(entityID, 10),
	})
}
