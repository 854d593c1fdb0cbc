package messaging

import (
	"context"
	"errors"

	"github.com/tidewater-health/tidewater/internal/authz"
	"github.com/tidewater-health/tidewater/internal/platform/httpx"
	"github.com/tidewater-health/tidewater/internal/shared"
)

// Service wraps thread access rules. Every read and write on a thread
// is restricted to its participants.
type Service struct {
	repo Repository
}

// NewService constructs a Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// ListThreads returns the caller's threads.
func (s *Service) ListThreads(ctx context.Context, principal *authz.Principal) ([]Thread, error) {
	return s.repo.ListThreads(ctx, principal.ID)
}

// GetThread fetches a thread with its participants.
func (s *Service) GetThread(ctx context.Context, id int64) (Thread, error) {
	return s.repo.GetThread(ctx, id)
}

// CreateThread opens a new thread. The creator is always a participant.
func (s *Service) CreateThread(ctx context.Context, creator *authz.Principal, t Thread) (Thread, error) {
	t.CreatedBy = creator.ID
	if !contains(t.Participants, creator.ID) {
		t.Participants = append(t.Participants, creator.ID)
	}
	if len(t.Participants) < 2 {
		return Thread{}, httpx.Validation("", httpx.FieldError{
			Path:    []string{"participants"},
			Message: "A thread needs at least one other participant",
		})
	}
	return s.repo.CreateThread(ctx, t)
}

// Messages lists a thread's messages.
func (s *Service) Messages(ctx context.Context, threadID int64) ([]Message, error) {
	return s.repo.ListMessages(ctx, threadID)
}

// Send appends a message from the sender to the thread.
func (s *Service) Send(ctx context.Context, sender *authz.Principal, threadID int64, body string) (Message, error) {
	return s.repo.CreateMessage(ctx, Message{
		ThreadID: threadID,
		SenderID: sender.ID,
		Body:     body,
	})
}

// MarkRead stamps the caller's read marker on the thread.
func (s *Service) MarkRead(ctx context.Context, principal *authz.Principal, threadID int64) error {
	return s.repo.MarkRead(ctx, threadID, principal.ID)
}

// ParticipantOwner resolves thread access for the route guards. A
// participant resolves to their own id so the owner check passes; a
// non-participant resolves to the thread creator so it fails with role
// details; a missing thread is indeterminate.
func (s *Service) ParticipantOwner(ctx context.Context, threadID int64, principal *authz.Principal) (int64, bool, error) {
	if principal == nil {
		return 0, false, nil
	}
	ok, err := s.repo.IsParticipant(ctx, threadID, principal.ID)
	if err != nil {
		return 0, false, err
	}
	if ok {
		return principal.ID, true, nil
	}
	thread, err := s.repo.GetThread(ctx, threadID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return thread.CreatedBy, true, nil
}

func contains(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
