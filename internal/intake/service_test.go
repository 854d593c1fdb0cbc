package intake

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tidewater-health/tidewater/internal/authz"
	"github.com/tidewater-health/tidewater/internal/platform/httpx"
	"github.com/tidewater-health/tidewater/internal/shared"
)

type memoryFormRepo struct {
	forms        map[int64]Form
	nextID       int64
	nextClientID int64
}

func newMemoryFormRepo() *memoryFormRepo {
	return &memoryFormRepo{forms: make(map[int64]Form), nextClientID: 100}
}

func (r *memoryFormRepo) Create(ctx context.Context, f Form) (Form, error) {
	r.nextID++
	f.ID = r.nextID
	f.Status = StatusSubmitted
	f.CreatedAt = time.Now()
	f.UpdatedAt = f.CreatedAt
	r.forms[f.ID] = f
	return f, nil
}

func (r *memoryFormRepo) List(ctx context.Context, status FormStatus) ([]Form, error) {
	var out []Form
	for _, f := range r.forms {
		if status != "" && f.Status != status {
			continue
		}
		out = append(out, f)
	}
	return out, nil
}

func (r *memoryFormRepo) Get(ctx context.Context, id int64) (Form, error) {
	f, ok := r.forms[id]
	if !ok {
		return Form{}, shared.ErrNotFound
	}
	return f, nil
}

func (r *memoryFormRepo) MarkReviewed(ctx context.Context, id, reviewerID int64, status FormStatus) error {
	f, ok := r.forms[id]
	if !ok {
		return shared.ErrNotFound
	}
	f.Status = status
	f.ReviewedBy = &reviewerID
	r.forms[id] = f
	return nil
}

func (r *memoryFormRepo) Convert(ctx context.Context, id, reviewerID, clinicianID int64) (int64, error) {
	f, ok := r.forms[id]
	if !ok {
		return 0, shared.ErrNotFound
	}
	r.nextClientID++
	clientID := r.nextClientID
	f.Status = StatusConverted
	f.ReviewedBy = &reviewerID
	f.ClientID = &clientID
	r.forms[id] = f
	return clientID, nil
}

var _ Repository = (*memoryFormRepo)(nil)

type fakeFollowUps struct {
	formIDs []int64
	err     error
}

func (f *fakeFollowUps) EnqueueIntakeFollowUp(ctx context.Context, formID int64, delay time.Duration) error {
	if f.err != nil {
		return f.err
	}
	f.formIDs = append(f.formIDs, formID)
	return nil
}

func submittedForm() Form {
	return Form{
		FirstName:       "Dana",
		LastName:        "Whitfield",
		Email:           "dana@example.com",
		Phone:           "555-0134",
		ReasonForVisit:  "Anxiety",
		ConsentAccepted: true,
	}
}

func TestSubmitRequiresConsent(t *testing.T) {
	svc := NewService(newMemoryFormRepo(), nil, nil, slog.Default())

	form := submittedForm()
	form.ConsentAccepted = false
	_, err := svc.Submit(context.Background(), form)
	apiErr, ok := httpx.AsError(err)
	require.True(t, ok)
	require.Equal(t, httpx.CodeValidation, apiErr.Code)
	require.Len(t, apiErr.Details, 1)
}

func TestSubmitEnqueuesFollowUp(t *testing.T) {
	repo := newMemoryFormRepo()
	followUps := &fakeFollowUps{}
	svc := NewService(repo, nil, followUps, slog.Default())

	created, err := svc.Submit(context.Background(), submittedForm())
	require.NoError(t, err)
	require.Equal(t, StatusSubmitted, created.Status)
	require.Equal(t, []int64{created.ID}, followUps.formIDs)
}

func TestSubmitSurvivesFollowUpFailure(t *testing.T) {
	repo := newMemoryFormRepo()
	followUps := &fakeFollowUps{err: errors.New("redis down")}
	svc := NewService(repo, nil, followUps, slog.Default())

	created, err := svc.Submit(context.Background(), submittedForm())
	require.NoError(t, err)

	stored, err := repo.Get(context.Background(), created.ID)
	require.NoError(t, err)
	require.Equal(t, StatusSubmitted, stored.Status)
}

func TestConvertAssignsClinician(t *testing.T) {
	repo := newMemoryFormRepo()
	svc := NewService(repo, nil, nil, slog.Default())
	reviewer := &authz.Principal{ID: 3, Username: "admin", Role: authz.RolePracticeAdmin, Enabled: true}

	created, err := svc.Submit(context.Background(), submittedForm())
	require.NoError(t, err)

	clientID, err := svc.Convert(context.Background(), reviewer, created.ID, 7)
	require.NoError(t, err)
	require.NotZero(t, clientID)

	stored, err := repo.Get(context.Background(), created.ID)
	require.NoError(t, err)
	require.Equal(t, StatusConverted, stored.Status)
	require.NotNil(t, stored.ReviewedBy)
	require.Equal(t, reviewer.ID, *stored.ReviewedBy)
}
