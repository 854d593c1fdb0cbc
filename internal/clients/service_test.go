package clients

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tidewater-health/tidewater/internal/authz"
	"github.com/tidewater-health/tidewater/internal/platform/httpx"
	"github.com/tidewater-health/tidewater/internal/shared"
)

type memoryClientRepo struct {
	clients map[int64]Client
	nextID  int64
}

func newMemoryClientRepo() *memoryClientRepo {
	return &memoryClientRepo{clients: make(map[int64]Client)}
}

func (r *memoryClientRepo) List(ctx context.Context, filters ListFilters) ([]Client, int, error) {
	var out []Client
	for _, c := range r.clients {
		if filters.Status != "" && c.Status != filters.Status {
			continue
		}
		if filters.ClinicianID != 0 && c.ClinicianID != filters.ClinicianID {
			continue
		}
		out = append(out, c)
	}
	return out, len(out), nil
}

func (r *memoryClientRepo) Get(ctx context.Context, id int64) (Client, error) {
	c, ok := r.clients[id]
	if !ok {
		return Client{}, shared.ErrNotFound
	}
	return c, nil
}

func (r *memoryClientRepo) OwnerID(ctx context.Context, id int64) (int64, bool, error) {
	c, ok := r.clients[id]
	if !ok {
		return 0, false, nil
	}
	return c.ClinicianID, true, nil
}

func (r *memoryClientRepo) Create(ctx context.Context, c Client) (Client, error) {
	r.nextID++
	c.ID = r.nextID
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt
	r.clients[c.ID] = c
	return c, nil
}

func (r *memoryClientRepo) Update(ctx context.Context, id int64, c Client) (Client, error) {
	existing, ok := r.clients[id]
	if !ok {
		return Client{}, shared.ErrNotFound
	}
	c.ID = id
	c.CreatedAt = existing.CreatedAt
	c.UpdatedAt = time.Now()
	r.clients[id] = c
	return c, nil
}

func (r *memoryClientRepo) Delete(ctx context.Context, id int64) error {
	if _, ok := r.clients[id]; !ok {
		return shared.ErrNotFound
	}
	delete(r.clients, id)
	return nil
}

var _ Repository = (*memoryClientRepo)(nil)

func principal(id int64, role authz.Role) *authz.Principal {
	return &authz.Principal{ID: id, Username: "tester", Role: role, Enabled: true}
}

func TestCreateDefaultsToInquiry(t *testing.T) {
	svc := NewService(newMemoryClientRepo(), nil)
	created, err := svc.Create(context.Background(), principal(1, authz.RoleScheduler), Client{
		FirstName:   "Nora",
		LastName:    "Whitfield",
		Email:       "nora@example.com",
		ClinicianID: 3,
	})
	require.NoError(t, err)
	require.Equal(t, StatusInquiry, created.Status)
}

func TestListScopesInternsToOwnClients(t *testing.T) {
	repo := newMemoryClientRepo()
	svc := NewService(repo, nil)

	_, err := repo.Create(context.Background(), Client{FirstName: "A", ClinicianID: 7, Status: StatusActive})
	require.NoError(t, err)
	_, err = repo.Create(context.Background(), Client{FirstName: "B", ClinicianID: 8, Status: StatusActive})
	require.NoError(t, err)

	intern := principal(7, authz.RoleIntern)
	records, total, err := svc.List(context.Background(), intern, ListFilters{})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Equal(t, int64(7), records[0].ClinicianID)

	// The scope wins even when the intern asks for another clinician.
	records, _, err = svc.List(context.Background(), intern, ListFilters{ClinicianID: 8})
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, int64(7), records[0].ClinicianID)

	scheduler := principal(9, authz.RoleScheduler)
	_, total, err = svc.List(context.Background(), scheduler, ListFilters{})
	require.NoError(t, err)
	require.Equal(t, 2, total)
}

func TestUpdateBlocksDischargedClients(t *testing.T) {
	repo := newMemoryClientRepo()
	svc := NewService(repo, nil)

	created, err := repo.Create(context.Background(), Client{FirstName: "Theo", ClinicianID: 3, Status: StatusDischarged})
	require.NoError(t, err)

	_, err = svc.Update(context.Background(), principal(3, authz.RoleClinician), created.ID, Client{
		FirstName:   "Theo",
		ClinicianID: 3,
		Status:      StatusDischarged,
	})
	apiErr, ok := httpx.AsError(err)
	require.True(t, ok)
	require.Equal(t, httpx.CodeValidation, apiErr.Code)
}

func TestUpdateAllowsReactivation(t *testing.T) {
	repo := newMemoryClientRepo()
	svc := NewService(repo, nil)

	created, err := repo.Create(context.Background(), Client{FirstName: "Theo", ClinicianID: 3, Status: StatusDischarged})
	require.NoError(t, err)

	updated, err := svc.Update(context.Background(), principal(3, authz.RoleClinician), created.ID, Client{
		FirstName:   "Theo",
		ClinicianID: 3,
		Status:      StatusActive,
	})
	require.NoError(t, err)
	require.Equal(t, StatusActive, updated.Status)
}

func TestOwnerIDForMissingClient(t *testing.T) {
	svc := NewService(newMemoryClientRepo(), nil)
	_, ok, err := svc.OwnerID(context.Background(), 404)
	require.NoError(t, err)
	require.False(t, ok)
}
