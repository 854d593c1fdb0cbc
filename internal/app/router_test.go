package app

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/tidewater-health/tidewater/internal/auth"
	"github.com/tidewater-health/tidewater/internal/authz"
	"github.com/tidewater-health/tidewater/internal/clients"
	"github.com/tidewater-health/tidewater/internal/crm"
	"github.com/tidewater-health/tidewater/internal/documents"
	"github.com/tidewater-health/tidewater/internal/intake"
	"github.com/tidewater-health/tidewater/internal/messaging"
	"github.com/tidewater-health/tidewater/internal/platform/httpx"
	"github.com/tidewater-health/tidewater/internal/scheduling"
	"github.com/tidewater-health/tidewater/internal/shared"
	"github.com/tidewater-health/tidewater/internal/users"
)

const testPassword = "correct-horse-battery"

// memoryAuthRepo serves login and principal lookups from a fixed user set.
type memoryAuthRepo struct {
	users map[int64]*auth.User
}

func (r *memoryAuthRepo) FindByEmail(ctx context.Context, email string) (*auth.User, error) {
	for _, u := range r.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *memoryAuthRepo) FindByID(ctx context.Context, id int64) (*auth.User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return u, nil
}

func (r *memoryAuthRepo) CreateSession(ctx context.Context, id string, userID int64, expiresAt time.Time, ip, ua string) error {
	return nil
}

func (r *memoryAuthRepo) DeleteSession(ctx context.Context, id string) error {
	return nil
}

var _ auth.Repository = (*memoryAuthRepo)(nil)

type memoryUserRepo struct{}

func (memoryUserRepo) List(ctx context.Context) ([]users.User, error) { return nil, nil }
func (memoryUserRepo) Get(ctx context.Context, id int64) (users.User, error) {
	return users.User{}, shared.ErrNotFound
}
func (memoryUserRepo) Create(ctx context.Context, u users.NewUser, passwordHash string) (users.User, error) {
	return users.User{}, nil
}
func (memoryUserRepo) Update(ctx context.Context, id int64, u users.Update) (users.User, error) {
	return users.User{}, shared.ErrNotFound
}
func (memoryUserRepo) Deactivate(ctx context.Context, id int64) error { return shared.ErrNotFound }

var _ users.Repository = memoryUserRepo{}

type memoryClientRepo struct {
	records map[int64]clients.Client
	nextID  int64
}

func (r *memoryClientRepo) List(ctx context.Context, filters clients.ListFilters) ([]clients.Client, int, error) {
	var out []clients.Client
	for _, c := range r.records {
		out = append(out, c)
	}
	return out, len(out), nil
}

func (r *memoryClientRepo) Get(ctx context.Context, id int64) (clients.Client, error) {
	c, ok := r.records[id]
	if !ok {
		return clients.Client{}, shared.ErrNotFound
	}
	return c, nil
}

func (r *memoryClientRepo) OwnerID(ctx context.Context, id int64) (int64, bool, error) {
	c, ok := r.records[id]
	if !ok {
		return 0, false, nil
	}
	return c.ClinicianID, true, nil
}

func (r *memoryClientRepo) Create(ctx context.Context, c clients.Client) (clients.Client, error) {
	r.nextID++
	c.ID = r.nextID
	r.records[c.ID] = c
	return c, nil
}

func (r *memoryClientRepo) Update(ctx context.Context, id int64, c clients.Client) (clients.Client, error) {
	if _, ok := r.records[id]; !ok {
		return clients.Client{}, shared.ErrNotFound
	}
	c.ID = id
	r.records[id] = c
	return c, nil
}

func (r *memoryClientRepo) Delete(ctx context.Context, id int64) error {
	if _, ok := r.records[id]; !ok {
		return shared.ErrNotFound
	}
	delete(r.records, id)
	return nil
}

var _ clients.Repository = (*memoryClientRepo)(nil)

type memoryCRMRepo struct{}

func (memoryCRMRepo) ListLeads(ctx context.Context, status crm.LeadStatus) ([]crm.Lead, error) {
	return nil, nil
}
func (memoryCRMRepo) GetLead(ctx context.Context, id int64) (crm.Lead, error) {
	return crm.Lead{}, shared.ErrNotFound
}
func (memoryCRMRepo) CreateLead(ctx context.Context, l crm.Lead) (crm.Lead, error) { return l, nil }
func (memoryCRMRepo) UpdateLeadStatus(ctx context.Context, id int64, status crm.LeadStatus) (crm.Lead, error) {
	return crm.Lead{}, shared.ErrNotFound
}
func (memoryCRMRepo) ListReferralSources(ctx context.Context) ([]crm.ReferralSource, error) {
	return nil, nil
}
func (memoryCRMRepo) CreateReferralSource(ctx context.Context, rs crm.ReferralSource) (crm.ReferralSource, error) {
	return rs, nil
}
func (memoryCRMRepo) UpdateReferralSource(ctx context.Context, id int64, rs crm.ReferralSource) (crm.ReferralSource, error) {
	return crm.ReferralSource{}, shared.ErrNotFound
}
func (memoryCRMRepo) ListCampaigns(ctx context.Context) ([]crm.Campaign, error) { return nil, nil }
func (memoryCRMRepo) CreateCampaign(ctx context.Context, c crm.Campaign) (crm.Campaign, error) {
	return c, nil
}
func (memoryCRMRepo) CollectStats(ctx context.Context) (crm.Stats, error) {
	return crm.Stats{GeneratedAt: time.Now()}, nil
}

var _ crm.Repository = memoryCRMRepo{}

type memoryScheduleRepo struct {
	sessions map[int64]scheduling.Session
	nextID   int64
}

func (r *memoryScheduleRepo) List(ctx context.Context, filters scheduling.ListFilters) ([]scheduling.Session, error) {
	var out []scheduling.Session
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out, nil
}

func (r *memoryScheduleRepo) Get(ctx context.Context, id int64) (scheduling.Session, error) {
	s, ok := r.sessions[id]
	if !ok {
		return scheduling.Session{}, shared.ErrNotFound
	}
	return s, nil
}

func (r *memoryScheduleRepo) OwnerID(ctx context.Context, id int64) (int64, bool, error) {
	s, ok := r.sessions[id]
	if !ok {
		return 0, false, nil
	}
	return s.ClinicianID, true, nil
}

func (r *memoryScheduleRepo) Create(ctx context.Context, s scheduling.Session) (scheduling.Session, error) {
	r.nextID++
	s.ID = r.nextID
	r.sessions[s.ID] = s
	return s, nil
}

func (r *memoryScheduleRepo) Update(ctx context.Context, id int64, s scheduling.Session) (scheduling.Session, error) {
	if _, ok := r.sessions[id]; !ok {
		return scheduling.Session{}, shared.ErrNotFound
	}
	s.ID = id
	r.sessions[id] = s
	return s, nil
}

func (r *memoryScheduleRepo) UpdateStatus(ctx context.Context, id int64, status scheduling.SessionStatus) (scheduling.Session, error) {
	s, ok := r.sessions[id]
	if !ok {
		return scheduling.Session{}, shared.ErrNotFound
	}
	s.Status = status
	r.sessions[id] = s
	return s, nil
}

func (r *memoryScheduleRepo) Delete(ctx context.Context, id int64) error {
	if _, ok := r.sessions[id]; !ok {
		return shared.ErrNotFound
	}
	delete(r.sessions, id)
	return nil
}

func (r *memoryScheduleRepo) CountOverlapping(ctx context.Context, s scheduling.Session) (int, error) {
	return 0, nil
}

var _ scheduling.Repository = (*memoryScheduleRepo)(nil)

type memoryThreadRepo struct{}

func (memoryThreadRepo) ListThreads(ctx context.Context, userID int64) ([]messaging.Thread, error) {
	return nil, nil
}
func (memoryThreadRepo) GetThread(ctx context.Context, id int64) (messaging.Thread, error) {
	return messaging.Thread{}, shared.ErrNotFound
}
func (memoryThreadRepo) CreateThread(ctx context.Context, t messaging.Thread) (messaging.Thread, error) {
	return t, nil
}
func (memoryThreadRepo) IsParticipant(ctx context.Context, threadID, userID int64) (bool, error) {
	return false, nil
}
func (memoryThreadRepo) ListMessages(ctx context.Context, threadID int64) ([]messaging.Message, error) {
	return nil, nil
}
func (memoryThreadRepo) CreateMessage(ctx context.Context, m messaging.Message) (messaging.Message, error) {
	return m, nil
}
func (memoryThreadRepo) MarkRead(ctx context.Context, threadID, userID int64) error {
	return shared.ErrNotFound
}

var _ messaging.Repository = memoryThreadRepo{}

type memoryNoteRepo struct{}

func (memoryNoteRepo) List(ctx context.Context, filters documents.ListFilters) ([]documents.Note, error) {
	return nil, nil
}
func (memoryNoteRepo) Get(ctx context.Context, id int64) (documents.Note, error) {
	return documents.Note{}, shared.ErrNotFound
}
func (memoryNoteRepo) OwnerID(ctx context.Context, id int64) (int64, bool, error) {
	return 0, false, nil
}
func (memoryNoteRepo) Create(ctx context.Context, n documents.Note) (documents.Note, error) {
	return n, nil
}
func (memoryNoteRepo) Update(ctx context.Context, id int64, n documents.Note) (documents.Note, error) {
	return documents.Note{}, shared.ErrNotFound
}
func (memoryNoteRepo) Sign(ctx context.Context, id int64) (documents.Note, error) {
	return documents.Note{}, shared.ErrNotFound
}
func (memoryNoteRepo) Delete(ctx context.Context, id int64) error { return shared.ErrNotFound }

var _ documents.Repository = memoryNoteRepo{}

type memoryFormRepo struct{}

func (memoryFormRepo) Create(ctx context.Context, f intake.Form) (intake.Form, error) { return f, nil }
func (memoryFormRepo) List(ctx context.Context, status intake.FormStatus) ([]intake.Form, error) {
	return nil, nil
}
func (memoryFormRepo) Get(ctx context.Context, id int64) (intake.Form, error) {
	return intake.Form{}, shared.ErrNotFound
}
func (memoryFormRepo) MarkReviewed(ctx context.Context, id, reviewerID int64, status intake.FormStatus) error {
	return shared.ErrNotFound
}
func (memoryFormRepo) Convert(ctx context.Context, id, reviewerID, clinicianID int64) (int64, error) {
	return 0, shared.ErrNotFound
}

var _ intake.Repository = memoryFormRepo{}

type testApp struct {
	router       http.Handler
	scheduleRepo *memoryScheduleRepo
}

func hashPassword(t *testing.T) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = redisClient.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := &Config{AppEnv: "test", AppRequestTimeout: 5 * time.Second}

	sessions := shared.NewSessionManager(redisClient, "tidewater_session", "test-secret", time.Hour, false)
	csrf := shared.NewCSRFManager("csrf-secret")
	guards := authz.Middleware{Logger: logger}

	hash := hashPassword(t)
	authRepo := &memoryAuthRepo{users: map[int64]*auth.User{
		1: {ID: 1, Email: "admin@tidewater.test", Username: "padmin", PasswordHash: hash, Role: authz.RolePracticeAdmin, IsActive: true},
		2: {ID: 2, Email: "clinician@tidewater.test", Username: "doc", PasswordHash: hash, Role: authz.RoleClinician, IsActive: true},
	}}
	authService := auth.NewService(authRepo)

	scheduleRepo := &memoryScheduleRepo{sessions: make(map[int64]scheduling.Session)}

	router := NewRouter(RouterParams{
		Logger:            logger,
		Config:            cfg,
		SessionManager:    sessions,
		CSRFManager:       csrf,
		AuthService:       authService,
		AuthHandler:       auth.NewHandler(logger, authService, sessions, csrf),
		UsersHandler:      users.NewHandler(logger, users.NewService(memoryUserRepo{}, nil), guards),
		ClientsHandler:    clients.NewHandler(logger, clients.NewService(&memoryClientRepo{records: make(map[int64]clients.Client)}, nil), guards),
		IntakeHandler:     intake.NewHandler(logger, intake.NewService(memoryFormRepo{}, nil, nil, logger), guards),
		CRMHandler:        crm.NewHandler(logger, crm.NewService(memoryCRMRepo{}, nil), guards),
		MessagingHandler:  messaging.NewHandler(logger, messaging.NewService(memoryThreadRepo{}), guards),
		SchedulingHandler: scheduling.NewHandler(logger, scheduling.NewService(scheduleRepo, nil, logger), guards),
		DocumentsHandler:  documents.NewHandler(logger, documents.NewService(memoryNoteRepo{}, nil), guards),
	})

	return &testApp{router: router, scheduleRepo: scheduleRepo}
}

func (a *testApp) do(t *testing.T, req *http.Request) *http.Response {
	t.Helper()
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec.Result()
}

type loginResult struct {
	cookie    *http.Cookie
	csrfToken string
}

func (a *testApp) login(t *testing.T, email string) loginResult {
	t.Helper()
	body, err := json.Marshal(map[string]string{"email": email, "password": testPassword})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	res := a.do(t, req)
	require.Equal(t, http.StatusOK, res.StatusCode)

	var payload struct {
		CSRFToken string `json:"csrfToken"`
	}
	require.NoError(t, json.NewDecoder(res.Body).Decode(&payload))
	require.NotEmpty(t, payload.CSRFToken)

	var sessionCookie *http.Cookie
	for _, c := range res.Cookies() {
		if c.Name == "tidewater_session" {
			sessionCookie = c
		}
	}
	require.NotNil(t, sessionCookie)
	return loginResult{cookie: sessionCookie, csrfToken: payload.CSRFToken}
}

func decodeEnvelope(t *testing.T, res *http.Response) httpx.Envelope {
	t.Helper()
	var env httpx.Envelope
	require.NoError(t, json.NewDecoder(res.Body).Decode(&env))
	return env
}

func TestUnauthenticatedRequestIsRejected(t *testing.T) {
	app := newTestApp(t)

	res := app.do(t, httptest.NewRequest(http.MethodGet, "/api/clients", nil))
	require.Equal(t, http.StatusUnauthorized, res.StatusCode)

	env := decodeEnvelope(t, res)
	require.Equal(t, "error", env.Status)
	require.Equal(t, httpx.CodeUnauthorized, env.Code)
	require.Equal(t, "/api/clients", env.Path)
	require.Equal(t, http.MethodGet, env.Method)
	require.NotEmpty(t, env.RequestID)
}

func TestClinicianCannotListStaffAccounts(t *testing.T) {
	app := newTestApp(t)
	sess := app.login(t, "clinician@tidewater.test")

	req := httptest.NewRequest(http.MethodGet, "/api/users", nil)
	req.AddCookie(sess.cookie)
	res := app.do(t, req)
	require.Equal(t, http.StatusForbidden, res.StatusCode)

	env := decodeEnvelope(t, res)
	require.Equal(t, httpx.CodeForbidden, env.Code)
	details, ok := env.Details.(map[string]any)
	require.True(t, ok)
	require.Equal(t, "practice_admin", details["requiredRole"])
	require.Equal(t, "clinician", details["actualRole"])
}

func TestClientValidationListsEveryFailingField(t *testing.T) {
	app := newTestApp(t)
	sess := app.login(t, "admin@tidewater.test")

	req := httptest.NewRequest(http.MethodPost, "/api/clients", bytes.NewReader([]byte(`{"email":"not-an-email"}`)))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(shared.CSRFHeader, sess.csrfToken)
	req.AddCookie(sess.cookie)
	res := app.do(t, req)
	require.Equal(t, http.StatusBadRequest, res.StatusCode)

	env := decodeEnvelope(t, res)
	require.Equal(t, httpx.CodeValidation, env.Code)

	details, ok := env.Details.(map[string]any)
	require.True(t, ok)
	rawErrors, ok := details["errors"].([]any)
	require.True(t, ok)

	var paths []string
	for _, raw := range rawErrors {
		entry := raw.(map[string]any)
		segments := entry["path"].([]any)
		paths = append(paths, segments[0].(string))
	}
	require.ElementsMatch(t, []string{"firstName", "lastName", "email", "clinicianId"}, paths)
}

func TestCompletedSessionCannotBeDeleted(t *testing.T) {
	app := newTestApp(t)
	app.scheduleRepo.sessions[1] = scheduling.Session{
		ID:          1,
		ClientID:    10,
		ClinicianID: 2,
		Kind:        scheduling.KindIndividual,
		Status:      scheduling.StatusCompleted,
		StartsAt:    time.Now().Add(-2 * time.Hour),
		EndsAt:      time.Now().Add(-time.Hour),
	}
	app.scheduleRepo.nextID = 1

	sess := app.login(t, "admin@tidewater.test")
	req := httptest.NewRequest(http.MethodDelete, "/api/sessions/1", nil)
	req.Header.Set(shared.CSRFHeader, sess.csrfToken)
	req.AddCookie(sess.cookie)
	res := app.do(t, req)
	require.Equal(t, http.StatusBadRequest, res.StatusCode)

	env := decodeEnvelope(t, res)
	require.Equal(t, httpx.CodeValidation, env.Code)
	require.Equal(t, "Completed sessions cannot be deleted", env.Message)

	_, stillThere := app.scheduleRepo.sessions[1]
	require.True(t, stillThere)
}

func TestMutationWithoutCSRFTokenIsRejected(t *testing.T) {
	app := newTestApp(t)
	sess := app.login(t, "admin@tidewater.test")

	req := httptest.NewRequest(http.MethodDelete, "/api/sessions/1", nil)
	req.AddCookie(sess.cookie)
	res := app.do(t, req)
	require.Equal(t, http.StatusForbidden, res.StatusCode)

	env := decodeEnvelope(t, res)
	require.Equal(t, "Invalid CSRF token", env.Message)
}

func TestUnknownRouteReturnsEnvelope(t *testing.T) {
	app := newTestApp(t)

	res := app.do(t, httptest.NewRequest(http.MethodGet, "/api/billing", nil))
	require.Equal(t, http.StatusNotFound, res.StatusCode)

	env := decodeEnvelope(t, res)
	require.Equal(t, httpx.CodeNotFound, env.Code)
	require.Equal(t, "Route not found", env.Message)
	require.Equal(t, "/api/billing", env.Path)
	require.Equal(t, http.MethodGet, env.Method)
}

func TestHealthzIsPublic(t *testing.T) {
	app := newTestApp(t)

	res := app.do(t, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, res.StatusCode)
}
