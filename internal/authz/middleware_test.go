package authz

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tidewater-health/tidewater/internal/platform/httpx"
)

func testPrincipal(id int64, role Role) *Principal {
	return &Principal{ID: id, Username: "tester", Role: role, Enabled: true}
}

func serveGuard(t *testing.T, guard func(http.Handler) http.Handler, principal *Principal) (*httptest.ResponseRecorder, bool) {
	t.Helper()
	nextCalled := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		nextCalled = true
		w.WriteHeader(http.StatusOK)
	})
	req := httptest.NewRequest(http.MethodGet, "/api/resource/7", nil)
	if principal != nil {
		req = req.WithContext(ContextWithPrincipal(req.Context(), principal))
	}
	rec := httptest.NewRecorder()
	guard(next).ServeHTTP(rec, req)
	return rec, nextCalled
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) httpx.Envelope {
	t.Helper()
	var env httpx.Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func TestRequireAuth(t *testing.T) {
	m := Middleware{}

	t.Run("no principal", func(t *testing.T) {
		rec, nextCalled := serveGuard(t, m.RequireAuth, nil)
		require.False(t, nextCalled)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		env := decodeEnvelope(t, rec)
		require.Equal(t, httpx.CodeUnauthorized, env.Code)
		require.Equal(t, "error", env.Status)
		require.Equal(t, "/api/resource/7", env.Path)
	})

	t.Run("disabled principal", func(t *testing.T) {
		p := testPrincipal(1, RoleAdmin)
		p.Enabled = false
		rec, nextCalled := serveGuard(t, m.RequireAuth, p)
		require.False(t, nextCalled)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("enabled principal", func(t *testing.T) {
		rec, nextCalled := serveGuard(t, m.RequireAuth, testPrincipal(1, RoleUser))
		require.True(t, nextCalled)
		require.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestRequireRoleExactMembership(t *testing.T) {
	m := Middleware{}

	t.Run("member passes", func(t *testing.T) {
		_, nextCalled := serveGuard(t, m.RequireRole(RoleAdmin, RolePracticeAdmin), testPrincipal(1, RoleAdmin))
		require.True(t, nextCalled)
	})

	t.Run("higher role without membership is denied", func(t *testing.T) {
		rec, nextCalled := serveGuard(t, m.RequireRole(RoleScheduler), testPrincipal(1, RoleAdmin))
		require.False(t, nextCalled)
		require.Equal(t, http.StatusForbidden, rec.Code)
		env := decodeEnvelope(t, rec)
		require.Equal(t, httpx.CodeForbidden, env.Code)
	})

	t.Run("clinician denied admin route", func(t *testing.T) {
		rec, nextCalled := serveGuard(t, m.RequireRole(RoleAdmin), testPrincipal(1, RoleClinician))
		require.False(t, nextCalled)
		require.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("unauthenticated gets 401 not 403", func(t *testing.T) {
		rec, nextCalled := serveGuard(t, m.RequireRole(RoleAdmin), nil)
		require.False(t, nextCalled)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestRequireMinimumRole(t *testing.T) {
	m := Middleware{}

	t.Run("higher role passes", func(t *testing.T) {
		_, nextCalled := serveGuard(t, m.RequireMinimumRole(RoleClinician), testPrincipal(1, RoleAdmin))
		require.True(t, nextCalled)
	})

	t.Run("equal role passes", func(t *testing.T) {
		_, nextCalled := serveGuard(t, m.RequireMinimumRole(RoleClinician), testPrincipal(1, RoleClinician))
		require.True(t, nextCalled)
	})

	t.Run("lower role denied with role details", func(t *testing.T) {
		rec, nextCalled := serveGuard(t, m.RequireMinimumRole(RoleClinician), testPrincipal(1, RoleIntern))
		require.False(t, nextCalled)
		require.Equal(t, http.StatusForbidden, rec.Code)
		env := decodeEnvelope(t, rec)
		details, ok := env.Details.(map[string]any)
		require.True(t, ok)
		require.Equal(t, string(RoleClinician), details["requiredRole"])
		require.Equal(t, string(RoleIntern), details["actualRole"])
	})
}

func TestRequireOwnerOrRole(t *testing.T) {
	m := Middleware{}

	t.Run("privileged role short-circuits resolver", func(t *testing.T) {
		calls := 0
		resolver := func(r *http.Request) (int64, bool, error) {
			calls++
			return 0, false, nil
		}
		_, nextCalled := serveGuard(t, m.RequireOwnerOrRole(RolePracticeAdmin, resolver), testPrincipal(1, RoleAdmin))
		require.True(t, nextCalled)
		require.Zero(t, calls)
	})

	t.Run("owner passes", func(t *testing.T) {
		resolver := func(r *http.Request) (int64, bool, error) { return 42, true, nil }
		_, nextCalled := serveGuard(t, m.RequireOwnerOrRole(RolePracticeAdmin, resolver), testPrincipal(42, RoleClinician))
		require.True(t, nextCalled)
	})

	t.Run("non-owner denied", func(t *testing.T) {
		resolver := func(r *http.Request) (int64, bool, error) { return 99, true, nil }
		rec, nextCalled := serveGuard(t, m.RequireOwnerOrRole(RolePracticeAdmin, resolver), testPrincipal(42, RoleClinician))
		require.False(t, nextCalled)
		require.Equal(t, http.StatusForbidden, rec.Code)
		env := decodeEnvelope(t, rec)
		require.Equal(t, httpx.CodeForbidden, env.Code)
	})

	t.Run("indeterminate ownership fails closed", func(t *testing.T) {
		resolver := func(r *http.Request) (int64, bool, error) { return 0, false, nil }
		rec, nextCalled := serveGuard(t, m.RequireOwnerOrRole(RolePracticeAdmin, resolver), testPrincipal(42, RoleClinician))
		require.False(t, nextCalled)
		require.Equal(t, http.StatusForbidden, rec.Code)
		env := decodeEnvelope(t, rec)
		require.Equal(t, "Resource ownership could not be determined", env.Message)
	})

	t.Run("resolver error becomes 500", func(t *testing.T) {
		resolver := func(r *http.Request) (int64, bool, error) { return 0, false, errors.New("db down") }
		rec, nextCalled := serveGuard(t, m.RequireOwnerOrRole(RolePracticeAdmin, resolver), testPrincipal(42, RoleClinician))
		require.False(t, nextCalled)
		require.Equal(t, http.StatusInternalServerError, rec.Code)
		env := decodeEnvelope(t, rec)
		require.Equal(t, httpx.CodeInternal, env.Code)
		require.Equal(t, "An internal error occurred", env.Message)
	})

	t.Run("unauthenticated never reaches resolver", func(t *testing.T) {
		calls := 0
		resolver := func(r *http.Request) (int64, bool, error) {
			calls++
			return 0, false, nil
		}
		rec, nextCalled := serveGuard(t, m.RequireOwnerOrRole(RolePracticeAdmin, resolver), nil)
		require.False(t, nextCalled)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.Zero(t, calls)
	})
}
