package httpx

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) Envelope {
	t.Helper()
	var env Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func TestRespondErrorEnvelopeShape(t *testing.T) {
	req := httptest.NewRequest(http.MethodDelete, "/api/clients/9", nil)
	rec := httptest.NewRecorder()

	RespondError(rec, req, NotFound("Client"))

	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	env := decodeBody(t, rec)
	require.Equal(t, "error", env.Status)
	require.Equal(t, CodeNotFound, env.Code)
	require.Equal(t, "Client not found", env.Message)
	require.Equal(t, "/api/clients/9", env.Path)
	require.Equal(t, http.MethodDelete, env.Method)
	require.NotEmpty(t, env.RequestID)

	ts, err := time.Parse(time.RFC3339, env.Timestamp)
	require.NoError(t, err)
	require.WithinDuration(t, time.Now().UTC(), ts, time.Minute)
}

func TestRespondErrorHidesInternalDetail(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/clients", nil)
	rec := httptest.NewRecorder()

	RespondError(rec, req, errors.New("pq: connection refused"))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	env := decodeBody(t, rec)
	require.Equal(t, CodeInternal, env.Code)
	require.Equal(t, "An internal error occurred", env.Message)

	details, ok := env.Details.(map[string]any)
	require.True(t, ok)
	require.Equal(t, "pq: connection refused", details["originalError"])
}

func TestClassifyUniqueViolation(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", Detail: "Key (email) already exists"}
	apiErr := Classify(pgErr)
	require.Equal(t, CodeConflict, apiErr.Code)
	require.Equal(t, http.StatusConflict, apiErr.Status)
	require.NotContains(t, apiErr.Message, "Key (email)")
}

func TestClassifyNoRows(t *testing.T) {
	apiErr := Classify(pgx.ErrNoRows)
	require.Equal(t, CodeNotFound, apiErr.Code)
	require.Equal(t, http.StatusNotFound, apiErr.Status)
}

func TestClassifyTypedErrorPassesThrough(t *testing.T) {
	original := Forbidden("Insufficient permissions", nil)
	apiErr := Classify(original)
	require.Same(t, original, apiErr)
}

func TestValidationErrorsListEveryField(t *testing.T) {
	type form struct {
		FirstName string `validate:"required"`
		Email     string `validate:"required,email"`
		Phone     string `validate:"required"`
	}
	err := validator.New().Struct(form{Email: "not-an-email"})
	require.Error(t, err)

	apiErr := Classify(err)
	require.Equal(t, CodeValidation, apiErr.Code)
	require.Equal(t, http.StatusBadRequest, apiErr.Status)

	details, ok := apiErr.Details.(ValidationDetails)
	require.True(t, ok)
	require.Len(t, details.Errors, 3)

	paths := map[string]string{}
	for _, fe := range details.Errors {
		require.NotEmpty(t, fe.Path)
		paths[fe.Path[len(fe.Path)-1]] = fe.Message
	}
	require.Contains(t, paths, "firstName")
	require.Contains(t, paths, "email")
	require.Contains(t, paths, "phone")
}

func TestNotFoundHandlerEchoesRoute(t *testing.T) {
	req := httptest.NewRequest(http.MethodPatch, "/api/nope", nil)
	rec := httptest.NewRecorder()

	NotFoundHandler()(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	env := decodeBody(t, rec)
	require.Equal(t, CodeNotFound, env.Code)
	require.Equal(t, "/api/nope", env.Path)
	require.Equal(t, http.MethodPatch, env.Method)
}

func TestRecovererRendersEnvelope(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(httptest.NewRecorder().Body, nil))
	handler := Recoverer(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/panic", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	env := decodeBody(t, rec)
	require.Equal(t, CodeInternal, env.Code)
	require.Equal(t, "An internal error occurred", env.Message)
}
