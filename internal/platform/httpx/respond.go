package httpx

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Envelope is the uniform JSON error body returned for every failure.
type Envelope struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	Code      Code   `json:"code"`
	Details   any    `json:"details,omitempty"`
	Timestamp string `json:"timestamp"`
	Path      string `json:"path"`
	Method    string `json:"method"`
	RequestID string `json:"requestId"`
}

// JSON sends a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// DecodeJSON decodes a JSON request body into the target struct.
func DecodeJSON(r *http.Request, target any) error {
	return json.NewDecoder(r.Body).Decode(target)
}

// RespondError classifies err, logs it once server-side and renders
// exactly one error envelope. Stack traces and raw database text never
// reach the client.
func RespondError(w http.ResponseWriter, r *http.Request, err error) {
	apiErr := Classify(err)

	logger := slog.Default()
	attrs := []any{
		slog.String("code", string(apiErr.Code)),
		slog.String("path", r.URL.Path),
		slog.String("method", r.Method),
		slog.String("request_id", requestID(r)),
	}
	if apiErr.Status >= http.StatusInternalServerError {
		logger.Error("request failed", append(attrs, slog.Any("error", err))...)
	} else {
		logger.Warn("request denied", append(attrs, slog.String("reason", apiErr.Message))...)
	}

	WriteEnvelope(w, r, apiErr)
}

// WriteEnvelope renders a typed error as the JSON envelope without
// logging. Guards use it for their direct 401 path.
func WriteEnvelope(w http.ResponseWriter, r *http.Request, apiErr *Error) {
	status := apiErr.Status
	if status == 0 {
		status = http.StatusInternalServerError
	}
	JSON(w, status, Envelope{
		Status:    "error",
		Message:   apiErr.Message,
		Code:      apiErr.Code,
		Details:   apiErr.Details,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Path:      r.URL.Path,
		Method:    r.Method,
		RequestID: requestID(r),
	})
}

// Classify maps an arbitrary error onto the failure taxonomy. Typed
// errors pass through; unique-constraint violations become conflicts
// with a user-safe message; anything unrecognised is internal.
func Classify(err error) *Error {
	if err == nil {
		return Internal(nil)
	}
	if apiErr, ok := AsError(err); ok {
		return apiErr
	}
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		return FromValidationErrors(validationErrs)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return Conflict("")
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return NotFound("")
	}
	return Internal(err)
}

// NotFoundHandler renders unknown routes as a 404 envelope carrying the
// requested path and method.
func NotFoundHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteEnvelope(w, r, NotFound("Route"))
	}
}

// MethodNotAllowedHandler renders unsupported methods with the same
// envelope shape.
func MethodNotAllowedHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		apiErr := &Error{
			Code:    CodeValidation,
			Message: "Method not allowed",
			Status:  http.StatusMethodNotAllowed,
		}
		WriteEnvelope(w, r, apiErr)
	}
}

// Recoverer converts panics into the 500 envelope instead of an empty
// response body.
func Recoverer(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					logger.Error("panic recovered",
						slog.Any("panic", rec),
						slog.String("path", r.URL.Path),
						slog.String("method", r.Method),
					)
					WriteEnvelope(w, r, &Error{
						Code:    CodeInternal,
						Message: "An internal error occurred",
						Status:  http.StatusInternalServerError,
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func requestID(r *http.Request) string {
	if id := chimw.GetReqID(r.Context()); id != "" {
		return id
	}
	return uuid.NewString()
}
