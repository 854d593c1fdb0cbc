package scheduling

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/tidewater-health/tidewater/internal/authz"
	"github.com/tidewater-health/tidewater/internal/platform/httpx"
	"github.com/tidewater-health/tidewater/internal/shared"
)

// Handler wires session scheduling endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	guards    authz.Middleware
	validator *validator.Validate
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service, guards authz.Middleware) *Handler {
	return &Handler{logger: logger, service: service, guards: guards, validator: validator.New()}
}

// MountRoutes registers routes. Individual session records are owned by
// their clinician; schedulers and above can book and reschedule.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.guards.RequireMinimumRole(authz.RoleIntern)).Get("/", h.list)
	r.With(h.guards.RequireMinimumRole(authz.RoleScheduler)).Post("/", h.create)
	r.With(h.guards.RequireOwnerOrRole(authz.RoleScheduler, h.ownerResolver)).Get("/{id}", h.get)
	r.With(h.guards.RequireOwnerOrRole(authz.RoleScheduler, h.ownerResolver)).Put("/{id}", h.reschedule)
	r.With(h.guards.RequireOwnerOrRole(authz.RoleClinician, h.ownerResolver)).Post("/{id}/complete", h.complete)
	r.With(h.guards.RequireOwnerOrRole(authz.RoleScheduler, h.ownerResolver)).Post("/{id}/cancel", h.cancel)
	r.With(h.guards.RequireOwnerOrRole(authz.RoleClinician, h.ownerResolver)).Post("/{id}/no-show", h.noShow)
	r.With(h.guards.RequireMinimumRole(authz.RolePracticeAdmin)).Delete("/{id}", h.remove)
}

func (h *Handler) ownerResolver(r *http.Request) (int64, bool, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		return 0, false, nil
	}
	return h.service.OwnerID(r.Context(), id)
}

type sessionRequest struct {
	ClientID    int64  `json:"clientId" validate:"required"`
	ClinicianID int64  `json:"clinicianId" validate:"required"`
	Kind        string `json:"kind" validate:"required,oneof=intake individual couples family group"`
	StartsAt    string `json:"startsAt" validate:"required,datetime=2006-01-02T15:04:05Z07:00"`
	EndsAt      string `json:"endsAt" validate:"required,datetime=2006-01-02T15:04:05Z07:00"`
	Location    string `json:"location" validate:"max=200"`
	Notes       string `json:"notes" validate:"max=4000"`
}

type sessionResponse struct {
	ID          int64  `json:"id"`
	ClientID    int64  `json:"clientId"`
	ClinicianID int64  `json:"clinicianId"`
	Kind        string `json:"kind"`
	Status      string `json:"status"`
	StartsAt    string `json:"startsAt"`
	EndsAt      string `json:"endsAt"`
	Location    string `json:"location,omitempty"`
	Notes       string `json:"notes,omitempty"`
	CreatedAt   string `json:"createdAt"`
	UpdatedAt   string `json:"updatedAt"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	clinicianID, _ := strconv.ParseInt(q.Get("clinicianId"), 10, 64)
	clientID, _ := strconv.ParseInt(q.Get("clientId"), 10, 64)
	filters := ListFilters{
		ClinicianID: clinicianID,
		ClientID:    clientID,
		Status:      SessionStatus(q.Get("status")),
	}
	if from, err := time.Parse(time.RFC3339, q.Get("from")); err == nil {
		filters.From = from
	}
	if to, err := time.Parse(time.RFC3339, q.Get("to")); err == nil {
		filters.To = to
	}
	records, err := h.service.List(r.Context(), filters)
	if err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	out := make([]sessionResponse, len(records))
	for i, s := range records {
		out[i] = toSessionResponse(s)
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"sessions": out})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.RespondError(w, r, httpx.Validation("Invalid session id"))
		return
	}
	record, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondSessionError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toSessionResponse(record))
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	record, ok := h.decodeSession(w, r)
	if !ok {
		return
	}
	created, err := h.service.Create(r.Context(), record)
	if err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toSessionResponse(created))
}

func (h *Handler) reschedule(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.RespondError(w, r, httpx.Validation("Invalid session id"))
		return
	}
	record, ok := h.decodeSession(w, r)
	if !ok {
		return
	}
	updated, err := h.service.Reschedule(r.Context(), id, record)
	if err != nil {
		h.respondSessionError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toSessionResponse(updated))
}

func (h *Handler) complete(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.Complete)
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.Cancel)
}

func (h *Handler) noShow(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.MarkNoShow)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, id int64) (Session, error)) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.RespondError(w, r, httpx.Validation("Invalid session id"))
		return
	}
	updated, err := fn(r.Context(), id)
	if err != nil {
		h.respondSessionError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toSessionResponse(updated))
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.RespondError(w, r, httpx.Validation("Invalid session id"))
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.respondSessionError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) respondSessionError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, shared.ErrNotFound) {
		httpx.RespondError(w, r, httpx.NotFound("Session"))
		return
	}
	httpx.RespondError(w, r, err)
}

func (h *Handler) decodeSession(w http.ResponseWriter, r *http.Request) (Session, bool) {
	var req sessionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, r, httpx.Validation("Malformed request body"))
		return Session{}, false
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, r, err)
		return Session{}, false
	}
	startsAt, _ := time.Parse(time.RFC3339, req.StartsAt)
	endsAt, _ := time.Parse(time.RFC3339, req.EndsAt)
	return Session{
		ClientID:    req.ClientID,
		ClinicianID: req.ClinicianID,
		Kind:        SessionKind(req.Kind),
		StartsAt:    startsAt,
		EndsAt:      endsAt,
		Location:    req.Location,
		Notes:       req.Notes,
	}, true
}

func toSessionResponse(s Session) sessionResponse {
	return sessionResponse{
		ID:          s.ID,
		ClientID:    s.ClientID,
		ClinicianID: s.ClinicianID,
		Kind:        string(s.Kind),
		Status:      string(s.Status),
		StartsAt:    s.StartsAt.UTC().Format(time.RFC3339),
		EndsAt:      s.EndsAt.UTC().Format(time.RFC3339),
		Location:    s.Location,
		Notes:       s.Notes,
		CreatedAt:   s.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:   s.UpdatedAt.UTC().Format(time.RFC3339),
	}
}
