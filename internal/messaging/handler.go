package messaging

import (
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

// Handler wires message thread endpoints.
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

// MountRoutes registers routes. Thread contents are participant-only;
// practice admins can always read for supervision.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.guards.RequireAuth).Get("/", h.listThreads)
	r.With(h.guards.RequireAuth).Post("/", h.createThread)
	r.With(h.guards.RequireOwnerOrRole(authz.RolePracticeAdmin, h.participantResolver)).Get("/{id}", h.getThread)
	r.With(h.guards.RequireOwnerOrRole(authz.RolePracticeAdmin, h.participantResolver)).Get("/{id}/messages", h.listMessages)
	r.With(h.guards.RequireOwnerOrRole(authz.RolePracticeAdmin, h.participantResolver)).Post("/{id}/messages", h.send)
	r.With(h.guards.RequireOwnerOrRole(authz.RolePracticeAdmin, h.participantResolver)).Post("/{id}/read", h.markRead)
}

func (h *Handler) participantResolver(r *http.Request) (int64, bool, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		return 0, false, nil
	}
	principal := authz.PrincipalFromContext(r.Context())
	return h.service.ParticipantOwner(r.Context(), id, principal)
}

type threadRequest struct {
	Subject      string  `json:"subject" validate:"required,max=200"`
	ClientID     int64   `json:"clientId" validate:"required"`
	Participants []int64 `json:"participants" validate:"required,min=1,dive,required"`
}

type messageRequest struct {
	Body string `json:"body" validate:"required,max=10000"`
}

type threadResponse struct {
	ID           int64   `json:"id"`
	Subject      string  `json:"subject"`
	ClientID     int64   `json:"clientId"`
	CreatedBy    int64   `json:"createdBy"`
	Participants []int64 `json:"participants,omitempty"`
	CreatedAt    string  `json:"createdAt"`
	UpdatedAt    string  `json:"updatedAt"`
}

type messageResponse struct {
	ID        int64  `json:"id"`
	ThreadID  int64  `json:"threadId"`
	SenderID  int64  `json:"senderId"`
	Body      string `json:"body"`
	CreatedAt string `json:"createdAt"`
}

func (h *Handler) listThreads(w http.ResponseWriter, r *http.Request) {
	principal := authz.PrincipalFromContext(r.Context())
	threads, err := h.service.ListThreads(r.Context(), principal)
	if err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	out := make([]threadResponse, len(threads))
	for i, t := range threads {
		out[i] = toThreadResponse(t)
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"threads": out})
}

func (h *Handler) createThread(w http.ResponseWriter, r *http.Request) {
	var req threadRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, r, httpx.Validation("Malformed request body"))
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	principal := authz.PrincipalFromContext(r.Context())
	created, err := h.service.CreateThread(r.Context(), principal, Thread{
		Subject:      req.Subject,
		ClientID:     req.ClientID,
		Participants: req.Participants,
	})
	if err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toThreadResponse(created))
}

func (h *Handler) getThread(w http.ResponseWriter, r *http.Request) {
	id, ok := h.threadID(w, r)
	if !ok {
		return
	}
	thread, err := h.service.GetThread(r.Context(), id)
	if err != nil {
		h.respondThreadError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toThreadResponse(thread))
}

func (h *Handler) listMessages(w http.ResponseWriter, r *http.Request) {
	id, ok := h.threadID(w, r)
	if !ok {
		return
	}
	records, err := h.service.Messages(r.Context(), id)
	if err != nil {
		h.respondThreadError(w, r, err)
		return
	}
	out := make([]messageResponse, len(records))
	for i, m := range records {
		out[i] = toMessageResponse(m)
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"messages": out})
}

func (h *Handler) send(w http.ResponseWriter, r *http.Request) {
	id, ok := h.threadID(w, r)
	if !ok {
		return
	}
	var req messageRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, r, httpx.Validation("Malformed request body"))
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	principal := authz.PrincipalFromContext(r.Context())
	created, err := h.service.Send(r.Context(), principal, id, req.Body)
	if err != nil {
		h.respondThreadError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toMessageResponse(created))
}

func (h *Handler) markRead(w http.ResponseWriter, r *http.Request) {
	id, ok := h.threadID(w, r)
	if !ok {
		return
	}
	principal := authz.PrincipalFromContext(r.Context())
	if err := h.service.MarkRead(r.Context(), principal, id); err != nil {
		h.respondThreadError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) threadID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.RespondError(w, r, httpx.Validation("Invalid thread id"))
		return 0, false
	}
	return id, true
}

func (h *Handler) respondThreadError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, shared.ErrNotFound) {
		httpx.RespondError(w, r, httpx.NotFound("Thread"))
		return
	}
	httpx.RespondError(w, r, err)
}

func toThreadResponse(t Thread) threadResponse {
	return threadResponse{
		ID:           t.ID,
		Subject:      t.Subject,
		ClientID:     t.ClientID,
		CreatedBy:    t.CreatedBy,
		Participants: t.Participants,
		CreatedAt:    t.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:    t.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func toMessageResponse(m Message) messageResponse {
	return messageResponse{
		ID:        m.ID,
		ThreadID:  m.ThreadID,
		SenderID:  m.SenderID,
		Body:      m.Body,
		CreatedAt: m.CreatedAt.UTC().Format(time.RFC3339),
	}
}
