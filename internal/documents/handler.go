package documents

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

// Handler wires clinical note endpoints.
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

// MountRoutes registers routes. Notes are owned by their author;
// clinicians and above can read colleagues' notes for supervision, but
// only the author or a practice_admin can edit or sign.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.guards.RequireMinimumRole(authz.RoleIntern)).Get("/", h.list)
	r.With(h.guards.RequireMinimumRole(authz.RoleIntern)).Post("/", h.create)
	r.With(h.guards.RequireOwnerOrRole(authz.RoleClinician, h.ownerResolver)).Get("/{id}", h.get)
	r.With(h.guards.RequireOwnerOrRole(authz.RolePracticeAdmin, h.ownerResolver)).Put("/{id}", h.update)
	r.With(h.guards.RequireOwnerOrRole(authz.RolePracticeAdmin, h.ownerResolver)).Post("/{id}/sign", h.sign)
	r.With(h.guards.RequireOwnerOrRole(authz.RolePracticeAdmin, h.ownerResolver)).Delete("/{id}", h.remove)
}

func (h *Handler) ownerResolver(r *http.Request) (int64, bool, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		return 0, false, nil
	}
	return h.service.OwnerID(r.Context(), id)
}

type noteRequest struct {
	ClientID  int64  `json:"clientId" validate:"required"`
	SessionID *int64 `json:"sessionId"`
	Kind      string `json:"kind" validate:"required,oneof=progress_note intake_summary treatment_plan discharge_summary"`
	Title     string `json:"title" validate:"required,max=200"`
	Body      string `json:"body" validate:"required"`
}

type noteResponse struct {
	ID        int64   `json:"id"`
	ClientID  int64   `json:"clientId"`
	SessionID *int64  `json:"sessionId,omitempty"`
	AuthorID  int64   `json:"authorId"`
	Kind      string  `json:"kind"`
	Title     string  `json:"title"`
	Body      string  `json:"body"`
	SignedAt  *string `json:"signedAt,omitempty"`
	CreatedAt string  `json:"createdAt"`
	UpdatedAt string  `json:"updatedAt"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	clientID, _ := strconv.ParseInt(q.Get("clientId"), 10, 64)
	authorID, _ := strconv.ParseInt(q.Get("authorId"), 10, 64)
	filters := ListFilters{
		ClientID: clientID,
		AuthorID: authorID,
		Kind:     NoteKind(q.Get("kind")),
	}
	principal := authz.PrincipalFromContext(r.Context())
	records, err := h.service.List(r.Context(), principal, filters)
	if err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	out := make([]noteResponse, len(records))
	for i, n := range records {
		out[i] = toNoteResponse(n)
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"notes": out})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.noteID(w, r)
	if !ok {
		return
	}
	record, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondNoteError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toNoteResponse(record))
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	record, ok := h.decodeNote(w, r)
	if !ok {
		return
	}
	author := authz.PrincipalFromContext(r.Context())
	created, err := h.service.Create(r.Context(), author, record)
	if err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toNoteResponse(created))
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.noteID(w, r)
	if !ok {
		return
	}
	record, decoded := h.decodeNote(w, r)
	if !decoded {
		return
	}
	actor := authz.PrincipalFromContext(r.Context())
	updated, err := h.service.Update(r.Context(), actor, id, record)
	if err != nil {
		h.respondNoteError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toNoteResponse(updated))
}

func (h *Handler) sign(w http.ResponseWriter, r *http.Request) {
	id, ok := h.noteID(w, r)
	if !ok {
		return
	}
	actor := authz.PrincipalFromContext(r.Context())
	signed, err := h.service.Sign(r.Context(), actor, id)
	if err != nil {
		h.respondNoteError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toNoteResponse(signed))
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	id, ok := h.noteID(w, r)
	if !ok {
		return
	}
	actor := authz.PrincipalFromContext(r.Context())
	if err := h.service.Delete(r.Context(), actor, id); err != nil {
		h.respondNoteError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) noteID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.RespondError(w, r, httpx.Validation("Invalid note id"))
		return 0, false
	}
	return id, true
}

func (h *Handler) respondNoteError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, shared.ErrNotFound) {
		httpx.RespondError(w, r, httpx.NotFound("Note"))
		return
	}
	httpx.RespondError(w, r, err)
}

func (h *Handler) decodeNote(w http.ResponseWriter, r *http.Request) (Note, bool) {
	var req noteRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, r, httpx.Validation("Malformed request body"))
		return Note{}, false
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, r, err)
		return Note{}, false
	}
	return Note{
		ClientID:  req.ClientID,
		SessionID: req.SessionID,
		Kind:      NoteKind(req.Kind),
		Title:     req.Title,
		Body:      req.Body,
	}, true
}

func toNoteResponse(n Note) noteResponse {
	out := noteResponse{
		ID:        n.ID,
		ClientID:  n.ClientID,
		SessionID: n.SessionID,
		AuthorID:  n.AuthorID,
		Kind:      string(n.Kind),
		Title:     n.Title,
		Body:      n.Body,
		CreatedAt: n.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt: n.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if n.SignedAt != nil {
		signed := n.SignedAt.UTC().Format(time.RFC3339)
		out.SignedAt = &signed
	}
	return out
}
