package clients

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

// Handler wires client record endpoints.
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

// MountRoutes registers routes. Reads and writes on an individual
// record go through the ownership guard: the assigned clinician or a
// practice_admin.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.guards.RequireMinimumRole(authz.RoleIntern)).Get("/", h.list)
	r.With(h.guards.RequireMinimumRole(authz.RoleScheduler)).Post("/", h.create)
	r.With(h.guards.RequireOwnerOrRole(authz.RolePracticeAdmin, h.ownerResolver)).Get("/{id}", h.get)
	r.With(h.guards.RequireOwnerOrRole(authz.RolePracticeAdmin, h.ownerResolver)).Put("/{id}", h.update)
	r.With(h.guards.RequireMinimumRole(authz.RolePracticeAdmin)).Delete("/{id}", h.remove)
}

func (h *Handler) ownerResolver(r *http.Request) (int64, bool, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		return 0, false, nil
	}
	return h.service.OwnerID(r.Context(), id)
}

type clientRequest struct {
	FirstName   string `json:"firstName" validate:"required,max=100"`
	LastName    string `json:"lastName" validate:"required,max=100"`
	Email       string `json:"email" validate:"required,email"`
	Phone       string `json:"phone" validate:"omitempty,e164"`
	DateOfBirth string `json:"dateOfBirth" validate:"omitempty,datetime=2006-01-02"`
	Status      string `json:"status" validate:"omitempty,oneof=inquiry active inactive discharged"`
	ClinicianID int64  `json:"clinicianId" validate:"required"`
	ReferralID  *int64 `json:"referralId"`
	Notes       string `json:"notes" validate:"max=4000"`
}

type clientResponse struct {
	ID          int64   `json:"id"`
	FirstName   string  `json:"firstName"`
	LastName    string  `json:"lastName"`
	Email       string  `json:"email"`
	Phone       string  `json:"phone,omitempty"`
	DateOfBirth *string `json:"dateOfBirth,omitempty"`
	Status      string  `json:"status"`
	ClinicianID int64   `json:"clinicianId"`
	ReferralID  *int64  `json:"referralId,omitempty"`
	Notes       string  `json:"notes,omitempty"`
	CreatedAt   string  `json:"createdAt"`
	UpdatedAt   string  `json:"updatedAt"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	page, perPage := shared.PageFromRequest(r)
	clinicianID, _ := strconv.ParseInt(r.URL.Query().Get("clinicianId"), 10, 64)
	filters := ListFilters{
		Status:      Status(r.URL.Query().Get("status")),
		ClinicianID: clinicianID,
		Search:      r.URL.Query().Get("search"),
		Page:        page,
		PerPage:     perPage,
	}
	principal := authz.PrincipalFromContext(r.Context())
	records, total, err := h.service.List(r.Context(), principal, filters)
	if err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	out := make([]clientResponse, len(records))
	for i, c := range records {
		out[i] = toClientResponse(c)
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"clients":    out,
		"pagination": shared.NewPagination(page, perPage, total),
	})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.RespondError(w, r, httpx.Validation("Invalid client id"))
		return
	}
	record, err := h.service.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			httpx.RespondError(w, r, httpx.NotFound("Client"))
			return
		}
		httpx.RespondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toClientResponse(record))
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	record, ok := h.decodeClient(w, r)
	if !ok {
		return
	}
	actor := authz.PrincipalFromContext(r.Context())
	created, err := h.service.Create(r.Context(), actor, record)
	if err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toClientResponse(created))
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.RespondError(w, r, httpx.Validation("Invalid client id"))
		return
	}
	record, ok := h.decodeClient(w, r)
	if !ok {
		return
	}
	actor := authz.PrincipalFromContext(r.Context())
	updated, err := h.service.Update(r.Context(), actor, id, record)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			httpx.RespondError(w, r, httpx.NotFound("Client"))
			return
		}
		httpx.RespondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toClientResponse(updated))
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.RespondError(w, r, httpx.Validation("Invalid client id"))
		return
	}
	actor := authz.PrincipalFromContext(r.Context())
	if err := h.service.Delete(r.Context(), actor, id); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			httpx.RespondError(w, r, httpx.NotFound("Client"))
			return
		}
		httpx.RespondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) decodeClient(w http.ResponseWriter, r *http.Request) (Client, bool) {
	var req clientRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, r, httpx.Validation("Malformed request body"))
		return Client{}, false
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, r, err)
		return Client{}, false
	}
	record := Client{
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		Email:       req.Email,
		Phone:       req.Phone,
		Status:      Status(req.Status),
		ClinicianID: req.ClinicianID,
		ReferralID:  req.ReferralID,
		Notes:       req.Notes,
	}
	if req.DateOfBirth != "" {
		dob, err := time.Parse("2006-01-02", req.DateOfBirth)
		if err == nil {
			record.DateOfBirth = &dob
		}
	}
	return record, true
}

func toClientResponse(c Client) clientResponse {
	out := clientResponse{
		ID:          c.ID,
		FirstName:   c.FirstName,
		LastName:    c.LastName,
		Email:       c.Email,
		Phone:       c.Phone,
		Status:      string(c.Status),
		ClinicianID: c.ClinicianID,
		ReferralID:  c.ReferralID,
		Notes:       c.Notes,
		CreatedAt:   c.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:   c.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if c.DateOfBirth != nil {
		dob := c.DateOfBirth.Format("2006-01-02")
		out.DateOfBirth = &dob
	}
	return out
}
