package intake

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

// Handler wires intake endpoints. Submission is public; review
// endpoints require clinical staff.
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

// MountPublicRoutes registers the unauthenticated submission endpoint.
func (h *Handler) MountPublicRoutes(r chi.Router) {
	r.Post("/forms", h.submit)
}

// MountRoutes registers staff review endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.guards.RequireMinimumRole(authz.RoleScheduler)).Get("/forms", h.list)
	r.With(h.guards.RequireMinimumRole(authz.RoleScheduler)).Get("/forms/{id}", h.get)
	r.With(h.guards.RequireMinimumRole(authz.RoleClinician)).Post("/forms/{id}/convert", h.convert)
	r.With(h.guards.RequireMinimumRole(authz.RoleClinician)).Post("/forms/{id}/reject", h.reject)
}

type submitRequest struct {
	FirstName             string `json:"firstName" validate:"required,max=100"`
	LastName              string `json:"lastName" validate:"required,max=100"`
	Email                 string `json:"email" validate:"required,email"`
	Phone                 string `json:"phone" validate:"required,e164"`
	DateOfBirth           string `json:"dateOfBirth" validate:"required,datetime=2006-01-02"`
	ReasonForVisit        string `json:"reasonForVisit" validate:"required,max=4000"`
	InsuranceProvider     string `json:"insuranceProvider" validate:"max=200"`
	EmergencyContactName  string `json:"emergencyContactName" validate:"required,max=200"`
	EmergencyContactPhone string `json:"emergencyContactPhone" validate:"required,e164"`
	ConsentAccepted       bool   `json:"consentAccepted"`
}

type convertRequest struct {
	ClinicianID int64 `json:"clinicianId" validate:"required"`
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, r, httpx.Validation("Malformed request body"))
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	form := Form{
		FirstName:             req.FirstName,
		LastName:              req.LastName,
		Email:                 req.Email,
		Phone:                 req.Phone,
		ReasonForVisit:        req.ReasonForVisit,
		InsuranceProvider:     req.InsuranceProvider,
		EmergencyContactName:  req.EmergencyContactName,
		EmergencyContactPhone: req.EmergencyContactPhone,
		ConsentAccepted:       req.ConsentAccepted,
	}
	if dob, err := time.Parse("2006-01-02", req.DateOfBirth); err == nil {
		form.DateOfBirth = &dob
	}
	created, err := h.service.Submit(r.Context(), form)
	if err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{
		"id":     created.ID,
		"status": created.Status,
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	forms, err := h.service.List(r.Context(), FormStatus(r.URL.Query().Get("status")))
	if err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"forms": forms})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.RespondError(w, r, httpx.Validation("Invalid form id"))
		return
	}
	form, err := h.service.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			httpx.RespondError(w, r, httpx.NotFound("Intake form"))
			return
		}
		httpx.RespondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, form)
}

func (h *Handler) convert(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.RespondError(w, r, httpx.Validation("Invalid form id"))
		return
	}
	var req convertRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, r, httpx.Validation("Malformed request body"))
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	reviewer := authz.PrincipalFromContext(r.Context())
	clientID, err := h.service.Convert(r.Context(), reviewer, id, req.ClinicianID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			httpx.RespondError(w, r, httpx.NotFound("Intake form"))
			return
		}
		httpx.RespondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"clientId": clientID})
}

func (h *Handler) reject(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.RespondError(w, r, httpx.Validation("Invalid form id"))
		return
	}
	reviewer := authz.PrincipalFromContext(r.Context())
	if err := h.service.Reject(r.Context(), reviewer, id); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			httpx.RespondError(w, r, httpx.NotFound("Intake form"))
			return
		}
		httpx.RespondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
