package crm

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

// Handler wires CRM endpoints. Reads require scheduler seniority,
// writes require practice_admin.
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

// MountRoutes registers CRM routes.
func (h *Handler) MountRoutes(r chi.Router) {
	read := h.guards.RequireMinimumRole(authz.RoleScheduler)
	write := h.guards.RequireMinimumRole(authz.RolePracticeAdmin)

	r.With(read).Get("/leads", h.listLeads)
	r.With(read).Get("/leads/{id}", h.getLead)
	r.With(read).Post("/leads", h.createLead)
	r.With(read).Post("/leads/{id}/status", h.transitionLead)

	r.With(read).Get("/referral-sources", h.listReferralSources)
	r.With(write).Post("/referral-sources", h.createReferralSource)
	r.With(write).Put("/referral-sources/{id}", h.updateReferralSource)

	r.With(read).Get("/campaigns", h.listCampaigns)
	r.With(write).Post("/campaigns", h.createCampaign)

	r.With(read).Get("/stats", h.stats)
}

type leadRequest struct {
	FirstName  string `json:"firstName" validate:"required,max=100"`
	LastName   string `json:"lastName" validate:"required,max=100"`
	Email      string `json:"email" validate:"required,email"`
	Phone      string `json:"phone" validate:"omitempty,e164"`
	Source     string `json:"source" validate:"required,max=200"`
	CampaignID *int64 `json:"campaignId"`
	Notes      string `json:"notes" validate:"max=4000"`
}

type leadStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=contacted qualified converted lost"`
}

type referralSourceRequest struct {
	Name         string `json:"name" validate:"required,max=200"`
	Organization string `json:"organization" validate:"max=200"`
	Email        string `json:"email" validate:"omitempty,email"`
	Phone        string `json:"phone" validate:"omitempty,e164"`
	Specialty    string `json:"specialty" validate:"max=200"`
	Active       bool   `json:"active"`
}

type campaignRequest struct {
	Name     string  `json:"name" validate:"required,max=200"`
	Channel  string  `json:"channel" validate:"required,oneof=search social print referral event other"`
	StartsAt string  `json:"startsAt" validate:"required,datetime=2006-01-02"`
	EndsAt   string  `json:"endsAt" validate:"omitempty,datetime=2006-01-02"`
	Budget   float64 `json:"budget" validate:"min=0"`
}

func (h *Handler) listLeads(w http.ResponseWriter, r *http.Request) {
	leads, err := h.service.ListLeads(r.Context(), LeadStatus(r.URL.Query().Get("status")))
	if err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"leads": leads})
}

func (h *Handler) getLead(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.RespondError(w, r, httpx.Validation("Invalid lead id"))
		return
	}
	lead, err := h.service.GetLead(r.Context(), id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			httpx.RespondError(w, r, httpx.NotFound("Lead"))
			return
		}
		httpx.RespondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, lead)
}

func (h *Handler) createLead(w http.ResponseWriter, r *http.Request) {
	var req leadRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, r, httpx.Validation("Malformed request body"))
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	created, err := h.service.CreateLead(r.Context(), Lead{
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		Email:      req.Email,
		Phone:      req.Phone,
		Source:     req.Source,
		CampaignID: req.CampaignID,
		Notes:      req.Notes,
	})
	if err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) transitionLead(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.RespondError(w, r, httpx.Validation("Invalid lead id"))
		return
	}
	var req leadStatusRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, r, httpx.Validation("Malformed request body"))
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	updated, err := h.service.TransitionLead(r.Context(), id, LeadStatus(req.Status))
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			httpx.RespondError(w, r, httpx.NotFound("Lead"))
			return
		}
		httpx.RespondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, updated)
}

func (h *Handler) listReferralSources(w http.ResponseWriter, r *http.Request) {
	sources, err := h.service.ListReferralSources(r.Context())
	if err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"referralSources": sources})
}

func (h *Handler) createReferralSource(w http.ResponseWriter, r *http.Request) {
	var req referralSourceRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, r, httpx.Validation("Malformed request body"))
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	created, err := h.service.CreateReferralSource(r.Context(), ReferralSource{
		Name:         req.Name,
		Organization: req.Organization,
		Email:        req.Email,
		Phone:        req.Phone,
		Specialty:    req.Specialty,
	})
	if err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) updateReferralSource(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.RespondError(w, r, httpx.Validation("Invalid referral source id"))
		return
	}
	var req referralSourceRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, r, httpx.Validation("Malformed request body"))
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	updated, err := h.service.UpdateReferralSource(r.Context(), id, ReferralSource{
		Name:         req.Name,
		Organization: req.Organization,
		Email:        req.Email,
		Phone:        req.Phone,
		Specialty:    req.Specialty,
		Active:       req.Active,
	})
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			httpx.RespondError(w, r, httpx.NotFound("Referral source"))
			return
		}
		httpx.RespondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, updated)
}

func (h *Handler) listCampaigns(w http.ResponseWriter, r *http.Request) {
	campaigns, err := h.service.ListCampaigns(r.Context())
	if err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"campaigns": campaigns})
}

func (h *Handler) createCampaign(w http.ResponseWriter, r *http.Request) {
	var req campaignRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, r, httpx.Validation("Malformed request body"))
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	campaign := Campaign{
		Name:    req.Name,
		Channel: req.Channel,
		Budget:  req.Budget,
	}
	campaign.StartsAt, _ = time.Parse("2006-01-02", req.StartsAt)
	if req.EndsAt != "" {
		if endsAt, err := time.Parse("2006-01-02", req.EndsAt); err == nil {
			campaign.EndsAt = &endsAt
		}
	}
	created, err := h.service.CreateCampaign(r.Context(), campaign)
	if err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, stats)
}
