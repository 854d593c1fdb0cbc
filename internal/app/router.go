package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/tidewater-health/tidewater/internal/auth"
	"github.com/tidewater-health/tidewater/internal/clients"
	"github.com/tidewater-health/tidewater/internal/crm"
	"github.com/tidewater-health/tidewater/internal/documents"
	"github.com/tidewater-health/tidewater/internal/intake"
	"github.com/tidewater-health/tidewater/internal/messaging"
	"github.com/tidewater-health/tidewater/internal/observability"
	"github.com/tidewater-health/tidewater/internal/platform/httpx"
	"github.com/tidewater-health/tidewater/internal/scheduling"
	"github.com/tidewater-health/tidewater/internal/shared"
	"github.com/tidewater-health/tidewater/internal/users"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger            *slog.Logger
	Config            *Config
	SessionManager    *shared.SessionManager
	CSRFManager       *shared.CSRFManager
	AuthService       *auth.Service
	AuthHandler       *auth.Handler
	UsersHandler      *users.Handler
	ClientsHandler    *clients.Handler
	IntakeHandler     *intake.Handler
	CRMHandler        *crm.Handler
	MessagingHandler  *messaging.Handler
	SchedulingHandler *scheduling.Handler
	DocumentsHandler  *documents.Handler
	Metrics           *observability.Metrics
}

// NewRouter constructs the chi.Router with Tidewater defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)
	r.Use(auth.PrincipalMiddleware(params.Logger, params.AuthService))

	r.NotFound(httpx.NotFoundHandler())
	r.MethodNotAllowed(httpx.MethodNotAllowedHandler())

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Route("/api", func(api chi.Router) {
		api.Use(CSRFMiddleware(params.Logger, params.CSRFManager))

		api.Route("/auth", params.AuthHandler.MountRoutes)
		api.Route("/intake", func(ir chi.Router) {
			params.IntakeHandler.MountPublicRoutes(ir)
			params.IntakeHandler.MountRoutes(ir)
		})
		api.Route("/users", params.UsersHandler.MountRoutes)
		api.Route("/clients", params.ClientsHandler.MountRoutes)
		api.Route("/crm", params.CRMHandler.MountRoutes)
		api.Route("/messages", params.MessagingHandler.MountRoutes)
		api.Route("/sessions", params.SchedulingHandler.MountRoutes)
		api.Route("/documents", params.DocumentsHandler.MountRoutes)
	})

	return r
}
