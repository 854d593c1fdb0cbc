package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/tidewater-health/tidewater/internal/app"
	"github.com/tidewater-health/tidewater/internal/auth"
	"github.com/tidewater-health/tidewater/internal/authz"
	"github.com/tidewater-health/tidewater/internal/clients"
	"github.com/tidewater-health/tidewater/internal/crm"
	"github.com/tidewater-health/tidewater/internal/documents"
	"github.com/tidewater-health/tidewater/internal/intake"
	"github.com/tidewater-health/tidewater/internal/messaging"
	"github.com/tidewater-health/tidewater/internal/observability"
	"github.com/tidewater-health/tidewater/internal/platform/cache"
	"github.com/tidewater-health/tidewater/internal/platform/db"
	"github.com/tidewater-health/tidewater/internal/scheduling"
	"github.com/tidewater-health/tidewater/internal/shared"
	"github.com/tidewater-health/tidewater/internal/users"
	"github.com/tidewater-health/tidewater/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	// Sessions live in redis, so the server cannot start without it.
	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, "tidewater_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)
	auditLogger := shared.NewAuditLogger(pool)
	metrics := observability.NewMetrics()
	guards := authz.Middleware{Logger: logger}

	jobClient := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr}, cfg.ReminderLeadTime)
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	authRepo := auth.NewRepository(pool)
	authService := auth.NewService(authRepo)
	authHandler := auth.NewHandler(logger, authService, sessionManager, csrfManager)

	usersRepo := users.NewRepository(pool)
	usersService := users.NewService(usersRepo, auditLogger)
	usersHandler := users.NewHandler(logger, usersService, guards)

	clientsRepo := clients.NewRepository(pool)
	clientsService := clients.NewService(clientsRepo, auditLogger)
	clientsHandler := clients.NewHandler(logger, clientsService, guards)

	intakeRepo := intake.NewRepository(pool)
	intakeService := intake.NewService(intakeRepo, auditLogger, jobClient, logger)
	intakeHandler := intake.NewHandler(logger, intakeService, guards)

	crmRepo := crm.NewRepository(pool)
	crmCache := crm.NewStatsCache(redisClient, 5*time.Minute)
	crmService := crm.NewService(crmRepo, crmCache)
	crmHandler := crm.NewHandler(logger, crmService, guards)

	messagingRepo := messaging.NewRepository(pool)
	messagingService := messaging.NewService(messagingRepo)
	messagingHandler := messaging.NewHandler(logger, messagingService, guards)

	schedulingRepo := scheduling.NewRepository(pool)
	schedulingService := scheduling.NewService(schedulingRepo, jobClient, logger)
	schedulingHandler := scheduling.NewHandler(logger, schedulingService, guards)

	documentsRepo := documents.NewRepository(pool)
	documentsService := documents.NewService(documentsRepo, auditLogger)
	documentsHandler := documents.NewHandler(logger, documentsService, guards)

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		SessionManager:    sessionManager,
		CSRFManager:       csrfManager,
		AuthService:       authService,
		AuthHandler:       authHandler,
		UsersHandler:      usersHandler,
		ClientsHandler:    clientsHandler,
		IntakeHandler:     intakeHandler,
		CRMHandler:        crmHandler,
		MessagingHandler:  messagingHandler,
		SchedulingHandler: schedulingHandler,
		DocumentsHandler:  documentsHandler,
		Metrics:           metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
