// Package main provides the entrypoint for the AidTracker API server.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/aidtracker/aidtracker/internal/api"
	"github.com/aidtracker/aidtracker/internal/api/middleware"
	"github.com/aidtracker/aidtracker/internal/auth"
	"github.com/aidtracker/aidtracker/internal/config"
	"github.com/aidtracker/aidtracker/internal/database"
	"github.com/aidtracker/aidtracker/internal/dispatch"
	"github.com/aidtracker/aidtracker/internal/featureflags"
	"github.com/aidtracker/aidtracker/internal/notification"
	"github.com/aidtracker/aidtracker/internal/provider/resilience"
	"github.com/aidtracker/aidtracker/internal/realtime"
	"github.com/aidtracker/aidtracker/internal/report"
	"github.com/aidtracker/aidtracker/internal/telemetry"
	"github.com/aidtracker/aidtracker/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "aidtracker-api"

	// Setup structured logging
	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting AidTracker API")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	// Initialize OpenTelemetry
	ctx := context.Background()

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    cfg.Env,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		Enabled:        cfg.OTELEnabled,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	if cfg.OTELEnabled {
		log.Info().
			Str("otlp_endpoint", cfg.OTLPEndpoint).
			Msg("OpenTelemetry initialized")
	}

	// Initialize metrics
	metrics, err := middleware.NewMetrics()
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize metrics")
		os.Exit(1) //nolint:gocritic // intentional exit, telemetry cleanup is best-effort
	}

	// Connect to database when a store needs it
	var pool *pgxpool.Pool
	if cfg.UsesPostgres() {
		dbConfig := database.ConfigFromEnv()
		pool, err = database.Connect(ctx, dbConfig)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer pool.Close()
		if err := database.Migrate(ctx, pool); err != nil {
			log.Fatal().Err(err).Msg("failed to migrate database")
		}
		log.Info().
			Str("host", dbConfig.Host).
			Int("port", dbConfig.Port).
			Str("database", dbConfig.Database).
			Msg("database connected")
	}

	stores, err := openBackends(ctx, cfg, pool, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open storage backends")
	}
	defer stores.close()
	log.Info().
		Str("store", cfg.Store.Backend).
		Str("sessions", cfg.Auth.SessionBackend).
		Str("photos", cfg.Photos.Backend).
		Msg("storage backends ready")

	directory, err := dispatch.ParseDirectory(cfg.Auth.AdminDirectory)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid admin directory")
	}

	// Initialize feature flags repository and service
	ffService := featureflags.NewService(featureflags.ServiceConfig{
		Repository: stores.flags,
		Logger:     log,
		CacheTTL:   1 * time.Minute,
	})
	log.Info().Msg("feature flags service initialized")

	// Initialize auth provider and service
	providers := resilience.NewRegistry()
	authService := auth.NewService(auth.ServiceConfig{
		Provider:   newProvider(cfg, stores.accounts, providers, log),
		Sessions:   stores.sessions,
		Directory:  directory,
		SessionTTL: cfg.Auth.SessionTTL,
		Logger:     log,
	})
	log.Info().
		Str("provider", authService.Provider().Name()).
		Int("admins", directory.Len()).
		Msg("auth service initialized")

	publisher, err := newPublisher(ctx, cfg, ffService, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect event publisher")
	}
	defer func() { _ = publisher.Close() }()

	// Notifications and the realtime hub depend on each other: the hub
	// serves inbox commands, the inbox pushes through the hub.
	inbox := notification.NewService(notification.ServiceConfig{
		Repository: stores.notifications,
		Logger:     log,
	})
	hub := realtime.NewHub(realtime.HubConfig{
		Inbox:        inbox,
		Verifier:     authService,
		RequireToken: cfg.Realtime.RequireToken,
		Logger:       log,
	})
	inbox.SetDeliverer(hub)
	if err := metrics.ObserveConnections(hub.Connections); err != nil {
		log.Warn().Err(err).Msg("failed to register connection gauge")
	}

	fanout := notification.NewFanout(notification.FanoutConfig{
		Repository:   stores.notifications,
		Directory:    directory,
		Deliverer:    hub,
		PushDisabled: ffService.IsRealtimePushDisabled,
		Publisher:    publisher,
		Metrics:      tp.Incidents,
		Logger:       log,
	})

	reportService := report.NewService(report.ServiceConfig{
		Repository:     stores.reports,
		Photos:         stores.photos,
		Notifier:       fanout,
		Broadcaster:    hub,
		Publisher:      publisher,
		Metrics:        tp.Incidents,
		PhotosDisabled: ffService.IsPhotoStorageDisabled,
		Logger:         log,
	})
	log.Info().Msg("report service initialized")

	// Expired sessions are swept in-process; redis expires them itself.
	sweep := worker.NewSweepJob(worker.SweepJobConfig{
		Config:   worker.DefaultSweepConfig(),
		Sessions: authService,
		Logger:   log,
	})
	if err := sweep.Start(); err != nil {
		log.Fatal().Err(err).Msg("failed to schedule session sweep")
	}

	// Create router with configuration
	router := api.NewRouter(api.RouterConfig{
		Version:             Version,
		BuildTime:           BuildTime,
		Logger:              log,
		ServiceName:         serviceName,
		Metrics:             metrics,
		RequireTLS:          cfg.RequireTLS,
		WebDir:              cfg.WebDir,
		UploadDir:           stores.uploadDir,
		AuthService:         authService,
		Providers:           providers,
		ReportService:       reportService,
		NotificationService: inbox,
		FeatureFlagService:  ffService,
		Realtime:            hub,
		Connections:         hub.Connections,
		Checks:              stores.checks,
	})

	// Create HTTP server. No write timeout: websocket connections are long lived.
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	sweep.Stop(ctx)
	hub.Close()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		os.Exit(1)
	}

	log.Info().Msg("server stopped")
}
