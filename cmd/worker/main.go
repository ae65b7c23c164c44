// Package main provides the entrypoint for the AidTracker worker. It feeds
// report submissions from a Pub/Sub subscription through the same pipeline
// as the API: storage, classification, notification fanout and events.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/aidtracker/aidtracker/internal/config"
	"github.com/aidtracker/aidtracker/internal/database"
	"github.com/aidtracker/aidtracker/internal/dispatch"
	"github.com/aidtracker/aidtracker/internal/events"
	"github.com/aidtracker/aidtracker/internal/featureflags"
	"github.com/aidtracker/aidtracker/internal/media"
	"github.com/aidtracker/aidtracker/internal/notification"
	"github.com/aidtracker/aidtracker/internal/report"
	"github.com/aidtracker/aidtracker/internal/telemetry"
	"github.com/aidtracker/aidtracker/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "aidtracker-worker"

	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().Str("build_time", BuildTime).Msg("starting AidTracker worker")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	if cfg.Events.IntakeSubscription == "" || cfg.Events.PubSubProjectID == "" {
		log.Fatal().Msg("PUBSUB_PROJECT_ID and PUBSUB_INTAKE_SUBSCRIPTION are required")
	}

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

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
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = tp.Shutdown(shutdownCtx)
	}()

	var (
		pool          *pgxpool.Pool
		reports       report.Repository
		notifications notification.Repository
		flagRepo      featureflags.Repository = featureflags.NewInMemoryRepository()
	)

	switch cfg.Store.Backend {
	case config.BackendPostgres:
		pool, err = database.Connect(ctx, database.ConfigFromEnv())
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer pool.Close()
		if err := database.Migrate(ctx, pool); err != nil {
			log.Fatal().Err(err).Msg("failed to migrate database")
		}
		reports = report.NewPostgresRepository(pool)
		notifications = notification.NewPostgresRepository(pool)
		flagRepo = featureflags.NewPostgresRepository(pool)
	case config.BackendFile:
		log.Warn().Msg("file store is not shared with the API process; use postgres in production")
		fileReports, err := report.NewFileRepository(filepath.Join(cfg.Store.DataDir, "reports.json"), log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to open report store")
		}
		fileNotifications, err := notification.NewFileRepository(filepath.Join(cfg.Store.DataDir, "notifications.json"), log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to open notification store")
		}
		reports, notifications = fileReports, fileNotifications
	default:
		reports = report.NewInMemoryRepository()
		notifications = notification.NewInMemoryRepository()
	}

	var photos media.Store
	if cfg.Photos.Backend == config.BackendS3 {
		photos, err = media.NewObjectStore(media.ObjectStoreConfig{
			Endpoint:  cfg.Photos.S3Endpoint,
			AccessKey: cfg.Photos.S3AccessKey,
			SecretKey: cfg.Photos.S3SecretKey,
			Region:    cfg.Photos.S3Region,
			Bucket:    cfg.Photos.S3Bucket,
			UseSSL:    cfg.Photos.S3UseSSL,
			PublicURL: cfg.Photos.S3PublicURL,
		})
	} else {
		photos, err = media.NewDiskStore(cfg.Photos.UploadDir, "/uploads")
	}
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open photo store")
	}

	directory, err := dispatch.ParseDirectory(cfg.Auth.AdminDirectory)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid admin directory")
	}

	ffService := featureflags.NewService(featureflags.ServiceConfig{
		Repository: flagRepo,
		Logger:     log,
	})

	var publisher events.Publisher = events.Noop{}
	if cfg.Events.Backend == config.BackendPubSub {
		p, err := events.NewPubSubPublisher(ctx, events.PubSubConfig{
			ProjectID: cfg.Events.PubSubProjectID,
			Topic:     cfg.Events.PubSubTopic,
			Logger:    log,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect event publisher")
		}
		publisher = events.Switchable{Publisher: p, Off: ffService.IsEventPublishingDisabled}
	}
	defer func() { _ = publisher.Close() }()

	// No live connections here: notifications stay queued until the admin
	// reconnects to the API and loads the inbox.
	fanout := notification.NewFanout(notification.FanoutConfig{
		Repository: notifications,
		Directory:  directory,
		Publisher:  publisher,
		Metrics:    tp.Incidents,
		Logger:     log,
	})
	reportService := report.NewService(report.ServiceConfig{
		Repository:     reports,
		Photos:         photos,
		Notifier:       fanout,
		Publisher:      publisher,
		Metrics:        tp.Incidents,
		PhotosDisabled: ffService.IsPhotoStorageDisabled,
		Logger:         log,
	})

	intake, err := worker.NewPubSubIntakeHandler(ctx, worker.IntakeHandlerConfig{
		Config: worker.IntakeConfig{
			ProjectID:        cfg.Events.PubSubProjectID,
			SubscriptionName: cfg.Events.IntakeSubscription,
		},
		Reports: reportService,
		Logger:  log,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create intake handler")
	}
	defer func() { _ = intake.Close() }()

	// Worker also exposes a health endpoint for Cloud Run
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		status := map[string]string{"status": "OK", "version": Version}
		if pool != nil {
			if err := pool.Ping(r.Context()); err != nil {
				status["status"] = "FAIL"
				status["database"] = err.Error()
			}
		}
		w.Header().Set("Content-Type", "application/json")
		if status["status"] != "OK" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(status)
	})

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("health check server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("health server error")
		}
	}()

	go func() {
		if err := intake.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("report intake stopped")
			cancel()
		}
	}()

	// Wait for interrupt signal or a failed subscription
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down worker")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("health server forced to shutdown")
	}

	log.Info().Msg("worker stopped")
}
