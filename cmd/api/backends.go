package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/aidtracker/aidtracker/internal/api/handler"
	"github.com/aidtracker/aidtracker/internal/auth"
	"github.com/aidtracker/aidtracker/internal/config"
	"github.com/aidtracker/aidtracker/internal/events"
	"github.com/aidtracker/aidtracker/internal/featureflags"
	"github.com/aidtracker/aidtracker/internal/media"
	"github.com/aidtracker/aidtracker/internal/notification"
	"github.com/aidtracker/aidtracker/internal/provider/resilience"
	"github.com/aidtracker/aidtracker/internal/report"
)

const devSigningKey = "local-dev-signing-key-change-in-production"

// backends holds the storage chosen by configuration.
type backends struct {
	sessions      auth.SessionStore
	accounts      auth.AccountRepository
	reports       report.Repository
	notifications notification.Repository
	flags         featureflags.Repository
	photos        media.Store
	uploadDir     string
	checks        []handler.DependencyCheck
	closers       []func()
}

func (b *backends) close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

func openBackends(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool, log zerolog.Logger) (*backends, error) {
	b := &backends{}

	if pool != nil {
		b.checks = append(b.checks, handler.DependencyCheck{Name: "database", Check: pool.Ping})
	}

	switch cfg.Auth.SessionBackend {
	case config.BackendRedis:
		client, err := auth.NewRedisClient(ctx, auth.RedisConfig{
			Addr:     cfg.Auth.RedisAddr,
			Password: cfg.Auth.RedisPassword,
			DB:       cfg.Auth.RedisDB,
		})
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, func() { _ = client.Close() })
		b.checks = append(b.checks, handler.DependencyCheck{
			Name:  "sessions",
			Check: func(ctx context.Context) error { return client.Ping(ctx).Err() },
		})
		b.sessions = auth.NewRedisSessionStore(client)
		log.Info().Str("addr", cfg.Auth.RedisAddr).Msg("redis session store connected")
	default:
		b.sessions = auth.NewInMemorySessionStore()
	}

	switch cfg.Store.Backend {
	case config.BackendPostgres:
		b.accounts = auth.NewPostgresAccountRepository(pool)
		b.reports = report.NewPostgresRepository(pool)
		b.notifications = notification.NewPostgresRepository(pool)
		b.flags = featureflags.NewPostgresRepository(pool)
	case config.BackendFile:
		reports, err := report.NewFileRepository(filepath.Join(cfg.Store.DataDir, "reports.json"), log)
		if err != nil {
			return nil, err
		}
		notifications, err := notification.NewFileRepository(filepath.Join(cfg.Store.DataDir, "notifications.json"), log)
		if err != nil {
			return nil, err
		}
		b.accounts = auth.NewInMemoryAccountRepository()
		b.reports = reports
		b.notifications = notifications
		b.flags = featureflags.NewInMemoryRepository()
	default:
		b.accounts = auth.NewInMemoryAccountRepository()
		b.reports = report.NewInMemoryRepository()
		b.notifications = notification.NewInMemoryRepository()
		b.flags = featureflags.NewInMemoryRepository()
	}

	switch cfg.Photos.Backend {
	case config.BackendS3:
		store, err := media.NewObjectStore(media.ObjectStoreConfig{
			Endpoint:  cfg.Photos.S3Endpoint,
			AccessKey: cfg.Photos.S3AccessKey,
			SecretKey: cfg.Photos.S3SecretKey,
			Region:    cfg.Photos.S3Region,
			Bucket:    cfg.Photos.S3Bucket,
			UseSSL:    cfg.Photos.S3UseSSL,
			PublicURL: cfg.Photos.S3PublicURL,
		})
		if err != nil {
			return nil, err
		}
		if err := store.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		b.photos = store
		b.checks = append(b.checks, handler.DependencyCheck{Name: "photos", Check: store.EnsureBucket})
	default:
		store, err := media.NewDiskStore(cfg.Photos.UploadDir, "/uploads")
		if err != nil {
			return nil, err
		}
		b.photos = store
		b.uploadDir = store.Dir()
	}

	return b, nil
}

// newProvider builds the identity provider named by AUTH_PROVIDER.
func newProvider(cfg *config.Config, accounts auth.AccountRepository, registry *resilience.Registry, log zerolog.Logger) auth.Provider {
	if cfg.Auth.Provider == config.ProviderLocal {
		signingKey := cfg.Auth.JWTSigningKey
		if signingKey == "" {
			signingKey = devSigningKey
			log.Warn().Msg("using default JWT signing key - not secure for production")
		}
		return auth.NewLocalProvider(auth.LocalConfig{
			Accounts: accounts,
			JWT:      auth.NewJWTService(auth.JWTConfig{SigningKey: signingKey}),
		})
	}

	return auth.NewExternalProvider(auth.ExternalConfig{
		BaseURL:  strings.TrimRight(cfg.Auth.ProviderURL, "/"),
		APIKey:   cfg.Auth.ProviderAPIKey,
		Registry: registry,
	})
}

// newPublisher connects the event broker named by EVENTS_BACKEND. Publishing
// can be switched off at runtime through the feature flag service.
func newPublisher(ctx context.Context, cfg *config.Config, flags *featureflags.Service, log zerolog.Logger) (events.Publisher, error) {
	var publisher events.Publisher

	switch cfg.Events.Backend {
	case config.BackendRabbitMQ:
		p, err := events.NewRabbitPublisher(events.RabbitConfig{URL: cfg.Events.RabbitMQURL, Logger: log})
		if err != nil {
			return nil, fmt.Errorf("rabbitmq publisher: %w", err)
		}
		publisher = p
	case config.BackendPubSub:
		p, err := events.NewPubSubPublisher(ctx, events.PubSubConfig{
			ProjectID: cfg.Events.PubSubProjectID,
			Topic:     cfg.Events.PubSubTopic,
			Logger:    log,
		})
		if err != nil {
			return nil, fmt.Errorf("pubsub publisher: %w", err)
		}
		publisher = p
	default:
		return events.Noop{}, nil
	}

	log.Info().Str("backend", cfg.Events.Backend).Msg("event publisher connected")
	return events.Switchable{Publisher: publisher, Off: flags.IsEventPublishingDisabled}, nil
}
