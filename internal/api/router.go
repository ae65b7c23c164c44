// Package api provides the HTTP API for AidTracker.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/aidtracker/aidtracker/internal/api/handler"
	"github.com/aidtracker/aidtracker/internal/api/middleware"
	"github.com/aidtracker/aidtracker/internal/api/models"
	"github.com/aidtracker/aidtracker/internal/auth"
	"github.com/aidtracker/aidtracker/internal/dispatch"
	"github.com/aidtracker/aidtracker/internal/featureflags"
	"github.com/aidtracker/aidtracker/internal/notification"
	"github.com/aidtracker/aidtracker/internal/provider/resilience"
	"github.com/aidtracker/aidtracker/internal/report"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version     string
	BuildTime   string
	Logger      zerolog.Logger
	ServiceName string
	Metrics     *middleware.Metrics

	// RequireTLS rejects plain HTTP behind a TLS-terminating proxy and marks
	// the session cookie Secure.
	RequireTLS bool

	// WebDir holds the dashboard HTML pages.
	WebDir string

	// UploadDir is served under /uploads when photos are stored on disk.
	UploadDir string

	AuthService         *auth.Service
	Providers           *resilience.Registry
	ReportService       *report.Service
	NotificationService *notification.Service
	FeatureFlagService  *featureflags.Service

	// Realtime serves the websocket endpoint.
	Realtime http.Handler

	// Connections returns the number of open realtime connections.
	Connections func() int

	// Checks are probed by the readiness and status endpoints.
	Checks []handler.DependencyCheck
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "aidtracker-api"
	}

	// Global middleware - order matters
	r.Use(middleware.RequestID)            // Generate/propagate request ID first
	r.Use(middleware.Tracing(serviceName)) // Distributed tracing
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware()) // HTTP metrics
	}
	r.Use(middleware.Logger(cfg.Logger))         // Structured logging
	r.Use(middleware.Recovery(cfg.Logger))       // Panic recovery
	r.Use(chimiddleware.RealIP)                  // Real IP extraction
	r.Use(middleware.SecurityHeaders)            // Security headers (HSTS, CSP, etc.)
	r.Use(middleware.RequireTLS(cfg.RequireTLS)) // TLS enforcement behind a proxy

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		problem := models.NewNotFound(middleware.GetRequestID(r.Context()), "no route for "+r.Method+" "+r.URL.Path)
		problem.Instance = r.URL.Path
		problem.Write(w)
	})

	guard := middleware.NewGuard(middleware.GuardConfig{
		Verifier: cfg.AuthService,
		Logger:   cfg.Logger,
	})

	// Initialize handlers
	opsHandler := handler.NewOpsHandler(handler.OpsConfig{
		Version:     cfg.Version,
		BuildTime:   cfg.BuildTime,
		Providers:   cfg.Providers,
		Sessions:    cfg.AuthService,
		Flags:       cfg.FeatureFlagService,
		Checks:      cfg.Checks,
		Connections: cfg.Connections,
	})
	authHandler := handler.NewAuthHandler(cfg.AuthService, cfg.RequireTLS, cfg.Logger)
	reportHandler := handler.NewReportHandler(cfg.ReportService, cfg.Logger)
	notificationHandler := handler.NewNotificationHandler(cfg.NotificationService, cfg.Logger)
	featureFlagsHandler := handler.NewFeatureFlagsHandler(cfg.FeatureFlagService, cfg.Logger)
	pageHandler := handler.NewPageHandler(cfg.WebDir)

	// Create rate limit middleware for different endpoint categories
	authRateLimit := middleware.RateLimitByIP(middleware.AuthRateLimit)         // 10 req/min
	submitRateLimit := middleware.RateLimitByIP(middleware.SubmitRateLimit)     // 30 req/min
	standardRateLimit := middleware.RateLimitByIP(middleware.StandardRateLimit) // 100 req/min
	userRateLimit := middleware.RateLimitByUser(middleware.StandardRateLimit)   // 100 req/min per admin
	connectRateLimit := middleware.RateLimitByIP(middleware.ConnectRateLimit)   // 20 req/min

	r.Get("/health", opsHandler.HealthCheck)

	if cfg.Realtime != nil {
		r.With(connectRateLimit).Handle("/ws", cfg.Realtime)
	}

	if cfg.UploadDir != "" {
		r.Handle("/uploads/*", handler.Uploads("/uploads/", cfg.UploadDir))
	}

	// Dashboard pages
	r.Group(func(r chi.Router) {
		r.Use(middleware.NoStore)
		r.Get("/", pageHandler.Index)
		r.Get("/login", pageHandler.Index)

		for _, station := range dispatch.All() {
			name := station.String()
			page := guard.Page(station)
			r.With(page).Get("/"+name, pageHandler.Page(name))
			r.With(page).Get("/"+name+"-notif", pageHandler.Page(name+"-notif"))
			r.With(page).Get("/"+name+"-notif.html", pageHandler.Page(name+"-notif"))
		}
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.NoStore)
		r.Use(middleware.RequireJSON)

		// Ops endpoints (public)
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
			// Status endpoint is for station admins
			r.With(guard.RequireAdmin).Get("/status", opsHandler.SystemStatus)
		})

		// Session endpoints (public) - strict rate limiting
		r.Group(func(r chi.Router) {
			r.Use(authRateLimit) // 10 requests per minute per IP
			r.Post("/login", authHandler.Login)
			r.Post("/verify-token", authHandler.VerifyToken)
			r.Post("/logout", authHandler.Logout)
			r.Post("/register", authHandler.Register)
		})

		// Reports: submission and listing are public
		r.Route("/reports", func(r chi.Router) {
			r.With(standardRateLimit).Get("/", reportHandler.ListReports)
			r.With(submitRateLimit).Post("/", reportHandler.SubmitReport)
			r.With(standardRateLimit).Get("/{id}", reportHandler.GetReport)
			r.With(guard.RequireIdentity, userRateLimit).Put("/{id}/status", reportHandler.UpdateStatus)
		})

		// Station dashboards (station admin only)
		r.Route("/station/{station}", func(r chi.Router) {
			r.Use(guard.RequireStation("station"))
			r.Use(userRateLimit)
			r.Get("/reports", reportHandler.ListStationReports)
			r.Get("/notifications", notificationHandler.ListNotifications)
			r.Get("/notifications/unread", notificationHandler.UnreadCount)
			r.Put("/notifications/read", notificationHandler.MarkAllRead)
			r.Delete("/notifications", notificationHandler.ClearNotifications)
		})

		r.Route("/notifications", func(r chi.Router) {
			r.With(guard.RequireAdmin, userRateLimit).Post("/", notificationHandler.CreateNotification)
			r.Group(func(r chi.Router) {
				r.Use(guard.RequireIdentity)
				r.Use(userRateLimit)
				r.Put("/{id}/read", notificationHandler.MarkRead)
				r.Delete("/{id}", notificationHandler.DeleteNotification)
			})
		})

		// Admin endpoints - for internal operations
		r.Route("/admin", func(r chi.Router) {
			r.Use(guard.RequireAdmin)
			r.Use(userRateLimit)

			// Feature flags management
			r.Route("/feature-flags", func(r chi.Router) {
				r.Get("/", featureFlagsHandler.ListFeatureFlags)
				r.Put("/", featureFlagsHandler.UpsertFeatureFlags)
				r.Post("/invalidate", featureFlagsHandler.InvalidateCache)
			})
		})
	})

	return r
}
