package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aidtracker/aidtracker/internal/dispatch"
	"github.com/aidtracker/aidtracker/internal/events"
	"github.com/aidtracker/aidtracker/internal/telemetry"
)

// FanoutConfig holds dependencies for the fanout.
type FanoutConfig struct {
	Repository Repository
	Directory  *dispatch.Directory

	// Deliverer may be nil, in which case every notification stays queued.
	Deliverer Deliverer

	// PushDisabled switches live delivery off without touching persistence.
	PushDisabled func(ctx context.Context) bool

	Publisher events.Publisher
	Metrics   *telemetry.IncidentMetrics
	Logger    zerolog.Logger

	// Now defaults to time.Now.
	Now func() time.Time
}

// Fanout turns a routed incident into one notification per targeted admin.
type Fanout struct {
	repo         Repository
	directory    *dispatch.Directory
	deliverer    Deliverer
	pushDisabled func(ctx context.Context) bool
	publisher    events.Publisher
	metrics      *telemetry.IncidentMetrics
	logger       zerolog.Logger
	now          func() time.Time
}

// FanoutResult summarises one fanout.
type FanoutResult struct {
	Notifications []Notification `json:"notifications"`
	Delivered     int            `json:"delivered"`
	Queued        int            `json:"queued"`
}

// NewFanout creates a fanout.
func NewFanout(cfg FanoutConfig) *Fanout {
	directory := cfg.Directory
	if directory == nil {
		directory = dispatch.DefaultDirectory()
	}
	publisher := cfg.Publisher
	if publisher == nil {
		publisher = events.Noop{}
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Fanout{
		repo:         cfg.Repository,
		directory:    directory,
		deliverer:    cfg.Deliverer,
		pushDisabled: cfg.PushDisabled,
		publisher:    publisher,
		metrics:      cfg.Metrics,
		logger:       cfg.Logger.With().Str("component", "fanout").Logger(),
		now:          now,
	}
}

// Notify persists one unread notification per admin whose station is a
// route target, then attempts live delivery. Persistence is all or nothing;
// delivery is at most once and never fails the call.
func (f *Fanout) Notify(ctx context.Context, incident Incident) (*FanoutResult, error) {
	admins := f.directory.AdminsFor(incident.Route.Targets)
	result := &FanoutResult{Notifications: make([]Notification, 0, len(admins))}
	if len(admins) == 0 {
		return result, nil
	}

	createdAt := f.now().UTC()
	for _, admin := range admins {
		result.Notifications = append(result.Notifications, Notification{
			ID:           newID(),
			Title:        incident.Title(),
			Message:      incident.Message(),
			App:          "Reports",
			User:         admin.Email,
			Station:      admin.Station,
			IncidentType: incident.Route.Category,
			ReportID:     incident.ReportID,
			CreatedAt:    createdAt,
		})
	}

	if err := f.repo.AppendBatch(ctx, result.Notifications); err != nil {
		return nil, fmt.Errorf("persisting notifications for report %s: %w", incident.ReportID, err)
	}

	for _, n := range result.Notifications {
		f.metrics.NotificationCreated(ctx, string(n.Station))

		delivery := f.deliver(ctx, n)
		f.metrics.NotificationDelivered(ctx, string(delivery))
		if delivery == Delivered {
			result.Delivered++
		} else {
			result.Queued++
		}

		f.publish(ctx, n)
	}

	f.logger.Info().
		Str("report_id", incident.ReportID).
		Str("category", string(incident.Route.Category)).
		Int("notifications", len(result.Notifications)).
		Int("delivered", result.Delivered).
		Int("queued", result.Queued).
		Msg("incident fanned out")

	return result, nil
}

func (f *Fanout) deliver(ctx context.Context, n Notification) DeliveryResult {
	if f.deliverer == nil {
		return Queued
	}
	if f.pushDisabled != nil && f.pushDisabled(ctx) {
		return Queued
	}
	return f.deliverer.Deliver(n.User, n)
}

func (f *Fanout) publish(ctx context.Context, n Notification) {
	event, err := events.New(events.NotificationCreated, n)
	if err == nil {
		err = f.publisher.Publish(ctx, event)
	}
	if err != nil {
		f.logger.Warn().Err(err).Str("notification_id", n.ID).Msg("failed to publish notification event")
	}
}
