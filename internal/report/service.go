package report

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/ksuid"

	"github.com/aidtracker/aidtracker/internal/dispatch"
	"github.com/aidtracker/aidtracker/internal/events"
	"github.com/aidtracker/aidtracker/internal/media"
	"github.com/aidtracker/aidtracker/internal/notification"
	"github.com/aidtracker/aidtracker/internal/telemetry"
)

// Realtime event names emitted by the service.
const (
	EventNewReport          = "newReport"
	EventReportStatusUpdate = "reportStatusUpdate"
)

// Notifier fans an incident out to the targeted admins.
type Notifier interface {
	Notify(ctx context.Context, incident notification.Incident) (*notification.FanoutResult, error)
}

// Broadcaster pushes an event to every live connection.
type Broadcaster interface {
	Broadcast(event string, data interface{})
}

// ServiceConfig holds dependencies for the report service.
type ServiceConfig struct {
	Repository Repository
	Photos     media.Store
	Notifier   Notifier

	// Broadcaster may be nil when no live connections exist (worker).
	Broadcaster Broadcaster

	Publisher events.Publisher
	Metrics   *telemetry.IncidentMetrics

	// PhotosDisabled drops every photo when it returns true.
	PhotosDisabled func(ctx context.Context) bool

	Logger zerolog.Logger
	Now    func() time.Time
}

// Service handles report submission and status changes.
type Service struct {
	repo           Repository
	photos         media.Store
	notifier       Notifier
	broadcaster    Broadcaster
	publisher      events.Publisher
	metrics        *telemetry.IncidentMetrics
	photosDisabled func(ctx context.Context) bool
	logger         zerolog.Logger
	now            func() time.Time
}

// NewService creates a report service.
func NewService(cfg ServiceConfig) *Service {
	publisher := cfg.Publisher
	if publisher == nil {
		publisher = events.Noop{}
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Service{
		repo:           cfg.Repository,
		photos:         cfg.Photos,
		notifier:       cfg.Notifier,
		broadcaster:    cfg.Broadcaster,
		publisher:      publisher,
		metrics:        cfg.Metrics,
		photosDisabled: cfg.PhotosDisabled,
		logger:         cfg.Logger.With().Str("component", "reports").Logger(),
		now:            now,
	}
}

// Submit stores a new report, notifies the targeted stations and returns
// the routing outcome. Only a storage failure fails the submission.
func (s *Service) Submit(ctx context.Context, req *SubmitRequest) (*SubmitResult, error) {
	now := s.now().UTC()

	reporter := strings.TrimSpace(req.Reporter)
	if reporter == "" {
		reporter = DefaultReporter
	}

	report := &Report{
		ID:          ksuid.New().String(),
		Reporter:    reporter,
		Type:        req.Type,
		Location:    req.Location,
		Description: req.Description,
		Photo:       s.storePhoto(ctx, req.Photo, now),
		Status:      StatusPending,
		CreatedAt:   now,
	}

	if err := s.repo.Append(ctx, report); err != nil {
		return nil, fmt.Errorf("storing report: %w", err)
	}

	s.broadcast(EventNewReport, report)

	route := report.Route()
	s.metrics.ReportSubmitted(ctx, string(route.Category))

	if s.notifier != nil {
		incident := notification.Incident{
			ReportID: report.ID,
			Reporter: report.Reporter,
			Location: report.Location,
			Route:    route,
		}
		if _, err := s.notifier.Notify(ctx, incident); err != nil {
			s.logger.Error().Err(err).Str("report_id", report.ID).Msg("notification fanout failed")
		}
	}

	s.publish(ctx, events.ReportCreated, report)

	s.logger.Info().
		Str("report_id", report.ID).
		Str("category", string(route.Category)).
		Bool("photo", report.Photo != nil).
		Msg("report submitted")

	return &SubmitResult{
		Success:  true,
		Message:  "Report saved successfully",
		Report:   report,
		Category: route.Category,
		RoutedTo: route.Targets,
	}, nil
}

// storePhoto returns the stored reference for a data-URI photo, or nil when
// there is none, it is too large, or it cannot be decoded or stored.
func (s *Service) storePhoto(ctx context.Context, uri string, now time.Time) *string {
	if strings.TrimSpace(uri) == "" {
		return nil
	}
	if len(uri) > MaxPhotoLength {
		s.logger.Warn().Int("size", len(uri)).Msg("dropping oversized photo")
		return nil
	}
	if s.photos == nil || (s.photosDisabled != nil && s.photosDisabled(ctx)) {
		s.logger.Debug().Msg("photo storage disabled, dropping photo")
		return nil
	}

	ref, err := media.SaveDataURI(ctx, s.photos, uri, now)
	if err != nil {
		s.logger.Warn().Err(err).Msg("dropping unusable photo")
		return nil
	}
	return &ref
}

// List returns every report in creation order.
func (s *Service) List(ctx context.Context) ([]*Report, error) {
	return s.repo.List(ctx)
}

// ListForStation returns the reports a station dashboard shows.
func (s *Service) ListForStation(ctx context.Context, station dispatch.Station) ([]*Report, error) {
	all, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]*Report, 0, len(all))
	for _, r := range all {
		if dispatch.Visible(station, r.Type) {
			out = append(out, r)
		}
	}
	return out, nil
}

// Get returns one report.
func (s *Service) Get(ctx context.Context, id string) (*Report, error) {
	return s.repo.Get(ctx, id)
}

// UpdateStatus records a status change made by actor and broadcasts it.
func (s *Service) UpdateStatus(ctx context.Context, id string, status Status, actor string) (*Report, error) {
	if !status.Valid() {
		return nil, ErrInvalidStatus
	}

	updated, err := s.repo.Update(ctx, id, func(r *Report) error {
		at := s.now().UTC()
		by := actor
		r.Status = status
		r.UpdatedAt = &at
		r.UpdatedBy = &by
		return nil
	})
	if err != nil {
		return nil, err
	}

	change := StatusChange{ID: updated.ID, Status: updated.Status, UpdatedBy: actor}
	s.broadcast(EventReportStatusUpdate, change)
	s.metrics.StatusUpdated(ctx, string(status))
	s.publish(ctx, events.ReportStatusUpdated, change)

	s.logger.Info().
		Str("report_id", id).
		Str("status", string(status)).
		Str("actor", actor).
		Msg("report status updated")

	return updated, nil
}

func (s *Service) broadcast(event string, data interface{}) {
	if s.broadcaster != nil {
		s.broadcaster.Broadcast(event, data)
	}
}

func (s *Service) publish(ctx context.Context, t events.Type, data interface{}) {
	event, err := events.New(t, data)
	if err == nil {
		err = s.publisher.Publish(ctx, event)
	}
	if err != nil {
		s.logger.Warn().Err(err).Str("event_type", string(t)).Msg("failed to publish event")
	}
}
