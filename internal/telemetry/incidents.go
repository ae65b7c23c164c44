package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// IncidentMetrics counts reports and notification deliveries. A nil
// *IncidentMetrics records nothing.
type IncidentMetrics struct {
	reportsSubmitted     metric.Int64Counter
	statusUpdates        metric.Int64Counter
	notificationsCreated metric.Int64Counter
	deliveries           metric.Int64Counter
}

// NewIncidentMetrics registers the incident instruments on meter.
func NewIncidentMetrics(meter metric.Meter) (*IncidentMetrics, error) {
	reportsSubmitted, err := meter.Int64Counter(
		"aidtracker.reports.submitted",
		metric.WithDescription("Reports accepted, by incident category"),
		metric.WithUnit("{report}"),
	)
	if err != nil {
		return nil, err
	}

	statusUpdates, err := meter.Int64Counter(
		"aidtracker.reports.status_updates",
		metric.WithDescription("Report status transitions, by new status"),
		metric.WithUnit("{update}"),
	)
	if err != nil {
		return nil, err
	}

	notificationsCreated, err := meter.Int64Counter(
		"aidtracker.notifications.created",
		metric.WithDescription("Notifications persisted, by station"),
		metric.WithUnit("{notification}"),
	)
	if err != nil {
		return nil, err
	}

	deliveries, err := meter.Int64Counter(
		"aidtracker.notifications.deliveries",
		metric.WithDescription("Live delivery attempts, by result"),
		metric.WithUnit("{delivery}"),
	)
	if err != nil {
		return nil, err
	}

	return &IncidentMetrics{
		reportsSubmitted:     reportsSubmitted,
		statusUpdates:        statusUpdates,
		notificationsCreated: notificationsCreated,
		deliveries:           deliveries,
	}, nil
}

// ReportSubmitted counts one accepted report.
func (m *IncidentMetrics) ReportSubmitted(ctx context.Context, category string) {
	if m == nil {
		return
	}
	m.reportsSubmitted.Add(ctx, 1, metric.WithAttributes(attribute.String("category", category)))
}

// StatusUpdated counts one status transition.
func (m *IncidentMetrics) StatusUpdated(ctx context.Context, status string) {
	if m == nil {
		return
	}
	m.statusUpdates.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}

// NotificationCreated counts one persisted notification.
func (m *IncidentMetrics) NotificationCreated(ctx context.Context, station string) {
	if m == nil {
		return
	}
	m.notificationsCreated.Add(ctx, 1, metric.WithAttributes(attribute.String("station", station)))
}

// NotificationDelivered counts one delivery attempt with its result.
func (m *IncidentMetrics) NotificationDelivered(ctx context.Context, result string) {
	if m == nil {
		return
	}
	m.deliveries.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}
