// Package events publishes domain events about reports and notifications to
// an external broker.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/ksuid"
)

// Type names a domain event. It doubles as the broker routing key.
type Type string

// Event types.
const (
	ReportCreated       Type = "report.created"
	ReportStatusUpdated Type = "report.status_updated"
	NotificationCreated Type = "notification.created"
)

// Event is the envelope sent to the broker.
type Event struct {
	ID         string          `json:"id"`
	Type       Type            `json:"type"`
	OccurredAt time.Time       `json:"occurredAt"`
	Data       json.RawMessage `json:"data"`
}

// New builds an event with a fresh id around data.
func New(t Type, data interface{}) (Event, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Event{}, fmt.Errorf("encode %s payload: %w", t, err)
	}
	return Event{
		ID:         ksuid.New().String(),
		Type:       t,
		OccurredAt: time.Now().UTC(),
		Data:       raw,
	}, nil
}

// Publisher sends events to a broker. Implementations must be safe for
// concurrent use.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// Noop discards every event.
type Noop struct{}

// Publish does nothing.
func (Noop) Publish(context.Context, Event) error { return nil }

// Close does nothing.
func (Noop) Close() error { return nil }

var _ Publisher = Noop{}

// Switchable wraps a Publisher and drops events while Off reports true.
type Switchable struct {
	Publisher Publisher
	Off       func(ctx context.Context) bool
}

// Publish forwards e unless publishing is switched off.
func (s Switchable) Publish(ctx context.Context, e Event) error {
	if s.Off != nil && s.Off(ctx) {
		return nil
	}
	return s.Publisher.Publish(ctx, e)
}

// Close closes the wrapped publisher.
func (s Switchable) Close() error {
	return s.Publisher.Close()
}

var _ Publisher = Switchable{}
