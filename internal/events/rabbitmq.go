package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/avast/retry-go"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// DefaultExchange is the topic exchange events are published to.
const DefaultExchange = "aidtracker.events"

const (
	publishTimeout      = 5 * time.Second
	defaultAttempts     = 3
	defaultInitialDelay = 200 * time.Millisecond
	defaultMaxDelay     = 2 * time.Second
)

// ErrChannelUnavailable is returned while the broker connection is down.
var ErrChannelUnavailable = errors.New("rabbitmq channel not available")

// RabbitConfig configures the RabbitMQ publisher.
type RabbitConfig struct {
	URL      string
	Exchange string

	// Attempts per publish, including the first. Default: 3.
	Attempts uint

	Logger zerolog.Logger
}

// RabbitPublisher publishes events as persistent messages on a topic
// exchange. A dropped connection is re-dialled on the next publish attempt.
type RabbitPublisher struct {
	url      string
	exchange string
	attempts uint
	logger   zerolog.Logger

	mu      sync.Mutex
	conn    *amqp.Connection
	channel *amqp.Channel
	closed  bool
}

// NewRabbitPublisher dials the broker and declares the exchange.
func NewRabbitPublisher(cfg RabbitConfig) (*RabbitPublisher, error) {
	exchange := cfg.Exchange
	if exchange == "" {
		exchange = DefaultExchange
	}
	attempts := cfg.Attempts
	if attempts == 0 {
		attempts = defaultAttempts
	}

	p := &RabbitPublisher{
		url:      cfg.URL,
		exchange: exchange,
		attempts: attempts,
		logger:   cfg.Logger.With().Str("component", "events.rabbitmq").Logger(),
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.connectLocked(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *RabbitPublisher) connectLocked() error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("failed to open channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		p.exchange,
		"topic",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return fmt.Errorf("failed to declare exchange: %w", err)
	}

	p.conn = conn
	p.channel = ch
	p.logger.Info().Str("exchange", p.exchange).Msg("connected to rabbitmq")
	return nil
}

// channelFor returns a usable channel, reconnecting if the previous one closed.
func (p *RabbitPublisher) channelFor() (*amqp.Channel, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, ErrChannelUnavailable
	}
	if p.channel != nil && !p.channel.IsClosed() {
		return p.channel, nil
	}

	if p.conn != nil {
		_ = p.conn.Close()
	}
	p.conn, p.channel = nil, nil
	if err := p.connectLocked(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrChannelUnavailable, err)
	}
	return p.channel, nil
}

// Publish sends the event with the event type as routing key, retrying with
// exponential backoff.
func (p *RabbitPublisher) Publish(ctx context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	err = retry.Do(
		func() error {
			if err := ctx.Err(); err != nil {
				return retry.Unrecoverable(err)
			}

			ch, err := p.channelFor()
			if err != nil {
				return err
			}

			pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
			defer cancel()

			return ch.PublishWithContext(
				pubCtx,
				p.exchange,
				string(event.Type),
				false, // mandatory
				false, // immediate
				amqp.Publishing{
					ContentType:  "application/json",
					DeliveryMode: amqp.Persistent,
					MessageId:    event.ID,
					Timestamp:    event.OccurredAt,
					Type:         string(event.Type),
					Body:         body,
				},
			)
		},
		retry.Attempts(p.attempts),
		retry.Delay(defaultInitialDelay),
		retry.MaxDelay(defaultMaxDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.OnRetry(func(n uint, err error) {
			p.logger.Warn().
				Err(err).
				Uint("attempt", n+1).
				Str("event_id", event.ID).
				Msg("retrying event publish")
		}),
	)
	if err != nil {
		return fmt.Errorf("publish %s: %w", event.Type, err)
	}

	p.logger.Debug().Str("event_id", event.ID).Str("type", string(event.Type)).Msg("event published")
	return nil
}

// Close shuts the channel and connection down.
func (p *RabbitPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closed = true
	if p.channel != nil {
		_ = p.channel.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

var _ Publisher = (*RabbitPublisher)(nil)
