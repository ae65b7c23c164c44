package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"

	"github.com/aidtracker/aidtracker/internal/report"
)

// ErrMalformedSubmission marks a payload that can never be processed.
var ErrMalformedSubmission = errors.New("malformed report submission")

// Submitter stores a report submission.
type Submitter interface {
	Submit(ctx context.Context, req *report.SubmitRequest) (*report.SubmitResult, error)
}

// IntakeHandler feeds report submissions from a Pub/Sub subscription into
// the report service.
type IntakeHandler struct {
	reports Submitter
	logger  zerolog.Logger

	client           *pubsub.Client
	subscriber       *pubsub.Subscriber
	subscriptionName string
}

// IntakeHandlerConfig holds dependencies for the intake handler.
type IntakeHandlerConfig struct {
	Config  IntakeConfig
	Reports Submitter
	Logger  zerolog.Logger
}

// NewIntakeHandler creates a handler without a subscription; use it to
// process payloads directly.
func NewIntakeHandler(cfg IntakeHandlerConfig) *IntakeHandler {
	return &IntakeHandler{
		reports:          cfg.Reports,
		logger:           cfg.Logger.With().Str("component", "intake").Logger(),
		subscriptionName: cfg.Config.SubscriptionName,
	}
}

// NewPubSubIntakeHandler creates a handler bound to a Pub/Sub subscription.
func NewPubSubIntakeHandler(ctx context.Context, cfg IntakeHandlerConfig) (*IntakeHandler, error) {
	client, err := pubsub.NewClient(ctx, cfg.Config.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	maxOutstanding := cfg.Config.MaxOutstanding
	if maxOutstanding <= 0 {
		maxOutstanding = 10
	}

	subscriber := client.Subscriber(cfg.Config.SubscriptionName)
	subscriber.ReceiveSettings.MaxOutstandingMessages = maxOutstanding
	subscriber.ReceiveSettings.MaxExtension = 10 * time.Minute

	h := NewIntakeHandler(cfg)
	h.client = client
	h.subscriber = subscriber
	return h, nil
}

// Start receives messages until ctx is cancelled.
func (h *IntakeHandler) Start(ctx context.Context) error {
	if h.subscriber == nil {
		return errors.New("intake handler has no subscription")
	}

	h.logger.Info().
		Str("subscription", h.subscriptionName).
		Msg("starting report intake")

	return h.subscriber.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		h.handleMessage(ctx, msg)
	})
}

// Close closes the Pub/Sub client.
func (h *IntakeHandler) Close() error {
	if h.client == nil {
		return nil
	}
	return h.client.Close()
}

func (h *IntakeHandler) handleMessage(ctx context.Context, msg *pubsub.Message) {
	logger := h.logger.With().
		Str("message_id", msg.ID).
		Str("publish_time", msg.PublishTime.Format(time.RFC3339)).
		Logger()

	result, err := h.Process(ctx, msg.Data)
	switch {
	case errors.Is(err, ErrMalformedSubmission):
		// Redelivery cannot fix it.
		logger.Error().Err(err).Msg("dropping malformed submission")
		msg.Ack()
	case err != nil:
		logger.Error().Err(err).Msg("report intake failed")
		msg.Nack()
	default:
		logger.Info().
			Str("report_id", result.Report.ID).
			Str("category", string(result.Category)).
			Msg("report ingested")
		msg.Ack()
	}
}

// Process decodes one submission and stores it. ErrMalformedSubmission means
// the payload should be discarded; any other error is retryable.
func (h *IntakeHandler) Process(ctx context.Context, data []byte) (*report.SubmitResult, error) {
	var req report.SubmitRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedSubmission, err)
	}
	if errs := req.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMalformedSubmission, errs[0].Message)
	}

	return h.reports.Submit(ctx, &req)
}
