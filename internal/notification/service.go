package notification

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ServiceConfig holds dependencies for the inbox service.
type ServiceConfig struct {
	Repository Repository
	Deliverer  Deliverer
	Logger     zerolog.Logger
	Now        func() time.Time
}

// Service exposes a user's inbox: listing, read state and deletion.
type Service struct {
	repo      Repository
	deliverer Deliverer
	logger    zerolog.Logger
	now       func() time.Time
}

// NewService creates a new notification service.
func NewService(cfg ServiceConfig) *Service {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		repo:      cfg.Repository,
		deliverer: cfg.Deliverer,
		logger:    cfg.Logger.With().Str("component", "notifications").Logger(),
		now:       now,
	}
}

// SetDeliverer attaches the live channel after construction; the realtime
// hub itself depends on this service.
func (s *Service) SetDeliverer(d Deliverer) {
	s.deliverer = d
}

// ListForUser returns the user's inbox.
func (s *Service) ListForUser(ctx context.Context, user string) ([]Notification, error) {
	return s.repo.ListForUser(ctx, user)
}

// MarkRead marks any notification read by id.
func (s *Service) MarkRead(ctx context.Context, id string) (*Notification, error) {
	return s.repo.MarkRead(ctx, id, "", s.now().UTC())
}

// MarkReadFor marks one of the user's own notifications read.
func (s *Service) MarkReadFor(ctx context.Context, user, id string) (*Notification, error) {
	return s.repo.MarkRead(ctx, id, user, s.now().UTC())
}

// MarkAllRead marks every notification of the user read.
func (s *Service) MarkAllRead(ctx context.Context, user string) (int, error) {
	return s.repo.MarkAllRead(ctx, user, s.now().UTC())
}

// Delete removes one of the user's notifications.
func (s *Service) Delete(ctx context.Context, user, id string) error {
	return s.repo.Delete(ctx, user, id)
}

// ClearForUser removes every notification addressed to user.
func (s *Service) ClearForUser(ctx context.Context, user string) (int, error) {
	removed, err := s.repo.ClearForUser(ctx, user)
	if err != nil {
		return 0, err
	}
	s.logger.Info().Str("user", user).Int("removed", removed).Msg("notifications cleared")
	return removed, nil
}

// UnreadCount counts unread notifications visible to user.
func (s *Service) UnreadCount(ctx context.Context, user string) (int, error) {
	return s.repo.CountUnread(ctx, user)
}

// Create stores a manual notification for one user or Everyone and pushes it live.
func (s *Service) Create(ctx context.Context, req *CreateRequest) (*Notification, error) {
	user := strings.TrimSpace(req.User)
	if user == "" {
		user = Everyone
	}
	app := strings.TrimSpace(req.App)
	if app == "" {
		app = "System"
	}

	n := Notification{
		ID:        newID(),
		Title:     strings.TrimSpace(req.Title),
		Message:   strings.TrimSpace(req.Message),
		App:       app,
		User:      user,
		CreatedAt: s.now().UTC(),
	}
	if err := s.repo.AppendBatch(ctx, []Notification{n}); err != nil {
		return nil, err
	}

	if s.deliverer != nil {
		result := s.deliverer.Deliver(user, n)
		s.logger.Debug().Str("notification_id", n.ID).Str("result", string(result)).Msg("manual notification sent")
	}
	return &n, nil
}
