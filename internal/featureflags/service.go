package featureflags

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ServiceConfig holds configuration for the feature flag service.
type ServiceConfig struct {
	Repository Repository
	Logger     zerolog.Logger

	// CacheTTL is how long a loaded snapshot is served before the
	// repository is read again.
	// Default: 1 minute
	CacheTTL time.Duration
}

// Service answers switch lookups from a cached snapshot of the repository.
// When the repository cannot be read the last good snapshot is kept, or all
// switches read as off. A nil *Service reports every switch as off.
type Service struct {
	repo     Repository
	logger   zerolog.Logger
	cacheTTL time.Duration

	mu       sync.RWMutex
	snapshot []Flag
	loadedAt time.Time
}

// NewService creates a new feature flag service.
func NewService(cfg ServiceConfig) *Service {
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = time.Minute
	}
	repo := cfg.Repository
	if repo == nil {
		repo = NewInMemoryRepository()
	}
	return &Service{
		repo:     repo,
		logger:   cfg.Logger.With().Str("component", "featureflags").Logger(),
		cacheTTL: ttl,
	}
}

// List returns every known switch ordered by key.
func (s *Service) List(ctx context.Context) []Flag {
	s.mu.RLock()
	fresh := s.snapshot != nil && time.Since(s.loadedAt) < s.cacheTTL
	snapshot := s.snapshot
	s.mu.RUnlock()
	if fresh {
		return snapshot
	}

	stored, err := s.repo.Load(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to load feature flags, serving last known state")
		if snapshot != nil {
			return snapshot
		}
		return merge(nil)
	}

	snapshot = merge(stored)
	s.mu.Lock()
	s.snapshot = snapshot
	s.loadedAt = time.Now()
	s.mu.Unlock()
	return snapshot
}

// IsEnabled reports whether the switch with the given key is on.
func (s *Service) IsEnabled(ctx context.Context, key string) bool {
	if s == nil {
		return false
	}
	for _, f := range s.List(ctx) {
		if f.Key == key {
			return f.Enabled
		}
	}
	return false
}

// Active returns the keys of every switch that is on, ordered by key.
func (s *Service) Active(ctx context.Context) []string {
	if s == nil {
		return nil
	}
	var keys []string
	for _, f := range s.List(ctx) {
		if f.Enabled {
			keys = append(keys, f.Key)
		}
	}
	return keys
}

// Apply validates and stores an operator update, then returns the new state.
func (s *Service) Apply(ctx context.Context, req *FlagUpdateRequest, actor string) ([]Flag, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	flags := make([]Flag, 0, len(req.Updates))
	for _, u := range req.Updates {
		flags = append(flags, Flag{Key: u.Key, Enabled: u.Enabled, UpdatedAt: now, UpdatedBy: actor})
	}
	if err := s.repo.Save(ctx, flags...); err != nil {
		return nil, err
	}

	for _, f := range flags {
		s.logger.Info().
			Str("flag", f.Key).
			Bool("enabled", f.Enabled).
			Str("actor", actor).
			Str("reason", req.Reason).
			Msg("feature flag updated")
	}

	s.InvalidateCache()
	return s.List(ctx), nil
}

// InvalidateCache expires the snapshot so the next lookup reads the
// repository. The expired snapshot still serves as the fallback.
func (s *Service) InvalidateCache() {
	s.mu.Lock()
	s.loadedAt = time.Time{}
	s.mu.Unlock()
}

// IsRealtimePushDisabled reports whether live notification delivery is switched off.
func (s *Service) IsRealtimePushDisabled(ctx context.Context) bool {
	return s.IsEnabled(ctx, FlagDisableRealtimePush)
}

// IsPhotoStorageDisabled reports whether incoming photos are dropped.
func (s *Service) IsPhotoStorageDisabled(ctx context.Context) bool {
	return s.IsEnabled(ctx, FlagDisablePhotoStorage)
}

// IsEventPublishingDisabled reports whether broker publishing is switched off.
func (s *Service) IsEventPublishingDisabled(ctx context.Context) bool {
	return s.IsEnabled(ctx, FlagDisableEventPublishing)
}
