package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aidtracker/aidtracker/internal/dispatch"
)

// ServiceConfig holds dependencies for the auth service.
type ServiceConfig struct {
	Provider   Provider
	Sessions   SessionStore
	Directory  *dispatch.Directory
	SessionTTL time.Duration
	Logger     zerolog.Logger

	// Now defaults to time.Now.
	Now func() time.Time
}

// Service verifies tokens, resolves roles and manages sessions.
type Service struct {
	provider  Provider
	sessions  SessionStore
	directory *dispatch.Directory
	ttl       time.Duration
	logger    zerolog.Logger
	now       func() time.Time
}

// NewService creates a new auth service.
func NewService(cfg ServiceConfig) *Service {
	ttl := cfg.SessionTTL
	if ttl == 0 {
		ttl = DefaultSessionTTL
	}
	directory := cfg.Directory
	if directory == nil {
		directory = dispatch.DefaultDirectory()
	}
	sessions := cfg.Sessions
	if sessions == nil {
		sessions = NewInMemorySessionStore()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Service{
		provider:  cfg.Provider,
		sessions:  sessions,
		directory: directory,
		ttl:       ttl,
		logger:    cfg.Logger.With().Str("component", "auth").Logger(),
		now:       now,
	}
}

// Provider returns the configured identity provider.
func (s *Service) Provider() Provider {
	return s.provider
}

// Verify resolves a token to an identity. A live session is trusted as is;
// otherwise the provider is asked and the result is cached as a new session.
func (s *Service) Verify(ctx context.Context, token string) (*Identity, error) {
	if token == "" {
		return nil, ErrUnauthenticated
	}

	session, err := s.sessions.Get(ctx, token)
	switch {
	case err == nil:
		identity := session.Identity
		return &identity, nil
	case !errors.Is(err, ErrSessionNotFound):
		s.logger.Warn().Err(err).Msg("session lookup failed, falling back to provider")
	}

	user, err := s.provider.Authenticate(ctx, token)
	if err != nil {
		if errors.Is(err, ErrUnauthenticated) {
			return nil, ErrUnauthenticated
		}
		s.logger.Warn().Err(err).Str("provider", s.provider.Name()).Msg("token verification failed")
		return nil, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}

	identity := s.resolve(user)
	if _, err := s.startSession(ctx, token, identity); err != nil {
		return nil, err
	}
	return &identity, nil
}

// CheckToken reports whether token is valid without surfacing the reason.
func (s *Service) CheckToken(ctx context.Context, token string) (*Identity, bool) {
	identity, err := s.Verify(ctx, token)
	if err != nil {
		return nil, false
	}
	return identity, true
}

// Login signs a station admin in. Valid credentials of a non-admin are
// rejected with ErrAdminOnly and no session is written.
func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	creds, err := s.provider.SignIn(ctx, normalizeEmail(email), password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			return nil, ErrInvalidCredentials
		}
		s.logger.Warn().Err(err).Str("provider", s.provider.Name()).Msg("sign-in failed")
		return nil, fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
	}

	identity := s.resolve(&creds.User)
	if !identity.IsAdmin() {
		s.logger.Info().Str("email", identity.Email).Msg("non-admin login rejected")
		return nil, ErrAdminOnly
	}

	session, err := s.startSession(ctx, creds.AccessToken, identity)
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("email", identity.Email).
		Str("station", identity.Station.String()).
		Msg("admin logged in")

	return &LoginResult{
		Token:        creds.AccessToken,
		RefreshToken: creds.RefreshToken,
		User:         identity,
		RedirectURL:  "/" + identity.Station.String(),
		ExpiresAt:    session.ExpiresAt,
	}, nil
}

// Logout drops the session and signs out with the provider on a best-effort basis.
func (s *Service) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := s.sessions.Delete(ctx, token); err != nil {
		s.logger.Warn().Err(err).Msg("failed to delete session")
	}
	if err := s.provider.SignOut(ctx, token); err != nil {
		s.logger.Warn().Err(err).Str("provider", s.provider.Name()).Msg("provider sign-out failed")
	}
	return nil
}

// Register creates an account when the provider supports it.
func (s *Service) Register(ctx context.Context, email, password string) (*Identity, error) {
	registrar, ok := s.provider.(Registrar)
	if !ok {
		return nil, ErrRegistrationUnsupported
	}
	user, err := registrar.Register(ctx, email, password)
	if err != nil {
		return nil, err
	}
	identity := s.resolve(user)
	return &identity, nil
}

// Sweep evicts expired sessions.
func (s *Service) Sweep(ctx context.Context) (int, error) {
	return s.sessions.Sweep(ctx, s.now())
}

// SessionCount returns the number of stored sessions.
func (s *Service) SessionCount(ctx context.Context) (int, error) {
	return s.sessions.Count(ctx)
}

func (s *Service) resolve(user *ProviderUser) Identity {
	email := normalizeEmail(user.Email)
	identity := Identity{
		UserID:  user.ID,
		Email:   email,
		Station: dispatch.StationNone,
		Role:    RoleUser,
	}
	if station, ok := s.directory.Lookup(email); ok {
		identity.Station = station
		identity.Role = RoleAdmin
	}
	return identity
}

func (s *Service) startSession(ctx context.Context, token string, identity Identity) (*Session, error) {
	now := s.now()
	session := &Session{
		Token:     token,
		Identity:  identity,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	if err := s.sessions.Set(ctx, session); err != nil {
		return nil, fmt.Errorf("storing session: %w", err)
	}
	return session, nil
}
