package auth

import (
	"context"
	"sync"
	"time"
)

// SessionStore keeps verified tokens for a bounded time. Implementations
// must be safe for concurrent use.
type SessionStore interface {
	// Get returns the live session for token or ErrSessionNotFound.
	Get(ctx context.Context, token string) (*Session, error)

	// Set stores or replaces the session for session.Token.
	Set(ctx context.Context, session *Session) error

	// Delete removes the session for token. Missing tokens are not an error.
	Delete(ctx context.Context, token string) error

	// Sweep evicts sessions expired at now and returns how many were removed.
	Sweep(ctx context.Context, now time.Time) (int, error)

	// Count returns the number of stored sessions.
	Count(ctx context.Context) (int, error)
}

// InMemorySessionStore is a process-local SessionStore.
type InMemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]Session
}

// NewInMemorySessionStore creates an empty store.
func NewInMemorySessionStore() *InMemorySessionStore {
	return &InMemorySessionStore{sessions: make(map[string]Session)}
}

// Get returns a copy of the session. Expired entries are evicted on read.
func (s *InMemorySessionStore) Get(_ context.Context, token string) (*Session, error) {
	s.mu.RLock()
	session, ok := s.sessions[token]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}

	if session.Expired(time.Now()) {
		s.mu.Lock()
		if current, ok := s.sessions[token]; ok && current.Expired(time.Now()) {
			delete(s.sessions, token)
		}
		s.mu.Unlock()
		return nil, ErrSessionNotFound
	}
	return &session, nil
}

// Set stores a copy of the session.
func (s *InMemorySessionStore) Set(_ context.Context, session *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.Token] = *session
	return nil
}

// Delete removes the session for token.
func (s *InMemorySessionStore) Delete(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, token)
	return nil
}

// Sweep removes every session expired at now.
func (s *InMemorySessionStore) Sweep(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for token, session := range s.sessions {
		if session.Expired(now) {
			delete(s.sessions, token)
			removed++
		}
	}
	return removed, nil
}

// Count returns the number of stored sessions, including expired ones not yet swept.
func (s *InMemorySessionStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions), nil
}

var _ SessionStore = (*InMemorySessionStore)(nil)
