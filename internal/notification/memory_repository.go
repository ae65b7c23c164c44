package notification

import (
	"context"
	"sync"
	"time"
)

// InMemoryRepository is an in-memory implementation of Repository.
type InMemoryRepository struct {
	mu    sync.RWMutex
	items []Notification
}

// NewInMemoryRepository creates an empty repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{}
}

// AppendBatch stores the notifications.
func (r *InMemoryRepository) AppendBatch(_ context.Context, ns []Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, ns...)
	return nil
}

// ListForUser returns copies of the notifications visible to user.
func (r *InMemoryRepository) ListForUser(_ context.Context, user string) ([]Notification, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return listFor(r.items, user), nil
}

// MarkRead marks a notification read.
func (r *InMemoryRepository) MarkRead(_ context.Context, id, owner string, at time.Time) (*Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, ok := markRead(r.items, id, owner, at)
	if !ok {
		return nil, ErrNotificationNotFound
	}
	return n, nil
}

// MarkAllRead marks the user's notifications read.
func (r *InMemoryRepository) MarkAllRead(_ context.Context, user string, at time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return markAllRead(r.items, user, at), nil
}

// Delete removes one of the user's notifications.
func (r *InMemoryRepository) Delete(_ context.Context, user, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var removed int
	r.items, removed = remove(r.items, func(n Notification) bool {
		return !(n.ID == id && n.User == user)
	})
	if removed == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

// ClearForUser removes every notification addressed to user.
func (r *InMemoryRepository) ClearForUser(_ context.Context, user string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var removed int
	r.items, removed = remove(r.items, func(n Notification) bool { return n.User != user })
	return removed, nil
}

// CountUnread counts unread notifications visible to user.
func (r *InMemoryRepository) CountUnread(_ context.Context, user string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return countUnread(r.items, user), nil
}

var _ Repository = (*InMemoryRepository)(nil)
