package notification

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/aidtracker/aidtracker/internal/storage/jsonfile"
)

// FileRepository keeps notifications in a JSON array file.
type FileRepository struct {
	collection *jsonfile.Collection[Notification]
}

// NewFileRepository opens (or creates) the notifications file at path.
func NewFileRepository(path string, logger zerolog.Logger) (*FileRepository, error) {
	c, err := jsonfile.Open[Notification](path, logger)
	if err != nil {
		return nil, err
	}
	return &FileRepository{collection: c}, nil
}

// Close stops the collection writer.
func (r *FileRepository) Close() error {
	return r.collection.Close()
}

// AppendBatch stores the notifications in one write.
func (r *FileRepository) AppendBatch(ctx context.Context, ns []Notification) error {
	return r.collection.Mutate(ctx, func(items []Notification) ([]Notification, error) {
		return append(items, ns...), nil
	})
}

// ListForUser returns the notifications visible to user.
func (r *FileRepository) ListForUser(ctx context.Context, user string) ([]Notification, error) {
	var out []Notification
	err := r.collection.Read(ctx, func(items []Notification) error {
		out = listFor(items, user)
		return nil
	})
	return out, err
}

// MarkRead marks a notification read.
func (r *FileRepository) MarkRead(ctx context.Context, id, owner string, at time.Time) (*Notification, error) {
	var updated *Notification
	err := r.collection.Mutate(ctx, func(items []Notification) ([]Notification, error) {
		n, ok := markRead(items, id, owner, at)
		if !ok {
			return nil, ErrNotificationNotFound
		}
		updated = n
		return items, nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// MarkAllRead marks the user's notifications read.
func (r *FileRepository) MarkAllRead(ctx context.Context, user string, at time.Time) (int, error) {
	var count int
	err := r.collection.Mutate(ctx, func(items []Notification) ([]Notification, error) {
		count = markAllRead(items, user, at)
		return items, nil
	})
	return count, err
}

// Delete removes one of the user's notifications.
func (r *FileRepository) Delete(ctx context.Context, user, id string) error {
	return r.collection.Mutate(ctx, func(items []Notification) ([]Notification, error) {
		out, removed := remove(items, func(n Notification) bool {
			return !(n.ID == id && n.User == user)
		})
		if removed == 0 {
			return nil, ErrNotificationNotFound
		}
		return out, nil
	})
}

// ClearForUser removes every notification addressed to user.
func (r *FileRepository) ClearForUser(ctx context.Context, user string) (int, error) {
	var removed int
	err := r.collection.Mutate(ctx, func(items []Notification) ([]Notification, error) {
		var out []Notification
		out, removed = remove(items, func(n Notification) bool { return n.User != user })
		return out, nil
	})
	return removed, err
}

// CountUnread counts unread notifications visible to user.
func (r *FileRepository) CountUnread(ctx context.Context, user string) (int, error) {
	var count int
	err := r.collection.Read(ctx, func(items []Notification) error {
		count = countUnread(items, user)
		return nil
	})
	return count, err
}

var _ Repository = (*FileRepository)(nil)
