package notification

import (
	"context"
	"time"
)

// Repository stores notifications. Every method is atomic with respect to
// the others.
type Repository interface {
	// AppendBatch stores all notifications or none.
	AppendBatch(ctx context.Context, ns []Notification) error

	// ListForUser returns the user's own and Everyone notifications in creation order.
	ListForUser(ctx context.Context, user string) ([]Notification, error)

	// MarkRead marks one notification read. An empty owner matches any
	// addressee; otherwise the notification must belong to owner.
	MarkRead(ctx context.Context, id, owner string, at time.Time) (*Notification, error)

	// MarkAllRead marks the user's own unread notifications read.
	MarkAllRead(ctx context.Context, user string, at time.Time) (int, error)

	// Delete removes one of the user's own notifications.
	Delete(ctx context.Context, user, id string) error

	// ClearForUser removes every notification addressed to user.
	ClearForUser(ctx context.Context, user string) (int, error)

	// CountUnread counts unread notifications visible to user.
	CountUnread(ctx context.Context, user string) (int, error)
}

// The helpers below implement the repository semantics over a slice and are
// shared by the memory and file backends.

func listFor(items []Notification, user string) []Notification {
	out := make([]Notification, 0)
	for _, n := range items {
		if n.VisibleTo(user) {
			out = append(out, n)
		}
	}
	return out
}

func markRead(items []Notification, id, owner string, at time.Time) (*Notification, bool) {
	for i := range items {
		n := &items[i]
		if n.ID != id || (owner != "" && n.User != owner) {
			continue
		}
		if !n.Read {
			n.Read = true
			readAt := at
			n.ReadAt = &readAt
		}
		cp := *n
		return &cp, true
	}
	return nil, false
}

func markAllRead(items []Notification, user string, at time.Time) int {
	count := 0
	for i := range items {
		n := &items[i]
		if n.User == user && !n.Read {
			n.Read = true
			readAt := at
			n.ReadAt = &readAt
			count++
		}
	}
	return count
}

func remove(items []Notification, keep func(Notification) bool) ([]Notification, int) {
	out := items[:0]
	removed := 0
	for _, n := range items {
		if keep(n) {
			out = append(out, n)
			continue
		}
		removed++
	}
	return out, removed
}

func countUnread(items []Notification, user string) int {
	count := 0
	for _, n := range items {
		if n.VisibleTo(user) && !n.Read {
			count++
		}
	}
	return count
}
