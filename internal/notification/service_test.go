package notification_test

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aidtracker/aidtracker/internal/notification"
)

func TestService_Inbox(t *testing.T) {
	repo := notification.NewInMemoryRepository()
	seed(t, repo)
	svc := notification.NewService(notification.ServiceConfig{Repository: repo, Logger: zerolog.Nop()})
	ctx := context.Background()

	unread, err := svc.UnreadCount(ctx, "fire@x")
	require.NoError(t, err)
	assert.Equal(t, 3, unread)

	_, err = svc.MarkRead(ctx, "n3")
	require.NoError(t, err, "REST mark-read does not check ownership")

	_, err = svc.MarkReadFor(ctx, "fire@x", "n3")
	assert.ErrorIs(t, err, notification.ErrNotificationNotFound)

	marked, err := svc.MarkAllRead(ctx, "fire@x")
	require.NoError(t, err)
	assert.Equal(t, 2, marked)

	require.NoError(t, svc.Delete(ctx, "fire@x", "n2"))

	removed, err := svc.ClearForUser(ctx, "fire@x")
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	list, err := svc.ListForUser(ctx, "fire@x")
	require.NoError(t, err)
	assert.Equal(t, []string{"n4"}, ids(list))
}

func TestService_Create(t *testing.T) {
	repo := notification.NewInMemoryRepository()
	deliverer := &recordingDeliverer{online: map[string]bool{notification.Everyone: true, "fire@x": true}}
	svc := notification.NewService(notification.ServiceConfig{Repository: repo, Logger: zerolog.Nop()})
	svc.SetDeliverer(deliverer)
	ctx := context.Background()

	t.Run("broadcast by default", func(t *testing.T) {
		n, err := svc.Create(ctx, &notification.CreateRequest{Title: " Drill ", Message: "Fire drill at 3pm"})
		require.NoError(t, err)
		assert.Equal(t, notification.Everyone, n.User)
		assert.Equal(t, "System", n.App)
		assert.Equal(t, "Drill", n.Title)
		assert.Regexp(t, `^ntf_`, n.ID)
	})

	t.Run("single user", func(t *testing.T) {
		n, err := svc.Create(ctx, &notification.CreateRequest{Title: "Hi", Message: "m", User: "fire@x", App: "Ops"})
		require.NoError(t, err)
		assert.Equal(t, "fire@x", n.User)
	})

	assert.Equal(t, []string{notification.Everyone, "fire@x"}, deliverer.sent)

	list, err := svc.ListForUser(ctx, "fire@x")
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestCreateRequest_Validate(t *testing.T) {
	tests := []struct {
		name   string
		req    notification.CreateRequest
		fields []string
	}{
		{"valid", notification.CreateRequest{Title: "a", Message: "b"}, nil},
		{"missing title", notification.CreateRequest{Message: "b"}, []string{"title"}},
		{"blank both", notification.CreateRequest{Title: " ", Message: ""}, []string{"title", "message"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var fields []string
			for _, e := range tt.req.Validate() {
				fields = append(fields, e.Field)
			}
			assert.Equal(t, tt.fields, fields)
		})
	}
}
