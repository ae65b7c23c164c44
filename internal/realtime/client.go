package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/aidtracker/aidtracker/internal/auth"
	"github.com/aidtracker/aidtracker/internal/notification"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 << 10
)

var errNotRegistered = errors.New("register before managing notifications")

type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan Message
	done chan struct{}

	mu     sync.Mutex
	closed bool
	name   string
}

func newClient(h *Hub, conn *websocket.Conn) *client {
	return &client{
		hub:  h,
		conn: conn,
		send: make(chan Message, h.sendBuffer),
		done: make(chan struct{}),
	}
}

func (c *client) identity() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.name
}

func (c *client) setIdentity(identity string) {
	c.mu.Lock()
	c.name = identity
	c.mu.Unlock()
}

// enqueue reports false when the client is closed or its queue is full.
func (c *client) enqueue(msg Message) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

func (c *client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.done)
	_ = c.conn.Close()
}

func (c *client) readPump(ctx context.Context) {
	defer func() {
		c.hub.remove(c)
		c.close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Debug().Err(err).Msg("websocket read failed")
			}
			return
		}

		var request Message
		if err := json.Unmarshal(data, &request); err != nil {
			c.replyError("malformed message")
			continue
		}

		if err := c.handle(ctx, request); err != nil {
			c.hub.logger.Warn().Err(err).Str("event", request.Event).Str("identity", c.identity()).Msg("websocket command failed")
			c.replyError(err.Error())
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(msg); err != nil {
				c.hub.logger.Debug().Err(err).Msg("websocket write failed")
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *client) handle(ctx context.Context, request Message) error {
	switch request.Event {
	case EventRegisterUser:
		return c.handleRegister(ctx, request.Data)
	case EventMarkAsRead, EventMarkAllAsRead, EventDeleteNotification:
		return c.handleInbox(ctx, request)
	default:
		c.hub.logger.Debug().Str("event", request.Event).Msg("ignoring unknown event")
		return nil
	}
}

func (c *client) handleRegister(ctx context.Context, data json.RawMessage) error {
	reg, err := parseRegistration(data)
	if err != nil {
		return errors.New("malformed registration")
	}

	identity := reg.Identity()
	if c.hub.verifier != nil && (reg.Token != "" || c.hub.requireToken) {
		verified, ok := c.hub.verifier.CheckToken(ctx, reg.Token)
		if !ok {
			return auth.ErrUnauthenticated
		}
		identity = normalizeIdentity(verified.Email)
	}
	if identity == "" {
		return errors.New("registration names no user")
	}

	c.hub.register(c, identity)
	return nil
}

func (c *client) handleInbox(ctx context.Context, request Message) error {
	user := c.identity()
	if user == "" {
		return errNotRegistered
	}
	if c.hub.inbox == nil {
		return nil
	}

	var err error
	switch request.Event {
	case EventMarkAsRead:
		_, err = c.hub.inbox.MarkReadFor(ctx, user, parseNotificationRef(request.Data))
	case EventMarkAllAsRead:
		_, err = c.hub.inbox.MarkAllRead(ctx, user)
	case EventDeleteNotification:
		err = c.hub.inbox.Delete(ctx, user, parseNotificationRef(request.Data))
	}
	if err != nil && !errors.Is(err, notification.ErrNotificationNotFound) {
		return err
	}

	list, err := c.hub.inbox.ListForUser(ctx, user)
	if err != nil {
		return err
	}
	msg, err := newMessage(EventNotificationsUpdate, list)
	if err != nil {
		return err
	}
	c.hub.send(c, msg)
	return nil
}

func (c *client) replyError(message string) {
	msg, err := newMessage(EventError, errorPayload{Message: message})
	if err == nil {
		c.hub.send(c, msg)
	}
}
