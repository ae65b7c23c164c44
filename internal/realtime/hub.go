package realtime

import (
	"context"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/aidtracker/aidtracker/internal/auth"
	"github.com/aidtracker/aidtracker/internal/notification"
)

// Inbox is the notification store behind the inbox commands.
type Inbox interface {
	ListForUser(ctx context.Context, user string) ([]notification.Notification, error)
	MarkReadFor(ctx context.Context, user, id string) (*notification.Notification, error)
	MarkAllRead(ctx context.Context, user string) (int, error)
	Delete(ctx context.Context, user, id string) error
}

// TokenVerifier resolves a session token to an identity.
type TokenVerifier interface {
	CheckToken(ctx context.Context, token string) (*auth.Identity, bool)
}

// HubConfig holds configuration for the hub.
type HubConfig struct {
	Inbox Inbox

	// Verifier checks registerUser tokens. With RequireToken set, a
	// registration without a valid token is rejected.
	Verifier     TokenVerifier
	RequireToken bool

	// SendBuffer is the per-connection outbound queue length.
	SendBuffer int

	Logger zerolog.Logger
}

// Hub tracks live connections and the identity each one registered.
type Hub struct {
	inbox        Inbox
	verifier     TokenVerifier
	requireToken bool
	sendBuffer   int
	logger       zerolog.Logger
	upgrader     websocket.Upgrader

	mu         sync.RWMutex
	clients    map[*client]struct{}
	byIdentity map[string]*client
}

// NewHub creates a hub.
func NewHub(cfg HubConfig) *Hub {
	sendBuffer := cfg.SendBuffer
	if sendBuffer <= 0 {
		sendBuffer = 64
	}

	return &Hub{
		inbox:        cfg.Inbox,
		verifier:     cfg.Verifier,
		requireToken: cfg.RequireToken,
		sendBuffer:   sendBuffer,
		logger:       cfg.Logger.With().Str("component", "realtime").Logger(),
		upgrader: websocket.Upgrader{
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		clients:    make(map[*client]struct{}),
		byIdentity: make(map[string]*client),
	}
}

// ServeHTTP upgrades the request and serves the connection until it closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	c := newClient(h, conn)
	h.add(c)

	go c.writePump()
	c.readPump(r.Context())
}

// Deliver pushes a newNotification frame to the connection registered as
// user, or to every connection when user is notification.Everyone.
func (h *Hub) Deliver(user string, n notification.Notification) notification.DeliveryResult {
	msg, err := newMessage(EventNewNotification, n)
	if err != nil {
		h.logger.Error().Err(err).Str("notification_id", n.ID).Msg("failed to encode notification")
		return notification.Queued
	}

	if user == notification.Everyone {
		if h.broadcast(msg) > 0 {
			return notification.Delivered
		}
		return notification.Queued
	}

	h.mu.RLock()
	c, ok := h.byIdentity[normalizeIdentity(user)]
	h.mu.RUnlock()
	if !ok || !h.send(c, msg) {
		return notification.Queued
	}
	return notification.Delivered
}

// Broadcast pushes event to every connection.
func (h *Hub) Broadcast(event string, data interface{}) {
	msg, err := newMessage(event, data)
	if err != nil {
		h.logger.Error().Err(err).Str("event", event).Msg("failed to encode broadcast")
		return
	}
	h.broadcast(msg)
}

// Registered reports whether a connection is registered as identity.
func (h *Hub) Registered(identity string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.byIdentity[normalizeIdentity(identity)]
	return ok
}

// Connections returns the number of open connections.
func (h *Hub) Connections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.clients = make(map[*client]struct{})
	h.byIdentity = make(map[string]*client)
	h.mu.Unlock()

	for _, c := range clients {
		c.close()
	}
}

func (h *Hub) broadcast(msg Message) int {
	h.mu.RLock()
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	sent := 0
	for _, c := range clients {
		if h.send(c, msg) {
			sent++
		}
	}
	return sent
}

// send queues msg without blocking. A client whose queue is full is dropped.
func (h *Hub) send(c *client, msg Message) bool {
	if c.enqueue(msg) {
		return true
	}
	h.logger.Warn().Str("identity", c.identity()).Msg("dropping slow client")
	h.remove(c)
	c.close()
	return false
}

func (h *Hub) add(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	total := len(h.clients)
	h.mu.Unlock()

	h.logger.Debug().Int("connections", total).Msg("client connected")
}

func (h *Hub) register(c *client, identity string) {
	h.mu.Lock()
	if previous := c.identity(); previous != "" && h.byIdentity[previous] == c {
		delete(h.byIdentity, previous)
	}
	c.setIdentity(identity)
	h.byIdentity[identity] = c
	h.mu.Unlock()

	h.logger.Info().Str("identity", identity).Msg("user registered")
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	if identity := c.identity(); identity != "" && h.byIdentity[identity] == c {
		delete(h.byIdentity, identity)
	}
	h.logger.Debug().Str("identity", c.identity()).Int("connections", len(h.clients)).Msg("client disconnected")
}

var (
	_ notification.Deliverer = (*Hub)(nil)
	_ http.Handler           = (*Hub)(nil)
)
