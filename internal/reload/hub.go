package reload

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/trace"

	"github.com/mfstack/mfgate/internal/otel"
	"github.com/mfstack/mfgate/internal/telemetry"
)

const (
	// DefaultWriteTimeout bounds a single write to a client
	DefaultWriteTimeout = 5 * time.Second

	// DefaultPingInterval is how often idle clients are pinged
	DefaultPingInterval = 30 * time.Second

	// sendBuffer is the per-client queue; a client that falls further behind is dropped
	sendBuffer = 16
)

// ErrHubClosed is returned when broadcasting on a closed hub
var ErrHubClosed = errors.New("reload hub closed")

type client struct {
	id   uuid.UUID
	conn *websocket.Conn
	send chan Directive
	done chan struct{}
	once sync.Once
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

// Hub tracks connected dev clients and fans directives out to them
type Hub struct {
	upgrader     websocket.Upgrader
	writeTimeout time.Duration
	pingInterval time.Duration
	metrics      *telemetry.ReloadMetrics

	mu      sync.RWMutex
	clients map[uuid.UUID]*client
	closed  bool
}

// HubOption configures a Hub
type HubOption func(*Hub)

// WithCheckOrigin sets the origin check used during the websocket handshake
func WithCheckOrigin(check func(r *http.Request) bool) HubOption {
	return func(h *Hub) {
		h.upgrader.CheckOrigin = check
	}
}

// WithWriteTimeout sets the per-write deadline
func WithWriteTimeout(d time.Duration) HubOption {
	return func(h *Hub) {
		h.writeTimeout = d
	}
}

// WithPingInterval sets the keep-alive ping interval
func WithPingInterval(d time.Duration) HubOption {
	return func(h *Hub) {
		h.pingInterval = d
	}
}

// WithHubMetrics sets the reload metrics. Nil disables metrics.
func WithHubMetrics(m *telemetry.ReloadMetrics) HubOption {
	return func(h *Hub) {
		h.metrics = m
	}
}

// NewHub creates an empty hub
func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		writeTimeout: DefaultWriteTimeout,
		pingInterval: DefaultPingInterval,
		clients:      make(map[uuid.UUID]*client),
	}

	for _, opt := range opts {
		opt(h)
	}

	return h
}

// ServeHTTP upgrades the request to a websocket and keeps the client
// registered until it disconnects or the hub closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	closed := h.closed
	h.mu.RUnlock()
	if closed {
		http.Error(w, "live reload unavailable", http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response
		slog.Debug("Live reload handshake failed", "error", err)
		return
	}

	c := &client{
		id:   uuid.New(),
		conn: conn,
		send: make(chan Directive, sendBuffer),
		done: make(chan struct{}),
	}

	if !h.register(c) {
		c.close()
		return
	}
	// r.Context() is cancelled once the handler returns; metrics need a live one
	ctx := context.WithoutCancel(r.Context())
	h.metrics.RecordClientDelta(ctx, 1)
	defer func() {
		h.unregister(c)
		h.metrics.RecordClientDelta(ctx, -1)
	}()

	slog.Debug("Live reload client connected", "client_id", c.id.String(), "remote_addr", r.RemoteAddr)

	c.send <- Directive{Type: TypeConnected}
	go h.writeLoop(c)
	h.readLoop(c)

	slog.Debug("Live reload client disconnected", "client_id", c.id.String())
}

// readLoop drains inbound frames so control messages are processed; clients
// have nothing to say to the hub.
func (h *Hub) readLoop(c *client) {
	defer c.close()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writeLoop(c *client) {
	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()
	defer c.close()

	for {
		select {
		case <-c.done:
			return
		case d := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
			if err := c.conn.WriteJSON(d); err != nil {
				slog.Debug("Live reload write failed", "client_id", c.id.String(), "error", err)
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(h.writeTimeout)); err != nil {
				return
			}
		}
	}
}

func (h *Hub) register(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c.id] = c
	return true
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	delete(h.clients, c.id)
	h.mu.Unlock()
	c.close()
}

// Broadcast queues d for every connected client and returns how many
// accepted it. Clients whose queue is full are disconnected.
func (h *Hub) Broadcast(_ context.Context, d Directive) (int, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.closed {
		return 0, ErrHubClosed
	}

	delivered := 0
	for _, c := range h.clients {
		select {
		case c.send <- d:
			delivered++
		case <-c.done:
		default:
			slog.Warn("Dropping slow live reload client", "client_id", c.id.String())
			c.close()
		}
	}

	return delivered, nil
}

// FullReload broadcasts a full-reload directive attributed to app
func (h *Hub) FullReload(ctx context.Context, app string) error {
	n, err := h.Broadcast(ctx, FullReload(app))
	if err != nil {
		return err
	}
	trace.SpanFromContext(ctx).SetAttributes(otel.AttrReloadClients.Int(n))
	slog.Info("Full reload sent to dev clients", "app", app, "clients", n)
	return nil
}

// Clients returns the number of connected clients
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client and rejects new connections
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	clients := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second))
		c.close()
	}
}
