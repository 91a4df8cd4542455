// Package feed republishes detected messages to HTTP and WebSocket clients.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"ccwatch/internal/monitor"
)

const (
	DefaultBacklog = 100
	writeWait      = 5 * time.Second
	maxReadSize    = 4096
)

type client struct {
	id        string
	conn      *websocket.Conn
	connected time.Time
	writeMu   sync.Mutex
}

func (c *client) send(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// Hub is a monitor consumer that remembers the most recent events and pushes
// every new one to the connected WebSocket clients.
type Hub struct {
	mu      sync.RWMutex
	ring    []monitor.Event
	start   int
	size    int
	clients map[string]*client

	upgrader websocket.Upgrader
	logger   *slog.Logger
}

func NewHub(backlog int, logger *slog.Logger) *Hub {
	if backlog <= 0 {
		backlog = DefaultBacklog
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		ring:    make([]monitor.Event, backlog),
		clients: make(map[string]*client),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: logger,
	}
}

// HandleMessage records ev and broadcasts it. Clients whose write fails are
// dropped; having no clients is not an error.
func (h *Hub) HandleMessage(_ context.Context, ev monitor.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	h.mu.Lock()
	h.push(ev)
	targets := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.Unlock()

	for _, c := range targets {
		if err := c.send(data); err != nil {
			h.logger.Debug("drop feed client", slog.String("client_id", c.id), slog.String("error", err.Error()))
			h.remove(c.id)
		}
	}
	return nil
}

func (h *Hub) push(ev monitor.Event) {
	idx := (h.start + h.size) % len(h.ring)
	h.ring[idx] = ev
	if h.size < len(h.ring) {
		h.size++
		return
	}
	h.start = (h.start + 1) % len(h.ring)
}

// Recent returns the remembered events, oldest first.
func (h *Hub) Recent() []monitor.Event {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]monitor.Event, 0, h.size)
	for i := 0; i < h.size; i++ {
		out = append(out, h.ring[(h.start+i)%len(h.ring)])
	}
	return out
}

func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeWS upgrades the request and registers the connection until the peer
// goes away. Inbound messages are read and discarded.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}

	c := &client{id: uuid.NewString(), conn: conn, connected: time.Now()}
	h.mu.Lock()
	h.clients[c.id] = c
	h.mu.Unlock()
	h.logger.Info("feed client connected", slog.String("client_id", c.id), slog.String("remote", r.RemoteAddr))

	go h.readLoop(c)
}

func (h *Hub) readLoop(c *client) {
	defer h.remove(c.id)
	c.conn.SetReadLimit(maxReadSize)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("feed client read error", slog.String("client_id", c.id), slog.String("error", err.Error()))
			}
			return
		}
	}
}

func (h *Hub) remove(id string) {
	h.mu.Lock()
	c, ok := h.clients[id]
	delete(h.clients, id)
	h.mu.Unlock()
	if ok {
		_ = c.conn.Close()
		h.logger.Info("feed client disconnected",
			slog.String("client_id", id),
			slog.Duration("connected_for", time.Since(c.connected)),
		)
	}
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	ids := make([]string, 0, len(h.clients))
	for id := range h.clients {
		ids = append(ids, id)
	}
	h.mu.Unlock()
	for _, id := range ids {
		h.remove(id)
	}
}
