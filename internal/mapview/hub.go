package mapview

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const hubWriteTimeout = 5 * time.Second

// Hub fans payloads out to browser websocket clients.
type Hub struct {
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
}

// NewHub creates an empty Hub.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		logger: logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[*websocket.Conn]struct{}),
	}
}

// ServeWS upgrades the request, sends initial and keeps the client until it
// disconnects.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, initial []byte) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", "error", err)
		return
	}

	h.mu.Lock()
	h.clients[conn] = struct{}{}
	if initial != nil {
		h.write(conn, initial)
	}
	h.mu.Unlock()

	go h.readPump(conn)
}

// Broadcast sends data to every client, dropping clients that fail.
func (h *Hub) Broadcast(data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		h.write(c, data)
	}
}

// Len returns the number of connected clients.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		c.Close()
		delete(h.clients, c)
	}
}

// write must be called with h.mu held.
func (h *Hub) write(c *websocket.Conn, data []byte) {
	c.SetWriteDeadline(time.Now().Add(hubWriteTimeout))
	if err := c.WriteMessage(websocket.TextMessage, data); err != nil {
		h.logger.Debug("dropping ws client", "remote", c.RemoteAddr().String(), "error", err)
		c.Close()
		delete(h.clients, c)
	}
}

func (h *Hub) remove(c *websocket.Conn) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
}

// readPump discards client input and notices disconnects.
func (h *Hub) readPump(c *websocket.Conn) {
	defer func() {
		h.remove(c)
		c.Close()
	}()
	for {
		if _, _, err := c.ReadMessage(); err != nil {
			return
		}
	}
}
