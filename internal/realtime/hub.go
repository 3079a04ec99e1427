// Package realtime pushes user events over websockets.
package realtime

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/net/websocket"
)

// EventShutdown is broadcast to authenticated clients before the server stops.
const EventShutdown = "server.shutdown"

const writeTimeout = 5 * time.Second

// Frame is the wire envelope in both directions.
type Frame struct {
	Event   string          `json:"event"`
	Data    json.RawMessage `json:"data,omitempty"`
	Message string          `json:"message,omitempty"`
}

type peer struct {
	mu      sync.Mutex
	conn    *websocket.Conn
	encoder *json.Encoder
}

func newPeer(conn *websocket.Conn) *peer {
	return &peer{conn: conn, encoder: json.NewEncoder(conn)}
}

func (p *peer) write(frame Frame) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn != nil {
		_ = p.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	}
	return p.encoder.Encode(frame)
}

type client struct {
	peer   *peer
	userID string
}

// Hub tracks open connections and the per-user groups they joined.
type Hub struct {
	mu      sync.Mutex
	clients map[string]*client
	groups  map[string]map[string]struct{}
	logger  *slog.Logger
}

// NewHub returns an empty hub.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[string]*client),
		groups:  make(map[string]map[string]struct{}),
		logger:  logger,
	}
}

func groupName(userID string) string {
	return "user-" + userID
}

func (h *Hub) register(connID string, p *peer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[connID] = &client{peer: p}
}

// authenticate attaches userID to the connection and joins its group.
func (h *Hub) authenticate(connID, userID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.clients[connID]
	if !ok {
		return
	}
	if c.userID != "" && c.userID != userID {
		h.leaveLocked(connID, c.userID)
	}
	c.userID = userID
	group := groupName(userID)
	if h.groups[group] == nil {
		h.groups[group] = make(map[string]struct{})
	}
	h.groups[group][connID] = struct{}{}
}

func (h *Hub) unregister(connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.clients[connID]
	if !ok {
		return
	}
	if c.userID != "" {
		h.leaveLocked(connID, c.userID)
	}
	delete(h.clients, connID)
}

func (h *Hub) leaveLocked(connID, userID string) {
	group := groupName(userID)
	delete(h.groups[group], connID)
	if len(h.groups[group]) == 0 {
		delete(h.groups, group)
	}
}

func (h *Hub) userOf(connID string) string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c, ok := h.clients[connID]; ok {
		return c.userID
	}
	return ""
}

// SendToUser delivers event to every connection of userID. No-op when none are open.
func (h *Hub) SendToUser(userID, event string, payload any) {
	h.mu.Lock()
	members := h.groups[groupName(userID)]
	peers := make([]*peer, 0, len(members))
	for connID := range members {
		peers = append(peers, h.clients[connID].peer)
	}
	h.mu.Unlock()

	h.deliver(peers, event, payload)
}

// BroadcastToAuthenticated delivers event to every connection bound to a user.
func (h *Hub) BroadcastToAuthenticated(event string, payload any) {
	h.mu.Lock()
	peers := make([]*peer, 0, len(h.clients))
	for _, c := range h.clients {
		if c.userID != "" {
			peers = append(peers, c.peer)
		}
	}
	h.mu.Unlock()

	h.deliver(peers, event, payload)
}

// Shutdown tells authenticated clients the server is going away and closes
// every connection. Hijacked sockets are not closed by http.Server.Shutdown.
func (h *Hub) Shutdown() {
	h.BroadcastToAuthenticated(EventShutdown, map[string]string{"message": "Server is shutting down"})

	h.mu.Lock()
	peers := make([]*peer, 0, len(h.clients))
	for _, c := range h.clients {
		peers = append(peers, c.peer)
	}
	h.mu.Unlock()
	for _, p := range peers {
		if p.conn != nil {
			_ = p.conn.Close()
		}
	}
}

// Connections returns the number of open connections.
func (h *Hub) Connections() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) deliver(peers []*peer, event string, payload any) {
	if len(peers) == 0 {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("realtime payload not encodable", slog.String("event", event), slog.Any("error", err))
		return
	}
	frame := Frame{Event: event, Data: data}
	for _, p := range peers {
		if err := p.write(frame); err != nil {
			h.logger.Debug("realtime delivery failed", slog.String("event", event), slog.Any("error", err))
		}
	}
}
