package hub

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/gofiber/contrib/websocket"

	"github.com/example/taskflow-realtime/domain/realtime"
)

// Conn is the writable side of a websocket connection. *websocket.Conn
// satisfies it; tests substitute a recording fake.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Message is the wire envelope for both client commands and server events.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// Client is one live, authenticated connection. Writes are serialized by a
// per-client mutex because broadcasts arrive from many goroutines.
type Client struct {
	ID       string
	Identity realtime.Identity
	conn     Conn
	mu       sync.Mutex
}

// NewClient wraps an authenticated connection.
func NewClient(id string, identity realtime.Identity, conn Conn) *Client {
	return &Client{
		ID:       id,
		Identity: identity,
		conn:     conn,
	}
}

func (c *Client) write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Hub is the registry of live connections and the single place outbound
// frames are written. It has no knowledge of rooms; callers resolve the
// target connection set and hand it over.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client // connID -> client
}

// New creates an empty hub.
func New() *Hub {
	return &Hub{
		clients: make(map[string]*Client),
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client.ID] = client
}

// Unregister removes a client and returns it, or nil if it was already
// removed. The nil return lets disconnect cleanup run exactly once even
// when a client close races with a server drain.
func (h *Hub) Unregister(connID string) *Client {
	h.mu.Lock()
	defer h.mu.Unlock()

	client, ok := h.clients[connID]
	if !ok {
		return nil
	}
	delete(h.clients, connID)
	return client
}

// Get returns a client by connection id.
func (h *Hub) Get(connID string) *Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.clients[connID]
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Send delivers an event to a single connection.
func (h *Hub) Send(connID, msgType string, payload any) {
	data, ok := encode(msgType, payload)
	if !ok {
		return
	}
	h.mu.RLock()
	client := h.clients[connID]
	h.mu.RUnlock()
	if client != nil {
		h.deliver(client, data)
	}
}

// SendError delivers a non-fatal error event to a single connection.
func (h *Hub) SendError(connID, errMsg string) {
	data, err := json.Marshal(Message{Type: "error", Error: errMsg})
	if err != nil {
		return
	}
	h.mu.RLock()
	client := h.clients[connID]
	h.mu.RUnlock()
	if client != nil {
		h.deliver(client, data)
	}
}

// SendMany delivers an event to a set of connections, at most once per
// connection even when the set contains duplicates (a connection joined to
// several targeted rooms).
func (h *Hub) SendMany(connIDs []string, msgType string, payload any) {
	h.SendManyExceptUser(connIDs, "", msgType, payload)
}

// SendManyExceptUser is SendMany with every connection belonging to
// exceptUserID skipped. Used for "to other occupants" broadcasts.
func (h *Hub) SendManyExceptUser(connIDs []string, exceptUserID, msgType string, payload any) {
	data, ok := encode(msgType, payload)
	if !ok {
		return
	}

	h.mu.RLock()
	targets := make([]*Client, 0, len(connIDs))
	seen := make(map[string]struct{}, len(connIDs))
	for _, connID := range connIDs {
		if _, dup := seen[connID]; dup {
			continue
		}
		seen[connID] = struct{}{}
		client, ok := h.clients[connID]
		if !ok {
			continue
		}
		if exceptUserID != "" && client.Identity.UserID == exceptUserID {
			continue
		}
		targets = append(targets, client)
	}
	h.mu.RUnlock()

	for _, client := range targets {
		h.deliver(client, data)
	}
}

// Broadcast delivers an event to every connected client.
func (h *Hub) Broadcast(msgType string, payload any) {
	h.BroadcastExcept("", msgType, payload)
}

// BroadcastExcept delivers an event to every client except one connection.
func (h *Hub) BroadcastExcept(exceptConnID, msgType string, payload any) {
	data, ok := encode(msgType, payload)
	if !ok {
		return
	}

	h.mu.RLock()
	targets := make([]*Client, 0, len(h.clients))
	for connID, client := range h.clients {
		if connID == exceptConnID {
			continue
		}
		targets = append(targets, client)
	}
	h.mu.RUnlock()

	for _, client := range targets {
		h.deliver(client, data)
	}
}

// CloseAll closes every connection. Each session loop then unwinds and runs
// its own disconnect cleanup.
func (h *Hub) CloseAll() {
	h.mu.RLock()
	targets := make([]*Client, 0, len(h.clients))
	for _, client := range h.clients {
		targets = append(targets, client)
	}
	h.mu.RUnlock()

	for _, client := range targets {
		_ = client.Close()
	}
}

func (h *Hub) deliver(client *Client, data []byte) {
	if err := client.write(data); err != nil {
		slog.Debug("Dropped frame for client", "connID", client.ID, "error", err)
	}
}

func encode(msgType string, payload any) ([]byte, bool) {
	body, err := json.Marshal(payload)
	if err != nil {
		slog.Error("Failed to marshal event payload", "type", msgType, "error", err)
		return nil, false
	}
	data, err := json.Marshal(Message{Type: msgType, Payload: body})
	if err != nil {
		slog.Error("Failed to marshal event envelope", "type", msgType, "error", err)
		return nil, false
	}
	return data, true
}
