package ws

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const writeTimeout = 10 * time.Second

// Client wraps one connected party. The mutex serializes writes: hub
// broadcasts and direct replies may race on the same connection.
type Client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

// Send writes one message to this client with a write deadline.
func (c *Client) Send(msg Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteJSON(msg)
}

// SendError sends a typed error payload to this client.
func (c *Client) SendError(errMsg string) error {
	return c.Send(Message{Event: EventError, Data: ErrorData{Message: errMsg}})
}

// Hub is the broadcast router. Every connection is registered in the
// lobby; joining a session additionally subscribes it to that session's
// room. Two delivery policies exist: all-inclusive (Broadcast) for facts
// every party must converge on, and sender-excluded (BroadcastExcept) for
// edits, so an editor never receives an echo of its own keystroke.
//
// The hub does not buffer for late joiners: they receive current state
// via the join snapshot, not historical events.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]string          // client → joined session id ("" = lobby only)
	rooms   map[string]map[*Client]bool // session id → members
	log     zerolog.Logger
}

// NewHub creates an empty hub.
func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		clients: make(map[*Client]string),
		rooms:   make(map[string]map[*Client]bool),
		log:     log.With().Str("component", "ws_hub").Logger(),
	}
}

// Register wraps a raw connection and adds it to the lobby.
func (h *Hub) Register(conn *websocket.Conn) *Client {
	c := &Client{conn: conn}
	h.mu.Lock()
	h.clients[c] = ""
	h.mu.Unlock()
	h.log.Debug().Int("clients", h.ClientCount()).Msg("Client connected")
	return c
}

// Subscribe moves a client into a session room. A client follows one
// session at a time; re-subscribing switches rooms.
func (h *Hub) Subscribe(c *Client, sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if prev, ok := h.clients[c]; ok && prev != "" {
		h.leaveRoom(c, prev)
	}
	h.clients[c] = sessionID
	if h.rooms[sessionID] == nil {
		h.rooms[sessionID] = make(map[*Client]bool)
	}
	h.rooms[sessionID][c] = true
}

// Unregister removes a client from the lobby and its room, closing the
// underlying connection.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if room, ok := h.clients[c]; ok && room != "" {
		h.leaveRoom(c, room)
	}
	delete(h.clients, c)
	c.conn.Close()
}

// BroadcastLobby delivers a message to every connected client, joined or
// not. Used for session-created and session-list refreshes so dashboards
// stay current.
func (h *Hub) BroadcastLobby(msg Message) {
	for _, c := range h.members("") {
		h.deliver(c, msg)
	}
}

// Broadcast delivers to every member of a session room, including the
// originator (all-inclusive policy).
func (h *Hub) Broadcast(sessionID string, msg Message) {
	for _, c := range h.members(sessionID) {
		h.deliver(c, msg)
	}
}

// BroadcastExcept delivers to every member of a session room except the
// sender (sender-excluded policy).
func (h *Hub) BroadcastExcept(sessionID string, sender *Client, msg Message) {
	for _, c := range h.members(sessionID) {
		if c == sender {
			continue
		}
		h.deliver(c, msg)
	}
}

// Close disconnects every remaining client. Used on server shutdown.
func (h *Hub) Close() {
	for _, c := range h.members("") {
		h.Unregister(c)
	}
}

// ClientCount reports the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// members snapshots the delivery set outside the write path. An empty
// sessionID means every connected client.
func (h *Hub) members(sessionID string) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if sessionID == "" {
		out := make([]*Client, 0, len(h.clients))
		for c := range h.clients {
			out = append(out, c)
		}
		return out
	}
	room := h.rooms[sessionID]
	out := make([]*Client, 0, len(room))
	for c := range room {
		out = append(out, c)
	}
	return out
}

// deliver writes to one client, dropping it on failure.
func (h *Hub) deliver(c *Client, msg Message) {
	if err := c.Send(msg); err != nil {
		h.log.Warn().Err(err).Msg("Write failed, dropping client")
		h.Unregister(c)
	}
}

// leaveRoom must be called with h.mu held.
func (h *Hub) leaveRoom(c *Client, sessionID string) {
	if room, ok := h.rooms[sessionID]; ok {
		delete(room, c)
		if len(room) == 0 {
			delete(h.rooms, sessionID)
		}
	}
}
