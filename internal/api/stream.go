package api

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"clarity-disputes/backend/internal/audit"
)

// StreamEvent describes websocket payloads emitted while tickets are processed.
type StreamEvent struct {
	Type      string       `json:"type"`
	TicketID  string       `json:"ticket_id"`
	Entry     *audit.Entry `json:"entry,omitempty"`
	Message   string       `json:"message,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
}

// wsClient wraps a websocket connection with write locking.
type wsClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

// StreamHub keeps track of websocket clients and broadcasts audit entries to them.
// It is an audit.Sink.
type StreamHub struct {
	mu        sync.Mutex
	clients   map[*wsClient]struct{}
	lastEvent *StreamEvent
}

// NewStreamHub constructs an empty hub.
func NewStreamHub() *StreamHub {
	return &StreamHub{clients: make(map[*wsClient]struct{})}
}

// Register attaches a websocket connection and replays the most recent event to it.
func (h *StreamHub) Register(conn *websocket.Conn) *wsClient {
	client := &wsClient{conn: conn}
	h.mu.Lock()
	h.clients[client] = struct{}{}
	last := h.lastEvent
	h.mu.Unlock()

	if last != nil {
		_ = client.writeJSON(*last)
	}
	return client
}

// Unregister removes the client and closes its socket.
func (h *StreamHub) Unregister(client *wsClient) {
	if client == nil {
		return
	}
	h.mu.Lock()
	delete(h.clients, client)
	h.mu.Unlock()
	_ = client.conn.Close()
}

// Publish broadcasts an audit entry. Slow or broken clients are dropped, never reported.
func (h *StreamHub) Publish(_ context.Context, entry audit.Entry) error {
	h.Broadcast(StreamEvent{Type: "audit", TicketID: entry.TicketID, Entry: &entry})
	return nil
}

// Broadcast sends event to every registered client.
func (h *StreamHub) Broadcast(event StreamEvent) {
	event.Timestamp = time.Now().UTC()

	h.mu.Lock()
	snapshot := event
	h.lastEvent = &snapshot
	clients := make([]*wsClient, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.Unlock()

	for _, client := range clients {
		if err := client.writeJSON(event); err != nil {
			h.Unregister(client)
		}
	}
}

// Clients reports the number of connected clients.
func (h *StreamHub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (c *wsClient) writeJSON(payload interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return c.conn.WriteJSON(payload)
}

// LastEvent returns a copy of the most recently broadcast event.
func (h *StreamHub) LastEvent() *StreamEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.lastEvent == nil {
		return nil
	}
	copy := *h.lastEvent
	return &copy
}
