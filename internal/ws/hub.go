package ws

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"chatroom-service/internal/models"
	"chatroom-service/internal/observability"
)

// client pairs a websocket connection with its metadata. Broadcasts and
// error frames come from different goroutines, so every write goes through
// the per-client mutex.
type client struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
	info    ConnInfo
}

func (c *client) write(event models.RoomEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}

// Hub owns the set of live room connections and implements the fan-out
// policies: presence and messages go to every connection, typing to every
// connection except the sender, errors only to the originating connection.
type Hub struct {
	mu      sync.RWMutex
	clients map[*websocket.Conn]*client
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[*websocket.Conn]*client)}
}

// Add registers a websocket connection with the room.
func (h *Hub) Add(conn *websocket.Conn, info ConnInfo) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[conn] = &client{conn: conn, info: info}
}

// Remove drops a connection from the room.
func (h *Hub) Remove(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, conn)
}

// BindUser records the user bound to a connection after a successful join.
func (h *Hub) BindUser(conn *websocket.Conn, userID int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if cl, ok := h.clients[conn]; ok {
		cl.info.UserID = userID
	}
}

// Count returns the number of live connections.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// BroadcastPresence sends the online-user list to all connections.
//
// Registry mutation and the broadcast are not one atomic step, so frames
// from racing joins can reach different connections in different orders.
// Each frame carries the full snapshot rather than a delta, so the next
// broadcast overwrites any momentarily stale view.
func (h *Hub) BroadcastPresence(online []int) {
	if online == nil {
		online = []int{}
	}
	h.broadcast(models.RoomEvent{Type: models.EventPresence, OnlineUsers: online}, nil)
}

// BroadcastMessage sends a persisted message to all connections, the sender
// included.
func (h *Hub) BroadcastMessage(msg models.Message) {
	h.broadcast(models.RoomEvent{Type: models.EventMessage, Message: &msg}, nil)
}

// BroadcastTyping sends a typing signal to every connection except the
// sender's. Best effort, no retry.
func (h *Hub) BroadcastTyping(userID int, sender *websocket.Conn) {
	h.broadcast(models.RoomEvent{Type: models.EventTyping, UserID: userID}, sender)
}

// SendError delivers an error frame to the originating connection only.
func (h *Hub) SendError(conn *websocket.Conn, message string) {
	h.mu.RLock()
	cl, ok := h.clients[conn]
	h.mu.RUnlock()
	if !ok {
		return
	}
	if err := cl.write(models.RoomEvent{Type: models.EventError, Error: message}); err != nil {
		log.Printf("websocket error frame write failed: %v", err)
	}
}

func (h *Hub) broadcast(event models.RoomEvent, exclude *websocket.Conn) {
	h.mu.RLock()
	targets := make([]*client, 0, len(h.clients))
	for conn, cl := range h.clients {
		if conn == exclude {
			continue
		}
		targets = append(targets, cl)
	}
	h.mu.RUnlock()

	for _, cl := range targets {
		if err := cl.write(event); err != nil {
			log.Printf("websocket write error: %v", err)
			cl.conn.Close()
			h.Remove(cl.conn)
			h.publishWSError(cl.info, err)
		}
	}
}

func (h *Hub) publishWSError(info ConnInfo, err error) {
	payload := map[string]interface{}{
		"ws": map[string]interface{}{
			"event":       "ws_error",
			"conn_id":     info.ConnID,
			"duration_ms": time.Since(info.ConnectedAt).Milliseconds(),
			"reason":      err.Error(),
		},
		"identity": map[string]interface{}{
			"user_id":   info.UserID,
			"device_id": info.DeviceID,
			"ip":        info.IP,
		},
	}

	headers := observability.BuildHeaders(info.RequestID, info.TraceID)
	_ = observability.PublishEvent(context.Background(), "ws_events.room", observability.EventEnvelope{
		EventType: "ws_events",
		EventName: "ws_error",
		Payload:   payload,
	}, headers)
	observability.IncWSEvent("ws_error")
}
