package ws

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"

	"chatroom-service/internal/media"
	"chatroom-service/internal/models"
	"chatroom-service/internal/observability"
	"chatroom-service/internal/pipeline"
	"chatroom-service/internal/presence"
	"chatroom-service/internal/typing"
)

// Submitter is the message pipeline surface the gateway routes send events to.
type Submitter interface {
	Submit(ctx context.Context, req pipeline.SubmitRequest) (models.Message, error)
}

// RoomWebSocketHandler is the boundary between websocket connections and the
// room components. Each inbound event routes to exactly one of: the presence
// registry (join), the message pipeline (send), or the typing debouncer.
type RoomWebSocketHandler struct {
	hub      *Hub
	registry *presence.Registry
	typing   *typing.Debouncer
	pipe     Submitter
}

// NewRoomWebSocketHandler constructs a RoomWebSocketHandler.
func NewRoomWebSocketHandler(hub *Hub, registry *presence.Registry, debouncer *typing.Debouncer, pipe Submitter) *RoomWebSocketHandler {
	return &RoomWebSocketHandler{hub: hub, registry: registry, typing: debouncer, pipe: pipe}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// inboundEvent is one client frame. Media data arrives base64-encoded.
type inboundEvent struct {
	Type   string        `json:"type"`
	UserID int           `json:"user_id,omitempty"`
	Text   string        `json:"text,omitempty"`
	Media  *inboundMedia `json:"media,omitempty"`
}

type inboundMedia struct {
	Data     string `json:"data"`
	MimeType string `json:"mime_type"`
	Kind     string `json:"kind"`
}

// Handle upgrades the connection and runs its read loop. A connection does
// nothing until the client sends a join; events from one connection are
// processed one at a time, so a second submit never starts before the first
// completes.
func (h *RoomWebSocketHandler) Handle(c *gin.Context) {
	ctx, span := otel.Tracer("chatroom-service/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	traceID := span.SpanContext().TraceID().String()
	requestID := observability.RequestIDFromRequest(c.Request)
	info := ConnInfo{
		ConnID:      newConnID(),
		DeviceID:    observability.DeviceIDFromRequest(c.Request),
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   requestID,
		TraceID:     traceID,
		ConnectedAt: time.Now(),
	}
	h.hub.Add(conn, info)

	observability.IncWSActive()
	observability.IncWSEvent("ws_connect")
	h.publishLifecycle(context.Background(), "ws_connect", info, "")

	h.readLoop(conn, info)
}

func (h *RoomWebSocketHandler) readLoop(conn *websocket.Conn, info ConnInfo) {
	var (
		boundUserID int
		closeReason string
	)
	defer func() {
		conn.Close()
		h.hub.Remove(conn)
		if online, changed := h.registry.Unregister(info.ConnID); changed {
			h.typing.Forget(boundUserID)
			h.hub.BroadcastPresence(online)
			observability.SetOnlineUsers(len(online))
		}
		observability.DecWSActive()
		observability.IncWSEvent("ws_disconnect")
		info.UserID = boundUserID
		h.publishLifecycle(context.Background(), "ws_disconnect", info, closeReason)
	}()

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			closeReason = err.Error()
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				observability.IncWSEvent("ws_error")
			}
			return
		}

		var event inboundEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			h.hub.SendError(conn, "malformed event")
			continue
		}

		switch event.Type {
		case "join":
			boundUserID = h.handleJoin(conn, info, event, boundUserID)
		case "send":
			h.handleSend(conn, event, boundUserID)
		case "typing":
			h.handleTyping(conn, boundUserID)
		default:
			h.hub.SendError(conn, "unknown event type")
		}
	}
}

// handleJoin binds the connection to a user and broadcasts the presence
// delta to everyone. Returns the bound user id for the read loop.
func (h *RoomWebSocketHandler) handleJoin(conn *websocket.Conn, info ConnInfo, event inboundEvent, boundUserID int) int {
	observability.IncWSEvent("join")
	if event.UserID <= 0 {
		h.hub.SendError(conn, "join requires a user id")
		return boundUserID
	}

	online, err := h.registry.Register(info.ConnID, event.UserID)
	if err != nil {
		if errors.Is(err, presence.ErrAlreadyBound) {
			h.hub.SendError(conn, "connection already joined")
		} else {
			h.hub.SendError(conn, "join failed")
		}
		return boundUserID
	}

	h.hub.BindUser(conn, event.UserID)
	h.hub.BroadcastPresence(online)
	observability.SetOnlineUsers(len(online))
	log.Printf("user %d joined conn=%s online=%d", event.UserID, info.ConnID, len(online))
	return event.UserID
}

// handleSend routes a message through the pipeline. Failures become an error
// frame to the sender only; the pipeline broadcasts on success.
func (h *RoomWebSocketHandler) handleSend(conn *websocket.Conn, event inboundEvent, boundUserID int) {
	observability.IncWSEvent("send")

	req := pipeline.SubmitRequest{AuthorID: boundUserID, Text: event.Text}
	if event.Media != nil {
		raw, err := base64.StdEncoding.DecodeString(event.Media.Data)
		if err != nil {
			h.hub.SendError(conn, "invalid attachment: payload is not valid base64")
			return
		}
		req.Attachment = &pipeline.RawAttachment{
			Data:     raw,
			MimeType: event.Media.MimeType,
			Kind:     media.Kind(event.Media.Kind),
		}
	}

	msg, err := h.pipe.Submit(context.Background(), req)
	if err != nil {
		h.hub.SendError(conn, err.Error())
		return
	}
	log.Printf("message %d persisted author=%d", msg.ID, msg.AuthorID)
}

// handleTyping rebroadcasts the signal to everyone except the sender. Fire
// and forget: no persistence, no ordering guarantee relative to messages.
func (h *RoomWebSocketHandler) handleTyping(conn *websocket.Conn, boundUserID int) {
	observability.IncWSEvent("typing")
	if boundUserID == 0 {
		h.hub.SendError(conn, "typing requires a joined user")
		return
	}
	h.typing.Touch(boundUserID)
	h.hub.BroadcastTyping(boundUserID, conn)
}

func (h *RoomWebSocketHandler) publishLifecycle(ctx context.Context, name string, info ConnInfo, reason string) {
	_ = observability.PublishEvent(ctx, "ws_events.room", observability.EventEnvelope{
		EventType: "ws_events",
		EventName: name,
		Payload: map[string]interface{}{
			"ws": map[string]interface{}{
				"event":       name,
				"conn_id":     info.ConnID,
				"duration_ms": time.Since(info.ConnectedAt).Milliseconds(),
				"reason":      reason,
			},
			"identity": map[string]interface{}{
				"user_id":   info.UserID,
				"device_id": info.DeviceID,
				"ip":        info.IP,
			},
		},
	}, observability.BuildHeaders(info.RequestID, info.TraceID))
}
