package ws

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"

	"dabubble/internal/middleware"
	"dabubble/internal/mirror"
	"dabubble/internal/observability"
)

// ConversationWebSocketHandler upgrades clients onto a conversation room so
// they receive post and reaction events as they happen.
type ConversationWebSocketHandler struct {
	hub       *Hub
	mirror    *mirror.Mirror
	jwtSecret string
}

// NewConversationWebSocketHandler constructs a ConversationWebSocketHandler.
func NewConversationWebSocketHandler(hub *Hub, m *mirror.Mirror, jwtSecret string) *ConversationWebSocketHandler {
	return &ConversationWebSocketHandler{hub: hub, mirror: m, jwtSecret: jwtSecret}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handle upgrades the connection and registers the client.
func (h *ConversationWebSocketHandler) Handle(c *gin.Context) {
	conversationID := c.Param("conversation_id")
	if conversationID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid conversation id"})
		return
	}

	ctx, span := otel.Tracer("dabubble/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	token := c.Query("token")
	if token == "" {
		header := c.GetHeader("Authorization")
		if len(header) > 7 {
			token = header[7:]
		}
	}
	userID, err := middleware.ParseToken(h.jwtSecret, token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	kind, allowed := h.authorize(userID, conversationID)
	if !allowed {
		c.JSON(http.StatusForbidden, gin.H{"error": "not authorized for conversation"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	info := ConnInfo{
		ConnID:      newConnID(),
		UserID:      userID,
		Kind:        kind,
		DeviceID:    observability.DeviceIDFromRequest(c.Request),
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   observability.RequestIDFromRequest(c.Request),
		TraceID:     span.SpanContext().TraceID().String(),
		ConnectedAt: time.Now(),
	}
	h.hub.AddClient(conversationID, conn, info)

	observability.IncWSActive(kind)
	observability.IncWSEvent(kind, "ws_connect")
	h.publishConnEvent(ctx, conversationID, info, "ws_connect", "")

	// Keep connection alive and clean up on close. The goroutine outlives the
	// request, so it must not touch the gin context: gin recycles it into its
	// pool the moment Handle returns. Everything the events need is on info.
	go func() {
		var closeReason string
		defer func() {
			h.hub.RemoveClient(conversationID, conn)
			observability.DecWSActive(kind)
			observability.IncWSEvent(kind, "ws_disconnect")
			h.publishConnEvent(context.Background(), conversationID, info, "ws_disconnect", closeReason)
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				closeReason = err.Error()
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					observability.IncWSEvent(kind, "ws_error")
					h.publishConnEvent(context.Background(), conversationID, info, "ws_error", closeReason)
				}
				return
			}
		}
	}()
}

// authorize reports whether the user may watch the conversation: channel
// membership for channels, thread ownership for DMs.
func (h *ConversationWebSocketHandler) authorize(userID, conversationID string) (string, bool) {
	if ch, ok := h.mirror.ChannelByID(conversationID); ok {
		return "channel", ch.HasMember(userID)
	}
	if u, ok := h.mirror.UserByID(userID); ok {
		if _, ok := u.DMThread(conversationID); ok {
			return "dm", true
		}
	}
	return "", false
}

func (h *ConversationWebSocketHandler) publishConnEvent(ctx context.Context, conversationID string, info ConnInfo, event, reason string) {
	_ = observability.PublishEvent(ctx, "ws_events.conversations", observability.EventEnvelope{
		EventType: "ws_events",
		EventName: event,
		Payload: map[string]interface{}{
			"ws": map[string]interface{}{
				"kind":            info.Kind,
				"conversation_id": conversationID,
				"event":           event,
				"conn_id":         info.ConnID,
				"duration_ms":     time.Since(info.ConnectedAt).Milliseconds(),
				"reason":          reason,
			},
			"identity": map[string]interface{}{
				"user_id":   info.UserID,
				"device_id": info.DeviceID,
				"ip":        info.IP,
			},
		},
	}, observability.BuildHeaders(info.RequestID, info.TraceID))
}
