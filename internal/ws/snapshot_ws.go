package ws

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"

	"chat-sync/internal/observability"
)

// SnapshotHandler upgrades consumers onto the snapshot stream. A client
// subscribing without a conversation id receives every event.
type SnapshotHandler struct {
	hub       *Hub
	authToken string
}

// NewSnapshotHandler constructs a SnapshotHandler.
func NewSnapshotHandler(hub *Hub, authToken string) *SnapshotHandler {
	return &SnapshotHandler{hub: hub, authToken: authToken}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handle upgrades the connection and registers the subscriber.
func (h *SnapshotHandler) Handle(c *gin.Context) {
	conversationID := c.Query("conversation_id")

	ctx, span := otel.Tracer("chat-sync/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	if h.authToken != "" {
		token := c.Query("token")
		if token == "" {
			token = c.GetHeader("Authorization")
		}
		if token != h.authToken && token != "Bearer "+h.authToken {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	info := ConnInfo{
		ConnID:      newConnID(),
		UserID:      c.GetHeader("X-User-ID"),
		DeviceID:    observability.DeviceIDFromRequest(c.Request),
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   observability.RequestIDFromRequest(c.Request),
		TraceID:     span.SpanContext().TraceID().String(),
		ConnectedAt: time.Now(),
	}
	h.hub.AddClient(conversationID, conn, info)

	observability.IncWSActive()
	observability.IncWSEvent("ws_connect")

	// Reader loop exists only to observe the close; snapshots flow one way.
	go func() {
		defer func() {
			h.hub.RemoveClient(conversationID, conn)
			conn.Close()
			observability.DecWSActive()
			observability.IncWSEvent("ws_disconnect")
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
