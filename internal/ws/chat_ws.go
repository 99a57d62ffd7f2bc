package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"

	"chat-stream/internal/auth"
	"chat-stream/internal/fanout"
	"chat-stream/internal/ingress"
	"chat-stream/internal/models"
	"chat-stream/internal/observability"
	"chat-stream/internal/presence"
	"chat-stream/internal/repositories"
)

// clientCommand is one inbound frame on a room socket.
type clientCommand struct {
	Type              string             `json:"type"`
	Content           string             `json:"content,omitempty"`
	MessageType       models.MessageType `json:"message_type,omitempty"`
	LastReadMessageID int64              `json:"last_read_message_id,omitempty"`
}

type errorFrame struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// ChatWebSocketHandler upgrades room connections and drives the connect and
// disconnect presence hooks.
type ChatWebSocketHandler struct {
	hub      *Hub
	roomRepo repositories.RoomRepository
	tokens   *auth.TokenProvider
	sender   *ingress.Sender
	tracker  *presence.Tracker
	bus      *fanout.Bus
}

// NewChatWebSocketHandler constructs a ChatWebSocketHandler.
func NewChatWebSocketHandler(hub *Hub, roomRepo repositories.RoomRepository, tokens *auth.TokenProvider, sender *ingress.Sender, tracker *presence.Tracker, bus *fanout.Bus) *ChatWebSocketHandler {
	return &ChatWebSocketHandler{hub: hub, roomRepo: roomRepo, tokens: tokens, sender: sender, tracker: tracker, bus: bus}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handle authenticates, upgrades and registers a room connection, then runs
// its command loop until the socket closes.
func (h *ChatWebSocketHandler) Handle(c *gin.Context) {
	roomID, err := strconv.ParseInt(c.Param("room_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room id"})
		return
	}

	ctx, span := otel.Tracer("chat-stream/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	token := c.GetHeader("Authorization")
	if token != "" {
		const prefix = "Bearer "
		if len(token) > len(prefix) {
			token = token[len(prefix):]
		}
	} else {
		token = c.Query("token")
	}

	userID, err := h.tokens.ParseUserID(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	member, err := h.roomRepo.IsMember(ctx, roomID, userID)
	if err != nil || !member {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a room member"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	info := ConnInfo{
		ConnID:      newConnID(),
		UserID:      userID,
		IP:          c.ClientIP(),
		ConnectedAt: time.Now(),
	}
	h.hub.AddClient(roomID, conn, info)
	observability.IncWSActive()
	observability.IncWSEvent("connect")

	// Connect drives presence: mark online and tell every instance.
	if err := h.tracker.SetOnline(ctx, userID); err == nil {
		_ = h.bus.PublishPresence(ctx, models.PresenceOnlineEvent(userID))
	}
	log.Printf("websocket connected: user_id=%d room_id=%d conn_id=%s", userID, roomID, info.ConnID)

	go h.readLoop(roomID, conn, info)
}

func (h *ChatWebSocketHandler) readLoop(roomID int64, conn *websocket.Conn, info ConnInfo) {
	ctx := context.Background()
	defer func() {
		h.hub.RemoveClient(roomID, conn)
		observability.DecWSActive()
		observability.IncWSEvent("disconnect")
		if err := h.tracker.SetOffline(ctx, info.UserID); err == nil {
			_ = h.bus.PublishPresence(ctx, models.PresenceOfflineEvent(info.UserID))
		}
		conn.Close()
		log.Printf("websocket disconnected: user_id=%d room_id=%d conn_id=%s duration_ms=%d",
			info.UserID, roomID, info.ConnID, time.Since(info.ConnectedAt).Milliseconds())
	}()

	for {
		var cmd clientCommand
		if err := conn.ReadJSON(&cmd); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				observability.IncWSEvent("error")
			}
			return
		}

		if err := h.dispatch(ctx, roomID, info.UserID, cmd); err != nil {
			frame := errorFrame{Type: "error", Error: wireError(err)}
			payload, _ := json.Marshal(frame)
			if werr := h.hub.WriteConn(conn, payload); werr != nil {
				return
			}
		}
	}
}

func (h *ChatWebSocketHandler) dispatch(ctx context.Context, roomID, userID int64, cmd clientCommand) error {
	switch cmd.Type {
	case "send":
		_, err := h.sender.Send(ctx, userID, roomID, cmd.Content, cmd.MessageType)
		return err
	case "read":
		return h.sender.MarkRead(ctx, userID, roomID, cmd.LastReadMessageID)
	case "heartbeat":
		// Heartbeats refresh the presence TTL; a silent client lapses.
		return h.tracker.SetOnline(ctx, userID)
	default:
		return errors.New("unknown command type")
	}
}

func wireError(err error) string {
	switch {
	case errors.Is(err, ingress.ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ingress.ErrNotAMember):
		return "not_a_member"
	case errors.Is(err, ingress.ErrInvalidMessage):
		return "invalid_message"
	default:
		return "internal_error"
	}
}
