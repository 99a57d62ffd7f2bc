package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"chat-stream/internal/ingress"
	"chat-stream/internal/models"
	"chat-stream/internal/pipeline"
	"chat-stream/internal/repositories"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// MessageHandler exposes the send, history and read-state endpoints.
type MessageHandler struct {
	sender      *ingress.Sender
	messageRepo repositories.MessageRepository
	roomRepo    repositories.RoomRepository
	receipts    *pipeline.ReadReceiptService
}

// NewMessageHandler builds a MessageHandler.
func NewMessageHandler(sender *ingress.Sender, messageRepo repositories.MessageRepository, roomRepo repositories.RoomRepository, receipts *pipeline.ReadReceiptService) *MessageHandler {
	return &MessageHandler{sender: sender, messageRepo: messageRepo, roomRepo: roomRepo, receipts: receipts}
}

// PostMessage accepts a send action and publishes it to the log. The reply is
// 202: durable storage and live delivery continue asynchronously.
func (h *MessageHandler) PostMessage(c *gin.Context) {
	roomID, ok := parseRoomID(c)
	if !ok {
		return
	}
	userID := c.GetInt64("userID")

	var req struct {
		Content string             `json:"content" binding:"required"`
		Type    models.MessageType `json:"type"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	event, err := h.sender.Send(c.Request.Context(), userID, roomID, req.Content, req.Type)
	if err != nil {
		switch {
		case errors.Is(err, ingress.ErrRateLimited):
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "message rate limit exceeded"})
		case errors.Is(err, ingress.ErrNotAMember):
			c.JSON(http.StatusForbidden, gin.H{"error": "not a room member"})
		case errors.Is(err, ingress.ErrInvalidMessage):
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid message"})
		default:
			c.JSON(http.StatusBadGateway, gin.H{"error": "failed to publish message"})
		}
		return
	}

	c.JSON(http.StatusAccepted, event)
}

// GetMessages returns room history with cursor pagination, newest first.
func (h *MessageHandler) GetMessages(c *gin.Context) {
	roomID, ok := parseRoomID(c)
	if !ok {
		return
	}
	userID := c.GetInt64("userID")

	member, err := h.roomRepo.IsMember(c.Request.Context(), roomID, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to verify membership"})
		return
	}
	if !member {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a room member"})
		return
	}

	size := defaultPageSize
	if raw := c.Query("size"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			size = parsed
		}
	}
	if size > maxPageSize {
		size = maxPageSize
	}

	// Fetch one extra row to learn whether more pages exist.
	var msgs []models.Message
	if raw := c.Query("cursor"); raw != "" {
		cursor, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid cursor"})
			return
		}
		msgs, err = h.messageRepo.ListBefore(c.Request.Context(), roomID, cursor, size+1)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
			return
		}
	} else {
		msgs, err = h.messageRepo.ListLatest(c.Request.Context(), roomID, size+1)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
			return
		}
	}

	hasMore := len(msgs) > size
	if hasMore {
		msgs = msgs[:size]
	}
	var nextCursor *int64
	if hasMore {
		nextCursor = &msgs[len(msgs)-1].ID
	}

	c.JSON(http.StatusOK, gin.H{"messages": msgs, "has_more": hasMore, "next_cursor": nextCursor})
}

// MarkRead publishes a read receipt for the caller.
func (h *MessageHandler) MarkRead(c *gin.Context) {
	roomID, ok := parseRoomID(c)
	if !ok {
		return
	}
	userID := c.GetInt64("userID")

	var req struct {
		LastReadMessageID int64 `json:"last_read_message_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.sender.MarkRead(c.Request.Context(), userID, roomID, req.LastReadMessageID); err != nil {
		switch {
		case errors.Is(err, ingress.ErrNotAMember):
			c.JSON(http.StatusForbidden, gin.H{"error": "not a room member"})
		default:
			c.JSON(http.StatusBadGateway, gin.H{"error": "failed to publish read receipt"})
		}
		return
	}

	c.Status(http.StatusAccepted)
}

// GetUnreadCount returns the caller's unread count for a room, cache first.
func (h *MessageHandler) GetUnreadCount(c *gin.Context) {
	roomID, ok := parseRoomID(c)
	if !ok {
		return
	}
	userID := c.GetInt64("userID")

	count, err := h.receipts.GetUnreadCount(c.Request.Context(), roomID, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load unread count"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"room_id": roomID, "unread_count": count})
}

func parseRoomID(c *gin.Context) (int64, bool) {
	roomID, err := strconv.ParseInt(c.Param("room_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room id"})
		return 0, false
	}
	return roomID, true
}
