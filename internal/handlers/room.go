package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"chat-stream/internal/presence"
	"chat-stream/internal/repositories"
)

// RoomHandler exposes room management and presence endpoints.
type RoomHandler struct {
	roomRepo repositories.RoomRepository
	tracker  *presence.Tracker
}

// NewRoomHandler builds a RoomHandler.
func NewRoomHandler(roomRepo repositories.RoomRepository, tracker *presence.Tracker) *RoomHandler {
	return &RoomHandler{roomRepo: roomRepo, tracker: tracker}
}

// CreateDirectRoom creates or reuses a 1:1 room with the target user.
func (h *RoomHandler) CreateDirectRoom(c *gin.Context) {
	userID := c.GetInt64("userID")

	var req struct {
		TargetUserID int64 `json:"target_user_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	room, err := h.roomRepo.CreateDirectRoom(c.Request.Context(), userID, req.TargetUserID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, room)
}

// CreateGroupRoom creates a named group room owned by the caller.
func (h *RoomHandler) CreateGroupRoom(c *gin.Context) {
	userID := c.GetInt64("userID")

	var req struct {
		Name      string  `json:"name" binding:"required"`
		MemberIDs []int64 `json:"member_ids" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	room, err := h.roomRepo.CreateGroupRoom(c.Request.Context(), userID, req.Name, req.MemberIDs)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create room"})
		return
	}

	c.JSON(http.StatusCreated, room)
}

// ListRooms returns the caller's rooms with member and unread counts.
func (h *RoomHandler) ListRooms(c *gin.Context) {
	userID := c.GetInt64("userID")

	rooms, err := h.roomRepo.ListRoomsForUser(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load rooms"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"rooms": rooms})
}

// GetOnlineMembers returns which members of the room are currently online.
func (h *RoomHandler) GetOnlineMembers(c *gin.Context) {
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

	online, err := h.tracker.OnlineMembers(c.Request.Context(), roomID)
	if err != nil {
		if errors.Is(err, repositories.ErrRoomNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load presence"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"room_id": roomID, "online": online})
}

// Heartbeat refreshes the caller's presence marker for clients that poll over
// HTTP instead of holding a socket.
func (h *RoomHandler) Heartbeat(c *gin.Context) {
	userID := c.GetInt64("userID")

	if err := h.tracker.SetOnline(c.Request.Context(), userID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to refresh presence"})
		return
	}

	c.Status(http.StatusNoContent)
}
