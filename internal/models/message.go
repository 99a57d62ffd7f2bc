package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MessageType is the closed set of message kinds.
type MessageType string

const (
	MessageTypeText   MessageType = "TEXT"
	MessageTypeImage  MessageType = "IMAGE"
	MessageTypeSystem MessageType = "SYSTEM"
)

// ValidMessageType reports whether t is one of the known kinds.
func ValidMessageType(t MessageType) bool {
	switch t {
	case MessageTypeText, MessageTypeImage, MessageTypeSystem:
		return true
	}
	return false
}

// Message is the durable record of a chat message. Rows are append-only:
// once written for a message key they are never mutated.
type Message struct {
	ID            int64       `db:"id" json:"id"`
	MessageKey    uuid.UUID   `db:"message_key" json:"message_key"`
	RoomID        int64       `db:"room_id" json:"room_id"`
	SenderID      int64       `db:"sender_id" json:"sender_id"`
	Content       string      `db:"content" json:"content"`
	Type          MessageType `db:"message_type" json:"type"`
	LogExchange   string      `db:"log_exchange" json:"-"`
	LogRoutingKey string      `db:"log_routing_key" json:"-"`
	CreatedAt     time.Time   `db:"created_at" json:"created_at"`
}

// ChatMessageEvent is the wire schema published to the message log.
// The message key is assigned exactly once, here, and travels unchanged
// through every stage; broker redeliveries reuse it.
type ChatMessageEvent struct {
	MessageKey     uuid.UUID   `json:"message_key"`
	RoomID         int64       `json:"room_id"`
	SenderID       int64       `json:"sender_id"`
	SenderNickname string      `json:"sender_nickname"`
	Content        string      `json:"content"`
	Type           MessageType `json:"type"`
	Timestamp      time.Time   `json:"timestamp"`
}

// NewChatMessageEvent builds an event for a single user send action.
func NewChatMessageEvent(roomID, senderID int64, senderNickname, content string, msgType MessageType) ChatMessageEvent {
	return ChatMessageEvent{
		MessageKey:     uuid.New(),
		RoomID:         roomID,
		SenderID:       senderID,
		SenderNickname: senderNickname,
		Content:        content,
		Type:           msgType,
		Timestamp:      time.Now().UTC(),
	}
}

// RoutingKey returns the ordering key for the message log. All events of one
// room share the key, so the log observes them in publish order.
func (e ChatMessageEvent) RoutingKey() string {
	return fmt.Sprintf("room.%d", e.RoomID)
}
