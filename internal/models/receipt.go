package models

import (
	"fmt"
	"time"
)

// ReadReceiptEvent is the wire schema for read-position updates. Consumers
// merge it by maximum: a value less than or equal to the stored position is a
// stale duplicate and is discarded as a no-op.
type ReadReceiptEvent struct {
	RoomID            int64     `json:"room_id"`
	UserID            int64     `json:"user_id"`
	LastReadMessageID int64     `json:"last_read_message_id"`
	Timestamp         time.Time `json:"timestamp"`
}

// NewReadReceiptEvent builds a receipt for a mark-read action.
func NewReadReceiptEvent(roomID, userID, lastReadMessageID int64) ReadReceiptEvent {
	return ReadReceiptEvent{
		RoomID:            roomID,
		UserID:            userID,
		LastReadMessageID: lastReadMessageID,
		Timestamp:         time.Now().UTC(),
	}
}

// RoutingKey keeps receipts for one room ordered on the log.
func (e ReadReceiptEvent) RoutingKey() string {
	return fmt.Sprintf("room.%d", e.RoomID)
}
