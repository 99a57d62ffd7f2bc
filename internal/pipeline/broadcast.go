package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// RoomPublisher is the fanout bus seen from the broadcast consumer.
type RoomPublisher interface {
	PublishRoom(ctx context.Context, roomID int64, payload []byte) error
}

// BroadcastHandler is consumer group 2: it relays each message event from the
// log onto the room's pub/sub channel. It runs independently of the
// persistence group, so a client may see a live message slightly before or
// after it is queryable from history.
type BroadcastHandler struct {
	bus RoomPublisher
}

// NewBroadcastHandler builds the live-delivery handler.
func NewBroadcastHandler(bus RoomPublisher) *BroadcastHandler {
	return &BroadcastHandler{bus: bus}
}

// Handle republishes the payload onto the room channel derived from the
// event. The body is forwarded as-is; only the room id is decoded.
func (h *BroadcastHandler) Handle(ctx context.Context, d amqp.Delivery) error {
	var envelope struct {
		RoomID int64 `json:"room_id"`
	}
	if err := json.Unmarshal(d.Body, &envelope); err != nil {
		return fmt.Errorf("decode message event: %w", err)
	}

	if err := h.bus.PublishRoom(ctx, envelope.RoomID, d.Body); err != nil {
		return fmt.Errorf("fanout publish room %d: %w", envelope.RoomID, err)
	}
	return nil
}
