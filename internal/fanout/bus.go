package fanout

import (
	"context"
	"encoding/json"
	"log"

	"github.com/redis/go-redis/v9"

	"chat-stream/internal/models"
)

// Bus publishes payloads onto the cross-instance pub/sub channels. A message
// is persisted once but rebroadcast to every instance, each pushing to its
// own locally attached clients.
type Bus struct {
	rdb *redis.Client
}

// NewBus wraps the Redis client as the fanout publisher.
func NewBus(rdb *redis.Client) *Bus {
	return &Bus{rdb: rdb}
}

// PublishRoom forwards a message payload to the room's channel.
func (b *Bus) PublishRoom(ctx context.Context, roomID int64, payload []byte) error {
	return b.rdb.Publish(ctx, RoomChannel(roomID), payload).Err()
}

// PublishPresence announces an online/offline transition to all instances.
func (b *Bus) PublishPresence(ctx context.Context, event models.PresenceEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if err := b.rdb.Publish(ctx, PresenceChannel, payload).Err(); err != nil {
		log.Printf("presence publish failed: user_id=%d: %v", event.UserID, err)
		return err
	}
	return nil
}
