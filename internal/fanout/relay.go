package fanout

import (
	"context"
	"log"

	"github.com/redis/go-redis/v9"

	"chat-stream/internal/observability"
)

// LocalBroadcaster pushes a payload to the clients attached to this process.
type LocalBroadcaster interface {
	BroadcastRoom(roomID int64, payload []byte)
	BroadcastPresence(payload []byte)
}

// Relay subscribes this instance to every room channel plus the presence
// channel and forwards received payloads to locally connected clients.
type Relay struct {
	rdb   *redis.Client
	local LocalBroadcaster
}

// NewRelay builds the per-instance fanout subscriber.
func NewRelay(rdb *redis.Client, local LocalBroadcaster) *Relay {
	return &Relay{rdb: rdb, local: local}
}

// Run consumes the subscription until the context is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	pubsub := r.rdb.PSubscribe(ctx, RoomChannelPattern)
	defer pubsub.Close()
	if err := pubsub.Subscribe(ctx, PresenceChannel); err != nil {
		return err
	}

	log.Printf("fanout relay subscribed: pattern=%s channel=%s", RoomChannelPattern, PresenceChannel)
	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			r.dispatch(msg)
		}
	}
}

func (r *Relay) dispatch(msg *redis.Message) {
	if msg.Channel == PresenceChannel {
		r.local.BroadcastPresence([]byte(msg.Payload))
		observability.IncFanoutDelivered()
		return
	}

	roomID, ok := RoomIDFromChannel(msg.Channel)
	if !ok {
		log.Printf("fanout relay: unrecognized channel %q", msg.Channel)
		return
	}
	r.local.BroadcastRoom(roomID, []byte(msg.Payload))
	observability.IncFanoutDelivered()
}
