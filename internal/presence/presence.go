package presence

import (
	"context"
	"fmt"
	"log"
	"time"
)

const (
	presenceKeyPrefix = "user:presence:"
	defaultTTL        = 60 * time.Second
	onlineMarker      = "ONLINE"
)

// Store is the TTL-capable key-value backend holding presence markers.
type Store interface {
	SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// MembershipSource resolves the member list of a room.
type MembershipSource interface {
	MemberIDs(ctx context.Context, roomID int64) ([]int64, error)
}

// Tracker maintains online/offline state. Existence of a user's presence key
// is the "online" predicate; the key's TTL lapse (no heartbeat in time) is
// the sole mechanism for detecting ungraceful disconnects.
type Tracker struct {
	store   Store
	members MembershipSource
	ttl     time.Duration
}

// NewTracker builds a tracker with the default 60s marker TTL.
func NewTracker(store Store, members MembershipSource) *Tracker {
	return &Tracker{store: store, members: members, ttl: defaultTTL}
}

// SetOnline writes or refreshes the presence marker. Connect and every
// heartbeat land here.
func (t *Tracker) SetOnline(ctx context.Context, userID int64) error {
	if err := t.store.SetWithTTL(ctx, presenceKey(userID), onlineMarker, t.ttl); err != nil {
		log.Printf("presence set online failed: user_id=%d: %v", userID, err)
		return err
	}
	return nil
}

// SetOffline removes the marker immediately on graceful disconnect.
func (t *Tracker) SetOffline(ctx context.Context, userID int64) error {
	if err := t.store.Delete(ctx, presenceKey(userID)); err != nil {
		log.Printf("presence set offline failed: user_id=%d: %v", userID, err)
		return err
	}
	return nil
}

// IsOnline reports whether the user's marker exists.
func (t *Tracker) IsOnline(ctx context.Context, userID int64) (bool, error) {
	return t.store.Exists(ctx, presenceKey(userID))
}

// OnlineMembers resolves the room's member list and checks each member's
// marker. This is a fan-out of point lookups, not a bulk query; conversation
// sizes keep it cheap.
func (t *Tracker) OnlineMembers(ctx context.Context, roomID int64) ([]int64, error) {
	memberIDs, err := t.members.MemberIDs(ctx, roomID)
	if err != nil {
		return nil, err
	}

	online := make([]int64, 0, len(memberIDs))
	for _, userID := range memberIDs {
		ok, err := t.IsOnline(ctx, userID)
		if err != nil {
			return nil, err
		}
		if ok {
			online = append(online, userID)
		}
	}
	return online, nil
}

func presenceKey(userID int64) string {
	return fmt.Sprintf("%s%d", presenceKeyPrefix, userID)
}
