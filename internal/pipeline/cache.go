package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// ErrCacheMiss reports an absent unread-count entry.
var ErrCacheMiss = errors.New("unread count not cached")

// UnreadCache is the best-effort accelerator for unread lookups. It may be
// stale and is always overridable by the relational value, never
// authoritative.
type UnreadCache interface {
	Get(ctx context.Context, roomID, userID int64) (int, error)
	Set(ctx context.Context, roomID, userID int64, count int) error
}

// RedisUnreadCache stores counts under unread:room:<roomID>:user:<userID>.
type RedisUnreadCache struct {
	rdb *redis.Client
}

// NewRedisUnreadCache wraps the Redis client.
func NewRedisUnreadCache(rdb *redis.Client) *RedisUnreadCache {
	return &RedisUnreadCache{rdb: rdb}
}

func (c *RedisUnreadCache) Get(ctx context.Context, roomID, userID int64) (int, error) {
	val, err := c.rdb.Get(ctx, unreadKey(roomID, userID)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, ErrCacheMiss
	}
	if err != nil {
		return 0, err
	}
	count, err := strconv.Atoi(val)
	if err != nil {
		return 0, ErrCacheMiss
	}
	return count, nil
}

func (c *RedisUnreadCache) Set(ctx context.Context, roomID, userID int64, count int) error {
	return c.rdb.Set(ctx, unreadKey(roomID, userID), strconv.Itoa(count), 0).Err()
}

func unreadKey(roomID, userID int64) string {
	return fmt.Sprintf("unread:room:%d:user:%d", roomID, userID)
}
