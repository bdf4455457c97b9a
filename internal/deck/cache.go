// internal/deck/cache.go
package deck

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	apperrors "petswipe-workers/internal/common/errors"
	"petswipe-workers/internal/common/logger"
)

const (
	deckKeyPrefix = "deck:user:"

	// DefaultCacheTTL bounds how long a generated deck is served without
	// recomputation.
	DefaultCacheTTL = 600 * time.Second
)

// Cache is the per-requester ordered list of pet ids, stored as a redis
// list so a single id can be removed atomically when the user swipes.
type Cache struct {
	client *redis.Client
	logger logger.Logger
}

func NewCache(client *redis.Client, log logger.Logger) *Cache {
	return &Cache{
		client: client,
		logger: log.WithFields(map[string]interface{}{"component": "deckCache"}),
	}
}

func deckKey(userID string) string {
	return deckKeyPrefix + userID
}

// Get returns the cached ordered ids for a user, or nil when nothing is
// cached.
func (c *Cache) Get(ctx context.Context, userID string) ([]string, error) {
	ids, err := c.client.LRange(ctx, deckKey(userID), 0, -1).Result()
	if err != nil {
		return nil, apperrors.NewCacheReadFailedError(err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	return ids, nil
}

// Set replaces the cached deck for a user. The previous list is dropped
// first so two concurrent writers converge on one complete deck (last set
// wins).
func (c *Cache) Set(ctx context.Context, userID string, ids []string, ttl time.Duration) error {
	if len(ids) == 0 {
		return nil
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}

	key := deckKey(userID)
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	pipe := c.client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.RPush(ctx, key, args...)
	pipe.Expire(ctx, key, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return apperrors.NewCacheWriteFailedError(err)
	}
	return nil
}

// RemoveOne drops a single pet id from the user's cached deck after a
// swipe. A missing id is a no-op, not an error.
func (c *Cache) RemoveOne(ctx context.Context, userID, petID string) error {
	if err := c.client.LRem(ctx, deckKey(userID), 1, petID).Err(); err != nil {
		return apperrors.NewCacheWriteFailedError(err)
	}
	return nil
}

// Invalidate expires the cached deck near-immediately (manual refresh).
func (c *Cache) Invalidate(ctx context.Context, userID string) error {
	if err := c.client.PExpire(ctx, deckKey(userID), time.Millisecond).Err(); err != nil {
		return apperrors.NewCacheWriteFailedError(err)
	}
	return nil
}
