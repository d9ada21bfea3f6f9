package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"
)

// SequenceCache remembers the highest customer number handed out per
// tenant so the allocator can skip the max-scan query on the hot path.
// The cursor is advisory: losing it only costs one extra database query.
type SequenceCache struct {
	redis *RedisClient
}

const sequenceTTL = 24 * time.Hour

// NewSequenceCache creates a new SequenceCache.
func NewSequenceCache(redis *RedisClient) *SequenceCache {
	return &SequenceCache{redis: redis}
}

func (c *SequenceCache) key(tenantID string) string {
	return fmt.Sprintf("bri:va:seq:%s", tenantID)
}

// Set stores the last allocated customer number for a tenant.
func (c *SequenceCache) Set(ctx context.Context, tenantID string, last int64) error {
	return c.redis.Set(ctx, c.key(tenantID), strconv.FormatInt(last, 10), sequenceTTL)
}

// Get retrieves the cursor. A cache miss returns redis.Nil.
func (c *SequenceCache) Get(ctx context.Context, tenantID string) (int64, error) {
	v, err := c.redis.Get(ctx, c.key(tenantID))
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("corrupt sequence cursor %q: %w", v, err)
	}
	return n, nil
}

// Invalidate drops the cursor so the next allocation rebuilds it from
// the database. Called when the bank reports a duplicate the ledger did
// not predict.
func (c *SequenceCache) Invalidate(ctx context.Context, tenantID string) error {
	return c.redis.Delete(ctx, c.key(tenantID))
}
