package cache

import (
	"context"
	"fmt"
	"time"
)

// TokenCache stores outbound B2B access tokens per (tenant, product).
// The TTL is derived from the expiresIn the bank returned, shortened by
// a safety margin so a cached token is never presented close to expiry.
type TokenCache struct {
	redis *RedisClient
}

// TokenSafetyMargin is subtracted from the server-reported lifetime
// before caching. BRI issues 900-second tokens, so the effective TTL is
// normally 800 seconds.
const TokenSafetyMargin = 100 * time.Second

// NewTokenCache creates a new TokenCache.
func NewTokenCache(redis *RedisClient) *TokenCache {
	return &TokenCache{redis: redis}
}

func (c *TokenCache) key(tenantID, product string) string {
	return fmt.Sprintf("bri:token:%s:%s", tenantID, product)
}

// Set stores an access token. expiresIn is the lifetime reported by the
// bank; the cached TTL is expiresIn minus the safety margin, clamped to
// zero so a tiny lifetime never produces a persistent key.
func (c *TokenCache) Set(ctx context.Context, tenantID, product, token string, expiresIn time.Duration) error {
	ttl := expiresIn - TokenSafetyMargin
	if ttl <= 0 {
		return nil
	}
	return c.redis.Set(ctx, c.key(tenantID, product), token, ttl)
}

// Get retrieves a cached token. A cache miss returns redis.Nil.
func (c *TokenCache) Get(ctx context.Context, tenantID, product string) (string, error) {
	return c.redis.Get(ctx, c.key(tenantID, product))
}

// Delete drops a cached token, forcing the next call to fetch a fresh one.
func (c *TokenCache) Delete(ctx context.Context, tenantID, product string) error {
	return c.redis.Delete(ctx, c.key(tenantID, product))
}
