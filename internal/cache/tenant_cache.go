package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/elgiborsolution/bri-payments-go/internal/config"
)

// TenantCache caches resolved credential bundles so lookups do not hit
// the database on every request. The bundle is cached, not the raw
// bri_clients row, because the row's JSON representation hides secrets.
type TenantCache struct {
	redis *RedisClient
}

const tenantTTL = time.Hour

// NewTenantCache creates a new TenantCache.
func NewTenantCache(redis *RedisClient) *TenantCache {
	return &TenantCache{redis: redis}
}

func (c *TenantCache) key(tenantID string) string {
	return fmt.Sprintf("bri:tenant:%s", tenantID)
}

// Set stores a resolved bundle as JSON.
func (c *TenantCache) Set(ctx context.Context, tenantID string, bundle *config.BRIConfig) error {
	data, err := json.Marshal(bundle)
	if err != nil {
		return fmt.Errorf("failed to marshal credential bundle: %w", err)
	}
	return c.redis.Set(ctx, c.key(tenantID), string(data), tenantTTL)
}

// Get retrieves a cached bundle. A cache miss returns redis.Nil.
func (c *TenantCache) Get(ctx context.Context, tenantID string) (*config.BRIConfig, error) {
	raw, err := c.redis.Get(ctx, c.key(tenantID))
	if err != nil {
		return nil, err
	}
	var bundle config.BRIConfig
	if err := json.Unmarshal([]byte(raw), &bundle); err != nil {
		return nil, fmt.Errorf("failed to unmarshal credential bundle: %w", err)
	}
	return &bundle, nil
}

// Invalidate drops a cached bundle after a tenant's credentials change.
func (c *TenantCache) Invalidate(ctx context.Context, tenantID string) error {
	return c.redis.Delete(ctx, c.key(tenantID))
}
