package site

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/sitelift/siteauth/internal/domain"
)

const cacheTTL = time.Minute

// Cache keeps recently resolved sites in Redis so every request does not pay
// a Postgres round trip. A nil client disables it; cache failures are logged
// and otherwise ignored.
type Cache struct {
	client redis.UniversalClient
}

// NewCache wraps the Redis client. client may be nil.
func NewCache(client redis.UniversalClient) *Cache {
	return &Cache{client: client}
}

func (c *Cache) get(ctx context.Context, key string) (domain.Site, bool) {
	if c == nil || c.client == nil {
		return domain.Site{}, false
	}
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			zap.L().Warn("site cache read failed", zap.String("key", key), zap.Error(err))
		}
		return domain.Site{}, false
	}
	var site domain.Site
	if err := json.Unmarshal(raw, &site); err != nil {
		zap.L().Warn("site cache decode failed", zap.String("key", key), zap.Error(err))
		return domain.Site{}, false
	}
	return site, true
}

func (c *Cache) put(ctx context.Context, key string, site domain.Site) {
	if c == nil || c.client == nil {
		return
	}
	raw, err := json.Marshal(site)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, key, raw, cacheTTL).Err(); err != nil {
		zap.L().Warn("site cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func idKey(siteID string) string { return "siteauth:site:id:" + siteID }

func hostKey(host string) string { return "siteauth:site:host:" + host }
