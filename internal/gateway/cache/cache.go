package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log"
	"time"

	"github.com/factoidhq/factoid-gateway/internal/gateway/providers"
	"github.com/factoidhq/factoid-gateway/internal/shared/redis"
)

// CatalogCache shares fetched model catalogs across gateway instances via
// Redis, so a fleet performs one upstream catalog fetch per TTL.
type CatalogCache struct {
	redis *redis.Client
	ttl   time.Duration
}

// New creates a catalog cache with the given TTL.
func New(redisClient *redis.Client, ttl time.Duration) *CatalogCache {
	return &CatalogCache{redis: redisClient, ttl: ttl}
}

// cacheKey hashes the base URL so credentials or odd characters in the
// URL never leak into key names.
func (c *CatalogCache) cacheKey(baseURL string) string {
	hash := sha256.Sum256([]byte(baseURL))
	return "catalog:" + hex.EncodeToString(hash[:])
}

// GetCatalog retrieves the cached catalog for a base URL.
func (c *CatalogCache) GetCatalog(ctx context.Context, baseURL string) ([]providers.ModelInfo, bool) {
	val, err := c.redis.Get(ctx, c.cacheKey(baseURL))
	if err != nil {
		return nil, false
	}

	var models []providers.ModelInfo
	if err := json.Unmarshal([]byte(val), &models); err != nil {
		log.Printf("failed to deserialize cached catalog: %v", err)
		return nil, false
	}

	return models, true
}

// SetCatalog stores a fetched catalog. Failures are logged, not surfaced:
// a broken cache must not break catalog fetches.
func (c *CatalogCache) SetCatalog(ctx context.Context, baseURL string, models []providers.ModelInfo) {
	data, err := json.Marshal(models)
	if err != nil {
		log.Printf("failed to serialize catalog: %v", err)
		return
	}

	if err := c.redis.Set(ctx, c.cacheKey(baseURL), string(data), c.ttl); err != nil {
		log.Printf("failed to cache catalog: %v", err)
	}
}
