// internal/store/cache.go
package store

import (
	"context"
	stderrors "errors"
	"time"

	"content-workers/internal/common/database"
	"content-workers/internal/common/logger"
	"content-workers/internal/common/metrics"
	"content-workers/internal/models"
)

// Catalog is the read side the cache fronts.
type Catalog interface {
	GetProduct(ctx context.Context, id string) (*models.Product, error)
	GetBrand(ctx context.Context, id string) (*models.Brand, error)
	RecentTopicTitles(ctx context.Context, productID string, limit int) ([]string, error)
	SiblingTopicTitles(ctx context.Context, brandID, excludeProductID string, limit int) ([]string, error)
}

// CachedCatalog serves product and brand lookups from Redis. Any cache error falls through to the
// underlying catalog. Topic titles change with every save and are never cached.
type CachedCatalog struct {
	Catalog
	cache *database.RedisClient
	ttl   time.Duration
	log   logger.Logger
}

func NewCachedCatalog(inner Catalog, cache *database.RedisClient, ttl time.Duration, log logger.Logger) *CachedCatalog {
	return &CachedCatalog{Catalog: inner, cache: cache, ttl: ttl, log: log}
}

func productKey(id string) string { return "catalog:product:" + id }

func brandKey(id string) string { return "catalog:brand:" + id }

func (c *CachedCatalog) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	var p models.Product
	if c.lookup(ctx, "product", productKey(id), &p) {
		return &p, nil
	}

	fresh, err := c.Catalog.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	c.store(ctx, productKey(id), fresh)
	return fresh, nil
}

func (c *CachedCatalog) GetBrand(ctx context.Context, id string) (*models.Brand, error) {
	var b models.Brand
	if c.lookup(ctx, "brand", brandKey(id), &b) {
		return &b, nil
	}

	fresh, err := c.Catalog.GetBrand(ctx, id)
	if err != nil {
		return nil, err
	}
	c.store(ctx, brandKey(id), fresh)
	return fresh, nil
}

// Invalidate drops cached entries for a product and a brand. Empty ids are ignored.
func (c *CachedCatalog) Invalidate(ctx context.Context, productID, brandID string) error {
	var keys []string
	if productID != "" {
		keys = append(keys, productKey(productID))
	}
	if brandID != "" {
		keys = append(keys, brandKey(brandID))
	}
	if len(keys) == 0 {
		return nil
	}
	return c.cache.Del(ctx, keys...)
}

func (c *CachedCatalog) lookup(ctx context.Context, entity, key string, dest interface{}) bool {
	err := c.cache.GetJSON(ctx, key, dest)
	switch {
	case err == nil:
		metrics.CatalogCacheLookups.WithLabelValues(entity, "hit").Inc()
		return true
	case stderrors.Is(err, database.ErrCacheMiss):
		metrics.CatalogCacheLookups.WithLabelValues(entity, "miss").Inc()
	default:
		metrics.CatalogCacheLookups.WithLabelValues(entity, "error").Inc()
		c.log.Warn("catalog cache read failed", map[string]interface{}{"key": key, "error": err})
	}
	return false
}

func (c *CachedCatalog) store(ctx context.Context, key string, v interface{}) {
	if err := c.cache.SetJSON(ctx, key, v, c.ttl); err != nil {
		c.log.Warn("catalog cache write failed", map[string]interface{}{"key": key, "error": err})
	}
}
