// Package metadatacache TTL-bounds get_model_metadata results keyed by
// (instance, model), collapsing concurrent misses per key (§4.6).
package metadatacache

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/tombee/odoo-mcp/internal/erpclient"
	"github.com/tombee/odoo-mcp/internal/metrics"
)

type entry struct {
	value     *erpclient.ModelMetadata
	expiresAt time.Time
}

// Loader fetches metadata on a cache miss, typically ErpClient.GetModelMetadata.
type Loader func(ctx context.Context) (*erpclient.ModelMetadata, error)

// Cache is the MetadataCache.
type Cache struct {
	ttl     time.Duration
	metrics *metrics.Registry

	mu      sync.RWMutex
	entries map[string]entry

	group singleflight.Group
}

// New constructs a Cache with the given TTL (default 3600s per §4.6 if ttl <= 0).
func New(ttl time.Duration, m *metrics.Registry) *Cache {
	if ttl <= 0 {
		ttl = 3600 * time.Second
	}
	return &Cache{ttl: ttl, metrics: m, entries: make(map[string]entry)}
}

func key(instance, model string) string {
	return instance + "\x00" + model
}

// Get returns the cached metadata for (instance, model) if fresh,
// otherwise invokes loader. Concurrent misses on the same key collapse
// into a single loader invocation (§8: N concurrent misses -> 1 call).
func (c *Cache) Get(ctx context.Context, instance, model string, loader Loader) (*erpclient.ModelMetadata, error) {
	k := key(instance, model)

	c.mu.RLock()
	e, ok := c.entries[k]
	c.mu.RUnlock()
	if ok && time.Now().Before(e.expiresAt) {
		if c.metrics != nil {
			c.metrics.MetadataCacheHitsTotal.Inc()
		}
		return e.value, nil
	}

	if c.metrics != nil {
		c.metrics.MetadataCacheMissesTotal.Inc()
	}

	result, err, _ := c.group.Do(k, func() (interface{}, error) {
		c.mu.RLock()
		e, ok := c.entries[k]
		c.mu.RUnlock()
		if ok && time.Now().Before(e.expiresAt) {
			return e.value, nil
		}

		value, err := loader(ctx)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.entries[k] = entry{value: value, expiresAt: time.Now().Add(c.ttl)}
		c.mu.Unlock()
		return value, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*erpclient.ModelMetadata), nil
}

// Invalidate drops the cached entry for (instance, model), if any.
func (c *Cache) Invalidate(instance, model string) {
	c.mu.Lock()
	delete(c.entries, key(instance, model))
	c.mu.Unlock()
}
