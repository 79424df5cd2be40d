package cache

import (
	"context"

	"github.com/Belphemur/DualMux/internal/metrics"
)

// instrumentedCache counts lookups for a cache group and publishes its size.
type instrumentedCache struct {
	inner   Cache
	group   string
	untrack func()
}

func newInstrumentedCache(inner Cache, group string) *instrumentedCache {
	return &instrumentedCache{
		inner:   inner,
		group:   group,
		untrack: metrics.TrackCacheEntries(group, inner.Len),
	}
}

func (c *instrumentedCache) Get(ctx context.Context, key string) ([]byte, bool) {
	val, ok := c.inner.Get(ctx, key)
	result := metrics.CacheMiss
	if ok {
		result = metrics.CacheHit
	}
	metrics.CacheLookupsTotal.WithLabelValues(c.group, result).Inc()
	return val, ok
}

func (c *instrumentedCache) Set(ctx context.Context, key string, value []byte) {
	c.inner.Set(ctx, key, value)
}

func (c *instrumentedCache) Len() int {
	return c.inner.Len()
}

// Close drops the group's entries gauge and closes the underlying cache.
func (c *instrumentedCache) Close() error {
	c.untrack()
	return c.inner.Close()
}
