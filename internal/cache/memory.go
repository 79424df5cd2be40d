package cache

import (
	"context"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

func init() {
	Register("memory", newLRUCache)
}

// lruCache keeps catalog feeds and media metadata in process, bounded by
// entry count and expiring each entry TTL after it was stored. Values are
// copied on Set so a caller reusing its buffer cannot corrupt the cache.
type lruCache struct {
	entries *lru.LRU[string, []byte]
	closed  atomic.Bool
}

func newLRUCache(cfg ProviderConfig) (Cache, error) {
	size := cfg.Size
	if size <= 0 {
		size = defaultSize
	}
	c := &lruCache{}
	onEvict := cfg.OnEvict
	c.entries = lru.NewLRU(size, func(key string, value []byte) {
		if onEvict != nil && !c.closed.Load() {
			onEvict(key, value)
		}
	}, cfg.TTL)
	return c, nil
}

func (c *lruCache) Get(_ context.Context, key string) ([]byte, bool) {
	return c.entries.Get(key)
}

func (c *lruCache) Set(_ context.Context, key string, value []byte) {
	c.entries.Add(key, append([]byte(nil), value...))
}

func (c *lruCache) Len() int {
	return c.entries.Len()
}

// Close drops every entry. Entries dropped here are not reported as evictions.
func (c *lruCache) Close() error {
	c.closed.Store(true)
	c.entries.Purge()
	return nil
}
