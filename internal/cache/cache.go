package cache

import (
	"context"

	"github.com/rs/zerolog"
)

// Cache groups. Each group is a separate cache instance with its own metrics
// series and, on Redis, its own key prefix.
const (
	GroupCatalog = "catalog"
	GroupMedia   = "media"
)

// EvictCallback is called when an entry is evicted from the cache.
// Redis relies on server-side expiry and never calls it.
type EvictCallback func(key string, value []byte)

// Cache is a byte-valued key/value store used to avoid refetching the catalog
// feed and media metadata. Implementations are safe for concurrent use.
type Cache interface {
	// Get retrieves a value by key. Returns the value and true if found, or nil and false if not.
	Get(ctx context.Context, key string) ([]byte, bool)

	// Set stores a value with the given key, overwriting any previous value.
	Set(ctx context.Context, key string, value []byte)

	// Len returns the number of entries currently in the cache.
	Len() int

	// Close releases any resources held by the cache.
	Close() error
}

// Logger receives errors from cache operations that cannot be returned to the caller.
type Logger interface {
	Error(msg string, err error)
}

// ZerologLogger adapts a zerolog.Logger to the cache Logger interface.
type ZerologLogger struct {
	Log zerolog.Logger
}

func (l ZerologLogger) Error(msg string, err error) {
	l.Log.Error().Err(err).Msg(msg)
}
