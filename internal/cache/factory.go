package cache

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Belphemur/DualMux/internal/config"
	"github.com/Belphemur/DualMux/internal/metrics"
)

const (
	defaultSize = 512
	defaultTTL  = time.Hour
)

// ProviderConfig holds the configuration needed to create a cache instance.
type ProviderConfig struct {
	// Size is the maximum number of entries for LRU caches.
	Size int

	// TTL is the time-to-live for cache entries.
	TTL time.Duration

	// OnEvict is called when an entry is evicted. Not all providers support this.
	OnEvict EvictCallback

	// Logger receives error reports from cache operations. If nil, errors are silently ignored.
	Logger Logger

	RedisAddress  string
	RedisPassword string
	RedisDB       int

	// Group labels the cache metrics and namespaces Redis keys. When non-empty
	// the cache is wrapped with metric instrumentation.
	Group string
}

// Provider is a constructor function that creates a Cache from config.
type Provider func(cfg ProviderConfig) (Cache, error)

var (
	mu        sync.RWMutex
	providers = make(map[string]Provider)
)

// Register registers a cache provider under the given name.
// It panics if the name is already registered or the provider is nil.
func Register(name string, p Provider) {
	mu.Lock()
	defer mu.Unlock()

	if p == nil {
		panic("cache: Register provider is nil")
	}
	if _, exists := providers[name]; exists {
		panic(fmt.Sprintf("cache: provider %q already registered", name))
	}
	providers[name] = p
}

// New creates a new Cache using the named provider and the given config.
// When cfg.Group is non-empty lookups and evictions are counted under that
// group and the entry count is reported lazily at scrape time.
func New(name string, cfg ProviderConfig) (Cache, error) {
	mu.RLock()
	p, ok := providers[name]
	mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("cache: unknown provider %q (registered: %v)", name, RegisteredProviders())
	}

	if cfg.Group == "" {
		return p(cfg)
	}

	group := cfg.Group
	original := cfg.OnEvict
	cfg.OnEvict = func(key string, value []byte) {
		metrics.CacheEvictionsTotal.WithLabelValues(group).Inc()
		if original != nil {
			original(key, value)
		}
	}

	inner, err := p(cfg)
	if err != nil {
		return nil, err
	}

	return newInstrumentedCache(inner, group), nil
}

// FromConfig builds the cache for group described by the cache section of cfg.
// It returns a nil Cache when caching is disabled (empty provider).
func FromConfig(cfg *config.Config, group string) (Cache, error) {
	if cfg.Cache.Provider == "" {
		return nil, nil
	}
	size := cfg.Cache.Size
	if size <= 0 {
		size = defaultSize
	}
	return New(cfg.Cache.Provider, ProviderConfig{
		Size:          size,
		TTL:           config.ParseDuration("cache.ttl", cfg.Cache.TTL, defaultTTL),
		Logger:        ZerologLogger{Log: config.GetLogger()},
		RedisAddress:  cfg.Cache.Redis.Address,
		RedisPassword: cfg.Cache.Redis.Password,
		RedisDB:       cfg.Cache.Redis.DB,
		Group:         group,
	})
}

// RegisteredProviders returns a sorted list of registered provider names.
func RegisteredProviders() []string {
	mu.RLock()
	defer mu.RUnlock()

	names := make([]string, 0, len(providers))
	for name := range providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
