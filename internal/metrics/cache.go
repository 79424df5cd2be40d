package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Cache lookup results.
const (
	CacheHit  = "hit"
	CacheMiss = "miss"
)

// Cache metrics, labelled by cache group ("catalog" or "media").
var (
	CacheLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_lookups_total",
			Help: "Total number of cache lookups, by group and result.",
		},
		[]string{"group", "result"},
	)

	CacheEvictionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_evictions_total",
			Help: "Total number of entries evicted from a cache group.",
		},
		[]string{"group"},
	)
)

func init() {
	prometheus.MustRegister(
		CacheLookupsTotal,
		CacheEvictionsTotal,
	)
}

var (
	cacheEntriesMu sync.Mutex
	cacheEntries   = make(map[string]prometheus.GaugeFunc)

	// CacheEntriesRegisterer receives the per-group cache_entries gauges.
	// Tests point it at an isolated registry.
	CacheEntriesRegisterer prometheus.Registerer = prometheus.DefaultRegisterer
)

// TrackCacheEntries publishes size as the cache_entries gauge of group. The
// gauge is read at scrape time, so entries expired server-side are never
// over-reported. A second call for the same group replaces the first gauge.
// The returned func removes the gauge; it is a no-op once replaced.
func TrackCacheEntries(group string, size func() int) (untrack func()) {
	gauge := prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name:        "cache_entries",
			Help:        "Current number of entries in a cache group.",
			ConstLabels: prometheus.Labels{"group": group},
		},
		func() float64 { return float64(size()) },
	)
	reg := CacheEntriesRegisterer

	cacheEntriesMu.Lock()
	if old, ok := cacheEntries[group]; ok {
		reg.Unregister(old)
	}
	cacheEntries[group] = gauge
	_ = reg.Register(gauge)
	cacheEntriesMu.Unlock()

	return func() {
		cacheEntriesMu.Lock()
		defer cacheEntriesMu.Unlock()
		if cacheEntries[group] == gauge {
			reg.Unregister(gauge)
			delete(cacheEntries, group)
		}
	}
}
