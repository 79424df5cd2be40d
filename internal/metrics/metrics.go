package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Status label values shared by the pipeline counters.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Catalog metrics
var (
	CatalogLinesSkippedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "catalog_lines_skipped_total",
			Help: "Total number of catalog feed lines skipped because they could not be decoded.",
		},
	)
)

// Acquisition metrics
var (
	MediaFetchedBytesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_fetched_bytes_total",
			Help: "Total number of payload bytes fetched, by payload role.",
		},
		[]string{"role"},
	)
)

// Mux metrics
var (
	MuxDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mux_duration_seconds",
			Help:    "Duration of multiplexer invocations.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 12),
		},
	)

	MuxTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mux_total",
			Help: "Total number of multiplexer invocations.",
		},
		[]string{"status"},
	)
)

// Packaging metrics
var (
	PackagerTitlesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "packager_titles_total",
			Help: "Total number of titles processed by the packager.",
		},
		[]string{"status"},
	)

	ArchivesPublishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "archives_published_total",
			Help: "Total number of archive uploads, by provider and status.",
		},
		[]string{"provider", "status"},
	)
)

func init() {
	prometheus.MustRegister(
		CatalogLinesSkippedTotal,
		MediaFetchedBytesTotal,
		MuxDurationSeconds,
		MuxTotal,
		PackagerTitlesTotal,
		ArchivesPublishedTotal,
	)
}
