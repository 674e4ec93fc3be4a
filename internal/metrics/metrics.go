// Package metrics holds the Prometheus collectors shared by the image cache,
// the eviction sweeper and the image handler. Collectors are registered on the
// default registry and exposed through /-/metrics by the routes package.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Request outcomes recorded by the image handler.
const (
	OutcomeHit            = "hit"
	OutcomeMiss           = "miss"
	OutcomePartial        = "partial"
	OutcomeNotSatisfiable = "not_satisfiable"
	OutcomeFallback       = "fallback"
)

var (
	Requests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "imagecache_requests_total",
			Help: "Image protocol requests by outcome",
		},
		[]string{"outcome"},
	)

	UpstreamFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "imagecache_upstream_fetches_total",
			Help: "Upstream image fetches by result (ok, not_found, error, status)",
		},
		[]string{"result"},
	)

	NegativeSuppressed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "imagecache_negative_suppressed_total",
			Help: "Requests answered with the placeholder because the source recently returned 404",
		},
	)

	Sweeps = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "imagecache_sweeps_total",
			Help: "Completed eviction sweeps",
		},
	)

	EvictedFiles = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "imagecache_evicted_files_total",
			Help: "Cache files deleted by the eviction sweeper",
		},
	)

	EvictedBytes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "imagecache_evicted_bytes_total",
			Help: "Bytes freed by the eviction sweeper",
		},
	)

	CacheBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "imagecache_disk_bytes",
			Help: "Cache directory size observed by the most recent sweep or stats call",
		},
	)
)
