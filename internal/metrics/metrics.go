// Package metrics holds the Prometheus collectors exposed at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RecommendationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "storefront_recommendation_duration_seconds",
			Help:    "Time spent serving a recommendation request, cache hits included",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1},
		},
	)

	RecommendationResults = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "storefront_recommendation_results",
			Help:    "Number of suggestions returned per recommendation request",
			Buckets: []float64{0, 1, 2, 3, 4, 5, 6, 10},
		},
	)

	RecommendationCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "storefront_recommendation_cache_hits_total",
			Help: "Recommendations served from the result cache",
		},
	)

	// CartMutations is labelled by operation: add, remove, clear.
	CartMutations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_cart_mutations_total",
			Help: "Persisted cart mutations by operation",
		},
		[]string{"operation"},
	)

	CartStorageErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_cart_storage_errors_total",
			Help: "Cart blob store failures by kind: read, write, corrupt",
		},
		[]string{"kind"},
	)

	// SourceLoads is labelled by source (catalog, rules) and result (ok, error).
	SourceLoads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_source_loads_total",
			Help: "Catalog and rule source loads",
		},
		[]string{"source", "result"},
	)

	CatalogProducts = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "storefront_catalog_products",
			Help: "Products in the active catalog snapshot",
		},
	)

	RuleCount = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "storefront_rules",
			Help: "Association rules in the active rule snapshot",
		},
	)
)
