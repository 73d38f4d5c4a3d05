package services

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Aggregation-level collectors. HTTP-level metrics live in the middleware
// package; these cover what the transport cannot see: cache behavior and
// per-source upstream health.
var (
	cacheReads = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "price_cache_reads_total",
			Help: "Price cache read outcomes.",
		},
		[]string{"outcome"}, // hit | miss | error
	)

	sourceFetches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "price_source_fetches_total",
			Help: "Source adapter fetch outcomes per storefront source.",
		},
		[]string{"source", "outcome"}, // ok | empty | error | panic
	)

	aggregationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "price_aggregation_duration_seconds",
			Help:    "Wall time of live (cache-miss) aggregations.",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(cacheReads, sourceFetches, aggregationDuration)
}
