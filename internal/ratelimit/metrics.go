package ratelimit

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	decisionsTotal = promauto.NewCounterVec( //nolint:gochecknoglobals
		prometheus.CounterOpts{
			Namespace: "hardban",
			Subsystem: "rate_limit",
			Name:      "decisions_total",
			Help:      "Rate limit decisions by route class and outcome.",
		},
		[]string{"class", "outcome"},
	)

	storeFallbacks = promauto.NewCounterVec( //nolint:gochecknoglobals
		prometheus.CounterOpts{
			Namespace: "hardban",
			Subsystem: "rate_limit",
			Name:      "store_fallbacks_total",
			Help:      "Store operations served by the in-memory store because the shared store failed.",
		},
		[]string{"operation"},
	)

	storeDuration = promauto.NewHistogramVec( //nolint:gochecknoglobals
		prometheus.HistogramOpts{
			Namespace: "hardban",
			Subsystem: "rate_limit",
			Name:      "store_operation_duration_seconds",
			Help:      "Latency of rate limit store operations.",
			Buckets:   []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5},
		},
		[]string{"store", "operation"},
	)

	memoryKeys = promauto.NewGauge( //nolint:gochecknoglobals
		prometheus.GaugeOpts{
			Namespace: "hardban",
			Subsystem: "rate_limit",
			Name:      "memory_keys",
			Help:      "Windows currently tracked by the in-memory store.",
		},
	)
)
