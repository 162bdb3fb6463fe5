package analyzer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prediction outcomes recorded in predictionsTotal.
const (
	outcomeSuccess   = "success"
	outcomeCached    = "cached"
	outcomeInvalid   = "invalid"
	outcomeError     = "error"
	outcomeCancelled = "cancelled"
)

var (
	predictionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "alphagenome_predictions_total",
		Help: "Variant predictions by outcome",
	}, []string{"outcome"})

	cacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "alphagenome_cache_lookups_total",
		Help: "Result cache lookups by result (hit, miss)",
	}, []string{"result"})

	rateLimitWait = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "alphagenome_ratelimit_wait_seconds",
		Help:    "Time spent waiting for a rate limit slot",
		Buckets: []float64{0, 0.01, 0.1, 1, 5, 15, 30, 60},
	})

	backendDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "alphagenome_backend_request_seconds",
		Help:    "Prediction backend call latency",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 12), // 50ms to ~100s
	})
)
