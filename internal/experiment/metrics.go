package experiment

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// eventsTotal counts recorded visits and conversions by result
	eventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "abengine_events_total",
		Help: "Visits and conversions recorded, by event type and result",
	}, []string{"event", "result"})

	// autoPausedTotal counts variants demoted by the significance routine
	autoPausedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "abengine_auto_paused_variants_total",
		Help: "Variants paused automatically after a winner was detected",
	})

	// storeRetriesTotal counts retried store operations by cause
	storeRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "abengine_store_retries_total",
		Help: "Store operations retried after a transient failure",
	}, []string{"cause"})

	// operationDuration tracks lifecycle operation latency
	operationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "abengine_operation_duration_seconds",
		Help:    "Lifecycle operation duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14),
	}, []string{"operation"})
)

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case Retryable(err):
		return "unavailable"
	default:
		return "rejected"
	}
}
