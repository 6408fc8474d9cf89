package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	dispatches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "refinery_dispatches_total",
			Help: "Post-process dispatches per process type and terminal status.",
		},
		[]string{"process_type", "status"},
	)

	engineWait = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "refinery_engine_wait_seconds",
			Help:    "Wall-clock time spent waiting on the engine per dispatch path.",
			Buckets: []float64{1, 2, 5, 10, 30, 60, 120, 300},
		},
		[]string{"path"},
	)

	webhookDeliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "refinery_webhook_deliveries_total",
			Help: "Completion webhook delivery attempts per outcome.",
		},
		[]string{"outcome"},
	)
)

// MustRegister registers all collectors with the default registry exactly once.
func MustRegister() {
	once.Do(func() {
		prometheus.MustRegister(dispatches, engineWait, webhookDeliveries)
	})
}

// Dispatch records one finished dispatch.
func Dispatch(processType, status string) {
	dispatches.WithLabelValues(processType, status).Inc()
}

// EngineWait records time spent waiting on the engine for the given path
// ("refinement" or "job").
func EngineWait(path string, d time.Duration) {
	engineWait.WithLabelValues(path).Observe(d.Seconds())
}

// WebhookDelivery records one delivery attempt ("sent" or "failed").
func WebhookDelivery(outcome string) {
	webhookDeliveries.WithLabelValues(outcome).Inc()
}
