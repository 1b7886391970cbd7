// Package metrics exposes Prometheus instruments for the booking assistant.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the instruments recorded by the conversation engine.
type Metrics struct {
	BookingsTotal   *prometheus.CounterVec
	SlotScanSeconds prometheus.Histogram
	LLMRequests     *prometheus.CounterVec
	LLMSeconds      prometheus.Histogram
	EmergenciesHit  prometheus.Counter
}

// New registers the instruments on reg. Pass prometheus.DefaultRegisterer
// in production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		BookingsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "healthbook_bookings_total",
			Help: "Booking attempts by specialty and outcome.",
		}, []string{"specialty", "status"}),
		SlotScanSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "healthbook_slot_scan_duration_seconds",
			Help:    "Time spent scanning for a free slot.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
		}),
		LLMRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "healthbook_llm_requests_total",
			Help: "LLM completions by outcome.",
		}, []string{"status"}),
		LLMSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "healthbook_llm_request_duration_seconds",
			Help:    "LLM completion latency.",
			Buckets: prometheus.DefBuckets,
		}),
		EmergenciesHit: factory.NewCounter(prometheus.CounterOpts{
			Name: "healthbook_emergencies_total",
			Help: "Messages that triggered the emergency pre-empt.",
		}),
	}
}
