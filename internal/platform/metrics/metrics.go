package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	Transitions     *prometheus.CounterVec
	CodeValidations *prometheus.CounterVec
	CodesGenerated  *prometheus.CounterVec
	Lockouts        *prometheus.CounterVec
	HTTPLatency     *prometheus.HistogramVec
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		Transitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "sigil_journey_transitions_total",
			Help: "Journey state transitions by action and outcome",
		}, []string{"action", "outcome"}),
		CodeValidations: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "sigil_code_validations_total",
			Help: "One-time-code validations by purpose and outcome",
		}, []string{"purpose", "outcome"}),
		CodesGenerated: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "sigil_codes_generated_total",
			Help: "One-time codes generated by purpose",
		}, []string{"purpose"}),
		Lockouts: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "sigil_lockouts_total",
			Help: "Blocks written after a retry or generation cap was exceeded",
		}, []string{"purpose", "kind"}),
		HTTPLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sigil_http_request_duration_seconds",
			Help:    "HTTP request latency by route",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "status"}),
	}
}
