package worker

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus metrics exposed by the agent worker.
type Metrics struct {
	registry *prometheus.Registry

	JobsTotal    *prometheus.CounterVec
	ActiveCalls  prometheus.Gauge
	CallDuration prometheus.Histogram
	Reconnects   prometheus.Counter
}

// NewMetrics registers the worker metrics on a private registry so tests
// can construct as many instances as they need.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "voicebridge"
	}
	registry := prometheus.NewRegistry()

	jobsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_total",
			Help:      "Call jobs handled, by outcome",
		},
		[]string{"status"},
	)
	activeCalls := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_calls",
			Help:      "Calls currently in progress",
		},
	)
	callDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "call_duration_seconds",
			Help:      "Duration of completed calls",
			Buckets:   []float64{5, 15, 30, 60, 120, 300, 600, 1800},
		},
	)
	reconnects := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatcher_reconnects_total",
			Help:      "Reconnections to the job dispatcher",
		},
	)

	registry.MustRegister(jobsTotal, activeCalls, callDuration, reconnects)

	return &Metrics{
		registry:     registry,
		JobsTotal:    jobsTotal,
		ActiveCalls:  activeCalls,
		CallDuration: callDuration,
		Reconnects:   reconnects,
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveCall records one finished call.
func (m *Metrics) ObserveCall(status string, started time.Time) {
	m.JobsTotal.WithLabelValues(status).Inc()
	m.CallDuration.Observe(time.Since(started).Seconds())
}
