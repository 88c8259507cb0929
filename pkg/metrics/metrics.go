// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestDuration tracks HTTP request duration.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	// RequestsTotal tracks total HTTP requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// BroadcastEventsTotal tracks events fanned out by the hub.
	BroadcastEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "broadcast_events_total",
			Help: "Total events broadcast to listeners",
		},
		[]string{"type"},
	)

	// BroadcastDroppedTotal tracks events dropped by the per-listener
	// drop-oldest backpressure policy.
	BroadcastDroppedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "broadcast_dropped_total",
			Help: "Events evicted from full listener queues",
		},
	)

	// ListenersActive tracks registered broadcast listeners.
	ListenersActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "broadcast_listeners_active",
			Help: "Number of registered SSE listeners",
		},
	)

	// UpstreamStreamDuration tracks upstream AI stream duration.
	UpstreamStreamDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upstream_stream_duration_seconds",
			Help:    "Upstream AI streaming response duration",
			Buckets: []float64{1, 2, 5, 10, 20, 30, 45, 60, 90, 120},
		},
		[]string{"provider", "status"},
	)

	// MessagesPersistedTotal tracks messages written to the store.
	MessagesPersistedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messages_persisted_total",
			Help: "Total messages written to the store",
		},
		[]string{"type"},
	)

	// JournalPublishesTotal tracks NATS journal publishes.
	JournalPublishesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "journal_publishes_total",
			Help: "Total NATS journal publishes",
		},
		[]string{"status"},
	)
)

// RecordRequest records metrics for an HTTP request.
func RecordRequest(method, path, status string, duration float64) {
	RequestDuration.WithLabelValues(method, path, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, path, status).Inc()
}

// RecordUpstreamStream records metrics for one upstream streaming cycle.
func RecordUpstreamStream(provider, status string, duration float64) {
	UpstreamStreamDuration.WithLabelValues(provider, status).Observe(duration)
}

// IncrementListeners increments the active listener count.
func IncrementListeners() {
	ListenersActive.Inc()
}

// DecrementListeners decrements the active listener count.
func DecrementListeners() {
	ListenersActive.Dec()
}
