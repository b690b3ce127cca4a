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

	// WSConnectionsActive tracks active conversation WebSocket connections.
	WSConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ws_connections_active",
			Help: "Number of active conversation WebSocket connections",
		},
	)

	// WSReconnectsTotal tracks bridge reconnection attempts.
	WSReconnectsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ws_reconnects_total",
			Help: "Total WebSocket reconnection attempts",
		},
	)

	// LiveEventsTotal tracks live events by outcome.
	// Results: applied, duplicate, dropped.
	LiveEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "live_events_total",
			Help: "Total live events received, by outcome",
		},
		[]string{"result"},
	)

	// PaginationFetchesTotal tracks message page fetches.
	PaginationFetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pagination_fetches_total",
			Help: "Total message page fetches, by direction and status",
		},
		[]string{"direction", "status"},
	)

	// MessagesTotal tracks messages created on the server.
	MessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messages_total",
			Help: "Total messages created",
		},
		[]string{"direction"},
	)

	// StatusUpdatesTotal tracks conversation status changes.
	StatusUpdatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "status_updates_total",
			Help: "Total conversation status updates",
		},
		[]string{"status"},
	)
)

// RecordRequest records metrics for an HTTP request.
func RecordRequest(method, path, status string, duration float64) {
	RequestDuration.WithLabelValues(method, path, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, path, status).Inc()
}

// RecordLiveEvent records the outcome of one live event delivery.
func RecordLiveEvent(result string) {
	LiveEventsTotal.WithLabelValues(result).Inc()
}

// RecordPaginationFetch records one message page fetch.
func RecordPaginationFetch(direction, status string) {
	PaginationFetchesTotal.WithLabelValues(direction, status).Inc()
}

// IncrementWSConnections increments the active WebSocket connection count.
func IncrementWSConnections() {
	WSConnectionsActive.Inc()
}

// DecrementWSConnections decrements the active WebSocket connection count.
func DecrementWSConnections() {
	WSConnectionsActive.Dec()
}
