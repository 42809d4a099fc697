package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   prometheus.CounterVec
	HTTPRequestDuration prometheus.HistogramVec

	// Realtime metrics
	WSActiveConnections prometheus.GaugeVec
	WSActiveRooms       prometheus.Gauge
	WSMessagesIn        prometheus.CounterVec
	WSMessagesOut       prometheus.CounterVec
	WSDeliveryFailures  prometheus.CounterVec
	WSAuthFailures      prometheus.CounterVec

	// Database metrics
	DatabaseQueriesTotal prometheus.CounterVec

	// Error metrics
	ErrorsTotal prometheus.CounterVec
}

var (
	instance *Metrics
	once     sync.Once
)

// Initialize creates and registers all Prometheus metrics
func Initialize() *Metrics {
	once.Do(func() {
		instance = &Metrics{
			HTTPRequestsTotal: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "http_requests_total",
					Help: "Total number of HTTP requests",
				},
				[]string{"method", "path", "status"},
			),
			HTTPRequestDuration: *promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "http_request_duration_seconds",
					Help:    "HTTP request latency in seconds",
					Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
				},
				[]string{"method", "path", "status"},
			),
			WSActiveConnections: *promauto.NewGaugeVec(
				prometheus.GaugeOpts{
					Name: "ws_active_connections",
					Help: "Live WebSocket connections by room kind",
				},
				[]string{"room_kind"},
			),
			WSActiveRooms: promauto.NewGauge(
				prometheus.GaugeOpts{
					Name: "ws_active_rooms",
					Help: "Rooms with at least one live connection",
				},
			),
			WSMessagesIn: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "ws_messages_received_total",
					Help: "Inbound WebSocket payloads by room kind",
				},
				[]string{"room_kind"},
			),
			WSMessagesOut: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "ws_messages_sent_total",
					Help: "Outbound WebSocket envelopes by room kind",
				},
				[]string{"room_kind"},
			),
			WSDeliveryFailures: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "ws_delivery_failures_total",
					Help: "Per-recipient broadcast delivery failures",
				},
				[]string{"room_kind"},
			),
			WSAuthFailures: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "ws_auth_failures_total",
					Help: "Connection authentication failures by error code",
				},
				[]string{"code"},
			),
			DatabaseQueriesTotal: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "database_queries_total",
					Help: "Total database queries by operation",
				},
				[]string{"operation", "status"},
			),
			ErrorsTotal: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "errors_total",
					Help: "Total errors by code",
				},
				[]string{"code"},
			),
		}
	})
	return instance
}

// Get returns the metrics instance, initializing it if needed
func Get() *Metrics {
	return Initialize()
}
