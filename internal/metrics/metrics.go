// Package metrics defines the Prometheus instruments exposed on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// WebSocket session metrics
var (
	// ConnectedClients tracks the number of live chat sessions.
	ConnectedClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_connected_clients",
			Help: "Number of connected WebSocket chat clients",
		},
	)

	// SessionsOpenedTotal counts accepted upgrades.
	SessionsOpenedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_sessions_opened_total",
			Help: "Total WebSocket sessions accepted",
		},
	)

	// SessionsRejectedTotal counts upgrade requests refused at authentication.
	SessionsRejectedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_sessions_rejected_total",
			Help: "Total WebSocket upgrade requests rejected with 401",
		},
	)

	// MessageSendDuration tracks socket write latency in seconds.
	MessageSendDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "chat_message_send_duration_seconds",
			Help:    "WebSocket message send duration in seconds",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1},
		},
	)
)

// Broadcast bus metrics
var (
	// BusSubscribers tracks the current number of bus subscriptions.
	BusSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_bus_subscribers",
			Help: "Current number of broadcast bus subscriptions",
		},
	)

	// BusEventsPublishedTotal counts published events by type.
	BusEventsPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_bus_events_published_total",
			Help: "Total events published to the broadcast bus by type",
		},
		[]string{"type"},
	)

	// BusLaggedTotal counts subscriptions that overflowed and dropped events.
	BusLaggedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_bus_lagged_total",
			Help: "Total subscription overflows (events dropped for a slow consumer)",
		},
	)
)

// Message store metrics
var (
	// MessagesAppendedTotal counts committed appends.
	MessagesAppendedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_messages_appended_total",
			Help: "Total chat messages committed to the store",
		},
	)

	// MessagesDeletedTotal counts committed deletes.
	MessagesDeletedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_messages_deleted_total",
			Help: "Total chat messages deleted from the store",
		},
	)

	// StoreErrorsTotal counts store failures by operation.
	StoreErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_store_errors_total",
			Help: "Total message store failures by operation",
		},
		[]string{"operation"},
	)
)
