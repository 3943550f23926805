// Package metrics holds the Prometheus instruments for the lattice
// daemon. promauto registers everything against the default registry,
// which the server exposes at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RelationshipsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lattice_relationships_created_total",
			Help: "Relationships created, by relationship type",
		},
		[]string{"rel_type"},
	)

	RelationshipsDeleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lattice_relationships_deleted_total",
			Help: "Relationships deleted, by relationship type",
		},
		[]string{"rel_type"},
	)

	EventsDispatched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lattice_events_dispatched_total",
			Help: "Graph events dispatched to listeners, by kind",
		},
		[]string{"kind"},
	)

	TraversalDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lattice_traversal_duration_seconds",
			Help:    "Wall time of depth-bounded traversals",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"engine"},
	)

	WatchSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "lattice_watch_sessions",
			Help: "Open websocket watch sessions",
		},
	)

	WatchEventsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lattice_watch_events_dropped_total",
			Help: "Events dropped because a watch session's buffer was full",
		},
	)

	WebhookDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lattice_webhook_deliveries_total",
			Help: "Webhook delivery attempts, by outcome",
		},
		[]string{"outcome"},
	)
)
