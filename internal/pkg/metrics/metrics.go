// Package metrics provides Prometheus metrics definitions.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "pulsepage"

var (
	// HTTPRequestDuration tracks HTTP request latency.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "route", "status_code"},
	)

	// DBPoolConnections tracks database connection pool state.
	DBPoolConnections = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      "pool_connections",
			Help:      "Number of database connections by state",
		},
		[]string{"state"},
	)

	// RealtimeStreams tracks open notification stream connections.
	RealtimeStreams = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "realtime",
			Name:      "streams",
			Help:      "Number of open notification stream connections",
		},
	)

	// RealtimeChangesPublished counts change events published to the feed.
	RealtimeChangesPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "realtime",
			Name:      "changes_published_total",
			Help:      "Change events published to the feed",
		},
		[]string{"table", "op"},
	)

	// RealtimeNotificationsDelivered counts notifications handed to stream clients.
	RealtimeNotificationsDelivered = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "realtime",
			Name:      "notifications_delivered_total",
			Help:      "Notifications delivered to stream clients",
		},
	)

	// RealtimeNotificationsDropped counts notifications dropped on slow clients.
	RealtimeNotificationsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "realtime",
			Name:      "notifications_dropped_total",
			Help:      "Notifications dropped because a stream client was slow",
		},
	)
)
