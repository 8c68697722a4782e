// Package metrics holds the Prometheus collectors shared by the tracker, feed and notifiers.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "paceoracle"

var (
	// Tracker
	TicksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "tracker",
		Name:      "ticks_total",
		Help:      "Total tracker ticks",
	})

	TickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "tracker",
		Name:      "tick_duration_seconds",
		Help:      "Tracker tick processing duration",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	})

	GamesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "tracker",
		Name:      "games_processed_total",
		Help:      "Per-game tick results by outcome",
	}, []string{"outcome"})

	TrackedGames = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "tracker",
		Name:      "tracked_games",
		Help:      "Games currently occupying a tracking slot",
	})

	AlertsEmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "tracker",
		Name:      "alerts_emitted_total",
		Help:      "Alert descriptors produced by the engine",
	}, []string{"kind"})

	StoreErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "store",
		Name:      "errors_total",
		Help:      "State store failures by operation",
	}, []string{"op"})

	// Feed
	FeedRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "feed",
		Name:      "requests_total",
		Help:      "Upstream feed requests by endpoint and result",
	}, []string{"endpoint", "result"})

	FeedLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "feed",
		Name:      "request_duration_seconds",
		Help:      "Upstream feed request duration",
		Buckets:   prometheus.DefBuckets,
	}, []string{"endpoint"})

	// Notifications
	AlertsDelivered = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "notify",
		Name:      "deliveries_total",
		Help:      "Alert deliveries by channel and status",
	}, []string{"channel", "status"})
)
