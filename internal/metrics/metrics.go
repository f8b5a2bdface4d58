// Package metrics holds the Prometheus collectors for the engine adapter.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics.
type Metrics struct {
	// Event monitor
	EngineEvents    prometheus.Counter
	FeedReconnects  prometheus.Counter
	FilesystemHints prometheus.Counter
	Refreshes       prometheus.Counter

	// Container cache
	Containers     prometheus.Gauge
	DetailFailures prometheus.Counter
	ListFailures   prometheus.Counter

	// Attach sessions
	AttachSessions prometheus.Gauge
	FramesDecoded  *prometheus.CounterVec
}

// New registers the collectors with reg. A nil reg registers nothing,
// which is what tests that don't inspect metrics want.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		EngineEvents: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "lighthouse",
			Subsystem: "events",
			Name:      "engine_events_total",
			Help:      "Events received from the engine event feed.",
		}),
		FeedReconnects: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "lighthouse",
			Subsystem: "events",
			Name:      "feed_reconnects_total",
			Help:      "Reconnect attempts of the engine event feed.",
		}),
		FilesystemHints: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "lighthouse",
			Subsystem: "events",
			Name:      "filesystem_hints_total",
			Help:      "Change notifications from the engine data directory watch.",
		}),
		Refreshes: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "lighthouse",
			Subsystem: "events",
			Name:      "refreshes_total",
			Help:      "Debounced refresh signals emitted.",
		}),
		Containers: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "lighthouse",
			Subsystem: "cache",
			Name:      "containers",
			Help:      "Containers in the current snapshot.",
		}),
		DetailFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "lighthouse",
			Subsystem: "cache",
			Name:      "detail_failures_total",
			Help:      "Failed per-container detail fetches.",
		}),
		ListFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "lighthouse",
			Subsystem: "cache",
			Name:      "list_failures_total",
			Help:      "Failed container list fetches.",
		}),
		AttachSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "lighthouse",
			Subsystem: "attach",
			Name:      "sessions",
			Help:      "Connected attach sessions.",
		}),
		FramesDecoded: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lighthouse",
			Subsystem: "attach",
			Name:      "frames_total",
			Help:      "Multiplexed frames decoded, by stream.",
		}, []string{"stream"}),
	}
}

// Discard returns unregistered collectors.
func Discard() *Metrics {
	return New(nil)
}
