// Package metrics provides Prometheus metrics collection for EdgeGuard.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector holds all Prometheus metrics for EdgeGuard.
type Collector struct {
	// Decision metrics
	DecisionsTotal   *prometheus.CounterVec
	DecisionDuration *prometheus.HistogramVec
	RejectionsTotal  *prometheus.CounterVec

	// Budget metrics
	BudgetUsedFraction *prometheus.GaugeVec
	BudgetSpentCents   *prometheus.CounterVec

	// Store metrics
	StoreErrors *prometheus.CounterVec

	// Telemetry metrics
	UsageRecorded  prometheus.Counter
	UsageDropped   prometheus.Counter
	UsageQueueSize prometheus.Gauge

	// Config metrics
	ConfigReloads      prometheus.Counter
	ConfigReloadErrors prometheus.Counter
}

// New creates a new metrics collector with all metrics registered.
func New() *Collector {
	return &Collector{
		DecisionsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "edgeguard",
				Name:      "decisions_total",
				Help:      "Total guard decisions by endpoint, mode and tier",
			},
			[]string{"endpoint", "mode", "tier"},
		),
		DecisionDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "edgeguard",
				Name:      "decision_duration_seconds",
				Help:      "Guard decision latency in seconds",
				Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25},
			},
			[]string{"endpoint"},
		),
		RejectionsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "edgeguard",
				Name:      "rejections_total",
				Help:      "Total rejected requests by reason",
			},
			[]string{"reason", "tier"},
		),
		BudgetUsedFraction: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "edgeguard",
				Name:      "budget_used_fraction",
				Help:      "Observed spend fraction of the daily budget per priority class",
			},
			[]string{"class"},
		),
		BudgetSpentCents: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "edgeguard",
				Name:      "budget_spent_cents_total",
				Help:      "Estimated cents committed against the daily budget per class",
			},
			[]string{"class"},
		),
		StoreErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "edgeguard",
				Name:      "store_errors_total",
				Help:      "Counter store I/O failures by operation (fail-open)",
			},
			[]string{"op"},
		),
		UsageRecorded: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: "edgeguard",
				Name:      "usage_entries_recorded_total",
				Help:      "Usage telemetry entries accepted for recording",
			},
		),
		UsageDropped: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: "edgeguard",
				Name:      "usage_entries_dropped_total",
				Help:      "Usage telemetry entries dropped (full buffer or write failure)",
			},
		),
		UsageQueueSize: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "edgeguard",
				Name:      "usage_queue_size",
				Help:      "Buffered usage entries awaiting flush",
			},
		),
		ConfigReloads: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: "edgeguard",
				Name:      "config_reloads_total",
				Help:      "Successful configuration reloads",
			},
		),
		ConfigReloadErrors: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: "edgeguard",
				Name:      "config_reload_errors_total",
				Help:      "Failed configuration reload attempts",
			},
		),
	}
}
