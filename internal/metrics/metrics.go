package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Report sweep metrics
	TemplatesEvaluated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "insight_templates_evaluated_total",
			Help: "Total number of report templates checked for dueness",
		},
	)

	ReportsGenerated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "insight_reports_generated_total",
			Help: "Total number of reports generated successfully",
		},
	)

	GenerationFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "insight_generation_failures_total",
			Help: "Total number of failed report generations",
		},
	)

	GenerationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "insight_generation_duration_seconds",
			Help:    "Time taken to generate a report",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
		},
	)

	// Alert sweep metrics
	RulesEvaluated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "insight_rules_evaluated_total",
			Help: "Total number of alert rule evaluations",
		},
	)

	AlertsFired = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "insight_alerts_fired_total",
			Help: "Total number of admitted alert firings",
		},
		[]string{"severity"},
	)

	AlertsSuppressed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "insight_alerts_suppressed_total",
			Help: "Total number of triggered alerts denied by the frequency limiter",
		},
	)

	// Delivery metrics
	DeliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "insight_deliveries_total",
			Help: "Total number of notification delivery attempts",
		},
		[]string{"channel", "status"}, // status: success, failure
	)

	// Scheduler metrics
	TickDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "insight_tick_duration_seconds",
			Help:    "Time taken by one scheduler tick",
			Buckets: []float64{.01, .05, .1, .5, 1, 5, 15, 30, 60},
		},
	)

	TicksSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "insight_ticks_skipped_total",
			Help: "Total number of ticks skipped because the config store was unreachable",
		},
	)
)
