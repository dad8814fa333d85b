package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ReadingsIngested counts meter readings accepted from the broker.
	ReadingsIngested = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "meter_readings_ingested_total",
			Help: "Total number of meter readings ingested",
		},
	)

	// ReadingsRejected counts messages dropped before detection.
	ReadingsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meter_readings_rejected_total",
			Help: "Total number of ingested messages rejected",
		},
		[]string{"reason"},
	)

	// GuardTriggers counts guard evaluations that requested an alert.
	GuardTriggers = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leak_guard_triggers_total",
			Help: "Total number of guard triggers by guard and severity",
		},
		[]string{"trigger", "severity"},
	)

	// AlertsCreated counts alerts actually persisted (after dedup).
	AlertsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leak_alerts_created_total",
			Help: "Total number of leak alerts created",
		},
		[]string{"trigger"},
	)

	// AlertsDeduplicated counts triggers suppressed by an ACTIVE alert.
	AlertsDeduplicated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "leak_alerts_deduplicated_total",
			Help: "Total number of guard triggers deduplicated against active alerts",
		},
	)

	// DetectionDuration times one detector evaluation.
	DetectionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "leak_detection_duration_seconds",
			Help:    "Guard evaluation duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
	)

	// ReconciliationDuration times one reconciliation run.
	ReconciliationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "reconciliation_duration_seconds",
			Help:    "Reconciliation report computation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)
)
