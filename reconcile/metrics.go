package reconcile

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricRowsRead = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fleet_rows_read_total",
		Help: "Total source rows read across all input files.",
	})

	metricRowsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fleet_rows_dropped_total",
		Help: "Total rows dropped for missing driver and asset identity.",
	})

	metricEventsNormalized = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fleet_events_normalized_total",
		Help: "Total rows normalized into canonical events.",
	})

	metricDuplicatesRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fleet_duplicates_rejected_total",
		Help: "Total records rejected by the dedup engine, labelled by reason.",
	}, []string{"reason"})

	metricParseFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fleet_time_parse_failures_total",
		Help: "Total time values that existed but could not be parsed.",
	})

	metricRunsCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fleet_runs_completed_total",
		Help: "Total pipeline runs, labelled by outcome.",
	}, []string{"status"})

	metricRunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "fleet_run_duration_seconds",
		Help:    "End-to-end duration of one pipeline run.",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	})
)
