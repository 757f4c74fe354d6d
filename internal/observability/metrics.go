package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels, one per response category of an invocation.
const (
	OutcomeSuccess         = "success"
	OutcomeValidationError = "validation_error"
	OutcomeAttachError     = "attach_error"
	OutcomeQueryError      = "query_error"
	OutcomeUnexpectedError = "unexpected_error"
)

var (
	invocationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tablequery_invocations_total",
			Help: "Total number of handler invocations by outcome.",
		},
		[]string{"outcome"},
	)

	invocationDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tablequery_invocation_duration_seconds",
			Help:    "End-to-end handler latency by outcome.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"outcome"},
	)

	setupDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tablequery_setup_duration_seconds",
			Help:    "Engine session setup latency (extensions and credentials).",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)

	resultRows = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tablequery_result_rows",
			Help:    "Number of rows materialized per successful query.",
			Buckets: []float64{0, 1, 10, 100, 1000, 10000, 100000, 1000000},
		},
	)

	offloadedResultsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tablequery_offloaded_results_total",
			Help: "Total number of result payloads written to the object store instead of returned inline.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		invocationsTotal,
		invocationDurationSeconds,
		setupDurationSeconds,
		resultRows,
		offloadedResultsTotal,
	)
}

func ObserveInvocation(outcome string, elapsed time.Duration) {
	invocationsTotal.WithLabelValues(outcome).Inc()
	invocationDurationSeconds.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

func ObserveSetup(elapsed time.Duration) {
	setupDurationSeconds.Observe(elapsed.Seconds())
}

func ObserveResultRows(rows int) {
	if rows < 0 {
		rows = 0
	}
	resultRows.Observe(float64(rows))
}

func IncrementOffloadedResults() {
	offloadedResultsTotal.Inc()
}
