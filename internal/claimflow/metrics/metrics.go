// Package metrics exposes Prometheus instrumentation for the claim
// pipeline. All collectors are registered on the default registry and
// served on /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	stageRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "claimflow",
		Name:      "stage_runs_total",
		Help:      "Pipeline stage executions by stage and outcome.",
	}, []string{"stage", "outcome"})

	stageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "claimflow",
		Name:      "stage_duration_seconds",
		Help:      "Pipeline stage execution latency.",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
	}, []string{"stage"})

	extractionAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "claimflow",
		Name:      "extraction_attempts_total",
		Help:      "Extraction strategy attempts by strategy and outcome.",
	}, []string{"strategy", "outcome"})

	claimsCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "claimflow",
		Name:      "claims_completed_total",
		Help:      "Claims that reached terminal success.",
	})

	claimsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "claimflow",
		Name:      "claims_failed_total",
		Help:      "Claims that reached the terminal FAILED state.",
	})

	ingestQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "claimflow",
		Name:      "ingest_queue_depth",
		Help:      "Tasks currently running in the ingest worker pool.",
	})
)

// ObserveStage records one stage execution.
func ObserveStage(stage string, d time.Duration, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	stageRuns.WithLabelValues(stage, outcome).Inc()
	stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// ObserveExtractionAttempt records one extraction strategy attempt. Wired
// into the extraction chain as its observer.
func ObserveExtractionAttempt(strategy string, _ time.Duration, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	extractionAttempts.WithLabelValues(strategy, outcome).Inc()
}

// ClaimCompleted counts a claim reaching terminal success.
func ClaimCompleted() {
	claimsCompleted.Inc()
}

// ClaimFailed counts a claim reaching the terminal FAILED state.
func ClaimFailed() {
	claimsFailed.Inc()
}

// SetIngestQueueDepth updates the worker pool gauge.
func SetIngestQueueDepth(n int) {
	ingestQueueDepth.Set(float64(n))
}
