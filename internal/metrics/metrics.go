// Package metrics holds the Prometheus collectors for the moderation pipeline.
// They register with the default registry, which the daemon serves on /metrics.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "clipguard"

// Job outcomes.
const (
	OutcomeCompleted   = "completed"
	OutcomeRescheduled = "rescheduled"
	OutcomeAborted     = "aborted"
	OutcomeInterrupted = "interrupted"
)

var (
	jobsFinished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "workflow",
			Name:      "jobs_finished_total",
			Help:      "Job attempts by outcome",
		},
		[]string{"outcome", "error_kind"},
	)
	verdicts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "moderation",
			Name:      "verdicts_total",
			Help:      "Moderation verdicts applied, by result",
		},
		[]string{"verdict"},
	)
	stageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "workflow",
			Name:      "stage_duration_seconds",
			Help:      "Time spent in each job stage",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 90, 120, 180},
		},
		[]string{"stage"},
	)
	queueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "jobs",
			Help:      "Jobs currently in the queue, by status",
		},
		[]string{"status"},
	)
	eventFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "propagate",
			Name:      "side_effect_failures_total",
			Help:      "Best-effort side effects that failed after a verdict",
		},
		[]string{"target"},
	)
)

var registerOnce sync.Once

func init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(jobsFinished, verdicts, stageDuration, queueDepth, eventFailures)
	})
}

// JobFinished counts one finished job attempt.
func JobFinished(outcome, errorKind string) {
	jobsFinished.WithLabelValues(outcome, errorKind).Inc()
}

// VerdictApplied counts one applied verdict.
func VerdictApplied(flagged bool) {
	label := "clean"
	if flagged {
		label = "flagged"
	}
	verdicts.WithLabelValues(label).Inc()
}

// ObserveStage records how long a stage took.
func ObserveStage(stage string, elapsed time.Duration) {
	stageDuration.WithLabelValues(stage).Observe(elapsed.Seconds())
}

// SetQueueDepth publishes the per-status job counts.
func SetQueueDepth(counts map[string]int, statuses []string) {
	for _, status := range statuses {
		queueDepth.WithLabelValues(status).Set(float64(counts[status]))
	}
}

// SideEffectFailed counts a failed event publish or notification.
func SideEffectFailed(target string) {
	eventFailures.WithLabelValues(target).Inc()
}
