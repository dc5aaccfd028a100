package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// gathered returns the value of the sample in family name whose labels match.
func gathered(t *testing.T, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
	metrics:
		for _, metric := range family.GetMetric() {
			for _, pair := range metric.GetLabel() {
				if want, ok := labels[pair.GetName()]; ok && want != pair.GetValue() {
					continue metrics
				}
			}
			if counter := metric.GetCounter(); counter != nil {
				return counter.GetValue()
			}
			if gauge := metric.GetGauge(); gauge != nil {
				return gauge.GetValue()
			}
		}
	}
	return 0
}

func TestCountersIncrement(t *testing.T) {
	before := gathered(t, "clipguard_moderation_verdicts_total", map[string]string{"verdict": "flagged"})
	VerdictApplied(true)
	if got := gathered(t, "clipguard_moderation_verdicts_total", map[string]string{"verdict": "flagged"}); got != before+1 {
		t.Fatalf("expected flagged verdicts %v, got %v", before+1, got)
	}

	JobFinished(OutcomeAborted, "upstream_timeout")
	labels := map[string]string{"outcome": OutcomeAborted, "error_kind": "upstream_timeout"}
	if got := gathered(t, "clipguard_workflow_jobs_finished_total", labels); got < 1 {
		t.Fatalf("expected aborted counter to be incremented, got %v", got)
	}
}

func TestSetQueueDepthZeroesMissingStatuses(t *testing.T) {
	SetQueueDepth(map[string]int{"queued": 3}, []string{"queued", "running"})
	if got := gathered(t, "clipguard_queue_jobs", map[string]string{"status": "queued"}); got != 3 {
		t.Fatalf("expected 3 queued, got %v", got)
	}
	if got := gathered(t, "clipguard_queue_jobs", map[string]string{"status": "running"}); got != 0 {
		t.Fatalf("expected 0 running, got %v", got)
	}
	ObserveStage("readiness", 2*time.Second)
}
