package workflow

import (
	"context"

	"clipguard/internal/logging"
	"clipguard/internal/metrics"
	"clipguard/internal/queue"
)

// StatusSummary represents lightweight workflow diagnostics.
type StatusSummary struct {
	Running    bool
	Workers    int
	LastError  string
	LastJob    *queue.Job
	QueueStats map[queue.Status]int
	Health     queue.HealthSummary
}

// Status returns the latest workflow information and refreshes the queue
// depth gauges.
func (m *Manager) Status(ctx context.Context) StatusSummary {
	m.mu.RLock()
	running := m.running
	lastErr := m.lastErr
	lastJob := m.lastJob
	m.mu.RUnlock()

	summary := StatusSummary{Running: running, Workers: m.workers}
	health, err := m.store.Health(ctx)
	if err != nil {
		m.logger.Warn("failed to read queue stats", logging.Error(err))
	} else {
		summary.Health = health
		summary.QueueStats = map[queue.Status]int{
			queue.StatusQueued:    health.Queued,
			queue.StatusRunning:   health.Running,
			queue.StatusCompleted: health.Completed,
			queue.StatusAborted:   health.Aborted,
		}
		counts := make(map[string]int, len(summary.QueueStats))
		statuses := make([]string, 0, len(summary.QueueStats))
		for _, status := range queue.AllStatuses() {
			counts[string(status)] = summary.QueueStats[status]
			statuses = append(statuses, string(status))
		}
		metrics.SetQueueDepth(counts, statuses)
	}

	if lastErr != nil {
		summary.LastError = lastErr.Error()
	}
	if lastJob != nil {
		copy := *lastJob
		summary.LastJob = &copy
	}
	return summary
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

func (m *Manager) setLastJob(job *queue.Job) {
	m.mu.Lock()
	if job != nil {
		copy := *job
		m.lastJob = &copy
	} else {
		m.lastJob = nil
	}
	m.mu.Unlock()
}
