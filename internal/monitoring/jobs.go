package monitoring

import (
	"sort"
	"sync"
	"time"
)

// JobStatus summarises the run history of one background job.
type JobStatus struct {
	Job                 string    `json:"job"`
	TotalRuns           uint64    `json:"total_runs"`
	ConsecutiveFailures uint64    `json:"consecutive_failures"`
	LastRunAt           time.Time `json:"last_run_at"`
	LastError           string    `json:"last_error,omitempty"`
}

// JobTracker records background job outcomes. The zero value is ready to use.
type JobTracker struct {
	mu   sync.Mutex
	jobs map[string]*JobStatus
}

// Register makes a job visible before its first run.
func (t *JobTracker) Register(job string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entry(job)
}

// Record stores the outcome of a run finished at.
func (t *JobTracker) Record(job string, at time.Time, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	status := t.entry(job)
	status.TotalRuns++
	status.LastRunAt = at
	if err != nil {
		status.ConsecutiveFailures++
		status.LastError = err.Error()
		return
	}
	status.ConsecutiveFailures = 0
	status.LastError = ""
}

// Jobs returns a snapshot ordered by job name.
func (t *JobTracker) Jobs() []JobStatus {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]JobStatus, 0, len(t.jobs))
	for _, status := range t.jobs {
		out = append(out, *status)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Job < out[j].Job })
	return out
}

func (t *JobTracker) entry(job string) *JobStatus {
	if t.jobs == nil {
		t.jobs = make(map[string]*JobStatus)
	}
	status, ok := t.jobs[job]
	if !ok {
		status = &JobStatus{Job: job}
		t.jobs[job] = status
	}
	return status
}
