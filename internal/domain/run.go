package domain

import "time"

// RunStatus is the lifecycle state of one crawl run.
type RunStatus string

const (
	RunPending   RunStatus = "pending"
	RunRunning   RunStatus = "running"
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
)

// Terminal reports whether the status is an end state.
func (s RunStatus) Terminal() bool {
	return s == RunSucceeded || s == RunFailed
}

// CrawlRun records a single execution of a crawl job.
type CrawlRun struct {
	JobID       string     `json:"job_id"`
	Site        string     `json:"site"`
	Status      RunStatus  `json:"status"`
	StartTime   time.Time  `json:"start_time"`
	EndTime     *time.Time `json:"end_time,omitempty"`
	ItemsStored int        `json:"items_stored"`
	Error       string     `json:"error,omitempty"`
}

// Duration returns the run's elapsed time, zero while the run is still in
// flight.
func (r *CrawlRun) Duration() time.Duration {
	if r.EndTime == nil {
		return 0
	}
	return r.EndTime.Sub(r.StartTime)
}
