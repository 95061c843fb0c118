package scheduler

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/leobrain/crawler/internal/domain"
)

// Trigger kinds accepted by AddJob.
const (
	// TriggerCron fires on a 5-field cron expression, evaluated in UTC.
	TriggerCron = "cron"
	// TriggerInterval fires every Interval.
	TriggerInterval = "interval"
	// TriggerDate fires once at RunAt and the job is removed afterwards.
	TriggerDate = "date"
)

// historyLimit bounds the run records kept per site.
const historyLimit = 50

// CrawlJobID returns the id of a site's scheduled crawl job.
func CrawlJobID(site string) string {
	return "crawl_" + site
}

// JobSpec describes one job to register.
type JobSpec struct {
	// ID identifies the job; crawl jobs use "crawl_<site>".
	ID string
	// Name is a human-readable label for listings.
	Name string
	// Site is the site the job crawls; run records carry it.
	Site string
	// Trigger selects the firing rule.
	Trigger string
	// Cron is the 5-field expression for TriggerCron.
	Cron string
	// Interval is the period for TriggerInterval.
	Interval time.Duration
	// RunAt is the one-shot fire time for TriggerDate.
	RunAt time.Time
	// ReplaceExisting replaces a registered job with the same ID instead
	// of failing.
	ReplaceExisting bool
	// Run is the job body. When nil, the job crawls Site through the
	// scheduler's crawl function.
	Run func(ctx context.Context) (int, error)
}

// Job is a read-only view of one registered job.
type Job struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Site      string    `json:"site,omitempty"`
	Trigger   string    `json:"trigger"`
	Schedule  string    `json:"schedule,omitempty"`
	NextRun   time.Time `json:"next_run_time"`
	IsRunning bool      `json:"is_running"`
}

// job is the scheduler's mutable record of one registered job.
type job struct {
	spec JobSpec
	run  func(ctx context.Context) (int, error)

	// entryID is set for cron-triggered jobs.
	entryID cron.EntryID
	// stop tears down the interval or date trigger goroutine.
	stop chan struct{}
	// launched guards against starting the trigger goroutine twice.
	launched bool
	// next is the upcoming fire time for interval jobs.
	next time.Time
}

// schedule renders the trigger in a human-readable form for listings.
func (j *job) schedule() string {
	switch j.spec.Trigger {
	case TriggerCron:
		return j.spec.Cron
	case TriggerInterval:
		return fmt.Sprintf("every %s", j.spec.Interval)
	case TriggerDate:
		return j.spec.RunAt.UTC().Format(time.RFC3339)
	}
	return ""
}

// Jobs returns every registered job sorted by id.
func (s *Scheduler) Jobs() []Job {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, s.viewLocked(j))
	}
	sort.Slice(out, func(a, b int) bool { return out[a].ID < out[b].ID })
	return out
}

// GetJob returns the job registered under id.
func (s *Scheduler) GetJob(id string) (Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		return Job{}, fmt.Errorf("%w: %q", ErrJobNotFound, id)
	}
	return s.viewLocked(j), nil
}

func (s *Scheduler) viewLocked(j *job) Job {
	_, running := s.running[j.spec.ID]
	return Job{
		ID:        j.spec.ID,
		Name:      j.spec.Name,
		Site:      j.spec.Site,
		Trigger:   j.spec.Trigger,
		Schedule:  j.schedule(),
		NextRun:   s.nextRunLocked(j),
		IsRunning: running,
	}
}

func (s *Scheduler) nextRunLocked(j *job) time.Time {
	switch j.spec.Trigger {
	case TriggerCron:
		return s.cron.Entry(j.entryID).Next
	case TriggerInterval:
		return j.next
	case TriggerDate:
		return j.spec.RunAt
	}
	return time.Time{}
}

// IsRunning reports whether the job's function is executing right now.
func (s *Scheduler) IsRunning(jobID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.running[jobID]
	return ok
}

// IsSiteRunning reports whether any job for site, scheduled or manual, is
// executing right now.
func (s *Scheduler) IsSiteRunning(site string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.siteRunningLocked(site)
}

func (s *Scheduler) siteRunningLocked(site string) bool {
	for _, runningSite := range s.running {
		if runningSite == site {
			return true
		}
	}
	return false
}

// SiteRuns returns up to n of the site's most recent runs, newest first.
func (s *Scheduler) SiteRuns(site string, n int) []domain.CrawlRun {
	if n <= 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	runs := s.history[site]
	out := make([]domain.CrawlRun, 0, min(n, len(runs)))
	for i := len(runs) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, *runs[i])
	}
	return out
}

// LatestSiteRun returns the site's most recent run, if any.
func (s *Scheduler) LatestSiteRun(site string) (domain.CrawlRun, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	runs := s.history[site]
	if len(runs) == 0 {
		return domain.CrawlRun{}, false
	}
	return *runs[len(runs)-1], true
}

// JobRuns returns up to n runs recorded for jobID, newest first. Records
// older than the per-site history bound are gone.
func (s *Scheduler) JobRuns(jobID string, n int) []domain.CrawlRun {
	if n <= 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.CrawlRun
	for _, runs := range s.history {
		for i := len(runs) - 1; i >= 0; i-- {
			if runs[i].JobID == jobID {
				out = append(out, *runs[i])
			}
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].StartTime.After(out[b].StartTime) })
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// appendBounded appends run and drops the oldest records past limit.
func appendBounded(runs []*domain.CrawlRun, run *domain.CrawlRun, limit int) []*domain.CrawlRun {
	runs = append(runs, run)
	if len(runs) > limit {
		runs = runs[len(runs)-limit:]
	}
	return runs
}
