// Package scheduler dispatches crawl jobs. Cron jobs fire on 5-field
// expressions evaluated in UTC, interval jobs on a fixed period, and date
// jobs once. Each run is recorded in a bounded per-site history that the
// management API reads.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/leobrain/crawler/internal/domain"
	"github.com/leobrain/crawler/internal/logger"
)

// manualIDTimeFormat timestamps manual job ids: manual_crawl_<site>_<ts>.
const manualIDTimeFormat = "20060102150405"

// CrawlFunc runs one crawl for site and reports how many items it stored.
type CrawlFunc func(ctx context.Context, site string) (int, error)

// SiteChecker reports whether a site is configured.
type SiteChecker interface {
	Has(name string) bool
}

// Recorder tracks running job counts. Implementations must accept
// concurrent calls.
type Recorder interface {
	JobStarted()
	JobFinished()
}

// Scheduler owns the process's job table. One Scheduler is created at
// startup and handed to the management API; there is no package-level
// instance.
type Scheduler struct {
	crawl   CrawlFunc
	sites   SiteChecker
	log     logger.Interface
	metrics Recorder

	cron   *cron.Cron
	parser cron.Parser

	mu      sync.Mutex
	jobs    map[string]*job
	running map[string]string // job id -> site
	history map[string][]*domain.CrawlRun
	started bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a stopped scheduler. metrics may be nil.
func New(crawl CrawlFunc, sites SiteChecker, log logger.Interface, metrics Recorder) *Scheduler {
	if log == nil {
		log = logger.NewNoOp()
	}
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		crawl:   crawl,
		sites:   sites,
		log:     log,
		metrics: metrics,
		cron: cron.New(
			cron.WithParser(parser),
			cron.WithChain(cron.Recover(cron.DefaultLogger)),
			cron.WithLocation(time.UTC),
		),
		parser:  parser,
		jobs:    make(map[string]*job),
		running: make(map[string]string),
		history: make(map[string][]*domain.CrawlRun),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start begins firing triggers. Jobs registered before Start are armed here.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return errors.New("scheduler already started")
	}
	s.started = true
	for _, j := range s.jobs {
		if j.stop != nil && !j.launched {
			s.launchLocked(j)
		}
	}
	jobCount := len(s.jobs)
	s.mu.Unlock()

	s.cron.Start()
	s.log.Info("Scheduler started", "jobs", jobCount)
	return nil
}

// Shutdown stops firing new runs and waits for running jobs to finish.
// When ctx expires first, running jobs are cancelled and the context error
// is returned.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = false
	for _, j := range s.jobs {
		s.detachLocked(j)
	}
	s.mu.Unlock()

	s.log.Info("Scheduler stopping")
	cronCtx := s.cron.Stop()
	<-cronCtx.Done()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.cancel()
		s.log.Info("Scheduler stopped")
		return nil
	case <-ctx.Done():
		s.cancel()
		s.log.Warn("Scheduler shutdown abandoned running jobs", "error", ctx.Err())
		return fmt.Errorf("scheduler shutdown: %w", ctx.Err())
	}
}

// AddJob registers a job. Cron expressions are validated here, so a typo in
// a site's schedule surfaces at startup rather than at first fire.
func (s *Scheduler) AddJob(spec JobSpec) error {
	if spec.ID == "" {
		return errors.New("job id is required")
	}

	run := spec.Run
	if run == nil {
		if spec.Site == "" {
			return fmt.Errorf("job %q has no function and no site to crawl", spec.ID)
		}
		site := spec.Site
		run = func(ctx context.Context) (int, error) {
			return s.crawl(ctx, site)
		}
	}

	switch spec.Trigger {
	case TriggerCron:
		if _, parseErr := s.parser.Parse(spec.Cron); parseErr != nil {
			return fmt.Errorf("%w: %q: %v", ErrInvalidCron, spec.Cron, parseErr)
		}
	case TriggerInterval:
		if spec.Interval <= 0 {
			return fmt.Errorf("job %q: interval must be positive", spec.ID)
		}
	case TriggerDate:
		if spec.RunAt.IsZero() {
			return fmt.Errorf("job %q: date trigger needs a run time", spec.ID)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownTrigger, spec.Trigger)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.jobs[spec.ID]; ok {
		if !spec.ReplaceExisting {
			return fmt.Errorf("%w: %q", ErrJobExists, spec.ID)
		}
		s.detachLocked(existing)
	}

	j := &job{spec: spec, run: run}
	switch spec.Trigger {
	case TriggerCron:
		entryID, addErr := s.cron.AddFunc(spec.Cron, func() { s.fire(j) })
		if addErr != nil {
			return fmt.Errorf("failed to add cron job %q: %w", spec.ID, addErr)
		}
		j.entryID = entryID
	case TriggerInterval:
		j.next = time.Now().UTC().Add(spec.Interval)
		j.stop = make(chan struct{})
		if s.started {
			s.launchLocked(j)
		}
	case TriggerDate:
		j.stop = make(chan struct{})
		if s.started {
			s.launchLocked(j)
		}
	}

	s.jobs[spec.ID] = j
	s.log.Info("Job registered",
		"job_id", spec.ID,
		"trigger", spec.Trigger,
		"schedule", j.schedule())
	return nil
}

// RemoveJob unregisters a job. A run already in flight finishes.
func (s *Scheduler) RemoveJob(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		return fmt.Errorf("%w: %q", ErrJobNotFound, id)
	}
	s.detachLocked(j)
	delete(s.jobs, id)
	s.log.Info("Job removed", "job_id", id)
	return nil
}

// TriggerManualCrawl registers a one-shot job that crawls site immediately.
func (s *Scheduler) TriggerManualCrawl(site string) (string, error) {
	s.mu.Lock()
	started := s.started
	siteRunning := s.siteRunningLocked(site)
	s.mu.Unlock()

	if !started {
		return "", ErrNotStarted
	}
	if !s.sites.Has(site) {
		return "", fmt.Errorf("%w: %q", ErrSiteNotFound, site)
	}
	if siteRunning {
		return "", fmt.Errorf("%w: %q", ErrAlreadyRunning, site)
	}

	now := time.Now().UTC()
	jobID := fmt.Sprintf("manual_crawl_%s_%s", site, now.Format(manualIDTimeFormat))
	spec := JobSpec{
		ID:      jobID,
		Name:    "Manual crawl of " + site,
		Site:    site,
		Trigger: TriggerDate,
		RunAt:   now,
	}
	if addErr := s.AddJob(spec); addErr != nil {
		return "", fmt.Errorf("failed to register manual crawl: %w", addErr)
	}

	s.log.Info("Manual crawl triggered", "site", site, "job_id", jobID)
	return jobID, nil
}

// detachLocked stops the job's trigger. Callers hold s.mu.
func (s *Scheduler) detachLocked(j *job) {
	switch j.spec.Trigger {
	case TriggerCron:
		s.cron.Remove(j.entryID)
	case TriggerInterval, TriggerDate:
		if j.launched {
			close(j.stop)
			j.launched = false
			// A replacement needs a fresh channel if it is relaunched.
			j.stop = make(chan struct{})
		}
	}
}

// launchLocked starts the trigger goroutine for interval and date jobs.
// Callers hold s.mu and have checked started.
func (s *Scheduler) launchLocked(j *job) {
	j.launched = true
	s.wg.Add(1)
	switch j.spec.Trigger {
	case TriggerInterval:
		j.next = time.Now().UTC().Add(j.spec.Interval)
		go s.tickInterval(j, j.stop)
	case TriggerDate:
		go s.awaitDate(j, j.stop)
	}
}

func (s *Scheduler) tickInterval(j *job, stop chan struct{}) {
	defer s.wg.Done()

	ticker := time.NewTicker(j.spec.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			s.mu.Lock()
			j.next = time.Now().UTC().Add(j.spec.Interval)
			s.mu.Unlock()
			s.fire(j)
		}
	}
}

func (s *Scheduler) awaitDate(j *job, stop chan struct{}) {
	defer s.wg.Done()

	delay := time.Until(j.spec.RunAt)
	if delay < 0 {
		delay = 0
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-s.ctx.Done():
	case <-stop:
	case <-timer.C:
		s.fire(j)
	}
}

// fire launches one run of j unless the scheduler has stopped.
func (s *Scheduler) fire(j *job) {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		s.runJob(j)
	}()
}

// runJob executes one run of j, guarding against overlap on the same job id
// and recording the run's state transitions in the site history.
func (s *Scheduler) runJob(j *job) {
	id := j.spec.ID
	site := j.spec.Site

	run := &domain.CrawlRun{
		JobID:     id,
		Site:      site,
		Status:    domain.RunPending,
		StartTime: time.Now().UTC(),
	}

	s.mu.Lock()
	if _, active := s.running[id]; active {
		s.mu.Unlock()
		s.log.Warn("Job fire skipped, previous run still active", "job_id", id)
		return
	}
	s.running[id] = site
	s.history[site] = appendBounded(s.history[site], run, historyLimit)
	run.Status = domain.RunRunning
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.JobStarted()
	}
	s.log.Info("Job started", "job_id", id, "site", site)

	stored, runErr := j.run(s.ctx)

	end := time.Now().UTC()
	s.mu.Lock()
	delete(s.running, id)
	run.EndTime = &end
	run.ItemsStored = stored
	if runErr != nil {
		run.Status = domain.RunFailed
		run.Error = runErr.Error()
	} else {
		run.Status = domain.RunSucceeded
	}
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.JobFinished()
	}

	if runErr != nil {
		s.log.Error("Job failed",
			"job_id", id,
			"site", site,
			"duration", end.Sub(run.StartTime),
			"error", runErr)
	} else {
		s.log.Info("Job finished",
			"job_id", id,
			"site", site,
			"stored", stored,
			"duration", end.Sub(run.StartTime))
	}

	// One-shots are done for good; drop them from the table.
	if j.spec.Trigger == TriggerDate {
		s.mu.Lock()
		if current, ok := s.jobs[id]; ok && current == j {
			delete(s.jobs, id)
		}
		s.mu.Unlock()
	}
}
