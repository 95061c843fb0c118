package scheduler

import "errors"

var (
	// ErrNotStarted indicates a trigger arrived before Start.
	ErrNotStarted = errors.New("scheduler not started")

	// ErrJobNotFound indicates the job id is not registered.
	ErrJobNotFound = errors.New("job not found")

	// ErrJobExists indicates the job id is taken and ReplaceExisting was
	// not set.
	ErrJobExists = errors.New("job already exists")

	// ErrAlreadyRunning indicates the site has a crawl in flight.
	ErrAlreadyRunning = errors.New("crawl already running")

	// ErrSiteNotFound indicates the site is not configured.
	ErrSiteNotFound = errors.New("site not found")

	// ErrUnknownTrigger indicates a JobSpec named a trigger kind the
	// scheduler does not implement.
	ErrUnknownTrigger = errors.New("unknown trigger")

	// ErrInvalidCron indicates the cron expression did not parse.
	ErrInvalidCron = errors.New("invalid cron expression")
)
