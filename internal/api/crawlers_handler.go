package api

import (
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/leobrain/crawler/internal/domain"
	"github.com/leobrain/crawler/internal/logger"
	"github.com/leobrain/crawler/internal/scheduler"
	"github.com/leobrain/crawler/internal/sources"
)

// SchedulerController is the scheduler surface the crawler and job
// handlers consume.
type SchedulerController interface {
	Jobs() []scheduler.Job
	GetJob(id string) (scheduler.Job, error)
	JobRuns(jobID string, n int) []domain.CrawlRun
	IsSiteRunning(site string) bool
	SiteRuns(site string, n int) []domain.CrawlRun
	LatestSiteRun(site string) (domain.CrawlRun, bool)
	TriggerManualCrawl(site string) (string, error)
}

// SiteRegistry is the sources surface the crawler handlers consume.
type SiteRegistry interface {
	Names() []string
	Get(name string) (sources.SiteConfig, error)
}

// defaultRecentRuns is how many run records detail views include.
const defaultRecentRuns = 10

// CrawlersHandler serves the site listing and crawl trigger routes.
type CrawlersHandler struct {
	scheduler SchedulerController
	sites     SiteRegistry
	log       logger.Interface
}

// NewCrawlersHandler creates a CrawlersHandler. The logger may be nil.
func NewCrawlersHandler(sched SchedulerController, sites SiteRegistry, log logger.Interface) *CrawlersHandler {
	if log == nil {
		log = logger.NewNoOp()
	}
	return &CrawlersHandler{scheduler: sched, sites: sites, log: log}
}

// siteConfigJSON is the response shape of one site's configuration, keyed
// like the sites file.
type siteConfigJSON struct {
	Spider           string            `json:"spider"`
	SourceName       string            `json:"source_name"`
	FeedURL          string            `json:"feed_url,omitempty"`
	Cron             string            `json:"cron,omitempty"`
	QPS              float64           `json:"qps"`
	Concurrency      int               `json:"concurrency"`
	MaxItems         int               `json:"max_items"`
	FetchFullContent bool              `json:"fetch_full_content"`
	Headers          map[string]string `json:"headers,omitempty"`
	UseRender        bool              `json:"use_render"`
	DelaySeconds     float64           `json:"delay_seconds"`
	Jitter           bool              `json:"jitter"`
}

func siteConfigView(cfg sources.SiteConfig) siteConfigJSON {
	return siteConfigJSON{
		Spider:           cfg.Spider,
		SourceName:       cfg.SourceName,
		FeedURL:          cfg.FeedURL,
		Cron:             cfg.Cron,
		QPS:              cfg.QPS,
		Concurrency:      cfg.Concurrency,
		MaxItems:         cfg.MaxItems,
		FetchFullContent: cfg.FetchFullContent,
		Headers:          cfg.Headers,
		UseRender:        cfg.UseRender,
		DelaySeconds:     cfg.Delay.Seconds(),
		Jitter:           cfg.Jitter,
	}
}

// ListSites returns every configured site with its schedule state.
func (h *CrawlersHandler) ListSites(c *gin.Context) {
	names := h.sites.Names()
	sitesInfo := make(gin.H, len(names))
	for _, name := range names {
		cfg, err := h.sites.Get(name)
		if err != nil {
			continue
		}
		sitesInfo[name] = gin.H{
			"config":        siteConfigView(cfg),
			"is_running":    h.scheduler.IsSiteRunning(name),
			"latest_run":    h.latestRun(name),
			"next_run_time": h.nextRunTime(name),
		}
	}
	c.JSON(http.StatusOK, gin.H{"sites": names, "sites_info": sitesInfo})
}

// GetSite returns one site's configuration and recent run history.
func (h *CrawlersHandler) GetSite(c *gin.Context) {
	name := c.Param("name")
	cfg, err := h.sites.Get(name)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("site %s not found", name)})
		return
	}

	runs := h.scheduler.SiteRuns(name, defaultRecentRuns)
	if runs == nil {
		runs = []domain.CrawlRun{}
	}
	c.JSON(http.StatusOK, gin.H{
		"site":          name,
		"config":        siteConfigView(cfg),
		"is_running":    h.scheduler.IsSiteRunning(name),
		"next_run_time": h.nextRunTime(name),
		"recent_runs":   runs,
	})
}

// GetSiteStatus reports whether the site's crawl is running right now.
func (h *CrawlersHandler) GetSiteStatus(c *gin.Context) {
	name := c.Param("name")
	if _, err := h.sites.Get(name); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("site %s not found", name)})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"site":          name,
		"job_id":        scheduler.CrawlJobID(name),
		"is_running":    h.scheduler.IsSiteRunning(name),
		"latest_run":    h.latestRun(name),
		"next_run_time": h.nextRunTime(name),
	})
}

// TriggerCrawl starts a one-shot crawl of the named site.
func (h *CrawlersHandler) TriggerCrawl(c *gin.Context) {
	name := c.Param("name")
	jobID, err := h.scheduler.TriggerManualCrawl(name)
	if err != nil {
		h.crawlError(c, name, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"message": fmt.Sprintf("Crawl task started for %s", name),
		"site":    name,
		"job_id":  jobID,
	})
}

// batchCrawlRequest selects which sites to trigger. An empty sites list
// means every configured site.
type batchCrawlRequest struct {
	Sites    []string `json:"sites"`
	Parallel bool     `json:"parallel"`
}

// TriggerBatchCrawl starts one-shot crawls for several sites and reports
// the outcome per site.
func (h *CrawlersHandler) TriggerBatchCrawl(c *gin.Context) {
	var req batchCrawlRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload"})
			return
		}
	}

	names := req.Sites
	if len(names) == 0 {
		names = h.sites.Names()
	}

	results := make(map[string]gin.H, len(names))
	if req.Parallel {
		var (
			mu sync.Mutex
			wg sync.WaitGroup
		)
		for _, site := range names {
			wg.Add(1)
			go func(site string) {
				defer wg.Done()
				result := h.triggerOne(site)
				mu.Lock()
				results[site] = result
				mu.Unlock()
			}(site)
		}
		wg.Wait()
	} else {
		for _, site := range names {
			results[site] = h.triggerOne(site)
		}
	}

	c.JSON(http.StatusOK, gin.H{"results": results})
}

// triggerOne fires one site's manual crawl and reports the outcome in the
// per-site result shape.
func (h *CrawlersHandler) triggerOne(site string) gin.H {
	jobID, err := h.scheduler.TriggerManualCrawl(site)
	if err != nil {
		return gin.H{"status": "error", "detail": err.Error()}
	}
	return gin.H{"status": "triggered", "job_id": jobID}
}

// crawlError maps a trigger failure onto its HTTP status.
func (h *CrawlersHandler) crawlError(c *gin.Context, site string, err error) {
	switch {
	case errors.Is(err, scheduler.ErrSiteNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, scheduler.ErrAlreadyRunning):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, scheduler.ErrNotStarted):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		h.log.Error("Manual crawl trigger failed", "site", site, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to trigger crawl"})
	}
}

// latestRun returns the site's most recent run, nil when it has never
// run.
func (h *CrawlersHandler) latestRun(site string) any {
	run, ok := h.scheduler.LatestSiteRun(site)
	if !ok {
		return nil
	}
	return run
}

// nextRunTime reports when the site's scheduled job fires next, nil when
// the site has no armed schedule.
func (h *CrawlersHandler) nextRunTime(site string) any {
	job, err := h.scheduler.GetJob(scheduler.CrawlJobID(site))
	if err != nil || job.NextRun.IsZero() {
		return nil
	}
	return job.NextRun.UTC().Format(time.RFC3339)
}
