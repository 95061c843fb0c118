package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/leobrain/crawler/internal/domain"
	"github.com/leobrain/crawler/internal/scheduler"
)

// JobsHandler serves the scheduler job routes.
type JobsHandler struct {
	scheduler SchedulerController
}

// NewJobsHandler creates a JobsHandler.
func NewJobsHandler(sched SchedulerController) *JobsHandler {
	return &JobsHandler{scheduler: sched}
}

// ListJobs returns every registered job.
func (h *JobsHandler) ListJobs(c *gin.Context) {
	jobs := h.scheduler.Jobs()
	out := make([]gin.H, 0, len(jobs))
	for _, job := range jobs {
		out = append(out, jobJSON(job))
	}
	c.JSON(http.StatusOK, gin.H{"jobs": out})
}

// GetJob returns one job descriptor with its recent runs.
func (h *JobsHandler) GetJob(c *gin.Context) {
	id := c.Param("id")
	job, err := h.scheduler.GetJob(id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("job %s not found", id)})
		return
	}

	runs := h.scheduler.JobRuns(id, defaultRecentRuns)
	if runs == nil {
		runs = []domain.CrawlRun{}
	}
	detail := jobJSON(job)
	detail["recent_runs"] = runs
	c.JSON(http.StatusOK, detail)
}

// jobJSON renders one job descriptor. next_run_time is null until the
// trigger is armed.
func jobJSON(job scheduler.Job) gin.H {
	var next any
	if !job.NextRun.IsZero() {
		next = job.NextRun.UTC().Format(time.RFC3339)
	}

	out := gin.H{
		"id":            job.ID,
		"name":          job.Name,
		"trigger":       job.Trigger,
		"next_run_time": next,
		"is_running":    job.IsRunning,
	}
	if job.Site != "" {
		out["site"] = job.Site
	}
	if job.Schedule != "" {
		out["schedule"] = job.Schedule
	}
	return out
}
