package api_test

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/leobrain/crawler/internal/api"
	"github.com/leobrain/crawler/internal/domain"
	"github.com/leobrain/crawler/internal/scheduler"
)

func newJobsRouter(sched api.SchedulerController) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	api.RegisterRoutes(router.Group("/api/v1"), nil, api.NewJobsHandler(sched), nil)
	return router
}

func TestListJobs(t *testing.T) {
	next := time.Date(2025, 6, 1, 7, 0, 0, 0, time.UTC)
	sched := &mockScheduler{
		jobsFunc: func() []scheduler.Job {
			return []scheduler.Job{
				{
					ID:        "crawl_news",
					Name:      "Scheduled crawl for news",
					Site:      "news",
					Trigger:   scheduler.TriggerCron,
					Schedule:  "0 6 * * *",
					NextRun:   next,
					IsRunning: true,
				},
				{
					ID:      "manual_crawl_blog_20250601120000",
					Name:    "Manual crawl for blog",
					Site:    "blog",
					Trigger: scheduler.TriggerDate,
				},
			}
		},
	}
	router := newJobsRouter(sched)

	w := performRequest(t, router, http.MethodGet, "/api/v1/jobs", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	got := decodeBody(t, w)
	jobs, ok := got["jobs"].([]any)
	if !ok || len(jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %v", got["jobs"])
	}

	first, _ := jobs[0].(map[string]any)
	if first["id"] != "crawl_news" || first["trigger"] != "cron" {
		t.Errorf("unexpected first job: %v", jobs[0])
	}
	if first["next_run_time"] != "2025-06-01T07:00:00Z" {
		t.Errorf("unexpected next_run_time: %v", first["next_run_time"])
	}
	if running, _ := first["is_running"].(bool); !running {
		t.Errorf("expected first job running: %v", jobs[0])
	}
	if first["schedule"] != "0 6 * * *" {
		t.Errorf("unexpected schedule: %v", first["schedule"])
	}

	second, _ := jobs[1].(map[string]any)
	if second["next_run_time"] != nil {
		t.Errorf("expected null next_run_time for unarmed job, got %v", second["next_run_time"])
	}
	if second["trigger"] != "date" {
		t.Errorf("unexpected trigger: %v", second["trigger"])
	}
}

func TestListJobsEmpty(t *testing.T) {
	router := newJobsRouter(&mockScheduler{})

	w := performRequest(t, router, http.MethodGet, "/api/v1/jobs", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	got := decodeBody(t, w)
	jobs, ok := got["jobs"].([]any)
	if !ok {
		t.Fatalf("expected jobs array, got %v", got["jobs"])
	}
	if len(jobs) != 0 {
		t.Errorf("expected no jobs, got %v", jobs)
	}
}

func TestGetJob(t *testing.T) {
	end := time.Date(2025, 6, 1, 6, 2, 0, 0, time.UTC)
	sched := &mockScheduler{
		getJobFunc: func(id string) (scheduler.Job, error) {
			if id != "crawl_news" {
				return scheduler.Job{}, fmt.Errorf("%w: %s", scheduler.ErrJobNotFound, id)
			}
			return scheduler.Job{
				ID:       "crawl_news",
				Name:     "Scheduled crawl for news",
				Site:     "news",
				Trigger:  scheduler.TriggerCron,
				Schedule: "0 6 * * *",
			}, nil
		},
		jobRunsFunc: func(jobID string, n int) []domain.CrawlRun {
			return []domain.CrawlRun{
				{
					JobID:       jobID,
					Site:        "news",
					Status:      domain.RunSucceeded,
					StartTime:   end.Add(-2 * time.Minute),
					EndTime:     &end,
					ItemsStored: 5,
				},
			}
		},
	}
	router := newJobsRouter(sched)

	w := performRequest(t, router, http.MethodGet, "/api/v1/jobs/crawl_news", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	got := decodeBody(t, w)
	if got["id"] != "crawl_news" || got["site"] != "news" {
		t.Errorf("unexpected descriptor: %v", got)
	}
	runs, ok := got["recent_runs"].([]any)
	if !ok || len(runs) != 1 {
		t.Fatalf("expected 1 recent run, got %v", got["recent_runs"])
	}
	run, _ := runs[0].(map[string]any)
	if run["status"] != "succeeded" {
		t.Errorf("unexpected run status: %v", runs[0])
	}
	if run["items_stored"] != float64(5) {
		t.Errorf("unexpected items_stored: %v", run["items_stored"])
	}
}

func TestGetJobNotFound(t *testing.T) {
	router := newJobsRouter(&mockScheduler{})

	w := performRequest(t, router, http.MethodGet, "/api/v1/jobs/ghost", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", w.Code, w.Body.String())
	}
	got := decodeBody(t, w)
	if got["error"] != "job ghost not found" {
		t.Errorf("unexpected error message: %v", got["error"])
	}
}
