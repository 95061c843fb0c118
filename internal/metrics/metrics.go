// Package metrics registers the crawler's Prometheus metrics. One Collector
// serves the whole process; its methods satisfy the recorder interfaces the
// engine, pipeline, fetcher, and scheduler consume.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/leobrain/crawler/internal/domain"
)

// namespace prefixes every metric name.
const namespace = "crawler"

// Collector holds the registered metrics.
type Collector struct {
	CrawlsTotal          *prometheus.CounterVec
	CrawlDurationSeconds *prometheus.HistogramVec
	ItemsStoredTotal     *prometheus.CounterVec
	FetchRequestsTotal   *prometheus.CounterVec
	FetchRetriesTotal    prometheus.Counter
	JobsRunning          prometheus.Gauge
}

// New creates and registers the crawler metrics on reg. A nil registerer
// falls back to the default one. Registering the same metrics twice on one
// registry panics, so create one Collector per process.
func New(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Collector{
		CrawlsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "crawls_total",
				Help:      "Total number of finished crawl runs",
			},
			[]string{"site", "status"},
		),
		CrawlDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "crawl_duration_seconds",
				Help:      "Duration of crawl runs in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.25, 2, 12), // 0.25s to ~17min
			},
			[]string{"site"},
		),
		ItemsStoredTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "items_stored_total",
				Help:      "Total number of newly stored content items",
			},
			[]string{"source"},
		),
		FetchRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fetch_requests_total",
				Help:      "Total number of HTTP fetch attempts by status class",
			},
			[]string{"status_class"},
		),
		FetchRetriesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fetch_retries_total",
				Help:      "Total number of fetch retries",
			},
		),
		JobsRunning: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "jobs_running",
				Help:      "Number of crawl jobs currently running",
			},
		),
	}
}

// RecordCrawl counts one finished crawl run and observes its duration.
func (c *Collector) RecordCrawl(site string, status domain.RunStatus, elapsed time.Duration) {
	c.CrawlsTotal.WithLabelValues(site, string(status)).Inc()
	c.CrawlDurationSeconds.WithLabelValues(site).Observe(elapsed.Seconds())
}

// RecordItemStored counts one newly stored item.
func (c *Collector) RecordItemStored(source string) {
	c.ItemsStoredTotal.WithLabelValues(source).Inc()
}

// RecordFetchAttempt counts one HTTP attempt. statusClass is "2xx", "3xx",
// "4xx", "5xx", or "error" for requests that got no response.
func (c *Collector) RecordFetchAttempt(statusClass string) {
	c.FetchRequestsTotal.WithLabelValues(statusClass).Inc()
}

// RecordFetchRetry counts one scheduled retry.
func (c *Collector) RecordFetchRetry() {
	c.FetchRetriesTotal.Inc()
}

// JobStarted increments the running job gauge.
func (c *Collector) JobStarted() {
	c.JobsRunning.Inc()
}

// JobFinished decrements the running job gauge.
func (c *Collector) JobFinished() {
	c.JobsRunning.Dec()
}
