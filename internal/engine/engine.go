// Package engine runs crawls. One CrawlSpider call drains a spider's seed
// requests plus whatever follow-ups parsing discovers, through a bounded
// set of workers, and hands the collected items to the pipeline in a single
// batch.
package engine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/leobrain/crawler/internal/antibot"
	"github.com/leobrain/crawler/internal/domain"
	"github.com/leobrain/crawler/internal/logger"
	"github.com/leobrain/crawler/internal/sources"
	"github.com/leobrain/crawler/internal/spider"
)

// Fetcher executes plain HTTP requests. A nil response with a nil error
// means the request failed permanently.
type Fetcher interface {
	Fetch(ctx context.Context, req *domain.Request) (*domain.Response, error)
	Close()
}

// Renderer produces browser-rendered responses for use_render requests.
type Renderer interface {
	Render(ctx context.Context, req *domain.Request) (*domain.Response, error)
	Close() error
}

// ItemPipeline persists a batch of parsed items and reports how many were
// newly stored.
type ItemPipeline interface {
	ProcessItems(ctx context.Context, items []*domain.Item) int
}

// Recorder receives per-run crawl metrics. Implementations must accept
// concurrent calls.
type Recorder interface {
	RecordCrawl(site string, status domain.RunStatus, elapsed time.Duration)
}

// Engine coordinates fetching, parsing, and persistence for crawl runs.
// The fetcher and renderer are shared across runs, so concurrent runs reuse
// one HTTP connection pool and one browser.
type Engine struct {
	fetcher  Fetcher
	renderer Renderer
	pipeline ItemPipeline
	log      logger.Interface
	metrics  Recorder
}

// New creates an Engine. renderer may be nil, in which case use_render
// requests fall back to the plain fetcher; metrics may be nil to disable
// recording.
func New(fetcher Fetcher, renderer Renderer, pipeline ItemPipeline, log logger.Interface, metrics Recorder) *Engine {
	if log == nil {
		log = logger.NewNoOp()
	}
	return &Engine{
		fetcher:  fetcher,
		renderer: renderer,
		pipeline: pipeline,
		log:      log,
		metrics:  metrics,
	}
}

// crawlState accumulates the results of one run across workers.
type crawlState struct {
	mu       sync.Mutex
	items    []*domain.Item
	requests atomic.Int64
	failed   atomic.Int64
}

func (s *crawlState) addItems(items []*domain.Item) {
	if len(items) == 0 {
		return
	}
	s.mu.Lock()
	s.items = append(s.items, items...)
	s.mu.Unlock()
}

func (s *crawlState) snapshot() []*domain.Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.items
}

// CrawlSpider runs one crawl of sp under cfg and returns how many items the
// pipeline newly stored. The run ends when the request queue drains.
// Cancelling ctx stops the run early: workers finish the request they are
// on, nothing is handed to the pipeline, and the context error is returned.
// Per-request failures, including parse errors, are logged and counted but
// never abort the run.
func (e *Engine) CrawlSpider(ctx context.Context, sp spider.Spider, cfg sources.SiteConfig) (int, error) {
	site := cfg.Name
	if site == "" {
		site = cfg.SourceName
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = sources.DefaultConcurrency
	}

	start := time.Now()
	seeds := sp.Seeds()
	e.log.Info("Starting crawl",
		"site", site,
		"spider", sp.Name(),
		"seeds", len(seeds),
		"concurrency", concurrency)

	if len(seeds) == 0 {
		e.recordCrawl(site, domain.RunSucceeded, time.Since(start))
		return 0, nil
	}

	bot := antibot.New(cfg.QPS, cfg.Delay, cfg.Jitter, e.log)
	queue := newRequestQueue(seeds)
	state := &crawlState{}

	var wg sync.WaitGroup
	for range concurrency {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.work(ctx, sp, bot, queue, state)
		}()
	}
	wg.Wait()

	if ctxErr := ctx.Err(); ctxErr != nil {
		e.log.Warn("Crawl interrupted",
			"site", site,
			"requests", state.requests.Load(),
			"error", ctxErr)
		e.recordCrawl(site, domain.RunFailed, time.Since(start))
		return 0, fmt.Errorf("crawl %s interrupted: %w", site, ctxErr)
	}

	items := state.snapshot()
	stored := 0
	if len(items) > 0 {
		stored = e.pipeline.ProcessItems(ctx, items)
	}

	e.recordCrawl(site, domain.RunSucceeded, time.Since(start))
	e.log.Info("Crawl finished",
		"site", site,
		"requests", state.requests.Load(),
		"failed", state.failed.Load(),
		"items", len(items),
		"stored", stored,
		"duration", time.Since(start))
	return stored, nil
}

// work is one worker's loop: take a request, handle it, release it, until
// the queue drains or the context is cancelled.
func (e *Engine) work(ctx context.Context, sp spider.Spider, bot *antibot.Middleware, queue *requestQueue, state *crawlState) {
	for {
		if ctx.Err() != nil {
			return
		}
		req, ok := queue.next()
		if !ok {
			return
		}
		e.handle(ctx, sp, bot, queue, state, req)
		queue.done()
	}
}

// handle runs one request through pacing, fetch or render, and parsing.
// Follow-ups are enqueued before the worker releases its inflight slot, so
// the queue cannot report a drain while discovered work is still in hand.
func (e *Engine) handle(ctx context.Context, sp spider.Spider, bot *antibot.Middleware, queue *requestQueue, state *crawlState, req *domain.Request) {
	state.requests.Add(1)

	if waitErr := bot.BeforeRequest(ctx, req); waitErr != nil {
		e.log.Debug("Pacing interrupted", "url", req.URL, "error", waitErr)
		state.failed.Add(1)
		return
	}

	resp, fetchErr := e.execute(ctx, req)
	if fetchErr != nil {
		e.log.Warn("Request error", "url", req.URL, "error", fetchErr)
		state.failed.Add(1)
		return
	}
	if resp == nil {
		e.log.Debug("Request not fulfilled", "url", req.URL)
		state.failed.Add(1)
		return
	}
	bot.AfterRequest(ctx, resp)

	items, followUps, parseErr := e.parse(sp, req, resp)
	if parseErr != nil {
		e.log.Error("Parse failed", "url", req.URL, "error", parseErr)
		state.failed.Add(1)
		return
	}

	state.addItems(items)
	queue.add(followUps...)
}

// execute routes the request to the renderer when it asks for one and a
// renderer is installed, and to the fetcher otherwise.
func (e *Engine) execute(ctx context.Context, req *domain.Request) (*domain.Response, error) {
	if req.UseRender && e.renderer != nil {
		return e.renderer.Render(ctx, req)
	}
	return e.fetcher.Fetch(ctx, req)
}

// parse routes the response to ParseFullContent when the request was a
// fetch_full follow-up and the spider can read article pages.
func (e *Engine) parse(sp spider.Spider, req *domain.Request, resp *domain.Response) ([]*domain.Item, []*domain.Request, error) {
	if req.MetaBool(domain.MetaFetchFull) {
		if full, ok := sp.(spider.FullContentParser); ok {
			return full.ParseFullContent(resp)
		}
	}
	return sp.Parse(resp)
}

func (e *Engine) recordCrawl(site string, status domain.RunStatus, elapsed time.Duration) {
	if e.metrics != nil {
		e.metrics.RecordCrawl(site, status, elapsed)
	}
}

// Close releases the fetcher's connections and shuts the renderer down.
// Callers should let running crawls drain first.
func (e *Engine) Close() error {
	e.fetcher.Close()
	if e.renderer != nil {
		if closeErr := e.renderer.Close(); closeErr != nil {
			return fmt.Errorf("failed to close renderer: %w", closeErr)
		}
	}
	return nil
}
