// Package renderer executes pages in a headless browser so JavaScript-built
// content is visible to spiders.
package renderer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/leobrain/crawler/internal/domain"
	"github.com/leobrain/crawler/internal/logger"
)

// idlePollInterval is how often the settle wait re-checks network silence.
const idlePollInterval = 50 * time.Millisecond

// ErrClosed is returned by Render after Close has been called.
var ErrClosed = errors.New("renderer: closed")

// Renderer produces fully rendered page snapshots.
type Renderer interface {
	Render(ctx context.Context, req *domain.Request) (*domain.Response, error)
	Close() error
}

// Chrome renders pages through a shared headless Chrome instance. The browser
// process is not spawned until the first Render call.
type Chrome struct {
	cfg Config
	log logger.Interface

	mu            sync.Mutex
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
	started       bool
	closed        bool
}

// NewChrome prepares a renderer without launching a browser.
func NewChrome(cfg Config, log logger.Interface) *Chrome {
	return &Chrome{cfg: cfg.WithDefaults(), log: log}
}

// Render navigates to the request URL, waits for the network to settle and
// returns the serialized DOM. Each call runs in its own browser tab.
func (c *Chrome) Render(ctx context.Context, req *domain.Request) (*domain.Response, error) {
	browserCtx, startErr := c.start()
	if startErr != nil {
		return nil, startErr
	}

	tabCtx, cancelTab := chromedp.NewContext(browserCtx)
	defer cancelTab()

	runCtx, cancelRun := context.WithTimeout(tabCtx, c.cfg.Timeout)
	defer cancelRun()

	// chromedp contexts descend from the browser, not the caller, so caller
	// cancellation has to be forwarded by hand.
	go func() {
		select {
		case <-ctx.Done():
			cancelRun()
		case <-runCtx.Done():
		}
	}()

	start := time.Now()

	var lastActivity atomic.Int64
	lastActivity.Store(start.UnixNano())

	var docMu sync.Mutex
	docStatus := 0
	docHeaders := http.Header{}

	chromedp.ListenTarget(runCtx, func(ev any) {
		switch e := ev.(type) {
		case *network.EventResponseReceived:
			lastActivity.Store(time.Now().UnixNano())
			if e.Type != network.ResourceTypeDocument {
				return
			}
			docMu.Lock()
			docStatus = int(e.Response.Status)
			docHeaders = http.Header{}
			for k, v := range e.Response.Headers {
				if s, ok := v.(string); ok {
					docHeaders.Set(k, s)
				}
			}
			docMu.Unlock()
		case *network.EventRequestWillBeSent, *network.EventLoadingFinished, *network.EventLoadingFailed:
			lastActivity.Store(time.Now().UnixNano())
		}
	})

	actions := []chromedp.Action{network.Enable()}
	if len(req.Headers) > 0 {
		extra := make(network.Headers, len(req.Headers))
		for k, v := range req.Headers {
			extra[k] = v
		}
		actions = append(actions, network.SetExtraHTTPHeaders(extra))
	}

	var html string
	var finalURL string
	actions = append(actions,
		chromedp.Navigate(req.URL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.ActionFunc(func(actionCtx context.Context) error {
			return waitIdle(actionCtx, &lastActivity, c.cfg.IdleWindow)
		}),
		chromedp.Location(&finalURL),
		chromedp.ActionFunc(func(actionCtx context.Context) error {
			root, docErr := dom.GetDocument().Do(actionCtx)
			if docErr != nil {
				return docErr
			}
			var htmlErr error
			html, htmlErr = dom.GetOuterHTML().WithNodeID(root.NodeID).Do(actionCtx)
			return htmlErr
		}),
	)

	if runErr := chromedp.Run(runCtx, actions...); runErr != nil {
		return nil, fmt.Errorf("render %s: %w", req.URL, runErr)
	}

	docMu.Lock()
	status := docStatus
	headers := docHeaders
	docMu.Unlock()

	// Cached navigations can complete without a document response event.
	if status == 0 {
		status = http.StatusOK
	}

	elapsed := time.Since(start)
	c.log.Debug("Page rendered", "url", req.URL, "status", status, "elapsed", elapsed)

	return &domain.Response{
		Request:    req,
		URL:        finalURL,
		StatusCode: status,
		Body:       []byte(html),
		Headers:    headers,
		Elapsed:    elapsed,
	}, nil
}

// Close shuts the browser down. Render calls after Close fail with ErrClosed.
func (c *Chrome) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	if !c.started {
		return nil
	}

	// chromedp.Cancel waits for the browser process to exit.
	closeErr := chromedp.Cancel(c.browserCtx)
	if c.allocCancel != nil {
		c.allocCancel()
	}
	return closeErr
}

// start builds the allocator and browser contexts once. The browser process
// itself is spawned by the first Run against the returned context.
func (c *Chrome) start() (context.Context, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrClosed
	}
	if c.started {
		return c.browserCtx, nil
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("mute-audio", true),
		chromedp.UserAgent(c.cfg.UserAgent),
	)
	if c.cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(c.cfg.ExecPath))
	}

	var allocCtx context.Context
	allocCtx, c.allocCancel = chromedp.NewExecAllocator(context.Background(), opts...)
	c.browserCtx, c.browserCancel = chromedp.NewContext(allocCtx)
	c.started = true
	c.log.Debug("Starting headless browser", "user_agent", c.cfg.UserAgent)

	return c.browserCtx, nil
}

// waitIdle blocks until no network event has been observed for window, or the
// context expires.
func waitIdle(ctx context.Context, lastActivity *atomic.Int64, window time.Duration) error {
	ticker := time.NewTicker(idlePollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			last := time.Unix(0, lastActivity.Load())
			if time.Since(last) >= window {
				return nil
			}
		}
	}
}
