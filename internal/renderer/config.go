package renderer

import "time"

const (
	// defaultTimeout bounds a single page render end to end.
	defaultTimeout = 30 * time.Second

	// defaultIdleWindow is how long the network must stay quiet before the
	// page is considered settled.
	defaultIdleWindow = 500 * time.Millisecond

	// defaultUserAgent identifies the browser when none is configured.
	defaultUserAgent = "leobrain-crawler/1.0"
)

// Config holds settings for the headless browser.
type Config struct {
	// UserAgent is sent with every browser request.
	UserAgent string

	// ExecPath points at a Chrome or Chromium binary. Empty means chromedp
	// locates one on its own.
	ExecPath string

	// Timeout is the hard limit for one render, navigation included.
	Timeout time.Duration

	// IdleWindow is the span of network silence that ends the settle wait.
	IdleWindow time.Duration
}

// WithDefaults fills in zero values with production defaults.
func (c Config) WithDefaults() Config {
	if c.UserAgent == "" {
		c.UserAgent = defaultUserAgent
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	if c.IdleWindow <= 0 {
		c.IdleWindow = defaultIdleWindow
	}
	return c
}
