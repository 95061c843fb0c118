package fetcher

import "time"

// Default configuration values.
const (
	defaultUserAgent      = "leobrain-crawler/1.0"
	defaultRequestTimeout = 30 * time.Second
	defaultMaxRetries     = 3
	defaultMaxRedirects   = 10
)

// Config holds fetcher configuration.
type Config struct {
	// UserAgent is sent on every request unless the request overrides it.
	UserAgent string `yaml:"user_agent"`
	// RequestTimeout bounds one HTTP attempt including body read.
	RequestTimeout time.Duration `yaml:"request_timeout"`
	// MaxRetries is the total number of HTTP attempts per request.
	MaxRetries int `yaml:"max_retries"`
	// MaxRedirects caps redirect hops before a fetch fails.
	MaxRedirects int `yaml:"max_redirects"`
	// RespectRobots enables robots.txt enforcement.
	RespectRobots bool `yaml:"respect_robots"`
	// RobotsCacheTTL is how long robots.txt entries stay fresh.
	RobotsCacheTTL time.Duration `yaml:"robots_cache_ttl"`
	// MaxConnsPerHost caps connections to one host across all concurrent
	// runs sharing this fetcher. Zero means no cap.
	MaxConnsPerHost int `yaml:"max_conns_per_host"`
}

// WithDefaults returns a copy of the config with default values applied
// for zero-value fields.
func (c Config) WithDefaults() Config {
	if c.UserAgent == "" {
		c.UserAgent = defaultUserAgent
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = defaultRequestTimeout
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = defaultMaxRetries
	}
	if c.MaxRedirects <= 0 {
		c.MaxRedirects = defaultMaxRedirects
	}
	if c.RobotsCacheTTL <= 0 {
		c.RobotsCacheTTL = defaultRobotsCacheTTL
	}
	return c
}
