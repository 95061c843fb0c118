// Package sources loads per-site crawl configuration from a YAML file.
package sources

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"
)

var (
	// ErrNoSites indicates the sites file declared no sites.
	ErrNoSites = errors.New("no sites found in configuration")
	// ErrSiteNotFound indicates the requested site is not configured.
	ErrSiteNotFound = errors.New("site not found")
	// ErrInvalidSite indicates a site entry failed validation.
	ErrInvalidSite = errors.New("invalid site configuration")
)

const (
	// DefaultSpider is the spider kind used when a site declares none.
	DefaultSpider = "rss"
	// DefaultConcurrency is the per-run fetch parallelism.
	DefaultConcurrency = 2
	// DefaultMaxItems caps how many items one run may emit.
	DefaultMaxItems = 50
	// DefaultDelay is the pause between requests when a site sets none.
	DefaultDelay = time.Second

	cronFieldCount = 5
)

// SiteConfig describes one crawl target.
type SiteConfig struct {
	// Name is the registry key; set while loading, never from the file.
	Name string `mapstructure:"-"`

	Spider           string            `mapstructure:"spider"`
	SourceName       string            `mapstructure:"source_name"`
	FeedURL          string            `mapstructure:"feed_url"`
	Cron             string            `mapstructure:"cron"`
	QPS              float64           `mapstructure:"qps"`
	Concurrency      int               `mapstructure:"concurrency"`
	MaxItems         int               `mapstructure:"max_items"`
	FetchFullContent bool              `mapstructure:"fetch_full_content"`
	Headers          map[string]string `mapstructure:"headers"`
	UseRender        bool              `mapstructure:"use_render"`
	Delay            time.Duration     `mapstructure:"delay"`
	Jitter           bool              `mapstructure:"jitter"`
}

// withDefaults fills unset fields. delaySet distinguishes an explicit zero
// delay from an absent one.
func (c SiteConfig) withDefaults(name string, delaySet bool) SiteConfig {
	c.Name = name
	if c.Spider == "" {
		c.Spider = DefaultSpider
	}
	if c.SourceName == "" {
		c.SourceName = name
	}
	if c.Concurrency <= 0 {
		c.Concurrency = DefaultConcurrency
	}
	if c.MaxItems <= 0 {
		c.MaxItems = DefaultMaxItems
	}
	if !delaySet {
		c.Delay = DefaultDelay
	}
	return c
}

func (c SiteConfig) validate() error {
	if c.FeedURL == "" {
		return fmt.Errorf("%w: feed_url is required", ErrInvalidSite)
	}
	if urlErr := validateURL(c.FeedURL); urlErr != nil {
		return fmt.Errorf("%w: feed_url: %v", ErrInvalidSite, urlErr)
	}
	if c.Cron != "" && len(strings.Fields(c.Cron)) != cronFieldCount {
		return fmt.Errorf("%w: cron must have %d fields", ErrInvalidSite, cronFieldCount)
	}
	if c.QPS < 0 {
		return fmt.Errorf("%w: qps must not be negative", ErrInvalidSite)
	}
	if c.Delay < 0 {
		return fmt.Errorf("%w: delay must not be negative", ErrInvalidSite)
	}
	return nil
}

func validateURL(raw string) error {
	u, parseErr := url.Parse(raw)
	if parseErr != nil {
		return parseErr
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.New("must be a valid HTTP(S) URL")
	}
	if u.Host == "" {
		return errors.New("must have a host")
	}
	return nil
}

// Registry holds the loaded sites in a stable order.
type Registry struct {
	sites map[string]SiteConfig
	names []string
}

func newRegistry(sites map[string]SiteConfig) *Registry {
	names := make([]string, 0, len(sites))
	for name := range sites {
		names = append(names, name)
	}
	sort.Strings(names)

	return &Registry{sites: sites, names: names}
}

// Get returns the configuration for name.
func (r *Registry) Get(name string) (SiteConfig, error) {
	cfg, ok := r.sites[name]
	if !ok {
		return SiteConfig{}, fmt.Errorf("%w: %q", ErrSiteNotFound, name)
	}
	return cfg, nil
}

// Has reports whether name is configured.
func (r *Registry) Has(name string) bool {
	_, ok := r.sites[name]
	return ok
}

// Names returns the site names sorted alphabetically.
func (r *Registry) Names() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// All returns every site configuration in name order.
func (r *Registry) All() []SiteConfig {
	out := make([]SiteConfig, 0, len(r.names))
	for _, name := range r.names {
		out = append(out, r.sites[name])
	}
	return out
}

// Len reports how many sites are configured.
func (r *Registry) Len() int {
	return len(r.sites)
}
