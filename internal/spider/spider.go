// Package spider defines the crawl contract and the site spiders that
// implement it.
package spider

import (
	"errors"
	"fmt"

	"github.com/leobrain/crawler/internal/domain"
	"github.com/leobrain/crawler/internal/logger"
	"github.com/leobrain/crawler/internal/sources"
)

// ErrUnknownKind indicates a site requested a spider kind that is not
// registered.
var ErrUnknownKind = errors.New("unknown spider kind")

// Spider turns responses into items and follow-up requests.
type Spider interface {
	// Name identifies the spider kind.
	Name() string

	// Seeds returns the initial requests. Deterministic and finite.
	Seeds() []*domain.Request

	// Parse translates a response into items and follow-up requests.
	Parse(resp *domain.Response) ([]*domain.Item, []*domain.Request, error)
}

// FullContentParser is implemented by spiders that can read full article
// pages requested through fetch_full follow-ups.
type FullContentParser interface {
	ParseFullContent(resp *domain.Response) ([]*domain.Item, []*domain.Request, error)
}

// FromConfig builds the spider the site's configuration asks for.
func FromConfig(cfg sources.SiteConfig, log logger.Interface) (Spider, error) {
	switch cfg.Spider {
	case KindRSS:
		return NewRSS(cfg, log), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, cfg.Spider)
	}
}
