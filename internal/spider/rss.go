package spider

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/mmcdole/gofeed"

	"github.com/leobrain/crawler/internal/domain"
	"github.com/leobrain/crawler/internal/logger"
	"github.com/leobrain/crawler/internal/parser"
	"github.com/leobrain/crawler/internal/sources"
)

const (
	// KindRSS is the spider kind for RSS and Atom feeds.
	KindRSS = "rss"

	// fullContentThreshold is the body length, in runes, below which a
	// fetch_full follow-up is issued for the entry page.
	fullContentThreshold = 500

	// untitled stands in when neither the feed nor the page yields a title.
	untitled = "No title"

	// httpPrefix marks a GUID that is usable as an entry link.
	httpPrefix = "http"
)

// RSS crawls one RSS or Atom feed.
type RSS struct {
	cfg sources.SiteConfig
	log logger.Interface
}

// NewRSS builds an RSS spider for one site.
func NewRSS(cfg sources.SiteConfig, log logger.Interface) *RSS {
	if log == nil {
		log = logger.NewNoOp()
	}
	return &RSS{cfg: cfg, log: log}
}

// Name identifies the spider kind.
func (s *RSS) Name() string { return KindRSS }

// Seeds returns the single feed request.
func (s *RSS) Seeds() []*domain.Request {
	req := domain.NewRequest(s.cfg.FeedURL)
	for k, v := range s.cfg.Headers {
		req.Headers[k] = v
	}
	req.Metadata[domain.MetaIsFeed] = true
	req.Metadata[domain.MetaSource] = s.cfg.SourceName

	return []*domain.Request{req}
}

// Parse reads the feed and emits one item per entry. Entries whose feed body
// is too short to archive also get a fetch_full follow-up request when the
// site enables full-content fetching.
func (s *RSS) Parse(resp *domain.Response) ([]*domain.Item, []*domain.Request, error) {
	feed, parseErr := gofeed.NewParser().ParseString(resp.Text())
	if parseErr != nil {
		return nil, nil, fmt.Errorf("parse feed %s: %w", resp.URL, parseErr)
	}

	entries := feed.Items
	if s.cfg.MaxItems > 0 && len(entries) > s.cfg.MaxItems {
		entries = entries[:s.cfg.MaxItems]
	}

	items := make([]*domain.Item, 0, len(entries))
	var followUps []*domain.Request

	for _, entry := range entries {
		link := entryLink(entry)
		if link == "" {
			s.log.Debug("Skipping feed entry without a usable link",
				"source", s.cfg.SourceName,
				"title", entry.Title)
			continue
		}

		body := parser.CleanText(entryBody(entry))

		item := &domain.Item{
			URL:         link,
			Title:       entryTitle(entry),
			Body:        body,
			Source:      s.cfg.SourceName,
			Author:      entryAuthor(entry),
			PublishedAt: entryPublished(entry),
			Language:    feed.Language,
			Metadata: map[string]any{
				"feed_title": feed.Title,
				"feed_link":  feed.Link,
			},
		}
		items = append(items, item)

		if s.cfg.FetchFullContent && utf8.RuneCountInString(body) < fullContentThreshold {
			followUps = append(followUps, s.fullContentRequest(link, item.Title))
		}
	}

	s.log.Info("Parsed feed",
		"source", s.cfg.SourceName,
		"items", len(items),
		"follow_ups", len(followUps))

	return items, followUps, nil
}

// ParseFullContent reads a full article page fetched via a follow-up
// request. The title comes from the page's first h1, then its title tag,
// then the feed entry title carried on the request.
func (s *RSS) ParseFullContent(resp *domain.Response) ([]*domain.Item, []*domain.Request, error) {
	html := resp.Text()

	title := parser.ExtractFirst(html, "h1")
	if title == "" {
		title = parser.ExtractFirst(html, "title")
	}
	if title == "" {
		title = resp.Request.MetaString(domain.MetaEntryTitle)
	}
	if title == "" {
		title = untitled
	}

	item := &domain.Item{
		URL:    resp.URL,
		Title:  title,
		Body:   parser.CleanText(html),
		Source: s.cfg.SourceName,
		Metadata: map[string]any{
			"fetched_full": true,
		},
	}

	return []*domain.Item{item}, nil, nil
}

func (s *RSS) fullContentRequest(link, entryTitle string) *domain.Request {
	req := domain.NewRequest(link)
	req.UseRender = s.cfg.UseRender
	for k, v := range s.cfg.Headers {
		req.Headers[k] = v
	}
	req.Metadata[domain.MetaFetchFull] = true
	req.Metadata[domain.MetaSource] = s.cfg.SourceName
	req.Metadata[domain.MetaEntryTitle] = entryTitle

	return req
}

// entryLink prefers the explicit link, falling back to a GUID that looks
// like an HTTP URL.
func entryLink(entry *gofeed.Item) string {
	if entry.Link != "" {
		return entry.Link
	}
	if strings.HasPrefix(entry.GUID, httpPrefix) {
		return entry.GUID
	}
	return ""
}

// entryBody returns the first of content and summary/description present.
func entryBody(entry *gofeed.Item) string {
	if entry.Content != "" {
		return entry.Content
	}
	return entry.Description
}

func entryTitle(entry *gofeed.Item) string {
	if entry.Title == "" {
		return untitled
	}
	return entry.Title
}

// entryAuthor reads the author name, trying the newer Authors list first.
func entryAuthor(entry *gofeed.Item) string {
	for _, a := range entry.Authors {
		if a != nil && a.Name != "" {
			return a.Name
		}
	}
	if entry.Author != nil && entry.Author.Name != "" {
		return entry.Author.Name
	}
	return ""
}

// entryPublished prefers the published timestamp over updated, falling back
// to permissive parsing of the raw strings.
func entryPublished(entry *gofeed.Item) *time.Time {
	if entry.PublishedParsed != nil {
		t := entry.PublishedParsed.UTC()
		return &t
	}
	if entry.UpdatedParsed != nil {
		t := entry.UpdatedParsed.UTC()
		return &t
	}
	if ts := parser.ParseDate(entry.Published); ts != nil {
		return ts
	}
	return parser.ParseDate(entry.Updated)
}
