// Package domain provides domain models used across the application.
package domain

import "net/http"

// Metadata keys understood by the crawl pipeline. Spiders attach these to
// the requests they emit; the engine reads them to route work.
const (
	// MetaIsFeed marks a request that targets a feed document rather than
	// an article page.
	MetaIsFeed = "is_feed"

	// MetaFetchFull marks a follow-up request whose response should go
	// through the spider's full-content parser.
	MetaFetchFull = "fetch_full"

	// MetaSource carries the site configuration key that produced the
	// request.
	MetaSource = "source"

	// MetaEntryTitle carries the feed entry title on a fetch_full follow-up
	// so the page parser can fall back to it.
	MetaEntryTitle = "entry_title"
)

// Request is one unit of fetch work. A Request is never mutated after
// construction; follow-ups are new values.
type Request struct {
	URL       string            `json:"url"`
	Method    string            `json:"method"`
	Headers   map[string]string `json:"headers,omitempty"`
	Body      []byte            `json:"body,omitempty"`
	UseRender bool              `json:"use_render"`
	Metadata  map[string]any    `json:"metadata,omitempty"`
}

// NewRequest returns a GET request for url with empty headers and metadata.
func NewRequest(url string) *Request {
	return &Request{
		URL:      url,
		Method:   http.MethodGet,
		Headers:  map[string]string{},
		Metadata: map[string]any{},
	}
}

// MetaBool reads a boolean metadata value. Absent or non-bool values read
// as false.
func (r *Request) MetaBool(key string) bool {
	if r.Metadata == nil {
		return false
	}
	v, ok := r.Metadata[key].(bool)
	return ok && v
}

// MetaString reads a string metadata value. Absent or non-string values
// read as "".
func (r *Request) MetaString(key string) string {
	if r.Metadata == nil {
		return ""
	}
	v, _ := r.Metadata[key].(string)
	return v
}
