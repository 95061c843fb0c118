package domain

import "time"

// Item is a normalized crawled record. Items are the only artifacts the
// pipeline persists; the URL is the dedup key.
type Item struct {
	URL         string         `json:"url"`
	Title       string         `json:"title"`
	Body        string         `json:"body"`
	Source      string         `json:"source"`
	Author      string         `json:"author,omitempty"`
	PublishedAt *time.Time     `json:"published_at,omitempty"`
	Language    string         `json:"language,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}
