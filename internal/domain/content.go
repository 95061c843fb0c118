package domain

import "time"

// Content is a stored content row in the relational store. BodyRef names
// the object-store blob holding the item body; ContentUUID is embedded in
// it.
type Content struct {
	ID          int64      `db:"id"           json:"id"`
	ContentUUID string     `db:"content_uuid" json:"content_uuid"`
	Source      string     `db:"source"       json:"source"`
	URL         string     `db:"url"          json:"url"`
	Title       string     `db:"title"        json:"title"`
	Author      string     `db:"author"       json:"author,omitempty"`
	PublishedAt *time.Time `db:"published_at" json:"published_at,omitempty"`
	CreatedAt   time.Time  `db:"created_at"   json:"created_at"`
	BodyRef     string     `db:"body_ref"     json:"body_ref"`
}
