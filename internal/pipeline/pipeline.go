// Package pipeline persists parsed items across the two stores: body bytes
// in the object store, metadata rows in the relational store. The write
// ordering keeps the invariant that every stored row references an existing
// object; the cost is a possible orphan object when a crash lands between
// the two writes.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/leobrain/crawler/internal/database"
	"github.com/leobrain/crawler/internal/domain"
	"github.com/leobrain/crawler/internal/logger"
)

// ObjectStore is the slice of the object store the pipeline needs.
type ObjectStore interface {
	Put(ctx context.Context, objectName string, body []byte) error
	Remove(ctx context.Context, objectName string) error
}

// ContentRepo is the slice of the content repository the pipeline needs.
type ContentRepo interface {
	ExistsByURL(ctx context.Context, url string) (bool, error)
	Insert(ctx context.Context, content *domain.Content) error
}

// Recorder receives stored-item metrics. A nil Recorder disables recording.
type Recorder interface {
	RecordItemStored(source string)
}

// Pipeline writes items to the object store and the relational store.
type Pipeline struct {
	store   ObjectStore
	repo    ContentRepo
	log     logger.Interface
	metrics Recorder
}

// New creates a Pipeline. The logger may be nil; metrics may be nil.
func New(store ObjectStore, repo ContentRepo, log logger.Interface, metrics Recorder) *Pipeline {
	if log == nil {
		log = logger.NewNoOp()
	}
	return &Pipeline{
		store:   store,
		repo:    repo,
		log:     log,
		metrics: metrics,
	}
}

// ProcessItem stores one item. It returns (true, nil) when the item was
// newly stored and (false, nil) when the url is already present, whether
// found by the dedup check or lost to a concurrent writer at insert time.
// Store failures return (false, err) and leave no row behind.
func (p *Pipeline) ProcessItem(ctx context.Context, item *domain.Item) (bool, error) {
	if item == nil || item.URL == "" {
		return false, errors.New("item has no url")
	}
	if item.Source == "" {
		return false, fmt.Errorf("item %s has no source", item.URL)
	}

	exists, checkErr := p.repo.ExistsByURL(ctx, item.URL)
	if checkErr != nil {
		return false, fmt.Errorf("failed to check for duplicate url: %w", checkErr)
	}
	if exists {
		p.log.Debug("Skipping duplicate item", "url", item.URL)
		return false, nil
	}

	contentUUID := uuid.New().String()
	bodyRef := fmt.Sprintf("%s/%s.txt", item.Source, contentUUID)

	if putErr := p.store.Put(ctx, bodyRef, []byte(item.Body)); putErr != nil {
		return false, fmt.Errorf("failed to store body for %s: %w", item.URL, putErr)
	}

	content := &domain.Content{
		ContentUUID: contentUUID,
		Source:      item.Source,
		URL:         item.URL,
		Title:       item.Title,
		Author:      item.Author,
		PublishedAt: item.PublishedAt,
		BodyRef:     bodyRef,
	}
	if insertErr := p.repo.Insert(ctx, content); insertErr != nil {
		p.removeOrphan(ctx, bodyRef)
		if errors.Is(insertErr, database.ErrDuplicateURL) {
			p.log.Debug("Lost duplicate race", "url", item.URL)
			return false, nil
		}
		return false, fmt.Errorf("failed to insert content for %s: %w", item.URL, insertErr)
	}

	p.log.Info("Stored content",
		"url", item.URL,
		"source", item.Source,
		"content_uuid", contentUUID)
	if p.metrics != nil {
		p.metrics.RecordItemStored(item.Source)
	}
	return true, nil
}

// ProcessItems stores a batch of items and returns how many were newly
// stored. Per-item failures are logged and do not stop the batch.
func (p *Pipeline) ProcessItems(ctx context.Context, items []*domain.Item) int {
	stored := 0
	for _, item := range items {
		ok, processErr := p.ProcessItem(ctx, item)
		if processErr != nil {
			p.log.Error("Failed to process item", "url", itemURL(item), "error", processErr)
			continue
		}
		if ok {
			stored++
		}
	}
	return stored
}

// removeOrphan deletes an object whose row never landed. Best effort: the
// orphan is otherwise equivalent to one left by a crash between writes.
func (p *Pipeline) removeOrphan(ctx context.Context, bodyRef string) {
	if removeErr := p.store.Remove(ctx, bodyRef); removeErr != nil {
		p.log.Warn("Failed to remove orphan object", "body_ref", bodyRef, "error", removeErr)
	}
}

func itemURL(item *domain.Item) string {
	if item == nil {
		return ""
	}
	return item.URL
}
