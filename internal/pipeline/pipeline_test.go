package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leobrain/crawler/internal/database"
	"github.com/leobrain/crawler/internal/domain"
	"github.com/leobrain/crawler/internal/logger"
)

type fakeStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
	removed []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: map[string][]byte{}}
}

func (f *fakeStore) Put(_ context.Context, objectName string, body []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.putErr != nil {
		return f.putErr
	}
	f.objects[objectName] = append([]byte(nil), body...)
	return nil
}

func (f *fakeStore) Remove(_ context.Context, objectName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, objectName)
	delete(f.objects, objectName)
	return nil
}

func (f *fakeStore) objectCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.objects)
}

type fakeRepo struct {
	mu        sync.Mutex
	rows      map[string]*domain.Content
	existsErr error
	insertErr error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{rows: map[string]*domain.Content{}}
}

func (f *fakeRepo) ExistsByURL(_ context.Context, url string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.existsErr != nil {
		return false, f.existsErr
	}
	_, ok := f.rows[url]
	return ok, nil
}

func (f *fakeRepo) Insert(_ context.Context, content *domain.Content) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return f.insertErr
	}
	if _, ok := f.rows[content.URL]; ok {
		return fmt.Errorf("url %s: %w", content.URL, database.ErrDuplicateURL)
	}
	content.ID = int64(len(f.rows) + 1)
	content.CreatedAt = time.Now()
	f.rows[content.URL] = content
	return nil
}

func (f *fakeRepo) row(url string) *domain.Content {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rows[url]
}

func (f *fakeRepo) seed(url string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[url] = &domain.Content{URL: url}
}

type fakeRecorder struct {
	mu      sync.Mutex
	sources []string
}

func (f *fakeRecorder) RecordItemStored(source string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sources = append(f.sources, source)
}

func (f *fakeRecorder) recorded() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sources...)
}

func sampleItem() *domain.Item {
	published := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	return &domain.Item{
		URL:         "https://example.com/articles/1",
		Title:       "Test Article",
		Body:        "This is a test article body.",
		Source:      "techblog",
		Author:      "Test Author",
		PublishedAt: &published,
		Metadata:    map[string]any{"lang": "en"},
	}
}

func TestProcessItemStoresNewItem(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	repo := newFakeRepo()
	p := New(store, repo, logger.NewNoOp(), nil)

	item := sampleItem()
	stored, processErr := p.ProcessItem(context.Background(), item)
	require.NoError(t, processErr)
	assert.True(t, stored)

	content := repo.row(item.URL)
	require.NotNil(t, content)
	assert.Equal(t, item.Title, content.Title)
	assert.Equal(t, item.Source, content.Source)
	assert.Equal(t, item.Author, content.Author)
	assert.Equal(t, item.PublishedAt, content.PublishedAt)

	_, parseErr := uuid.Parse(content.ContentUUID)
	require.NoError(t, parseErr)
	assert.Equal(t, fmt.Sprintf("techblog/%s.txt", content.ContentUUID), content.BodyRef)

	store.mu.Lock()
	body, ok := store.objects[content.BodyRef]
	store.mu.Unlock()
	require.True(t, ok, "object for body_ref must exist")
	assert.Equal(t, item.Body, string(body))
}

func TestProcessItemDuplicateURL(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	repo := newFakeRepo()
	repo.seed("https://example.com/articles/1")
	p := New(store, repo, logger.NewNoOp(), nil)

	stored, processErr := p.ProcessItem(context.Background(), sampleItem())
	require.NoError(t, processErr)
	assert.False(t, stored)
	assert.Zero(t, store.objectCount(), "duplicate must not write an object")
}

func TestProcessItemStorageFailure(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.putErr = errors.New("connection refused")
	repo := newFakeRepo()
	p := New(store, repo, logger.NewNoOp(), nil)

	item := sampleItem()
	stored, processErr := p.ProcessItem(context.Background(), item)
	require.Error(t, processErr)
	assert.False(t, stored)
	assert.Nil(t, repo.row(item.URL), "no row may land without its object")
}

func TestProcessItemInsertFailureRemovesObject(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	repo := newFakeRepo()
	repo.insertErr = errors.New("db down")
	p := New(store, repo, logger.NewNoOp(), nil)

	stored, processErr := p.ProcessItem(context.Background(), sampleItem())
	require.Error(t, processErr)
	assert.False(t, stored)
	require.Len(t, store.removed, 1)
	assert.Zero(t, store.objectCount(), "orphan object must be rolled back")
}

func TestProcessItemDuplicateRace(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	repo := newFakeRepo()
	repo.insertErr = fmt.Errorf("url x: %w", database.ErrDuplicateURL)
	p := New(store, repo, logger.NewNoOp(), nil)

	// The dedup check passes but a concurrent writer lands the row first;
	// the unique constraint reports it at insert time.
	stored, processErr := p.ProcessItem(context.Background(), sampleItem())
	require.NoError(t, processErr)
	assert.False(t, stored)
	require.Len(t, store.removed, 1)
	assert.Zero(t, store.objectCount())
}

func TestProcessItemRejectsIncompleteItems(t *testing.T) {
	t.Parallel()

	p := New(newFakeStore(), newFakeRepo(), logger.NewNoOp(), nil)

	_, nilErr := p.ProcessItem(context.Background(), nil)
	require.Error(t, nilErr)

	noURL := sampleItem()
	noURL.URL = ""
	_, urlErr := p.ProcessItem(context.Background(), noURL)
	require.Error(t, urlErr)

	noSource := sampleItem()
	noSource.Source = ""
	_, sourceErr := p.ProcessItem(context.Background(), noSource)
	require.Error(t, sourceErr)
}

func TestProcessItemsBatch(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	repo := newFakeRepo()
	p := New(store, repo, logger.NewNoOp(), nil)

	items := make([]*domain.Item, 0, 3)
	for i := 1; i <= 3; i++ {
		item := sampleItem()
		item.URL = fmt.Sprintf("https://example.com/articles/%d", i)
		items = append(items, item)
	}

	count := p.ProcessItems(context.Background(), items)
	assert.Equal(t, 3, count)
	assert.Equal(t, 3, store.objectCount())
}

func TestProcessItemsCountsOnlyStored(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	repo := newFakeRepo()
	repo.seed("https://example.com/articles/1")
	p := New(store, repo, logger.NewNoOp(), nil)

	duplicate := sampleItem()
	fresh := sampleItem()
	fresh.URL = "https://example.com/articles/2"
	broken := sampleItem()
	broken.URL = ""

	count := p.ProcessItems(context.Background(), []*domain.Item{duplicate, fresh, broken})
	assert.Equal(t, 1, count)
}

func TestProcessItemRecordsMetrics(t *testing.T) {
	t.Parallel()

	recorder := &fakeRecorder{}
	p := New(newFakeStore(), newFakeRepo(), logger.NewNoOp(), recorder)

	stored, processErr := p.ProcessItem(context.Background(), sampleItem())
	require.NoError(t, processErr)
	require.True(t, stored)
	assert.Equal(t, []string{"techblog"}, recorder.recorded())
}
