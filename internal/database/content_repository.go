package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/leobrain/crawler/internal/domain"
)

// uniqueViolationCode is the PostgreSQL error code for unique_violation.
const uniqueViolationCode = "23505"

// contentSelectColumns lists columns for SELECT queries on contents.
const contentSelectColumns = `id, content_uuid, source, url, title, author, published_at, created_at, body_ref`

// ContentRepository handles database operations for stored content rows.
type ContentRepository struct {
	db *sqlx.DB
}

// NewContentRepository creates a new content repository.
func NewContentRepository(db *sqlx.DB) *ContentRepository {
	return &ContentRepository{db: db}
}

// Insert persists a new content row and fills in the generated id and
// created_at on the passed value. A collision on the url column is
// reported as ErrDuplicateURL.
func (r *ContentRepository) Insert(ctx context.Context, content *domain.Content) error {
	query := `
		INSERT INTO contents (content_uuid, source, url, title, author, published_at, body_ref)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`

	insertErr := r.db.QueryRowxContext(ctx, query,
		content.ContentUUID, content.Source, content.URL, content.Title,
		content.Author, content.PublishedAt, content.BodyRef,
	).Scan(&content.ID, &content.CreatedAt)
	if insertErr != nil {
		var pqErr *pq.Error
		if errors.As(insertErr, &pqErr) && pqErr.Code == uniqueViolationCode { // unique_violation
			return fmt.Errorf("url %s: %w", content.URL, ErrDuplicateURL)
		}
		return fmt.Errorf("failed to insert content: %w", insertErr)
	}

	return nil
}

// GetByID returns the content row with the given id.
func (r *ContentRepository) GetByID(ctx context.Context, id int64) (*domain.Content, error) {
	query := `SELECT ` + contentSelectColumns + ` FROM contents WHERE id = $1`

	var content domain.Content
	if getErr := r.db.GetContext(ctx, &content, query, id); getErr != nil {
		if errors.Is(getErr, sql.ErrNoRows) {
			return nil, fmt.Errorf("content %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get content by id: %w", getErr)
	}

	return &content, nil
}

// GetByURL returns the content row with the given url.
func (r *ContentRepository) GetByURL(ctx context.Context, url string) (*domain.Content, error) {
	query := `SELECT ` + contentSelectColumns + ` FROM contents WHERE url = $1`

	var content domain.Content
	if getErr := r.db.GetContext(ctx, &content, query, url); getErr != nil {
		if errors.Is(getErr, sql.ErrNoRows) {
			return nil, fmt.Errorf("url %s: %w", url, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get content by url: %w", getErr)
	}

	return &content, nil
}

// ExistsByURL reports whether a content row with the given url exists.
func (r *ContentRepository) ExistsByURL(ctx context.Context, url string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM contents WHERE url = $1)`

	var exists bool
	if checkErr := r.db.GetContext(ctx, &exists, query, url); checkErr != nil {
		return false, fmt.Errorf("failed to check content url: %w", checkErr)
	}

	return exists, nil
}

// List returns a page of content rows ordered newest first, optionally
// filtered by source.
func (r *ContentRepository) List(ctx context.Context, skip, limit int, source string) ([]*domain.Content, error) {
	query := `SELECT ` + contentSelectColumns + ` FROM contents`
	args := []any{}
	if source != "" {
		query += ` WHERE source = $1`
		args = append(args, source)
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, limit, skip)

	var contents []*domain.Content
	if listErr := r.db.SelectContext(ctx, &contents, query, args...); listErr != nil {
		return nil, fmt.Errorf("failed to list contents: %w", listErr)
	}

	if contents == nil {
		contents = []*domain.Content{}
	}

	return contents, nil
}

// Count returns the number of content rows, optionally filtered by source.
func (r *ContentRepository) Count(ctx context.Context, source string) (int64, error) {
	query := `SELECT COUNT(*) FROM contents`
	args := []any{}
	if source != "" {
		query += ` WHERE source = $1`
		args = append(args, source)
	}

	var count int64
	if countErr := r.db.GetContext(ctx, &count, query, args...); countErr != nil {
		return 0, fmt.Errorf("failed to count contents: %w", countErr)
	}

	return count, nil
}

// Delete removes the content row with the given id.
func (r *ContentRepository) Delete(ctx context.Context, id int64) error {
	result, execErr := r.db.ExecContext(ctx, `DELETE FROM contents WHERE id = $1`, id)
	return execRequireRows(result, execErr, fmt.Errorf("content %d: %w", id, ErrNotFound))
}

// execRequireRows validates that an ExecContext result affected at least
// one row. Returns err if non-nil, or notFoundErr if rowsAffected is 0.
func execRequireRows(result sql.Result, err, notFoundErr error) error {
	if err != nil {
		return err
	}
	n, affectedErr := result.RowsAffected()
	if affectedErr != nil {
		return affectedErr
	}
	if n == 0 {
		return notFoundErr
	}
	return nil
}
