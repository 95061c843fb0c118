package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Schema contains the SQL statements that create the contents table.
const Schema = `
CREATE TABLE IF NOT EXISTS contents (
    id BIGSERIAL PRIMARY KEY,
    content_uuid UUID NOT NULL UNIQUE,
    source TEXT NOT NULL,
    url TEXT NOT NULL UNIQUE,
    title TEXT NOT NULL DEFAULT '',
    author TEXT NOT NULL DEFAULT '',
    published_at TIMESTAMPTZ,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    body_ref TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_contents_source_created_at ON contents (source, created_at DESC);
`

// EnsureSchema applies the schema. Statements are idempotent, so running it
// on every startup is safe.
func EnsureSchema(ctx context.Context, db *sqlx.DB) error {
	if _, execErr := db.ExecContext(ctx, Schema); execErr != nil {
		return fmt.Errorf("failed to apply schema: %w", execErr)
	}
	return nil
}
