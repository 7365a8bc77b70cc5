// Package storage persists sources and content items in Postgres. Queries
// are built with squirrel and executed through sqlx; array-valued columns go
// through pq.Array.
package storage

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS sources (
		id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL,
		type TEXT NOT NULL DEFAULT 'rss',
		url TEXT NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		categories TEXT[] NOT NULL DEFAULT '{}',
		owner TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS content_items (
		id BIGSERIAL PRIMARY KEY,
		title TEXT NOT NULL,
		content TEXT NOT NULL DEFAULT '',
		source_id BIGINT NOT NULL DEFAULT 0,
		original_url TEXT NOT NULL UNIQUE,
		publish_date TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		is_processed BOOLEAN NOT NULL DEFAULT FALSE,
		hide_from_feed BOOLEAN NOT NULL DEFAULT FALSE,
		summary TEXT NOT NULL DEFAULT '',
		keywords TEXT[] NOT NULL DEFAULT '{}',
		bullet_points TEXT[] NOT NULL DEFAULT '{}',
		category TEXT NOT NULL DEFAULT '',
		priority TEXT NOT NULL DEFAULT 'medium',
		estimated_read_time INT NOT NULL DEFAULT 0,
		philosophy_index DOUBLE PRECISION NOT NULL DEFAULT 0,
		personal_index DOUBLE PRECISION NOT NULL DEFAULT 0,
		history_index DOUBLE PRECISION NOT NULL DEFAULT 0,
		science_index DOUBLE PRECISION NOT NULL DEFAULT 0,
		ai_index DOUBLE PRECISION NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_content_items_unprocessed
		ON content_items (created_at) WHERE NOT is_processed`,
	`CREATE INDEX IF NOT EXISTS idx_content_items_publish_date
		ON content_items (publish_date DESC)`,
}

// EnsureSchema creates the tables and indexes when they do not exist yet.
func EnsureSchema(ctx context.Context, db *sqlx.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
