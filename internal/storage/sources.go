package storage

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/Joshua-M-Schmidt/funnel/internal/model"
)

type SourceStorage struct {
	db *sqlx.DB
}

func NewSourceStorage(db *sqlx.DB) *SourceStorage {
	return &SourceStorage{db: db}
}

type dbSource struct {
	ID         int64          `db:"id"`
	Name       string         `db:"name"`
	Type       string         `db:"type"`
	URL        string         `db:"url"`
	IsActive   bool           `db:"is_active"`
	Categories pq.StringArray `db:"categories"`
	Owner      string         `db:"owner"`
	CreatedAt  time.Time      `db:"created_at"`
}

func (s dbSource) toModel() model.Source {
	return model.Source{
		ID:         s.ID,
		Name:       s.Name,
		Type:       s.Type,
		URL:        s.URL,
		IsActive:   s.IsActive,
		Categories: s.Categories,
		Owner:      s.Owner,
		CreatedAt:  s.CreatedAt,
	}
}

var sourceColumns = []string{"id", "name", "type", "url", "is_active", "categories", "owner", "created_at"}

func (s *SourceStorage) list(ctx context.Context, b sq.SelectBuilder) ([]model.Source, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var rows []dbSource
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("select sources: %w", err)
	}

	sources := make([]model.Source, 0, len(rows))
	for _, row := range rows {
		sources = append(sources, row.toModel())
	}
	return sources, nil
}

// ActiveSources returns every source the ingestion pipeline should pull.
func (s *SourceStorage) ActiveSources(ctx context.Context) ([]model.Source, error) {
	return s.list(ctx, psql.
		Select(sourceColumns...).
		From("sources").
		Where(sq.Eq{"is_active": true}).
		OrderBy("id"))
}

// ListSources returns all sources, active or not, for the operator API.
func (s *SourceStorage) ListSources(ctx context.Context) ([]model.Source, error) {
	return s.list(ctx, psql.
		Select(sourceColumns...).
		From("sources").
		OrderBy("id"))
}

// AddSource stores a new feed definition and returns its id.
func (s *SourceStorage) AddSource(ctx context.Context, src model.Source) (int64, error) {
	categories := src.Categories
	if categories == nil {
		categories = []string{}
	}

	query, args, err := psql.
		Insert("sources").
		Columns("name", "type", "url", "is_active", "categories", "owner").
		Values(src.Name, src.Type, src.URL, src.IsActive, pq.Array(categories), src.Owner).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build query: %w", err)
	}

	var id int64
	if err := s.db.GetContext(ctx, &id, query, args...); err != nil {
		return 0, fmt.Errorf("insert source: %w", err)
	}
	return id, nil
}
