package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/Joshua-M-Schmidt/funnel/internal/model"
)

type ItemStorage struct {
	db *sqlx.DB
}

func NewItemStorage(db *sqlx.DB) *ItemStorage {
	return &ItemStorage{db: db}
}

type dbItem struct {
	ID                int64          `db:"id"`
	Title             string         `db:"title"`
	Content           string         `db:"content"`
	SourceID          int64          `db:"source_id"`
	OriginalURL       string         `db:"original_url"`
	PublishDate       time.Time      `db:"publish_date"`
	IsProcessed       bool           `db:"is_processed"`
	HideFromFeed      bool           `db:"hide_from_feed"`
	Summary           string         `db:"summary"`
	Keywords          pq.StringArray `db:"keywords"`
	BulletPoints      pq.StringArray `db:"bullet_points"`
	Category          string         `db:"category"`
	Priority          string         `db:"priority"`
	EstimatedReadTime int            `db:"estimated_read_time"`
	PhilosophyIndex   float64        `db:"philosophy_index"`
	PersonalIndex     float64        `db:"personal_index"`
	HistoryIndex      float64        `db:"history_index"`
	ScienceIndex      float64        `db:"science_index"`
	AIIndex           float64        `db:"ai_index"`
	CreatedAt         time.Time      `db:"created_at"`
}

func (i dbItem) toModel() model.ContentItem {
	return model.ContentItem{
		ID:                i.ID,
		Title:             i.Title,
		Content:           i.Content,
		SourceID:          i.SourceID,
		OriginalURL:       i.OriginalURL,
		PublishDate:       i.PublishDate,
		IsProcessed:       i.IsProcessed,
		HideFromFeed:      i.HideFromFeed,
		Summary:           i.Summary,
		Keywords:          i.Keywords,
		BulletPoints:      i.BulletPoints,
		Category:          i.Category,
		Priority:          model.Priority(i.Priority),
		EstimatedReadTime: i.EstimatedReadTime,
		PhilosophyIndex:   i.PhilosophyIndex,
		PersonalIndex:     i.PersonalIndex,
		HistoryIndex:      i.HistoryIndex,
		ScienceIndex:      i.ScienceIndex,
		AIIndex:           i.AIIndex,
		CreatedAt:         i.CreatedAt,
	}
}

var itemColumns = []string{
	"id", "title", "content", "source_id", "original_url", "publish_date",
	"is_processed", "hide_from_feed", "summary", "keywords", "bullet_points",
	"category", "priority", "estimated_read_time", "philosophy_index",
	"personal_index", "history_index", "science_index", "ai_index", "created_at",
}

// ItemExists reports whether an item with the given canonical URL is already
// stored. This is the sole de-duplication check used by ingestion.
func (s *ItemStorage) ItemExists(ctx context.Context, originalURL string) (bool, error) {
	query, args, err := psql.
		Select("1").
		From("content_items").
		Where(sq.Eq{"original_url": originalURL}).
		Limit(1).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build query: %w", err)
	}

	var one int
	err = s.db.GetContext(ctx, &one, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check item: %w", err)
	}
	return true, nil
}

// CreateItem inserts a freshly ingested, unprocessed item.
func (s *ItemStorage) CreateItem(ctx context.Context, item model.ContentItem) error {
	keywords := item.Keywords
	if keywords == nil {
		keywords = []string{}
	}
	bullets := item.BulletPoints
	if bullets == nil {
		bullets = []string{}
	}
	priority := item.Priority
	if !priority.Valid() {
		priority = model.PriorityMedium
	}

	query, args, err := psql.
		Insert("content_items").
		Columns("title", "content", "source_id", "original_url", "publish_date",
			"is_processed", "hide_from_feed", "summary", "keywords",
			"bullet_points", "category", "priority", "estimated_read_time").
		Values(item.Title, item.Content, item.SourceID, item.OriginalURL, item.PublishDate,
			item.IsProcessed, item.HideFromFeed, item.Summary, pq.Array(keywords),
			pq.Array(bullets), item.Category, string(priority), item.EstimatedReadTime).
		ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert item: %w", err)
	}
	return nil
}

// UnprocessedItems returns up to limit items awaiting enrichment, oldest
// first so nothing starves.
func (s *ItemStorage) UnprocessedItems(ctx context.Context, limit int) ([]model.ContentItem, error) {
	query, args, err := psql.
		Select(itemColumns...).
		From("content_items").
		Where(sq.Eq{"is_processed": false}).
		OrderBy("created_at").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var rows []dbItem
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("select unprocessed: %w", err)
	}

	items := make([]model.ContentItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toModel())
	}
	return items, nil
}

// SaveEnrichment persists the analyzer output together with the content that
// was analyzed and flips the item to processed in the same write.
func (s *ItemStorage) SaveEnrichment(ctx context.Context, id int64, enr model.Enrichment, content string) error {
	query, args, err := psql.
		Update("content_items").
		Set("summary", enr.Summary).
		Set("keywords", pq.Array(enr.Keywords)).
		Set("bullet_points", pq.Array(enr.BulletPoints)).
		Set("category", enr.Category).
		Set("priority", string(enr.Priority)).
		Set("estimated_read_time", enr.EstimatedReadTime).
		Set("content", content).
		Set("is_processed", true).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update item %d: %w", id, err)
	}
	return nil
}

// MarkProcessed flips only the processed flag, leaving enrichment fields
// untouched. Used after a terminal per-item failure.
func (s *ItemStorage) MarkProcessed(ctx context.Context, id int64) error {
	query, args, err := psql.
		Update("content_items").
		Set("is_processed", true).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("mark item %d: %w", id, err)
	}
	return nil
}

// FeedFilter narrows the feed listing; zero time bounds mean unbounded.
type FeedFilter struct {
	From time.Time
	To   time.Time
}

// FeedPage is one page of the rendered feed plus pagination metadata.
type FeedPage struct {
	Items       []model.ContentItem `json:"items"`
	TotalDocs   int                 `json:"totalDocs"`
	TotalPages  int                 `json:"totalPages"`
	Page        int                 `json:"page"`
	HasNextPage bool                `json:"hasNextPage"`
}

// FeedItems lists processed, visible items newest first, optionally bounded
// to a publish-date range, paginated.
func (s *ItemStorage) FeedItems(ctx context.Context, filter FeedFilter, limit, page int) (FeedPage, error) {
	if limit <= 0 {
		limit = 20
	}
	if page <= 0 {
		page = 1
	}

	where := sq.And{
		sq.Eq{"is_processed": true},
		sq.Eq{"hide_from_feed": false},
	}
	if !filter.From.IsZero() {
		where = append(where, sq.GtOrEq{"publish_date": filter.From})
	}
	if !filter.To.IsZero() {
		where = append(where, sq.LtOrEq{"publish_date": filter.To})
	}

	countSQL, countArgs, err := psql.
		Select("COUNT(*)").
		From("content_items").
		Where(where).
		ToSql()
	if err != nil {
		return FeedPage{}, fmt.Errorf("build count query: %w", err)
	}

	var total int
	if err := s.db.GetContext(ctx, &total, countSQL, countArgs...); err != nil {
		return FeedPage{}, fmt.Errorf("count feed items: %w", err)
	}

	query, args, err := psql.
		Select(itemColumns...).
		From("content_items").
		Where(where).
		OrderBy("publish_date DESC").
		Limit(uint64(limit)).
		Offset(uint64((page - 1) * limit)).
		ToSql()
	if err != nil {
		return FeedPage{}, fmt.Errorf("build query: %w", err)
	}

	var rows []dbItem
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return FeedPage{}, fmt.Errorf("select feed items: %w", err)
	}

	items := make([]model.ContentItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toModel())
	}

	totalPages := (total + limit - 1) / limit
	return FeedPage{
		Items:       items,
		TotalDocs:   total,
		TotalPages:  totalPages,
		Page:        page,
		HasNextPage: page < totalPages,
	}, nil
}
