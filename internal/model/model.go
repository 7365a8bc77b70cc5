// Package model defines the data structures used across funnel: feed Sources,
// ingested ContentItems, the enrichment produced by the analyzer, and the
// aggregate statistics returned by the batch pipelines.
package model

import "time"

// Priority classifies how urgent an item is for the reader.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Valid reports whether p is one of the three known levels.
func (p Priority) Valid() bool {
	switch p {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

// SourceTypeRSS is the only feed type currently supported.
const SourceTypeRSS = "rss"

// Source is an operator-configured feed. Sources are read-only to the
// pipelines; they are created and edited over the HTTP API.
type Source struct {
	ID         int64     `db:"id" json:"id"`
	Name       string    `db:"name" json:"name"`
	Type       string    `db:"type" json:"type"`
	URL        string    `db:"url" json:"url"`
	IsActive   bool      `db:"is_active" json:"isActive"`
	Categories []string  `db:"categories" json:"categories"`
	Owner      string    `db:"owner" json:"owner,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
}

// ContentItem is one ingested article. OriginalURL is unique and serves as
// the sole de-duplication key; IsProcessed transitions false -> true exactly
// once, either on successful enrichment or on terminal failure.
type ContentItem struct {
	ID           int64     `db:"id" json:"id"`
	Title        string    `db:"title" json:"title"`
	Content      string    `db:"content" json:"content,omitempty"`
	SourceID     int64     `db:"source_id" json:"sourceId"`
	OriginalURL  string    `db:"original_url" json:"originalUrl"`
	PublishDate  time.Time `db:"publish_date" json:"publishDate"`
	IsProcessed  bool      `db:"is_processed" json:"isProcessed"`
	HideFromFeed bool      `db:"hide_from_feed" json:"hideFromFeed"`

	Summary           string   `db:"summary" json:"summary"`
	Keywords          []string `db:"keywords" json:"keywords"`
	BulletPoints      []string `db:"bullet_points" json:"bulletPoints"`
	Category          string   `db:"category" json:"category"`
	Priority          Priority `db:"priority" json:"priority"`
	EstimatedReadTime int      `db:"estimated_read_time" json:"estimatedReadTime"`

	PhilosophyIndex float64 `db:"philosophy_index" json:"philosophyIndex"`
	PersonalIndex   float64 `db:"personal_index" json:"personalIndex"`
	HistoryIndex    float64 `db:"history_index" json:"historyIndex"`
	ScienceIndex    float64 `db:"science_index" json:"scienceIndex"`
	AIIndex         float64 `db:"ai_index" json:"aiIndex"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// Enrichment is the normalized analyzer output persisted onto a ContentItem.
type Enrichment struct {
	Summary           string   `json:"summary"`
	Keywords          []string `json:"keywords"`
	BulletPoints      []string `json:"bulletPoints"`
	Category          string   `json:"category"`
	Priority          Priority `json:"priority"`
	EstimatedReadTime int      `json:"estimatedReadTime"`
}

// FeedItem is a single entry pulled from an upstream feed before it becomes
// a stored ContentItem.
type FeedItem struct {
	Title      string
	Link       string
	Date       time.Time
	Content    string
	Categories []string
}

// IngestStats aggregates one ingestion run.
type IngestStats struct {
	Sources   int `json:"sources"`
	Processed int `json:"processed"`
	Skipped   int `json:"skipped"`
	Errors    int `json:"errors"`
}

// ProcessStats aggregates one enrichment run.
type ProcessStats struct {
	TotalItems int `json:"totalItems"`
	Processed  int `json:"processed"`
	Errors     int `json:"errors"`
}
