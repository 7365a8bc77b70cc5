// Package processor drives enrichment over unprocessed content items: it
// obtains analyzable text for each item, invokes the analyzer and persists
// the result. Every item in a batch is attempted; a failing item is marked
// processed anyway so it cannot wedge the pipeline forever.
package processor

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/Joshua-M-Schmidt/funnel/internal/model"
)

type ItemStore interface {
	UnprocessedItems(ctx context.Context, limit int) ([]model.ContentItem, error)
	SaveEnrichment(ctx context.Context, id int64, enr model.Enrichment, content string) error
	MarkProcessed(ctx context.Context, id int64) error
}

type Analyzer interface {
	Analyze(ctx context.Context, title, content string) (model.Enrichment, error)
}

type ContentSource interface {
	Fetch(ctx context.Context, url, fallback string) string
}

const defaultBatchLimit = 10

type Processor struct {
	items    ItemStore
	analyzer Analyzer
	pages    ContentSource

	batchLimit      int
	processInterval time.Duration
}

func New(
	items ItemStore,
	analyzer Analyzer,
	pages ContentSource,
	batchLimit int,
	processInterval time.Duration,
) *Processor {
	if batchLimit <= 0 {
		batchLimit = defaultBatchLimit
	}
	return &Processor{
		items:           items,
		analyzer:        analyzer,
		pages:           pages,
		batchLimit:      batchLimit,
		processInterval: processInterval,
	}
}

// Start runs a batch immediately and then on every tick until ctx is done.
func (p *Processor) Start(ctx context.Context) error {
	ticker := time.NewTicker(p.processInterval)
	defer ticker.Stop()

	if _, err := p.Run(ctx); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := p.Run(ctx); err != nil {
				return err
			}
		}
	}
}

// Run enriches one bounded batch of unprocessed items, strictly one item at
// a time so external rate limits are respected. The returned error covers
// only failures before any per-item work begins; per-item errors are counted
// and contained. Re-running with nothing pending is a no-op.
func (p *Processor) Run(ctx context.Context) (model.ProcessStats, error) {
	items, err := p.items.UnprocessedItems(ctx, p.batchLimit)
	if err != nil {
		return model.ProcessStats{}, err
	}
	if len(items) == 0 {
		log.Printf("[INFO] no unprocessed items found")
		return model.ProcessStats{}, nil
	}

	stats := model.ProcessStats{TotalItems: len(items)}
	for _, item := range items {
		if err := p.processItem(ctx, item); err != nil {
			stats.Errors++
			log.Printf("[ERROR] failed to process item %d (%s): %v", item.ID, item.Title, err)

			// Mark processed even on failure to prevent retry loops.
			if err := p.items.MarkProcessed(ctx, item.ID); err != nil {
				log.Printf("[ERROR] failed to mark item %d processed: %v", item.ID, err)
			}
			continue
		}
		stats.Processed++
	}

	log.Printf("[INFO] enrichment done: total=%d processed=%d errors=%d",
		stats.TotalItems, stats.Processed, stats.Errors)
	return stats, nil
}

func (p *Processor) processItem(ctx context.Context, item model.ContentItem) error {
	log.Printf("[INFO] processing item: %s", item.Title)

	content := strings.TrimSpace(item.Content)
	if content == "" && item.OriginalURL != "" {
		// Fetch failures degrade to the title inside the content source.
		content = p.pages.Fetch(ctx, item.OriginalURL, item.Title)
	}
	if content == "" {
		content = item.Title
	}

	enr, err := p.analyzer.Analyze(ctx, item.Title, content)
	if err != nil {
		return fmt.Errorf("analyze: %w", err)
	}

	if err := p.items.SaveEnrichment(ctx, item.ID, enr, content); err != nil {
		return fmt.Errorf("save enrichment: %w", err)
	}

	return nil
}
