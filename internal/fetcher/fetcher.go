// Package fetcher ingests new items from every active feed source. Entries
// already present in storage (matched by canonical URL) are skipped; failures
// of one source or one entry never abort the run.
package fetcher

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/Joshua-M-Schmidt/funnel/internal/model"
)

type ItemStore interface {
	ItemExists(ctx context.Context, originalURL string) (bool, error)
	CreateItem(ctx context.Context, item model.ContentItem) error
}

type SourceProvider interface {
	ActiveSources(ctx context.Context) ([]model.Source, error)
}

type FeedFetcher interface {
	Fetch(ctx context.Context, src model.Source) ([]model.FeedItem, error)
}

type Fetcher struct {
	items   ItemStore
	sources SourceProvider
	feeds   FeedFetcher

	fetchInterval time.Duration
}

func New(
	items ItemStore,
	sources SourceProvider,
	feeds FeedFetcher,
	fetchInterval time.Duration,
) *Fetcher {
	return &Fetcher{
		items:         items,
		sources:       sources,
		feeds:         feeds,
		fetchInterval: fetchInterval,
	}
}

// Start runs ingestion immediately and then on every tick until ctx is done.
func (f *Fetcher) Start(ctx context.Context) error {
	ticker := time.NewTicker(f.fetchInterval)
	defer ticker.Stop()

	if _, err := f.Run(ctx); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := f.Run(ctx); err != nil {
				return err
			}
		}
	}
}

// Run performs one ingestion pass over all active rss sources. Sources are
// handled strictly sequentially; a failing source is counted and skipped.
// The returned error covers only failures that happen before any per-source
// work begins.
func (f *Fetcher) Run(ctx context.Context) (model.IngestStats, error) {
	sources, err := f.sources.ActiveSources(ctx)
	if err != nil {
		return model.IngestStats{}, err
	}

	var stats model.IngestStats
	for _, src := range sources {
		if src.Type != model.SourceTypeRSS {
			continue
		}
		stats.Sources++

		log.Printf("[INFO] fetching feed for source %q", src.Name)
		items, err := f.feeds.Fetch(ctx, src)
		if err != nil {
			log.Printf("[ERROR] failed to fetch feed for source %d: %v", src.ID, err)
			stats.Errors++
			continue
		}

		f.storeItems(ctx, src, items, &stats)
	}

	log.Printf("[INFO] ingestion done: sources=%d processed=%d skipped=%d errors=%d",
		stats.Sources, stats.Processed, stats.Skipped, stats.Errors)
	return stats, nil
}

func (f *Fetcher) storeItems(ctx context.Context, src model.Source, items []model.FeedItem, stats *model.IngestStats) {
	for _, item := range items {
		link := strings.TrimSpace(item.Link)
		if link == "" {
			stats.Errors++
			continue
		}

		exists, err := f.items.ItemExists(ctx, link)
		if err != nil {
			log.Printf("[ERROR] failed to check item %s: %v", link, err)
			stats.Errors++
			continue
		}
		if exists {
			stats.Skipped++
			continue
		}

		publishDate := item.Date
		if publishDate.IsZero() {
			publishDate = time.Now().UTC()
		}

		if err := f.items.CreateItem(ctx, model.ContentItem{
			Title:       item.Title,
			Content:     item.Content,
			SourceID:    src.ID,
			OriginalURL: link,
			PublishDate: publishDate,
			IsProcessed: false,
			Priority:    model.PriorityMedium,
		}); err != nil {
			log.Printf("[ERROR] failed to create item %s: %v", link, err)
			stats.Errors++
			continue
		}
		stats.Processed++
	}
}
