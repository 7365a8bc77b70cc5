// Package source fetches entries from upstream RSS feeds and maps them into
// feed items for ingestion.
package source

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/SlyMarbo/rss"
	"github.com/samber/lo"

	"github.com/Joshua-M-Schmidt/funnel/internal/model"
)

const feedTimeout = 30 * time.Second

// contextTransport injects a context into every outgoing request so that
// context cancellation and deadlines propagate through the rss library.
type contextTransport struct {
	ctx  context.Context
	base http.RoundTripper
}

func (t contextTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	return t.base.RoundTrip(req.WithContext(t.ctx))
}

// RSSFetcher retrieves a source's feed over HTTP and returns its entries.
type RSSFetcher struct{}

func NewRSSFetcher() *RSSFetcher {
	return &RSSFetcher{}
}

func (f *RSSFetcher) Fetch(ctx context.Context, src model.Source) ([]model.FeedItem, error) {
	feed, err := loadFeed(ctx, src.URL)
	if err != nil {
		return nil, err
	}

	return lo.Map(feed.Items, func(item *rss.Item, _ int) model.FeedItem {
		return model.FeedItem{
			Title:      item.Title,
			Link:       item.Link,
			Date:       item.Date,
			Categories: item.Categories,
			Content:    itemText(item),
		}
	}), nil
}

// itemText returns the richest available text for an item.
// Content (full body) is preferred over Summary (short excerpt); falling back
// to Summary avoids an extra HTTP fetch in the processor for feeds that omit
// Content.
func itemText(item *rss.Item) string {
	if c := strings.TrimSpace(item.Content); c != "" {
		return c
	}
	return strings.TrimSpace(item.Summary)
}

func loadFeed(ctx context.Context, url string) (*rss.Feed, error) {
	client := &http.Client{
		Transport: contextTransport{ctx: ctx, base: http.DefaultTransport},
		Timeout:   feedTimeout,
	}
	return rss.FetchByClient(url, client)
}

// Probe verifies that url serves a parseable feed. Used when an operator
// registers a new source so broken URLs are rejected up front.
func Probe(ctx context.Context, url string) error {
	_, err := loadFeed(ctx, url)
	return err
}
