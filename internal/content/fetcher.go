// Package content obtains analyzable text for items that were ingested
// without a body: it fetches the source page and reduces the HTML down to
// text within the prompt budget.
package content

import (
	"context"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-shiori/go-readability"

	"github.com/Joshua-M-Schmidt/funnel/internal/optimize"
)

const (
	defaultTimeout = 10 * time.Second
	maxBodyBytes   = 2 << 20
	userAgent      = "Mozilla/5.0 (compatible; ContentProcessor/1.0)"
)

type Fetcher struct {
	client  *http.Client
	timeout time.Duration
}

func NewFetcher(timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Fetcher{
		client:  &http.Client{Timeout: timeout},
		timeout: timeout,
	}
}

// Fetch downloads pageURL and returns reduced text for analysis. A fetch
// failure of any kind (timeout, transport error, non-2xx) degrades to the
// fallback string instead of propagating, so one dead link cannot abort a
// batch.
func (f *Fetcher) Fetch(ctx context.Context, pageURL, fallback string) string {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		log.Printf("[ERROR] failed to build request for %s: %v", pageURL, err)
		return fallback
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		log.Printf("[ERROR] failed to fetch %s: %v", pageURL, err)
		return fallback
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		log.Printf("[ERROR] fetch %s returned %s", pageURL, resp.Status)
		return fallback
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		log.Printf("[ERROR] failed to read body of %s: %v", pageURL, err)
		return fallback
	}

	return Reduce(string(body))
}

// Reduce turns a fetched HTML page into plain text within the prompt budget.
// Readability extraction is tried first; pages it cannot make sense of go
// through the lightweight reduction instead.
func Reduce(html string) string {
	if doc, err := readability.FromReader(strings.NewReader(html), nil); err == nil {
		if text := collapseSpace(doc.TextContent); text != "" {
			return optimize.Truncate(text, optimize.MaxTextLength)
		}
	}
	return optimize.Lightweight(html)
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
