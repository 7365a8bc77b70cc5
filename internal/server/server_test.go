package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Joshua-M-Schmidt/funnel/internal/model"
	"github.com/Joshua-M-Schmidt/funnel/internal/storage"
)

type fakeIngestor struct {
	stats model.IngestStats
	err   error
}

func (f *fakeIngestor) Run(context.Context) (model.IngestStats, error) { return f.stats, f.err }

type fakeEnricher struct {
	stats model.ProcessStats
	err   error
}

func (f *fakeEnricher) Run(context.Context) (model.ProcessStats, error) { return f.stats, f.err }

type fakeFeedStore struct {
	page   storage.FeedPage
	filter storage.FeedFilter
	err    error
}

func (f *fakeFeedStore) FeedItems(_ context.Context, filter storage.FeedFilter, _, _ int) (storage.FeedPage, error) {
	f.filter = filter
	return f.page, f.err
}

type fakeSourceStore struct {
	sources []model.Source
	added   []model.Source
	err     error
}

func (f *fakeSourceStore) ListSources(context.Context) ([]model.Source, error) {
	return f.sources, f.err
}

func (f *fakeSourceStore) AddSource(_ context.Context, src model.Source) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.added = append(f.added, src)
	return int64(len(f.added)), nil
}

func okProbe(context.Context, string) error { return nil }

func newTestServer(ing Ingestor, enr Enricher, feed FeedStore, src SourceStore, probe FeedProber) *Server {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	return New(ing, enr, feed, src, probe, logger)
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(&fakeIngestor{}, &fakeEnricher{}, &fakeFeedStore{}, &fakeSourceStore{}, okProbe)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestFetchSourcesEnvelope(t *testing.T) {
	ing := &fakeIngestor{stats: model.IngestStats{Sources: 2, Processed: 5, Skipped: 1}}
	srv := newTestServer(ing, &fakeEnricher{}, &fakeFeedStore{}, &fakeSourceStore{}, okProbe)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/fetchSources", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Success    bool              `json:"success"`
		Statistics model.IngestStats `json:"statistics"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.True(t, resp.Success)
	assert.Equal(t, ing.stats, resp.Statistics)
}

func TestFetchSourcesTopLevelError(t *testing.T) {
	ing := &fakeIngestor{err: errors.New("storage unreachable")}
	srv := newTestServer(ing, &fakeEnricher{}, &fakeFeedStore{}, &fakeSourceStore{}, okProbe)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/fetchSources", nil))

	require.Equal(t, http.StatusInternalServerError, rec.Code)

	var resp struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "storage unreachable")
}

func TestProcessContentItemsEnvelope(t *testing.T) {
	enr := &fakeEnricher{stats: model.ProcessStats{TotalItems: 4, Processed: 3, Errors: 1}}
	srv := newTestServer(&fakeIngestor{}, enr, &fakeFeedStore{}, &fakeSourceStore{}, okProbe)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/processContentItems", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Success    bool               `json:"success"`
		Statistics model.ProcessStats `json:"statistics"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.True(t, resp.Success)
	assert.Equal(t, enr.stats, resp.Statistics)
}

func TestListItemsWeekFilter(t *testing.T) {
	feed := &fakeFeedStore{}
	srv := newTestServer(&fakeIngestor{}, &fakeEnricher{}, feed, &fakeSourceStore{}, okProbe)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/items?year=2024&week=1", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC), feed.filter.From)
	assert.Equal(t, time.January, feed.filter.To.Month())
	assert.Equal(t, 7, feed.filter.To.Day())
}

func TestListItemsBadWeek(t *testing.T) {
	srv := newTestServer(&fakeIngestor{}, &fakeEnricher{}, &fakeFeedStore{}, &fakeSourceStore{}, okProbe)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/items?year=2024&week=99", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAddSourceValidation(t *testing.T) {
	srv := newTestServer(&fakeIngestor{}, &fakeEnricher{}, &fakeFeedStore{}, &fakeSourceStore{}, okProbe)

	body, _ := json.Marshal(addSourceRequest{Name: "", URL: ""})
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/sources", bytes.NewReader(body)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAddSourceProbeFailure(t *testing.T) {
	probe := func(context.Context, string) error { return errors.New("not a feed") }
	store := &fakeSourceStore{}
	srv := newTestServer(&fakeIngestor{}, &fakeEnricher{}, &fakeFeedStore{}, store, probe)

	body, _ := json.Marshal(addSourceRequest{Name: "Blog", URL: "https://ex.com/feed"})
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/sources", bytes.NewReader(body)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, store.added)
}

func TestAddSourceSuccess(t *testing.T) {
	store := &fakeSourceStore{}
	srv := newTestServer(&fakeIngestor{}, &fakeEnricher{}, &fakeFeedStore{}, store, okProbe)

	body, _ := json.Marshal(addSourceRequest{Name: "Blog", URL: "https://ex.com/feed", Categories: []string{"tech"}})
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/sources", bytes.NewReader(body)))

	require.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, store.added, 1)
	assert.Equal(t, model.SourceTypeRSS, store.added[0].Type)
	assert.True(t, store.added[0].IsActive)

	var created model.Source
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&created))
	assert.Equal(t, "Blog", created.Name)
	assert.Equal(t, int64(1), created.ID)
}

func TestWeekRange(t *testing.T) {
	from, to := weekRange(2024, 1)
	assert.Equal(t, time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC), from)
	assert.True(t, to.Before(time.Date(2024, time.January, 8, 0, 0, 0, 0, time.UTC)))

	// Week 1 of 2026 starts in the previous calendar year.
	from, _ = weekRange(2026, 1)
	assert.Equal(t, time.Date(2025, time.December, 29, 0, 0, 0, 0, time.UTC), from)
}
