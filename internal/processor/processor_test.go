package processor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Joshua-M-Schmidt/funnel/internal/model"
)

type savedEnrichment struct {
	id      int64
	enr     model.Enrichment
	content string
}

type fakeItemStore struct {
	pending  []model.ContentItem
	saved    []savedEnrichment
	marked   []int64
	loadErr  error
	saveErr  error
	markErr  error
}

func (s *fakeItemStore) UnprocessedItems(_ context.Context, limit int) ([]model.ContentItem, error) {
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	if len(s.pending) > limit {
		return s.pending[:limit], nil
	}
	return s.pending, nil
}

func (s *fakeItemStore) SaveEnrichment(_ context.Context, id int64, enr model.Enrichment, content string) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saved = append(s.saved, savedEnrichment{id: id, enr: enr, content: content})
	return nil
}

func (s *fakeItemStore) MarkProcessed(_ context.Context, id int64) error {
	if s.markErr != nil {
		return s.markErr
	}
	s.marked = append(s.marked, id)
	return nil
}

type fakeAnalyzer struct {
	enr    model.Enrichment
	err    error
	inputs []string
}

func (a *fakeAnalyzer) Analyze(_ context.Context, _, content string) (model.Enrichment, error) {
	a.inputs = append(a.inputs, content)
	return a.enr, a.err
}

type fakePages struct {
	text    string
	fetched []string
}

func (p *fakePages) Fetch(_ context.Context, url, fallback string) string {
	p.fetched = append(p.fetched, url)
	if p.text == "" {
		return fallback
	}
	return p.text
}

func enrichment() model.Enrichment {
	return model.Enrichment{
		Summary:           "sum",
		Keywords:          []string{"k"},
		Category:          "general",
		Priority:          model.PriorityMedium,
		EstimatedReadTime: 5,
	}
}

func TestRunUsesStoredContent(t *testing.T) {
	store := &fakeItemStore{pending: []model.ContentItem{
		{ID: 1, Title: "T", Content: "stored body", OriginalURL: "https://ex.com/a"},
	}}
	analyzer := &fakeAnalyzer{enr: enrichment()}
	pages := &fakePages{text: "fetched body"}

	stats, err := New(store, analyzer, pages, 10, time.Minute).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, model.ProcessStats{TotalItems: 1, Processed: 1}, stats)
	assert.Empty(t, pages.fetched, "stored content must not trigger a fetch")
	require.Len(t, store.saved, 1)
	assert.Equal(t, "stored body", store.saved[0].content)
	assert.Equal(t, "sum", store.saved[0].enr.Summary)
}

func TestRunFetchesWhenContentMissing(t *testing.T) {
	store := &fakeItemStore{pending: []model.ContentItem{
		{ID: 1, Title: "T", OriginalURL: "https://ex.com/a"},
	}}
	analyzer := &fakeAnalyzer{enr: enrichment()}
	pages := &fakePages{text: "fetched body"}

	_, err := New(store, analyzer, pages, 10, time.Minute).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"https://ex.com/a"}, pages.fetched)
	require.Len(t, analyzer.inputs, 1)
	assert.Equal(t, "fetched body", analyzer.inputs[0])
}

func TestRunFetchFallbackContinuesWithTitle(t *testing.T) {
	store := &fakeItemStore{pending: []model.ContentItem{
		{ID: 1, Title: "Just The Title", OriginalURL: "https://ex.com/dead"},
	}}
	analyzer := &fakeAnalyzer{enr: enrichment()}
	pages := &fakePages{} // returns the fallback

	stats, err := New(store, analyzer, pages, 10, time.Minute).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Processed)
	require.Len(t, analyzer.inputs, 1)
	assert.Equal(t, "Just The Title", analyzer.inputs[0])
}

func TestRunAnalysisFailureMarksProcessed(t *testing.T) {
	store := &fakeItemStore{pending: []model.ContentItem{
		{ID: 7, Title: "Broken", Content: "body"},
	}}
	analyzer := &fakeAnalyzer{err: errors.New("response is not valid JSON")}

	stats, err := New(store, analyzer, &fakePages{}, 10, time.Minute).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, model.ProcessStats{TotalItems: 1, Errors: 1}, stats)
	assert.Empty(t, store.saved)
	assert.Equal(t, []int64{7}, store.marked)
}

func TestRunEveryItemEndsProcessed(t *testing.T) {
	store := &fakeItemStore{pending: []model.ContentItem{
		{ID: 1, Title: "ok", Content: "a"},
		{ID: 2, Title: "fails", Content: "b"},
		{ID: 3, Title: "ok too", Content: "c"},
	}}
	analyzer := &analyzeByTitle{}

	stats, err := New(store, analyzer, &fakePages{}, 10, time.Minute).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, stats.TotalItems)
	assert.Equal(t, 2, stats.Processed)
	assert.Equal(t, 1, stats.Errors)
	// Items 1 and 3 were saved (which implies processed), item 2 was marked.
	assert.Len(t, store.saved, 2)
	assert.Equal(t, []int64{2}, store.marked)
}

type analyzeByTitle struct{}

func (analyzeByTitle) Analyze(_ context.Context, title, _ string) (model.Enrichment, error) {
	if title == "fails" {
		return model.Enrichment{}, errors.New("boom")
	}
	return model.Enrichment{Priority: model.PriorityMedium}, nil
}

func TestRunPersistenceFailureCounted(t *testing.T) {
	store := &fakeItemStore{
		pending: []model.ContentItem{{ID: 1, Title: "T", Content: "body"}},
		saveErr: errors.New("db down"),
	}
	analyzer := &fakeAnalyzer{enr: enrichment()}

	stats, err := New(store, analyzer, &fakePages{}, 10, time.Minute).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Errors)
	assert.Equal(t, []int64{1}, store.marked)
}

func TestRunEmptyBatchIsNoOp(t *testing.T) {
	store := &fakeItemStore{}
	stats, err := New(store, &fakeAnalyzer{}, &fakePages{}, 10, time.Minute).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.ProcessStats{}, stats)
}

func TestRunRespectsBatchLimit(t *testing.T) {
	store := &fakeItemStore{}
	for i := int64(1); i <= 25; i++ {
		store.pending = append(store.pending, model.ContentItem{ID: i, Title: "t", Content: "c"})
	}
	analyzer := &fakeAnalyzer{enr: enrichment()}

	stats, err := New(store, analyzer, &fakePages{}, 10, time.Minute).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 10, stats.TotalItems)
	assert.Len(t, store.saved, 10)
}

func TestRunPropagatesLoadFailure(t *testing.T) {
	boom := errors.New("storage unreachable")
	store := &fakeItemStore{loadErr: boom}

	_, err := New(store, &fakeAnalyzer{}, &fakePages{}, 10, time.Minute).Run(context.Background())
	assert.ErrorIs(t, err, boom)
}
