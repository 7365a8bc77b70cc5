// Package server exposes the HTTP surface: batch triggers for the two
// pipelines, the weekly feed listing, and operator source management.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Joshua-M-Schmidt/funnel/internal/model"
	"github.com/Joshua-M-Schmidt/funnel/internal/source"
	"github.com/Joshua-M-Schmidt/funnel/internal/storage"
)

type Ingestor interface {
	Run(ctx context.Context) (model.IngestStats, error)
}

type Enricher interface {
	Run(ctx context.Context) (model.ProcessStats, error)
}

type FeedStore interface {
	FeedItems(ctx context.Context, filter storage.FeedFilter, limit, page int) (storage.FeedPage, error)
}

type SourceStore interface {
	ListSources(ctx context.Context) ([]model.Source, error)
	AddSource(ctx context.Context, src model.Source) (int64, error)
}

// FeedProber validates a feed URL before a source is registered.
type FeedProber func(ctx context.Context, url string) error

const feedPageSize = 20

// Server holds dependencies for the HTTP handlers.
type Server struct {
	ingestor Ingestor
	enricher Enricher
	feed     FeedStore
	sources  SourceStore
	probe    FeedProber
	logger   *slog.Logger
	mux      *http.ServeMux
}

// New wires up routes and returns a ready-to-use Server. A nil probe
// defaults to fetching the feed over the network.
func New(ingestor Ingestor, enricher Enricher, feed FeedStore, sources SourceStore, probe FeedProber, logger *slog.Logger) *Server {
	if probe == nil {
		probe = source.Probe
	}
	s := &Server{
		ingestor: ingestor,
		enricher: enricher,
		feed:     feed,
		sources:  sources,
		probe:    probe,
		logger:   logger,
		mux:      http.NewServeMux(),
	}
	s.routes()
	return s
}

// ServeHTTP makes Server satisfy the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /api/health", s.handleHealth)

	s.mux.HandleFunc("GET /api/v1/fetchSources", s.handleFetchSources)
	s.mux.HandleFunc("GET /api/v1/processContentItems", s.handleProcessContentItems)

	s.mux.HandleFunc("GET /api/v1/items", s.handleListItems)

	s.mux.HandleFunc("GET /api/v1/sources", s.handleListSources)
	s.mux.HandleFunc("POST /api/v1/sources", s.handleAddSource)
}

type batchResponse struct {
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	Statistics any    `json:"statistics,omitempty"`
	Error      string `json:"error,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleFetchSources triggers one ingestion run. Partial failures still
// return 200 with counters; 500 is reserved for the run not starting at all.
func (s *Server) handleFetchSources(w http.ResponseWriter, r *http.Request) {
	stats, err := s.ingestor.Run(r.Context())
	if err != nil {
		s.logger.Error("ingestion run failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, batchResponse{
			Message: "Failed to fetch sources",
			Error:   err.Error(),
		})
		return
	}

	s.logger.Info("ingestion run complete",
		"sources", stats.Sources, "processed", stats.Processed,
		"skipped", stats.Skipped, "errors", stats.Errors)
	writeJSON(w, http.StatusOK, batchResponse{
		Success:    true,
		Message:    "Source fetching completed",
		Statistics: stats,
	})
}

func (s *Server) handleProcessContentItems(w http.ResponseWriter, r *http.Request) {
	stats, err := s.enricher.Run(r.Context())
	if err != nil {
		s.logger.Error("enrichment run failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, batchResponse{
			Message: "Failed to process content items",
			Error:   err.Error(),
		})
		return
	}

	s.logger.Info("enrichment run complete",
		"total", stats.TotalItems, "processed", stats.Processed, "errors", stats.Errors)
	writeJSON(w, http.StatusOK, batchResponse{
		Success:    true,
		Message:    "Content processing completed",
		Statistics: stats,
	})
}

// handleListItems serves the newspaper feed. With year and week parameters
// the listing is bounded to that ISO week; without them it pages through
// everything processed.
func (s *Server) handleListItems(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var filter storage.FeedFilter
	if q.Get("year") != "" || q.Get("week") != "" {
		year, err := strconv.Atoi(q.Get("year"))
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid year"})
			return
		}
		week, err := strconv.Atoi(q.Get("week"))
		if err != nil || week < 1 || week > 53 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid week"})
			return
		}
		filter.From, filter.To = weekRange(year, week)
	}

	page := 1
	if p := q.Get("page"); p != "" {
		if parsed, err := strconv.Atoi(p); err == nil && parsed > 0 {
			page = parsed
		}
	}

	result, err := s.feed.FeedItems(r.Context(), filter, feedPageSize, page)
	if err != nil {
		s.logger.Error("feed listing failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to load items"})
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleListSources(w http.ResponseWriter, r *http.Request) {
	sources, err := s.sources.ListSources(r.Context())
	if err != nil {
		s.logger.Error("source listing failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to load sources"})
		return
	}
	writeJSON(w, http.StatusOK, sources)
}

type addSourceRequest struct {
	Name       string   `json:"name"`
	URL        string   `json:"url"`
	Categories []string `json:"categories"`
}

func (s *Server) handleAddSource(w http.ResponseWriter, r *http.Request) {
	var req addSourceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	req.URL = strings.TrimSpace(req.URL)
	if req.Name == "" || req.URL == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name and url are required"})
		return
	}

	if err := s.probe(r.Context(), req.URL); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "could not fetch a feed at the given url"})
		return
	}

	src := model.Source{
		Name:       req.Name,
		Type:       model.SourceTypeRSS,
		URL:        req.URL,
		IsActive:   true,
		Categories: req.Categories,
	}
	id, err := s.sources.AddSource(r.Context(), src)
	if err != nil {
		s.logger.Error("source create failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to create source"})
		return
	}

	src.ID = id
	s.logger.Info("source added", "id", id, "name", src.Name)
	writeJSON(w, http.StatusCreated, src)
}

// weekRange returns the UTC bounds of ISO week `week` of `year`.
func weekRange(year, week int) (time.Time, time.Time) {
	// January 4th always falls in ISO week 1.
	jan4 := time.Date(year, time.January, 4, 0, 0, 0, 0, time.UTC)
	daysSinceMonday := (int(jan4.Weekday()) + 6) % 7
	monday := jan4.AddDate(0, 0, -daysSinceMonday+(week-1)*7)
	return monday, monday.AddDate(0, 0, 7).Add(-time.Nanosecond)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
