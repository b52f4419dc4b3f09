package search

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/dangtom700/lexindex/internal/events"
	"github.com/dangtom700/lexindex/internal/rank"
	"github.com/dangtom700/lexindex/internal/vector"
	apperrors "github.com/dangtom700/lexindex/pkg/errors"
	"github.com/dangtom700/lexindex/pkg/logger"
	"github.com/dangtom700/lexindex/pkg/metrics"
)

// Handler serves ranking queries over HTTP. The cache and collector are
// optional; a nil cache means every query is computed, a nil collector means
// no analytics events are published.
type Handler struct {
	ranker    *rank.Ranker
	cache     *QueryCache
	collector *events.Collector
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewHandler creates a search Handler.
func NewHandler(ranker *rank.Ranker, cache *QueryCache, collector *events.Collector, m *metrics.Metrics) *Handler {
	return &Handler{
		ranker:    ranker,
		cache:     cache,
		collector: collector,
		metrics:   m,
		logger:    slog.Default().With("component", "search-handler"),
	}
}

// SearchResponse is the JSON body of a successful query.
type SearchResponse struct {
	Query     string                `json:"query"`
	Terms     []string              `json:"terms"`
	TotalDocs int                   `json:"total_docs"`
	Results   []rank.RankedDocument `json:"results"`
	CacheHit  bool                  `json:"cache_hit"`
	TookMs    int64                 `json:"took_ms"`
}

// Search handles GET /api/v1/search?q=...&limit=N.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	query := r.URL.Query().Get("q")
	if query == "" {
		h.writeError(w, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "query parameter 'q' is required"))
		return
	}
	topN := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			h.writeError(w, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "parameter 'limit' must be a non-negative integer"))
			return
		}
		topN = n
	}

	counts := vector.FromQuery(query)
	result, cacheHit, err := h.rank(ctx, counts, topN)
	if err != nil {
		took := time.Since(start)
		h.observe(took, cacheHit)
		if errors.Is(err, apperrors.ErrEmptyVector) {
			h.writeError(w, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "query contains no usable tokens"))
			return
		}
		log.Error("query failed", "query", query, "error", err)
		h.writeError(w, apperrors.New(apperrors.ErrInternal, http.StatusInternalServerError, "query evaluation failed"))
		return
	}

	took := time.Since(start)
	h.observe(took, cacheHit)
	h.track(ctx, query, result, cacheHit, took)

	log.Info("query served",
		"query", query,
		"terms", len(result.Terms),
		"returned", len(result.Results),
		"cache_hit", cacheHit,
		"took_ms", took.Milliseconds(),
	)

	h.writeJSON(w, http.StatusOK, SearchResponse{
		Query:     query,
		Terms:     result.Terms,
		TotalDocs: result.TotalDocs,
		Results:   result.Results,
		CacheHit:  cacheHit,
		TookMs:    took.Milliseconds(),
	})
}

func (h *Handler) rank(ctx context.Context, counts vector.TokenCount, topN int) (*rank.Result, bool, error) {
	if h.cache == nil {
		result, err := h.ranker.Rank(ctx, counts, topN)
		return result, false, err
	}
	return h.cache.GetOrCompute(ctx, counts, topN, func() (*rank.Result, error) {
		return h.ranker.Rank(ctx, counts, topN)
	})
}

func (h *Handler) observe(took time.Duration, cacheHit bool) {
	status := "miss"
	if cacheHit {
		status = "hit"
	}
	if h.cache == nil {
		status = "disabled"
	}
	h.metrics.QueryLatency.WithLabelValues(status).Observe(took.Seconds())
	if h.cache != nil {
		if cacheHit {
			h.metrics.CacheHitsTotal.Inc()
		} else {
			h.metrics.CacheMissesTotal.Inc()
		}
	}
}

func (h *Handler) track(ctx context.Context, query string, result *rank.Result, cacheHit bool, took time.Duration) {
	if h.collector == nil {
		return
	}
	h.collector.Track(events.SearchEvent{
		Type:      events.EventSearch,
		Query:     query,
		Terms:     result.Terms,
		TotalDocs: result.TotalDocs,
		Returned:  len(result.Results),
		CacheHit:  cacheHit,
		LatencyMs: took.Milliseconds(),
		RequestID: logger.RequestIDFromContext(ctx),
		Timestamp: time.Now().UTC(),
	})
}

// CacheStats handles GET /api/v1/cache/stats.
func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]any{"enabled": false})
		return
	}
	hits, misses := h.cache.Stats()
	total := hits + misses
	hitRate := 0.0
	if total > 0 {
		hitRate = float64(hits) / float64(total)
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"enabled":  true,
		"hits":     hits,
		"misses":   misses,
		"hit_rate": hitRate,
	})
}

// CacheInvalidate handles POST /api/v1/cache/invalidate; called after the
// index has been rebuilt out of band.
func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]any{"enabled": false})
		return
	}
	if err := h.cache.Invalidate(r.Context()); err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, apperrors.New(apperrors.ErrInternal, http.StatusInternalServerError, "cache invalidation failed"))
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"invalidated": true})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("encoding response failed", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, appErr *apperrors.AppError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(appErr.StatusCode)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": appErr.Message})
}
