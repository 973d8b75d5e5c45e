// Package handler exposes the search engine over HTTP: search, autocomplete,
// document writes, analysis, stats, cache control and query analytics.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Adithya-Monish-Kumar-K/search-core/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/search-core/internal/engine"
	"github.com/Adithya-Monish-Kumar-K/search-core/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/search-core/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/search-core/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/search-core/internal/server/validator"
	"github.com/Adithya-Monish-Kumar-K/search-core/internal/store"
	"github.com/Adithya-Monish-Kumar-K/search-core/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/search-core/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/search-core/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/search-core/pkg/resilience"
	"github.com/Adithya-Monish-Kumar-K/search-core/pkg/tracing"
)

const maxRequestBody = 2 << 20

// SearchEngine is the part of *engine.Engine the HTTP surface needs.
type SearchEngine interface {
	Search(ctx context.Context, query string, limit, offset int) (*executor.SearchResult, error)
	Autocomplete(ctx context.Context, prefix string, limit int) ([]string, error)
	IngestDocument(ctx context.Context, id, title, body string) error
	DeleteDocument(ctx context.Context, id string) error
	Analyze(id, title, body string) engine.Document
	NormalizeQuery(query string) string
	Stats() engine.Stats
	CacheStats() []cache.Stats
	InvalidateCaches(ctx context.Context) error
}

// DocumentStore is the durable copy written before the index.
type DocumentStore interface {
	Put(ctx context.Context, id, title, body string) error
	Delete(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (*store.StoredDocument, error)
}

// ChangePublisher forwards accepted writes to the other replicas.
type ChangePublisher interface {
	PublishUpsert(ctx context.Context, id, title, body string) error
	PublishDelete(ctx context.Context, id string) error
}

type Option func(*Handler)

func WithStore(s DocumentStore) Option {
	return func(h *Handler) { h.store = s }
}

func WithPublisher(p ChangePublisher) Option {
	return func(h *Handler) { h.publisher = p }
}

func WithAnalytics(a *analytics.Aggregator) Option {
	return func(h *Handler) { h.analytics = a }
}

type Handler struct {
	engine    SearchEngine
	store     DocumentStore
	publisher ChangePublisher
	analytics *analytics.Aggregator
	cfg       config.SearchConfig
	logger    *slog.Logger
}

func New(eng SearchEngine, cfg config.SearchConfig, opts ...Option) *Handler {
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = 10
	}
	if cfg.MaxResults < cfg.DefaultLimit {
		cfg.MaxResults = cfg.DefaultLimit
	}
	h := &Handler{
		engine: eng,
		cfg:    cfg,
		logger: slog.Default().With("component", "search-handler"),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts every route on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("GET /api/v1/autocomplete", h.Autocomplete)
	mux.HandleFunc("PUT /api/v1/documents/{id}", h.PutDocument)
	mux.HandleFunc("GET /api/v1/documents/{id}", h.GetDocument)
	mux.HandleFunc("DELETE /api/v1/documents/{id}", h.DeleteDocument)
	mux.HandleFunc("POST /api/v1/analyze", h.Analyze)
	mux.HandleFunc("GET /api/v1/stats", h.Stats)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
	mux.HandleFunc("GET /api/v1/analytics", h.Analytics)
	mux.HandleFunc("POST /api/v1/analytics/reset", h.AnalyticsReset)
}

type SearchResponse struct {
	Query     string             `json:"query"`
	TotalHits int                `json:"total_hits"`
	Limit     int                `json:"limit"`
	Offset    int                `json:"offset"`
	Results   []ranker.ScoredDoc `json:"results"`
	TookMs    float64            `json:"took_ms"`
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)
	params := r.URL.Query()

	if !params.Has("q") {
		h.writeError(w, http.StatusBadRequest, "query parameter 'q' is required")
		return
	}
	query := params.Get("q")
	limit, ok := h.parseLimit(w, params.Get("limit"))
	if !ok {
		return
	}
	offset := 0
	if s := params.Get("offset"); s != "" {
		parsed, err := strconv.Atoi(s)
		if err != nil || parsed < 0 {
			h.writeError(w, http.StatusBadRequest, "offset must be a non-negative integer")
			return
		}
		offset = parsed
	}

	ctx, span := tracing.StartSpan(ctx, "search", logger.RequestID(ctx))
	span.SetAttr("query", query)
	defer h.finishTrace(span, log)

	var result *executor.SearchResult
	err := resilience.WithTimeout(ctx, h.cfg.Timeout, "search", func(ctx context.Context) error {
		res, err := h.engine.Search(ctx, query, limit, offset)
		if err == nil {
			result = res
		}
		return err
	})
	if err != nil {
		log.Error("search failed", "query", query, "error", err)
		h.writeAppError(w, err)
		return
	}

	took := time.Since(start)
	span.SetAttr("total_hits", result.TotalHits)
	if h.analytics != nil {
		h.analytics.Record(analytics.SearchEvent{
			Query:     query,
			TotalHits: result.TotalHits,
			Returned:  len(result.Results),
			Latency:   took,
		}, h.engine.NormalizeQuery(query))
	}
	log.Info("search completed",
		"query", query,
		"total_hits", result.TotalHits,
		"returned", len(result.Results),
		"latency_ms", took.Milliseconds(),
	)
	h.writeJSON(w, http.StatusOK, SearchResponse{
		Query:     query,
		TotalHits: result.TotalHits,
		Limit:     limit,
		Offset:    offset,
		Results:   result.Results,
		TookMs:    float64(took.Microseconds()) / 1000,
	})
}

// finishTrace closes the request span and logs the tree for slow searches.
func (h *Handler) finishTrace(span *tracing.Span, log *slog.Logger) {
	span.End()
	if h.cfg.SlowQueryThreshold > 0 && span.Duration >= h.cfg.SlowQueryThreshold {
		span.Log(log, "slow search")
	}
}

func (h *Handler) Autocomplete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	params := r.URL.Query()
	prefix := params.Get("prefix")
	limit, ok := h.parseLimit(w, params.Get("limit"))
	if !ok {
		return
	}
	suggestions, err := h.engine.Autocomplete(ctx, prefix, limit)
	if err != nil {
		logger.FromContext(ctx).Error("autocomplete failed", "prefix", prefix, "error", err)
		h.writeAppError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"prefix":      prefix,
		"suggestions": suggestions,
	})
}

// PutDocument stores the document (when a store is configured), indexes it
// locally and announces the change on the feed. A feed failure is logged and
// does not fail the request: the store stays authoritative and replicas
// converge on their next rebuild.
func (h *Handler) PutDocument(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)
	id := r.PathValue("id")

	var req validator.DocumentRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := validator.ValidateDocument(id, &req); err != nil {
		h.writeValidationError(w, err)
		return
	}
	if h.store != nil {
		if err := h.store.Put(ctx, id, req.Title, req.Body); err != nil {
			log.Error("storing document failed", "doc_id", id, "error", err)
			h.writeAppError(w, err)
			return
		}
	}
	if err := h.engine.IngestDocument(ctx, id, req.Title, req.Body); err != nil {
		log.Error("indexing document failed", "doc_id", id, "error", err)
		h.writeAppError(w, err)
		return
	}
	if h.publisher != nil {
		if err := h.publisher.PublishUpsert(ctx, id, req.Title, req.Body); err != nil {
			log.Warn("publishing document change failed", "doc_id", id, "error", err)
		}
	}
	log.Info("document indexed", "doc_id", id)
	h.writeJSON(w, http.StatusOK, map[string]string{"id": id, "status": "indexed"})
}

func (h *Handler) GetDocument(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := validator.ValidateDocumentID(id); err != nil {
		h.writeValidationError(w, err)
		return
	}
	if h.store == nil {
		h.writeError(w, http.StatusNotFound, "document "+id+" not found: no document store configured")
		return
	}
	doc, err := h.store.Get(r.Context(), id)
	if err != nil {
		h.writeAppError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, doc)
}

// DeleteDocument removes the document from the store and the index. It is
// 404 only when neither knew the id.
func (h *Handler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)
	id := r.PathValue("id")
	if err := validator.ValidateDocumentID(id); err != nil {
		h.writeValidationError(w, err)
		return
	}

	storeMissing := true
	if h.store != nil {
		err := h.store.Delete(ctx, id)
		switch {
		case err == nil:
			storeMissing = false
		case !errors.Is(err, apperrors.ErrDocumentNotFound):
			log.Error("deleting stored document failed", "doc_id", id, "error", err)
			h.writeAppError(w, err)
			return
		}
	}
	err := h.engine.DeleteDocument(ctx, id)
	if err != nil && !(errors.Is(err, apperrors.ErrDocumentNotFound) && !storeMissing) {
		h.writeAppError(w, err)
		return
	}
	if h.publisher != nil {
		if err := h.publisher.PublishDelete(ctx, id); err != nil {
			log.Warn("publishing document delete failed", "doc_id", id, "error", err)
		}
	}
	log.Info("document deleted", "doc_id", id)
	h.writeJSON(w, http.StatusOK, map[string]string{"id": id, "status": "deleted"})
}

// Analyze shows how a document would be indexed without indexing it.
func (h *Handler) Analyze(w http.ResponseWriter, r *http.Request) {
	var req validator.DocumentRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := validator.ValidateText(&req); err != nil {
		h.writeValidationError(w, err)
		return
	}
	doc := h.engine.Analyze("", req.Title, req.Body)
	h.writeJSON(w, http.StatusOK, map[string]any{
		"length":           doc.Length,
		"term_frequencies": doc.TermFrequencies,
	})
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.engine.Stats())
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{"caches": h.engine.CacheStats()})
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.InvalidateCaches(r.Context()); err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "cache invalidation failed")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
}

func (h *Handler) Analytics(w http.ResponseWriter, r *http.Request) {
	if h.analytics == nil {
		h.writeError(w, http.StatusNotImplemented, "analytics are disabled")
		return
	}
	top := 0
	if s := r.URL.Query().Get("top"); s != "" {
		parsed, err := strconv.Atoi(s)
		if err != nil || parsed < 1 {
			h.writeError(w, http.StatusBadRequest, "top must be a positive integer")
			return
		}
		top = parsed
	}
	h.writeJSON(w, http.StatusOK, h.analytics.Stats(top))
}

func (h *Handler) AnalyticsReset(w http.ResponseWriter, r *http.Request) {
	if h.analytics == nil {
		h.writeError(w, http.StatusNotImplemented, "analytics are disabled")
		return
	}
	h.analytics.Reset()
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// parseLimit applies the default for an empty value and clamps to MaxResults.
func (h *Handler) parseLimit(w http.ResponseWriter, s string) (int, bool) {
	if s == "" {
		return h.cfg.DefaultLimit, true
	}
	parsed, err := strconv.Atoi(s)
	if err != nil || parsed < 1 {
		h.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
		return 0, false
	}
	return min(parsed, h.cfg.MaxResults), true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func (h *Handler) writeValidationError(w http.ResponseWriter, err error) {
	var verr *validator.ValidationError
	if errors.As(err, &verr) {
		h.writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":  "validation failed",
			"fields": verr.Fields,
		})
		return
	}
	h.writeError(w, http.StatusBadRequest, err.Error())
}

// writeAppError maps err to its status. Client errors echo the message;
// server errors stay generic.
func (h *Handler) writeAppError(w http.ResponseWriter, err error) {
	status := apperrors.HTTPStatusCode(err)
	if status >= http.StatusInternalServerError {
		var appErr *apperrors.AppError
		msg := http.StatusText(status)
		if errors.As(err, &appErr) {
			msg = appErr.Message
		}
		h.writeError(w, status, msg)
		return
	}
	h.writeError(w, status, err.Error())
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
