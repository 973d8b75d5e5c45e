// Package engine is the in-process search core: it owns the analyzer, the
// inverted index, the autocomplete trie, the query executor and the hot-path
// caches, and exposes ingest, delete, search, autocomplete, stats and rebuild.
//
// Cache keys embed the index generation (bumped after every write) or the trie
// version, so a write makes older entries unreachable instead of serving stale
// results; the caches never change what a call returns.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/Adithya-Monish-Kumar-K/search-core/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/search-core/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/search-core/internal/indexer/trie"
	"github.com/Adithya-Monish-Kumar-K/search-core/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/search-core/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/search-core/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/search-core/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/search-core/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/search-core/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/search-core/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/search-core/pkg/tracing"
)

// Document is one record of the external document store together with what
// analysis derived from it. The index keeps only the derived part.
type Document struct {
	ID              string         `json:"id"`
	Title           string         `json:"title"`
	Body            string         `json:"body"`
	TermFrequencies map[string]int `json:"term_frequencies,omitempty"`
	Length          int            `json:"length"`
}

type Stats struct {
	CorpusSize        int     `json:"corpus_size"`
	DistinctTermCount int     `json:"distinct_term_count"`
	CacheHitRate      float64 `json:"cache_hit_rate"`
	SuggestTerms      int     `json:"suggest_terms"`
	Generation        uint64  `json:"generation"`
	Scorer            string  `json:"scorer"`
}

type Option func(*Engine)

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithRemoteCache puts remote behind both hot-path caches.
func WithRemoteCache(remote cache.Remote) Option {
	return func(e *Engine) { e.remote = remote }
}

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

type Engine struct {
	cfg          config.EngineConfig
	analyzer     *tokenizer.Analyzer
	index        *index.InvertedIndex
	trie         *trie.Trie
	executor     *executor.Executor
	searchCache  *cache.QueryCache[*executor.SearchResult]
	suggestCache *cache.QueryCache[[]string]
	remote       cache.Remote
	metrics      *metrics.Metrics
	logger       *slog.Logger
	generation   atomic.Uint64
	closed       atomic.Bool
}

func New(cfg config.EngineConfig, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrInvalidInput, err)
	}
	scorer, err := ranker.New(cfg.Scorer, cfg.BM25K1, cfg.BM25B)
	if err != nil {
		return nil, err
	}
	e := &Engine{
		cfg: cfg,
		analyzer: tokenizer.New(tokenizer.Options{
			StopWords:        cfg.StopWords,
			DisableStopWords: cfg.DisableStopWords,
			MinTermLength:    cfg.MinTermLength,
			Stemmer:          tokenizer.Stemmer(cfg.Stemmer),
		}),
		index:  index.New(cfg.IndexShards),
		trie:   trie.New(cfg.TrieMaxTerms, cfg.TrieMaxWeight),
		logger: slog.Default().With("component", "engine"),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.executor = executor.New(e.index, scorer)

	cacheOpts := cache.Options{Capacity: cfg.Cache.Capacity}
	if e.remote != nil {
		// generations are per process, so remote entries are too
		cacheOpts.Remote = e.remote
		cacheOpts.Namespace = uuid.NewString()
	}
	if e.metrics != nil {
		cacheOpts.Observer = e.metrics
	}
	searchOpts, suggestOpts := cacheOpts, cacheOpts
	searchOpts.Name, searchOpts.TTL = "search", cfg.Cache.SearchTTL
	suggestOpts.Name, suggestOpts.TTL = "suggest", cfg.Cache.SuggestTTL
	e.searchCache = cache.New[*executor.SearchResult](searchOpts)
	e.suggestCache = cache.New[[]string](suggestOpts)

	e.logger.Info("engine ready",
		"index_shards", cfg.IndexShards,
		"scorer", scorer.Name(),
		"stemmer", cfg.Stemmer,
		"cache_capacity", cfg.Cache.Capacity,
		"remote_cache", e.remote != nil,
	)
	return e, nil
}

// Analyze tokenizes title and body as one text, titles first.
func (e *Engine) Analyze(id, title, body string) Document {
	tokens := e.analyzer.Tokenize(title + " " + body)
	doc := Document{
		ID:              id,
		Title:           title,
		Body:            body,
		TermFrequencies: make(map[string]int),
		Length:          len(tokens),
	}
	for _, tok := range tokens {
		doc.TermFrequencies[tok.Term]++
	}
	return doc
}

// IngestDocument indexes or re-indexes a document. Terms new to the document
// gain one unit of autocomplete weight; a full trie is logged and otherwise
// ignored.
func (e *Engine) IngestDocument(ctx context.Context, id, title, body string) error {
	if err := e.checkOpen(); err != nil {
		return err
	}
	if id == "" {
		e.countIngestError("invalid")
		return apperrors.Invalidf("document id is required")
	}
	tokens := e.analyzer.Tokenize(title + " " + body)
	agg := tokenizer.Aggregate(tokens)
	terms := make(map[string]index.Occurrence, len(agg))
	for term, occ := range agg {
		terms[term] = index.Occurrence{Frequency: occ.Frequency, Positions: occ.Positions}
	}

	added, err := e.index.Upsert(id, terms)
	if err != nil {
		e.countIngestError("index")
		return fmt.Errorf("ingesting document %s: %w", id, err)
	}
	e.generation.Add(1)

	refused := 0
	for _, term := range added {
		if err := e.trie.Insert(term, 1); err != nil {
			refused++
		}
	}
	if refused > 0 {
		e.countIngestError("trie_capacity")
		e.logger.Warn("autocomplete trie full, terms not added",
			"doc_id", id,
			"refused_terms", refused,
			"trie_terms", e.trie.Len(),
		)
	}
	if e.metrics != nil {
		e.metrics.DocsIndexedTotal.Inc()
		e.updateGauges()
	}
	e.logger.Debug("document ingested", "doc_id", id, "terms", len(terms), "length", len(tokens))
	return nil
}

// DeleteDocument removes a document from the index. Autocomplete weights are
// left as they are.
func (e *Engine) DeleteDocument(ctx context.Context, id string) error {
	if err := e.checkOpen(); err != nil {
		return err
	}
	if err := e.index.Remove(id); err != nil {
		if errors.Is(err, apperrors.ErrDocumentNotFound) {
			e.countIngestError("not_found")
		}
		return fmt.Errorf("deleting document: %w", err)
	}
	e.generation.Add(1)
	if e.metrics != nil {
		e.metrics.DocsDeletedTotal.Inc()
		e.updateGauges()
	}
	e.logger.Debug("document deleted", "doc_id", id)
	return nil
}

// Search returns documents matching any query term, best first, in the window
// [offset, offset+limit). Results may be shared with other callers and must
// not be modified.
func (e *Engine) Search(ctx context.Context, query string, limit, offset int) (*executor.SearchResult, error) {
	return e.search(ctx, query, limit, offset, true)
}

// SearchUncached is Search without the hot-path cache.
func (e *Engine) SearchUncached(ctx context.Context, query string, limit, offset int) (*executor.SearchResult, error) {
	return e.search(ctx, query, limit, offset, false)
}

func (e *Engine) search(ctx context.Context, query string, limit, offset int, useCache bool) (*executor.SearchResult, error) {
	if err := e.checkOpen(); err != nil {
		return nil, err
	}
	start := time.Now()
	ctx, span := tracing.StartChildSpan(ctx, "engine.search")
	defer span.End()
	q := parser.Parse(query, e.analyzer)
	span.SetAttr("terms", len(q.Terms))
	if q.Empty() || limit <= 0 || offset < 0 {
		e.observeSearch("zero_result", "bypass", start, 0)
		return e.executor.Execute(ctx, q, limit, offset)
	}

	var (
		result *executor.SearchResult
		hit    bool
		err    error
	)
	if useCache {
		key := e.searchCache.Key(
			q.Key(),
			strconv.Itoa(limit),
			strconv.Itoa(offset),
			strconv.FormatUint(e.generation.Load(), 10),
		)
		result, hit, err = e.searchCache.GetOrCompute(ctx, key, func() (*executor.SearchResult, error) {
			return e.executor.Execute(ctx, q, limit, offset)
		})
	} else {
		result, err = e.executor.Execute(ctx, q, limit, offset)
	}
	if err != nil {
		e.observeSearch("error", "miss", start, 0)
		return nil, fmt.Errorf("searching %q: %w", query, err)
	}

	if e.cfg.ReinforceOnSearch {
		e.reinforce(result)
	}
	status := "miss"
	if hit {
		status = "hit"
	} else if !useCache {
		status = "bypass"
	}
	resultType := status
	if result.TotalHits == 0 {
		resultType = "zero_result"
	}
	span.SetAttr("cache", status)
	e.observeSearch(resultType, status, start, len(result.Results))
	return result, nil
}

// reinforce bumps the autocomplete weight of every query term that matched.
func (e *Engine) reinforce(result *executor.SearchResult) {
	for term, df := range result.TermStats {
		if df == 0 {
			continue
		}
		if err := e.trie.Insert(term, 1); err != nil {
			e.logger.Debug("query term not reinforced", "term", term, "error", err)
		}
	}
}

// Autocomplete returns up to limit indexed terms starting with prefix, most
// popular first.
func (e *Engine) Autocomplete(ctx context.Context, prefix string, limit int) ([]string, error) {
	if err := e.checkOpen(); err != nil {
		return nil, err
	}
	start := time.Now()
	p := e.analyzer.Normalize(prefix)
	if p == "" || limit <= 0 {
		e.observeAutocomplete("empty", start)
		return []string{}, nil
	}
	key := e.suggestCache.Key(p, strconv.Itoa(limit), strconv.FormatUint(e.trie.Version(), 10))
	suggestions, hit, err := e.suggestCache.GetOrCompute(ctx, key, func() ([]string, error) {
		return e.trie.Suggest(p, limit), nil
	})
	if err != nil {
		return nil, fmt.Errorf("autocomplete %q: %w", prefix, err)
	}
	resultType := "miss"
	if hit {
		resultType = "hit"
	}
	if len(suggestions) == 0 {
		resultType = "empty"
	}
	e.observeAutocomplete(resultType, start)
	out := make([]string, len(suggestions))
	copy(out, suggestions)
	return out, nil
}

// Stats reports corpus and cache figures. The hit rate covers both caches.
func (e *Engine) Stats() Stats {
	s, g := e.searchCache.Stats(), e.suggestCache.Stats()
	var hitRate float64
	if total := s.Hits + s.Misses + g.Hits + g.Misses; total > 0 {
		hitRate = float64(s.Hits+g.Hits) / float64(total)
	}
	return Stats{
		CorpusSize:        e.index.CorpusSize(),
		DistinctTermCount: e.index.DistinctTerms(),
		CacheHitRate:      hitRate,
		SuggestTerms:      e.trie.Len(),
		Generation:        e.generation.Load(),
		Scorer:            e.executor.Scorer().Name(),
	}
}

func (e *Engine) CacheStats() []cache.Stats {
	return []cache.Stats{e.searchCache.Stats(), e.suggestCache.Stats()}
}

// InvalidateCaches empties both caches. Correctness never requires it; it
// frees memory and, with a remote tier, remote keys.
func (e *Engine) InvalidateCaches(ctx context.Context) error {
	return errors.Join(
		e.searchCache.Invalidate(ctx),
		e.suggestCache.Invalidate(ctx),
	)
}

// Close purges the caches and rejects further calls.
func (e *Engine) Close() error {
	if !e.closed.CompareAndSwap(false, true) {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := e.InvalidateCaches(ctx)
	e.logger.Info("engine closed",
		"corpus_size", e.index.CorpusSize(),
		"distinct_terms", e.index.DistinctTerms(),
	)
	return err
}

// Ping reports whether the engine still accepts calls.
func (e *Engine) Ping(ctx context.Context) error {
	return e.checkOpen()
}

// NormalizeQuery returns the analysed, de-duplicated terms of query joined by
// spaces. Queries that search identically normalise identically.
func (e *Engine) NormalizeQuery(query string) string {
	return strings.Join(parser.Parse(query, e.analyzer).Terms, " ")
}

func (e *Engine) checkOpen() error {
	if e.closed.Load() {
		return apperrors.New(apperrors.ErrInternal, http.StatusServiceUnavailable, "engine is closed")
	}
	return nil
}

func (e *Engine) countIngestError(kind string) {
	if e.metrics != nil {
		e.metrics.IngestErrorsTotal.WithLabelValues(kind).Inc()
	}
}

func (e *Engine) updateGauges() {
	e.metrics.IndexDocuments.Set(float64(e.index.CorpusSize()))
	e.metrics.IndexTerms.Set(float64(e.index.DistinctTerms()))
	e.metrics.TrieTerms.Set(float64(e.trie.Len()))
}

func (e *Engine) observeSearch(resultType, cacheStatus string, start time.Time, returned int) {
	if e.metrics == nil {
		return
	}
	e.metrics.SearchQueriesTotal.WithLabelValues(resultType).Inc()
	e.metrics.SearchLatency.WithLabelValues(cacheStatus).Observe(time.Since(start).Seconds())
	e.metrics.SearchResultsCount.Observe(float64(returned))
}

func (e *Engine) observeAutocomplete(resultType string, start time.Time) {
	if e.metrics == nil {
		return
	}
	e.metrics.AutocompleteTotal.WithLabelValues(resultType).Inc()
	e.metrics.AutocompleteLatency.Observe(time.Since(start).Seconds())
}
