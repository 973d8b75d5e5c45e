package executor

import (
	"context"
	"fmt"
	"log/slog"
	"iter"
	"maps"

	"github.com/Adithya-Monish-Kumar-K/search-core/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/search-core/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/search-core/internal/searcher/ranker"
)

type SearchResult struct {
	Query     string             `json:"query"`
	TotalHits int                `json:"total_hits"`
	Results   []ranker.ScoredDoc `json:"results"`
	TermStats map[string]int     `json:"term_stats"`
}

// Index is the part of the inverted index a query reads.
type Index interface {
	PostingsFor(term string) index.PostingList
	View(docIDs iter.Seq[string]) index.View
}

type Executor struct {
	index  Index
	scorer ranker.Scorer
	logger *slog.Logger
}

func New(idx Index, scorer ranker.Scorer) *Executor {
	if scorer == nil {
		scorer = ranker.TFIDF{}
	}
	return &Executor{
		index:  idx,
		scorer: scorer,
		logger: slog.Default().With("component", "query-executor"),
	}
}

func (e *Executor) Scorer() ranker.Scorer {
	return e.scorer
}

// Execute ranks every document containing at least one query term and
// returns the window [offset, offset+limit). A non-positive limit or negative
// offset yields an empty result.
func (e *Executor) Execute(ctx context.Context, q *parser.Query, limit, offset int) (*SearchResult, error) {
	if q.Empty() || limit <= 0 || offset < 0 {
		return emptyResult(q.Raw), nil
	}

	postings := make(map[string]index.PostingList, len(q.Terms))
	for _, term := range q.Terms {
		if pl := e.index.PostingsFor(term); len(pl) > 0 {
			postings[term] = pl
		}
	}
	candidates := unionPostings(postings)
	if len(candidates) == 0 {
		return emptyResult(q.Raw), nil
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("query %q abandoned: %w", q.Raw, err)
	}

	snap := newSnapshot(postings, e.index.View(maps.Keys(candidates)), q.Terms)
	if len(snap.docs) == 0 {
		return emptyResult(q.Raw), nil
	}

	k := offset + limit
	if k < 0 || k > len(snap.docs) {
		k = len(snap.docs)
	}
	top := ranker.NewTopK(k)
	for docID := range snap.docs {
		top.Offer(ranker.ScoredDoc{
			DocID: docID,
			Score: e.scorer.Score(q.Terms, docID, snap),
		})
	}
	ranked := top.Sorted()
	if offset >= len(ranked) {
		ranked = ranked[:0]
	} else {
		ranked = ranked[offset:]
	}

	termStats := make(map[string]int, len(postings))
	for term, pl := range postings {
		termStats[term] = len(pl)
	}
	e.logger.Debug("query executed",
		"query", q.Raw,
		"terms", q.Terms,
		"scorer", e.scorer.Name(),
		"candidates", len(snap.docs),
		"results", len(ranked),
	)
	return &SearchResult{
		Query:     q.Raw,
		TotalHits: len(snap.docs),
		Results:   ranked,
		TermStats: termStats,
	}, nil
}

func emptyResult(query string) *SearchResult {
	return &SearchResult{
		Query:     query,
		Results:   []ranker.ScoredDoc{},
		TermStats: map[string]int{},
	}
}

// querySnapshot is everything scoring reads, captured once. Document
// frequencies come from the posting lists fetched for the query; each
// candidate's length and term frequencies come from one DocStats entry, so a
// concurrent re-index is seen either fully old or fully new for that document.
type querySnapshot struct {
	postings map[string]index.PostingList
	docs     map[string]index.DocStats
	corpus   int
	avgLen   float64
}

// newSnapshot keeps the candidates whose current entry still holds at least
// one query term. A candidate found through a posting list that its writer is
// about to replace may no longer match, or may be gone entirely.
func newSnapshot(postings map[string]index.PostingList, view index.View, terms []string) *querySnapshot {
	snap := &querySnapshot{
		postings: postings,
		docs:     make(map[string]index.DocStats, len(view.Docs)),
		corpus:   view.CorpusSize,
		avgLen:   view.AverageLength,
	}
	for id, entry := range view.Docs {
		for _, term := range terms {
			if _, ok := entry.Terms[term]; ok {
				snap.docs[id] = entry
				break
			}
		}
	}
	return snap
}

func (s *querySnapshot) CorpusSize() int { return s.corpus }

func (s *querySnapshot) DocumentFrequency(term string) int { return len(s.postings[term]) }

func (s *querySnapshot) TermFrequency(term, docID string) int {
	return s.docs[docID].Terms[term].Frequency
}

func (s *querySnapshot) DocumentLength(docID string) int { return s.docs[docID].Length }

func (s *querySnapshot) AverageDocumentLength() float64 { return s.avgLen }

func unionPostings(postingsPerTerm map[string]index.PostingList) map[string]struct{} {
	result := make(map[string]struct{})
	for _, postings := range postingsPerTerm {
		for _, p := range postings {
			result[p.DocID] = struct{}{}
		}
	}
	return result
}
