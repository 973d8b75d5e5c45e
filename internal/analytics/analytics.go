// Package analytics aggregates query traffic in process: search volume,
// latency percentiles, the most frequent queries and the queries that found
// nothing. Memory is bounded; old latencies roll off a ring buffer and rare
// queries are pruned when the tables fill up.
package analytics

import (
	"slices"
	"sort"
	"sync"
	"time"
)

const (
	defaultLatencyWindow = 10_000
	defaultMaxQueries    = 50_000
	defaultTopQueries    = 10
	maxTopQueries        = 100
)

// SearchEvent describes one answered search.
type SearchEvent struct {
	Query     string
	TotalHits int
	Returned  int
	Latency   time.Duration
}

type AggregatedStats struct {
	TotalSearches     int64        `json:"total_searches"`
	ZeroResultCount   int64        `json:"zero_result_count"`
	AvgLatencyMs      float64      `json:"avg_latency_ms"`
	P50LatencyMs      float64      `json:"p50_latency_ms"`
	P95LatencyMs      float64      `json:"p95_latency_ms"`
	P99LatencyMs      float64      `json:"p99_latency_ms"`
	TopQueries        []QueryCount `json:"top_queries"`
	ZeroResultQueries []QueryCount `json:"zero_result_queries"`
	QueriesPerMinute  float64      `json:"queries_per_minute"`
}

type QueryCount struct {
	Query string `json:"query"`
	Count int64  `json:"count"`
}

type Aggregator struct {
	mu                sync.Mutex
	totalSearches     int64
	zeroResults       int64
	latencies         []time.Duration
	next              int
	maxQueries        int
	queryCounts       map[string]int64
	zeroResultQueries map[string]int64
	startTime         time.Time
	now               func() time.Time
}

// NewAggregator keeps the last latencyWindow latencies and at most maxQueries
// distinct queries per table. Non-positive values select defaults.
func NewAggregator(latencyWindow, maxQueries int) *Aggregator {
	if latencyWindow <= 0 {
		latencyWindow = defaultLatencyWindow
	}
	if maxQueries <= 0 {
		maxQueries = defaultMaxQueries
	}
	return &Aggregator{
		latencies:         make([]time.Duration, 0, latencyWindow),
		maxQueries:        maxQueries,
		queryCounts:       make(map[string]int64),
		zeroResultQueries: make(map[string]int64),
		startTime:         time.Now(),
		now:               time.Now,
	}
}

// Record adds one search. Queries are counted by their normalised form so
// "Electric  Cars" and "electric cars" share a row.
func (a *Aggregator) Record(event SearchEvent, normalizedQuery string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.totalSearches++
	if len(a.latencies) < cap(a.latencies) {
		a.latencies = append(a.latencies, event.Latency)
	} else {
		a.latencies[a.next] = event.Latency
		a.next = (a.next + 1) % len(a.latencies)
	}
	if event.TotalHits == 0 {
		a.zeroResults++
	}
	if normalizedQuery == "" {
		return
	}
	increment(a.queryCounts, normalizedQuery, a.maxQueries)
	if event.TotalHits == 0 {
		increment(a.zeroResultQueries, normalizedQuery, a.maxQueries)
	}
}

// increment bumps key, first pruning queries seen once when the table is full.
func increment(counts map[string]int64, key string, limit int) {
	if _, ok := counts[key]; !ok && len(counts) >= limit {
		for q, c := range counts {
			if c <= 1 {
				delete(counts, q)
			}
		}
		if len(counts) >= limit {
			return
		}
	}
	counts[key]++
}

// Stats summarises everything recorded since the last Reset. top bounds the
// query lists; zero or less selects the default of 10, and it is capped at 100.
func (a *Aggregator) Stats(top int) AggregatedStats {
	if top <= 0 {
		top = defaultTopQueries
	}
	top = min(top, maxTopQueries)
	a.mu.Lock()
	sorted := slices.Clone(a.latencies)
	stats := AggregatedStats{
		TotalSearches:     a.totalSearches,
		ZeroResultCount:   a.zeroResults,
		TopQueries:        topN(a.queryCounts, top),
		ZeroResultQueries: topN(a.zeroResultQueries, top),
	}
	elapsed := a.now().Sub(a.startTime).Minutes()
	a.mu.Unlock()

	if len(sorted) > 0 {
		slices.Sort(sorted)
		var sum time.Duration
		for _, l := range sorted {
			sum += l
		}
		stats.AvgLatencyMs = millis(sum) / float64(len(sorted))
		stats.P50LatencyMs = millis(Percentile(sorted, 50))
		stats.P95LatencyMs = millis(Percentile(sorted, 95))
		stats.P99LatencyMs = millis(Percentile(sorted, 99))
	}
	if elapsed > 0 {
		stats.QueriesPerMinute = float64(stats.TotalSearches) / elapsed
	}
	return stats
}

// Reset clears every counter and restarts the rate clock.
func (a *Aggregator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.totalSearches, a.zeroResults, a.next = 0, 0, 0
	a.latencies = a.latencies[:0]
	clear(a.queryCounts)
	clear(a.zeroResultQueries)
	a.startTime = a.now()
}

// Percentile returns the nearest-rank pct percentile of an ascending slice.
func Percentile(sorted []time.Duration, pct int) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := (pct * len(sorted)) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

func topN(counts map[string]int64, n int) []QueryCount {
	result := make([]QueryCount, 0, len(counts))
	for query, count := range counts {
		result = append(result, QueryCount{Query: query, Count: count})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Query < result[j].Query
	})
	if len(result) > n {
		result = result[:n]
	}
	return result
}
