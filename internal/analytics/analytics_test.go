package analytics

import (
	"fmt"
	"testing"
	"time"
)

func TestStatsCountsAndPercentiles(t *testing.T) {
	a := NewAggregator(100, 100)
	for i := 1; i <= 100; i++ {
		a.Record(SearchEvent{Query: "cars", TotalHits: 2, Latency: time.Duration(i) * time.Millisecond}, "cars")
	}
	a.Record(SearchEvent{Query: "zzz", TotalHits: 0, Latency: time.Millisecond}, "zzz")
	a.Record(SearchEvent{Query: "zzz", TotalHits: 0, Latency: time.Millisecond}, "zzz")

	s := a.Stats(0)
	if s.TotalSearches != 102 || s.ZeroResultCount != 2 {
		t.Errorf("totals = %d/%d", s.TotalSearches, s.ZeroResultCount)
	}
	if len(s.TopQueries) != 2 || s.TopQueries[0] != (QueryCount{"cars", 100}) {
		t.Errorf("top queries = %v", s.TopQueries)
	}
	if len(s.ZeroResultQueries) != 1 || s.ZeroResultQueries[0] != (QueryCount{"zzz", 2}) {
		t.Errorf("zero result queries = %v", s.ZeroResultQueries)
	}
	// ring holds the last 100 latencies: two 1ms entries then 3..100ms
	if s.P99LatencyMs != 100 {
		t.Errorf("p99 = %v", s.P99LatencyMs)
	}
}

func TestStatsTopBound(t *testing.T) {
	a := NewAggregator(10, 500)
	for i := 0; i < 150; i++ {
		a.Record(SearchEvent{TotalHits: 1}, fmt.Sprintf("q-%03d", i))
	}
	for _, tc := range []struct{ top, want int }{{0, 10}, {-3, 10}, {3, 3}, {120, 100}} {
		if got := len(a.Stats(tc.top).TopQueries); got != tc.want {
			t.Errorf("Stats(%d) returned %d queries, want %d", tc.top, got, tc.want)
		}
	}
}

func TestLatencyRingOverwritesOldest(t *testing.T) {
	a := NewAggregator(3, 10)
	for _, ms := range []int{100, 100, 100, 1, 2, 3} {
		a.Record(SearchEvent{TotalHits: 1, Latency: time.Duration(ms) * time.Millisecond}, "")
	}
	if s := a.Stats(0); s.P99LatencyMs != 3 || s.AvgLatencyMs != 2 {
		t.Errorf("stats = %+v", s)
	}
}

func TestQueryTableIsBounded(t *testing.T) {
	a := NewAggregator(10, 5)
	a.Record(SearchEvent{TotalHits: 1}, "popular")
	a.Record(SearchEvent{TotalHits: 1}, "popular")
	for i := 0; i < 20; i++ {
		a.Record(SearchEvent{TotalHits: 1}, fmt.Sprintf("rare-%d", i))
	}
	a.mu.Lock()
	n := len(a.queryCounts)
	popular := a.queryCounts["popular"]
	a.mu.Unlock()
	if n > 5 {
		t.Errorf("query table grew to %d", n)
	}
	if popular != 2 {
		t.Errorf("popular count = %d", popular)
	}
}

func TestReset(t *testing.T) {
	a := NewAggregator(0, 0)
	a.Record(SearchEvent{Latency: time.Millisecond}, "x")
	a.Reset()
	if s := a.Stats(0); s.TotalSearches != 0 || len(s.TopQueries) != 0 || s.AvgLatencyMs != 0 {
		t.Errorf("stats after reset = %+v", s)
	}
}

func TestPercentile(t *testing.T) {
	if Percentile(nil, 50) != 0 {
		t.Error("empty percentile")
	}
	sorted := []time.Duration{1, 2, 3, 4}
	if got := Percentile(sorted, 100); got != 4 {
		t.Errorf("p100 = %v", got)
	}
	if got := Percentile(sorted, 50); got != 3 {
		t.Errorf("p50 = %v", got)
	}
}
