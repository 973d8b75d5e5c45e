package parser

import (
	"reflect"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/search-core/internal/indexer/tokenizer"
)

func TestParse(t *testing.T) {
	a := tokenizer.Default()
	tests := []struct {
		query string
		terms []string
		key   string
	}{
		{"electric", []string{"electric"}, "electric"},
		{"Cars electric CARS", []string{"cars", "electric"}, "cars,electric"},
		{"the and of", []string{}, ""},
		{"   ", []string{}, ""},
		{"gas, cars!", []string{"cars", "gas"}, "cars,gas"},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			q := Parse(tt.query, a)
			if !reflect.DeepEqual(q.Terms, tt.terms) {
				t.Errorf("terms = %v, want %v", q.Terms, tt.terms)
			}
			if q.Key() != tt.key {
				t.Errorf("key = %q, want %q", q.Key(), tt.key)
			}
			if q.Raw != tt.query {
				t.Errorf("raw = %q", q.Raw)
			}
			if q.Empty() != (len(tt.terms) == 0) {
				t.Errorf("Empty() = %v", q.Empty())
			}
		})
	}
}

func TestEquivalentQueriesShareKey(t *testing.T) {
	a := tokenizer.Default()
	if Parse("Electric cars", a).Key() != Parse("cars, the ELECTRIC", a).Key() {
		t.Error("queries with the same term set should share a key")
	}
}

func BenchmarkParse(b *testing.B) {
	a := tokenizer.Default()
	queries := map[string]string{
		"simple":     "electric cars",
		"duplicates": "cars cars Cars CARS electric",
		"long":       "search analytics platform indexing query processing ranking caching autocomplete trie",
	}
	for name, q := range queries {
		b.Run(name, func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				_ = Parse(q, a)
			}
		})
	}
}
