package trie

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
	"testing"

	apperrors "github.com/Adithya-Monish-Kumar-K/search-core/pkg/errors"
)

func TestSuggestOrdering(t *testing.T) {
	tr := New(0, 0)
	for term, w := range map[string]int64{
		"electric":  3,
		"elephant":  3,
		"elevator":  7,
		"elect":     1,
		"efficient": 9,
		"gas":       4,
	} {
		if err := tr.Insert(term, w); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		prefix string
		limit  int
		want   []string
	}{
		{"ele", 10, []string{"elevator", "electric", "elephant", "elect"}},
		{"ele", 2, []string{"elevator", "electric"}},
		{"e", 3, []string{"efficient", "elevator", "electric"}},
		{"elect", 5, []string{"electric", "elect"}},
		{"electric", 5, []string{"electric"}},
		{"x", 5, []string{}},
		{"elz", 5, []string{}},
		{"", 5, []string{}},
		{"ele", 0, []string{}},
		{"ele", -1, []string{}},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s/%d", tt.prefix, tt.limit), func(t *testing.T) {
			got := tr.Suggest(tt.prefix, tt.limit)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Suggest(%q, %d) = %v, want %v", tt.prefix, tt.limit, got, tt.want)
			}
		})
	}
}

func TestInsertReinforces(t *testing.T) {
	tr := New(0, 0)
	tr.Insert("cars", 1)
	tr.Insert("cart", 2)
	if got := tr.Suggest("car", 1); !reflect.DeepEqual(got, []string{"cart"}) {
		t.Fatalf("before reinforcement = %v", got)
	}
	tr.Insert("cars", 2)
	if w, _ := tr.Weight("cars"); w != 3 {
		t.Errorf("weight(cars) = %d, want 3", w)
	}
	if got := tr.Suggest("car", 2); !reflect.DeepEqual(got, []string{"cars", "cart"}) {
		t.Errorf("after reinforcement = %v", got)
	}
	if tr.Len() != 2 {
		t.Errorf("len = %d", tr.Len())
	}
}

func TestWeightSaturates(t *testing.T) {
	tr := New(0, 10)
	tr.Insert("hot", 8)
	tr.Insert("hot", 8)
	if w, _ := tr.Weight("hot"); w != 10 {
		t.Errorf("weight = %d, want saturation at 10", w)
	}
}

func TestCapacity(t *testing.T) {
	tr := New(2, 0)
	tr.Insert("a", 1)
	tr.Insert("b", 1)
	if err := tr.Insert("c", 1); !errors.Is(err, apperrors.ErrCapacityExceeded) {
		t.Fatalf("err = %v, want capacity exceeded", err)
	}
	if err := tr.Insert("a", 1); err != nil {
		t.Errorf("reinforcing an existing term at capacity: %v", err)
	}
	if _, ok := tr.Weight("c"); ok {
		t.Error("refused term must not be stored")
	}
}

func TestInsertValidation(t *testing.T) {
	tr := New(0, 0)
	if err := tr.Insert("", 1); !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Errorf("empty term err = %v", err)
	}
	if err := tr.Insert("x", -1); !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Errorf("negative delta err = %v", err)
	}
	if tr.Version() != 0 {
		t.Error("failed inserts must not bump the version")
	}
}

func TestVersionBumps(t *testing.T) {
	tr := New(0, 0)
	v0 := tr.Version()
	tr.Insert("go", 1)
	v1 := tr.Version()
	tr.Insert("go", 1)
	if !(v0 < v1 && v1 < tr.Version()) {
		t.Error("version should increase on every insert")
	}
}

func TestUnicodeTerms(t *testing.T) {
	tr := New(0, 0)
	tr.Insert("café", 2)
	tr.Insert("cafétéria", 1)
	if got := tr.Suggest("café", 5); !reflect.DeepEqual(got, []string{"café", "cafétéria"}) {
		t.Errorf("got %v", got)
	}
}

// bruteForce is the reference ordering Suggest must agree with.
func bruteForce(weights map[string]int64, prefix string, limit int) []string {
	var matches []string
	for term := range weights {
		if strings.HasPrefix(term, prefix) {
			matches = append(matches, term)
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		if weights[matches[i]] != weights[matches[j]] {
			return weights[matches[i]] > weights[matches[j]]
		}
		return matches[i] < matches[j]
	})
	if len(matches) > limit {
		matches = matches[:limit]
	}
	if matches == nil {
		matches = []string{}
	}
	return matches
}

func TestSuggestMatchesBruteForce(t *testing.T) {
	tr := New(0, 0)
	weights := make(map[string]int64)
	letters := "abc"
	for i := 0; i < 400; i++ {
		var b strings.Builder
		for n := i; ; n /= 3 {
			b.WriteByte(letters[n%3])
			if n < 3 {
				break
			}
		}
		term := b.String()
		w := int64((i * 7) % 5)
		tr.Insert(term, w)
		weights[term] += w
	}
	for _, prefix := range []string{"a", "b", "ab", "cab", "bbb", "ca"} {
		for _, limit := range []int{1, 3, 10, 1000} {
			got := tr.Suggest(prefix, limit)
			want := bruteForce(weights, prefix, limit)
			if !reflect.DeepEqual(got, want) {
				t.Errorf("Suggest(%q, %d) = %v, want %v", prefix, limit, got, want)
			}
		}
	}
}

func TestConcurrentInsertAndSuggest(t *testing.T) {
	tr := New(0, 0)
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				tr.Insert(fmt.Sprintf("%c-term-%d", 'a'+w%4, i%50), 1)
				for _, s := range tr.Suggest(fmt.Sprintf("%c-term", 'a'+(w+1)%4), 5) {
					if !strings.HasPrefix(s, fmt.Sprintf("%c-term", 'a'+(w+1)%4)) {
						t.Errorf("suggestion %q does not match prefix", s)
					}
				}
			}
		}(w)
	}
	wg.Wait()
	if tr.Len() != 200 {
		t.Errorf("len = %d, want 200", tr.Len())
	}
	if w, _ := tr.Weight("a-term-0"); w != 20 {
		t.Errorf("weight(a-term-0) = %d, want 20", w)
	}
}

func BenchmarkSuggest(b *testing.B) {
	tr := New(0, 0)
	for i := 0; i < 50000; i++ {
		tr.Insert(fmt.Sprintf("term%d", i), int64(i%97))
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		tr.Suggest("term1", 10)
	}
}
