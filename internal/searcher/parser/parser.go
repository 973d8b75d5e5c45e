package parser

import (
	"sort"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/search-core/internal/indexer/tokenizer"
)

// Query is a free-text query reduced to its distinct analysed terms. Terms
// are matched with OR semantics.
type Query struct {
	Raw   string
	Terms []string
}

// Parse runs query through the same analyzer used at index time and keeps
// each term once, in sorted order.
func Parse(query string, analyzer *tokenizer.Analyzer) *Query {
	q := &Query{
		Raw:   query,
		Terms: make([]string, 0),
	}
	if strings.TrimSpace(query) == "" {
		return q
	}
	seen := make(map[string]struct{})
	for _, tok := range analyzer.Tokenize(query) {
		if _, dup := seen[tok.Term]; dup {
			continue
		}
		seen[tok.Term] = struct{}{}
		q.Terms = append(q.Terms, tok.Term)
	}
	sort.Strings(q.Terms)
	return q
}

func (q *Query) Empty() bool {
	return len(q.Terms) == 0
}

// Key is the normalised form used for caching: queries that analyse to the
// same term set share a key.
func (q *Query) Key() string {
	return strings.Join(q.Terms, ",")
}
