// Package tokenizer turns raw text into normalised terms. It applies NFKC
// normalisation, lower-cases input, splits on whitespace runs, trims
// non-alphanumeric characters at word boundaries, drops stop-words and
// optionally stems what remains.
package tokenizer

import (
	"strings"
	"unicode"

	"github.com/kljensen/snowball/english"
	"golang.org/x/text/unicode/norm"
)

var defaultStopWords = []string{
	"a", "an", "and", "are", "as", "at",
	"be", "by", "for", "from", "has", "he",
	"in", "is", "it", "its", "of", "on",
	"or", "that", "the", "to", "was", "were",
	"will", "with", "this", "but", "they",
	"have", "had", "what", "when", "where",
	"who", "which", "their", "if", "each",
	"do", "not", "no", "so", "can",
}

// DefaultStopWords returns a copy of the built-in English stop-word list.
func DefaultStopWords() []string {
	out := make([]string, len(defaultStopWords))
	copy(out, defaultStopWords)
	return out
}

// Token represents a single normalised term and the offset of the word it came
// from in the original text.
type Token struct {
	Term     string
	Position int
}

// Stemmer selects the stemming strategy applied after stop-word removal.
type Stemmer string

const (
	StemNone     Stemmer = "none"
	StemLight    Stemmer = "light"
	StemSnowball Stemmer = "snowball"
)

// Options configures an Analyzer.
type Options struct {
	// StopWords replaces the default list when non-nil.
	StopWords        []string
	DisableStopWords bool
	MinTermLength    int
	Stemmer          Stemmer
}

// Analyzer is immutable after construction and safe for concurrent use.
type Analyzer struct {
	stopWords map[string]struct{}
	minLen    int
	stem      func(string) string
}

// New builds an Analyzer. Unknown stemmer names fall back to no stemming.
func New(opts Options) *Analyzer {
	a := &Analyzer{
		stopWords: make(map[string]struct{}),
		minLen:    opts.MinTermLength,
	}
	if a.minLen < 1 {
		a.minLen = 1
	}
	if !opts.DisableStopWords {
		words := opts.StopWords
		if words == nil {
			words = defaultStopWords
		}
		for _, w := range words {
			a.stopWords[strings.ToLower(strings.TrimSpace(w))] = struct{}{}
		}
	}
	switch opts.Stemmer {
	case StemLight:
		a.stem = lightStem
	case StemSnowball:
		a.stem = snowballStem
	default:
		a.stem = func(s string) string { return s }
	}
	return a
}

// Default returns an Analyzer with the default stop-words and no stemming.
func Default() *Analyzer {
	return New(Options{MinTermLength: 1, Stemmer: StemNone})
}

// Tokenize breaks text into normalised Tokens. It has no side effects and the
// same input always yields the same output.
func (a *Analyzer) Tokenize(text string) []Token {
	text = strings.ToLower(norm.NFKC.String(text))
	words := strings.Fields(text)
	tokens := make([]Token, 0, len(words))
	for pos, word := range words {
		term := a.normalizeWord(word)
		if term == "" {
			continue
		}
		tokens = append(tokens, Token{
			Term:     term,
			Position: pos,
		})
	}
	return tokens
}

// Term normalises a single word the same way Tokenize would, returning "" when
// the word would be dropped.
func (a *Analyzer) Term(word string) string {
	return a.normalizeWord(strings.ToLower(norm.NFKC.String(strings.TrimSpace(word))))
}

// Normalize applies only the character-level normalisation (NFKC, lower-case,
// boundary trimming) without stop-word removal or stemming. Autocomplete uses it
// for prefixes, where a partial word must not be stemmed or dropped.
func (a *Analyzer) Normalize(text string) string {
	text = strings.ToLower(norm.NFKC.String(text))
	return strings.Join(strings.FieldsFunc(text, unicode.IsSpace), " ")
}

func (a *Analyzer) normalizeWord(word string) string {
	word = strings.TrimFunc(word, notAlphanumeric)
	if word == "" || len([]rune(word)) < a.minLen {
		return ""
	}
	if _, isStop := a.stopWords[word]; isStop {
		return ""
	}
	return a.stem(word)
}

func notAlphanumeric(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}

// TermOccurrence aggregates the tokens of one term within a document.
type TermOccurrence struct {
	Frequency int
	Positions []int
}

// Aggregate groups tokens by term, counting occurrences and keeping positions
// in order.
func Aggregate(tokens []Token) map[string]TermOccurrence {
	out := make(map[string]TermOccurrence)
	for _, tok := range tokens {
		occ := out[tok.Term]
		occ.Frequency++
		occ.Positions = append(occ.Positions, tok.Position)
		out[tok.Term] = occ
	}
	return out
}

func snowballStem(word string) string {
	stemmed := english.Stem(word, false)
	if stemmed == "" {
		return word
	}
	return stemmed
}

var lightSuffixes = []struct {
	suffix      string
	replacement string
	minLen      int
}{
	{"ational", "ate", 2},
	{"tional", "tion", 2},
	{"encies", "ence", 2},
	{"ances", "ance", 2},
	{"ments", "ment", 2},
	{"izing", "ize", 2},
	{"ating", "ate", 2},
	{"iness", "y", 2},
	{"ously", "ous", 2},
	{"ively", "ive", 2},
	{"eness", "ene", 2},
	{"tion", "t", 3},
	{"sion", "s", 3},
	{"ying", "y", 2},
	{"ling", "l", 3},
	{"ies", "y", 2},
	{"ing", "", 3},
	{"ers", "er", 2},
	{"est", "", 3},
	{"ful", "", 3},
	{"ous", "", 3},
	{"ess", "", 3},
	{"ble", "", 3},
	{"ed", "", 3},
	{"er", "", 3},
	{"ly", "", 3},
	{"es", "", 3},
	{"ss", "ss", 2},
	{"s", "", 3},
}

// lightStem applies a small suffix-stripping stemmer. The first matching rule
// wins; rules that would leave a stem shorter than minLen are skipped.
func lightStem(word string) string {
	for _, rule := range lightSuffixes {
		if strings.HasSuffix(word, rule.suffix) {
			newWord := word[:len(word)-len(rule.suffix)] + rule.replacement
			if len(newWord) >= rule.minLen {
				return newWord
			}
		}
	}
	return word
}
