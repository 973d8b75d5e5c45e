package ranker

import (
	"fmt"
	"math"

	apperrors "github.com/Adithya-Monish-Kumar-K/search-core/pkg/errors"
)

const (
	NameTFIDF = "tfidf"
	NameBM25  = "bm25"

	DefaultK1 = 1.2
	DefaultB  = 0.75
)

type ScoredDoc struct {
	DocID string  `json:"doc_id"`
	Score float64 `json:"score"`
}

// Stats is the read-only view of index state a Scorer needs.
type Stats interface {
	CorpusSize() int
	DocumentFrequency(term string) int
	TermFrequency(term, docID string) int
	DocumentLength(docID string) int
	AverageDocumentLength() float64
}

// Scorer scores one document against the distinct terms of a query. It must
// not mutate anything.
type Scorer interface {
	Name() string
	Score(terms []string, docID string, stats Stats) float64
}

// New returns the scorer registered under name. An empty name selects TF-IDF.
func New(name string, k1, b float64) (Scorer, error) {
	switch name {
	case "", NameTFIDF:
		return TFIDF{}, nil
	case NameBM25:
		if k1 <= 0 {
			k1 = DefaultK1
		}
		if b < 0 || b > 1 {
			b = DefaultB
		}
		return BM25{K1: k1, B: b}, nil
	default:
		return nil, fmt.Errorf("%w: unknown scorer %q", apperrors.ErrInvalidInput, name)
	}
}

// TFIDF sums length-normalised term frequency times ln(1 + N/df).
type TFIDF struct{}

func (TFIDF) Name() string { return NameTFIDF }

func (TFIDF) Score(terms []string, docID string, stats Stats) float64 {
	length := stats.DocumentLength(docID)
	if length == 0 {
		return 0
	}
	corpus := stats.CorpusSize()
	var score float64
	for _, term := range terms {
		df := stats.DocumentFrequency(term)
		if df == 0 {
			continue
		}
		tf := float64(stats.TermFrequency(term, docID)) / float64(length)
		score += tf * computeTFIDFWeight(corpus, df)
	}
	return score
}

func computeTFIDFWeight(corpus, docFreq int) float64 {
	if docFreq == 0 {
		return 0
	}
	return math.Log(1 + float64(corpus)/float64(docFreq))
}

// BM25 is Okapi BM25 with term-frequency saturation K1 and length
// normalisation B.
type BM25 struct {
	K1 float64
	B  float64
}

func (BM25) Name() string { return NameBM25 }

func (s BM25) Score(terms []string, docID string, stats Stats) float64 {
	corpus := int64(stats.CorpusSize())
	avg := stats.AverageDocumentLength()
	length := float64(stats.DocumentLength(docID))
	var score float64
	for _, term := range terms {
		df := stats.DocumentFrequency(term)
		if df == 0 {
			continue
		}
		tf := float64(stats.TermFrequency(term, docID))
		if tf == 0 {
			continue
		}
		score += computeIDF(corpus, int64(df)) * s.computeTFNorm(tf, length, avg)
	}
	return score
}

func computeIDF(totalDocs int64, docFreq int64) float64 {
	numerator := float64(totalDocs) - float64(docFreq)
	denominator := float64(docFreq) + 0.5
	return math.Log(numerator/denominator + 1)
}

func (s BM25) computeTFNorm(termFreq float64, docLength float64, avgDocLength float64) float64 {
	if avgDocLength == 0 {
		return 0
	}
	lengthRatio := docLength / avgDocLength
	denominator := termFreq + s.K1*(1-s.B+s.B*lengthRatio)
	return (termFreq * (s.K1 + 1)) / denominator
}
