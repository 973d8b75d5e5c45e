package tokenizer

import (
	"fmt"
	"strings"
	"testing"
)

var sampleTexts = map[string]string{
	"short": "The quick brown fox jumps over the lazy dog",
	"medium": `Search engines keep an inverted index that maps each term to the
        documents containing it. Queries are analysed with the same pipeline as
        documents, candidates are gathered from the posting lists and scored with
        term frequency and inverse document frequency before the best few are kept.`,
	"long": strings.Repeat(`Information retrieval systems combine tokenization, stemming
        and stop word removal to normalize text into searchable terms. Caching layers
        reduce latency for repeated queries and prefix trees serve autocomplete. `, 20),
}

func BenchmarkTokenize(b *testing.B) {
	for _, stemmer := range []Stemmer{StemNone, StemLight, StemSnowball} {
		a := New(Options{Stemmer: stemmer})
		for name, text := range sampleTexts {
			b.Run(fmt.Sprintf("%s/%s", stemmer, name), func(b *testing.B) {
				b.ReportAllocs()
				b.SetBytes(int64(len(text)))
				for i := 0; i < b.N; i++ {
					_ = a.Tokenize(text)
				}
			})
		}
	}
}

func BenchmarkTokenizeParallel(b *testing.B) {
	a := Default()
	text := sampleTexts["medium"]
	b.ReportAllocs()
	b.SetBytes(int64(len(text)))
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_ = a.Tokenize(text)
		}
	})
}

func BenchmarkNormalizePrefix(b *testing.B) {
	a := Default()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_ = a.Normalize("  Électric ")
	}
}
