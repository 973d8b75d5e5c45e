// Package index implements the in-memory inverted index: term to postings,
// plus the per-document statistics TF-IDF and BM25 need.
//
// The term space is split across lock shards. Every posting list is replaced
// wholesale on write (copy-on-write), so a reader holding a list never observes
// a partial update. Writes to the same document are serialised by a striped
// per-document lock. A document's length and term frequencies live in one
// entry that is swapped whole, so scoring through View never mixes versions.
package index

import (
	"fmt"
	"hash/fnv"
	"iter"
	"log/slog"
	"sync"
	"sync/atomic"

	apperrors "github.com/Adithya-Monish-Kumar-K/search-core/pkg/errors"
)

const docLockStripes = 64

type termShard struct {
	mu    sync.RWMutex
	terms map[string]PostingList
}

// DocStats is the indexed state of one document. It is replaced as a whole on
// every write, so Length and Terms always describe the same version. Values
// handed out share Terms with the index and must not be modified.
type DocStats struct {
	Length int
	Terms  map[string]Posting
}

// InvertedIndex is safe for concurrent use by many readers and writers.
type InvertedIndex struct {
	shards []*termShard

	docMu       sync.RWMutex
	docs        map[string]DocStats
	totalLength int64

	docLocks      [docLockStripes]sync.Mutex
	distinctTerms atomic.Int64
	logger        *slog.Logger
}

// New creates an index with numShards term lock shards.
func New(numShards int) *InvertedIndex {
	if numShards <= 0 {
		numShards = 1
	}
	idx := &InvertedIndex{
		shards: make([]*termShard, numShards),
		docs:   make(map[string]DocStats),
		logger: slog.Default().With("component", "inverted-index"),
	}
	for i := range idx.shards {
		idx.shards[i] = &termShard{terms: make(map[string]PostingList)}
	}
	return idx
}

type termOp struct {
	term    string
	posting Posting
	remove  bool
}

// Upsert replaces the indexed terms of docID with terms and returns the terms
// the document did not contain before. Terms no longer present lose their
// posting (and disappear once no document references them); new or changed
// terms get a fresh posting. Re-indexing identical content changes nothing.
// Input is validated before any mutation, so an upsert either applies fully or
// not at all.
func (m *InvertedIndex) Upsert(docID string, terms map[string]Occurrence) ([]string, error) {
	if docID == "" {
		return nil, fmt.Errorf("%w: empty document id", apperrors.ErrInvalidInput)
	}
	next := make(map[string]Posting, len(terms))
	length := 0
	for term, occ := range terms {
		if occ.Frequency < 0 {
			return nil, fmt.Errorf("%w: negative frequency %d for term %q", apperrors.ErrInvalidInput, occ.Frequency, term)
		}
		if occ.Frequency == 0 || term == "" {
			continue
		}
		positions := make([]int, len(occ.Positions))
		copy(positions, occ.Positions)
		next[term] = Posting{DocID: docID, Frequency: occ.Frequency, Positions: positions}
		length += occ.Frequency
	}

	lock := m.docLock(docID)
	lock.Lock()
	defer lock.Unlock()

	m.docMu.RLock()
	prev, existed := m.docs[docID]
	m.docMu.RUnlock()

	var added []string
	for term := range next {
		if _, ok := prev.Terms[term]; !ok {
			added = append(added, term)
		}
	}
	ops := diff(prev.Terms, next)
	if existed && len(ops) == 0 && prev.Length == length {
		return nil, nil
	}

	entry := DocStats{Length: length, Terms: next}
	if !existed {
		// readers resolve candidates through the document table, so a new
		// document is registered before its postings become reachable
		m.setDoc(docID, entry, existed, prev.Length)
		m.applyOps(ops)
		return added, nil
	}
	m.applyOps(ops)
	m.setDoc(docID, entry, existed, prev.Length)
	m.logger.Debug("document re-indexed",
		"doc_id", docID,
		"term_changes", len(ops),
		"length", length,
	)
	return added, nil
}

// Remove deletes every posting of docID and drops its statistics.
func (m *InvertedIndex) Remove(docID string) error {
	lock := m.docLock(docID)
	lock.Lock()
	defer lock.Unlock()

	m.docMu.RLock()
	prev, existed := m.docs[docID]
	m.docMu.RUnlock()
	if !existed {
		return fmt.Errorf("removing %q: %w", docID, apperrors.ErrDocumentNotFound)
	}

	m.applyOps(diff(prev.Terms, nil))

	m.docMu.Lock()
	delete(m.docs, docID)
	m.totalLength -= int64(prev.Length)
	m.docMu.Unlock()
	return nil
}

func (m *InvertedIndex) setDoc(docID string, entry DocStats, existed bool, prevLength int) {
	m.docMu.Lock()
	defer m.docMu.Unlock()
	if existed {
		m.totalLength -= int64(prevLength)
	}
	m.docs[docID] = entry
	m.totalLength += int64(entry.Length)
}
func diff(prev, next map[string]Posting) []termOp {
	ops := make([]termOp, 0, len(next))
	for term, old := range prev {
		if _, keep := next[term]; !keep {
			ops = append(ops, termOp{term: term, posting: old, remove: true})
		}
	}
	for term, p := range next {
		if old, ok := prev[term]; ok && samePosting(old, p) {
			continue
		}
		ops = append(ops, termOp{term: term, posting: p})
	}
	return ops
}

// applyOps groups operations by shard and applies each group under one write
// lock. Every touched list is rebuilt, never spliced in place.
func (m *InvertedIndex) applyOps(ops []termOp) {
	if len(ops) == 0 {
		return
	}
	byShard := make(map[int][]termOp)
	for _, op := range ops {
		s := m.shardFor(op.term)
		byShard[s] = append(byShard[s], op)
	}
	for s, group := range byShard {
		shard := m.shards[s]
		shard.mu.Lock()
		for _, op := range group {
			current := shard.terms[op.term]
			if op.remove {
				updated := current.without(op.posting.DocID)
				if len(updated) == 0 {
					if _, ok := shard.terms[op.term]; ok {
						delete(shard.terms, op.term)
						m.distinctTerms.Add(-1)
					}
					continue
				}
				shard.terms[op.term] = updated
				continue
			}
			if len(current) == 0 {
				m.distinctTerms.Add(1)
			}
			shard.terms[op.term] = current.with(op.posting)
		}
		shard.mu.Unlock()
	}
}

// PostingsFor returns the current postings of term, or nil. The returned list
// is an immutable snapshot.
func (m *InvertedIndex) PostingsFor(term string) PostingList {
	shard := m.shards[m.shardFor(term)]
	shard.mu.RLock()
	defer shard.mu.RUnlock()
	return shard.terms[term]
}

func (m *InvertedIndex) DocumentFrequency(term string) int {
	return len(m.PostingsFor(term))
}

func (m *InvertedIndex) CorpusSize() int {
	m.docMu.RLock()
	defer m.docMu.RUnlock()
	return len(m.docs)
}

func (m *InvertedIndex) DistinctTerms() int {
	return int(m.distinctTerms.Load())
}

// View is one consistent read of the document table: corpus statistics and
// the current state of the requested documents. Ids that are not indexed are
// absent from Docs.
type View struct {
	CorpusSize    int
	AverageLength float64
	Docs          map[string]DocStats
}

// View reads the corpus statistics and the entries of docIDs under a single
// lock.
func (m *InvertedIndex) View(docIDs iter.Seq[string]) View {
	m.docMu.RLock()
	defer m.docMu.RUnlock()
	v := View{
		CorpusSize: len(m.docs),
		Docs:       make(map[string]DocStats),
	}
	if len(m.docs) > 0 {
		v.AverageLength = float64(m.totalLength) / float64(len(m.docs))
	}
	for id := range docIDs {
		if entry, ok := m.docs[id]; ok {
			v.Docs[id] = entry
		}
	}
	return v
}

func (m *InvertedIndex) shardFor(term string) int {
	if len(m.shards) == 1 {
		return 0
	}
	h := fnv.New32a()
	h.Write([]byte(term))
	return int(h.Sum32() % uint32(len(m.shards)))
}

func (m *InvertedIndex) docLock(docID string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(docID))
	return &m.docLocks[h.Sum32()%docLockStripes]
}
