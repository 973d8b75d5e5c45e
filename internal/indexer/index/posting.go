package index

import "sort"

// Posting records one document's occurrences of a term.
type Posting struct {
	DocID     string `json:"doc_id"`
	Frequency int    `json:"frequency"`
	Positions []int  `json:"positions,omitempty"`
}

// PostingList is ordered by DocID ascending. Lists handed out by the index are
// shared snapshots and must not be modified.
type PostingList []Posting

// Find returns the posting for docID using binary search.
func (pl PostingList) Find(docID string) (Posting, bool) {
	i := pl.search(docID)
	if i < len(pl) && pl[i].DocID == docID {
		return pl[i], true
	}
	return Posting{}, false
}

func (pl PostingList) search(docID string) int {
	return sort.Search(len(pl), func(i int) bool { return pl[i].DocID >= docID })
}

// with returns a new list where p is inserted or replaces the posting of the
// same document. The receiver is left untouched.
func (pl PostingList) with(p Posting) PostingList {
	i := pl.search(p.DocID)
	if i < len(pl) && pl[i].DocID == p.DocID {
		out := make(PostingList, len(pl))
		copy(out, pl)
		out[i] = p
		return out
	}
	out := make(PostingList, 0, len(pl)+1)
	out = append(out, pl[:i]...)
	out = append(out, p)
	out = append(out, pl[i:]...)
	return out
}

// without returns a new list lacking docID, or the receiver when docID is not
// present.
func (pl PostingList) without(docID string) PostingList {
	i := pl.search(docID)
	if i >= len(pl) || pl[i].DocID != docID {
		return pl
	}
	out := make(PostingList, 0, len(pl)-1)
	out = append(out, pl[:i]...)
	out = append(out, pl[i+1:]...)
	return out
}

// Occurrence is the per-term input to Upsert.
type Occurrence struct {
	Frequency int
	Positions []int
}

func samePosting(a, b Posting) bool {
	if a.Frequency != b.Frequency || len(a.Positions) != len(b.Positions) {
		return false
	}
	for i := range a.Positions {
		if a.Positions[i] != b.Positions[i] {
			return false
		}
	}
	return true
}
