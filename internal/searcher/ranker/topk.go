package ranker

import "container/heap"

// TopK keeps the k best documents seen so far in a bounded min-heap, so
// selecting from C candidates costs O(C log k). Best means higher score, then
// lower DocID.
type TopK struct {
	k int
	h scoredDocHeap
}

func NewTopK(k int) *TopK {
	if k < 0 {
		k = 0
	}
	capacity := k
	if capacity > 1024 {
		capacity = 1024
	}
	return &TopK{k: k, h: make(scoredDocHeap, 0, capacity)}
}

func (t *TopK) Offer(doc ScoredDoc) {
	if t.k == 0 {
		return
	}
	if len(t.h) < t.k {
		heap.Push(&t.h, doc)
		return
	}
	if worse(t.h[0], doc) {
		t.h[0] = doc
		heap.Fix(&t.h, 0)
	}
}

func (t *TopK) Len() int { return len(t.h) }

// Sorted drains the heap and returns the kept documents best first.
func (t *TopK) Sorted() []ScoredDoc {
	result := make([]ScoredDoc, len(t.h))
	for i := len(result) - 1; i >= 0; i-- {
		result[i] = heap.Pop(&t.h).(ScoredDoc)
	}
	return result
}

func worse(a, b ScoredDoc) bool {
	if a.Score != b.Score {
		return a.Score < b.Score
	}
	return a.DocID > b.DocID
}

type scoredDocHeap []ScoredDoc

func (h scoredDocHeap) Len() int { return len(h) }

func (h scoredDocHeap) Less(i, j int) bool { return worse(h[i], h[j]) }

func (h scoredDocHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *scoredDocHeap) Push(x interface{}) {
	*h = append(*h, x.(ScoredDoc))
}

func (h *scoredDocHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
