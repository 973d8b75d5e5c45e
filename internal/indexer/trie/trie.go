// Package trie implements the weighted prefix tree behind autocomplete.
//
// The tree is split at the first rune of every term: each of those subtrees
// has its own RWMutex, so writers on different initial letters never contend
// and readers only wait for a writer touching the same subtree. Every node
// tracks the largest terminal weight below it, which lets Suggest run a
// best-first search instead of collecting and sorting the whole subtree.
package trie

import (
	"container/heap"
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	apperrors "github.com/Adithya-Monish-Kumar-K/search-core/pkg/errors"
)

type node struct {
	children  map[rune]*node
	terminal  bool
	term      string
	weight    int64
	maxWeight int64
}

func newNode() *node {
	return &node{children: make(map[rune]*node)}
}

type subtree struct {
	mu   sync.RWMutex
	root *node
}

// Trie is safe for concurrent use.
type Trie struct {
	mu       sync.RWMutex
	subtrees map[rune]*subtree

	maxTerms  int64
	maxWeight int64
	terms     atomic.Int64
	version   atomic.Uint64
}

// New creates a trie holding at most maxTerms distinct terms whose weights
// saturate at maxWeight. Non-positive bounds mean unbounded.
func New(maxTerms int, maxWeight int64) *Trie {
	t := &Trie{
		subtrees:  make(map[rune]*subtree),
		maxTerms:  int64(maxTerms),
		maxWeight: maxWeight,
	}
	if t.maxTerms <= 0 {
		t.maxTerms = math.MaxInt64
	}
	if t.maxWeight <= 0 {
		t.maxWeight = math.MaxInt64
	}
	return t
}

// Insert adds delta to the weight of term, creating it when absent. A new term
// is refused with ErrCapacityExceeded once the trie is full; existing terms can
// always be reinforced.
func (t *Trie) Insert(term string, delta int64) error {
	if term == "" {
		return fmt.Errorf("%w: empty term", apperrors.ErrInvalidInput)
	}
	if delta < 0 {
		return fmt.Errorf("%w: negative weight delta %d", apperrors.ErrInvalidInput, delta)
	}
	runes := []rune(term)
	st := t.subtreeFor(runes[0], true)

	st.mu.Lock()
	defer st.mu.Unlock()

	if n := walk(st.root, runes[1:]); n != nil && n.terminal {
		n.weight = t.saturatingAdd(n.weight, delta)
		t.propagate(st.root, runes[1:], n.weight)
		t.version.Add(1)
		return nil
	}

	if !t.reserve() {
		return fmt.Errorf("inserting %q: %w: trie holds %d terms", term, apperrors.ErrCapacityExceeded, t.terms.Load())
	}
	n := st.root
	for _, r := range runes[1:] {
		child, ok := n.children[r]
		if !ok {
			child = newNode()
			n.children[r] = child
		}
		n = child
	}
	n.terminal = true
	n.term = term
	n.weight = t.saturatingAdd(0, delta)
	t.propagate(st.root, runes[1:], n.weight)
	t.version.Add(1)
	return nil
}

// Suggest returns up to limit terms starting with prefix, by weight descending
// and then term ascending. prefix is matched literally.
func (t *Trie) Suggest(prefix string, limit int) []string {
	out := make([]string, 0)
	if prefix == "" || limit <= 0 {
		return out
	}
	runes := []rune(prefix)
	st := t.subtreeFor(runes[0], false)
	if st == nil {
		return out
	}

	st.mu.RLock()
	defer st.mu.RUnlock()

	start := walk(st.root, runes[1:])
	if start == nil {
		return out
	}

	pq := &queue{{node: start, priority: start.maxWeight, key: prefix}}
	for pq.Len() > 0 && len(out) < limit {
		it := heap.Pop(pq).(item)
		if it.result {
			out = append(out, it.key)
			continue
		}
		if it.node.terminal {
			heap.Push(pq, item{priority: it.node.weight, key: it.node.term, result: true})
		}
		for r, child := range it.node.children {
			heap.Push(pq, item{node: child, priority: child.maxWeight, key: it.key + string(r)})
		}
	}
	return out
}

// Weight returns the current weight of term.
func (t *Trie) Weight(term string) (int64, bool) {
	if term == "" {
		return 0, false
	}
	runes := []rune(term)
	st := t.subtreeFor(runes[0], false)
	if st == nil {
		return 0, false
	}
	st.mu.RLock()
	defer st.mu.RUnlock()
	n := walk(st.root, runes[1:])
	if n == nil || !n.terminal {
		return 0, false
	}
	return n.weight, true
}

// Len returns the number of distinct terms.
func (t *Trie) Len() int {
	return int(t.terms.Load())
}

// Version changes after every successful Insert.
func (t *Trie) Version() uint64 {
	return t.version.Load()
}

func (t *Trie) subtreeFor(first rune, create bool) *subtree {
	t.mu.RLock()
	st, ok := t.subtrees[first]
	t.mu.RUnlock()
	if ok || !create {
		return st
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if st, ok = t.subtrees[first]; ok {
		return st
	}
	st = &subtree{root: newNode()}
	t.subtrees[first] = st
	return st
}

func (t *Trie) reserve() bool {
	for {
		n := t.terms.Load()
		if n >= t.maxTerms {
			return false
		}
		if t.terms.CompareAndSwap(n, n+1) {
			return true
		}
	}
}

func (t *Trie) saturatingAdd(weight, delta int64) int64 {
	if delta > t.maxWeight-weight {
		return t.maxWeight
	}
	return weight + delta
}

// propagate raises maxWeight along the path to the node reached by rest.
// Weights only grow, so a plain max is enough.
func (t *Trie) propagate(root *node, rest []rune, weight int64) {
	n := root
	if weight > n.maxWeight {
		n.maxWeight = weight
	}
	for _, r := range rest {
		n = n.children[r]
		if weight > n.maxWeight {
			n.maxWeight = weight
		}
	}
}

func walk(n *node, rest []rune) *node {
	for _, r := range rest {
		child, ok := n.children[r]
		if !ok {
			return nil
		}
		n = child
	}
	return n
}

// item is either a subtree still to expand (priority is its maxWeight) or a
// finished term. Every term below a subtree item sorts no earlier than the
// item itself, which is what makes popping results in heap order exact.
type item struct {
	node     *node
	priority int64
	key      string
	result   bool
}

type queue []item

func (q queue) Len() int { return len(q) }

func (q queue) Less(i, j int) bool {
	if q[i].priority != q[j].priority {
		return q[i].priority > q[j].priority
	}
	if q[i].key != q[j].key {
		return q[i].key < q[j].key
	}
	return q[i].result && !q[j].result
}

func (q queue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *queue) Push(x any) {
	*q = append(*q, x.(item))
}

func (q *queue) Pop() any {
	old := *q
	n := len(old)
	it := old[n-1]
	*q = old[:n-1]
	return it
}
