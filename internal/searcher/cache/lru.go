package cache

import (
	"container/list"
	"sync"
	"time"
)

type lruEntry[V any] struct {
	key       string
	value     V
	expiresAt time.Time
}

// LRU is a fixed-capacity cache with a per-entry TTL. Expired entries are
// dropped when touched; once the capacity is reached every Put of a new key
// evicts the least recently used entry. A single mutex guards the list and
// map, since Get reorders the list too.
type LRU[V any] struct {
	mu       sync.Mutex
	capacity int
	ll       *list.List
	items    map[string]*list.Element
	now      func() time.Time

	evictions   int64
	expirations int64
	onEvict     func()
}

func NewLRU[V any](capacity int) *LRU[V] {
	if capacity < 1 {
		capacity = 1
	}
	return &LRU[V]{
		capacity: capacity,
		ll:       list.New(),
		items:    make(map[string]*list.Element, capacity),
		now:      time.Now,
	}
}

// Get returns the value for key unless it is missing or expired.
func (c *LRU[V]) Get(key string) (V, bool) {
	var zero V
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.items[key]
	if !ok {
		return zero, false
	}
	e := el.Value.(*lruEntry[V])
	if c.expired(e) {
		c.removeElement(el)
		c.expirations++
		return zero, false
	}
	c.ll.MoveToFront(el)
	return e.value, true
}

// Put stores value under key. A ttl <= 0 means the entry only leaves by
// eviction.
func (c *LRU[V]) Put(key string, value V, ttl time.Duration) {
	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = c.now().Add(ttl)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[key]; ok {
		e := el.Value.(*lruEntry[V])
		e.value = value
		e.expiresAt = expiresAt
		c.ll.MoveToFront(el)
		return
	}
	for c.ll.Len() >= c.capacity {
		c.evictOldest()
	}
	c.items[key] = c.ll.PushFront(&lruEntry[V]{key: key, value: value, expiresAt: expiresAt})
}

func (c *LRU[V]) Remove(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.items[key]
	if !ok {
		return false
	}
	c.removeElement(el)
	return true
}

func (c *LRU[V]) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ll.Init()
	c.items = make(map[string]*list.Element, c.capacity)
}

// Len counts stored entries, including expired ones not yet touched.
func (c *LRU[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}

func (c *LRU[V]) Capacity() int {
	return c.capacity
}

// Evictions returns how many entries were dropped to respect capacity and how
// many were dropped because they expired.
func (c *LRU[V]) Evictions() (capacity, expired int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.evictions, c.expirations
}

func (c *LRU[V]) evictOldest() {
	oldest := c.ll.Back()
	if oldest == nil {
		return
	}
	e := oldest.Value.(*lruEntry[V])
	c.removeElement(oldest)
	// expired entries at the tail are reclaimed, not evicted
	if c.expired(e) {
		c.expirations++
		return
	}
	c.evictions++
	if c.onEvict != nil {
		c.onEvict()
	}
}

func (c *LRU[V]) removeElement(el *list.Element) {
	c.ll.Remove(el)
	delete(c.items, el.Value.(*lruEntry[V]).key)
}

func (c *LRU[V]) expired(e *lruEntry[V]) bool {
	return !e.expiresAt.IsZero() && !c.now().Before(e.expiresAt)
}
