package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
)

// Remote is an optional second tier behind the in-process LRU.
type Remote interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	DeletePrefix(ctx context.Context, prefix string) (int64, error)
}

// Observer receives cache outcomes, usually to feed metrics.
type Observer interface {
	CacheHit(cache string)
	CacheMiss(cache string)
	CacheEviction(cache string)
}

type Options struct {
	Name     string
	Capacity int
	TTL      time.Duration
	// Namespace scopes remote keys, so processes sharing a remote never read
	// each other's entries.
	Namespace string
	Remote    Remote
	Observer  Observer
}

type Stats struct {
	Name        string  `json:"name"`
	Hits        int64   `json:"hits"`
	Misses      int64   `json:"misses"`
	HitRate     float64 `json:"hit_rate"`
	Entries     int     `json:"entries"`
	Capacity    int     `json:"capacity"`
	Evictions   int64   `json:"evictions"`
	Expirations int64   `json:"expirations"`
}

// QueryCache fronts an expensive computation keyed by a normalised request.
// Values handed out are shared between callers and must be treated as
// read-only.
type QueryCache[V any] struct {
	name     string
	prefix   string
	ttl      time.Duration
	local    *LRU[V]
	remote   Remote
	observer Observer
	group    singleflight.Group
	logger   *slog.Logger
	hits     atomic.Int64
	misses   atomic.Int64
}

func New[V any](opts Options) *QueryCache[V] {
	if opts.Name == "" {
		opts.Name = "query"
	}
	prefix := opts.Name + ":"
	if opts.Namespace != "" {
		prefix += opts.Namespace + ":"
	}
	c := &QueryCache[V]{
		name:     opts.Name,
		prefix:   prefix,
		ttl:      opts.TTL,
		local:    NewLRU[V](opts.Capacity),
		remote:   opts.Remote,
		observer: opts.Observer,
		logger:   slog.Default().With("component", "query-cache", "cache", opts.Name),
	}
	if c.observer != nil {
		c.local.onEvict = func() { c.observer.CacheEviction(c.name) }
	}
	return c
}

func (c *QueryCache[V]) Name() string {
	return c.name
}

// Key hashes the normalised request parts into a cache key.
func (c *QueryCache[V]) Key(parts ...string) string {
	raw := strings.Join(parts, "|")
	hash := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%s%x", c.prefix, hash[:16])
}

func (c *QueryCache[V]) Get(ctx context.Context, key string) (V, bool) {
	v, ok := c.lookup(ctx, key)
	c.record(ok)
	return v, ok
}

func (c *QueryCache[V]) Set(ctx context.Context, key string, value V) {
	c.local.Put(key, value, c.ttl)
	if c.remote == nil {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	if err := c.remote.Set(ctx, key, data, c.ttl); err != nil {
		c.logger.Warn("remote cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns the cached value for key, or runs computeFn once per
// key across concurrent callers and stores its result. The bool reports a
// cache hit.
func (c *QueryCache[V]) GetOrCompute(ctx context.Context, key string, computeFn func() (V, error)) (V, bool, error) {
	if v, ok := c.Get(ctx, key); ok {
		return v, true, nil
	}
	val, err, _ := c.group.Do(key, func() (interface{}, error) {
		if v, ok := c.lookup(ctx, key); ok {
			return v, nil
		}
		v, err := computeFn()
		if err != nil {
			return nil, err
		}
		c.Set(ctx, key, v)
		return v, nil
	})
	if err != nil {
		var zero V
		return zero, false, err
	}
	return val.(V), false, nil
}

// Invalidate drops every entry of this cache, locally and remotely.
func (c *QueryCache[V]) Invalidate(ctx context.Context) error {
	c.local.Purge()
	if c.remote == nil {
		c.logger.Info("cache invalidated")
		return nil
	}
	deleted, err := c.remote.DeletePrefix(ctx, c.prefix)
	if err != nil {
		return fmt.Errorf("invalidating %s cache: %w", c.name, err)
	}
	c.logger.Info("cache invalidated", "remote_keys_deleted", deleted)
	return nil
}

func (c *QueryCache[V]) HitRate() float64 {
	hits, misses := c.hits.Load(), c.misses.Load()
	if hits+misses == 0 {
		return 0
	}
	return float64(hits) / float64(hits+misses)
}

func (c *QueryCache[V]) Stats() Stats {
	evictions, expirations := c.local.Evictions()
	return Stats{
		Name:        c.name,
		Hits:        c.hits.Load(),
		Misses:      c.misses.Load(),
		HitRate:     c.HitRate(),
		Entries:     c.local.Len(),
		Capacity:    c.local.Capacity(),
		Evictions:   evictions,
		Expirations: expirations,
	}
}

func (c *QueryCache[V]) lookup(ctx context.Context, key string) (V, bool) {
	if v, ok := c.local.Get(key); ok {
		return v, true
	}
	var zero V
	if c.remote == nil {
		return zero, false
	}
	data, found, err := c.remote.Get(ctx, key)
	if err != nil {
		c.logger.Warn("remote cache get failed", "key", key, "error", err)
		return zero, false
	}
	if !found {
		return zero, false
	}
	var v V
	if err := json.Unmarshal(data, &v); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		return zero, false
	}
	c.local.Put(key, v, c.ttl)
	return v, true
}

func (c *QueryCache[V]) record(hit bool) {
	if hit {
		c.hits.Add(1)
		if c.observer != nil {
			c.observer.CacheHit(c.name)
		}
		return
	}
	c.misses.Add(1)
	if c.observer != nil {
		c.observer.CacheMiss(c.name)
	}
}
