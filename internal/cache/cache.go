// Package cache memoizes already-resolved remote values in the key-value
// store. Each cache type lives under its own key as a single JSON map and has
// its own TTL and capacity. Staleness is observed lazily on read; there is no
// background sweep. The cache never fetches on a miss.
package cache

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"sync"
	"time"

	"github.com/dmitrijs2005/photodrop/internal/kvstore"
	"github.com/dmitrijs2005/photodrop/internal/logging"
)

// Policy describes one cache type. Capacity 0 means unbounded.
type Policy struct {
	Key      string
	TTL      time.Duration
	Capacity int
}

var (
	ThumbnailPolicy  = Policy{Key: kvstore.KeyThumbnailCache, TTL: 7 * 24 * time.Hour, Capacity: 100}
	AlbumTitlePolicy = Policy{Key: kvstore.KeyAlbumCache, TTL: 7 * 24 * time.Hour}
	ProfilePolicy    = Policy{Key: kvstore.KeyUserProfile, TTL: 24 * time.Hour, Capacity: 1}
)

// Entry is the persisted form of one cached value. Timestamps are epoch ms.
type Entry[V any] struct {
	Value          V      `json:"value"`
	CachedAt       int64  `json:"cachedAt"`
	LastAccessedAt int64  `json:"lastAccessedAt"`
	Seq            uint64 `json:"seq"`
}

// Cache is a TTL plus LRU cache of V values.
type Cache[V any] struct {
	store  kvstore.Store
	policy Policy
	now    func() time.Time
	log    logging.Logger

	// serializes read-modify-write of the backing map within this process
	mu sync.Mutex
}

type Option func(*options)

type options struct {
	now func() time.Time
	log logging.Logger
}

// WithClock overrides the wall clock.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func WithLogger(l logging.Logger) Option {
	return func(o *options) { o.log = l }
}

func New[V any](store kvstore.Store, policy Policy, opts ...Option) *Cache[V] {
	o := options{now: time.Now, log: logging.Nop()}
	for _, opt := range opts {
		opt(&o)
	}
	return &Cache[V]{
		store:  store,
		policy: policy,
		now:    o.now,
		log:    o.log.With("component", "cache", "cache", policy.Key),
	}
}

// Policy returns the cache's policy.
func (c *Cache[V]) Policy() Policy { return c.policy }

// Get returns the cached value for key. Expired entries are reported absent
// and purged. A hit refreshes the entry's last-accessed time.
func (c *Cache[V]) Get(ctx context.Context, key string) (V, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var (
		value V
		found bool
	)
	err := c.store.Update(ctx, c.policy.Key, func(raw []byte) ([]byte, error) {
		entries := c.decode(ctx, raw)
		e, ok := entries[key]
		if !ok {
			return nil, kvstore.ErrSkip
		}
		now := c.now().UnixMilli()
		if c.expired(e, now) {
			delete(entries, key)
			return c.encode(entries)
		}
		e.LastAccessedAt = now
		entries[key] = e
		value, found = e.Value, true
		return c.encode(entries)
	})
	if err != nil {
		var zero V
		return zero, false, fmt.Errorf("cache %s get: %w", c.policy.Key, err)
	}
	return value, found, nil
}

// Put inserts or overwrites key. Expired entries are purged first; when a new
// key would grow the cache past capacity, the least recently accessed 10%
// (at least one) are evicted.
func (c *Cache[V]) Put(ctx context.Context, key string, value V) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	err := c.store.Update(ctx, c.policy.Key, func(raw []byte) ([]byte, error) {
		entries := c.decode(ctx, raw)
		now := c.now().UnixMilli()

		var seq uint64
		for k, e := range entries {
			if c.expired(e, now) {
				delete(entries, k)
				continue
			}
			seq = max(seq, e.Seq)
		}

		if _, exists := entries[key]; !exists && c.policy.Capacity > 0 && len(entries) >= c.policy.Capacity {
			evicted := evictOldest(entries)
			c.log.Debug(ctx, "evicted cache entries", "count", evicted, "remaining", len(entries))
		}

		entries[key] = Entry[V]{Value: value, CachedAt: now, LastAccessedAt: now, Seq: seq + 1}
		return c.encode(entries)
	})
	if err != nil {
		return fmt.Errorf("cache %s put: %w", c.policy.Key, err)
	}
	return nil
}

// Delete removes key if present.
func (c *Cache[V]) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	err := c.store.Update(ctx, c.policy.Key, func(raw []byte) ([]byte, error) {
		entries := c.decode(ctx, raw)
		if _, ok := entries[key]; !ok {
			return nil, kvstore.ErrSkip
		}
		delete(entries, key)
		return c.encode(entries)
	})
	if err != nil {
		return fmt.Errorf("cache %s delete: %w", c.policy.Key, err)
	}
	return nil
}

// Len counts stored entries, expired ones included.
func (c *Cache[V]) Len(ctx context.Context) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	raw, err := c.store.Get(ctx, c.policy.Key)
	if err != nil {
		return 0, fmt.Errorf("cache %s len: %w", c.policy.Key, err)
	}
	return len(c.decode(ctx, raw)), nil
}

// InvalidateAll wipes the cache.
func (c *Cache[V]) InvalidateAll(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.store.Delete(ctx, c.policy.Key); err != nil {
		return fmt.Errorf("cache %s invalidate: %w", c.policy.Key, err)
	}
	return nil
}

func (c *Cache[V]) expired(e Entry[V], now int64) bool {
	return c.policy.TTL > 0 && now-e.CachedAt > c.policy.TTL.Milliseconds()
}

// decode tolerates a corrupt blob by starting over.
func (c *Cache[V]) decode(ctx context.Context, raw []byte) map[string]Entry[V] {
	entries := make(map[string]Entry[V])
	if raw == nil {
		return entries
	}
	if err := json.Unmarshal(raw, &entries); err != nil {
		c.log.Warn(ctx, "discarding unreadable cache", "error", err)
		return make(map[string]Entry[V])
	}
	return entries
}

func (c *Cache[V]) encode(entries map[string]Entry[V]) ([]byte, error) {
	if len(entries) == 0 {
		return nil, nil
	}
	return json.Marshal(entries)
}

// evictOldest removes max(1, ceil(n*0.1)) entries ordered by last access,
// then insertion sequence. It returns how many were removed.
func evictOldest[V any](entries map[string]Entry[V]) int {
	n := max(1, int(math.Ceil(float64(len(entries))*0.1)))

	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b string) int {
		ea, eb := entries[a], entries[b]
		if r := cmp.Compare(ea.LastAccessedAt, eb.LastAccessedAt); r != 0 {
			return r
		}
		return cmp.Compare(ea.Seq, eb.Seq)
	})

	n = min(n, len(keys))
	for _, k := range keys[:n] {
		delete(entries, k)
	}
	return n
}
