package embed

import (
	"container/list"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"sync/atomic"
)

// DefaultCacheSize is the default number of embeddings kept in memory.
const DefaultCacheSize = 4096

// Cache is a bounded LRU of embeddings keyed by the SHA-256 of model+text.
// Keying on the full content hash means two distinct texts can never collide
// on a shared prefix; an earlier revision keyed on the first N characters and
// returned wrong vectors for long texts with identical openings.
//
// The cache is best-effort: a miss costs one extra provider call and a racing
// insert for the same key resolves to either value, which is fine because
// embeddings for identical text are interchangeable.
type Cache struct {
	mu       sync.Mutex
	capacity int
	entries  map[string]*list.Element
	order    *list.List // front = most recently used

	hits   atomic.Int64
	misses atomic.Int64
}

type cacheEntry struct {
	key string
	vec []float32
}

// NewCache creates an LRU cache holding up to capacity embeddings.
func NewCache(capacity int) *Cache {
	if capacity <= 0 {
		capacity = DefaultCacheSize
	}
	return &Cache{
		capacity: capacity,
		entries:  make(map[string]*list.Element),
		order:    list.New(),
	}
}

// Key returns the cache key for a model/text pair.
func Key(model, text string) string {
	h := sha256.New()
	h.Write([]byte(model))
	h.Write([]byte{0})
	h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil))
}

// Get returns the cached vector for key, if present.
func (c *Cache) Get(key string) ([]float32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.entries[key]
	if !ok {
		c.misses.Add(1)
		return nil, false
	}
	c.order.MoveToFront(el)
	c.hits.Add(1)
	return el.Value.(*cacheEntry).vec, true
}

// Put stores a vector under key, evicting the least recently used entry when
// the cache is full.
func (c *Cache) Put(key string, vec []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.entries[key]; ok {
		el.Value.(*cacheEntry).vec = vec
		c.order.MoveToFront(el)
		return
	}
	c.entries[key] = c.order.PushFront(&cacheEntry{key: key, vec: vec})
	if c.order.Len() > c.capacity {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*cacheEntry).key)
	}
}

// Len returns the number of cached embeddings.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Hits returns the cumulative hit count.
func (c *Cache) Hits() int64 { return c.hits.Load() }

// Misses returns the cumulative miss count.
func (c *Cache) Misses() int64 { return c.misses.Load() }

// Cached wraps an Embedder with a Cache.
type Cached struct {
	inner Embedder
	cache *Cache
}

// NewCached wraps inner with cache. A nil cache gets the default size.
func NewCached(inner Embedder, cache *Cache) *Cached {
	if cache == nil {
		cache = NewCache(DefaultCacheSize)
	}
	return &Cached{inner: inner, cache: cache}
}

// Embed implements Embedder, consulting the cache first.
func (c *Cached) Embed(ctx context.Context, text string) ([]float32, error) {
	key := Key(c.inner.Model(), text)
	if vec, ok := c.cache.Get(key); ok {
		return vec, nil
	}
	vec, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Put(key, vec)
	return vec, nil
}

// Dimensions implements Embedder.
func (c *Cached) Dimensions() int { return c.inner.Dimensions() }

// Model implements Embedder.
func (c *Cached) Model() string { return c.inner.Model() }

// Stats returns the underlying cache for metric export.
func (c *Cached) Stats() *Cache { return c.cache }
