package zipcode

import (
	"context"
	"sync"

	"github.com/ustdata/tank-importer/internal/domain"
	"github.com/ustdata/tank-importer/internal/observability"
)

// Cached wraps a Geocoder with an in-memory LRU cache. The same postal code
// recurs across many rows of one extract and the lookup is pure per input, so
// caching within a run is safe.
type Cached struct {
	inner   domain.Geocoder
	cache   *lruCache
	metrics *observability.Metrics
}

// NewCached creates a cache decorator around a geocoder. metrics may be nil.
func NewCached(inner domain.Geocoder, maxEntries int, metrics *observability.Metrics) *Cached {
	return &Cached{
		inner:   inner,
		cache:   newLRUCache(maxEntries),
		metrics: metrics,
	}
}

func (c *Cached) Lookup(ctx context.Context, postalCode string) (domain.Coordinates, bool, error) {
	if coords, ok := c.cache.get(postalCode); ok {
		c.countCache("hit")
		return coords, true, nil
	}
	c.countCache("miss")

	coords, found, err := c.inner.Lookup(ctx, postalCode)
	switch {
	case err != nil:
		c.countLookup("error")
	case found:
		c.countLookup("found")
		// Only resolved codes are cached so a transient miss can be retried.
		c.cache.put(postalCode, coords)
	default:
		c.countLookup("miss")
	}
	return coords, found, err
}

func (c *Cached) Close() error {
	return c.inner.Close()
}

func (c *Cached) countCache(result string) {
	if c.metrics != nil {
		c.metrics.ZipCache.WithLabelValues(result).Inc()
	}
}

func (c *Cached) countLookup(outcome string) {
	if c.metrics != nil {
		c.metrics.ZipLookups.WithLabelValues(outcome).Inc()
	}
}

// lruCache is a small thread-safe LRU keyed by postal code.
type lruCache struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[string]*entry
	head       *entry // most recently used
	tail       *entry // least recently used
}

type entry struct {
	key    string
	coords domain.Coordinates
	prev   *entry
	next   *entry
}

func newLRUCache(maxEntries int) *lruCache {
	return &lruCache{
		maxEntries: maxEntries,
		entries:    make(map[string]*entry),
	}
}

func (c *lruCache) get(key string) (domain.Coordinates, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return domain.Coordinates{}, false
	}
	c.moveToFront(e)
	return e.coords, true
}

func (c *lruCache) put(key string, coords domain.Coordinates) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.coords = coords
		c.moveToFront(e)
		return
	}

	e := &entry{key: key, coords: coords}
	c.entries[key] = e
	c.addToFront(e)

	if len(c.entries) > c.maxEntries {
		c.evictTail()
	}
}

func (c *lruCache) moveToFront(e *entry) {
	if e == c.head {
		return
	}
	c.remove(e)
	c.addToFront(e)
}

func (c *lruCache) addToFront(e *entry) {
	e.next = c.head
	e.prev = nil
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *lruCache) remove(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
}

func (c *lruCache) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.remove(c.tail)
}
