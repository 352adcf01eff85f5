// Package cache provides a bounded, lifecycle-scoped store for computed
// indicator series. The cache is best-effort: a miss only costs a
// recomputation, so concurrent callers racing on the same key may both
// compute and the later write wins.
package cache

import (
	"container/list"
	"fmt"
	"sync"
	"time"

	"github.com/finsight-lab/finsight/internal/types"
)

// Key identifies one cached series. SeriesEnd and SeriesLen fingerprint the
// underlying bar sequence so that extending the sequence naturally misses
// instead of serving a stale series.
type Key struct {
	Symbol    string
	Indicator types.IndicatorType
	Params    string
	SeriesLen int
	SeriesEnd time.Time
}

// String renders the key for logging.
func (k Key) String() string {
	return fmt.Sprintf("%s/%s/%s/%d@%d", k.Symbol, k.Indicator, k.Params, k.SeriesLen, k.SeriesEnd.Unix())
}

// Cache stores computed indicator series.
type Cache interface {
	Get(key Key) (types.IndicatorSeries, bool)
	Set(key Key, series types.IndicatorSeries)
	Len() int
	Reset()
}

// LRUCache is a bounded least-recently-used cache.
type LRUCache struct {
	capacity int
	mu       sync.Mutex
	order    *list.List
	entries  map[Key]*list.Element
}

type entry struct {
	key    Key
	series types.IndicatorSeries
}

// NewLRUCache creates a cache holding at most capacity series.
func NewLRUCache(capacity int) Cache {
	if capacity <= 0 {
		capacity = 256
	}

	return &LRUCache{
		capacity: capacity,
		order:    list.New(),
		entries:  make(map[Key]*list.Element),
	}
}

// Get returns the cached series for the key, marking it most recently used.
func (c *LRUCache) Get(key Key) (types.IndicatorSeries, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	element, ok := c.entries[key]
	if !ok {
		return types.IndicatorSeries{}, false
	}

	c.order.MoveToFront(element)

	return element.Value.(*entry).series, true
}

// Set stores the series, evicting the least recently used entry when full.
func (c *LRUCache) Set(key Key, series types.IndicatorSeries) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if element, ok := c.entries[key]; ok {
		element.Value.(*entry).series = series
		c.order.MoveToFront(element)

		return
	}

	c.entries[key] = c.order.PushFront(&entry{key: key, series: series})

	for c.order.Len() > c.capacity {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*entry).key)
	}
}

// Len returns the number of cached series.
func (c *LRUCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.order.Len()
}

// Reset implements cache.Cache.
func (c *LRUCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.order.Init()
	c.entries = make(map[Key]*list.Element)
}
