package cache

import (
	"container/list"
	"sync"
	"time"
)

type lruEntry[K comparable, V any] struct {
	key      K
	value    V
	lastUsed time.Time
}

// LRUCache is a thread-safe LRU cache. When full, the least recently used
// entry that is not pinned is evicted. With an idle TTL set, Sweep drops
// entries unused for longer than the TTL.
type LRUCache[K comparable, V any] struct {
	capacity int
	ttl      time.Duration
	now      func() time.Time
	pinned   func(V) bool
	onEvict  func(key K, value V)

	mu       sync.Mutex
	items    map[K]*list.Element
	eviction *list.List
}

// NewLRUCache creates a cache holding at most capacity entries.
// Panics if capacity is not positive.
func NewLRUCache[K comparable, V any](capacity int) *LRUCache[K, V] {
	if capacity <= 0 {
		panic("LRU cache capacity must be positive")
	}
	return &LRUCache[K, V]{
		capacity: capacity,
		now:      time.Now,
		items:    make(map[K]*list.Element),
		eviction: list.New(),
	}
}

// SetEvictCallback sets a function called, with the cache locked, for every
// entry leaving the cache: evicted, expired, removed or cleared.
func (c *LRUCache[K, V]) SetEvictCallback(fn func(key K, value V)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onEvict = fn
}

// SetPinned sets a predicate protecting entries from eviction and expiry.
// Remove and Clear ignore it.
func (c *LRUCache[K, V]) SetPinned(fn func(value V) bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pinned = fn
}

// SetIdleTTL enables expiry on Sweep. Zero disables it.
func (c *LRUCache[K, V]) SetIdleTTL(ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ttl = ttl
}

// SetClock overrides the clock used for idle tracking.
func (c *LRUCache[K, V]) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if now != nil {
		c.now = now
	}
}

// Get returns the value for key and marks it as recently used.
func (c *LRUCache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		entry := elem.Value.(*lruEntry[K, V])
		entry.lastUsed = c.now()
		c.eviction.MoveToFront(elem)
		return entry.value, true
	}

	var zero V
	return zero, false
}

// Put adds or replaces the value for key. When the cache is full the least
// recently used unpinned entry is evicted; if every entry is pinned the
// value is not stored and ErrFull is returned.
func (c *LRUCache[K, V]) Put(key K, value V) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		entry := elem.Value.(*lruEntry[K, V])
		entry.value = value
		entry.lastUsed = c.now()
		c.eviction.MoveToFront(elem)
		return nil
	}

	if c.eviction.Len() >= c.capacity {
		victim := c.oldestUnpinned()
		if victim == nil {
			return ErrFull
		}
		c.removeElement(victim)
	}

	c.items[key] = c.eviction.PushFront(&lruEntry[K, V]{key: key, value: value, lastUsed: c.now()})
	return nil
}

// Remove deletes key and returns its value.
func (c *LRUCache[K, V]) Remove(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		c.removeElement(elem)
		return elem.Value.(*lruEntry[K, V]).value, true
	}

	var zero V
	return zero, false
}

func (c *LRUCache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.eviction.Len()
}

// Sweep removes unpinned entries idle for longer than the TTL and returns
// how many were removed.
func (c *LRUCache[K, V]) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ttl <= 0 {
		return 0
	}
	cutoff := c.now().Add(-c.ttl)
	removed := 0
	for elem := c.eviction.Back(); elem != nil; {
		prev := elem.Prev()
		entry := elem.Value.(*lruEntry[K, V])
		if entry.lastUsed.After(cutoff) {
			// Everything in front was used more recently.
			break
		}
		if !c.isPinned(entry.value) {
			c.removeElement(elem)
			removed++
		}
		elem = prev
	}
	return removed
}

// Clear removes every entry.
func (c *LRUCache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.onEvict != nil {
		for _, elem := range c.items {
			entry := elem.Value.(*lruEntry[K, V])
			c.onEvict(entry.key, entry.value)
		}
	}
	c.items = make(map[K]*list.Element)
	c.eviction.Init()
}

// Must be called with lock held.
func (c *LRUCache[K, V]) isPinned(v V) bool {
	return c.pinned != nil && c.pinned(v)
}

// Must be called with lock held.
func (c *LRUCache[K, V]) oldestUnpinned() *list.Element {
	for elem := c.eviction.Back(); elem != nil; elem = elem.Prev() {
		if !c.isPinned(elem.Value.(*lruEntry[K, V]).value) {
			return elem
		}
	}
	return nil
}

// Must be called with lock held.
func (c *LRUCache[K, V]) removeElement(elem *list.Element) {
	c.eviction.Remove(elem)
	entry := elem.Value.(*lruEntry[K, V])
	delete(c.items, entry.key)

	if c.onEvict != nil {
		c.onEvict(entry.key, entry.value)
	}
}
