package storage

import (
	"container/list"
	"sync"
)

// LRUCache is a bounded Least Recently Used cache of page images keyed by
// page id. A capacity of zero disables caching.
type LRUCache struct {
	mu       sync.Mutex
	capacity int
	list     *list.List               // front is most recently used
	entries  map[PageID]*list.Element // for O(1) lookup
	hits     uint64
	misses   uint64
}

type lruEntry struct {
	pageID PageID
	data   []byte
}

// NewLRUCache creates a cache holding at most capacity images.
func NewLRUCache(capacity int) *LRUCache {
	if capacity < 0 {
		capacity = 0
	}
	return &LRUCache{
		capacity: capacity,
		list:     list.New(),
		entries:  make(map[PageID]*list.Element),
	}
}

// Get returns the cached image for pageID and marks it recently used.
// The returned slice must not be modified.
func (c *LRUCache) Get(pageID PageID) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[pageID]
	if !ok {
		c.misses++
		return nil, false
	}
	c.hits++
	c.list.MoveToFront(elem)
	return elem.Value.(*lruEntry).data, true
}

// Put stores an image, evicting the least recently used entry when full.
func (c *LRUCache) Put(pageID PageID, data []byte) {
	if c.capacity == 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[pageID]; ok {
		elem.Value.(*lruEntry).data = data
		c.list.MoveToFront(elem)
		return
	}

	c.entries[pageID] = c.list.PushFront(&lruEntry{pageID: pageID, data: data})
	for c.list.Len() > c.capacity {
		c.removeElement(c.list.Back())
	}
}

// Remove drops pageID from the cache.
func (c *LRUCache) Remove(pageID PageID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[pageID]; ok {
		c.removeElement(elem)
	}
}

func (c *LRUCache) removeElement(elem *list.Element) {
	c.list.Remove(elem)
	delete(c.entries, elem.Value.(*lruEntry).pageID)
}

// Contains checks if a page is cached without touching its recency.
func (c *LRUCache) Contains(pageID PageID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[pageID]
	return ok
}

// Len returns the number of cached images.
func (c *LRUCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.list.Len()
}

// Clear removes all entries.
func (c *LRUCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.list.Init()
	c.entries = make(map[PageID]*list.Element)
}

// Order returns cached page ids from most to least recently used.
func (c *LRUCache) Order() []PageID {
	c.mu.Lock()
	defer c.mu.Unlock()

	result := make([]PageID, 0, c.list.Len())
	for elem := c.list.Front(); elem != nil; elem = elem.Next() {
		result = append(result, elem.Value.(*lruEntry).pageID)
	}
	return result
}

// HitRatio returns hits/(hits+misses), or 0 before any lookup.
func (c *LRUCache) HitRatio() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	total := c.hits + c.misses
	if total == 0 {
		return 0
	}
	return float64(c.hits) / float64(total)
}
