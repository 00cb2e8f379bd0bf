package cache

import (
	"container/list"
	"time"
)

// cacheEntry holds one value plus the access metadata LRU ranking is
// computed from. lastAccessedAt drives eviction order; ties fall back to
// insertion order, which the recency list preserves naturally.
type cacheEntry struct {
	key            string
	value          any
	createdAt      time.Time
	accessCount    int
	lastAccessedAt time.Time
	element        *list.Element
}

// namespace is one named partition of the store, created lazily on first
// Set and removed when swept empty or displaced by the namespace cap.
type namespace struct {
	name    string
	entries map[string]*cacheEntry
	order   *list.List // front = most recently accessed
	stats   Stats
}

func newNamespace(name string) *namespace {
	return &namespace{
		name:    name,
		entries: make(map[string]*cacheEntry),
		order:   list.New(),
	}
}

func (n *namespace) remove(e *cacheEntry) {
	n.order.Remove(e.element)
	delete(n.entries, e.key)
}

// evictLRU removes the entry at the back of the recency list.
func (n *namespace) evictLRU() {
	oldest := n.order.Back()
	if oldest == nil {
		return
	}
	n.remove(oldest.Value.(*cacheEntry))
	n.stats.Evictions++
}

// oldestCreation returns the creation time of the namespace's oldest
// entry. Used to pick the victim when the global namespace cap is hit.
func (n *namespace) oldestCreation() time.Time {
	var oldest time.Time
	for _, e := range n.entries {
		if oldest.IsZero() || e.createdAt.Before(oldest) {
			oldest = e.createdAt
		}
	}
	return oldest
}
