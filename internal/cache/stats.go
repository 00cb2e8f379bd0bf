package cache

// Stats exposes per-namespace counters for observability. The counters are
// advisory; nothing in the store's behavior depends on them.
type Stats struct {
	Hits      uint64 `json:"hits"`
	Misses    uint64 `json:"misses"`
	Evictions uint64 `json:"evictions"`
	Size      int    `json:"size"`
}
