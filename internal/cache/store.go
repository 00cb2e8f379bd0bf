// Package cache implements the namespaced TTL/LRU store shared by the
// read-heavy storefront features (search results, recommendations,
// reviews, computed totals).
//
// Entries are logically absent once their age exceeds the TTL supplied at
// read time, even while still physically present; Get and Has are the
// source of truth for expiry. The background sweep is housekeeping only
// and checks ages against the default TTL regardless of the TTL an entry
// was stored with.
package cache

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/avolkhov/sessionkit/internal/clock"
)

// Default configuration values.
const (
	DefaultTTL           = 10 * time.Minute
	DefaultMaxEntries    = 100
	DefaultMaxNamespaces = 20
	DefaultSweepInterval = 5 * time.Minute
)

// Config holds construction-time settings for a Store.
type Config struct {
	DefaultTTL      time.Duration // applied when a caller passes ttl <= 0
	MaxEntriesPerNS int           // per-namespace entry cap
	MaxNamespaces   int           // global namespace cap
	SweepInterval   time.Duration // background sweep period
}

// DefaultConfig returns the store defaults.
func DefaultConfig() Config {
	return Config{
		DefaultTTL:      DefaultTTL,
		MaxEntriesPerNS: DefaultMaxEntries,
		MaxNamespaces:   DefaultMaxNamespaces,
		SweepInterval:   DefaultSweepInterval,
	}
}

func (c Config) validate() error {
	if c.DefaultTTL <= 0 {
		return fmt.Errorf("cache: default TTL must be positive, got %v", c.DefaultTTL)
	}
	if c.MaxEntriesPerNS <= 0 {
		return fmt.Errorf("cache: max entries per namespace must be positive, got %d", c.MaxEntriesPerNS)
	}
	if c.MaxNamespaces <= 0 {
		return fmt.Errorf("cache: max namespaces must be positive, got %d", c.MaxNamespaces)
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("cache: sweep interval must be positive, got %v", c.SweepInterval)
	}
	return nil
}

// Store is a thread-safe key/value store partitioned into named caches,
// each with independent TTL handling, LRU eviction and statistics.
type Store struct {
	mu         sync.Mutex
	cfg        Config
	clk        clock.Clock
	log        zerolog.Logger
	namespaces map[string]*namespace

	ticker    clock.Ticker
	stop      chan struct{}
	closeOnce sync.Once
	done      sync.WaitGroup
}

// New creates a Store and starts its background sweep. The caller owns the
// instance and must Close it.
func New(cfg Config, clk clock.Clock, log zerolog.Logger) (*Store, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if clk == nil {
		clk = clock.System()
	}

	s := &Store{
		cfg:        cfg,
		clk:        clk,
		log:        log.With().Str("component", "cache").Logger(),
		namespaces: make(map[string]*namespace),
		stop:       make(chan struct{}),
	}

	// One pass up front, then on every tick.
	s.Sweep()
	s.ticker = clk.NewTicker(cfg.SweepInterval)
	s.done.Add(1)
	go s.run()

	return s, nil
}

func (s *Store) run() {
	defer s.done.Done()
	for {
		select {
		case <-s.stop:
			return
		case <-s.ticker.C():
			s.Sweep()
		}
	}
}

// Close stops the background sweep. The store remains usable for
// synchronous operations afterwards.
func (s *Store) Close() {
	s.closeOnce.Do(func() {
		close(s.stop)
		s.ticker.Stop()
		s.done.Wait()
	})
}

// Set inserts or overwrites an entry. Expiry is decided at read time
// against the reader's TTL. Capacity pressure is resolved internally by
// eviction and never surfaced to the caller.
func (s *Store) Set(ns, key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clk.Now()
	n, ok := s.namespaces[ns]
	if !ok {
		if len(s.namespaces) >= s.cfg.MaxNamespaces {
			s.evictOldestNamespaceLocked()
		}
		n = newNamespace(ns)
		s.namespaces[ns] = n
	}

	if e, exists := n.entries[key]; exists {
		e.value = value
		e.createdAt = now
		e.accessCount = 0
		e.lastAccessedAt = now
		n.order.MoveToFront(e.element)
		return
	}

	if len(n.entries) >= s.cfg.MaxEntriesPerNS {
		n.evictLRU()
	}

	e := &cacheEntry{
		key:            key,
		value:          value,
		createdAt:      now,
		lastAccessedAt: now,
	}
	e.element = n.order.PushFront(e)
	n.entries[key] = e
}

// Get returns the value if present and not expired against ttl (or the
// default when ttl <= 0), bumping access metadata and the hit counter. An
// expired entry found here is evicted immediately.
func (s *Store) Get(ns, key string, ttl time.Duration) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.namespaces[ns]
	if !ok {
		return nil, false
	}
	e, ok := n.entries[key]
	if !ok {
		n.stats.Misses++
		return nil, false
	}

	now := s.clk.Now()
	if s.expired(e, ttl, now) {
		n.remove(e)
		n.stats.Evictions++
		n.stats.Misses++
		return nil, false
	}

	e.accessCount++
	e.lastAccessedAt = now
	n.order.MoveToFront(e.element)
	n.stats.Hits++
	return e.value, true
}

// Has reports whether the key is present and unexpired without touching
// access metadata or the hit/miss counters. Like Get, it evicts an expired
// entry it finds.
func (s *Store) Has(ns, key string, ttl time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.namespaces[ns]
	if !ok {
		return false
	}
	e, ok := n.entries[key]
	if !ok {
		return false
	}
	if s.expired(e, ttl, s.clk.Now()) {
		n.remove(e)
		n.stats.Evictions++
		return false
	}
	return true
}

// Delete removes one entry. Reports whether it existed.
func (s *Store) Delete(ns, key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.namespaces[ns]
	if !ok {
		return false
	}
	e, ok := n.entries[key]
	if !ok {
		return false
	}
	n.remove(e)
	return true
}

// Clear removes a whole namespace, statistics included.
func (s *Store) Clear(ns string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.namespaces, ns)
}

// ClearAll removes every namespace.
func (s *Store) ClearAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.namespaces = make(map[string]*namespace)
}

// GetStats returns the counters for one namespace.
func (s *Store) GetStats(ns string) (Stats, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.namespaces[ns]
	if !ok {
		return Stats{}, false
	}
	st := n.stats
	st.Size = len(n.entries)
	return st, true
}

// StatsAll returns a snapshot of every namespace's counters.
func (s *Store) StatsAll() map[string]Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]Stats, len(s.namespaces))
	for name, n := range s.namespaces {
		st := n.stats
		st.Size = len(n.entries)
		out[name] = st
	}
	return out
}

// Sweep performs one linear pass over every namespace, removing entries
// older than the default TTL and dropping namespaces left empty. Entries
// stored with a longer per-call TTL are swept early here; Get and Has
// remain correct because they re-check against the caller's TTL.
func (s *Store) Sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clk.Now()
	removed := 0
	for name, n := range s.namespaces {
		for _, e := range n.entries {
			if now.Sub(e.createdAt) > s.cfg.DefaultTTL {
				n.remove(e)
				n.stats.Evictions++
				removed++
			}
		}
		if len(n.entries) == 0 {
			delete(s.namespaces, name)
		}
	}
	if removed > 0 {
		s.log.Debug().Int("removed", removed).Msg("cache sweep")
	}
}

func (s *Store) expired(e *cacheEntry, ttl time.Duration, now time.Time) bool {
	if ttl <= 0 {
		ttl = s.cfg.DefaultTTL
	}
	return now.Sub(e.createdAt) > ttl
}

// evictOldestNamespaceLocked drops the namespace whose oldest entry is the
// globally oldest, making room under the namespace cap.
func (s *Store) evictOldestNamespaceLocked() {
	var victim string
	var victimAge time.Time
	for name, n := range s.namespaces {
		oldest := n.oldestCreation()
		if victim == "" || (!oldest.IsZero() && oldest.Before(victimAge)) {
			victim = name
			victimAge = oldest
		}
	}
	if victim != "" {
		s.log.Debug().Str("namespace", victim).Msg("evicting oldest namespace")
		delete(s.namespaces, victim)
	}
}
