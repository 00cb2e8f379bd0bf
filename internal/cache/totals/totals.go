// Package totals caches computed cart aggregates keyed by user and
// product-id set. Any cart mutation can change every line item's computed
// total for that user, so invalidation is per-user (key prefix), not
// per-key.
package totals

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/avolkhov/sessionkit/internal/clock"
)

// Defaults.
const (
	DefaultTTL           = 10 * time.Minute
	DefaultMaxEntries    = 50
	DefaultEvictionBatch = 10
	DefaultSweepInterval = 5 * time.Minute
)

// LineItem is one priced cart line inside a cached aggregate.
type LineItem struct {
	ProductID     string  `json:"productId"`
	UnitPrice     float64 `json:"unitPrice"`
	ComputedTotal float64 `json:"computedTotal"`
	Quantity      int     `json:"quantity"`
	IsBundleItem  bool    `json:"isBundleItem"`
}

// Totals is the cached aggregate for one (user, product set) pair.
type Totals struct {
	Total     float64    `json:"total"`
	Currency  string     `json:"currency"`
	LineItems []LineItem `json:"lineItems"`
}

// Config holds construction-time settings.
type Config struct {
	TTL           time.Duration
	MaxEntries    int
	EvictionBatch int // entries dropped when full and a new key arrives
	SweepInterval time.Duration
}

// DefaultConfig returns the cart-totals defaults.
func DefaultConfig() Config {
	return Config{
		TTL:           DefaultTTL,
		MaxEntries:    DefaultMaxEntries,
		EvictionBatch: DefaultEvictionBatch,
		SweepInterval: DefaultSweepInterval,
	}
}

func (c Config) validate() error {
	if c.TTL <= 0 {
		return fmt.Errorf("totals: TTL must be positive, got %v", c.TTL)
	}
	if c.MaxEntries <= 0 {
		return fmt.Errorf("totals: max entries must be positive, got %d", c.MaxEntries)
	}
	if c.EvictionBatch <= 0 {
		return fmt.Errorf("totals: eviction batch must be positive, got %d", c.EvictionBatch)
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("totals: sweep interval must be positive, got %v", c.SweepInterval)
	}
	return nil
}

type entry struct {
	totals    Totals
	createdAt time.Time
}

// Cache is the totals cache. All operations are synchronous and
// non-blocking; misses are normal returns, never errors.
type Cache struct {
	mu      sync.Mutex
	cfg     Config
	clk     clock.Clock
	log     zerolog.Logger
	entries map[string]*entry

	ticker    clock.Ticker
	stop      chan struct{}
	closeOnce sync.Once
	done      sync.WaitGroup
}

// New creates a Cache and starts its background sweep.
func New(cfg Config, clk clock.Clock, log zerolog.Logger) (*Cache, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if clk == nil {
		clk = clock.System()
	}

	c := &Cache{
		cfg:     cfg,
		clk:     clk,
		log:     log.With().Str("component", "totals-cache").Logger(),
		entries: make(map[string]*entry),
		stop:    make(chan struct{}),
	}

	c.ticker = clk.NewTicker(cfg.SweepInterval)
	c.done.Add(1)
	go c.run()
	return c, nil
}

func (c *Cache) run() {
	defer c.done.Done()
	for {
		select {
		case <-c.stop:
			return
		case <-c.ticker.C():
			c.sweep()
		}
	}
}

// Close stops the background sweep.
func (c *Cache) Close() {
	c.closeOnce.Do(func() {
		close(c.stop)
		c.ticker.Stop()
		c.done.Wait()
	})
}

// Key builds the cache key from the user id and a sorted copy of the
// product ids, so lookups are independent of cart ordering.
func Key(userID string, productIDs []string) string {
	ids := make([]string, len(productIDs))
	copy(ids, productIDs)
	sort.Strings(ids)
	return userID + ":" + strings.Join(ids, ",")
}

// Get returns the cached aggregate, or false if missing or expired.
func (c *Cache) Get(userID string, productIDs []string) (Totals, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := Key(userID, productIDs)
	e, ok := c.entries[key]
	if !ok {
		return Totals{}, false
	}
	if c.clk.Now().Sub(e.createdAt) > c.cfg.TTL {
		delete(c.entries, key)
		return Totals{}, false
	}
	return e.totals, true
}

// Set stores an aggregate. When the cache is full and the key is new, the
// configured batch of oldest-by-creation entries is evicted first.
func (c *Cache) Set(userID string, productIDs []string, totals Totals) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := Key(userID, productIDs)
	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.cfg.MaxEntries {
		c.evictOldestLocked(c.cfg.EvictionBatch)
	}
	c.entries[key] = &entry{totals: totals, createdAt: c.clk.Now()}
}

// InvalidateForUser removes every cached aggregate for the user. This is
// the correct response to any cart mutation.
func (c *Cache) InvalidateForUser(userID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	prefix := userID + ":"
	removed := 0
	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
			removed++
		}
	}
	if removed > 0 {
		c.log.Debug().Str("user_id", userID).Int("removed", removed).Msg("invalidated totals for user")
	}
	return removed
}

// InvalidateSpecific removes exactly one cached aggregate.
func (c *Cache) InvalidateSpecific(userID string, productIDs []string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := Key(userID, productIDs)
	if _, ok := c.entries[key]; !ok {
		return false
	}
	delete(c.entries, key)
	return true
}

// Len returns the number of live entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Cache) sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clk.Now()
	for key, e := range c.entries {
		if now.Sub(e.createdAt) > c.cfg.TTL {
			delete(c.entries, key)
		}
	}
}

// evictOldestLocked drops up to n entries, oldest creation first.
func (c *Cache) evictOldestLocked(n int) {
	type aged struct {
		key       string
		createdAt time.Time
	}
	all := make([]aged, 0, len(c.entries))
	for key, e := range c.entries {
		all = append(all, aged{key, e.createdAt})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].createdAt.Before(all[j].createdAt) })
	if n > len(all) {
		n = len(all)
	}
	for _, victim := range all[:n] {
		delete(c.entries, victim.key)
	}
}
