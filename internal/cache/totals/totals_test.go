package totals

import (
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avolkhov/sessionkit/internal/clock"
)

func newTestCache(t *testing.T, cfg Config) (*Cache, *clock.Fake) {
	t.Helper()
	clk := clock.NewFake(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	c, err := New(cfg, clk, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c, clk
}

func TestKeyIsOrderIndependent(t *testing.T) {
	a := Key("u1", []string{"p2", "p1", "p3"})
	b := Key("u1", []string{"p1", "p3", "p2"})
	assert.Equal(t, a, b)
	assert.Equal(t, "u1:p1,p2,p3", a)

	assert.NotEqual(t, a, Key("u2", []string{"p1", "p2", "p3"}))
	assert.NotEqual(t, a, Key("u1", []string{"p1", "p2"}))
}

func TestKeyDoesNotMutateInput(t *testing.T) {
	ids := []string{"p3", "p1", "p2"}
	Key("u1", ids)
	assert.Equal(t, []string{"p3", "p1", "p2"}, ids)
}

func TestSetGetRoundtrip(t *testing.T) {
	c, _ := newTestCache(t, DefaultConfig())

	want := Totals{
		Total:    29.97,
		Currency: "EUR",
		LineItems: []LineItem{
			{ProductID: "p1", UnitPrice: 9.99, ComputedTotal: 29.97, Quantity: 3},
		},
	}
	c.Set("u1", []string{"p1"}, want)

	got, ok := c.Get("u1", []string{"p1"})
	require.True(t, ok)
	assert.Equal(t, want, got)

	// Miss for a different product set.
	_, ok = c.Get("u1", []string{"p1", "p2"})
	assert.False(t, ok)
}

func TestGetHonorsProductOrderEquivalence(t *testing.T) {
	c, _ := newTestCache(t, DefaultConfig())

	c.Set("u1", []string{"p2", "p1"}, Totals{Total: 5})

	got, ok := c.Get("u1", []string{"p1", "p2"})
	require.True(t, ok)
	assert.Equal(t, 5.0, got.Total)
}

func TestGetExpiresAgainstTTL(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TTL = time.Minute
	c, clk := newTestCache(t, cfg)

	c.Set("u1", []string{"p1"}, Totals{Total: 1})
	clk.Advance(61 * time.Second)

	_, ok := c.Get("u1", []string{"p1"})
	assert.False(t, ok)
	assert.Zero(t, c.Len(), "expired entry removed on read")
}

func TestInvalidateForUserRemovesAllUserEntriesOnly(t *testing.T) {
	c, _ := newTestCache(t, DefaultConfig())

	c.Set("u1", []string{"p1"}, Totals{Total: 1})
	c.Set("u1", []string{"p1", "p2"}, Totals{Total: 2})
	c.Set("u1", []string{"p3"}, Totals{Total: 3})
	c.Set("u2", []string{"p1"}, Totals{Total: 4})

	removed := c.InvalidateForUser("u1")
	assert.Equal(t, 3, removed)

	_, ok := c.Get("u1", []string{"p1"})
	assert.False(t, ok)
	_, ok = c.Get("u1", []string{"p1", "p2"})
	assert.False(t, ok)
	_, ok = c.Get("u1", []string{"p3"})
	assert.False(t, ok)

	got, ok := c.Get("u2", []string{"p1"})
	require.True(t, ok, "other users unaffected")
	assert.Equal(t, 4.0, got.Total)
}

func TestInvalidateForUserPrefixIsExact(t *testing.T) {
	c, _ := newTestCache(t, DefaultConfig())

	c.Set("u1", []string{"p1"}, Totals{Total: 1})
	c.Set("u10", []string{"p1"}, Totals{Total: 2})

	c.InvalidateForUser("u1")

	_, ok := c.Get("u10", []string{"p1"})
	assert.True(t, ok, "u10 is not a prefix match for u1")
}

func TestInvalidateSpecific(t *testing.T) {
	c, _ := newTestCache(t, DefaultConfig())

	c.Set("u1", []string{"p1"}, Totals{Total: 1})
	c.Set("u1", []string{"p2"}, Totals{Total: 2})

	assert.True(t, c.InvalidateSpecific("u1", []string{"p1"}))
	assert.False(t, c.InvalidateSpecific("u1", []string{"p1"}))

	_, ok := c.Get("u1", []string{"p2"})
	assert.True(t, ok)
}

func TestEvictionBatchOnFullInsert(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxEntries = 5
	cfg.EvictionBatch = 2
	c, clk := newTestCache(t, cfg)

	for i := 0; i < 5; i++ {
		c.Set("u1", []string{fmt.Sprintf("p%d", i)}, Totals{Total: float64(i)})
		clk.Advance(time.Second)
	}
	require.Equal(t, 5, c.Len())

	c.Set("u1", []string{"p-new"}, Totals{Total: 99})

	assert.Equal(t, 4, c.Len(), "batch of 2 evicted before the insert")
	_, ok := c.Get("u1", []string{"p0"})
	assert.False(t, ok, "oldest entry gone")
	_, ok = c.Get("u1", []string{"p1"})
	assert.False(t, ok, "second oldest gone")
	_, ok = c.Get("u1", []string{"p4"})
	assert.True(t, ok)
	_, ok = c.Get("u1", []string{"p-new"})
	assert.True(t, ok)
}

func TestOverwriteAtCapacityDoesNotEvict(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxEntries = 3
	cfg.EvictionBatch = 2
	c, clk := newTestCache(t, cfg)

	for i := 0; i < 3; i++ {
		c.Set("u1", []string{fmt.Sprintf("p%d", i)}, Totals{Total: float64(i)})
		clk.Advance(time.Second)
	}

	c.Set("u1", []string{"p0"}, Totals{Total: 42})

	assert.Equal(t, 3, c.Len(), "rewriting an existing key needs no room")
	got, ok := c.Get("u1", []string{"p0"})
	require.True(t, ok)
	assert.Equal(t, 42.0, got.Total)
}

func TestBackgroundSweepDropsExpired(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TTL = time.Minute
	cfg.SweepInterval = time.Minute
	c, clk := newTestCache(t, cfg)

	c.Set("u1", []string{"p1"}, Totals{Total: 1})
	clk.Advance(2 * time.Minute)

	assert.Eventually(t, func() bool { return c.Len() == 0 }, time.Second, 5*time.Millisecond)
}

func TestConfigValidation(t *testing.T) {
	clk := clock.NewFake(time.Unix(0, 0))

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero ttl", func(c *Config) { c.TTL = 0 }},
		{"zero max entries", func(c *Config) { c.MaxEntries = 0 }},
		{"zero batch", func(c *Config) { c.EvictionBatch = 0 }},
		{"zero sweep", func(c *Config) { c.SweepInterval = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			_, err := New(cfg, clk, zerolog.Nop())
			assert.Error(t, err)
		})
	}
}
