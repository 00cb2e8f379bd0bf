package debounce

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avolkhov/sessionkit/internal/clock"
)

func newTestScheduler(t *testing.T) (*Scheduler, *clock.Fake) {
	t.Helper()
	clk := clock.NewFake(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	s := New(clk, zerolog.Nop())
	t.Cleanup(s.CancelAll)
	return s, clk
}

func TestCallFiresAfterDelay(t *testing.T) {
	s, clk := newTestScheduler(t)

	fired := 0
	s.Call("search", 300*time.Millisecond, func() { fired++ })

	clk.Advance(299 * time.Millisecond)
	assert.Zero(t, fired)
	assert.True(t, s.Pending("search"))

	clk.Advance(time.Millisecond)
	assert.Equal(t, 1, fired)
	assert.False(t, s.Pending("search"))
}

func TestBurstCoalescesToLastCall(t *testing.T) {
	s, clk := newTestScheduler(t)

	var got string
	runs := 0
	type keystroke struct{ query string }
	for _, k := range []keystroke{{"s"}, {"sh"}, {"sho"}, {"shoe"}, {"shoes"}} {
		k := k
		s.Call("search", 300*time.Millisecond, func() {
			got = k.query
			runs++
		})
		clk.Advance(100 * time.Millisecond)
	}

	// Quiet period lets the trailing edge land.
	clk.Advance(300 * time.Millisecond)

	assert.Equal(t, 1, runs, "burst executes exactly once")
	assert.Equal(t, "shoes", got, "with the last call's arguments")
}

func TestSeparateKeysDoNotInterfere(t *testing.T) {
	s, clk := newTestScheduler(t)

	var fired []string
	s.Call("search", 100*time.Millisecond, func() { fired = append(fired, "search") })
	s.Call("filter", 200*time.Millisecond, func() { fired = append(fired, "filter") })
	assert.Equal(t, 2, s.Len())

	clk.Advance(250 * time.Millisecond)

	assert.Equal(t, []string{"search", "filter"}, fired)
	assert.Zero(t, s.Len())
}

func TestCancelDiscardsWithoutExecuting(t *testing.T) {
	s, clk := newTestScheduler(t)

	fired := false
	s.Call("search", 100*time.Millisecond, func() { fired = true })

	require.True(t, s.Cancel("search"))
	assert.False(t, s.Cancel("search"), "nothing pending after cancel")

	clk.Advance(time.Second)
	assert.False(t, fired)
}

func TestFlushExecutesImmediately(t *testing.T) {
	s, clk := newTestScheduler(t)

	fired := 0
	s.Call("search", time.Hour, func() { fired++ })

	require.True(t, s.Flush("search"))
	assert.Equal(t, 1, fired)
	assert.False(t, s.Flush("search"))

	// The original timer must not double-fire.
	clk.Advance(2 * time.Hour)
	assert.Equal(t, 1, fired)
}

func TestWrapDebouncesUnderTheKey(t *testing.T) {
	s, clk := newTestScheduler(t)

	runs := 0
	save := s.Wrap("autosave", 50*time.Millisecond, func() { runs++ })

	save()
	save()
	save()
	clk.Advance(50 * time.Millisecond)

	assert.Equal(t, 1, runs)
}

func TestCancelAll(t *testing.T) {
	s, clk := newTestScheduler(t)

	fired := 0
	s.Call("a", 10*time.Millisecond, func() { fired++ })
	s.Call("b", 10*time.Millisecond, func() { fired++ })
	require.Equal(t, 2, s.Len())

	s.CancelAll()
	clk.Advance(time.Second)

	assert.Zero(t, fired)
	assert.Zero(t, s.Len())
}

func TestRescheduleRestartsTheDelay(t *testing.T) {
	s, clk := newTestScheduler(t)

	fired := 0
	s.Call("search", 100*time.Millisecond, func() { fired++ })
	clk.Advance(90 * time.Millisecond)
	s.Call("search", 100*time.Millisecond, func() { fired++ })
	clk.Advance(90 * time.Millisecond)

	assert.Zero(t, fired, "delay restarted by the second call")

	clk.Advance(10 * time.Millisecond)
	assert.Equal(t, 1, fired)
}
