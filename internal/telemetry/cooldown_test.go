package telemetry

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/avolkhov/sessionkit/internal/clock"
)

func TestCooldownRejectsWithinWindow(t *testing.T) {
	clk := clock.NewFake(time.Unix(0, 0))
	table := newCooldownTable(clk, time.Second)

	assert.True(t, table.accept(EventCartAdded, "p1"))
	clk.Advance(200 * time.Millisecond)
	assert.False(t, table.accept(EventCartAdded, "p1"))

	clk.Advance(800 * time.Millisecond)
	assert.True(t, table.accept(EventCartAdded, "p1"), "window elapsed")
}

func TestCooldownKeyIsTypeAndProduct(t *testing.T) {
	clk := clock.NewFake(time.Unix(0, 0))
	table := newCooldownTable(clk, time.Second)

	assert.True(t, table.accept(EventCartAdded, "p1"))
	assert.True(t, table.accept(EventCartRemoved, "p1"), "different type")
	assert.True(t, table.accept(EventCartAdded, "p2"), "different product")
	assert.False(t, table.accept(EventCartAdded, "p1"))
}

func TestCooldownPrunesStaleKeys(t *testing.T) {
	clk := clock.NewFake(time.Unix(0, 0))
	table := newCooldownTable(clk, time.Second)

	for i := 0; i <= cooldownPruneThreshold; i++ {
		table.accept(EventImpression, fmt.Sprintf("p%d", i))
	}
	clk.Advance(2 * time.Second)

	// Crossing the threshold with everything stale collapses the table.
	table.accept(EventImpression, "fresh")
	assert.Len(t, table.last, 1)
}
