package telemetry

import (
	"time"

	"github.com/avolkhov/sessionkit/internal/clock"
)

// cooldownPruneThreshold bounds the table between prunes.
const cooldownPruneThreshold = 256

type cooldownKey struct {
	eventType EventType
	productID string
}

// cooldownTable rejects duplicate events of the same (type, productId)
// arriving within the window. Never persisted; a reload resets it, which
// at worst admits one extra duplicate.
type cooldownTable struct {
	clk    clock.Clock
	window time.Duration
	last   map[cooldownKey]time.Time
}

func newCooldownTable(clk clock.Clock, window time.Duration) *cooldownTable {
	return &cooldownTable{
		clk:    clk,
		window: window,
		last:   make(map[cooldownKey]time.Time),
	}
}

// accept records the event unless an equal key was accepted within the
// window. Callers hold the batcher lock.
func (t *cooldownTable) accept(eventType EventType, productID string) bool {
	key := cooldownKey{eventType, productID}
	now := t.clk.Now()

	if last, ok := t.last[key]; ok && now.Sub(last) < t.window {
		return false
	}

	if len(t.last) > cooldownPruneThreshold {
		t.prune(now)
	}
	t.last[key] = now
	return true
}

func (t *cooldownTable) prune(now time.Time) {
	for key, ts := range t.last {
		if now.Sub(ts) >= t.window {
			delete(t.last, key)
		}
	}
}
