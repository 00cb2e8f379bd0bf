package telemetry

import (
	"context"
	"errors"
)

// ErrNoSpill is returned by DurableEventStore.Load when nothing is stored.
var ErrNoSpill = errors.New("telemetry: no spill stored")

// DurableEventStore persists undelivered events across process restarts.
// The slot is single-writer and read destructively once at startup.
type DurableEventStore interface {
	// Save overwrites the stored spill.
	Save(ctx context.Context, spill Spill) error
	// Load returns the stored spill, or ErrNoSpill.
	Load(ctx context.Context) (Spill, error)
	// Clear removes the stored spill. Clearing an empty slot is a no-op.
	Clear(ctx context.Context) error
}
