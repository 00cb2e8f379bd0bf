package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/avolkhov/sessionkit/internal/telemetry"
)

// spillRepo stores the telemetry spill in a single-row table. The slot is
// single-writer (this process) and read destructively once at startup.
type spillRepo struct {
	db *sql.DB
}

// NewSpillRepository creates a SQLite-backed telemetry.DurableEventStore.
func NewSpillRepository(db *sql.DB) telemetry.DurableEventStore {
	return &spillRepo{db: db}
}

func (r *spillRepo) Save(ctx context.Context, spill telemetry.Spill) error {
	payload, err := json.Marshal(spill.Events)
	if err != nil {
		return fmt.Errorf("marshal spill: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO event_spill (slot, payload, captured_at) VALUES (1, ?, ?)
		 ON CONFLICT (slot) DO UPDATE SET payload = excluded.payload, captured_at = excluded.captured_at`,
		string(payload), spill.Timestamp.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("save spill: %w", err)
	}
	return nil
}

func (r *spillRepo) Load(ctx context.Context) (telemetry.Spill, error) {
	var payload, capturedAt string
	err := r.db.QueryRowContext(ctx,
		"SELECT payload, captured_at FROM event_spill WHERE slot = 1").Scan(&payload, &capturedAt)
	if err == sql.ErrNoRows {
		return telemetry.Spill{}, telemetry.ErrNoSpill
	}
	if err != nil {
		return telemetry.Spill{}, fmt.Errorf("load spill: %w", err)
	}

	var events []telemetry.Event
	if err := json.Unmarshal([]byte(payload), &events); err != nil {
		return telemetry.Spill{}, fmt.Errorf("decode spill payload: %w", err)
	}
	ts, err := time.Parse(time.RFC3339Nano, capturedAt)
	if err != nil {
		return telemetry.Spill{}, fmt.Errorf("decode spill timestamp: %w", err)
	}

	return telemetry.Spill{Events: events, Timestamp: ts}, nil
}

func (r *spillRepo) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM event_spill WHERE slot = 1"); err != nil {
		return fmt.Errorf("clear spill: %w", err)
	}
	return nil
}
