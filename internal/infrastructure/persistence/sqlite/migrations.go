package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/avolkhov/sessionkit/internal/logging"
)

// migrations are applied in order; user_version tracks progress.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS event_spill (
		slot        INTEGER PRIMARY KEY CHECK (slot = 1),
		payload     TEXT NOT NULL,
		captured_at TIMESTAMP NOT NULL
	)`,
}

func runMigrations(ctx context.Context, db *sql.DB) error {
	log := logging.FromContext(ctx)

	var version int
	if err := db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read user_version: %w", err)
	}

	for i := version; i < len(migrations); i++ {
		if _, err := db.ExecContext(ctx, migrations[i]); err != nil {
			return fmt.Errorf("migration %d: %w", i+1, err)
		}
		if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", i+1)); err != nil {
			return fmt.Errorf("bump user_version to %d: %w", i+1, err)
		}
		log.Debug().Int("version", i+1).Msg("applied migration")
	}

	return nil
}
