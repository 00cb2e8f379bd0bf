package cmd

import (
	"encoding/json"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/avolkhov/sessionkit/internal/cli/model"
	"github.com/avolkhov/sessionkit/internal/infrastructure/persistence/sqlite"
	"github.com/avolkhov/sessionkit/internal/telemetry"
)

var statsJSON bool

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Inspect batcher, cache, and spill state",
	Long: `stats shows a snapshot of the coordination layer: batcher state and
buffer depth, per-namespace cache counters, and any spilled batch
waiting in the durable store.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		snap := model.StatsSnapshot{
			Batcher:       sessionApp.Batcher.Status(),
			CacheStats:    sessionApp.Cache.StatsAll(),
			TotalsEntries: sessionApp.Totals.Len(),
			DedupPending:  sessionApp.Dedup.PendingCount(),
			DebouncePend:  sessionApp.Debounce.Len(),
		}

		store := sqlite.NewSpillRepository(sessionApp.DB())
		spill, err := store.Load(ctx)
		switch {
		case err == nil:
			snap.Spill = &spill
		case errors.Is(err, telemetry.ErrNoSpill):
		default:
			return fmt.Errorf("load spill: %w", err)
		}

		if statsJSON {
			out, err := json.MarshalIndent(statsReport(snap), "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		}

		p := tea.NewProgram(model.NewStats(snap))
		_, err = p.Run()
		return err
	},
}

func statsReport(snap model.StatsSnapshot) map[string]any {
	report := map[string]any{
		"batcher": map[string]any{
			"state":    snap.Batcher.State.String(),
			"buffered": snap.Batcher.BufferLen,
			"attempts": snap.Batcher.Attempts,
		},
		"cache":            snap.CacheStats,
		"totals_entries":   snap.TotalsEntries,
		"dedup_pending":    snap.DedupPending,
		"debounce_pending": snap.DebouncePend,
	}
	if snap.Spill != nil {
		report["spill"] = map[string]any{
			"events":      len(snap.Spill.Events),
			"captured_at": snap.Spill.Timestamp,
		}
	}
	return report
}

func init() {
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "print a JSON report instead of the TUI")
	rootCmd.AddCommand(statsCmd)
}
