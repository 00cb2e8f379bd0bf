package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/avolkhov/sessionkit/internal/telemetry"
)

var drainCmd = &cobra.Command{
	Use:   "drain",
	Short: "Deliver any buffered or spilled events now",
	Long: `drain flushes the event batcher immediately. Startup already restores
a previously spilled batch into the buffer, so this delivers both
spilled and freshly recorded events in one batch. If the send fails
the events stay durable and drain exits non-zero.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		status := sessionApp.Batcher.Status()
		if status.BufferLen == 0 {
			fmt.Println("nothing to deliver")
			return nil
		}

		fmt.Printf("delivering %d buffered events...\n", status.BufferLen)
		if err := sessionApp.Batcher.Flush(ctx); err != nil {
			return fmt.Errorf("flush: %w", err)
		}

		after := sessionApp.Batcher.Status()
		if after.State == telemetry.StateIdle && after.BufferLen == 0 {
			fmt.Println("delivered")
		} else {
			fmt.Printf("partial delivery: state=%s buffered=%d\n", after.State, after.BufferLen)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(drainCmd)
}
