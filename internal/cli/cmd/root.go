// Package cmd provides the Cobra CLI for sessionkit.
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/avolkhov/sessionkit/internal/app"
)

// BuildInfo carries build-time metadata from main.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildDate string
	GoVersion string
}

var (
	sessionApp *app.App
	buildInfo  BuildInfo
	rootCmd    = &cobra.Command{
		Use:   "sessionkit",
		Short: "Client-resident coordination layer for a storefront session",
		Long: `sessionkit bundles the coordination primitives a long-lived storefront
session needs to bound its memory and network usage: a namespaced
TTL/LRU cache, an in-flight request deduplicator, a per-key debounce
scheduler, and a durable event batcher with retry and spill.

The CLI drives the layer outside a real storefront: simulate runs a
synthetic shopping workload against it, drain delivers a previously
spilled event batch, and stats inspects the durable state.`,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			switch cmd.Name() {
			case "help", "completion", "version", "schema", "show":
				return nil
			}

			var err error
			sessionApp, err = app.New(cmd.Context())
			if err != nil {
				return fmt.Errorf("initialize app: %w", err)
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if sessionApp != nil {
				sessionApp.Close(cmd.Context())
			}
		},
	}
)

// Execute runs the root command.
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// SetBuildInfo sets the build information (called from main before Execute).
func SetBuildInfo(info BuildInfo) {
	buildInfo = info
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build information",
	Run: func(_ *cobra.Command, _ []string) {
		fmt.Printf("sessionkit %s (%s, built %s, %s)\n",
			buildInfo.Version, buildInfo.Commit, buildInfo.BuildDate, buildInfo.GoVersion)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
