package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/avolkhov/sessionkit/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Long: `show prints the merged configuration after defaults, the config
file, and SESSIONKIT_* environment overrides are applied.`,
	RunE: func(_ *cobra.Command, _ []string) error {
		manager, err := config.NewManager()
		if err != nil {
			return err
		}
		if err := manager.Load(); err != nil {
			return err
		}
		out, err := json.MarshalIndent(manager.Config(), "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	},
}

var configSchemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the configuration JSON schema",
	RunE: func(_ *cobra.Command, _ []string) error {
		out, err := config.GenerateSchema()
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd, configSchemaCmd)
	rootCmd.AddCommand(configCmd)
}
