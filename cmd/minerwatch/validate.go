package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/minerwatch/config"
)

// validateCmd validates a config file without starting the server.
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a config file",
	Long: `Validate a minerwatch configuration file without polling any pool.

This command parses the YAML, expands environment variables, expands fleets
and validates every resulting monitor. It's useful for CI/CD pipelines or
pre-deployment checks.

Exit codes:
  0 - Config is valid
  1 - Config is invalid (error details printed to stderr)

Example:
  minerwatch validate -c config.yaml`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	_ = validateCmd.MarkFlagRequired("config")
}

func runValidate(cmd *cobra.Command, args []string) error {
	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	monitors, err := config.BuildMonitors(cfg)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	direct := len(cfg.Monitors)
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Config is valid!\n")
	fmt.Fprintf(out, "  Port:     %d\n", cfg.Port)
	fmt.Fprintf(out, "  Schedule: %s\n", cfg.Schedule)
	fmt.Fprintf(out, "  State:    %s\n", cfg.State.Backend)
	fmt.Fprintf(out, "  Monitors: %d direct + %d from fleets = %d total\n",
		direct, len(monitors)-direct, len(monitors))

	return nil
}
