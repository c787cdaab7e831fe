// Package main is the entry point for the minerwatch CLI.
//
// minerwatch can be run either as a library (SDK) or as a standalone binary
// with YAML configuration. This CLI provides the standalone binary approach.
//
// Usage:
//
//	minerwatch serve -c config.yaml    # Poll pools and serve the status API
//	minerwatch check -c config.yaml    # One dry-run tick per monitor
//	minerwatch validate -c config.yaml # Validate configuration
//	minerwatch version                 # Show version info
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information, set at build time via ldflags.
// Example: go build -ldflags "-X main.version=1.0.0"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// rootCmd only displays help; functionality lives in subcommands.
var rootCmd = &cobra.Command{
	Use:   "minerwatch",
	Short: "Watch mining pool accounts for worker changes",
	Long: `minerwatch polls mining pool account APIs on a schedule and emits an
event whenever a watched worker count changes, or whenever the account or
one of its workers reports a zero hashrate.

Quick start:
  1. Create a config file (minerwatch.yaml)
  2. Run: minerwatch check -c minerwatch.yaml
  3. Run: minerwatch serve -c minerwatch.yaml

Example config:
  schedule: "@every 1h"
  monitors:
    - pool_url: https://clopool.pro
      wallet_address: 0x1234...
      status_wanted: workersOnline`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		// cobra already printed the error
		os.Exit(1)
	}
}

func main() {
	Execute()
}

// versionCmd prints version information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Print the version, commit hash, and build date of this minerwatch binary.`,
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "minerwatch %s\n", version)
		fmt.Fprintf(out, "  commit: %s\n", commit)
		fmt.Fprintf(out, "  built:  %s\n", date)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
