package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/minerwatch"
	"github.com/jpalmerr/minerwatch/config"
)

// checkCmd runs a single dry-run tick of every monitor.
var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Run one check of every monitor and print the events",
	Long: `Run every configured monitor once against a fresh in-memory state and
print each emitted event as a JSON line on stdout.

Nothing is persisted: the configured state backend is ignored, so every
aggregate monitor reports its current status. Failures are logged to stderr
and make the command exit with status 1.

Example:
  minerwatch check -c config.yaml`,
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)

	checkCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	_ = checkCmd.MarkFlagRequired("config")
}

func runCheck(cmd *cobra.Command, args []string) error {
	logger := slog.New(slog.NewJSONHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))

	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	monitors, err := config.BuildMonitors(cfg)
	if err != nil {
		return fmt.Errorf("failed to build monitors: %w", err)
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	printer := minerwatch.EventSinkFunc(func(_ context.Context, ev minerwatch.Event) error {
		return enc.Encode(ev)
	})

	w, err := minerwatch.New(
		minerwatch.WithMonitors(monitors...),
		minerwatch.WithLogger(logger),
		minerwatch.WithState(minerwatch.NewMemoryStateStore()),
		minerwatch.WithSink(printer),
	)
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if err := w.RunOnce(ctx); err != nil {
		return fmt.Errorf("check failed: %w", err)
	}
	return nil
}
