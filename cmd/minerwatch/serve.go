package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/jpalmerr/minerwatch"
	"github.com/jpalmerr/minerwatch/config"
)

const (
	shutdownTimeout = 10 * time.Second
	redisDialCheck  = 5 * time.Second
)

// newLogger creates a JSON logger for CLI use.
func newLogger(level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// serveCmd starts the scheduler and status API.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Poll pools and serve the status API",
	Long: `Start minerwatch.

The server will:
  - Load configuration from the specified YAML file
  - Check every monitor once, then on its cron schedule
  - Serve /api/monitors, /api/events, /api/sse, /healthz and /metrics

The server runs until interrupted (Ctrl+C) or receives SIGTERM.

Example:
  minerwatch serve -c config.yaml
  minerwatch serve --config /etc/minerwatch/config.yaml`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	serveCmd.Flags().Bool("verbose", false, "log debug messages")
	_ = serveCmd.MarkFlagRequired("config")
}

func runServe(cmd *cobra.Command, args []string) error {
	verbose, _ := cmd.Flags().GetBool("verbose")
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := newLogger(level)

	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger.Info("config loaded",
		"monitors", len(cfg.Monitors),
		"fleets", len(cfg.Fleets),
		"state_backend", cfg.State.Backend,
	)

	monitors, err := config.BuildMonitors(cfg)
	if err != nil {
		return fmt.Errorf("failed to build monitors: %w", err)
	}
	if len(monitors) == 0 {
		return fmt.Errorf("no monitors configured")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	state, closeState, err := openState(ctx, cfg.State)
	if err != nil {
		return err
	}
	defer closeState()

	w, err := minerwatch.New(
		minerwatch.WithMonitors(monitors...),
		minerwatch.WithPort(cfg.Port),
		minerwatch.WithSchedule(cfg.Schedule),
		minerwatch.WithLogger(logger),
		minerwatch.WithState(state),
		minerwatch.WithEventCallback(func(ev minerwatch.Event) {
			logger.Info("event emitted",
				"monitor", ev.Monitor,
				"kind", string(ev.Kind),
				"payload", ev.Payload(),
			)
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}

	logger.Info("starting server",
		"port", cfg.Port,
		"schedule", cfg.Schedule,
	)

	errChan := make(chan error, 1)
	go func() {
		errChan <- w.Start(ctx)
	}()

	select {
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		logger.Info("shutdown complete")
		return nil

	case <-ctx.Done():
		select {
		case err := <-errChan:
			if err != nil {
				return fmt.Errorf("server error: %w", err)
			}
			logger.Info("shutdown complete")
			return nil
		case <-time.After(shutdownTimeout):
			logger.Warn("shutdown timed out",
				"timeout", shutdownTimeout.String(),
				"action", "forcing exit",
			)
			return nil
		}
	}
}

// openState builds the configured state backend. The returned func releases
// it and is always safe to call.
func openState(ctx context.Context, sc config.StateConfig) (minerwatch.StateStore, func(), error) {
	if sc.Backend != config.BackendRedis {
		return minerwatch.NewMemoryStateStore(), func() {}, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     sc.Redis.Addr,
		Password: sc.Redis.Password,
		DB:       sc.Redis.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, redisDialCheck)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, nil, fmt.Errorf("failed to connect to redis at %s: %w", sc.Redis.Addr, err)
	}

	return minerwatch.NewRedisStateStore(rdb, sc.Redis.Prefix), func() { _ = rdb.Close() }, nil
}
