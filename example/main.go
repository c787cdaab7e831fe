package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jpalmerr/minerwatch"
)

func main() {
	// start mock pool (see mock_pool.go)
	go StartMockPool(":9999")
	time.Sleep(100 * time.Millisecond)

	// teach minerwatch how to read the local pool
	err := minerwatch.RegisterProvider("localhost", minerwatch.Provider{
		Name:         "mockpool",
		PathTemplate: "/api/accounts/{wallet}",
		Schema: minerwatch.Schema{
			HashratePath:      "currentHashrate",
			WorkersPath:       "workers",
			WorkerHashrateKey: "hr",
		},
	})
	if err != nil {
		slog.Error("failed to register provider", "error", err)
		os.Exit(1)
	}

	// fleet API: 2 wallets × 2 fields = 4 monitors from one declaration
	monitors, err := minerwatch.NewFleet("Farm",
		minerwatch.WithFleetPools("http://localhost:9999"),
		minerwatch.WithFleetWallets("0xaaa", "0xbbb"),
		minerwatch.WithFleetFields(minerwatch.FieldWorkersOnline, minerwatch.FieldWorkersOffline),
		minerwatch.WithFleetSchedule("@every 10s"),
	)
	if err != nil {
		slog.Error("failed to create fleet", "error", err)
		os.Exit(1)
	}

	// plus one idle-rig monitor with its own schedule
	monitors = append(monitors, minerwatch.Config{
		Name:          "idle rigs",
		PoolURL:       "http://localhost:9999",
		WalletAddress: "0xaaa",
		Mode:          minerwatch.ModeHashrateZero,
		Schedule:      "@every 30s",
	})

	w, err := minerwatch.New(
		minerwatch.WithMonitors(monitors...),
		minerwatch.WithPort(8080),
		minerwatch.WithEventCallback(func(ev minerwatch.Event) {
			fmt.Printf("%s  %-45s %v\n", ev.CreatedAt.Format(time.TimeOnly), ev.Monitor, ev.Payload())
		}),
	)
	if err != nil {
		slog.Error("failed to create watcher", "error", err)
		os.Exit(1)
	}

	fmt.Println()
	fmt.Println("  minerwatch demo")
	fmt.Println()
	fmt.Println("  Monitors:")
	fmt.Println("  • 4 aggregate (2 wallets × 2 fields via Fleet, every 10s)")
	fmt.Println("  • 1 zero-hashrate (every 30s)")
	fmt.Println()
	fmt.Println("  Status: http://localhost:8080/api/monitors")
	fmt.Println("  Events: http://localhost:8080/api/events")
	fmt.Println("  Press Ctrl+C to stop")
	fmt.Println()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := w.Start(ctx); err != nil {
		slog.Error("minerwatch error", "error", err)
		os.Exit(1)
	}
}
