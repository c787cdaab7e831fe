// Package minerwatch polls mining pool account APIs and reports when the
// watched part of an account changes.
//
// A [Monitor] watches one pool/wallet pair. Each tick it resolves the pool's
// account endpoint, fetches and decodes the JSON document, extracts a
// [StatusRecord] and emits an [Event] through an [EventSink]. Two modes are
// supported:
//
//   - [ModeAggregate]: watch one worker count (workersOnline by default) and
//     emit only when it differs from the last value seen.
//   - [ModeHashrateZero]: emit a [HashrateAlert] for the account and for each
//     worker whose hashrate is zero, on every tick.
//
// # Quick Start
//
// Create a watcher and start it with graceful shutdown:
//
//	w, _ := minerwatch.New(minerwatch.WithMonitor(minerwatch.Config{
//	    PoolURL:       "https://clopool.pro",
//	    WalletAddress: "0x1234...",
//	}))
//
//	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer stop()
//
//	w.Start(ctx) // blocks until context is cancelled
//
// # Configuration
//
// minerwatch uses the functional options pattern for configuration:
//
//	rdb := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	w, err := minerwatch.New(
//	    minerwatch.WithMonitors(cfgs...),
//	    minerwatch.WithSchedule("*/15 * * * *"),
//	    minerwatch.WithState(minerwatch.NewRedisStateStore(rdb, "")),
//	    minerwatch.WithSink(mySink),
//	)
//
// A single [Monitor] can also be driven directly, without a [Watcher]:
//
//	m, err := minerwatch.NewMonitor(cfg, minerwatch.WithEventSink(mySink))
//	err = m.Check(ctx)
//
// # Providers
//
// The request path and response layout depend on the pool. They are looked
// up by the last two labels of the pool host in a provider table that ships
// with clopool.pro, 2miners.com and nanopool.org. Use [RegisterProvider] to
// add others. A pool without a provider yields an
// [*UnsupportedProviderError] and no event.
//
// # Health
//
// A monitor is healthy when it emitted an event within its expected receive
// period and has logged no error since shortly before that event. See
// [HealthPredicate].
//
// # Architecture
//
// minerwatch consists of several internal packages (under internal/):
//
//   - internal/poller: HTTP client and cron scheduler
//   - internal/store: state stores (memory, Redis) and the event feed
//   - internal/server: read-only status API with Server-Sent Events
//   - internal/metrics: Prometheus collectors
//
// The internal packages are not part of the public API and may change
// without notice.
package minerwatch
