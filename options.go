package minerwatch

import (
	"errors"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
)

// watcherConfig holds mutable state during Watcher construction.
type watcherConfig struct {
	monitors       []Config
	schedule       string
	port           int
	logger         *slog.Logger
	state          StateStore
	sinks          []EventSink
	eventCallbacks []func(Event)
	registry       *prometheus.Registry
	eventHistory   int
}

// Option is a function that configures a [Watcher] instance during
// construction.
//
// Option implements the functional options pattern, allowing optional
// configuration to be passed to [New] in a type-safe, extensible way.
// Options return an error if validation fails.
type Option func(*watcherConfig) error

// WithMonitor adds a single monitor configuration.
//
// Can be called multiple times. At least one monitor must be configured for
// [New] to succeed.
//
// Example:
//
//	w, err := minerwatch.New(
//	    minerwatch.WithMonitor(minerwatch.Config{
//	        PoolURL:       "https://clopool.pro",
//	        WalletAddress: "0x1234...",
//	    }),
//	)
func WithMonitor(cfg Config) Option {
	return func(wc *watcherConfig) error {
		wc.monitors = append(wc.monitors, cfg)
		return nil
	}
}

// WithMonitors adds several monitor configurations at once.
func WithMonitors(cfgs ...Config) Option {
	return func(wc *watcherConfig) error {
		wc.monitors = append(wc.monitors, cfgs...)
		return nil
	}
}

// WithSchedule sets the default cron spec for monitors without their own
// [Config.Schedule]. Accepts standard five-field specs and descriptors such
// as "@hourly" or "@every 30m". Defaults to "@every 1h".
//
// Returns an error if the cron expression cannot be parsed.
func WithSchedule(spec string) Option {
	return func(wc *watcherConfig) error {
		if _, err := cron.ParseStandard(spec); err != nil {
			return errors.New("invalid schedule: " + err.Error())
		}
		wc.schedule = spec
		return nil
	}
}

// WithPort sets the HTTP port for the status API. Defaults to 8080.
//
// Returns an error if the port is outside the valid range (1-65535).
func WithPort(port int) Option {
	return func(wc *watcherConfig) error {
		if port < 1 || port > 65535 {
			return errors.New("port must be between 1 and 65535")
		}
		wc.port = port
		return nil
	}
}

// WithLogger sets a custom [slog.Logger] for the Watcher and its monitors.
// If not specified, [slog.Default] is used.
//
// Returns an error if the logger is nil.
func WithLogger(logger *slog.Logger) Option {
	return func(wc *watcherConfig) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		wc.logger = logger
		return nil
	}
}

// WithState sets the [StateStore] shared by all monitors. Each monitor uses
// its own key. Defaults to an in-memory store.
//
// Returns an error if the store is nil.
func WithState(store StateStore) Option {
	return func(wc *watcherConfig) error {
		if store == nil {
			return errors.New("state store cannot be nil")
		}
		wc.state = store
		return nil
	}
}

// WithSink adds an [EventSink] that receives every event.
//
// Sinks run in registration order before the event reaches the history and
// callbacks. If a sink rejects a status change, the event counts as not
// emitted and the monitor reports the same change again on its next tick.
// That retry only goes to the sinks that have not accepted the record yet,
// so every sink sees each change once.
//
// Returns an error if the sink is nil.
func WithSink(sink EventSink) Option {
	return func(wc *watcherConfig) error {
		if sink == nil {
			return errors.New("event sink cannot be nil")
		}
		wc.sinks = append(wc.sinks, sink)
		return nil
	}
}

// WithEventCallback registers a function to be called for every emitted
// event, after all sinks accepted it.
//
// Callbacks are invoked synchronously from the emitting monitor's tick and
// must not block. Panics are recovered and logged.
//
// Example:
//
//	w, err := minerwatch.New(
//	    minerwatch.WithMonitor(cfg),
//	    minerwatch.WithEventCallback(func(ev minerwatch.Event) {
//	        if ev.Kind == minerwatch.EventHashrateZero {
//	            log.Printf("ALERT: %s worker %s is idle", ev.Monitor, ev.Alert.Worker)
//	        }
//	    }),
//	)
//
// Nil callbacks are silently ignored.
func WithEventCallback(cb func(Event)) Option {
	return func(wc *watcherConfig) error {
		if cb == nil {
			return nil
		}
		wc.eventCallbacks = append(wc.eventCallbacks, cb)
		return nil
	}
}

// WithMetricsRegistry registers the Prometheus collectors with reg and
// serves reg on /metrics. Defaults to a fresh private registry.
//
// Returns an error if the registry is nil.
func WithMetricsRegistry(reg *prometheus.Registry) Option {
	return func(wc *watcherConfig) error {
		if reg == nil {
			return errors.New("metrics registry cannot be nil")
		}
		wc.registry = reg
		return nil
	}
}

// WithEventHistory sets how many recent events the status API retains.
// Defaults to 100.
//
// Returns an error if n is zero or negative.
func WithEventHistory(n int) Option {
	return func(wc *watcherConfig) error {
		if n <= 0 {
			return errors.New("event history must be positive")
		}
		wc.eventHistory = n
		return nil
	}
}
