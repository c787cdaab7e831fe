package minerwatch

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/jpalmerr/minerwatch/internal/metrics"
	"github.com/jpalmerr/minerwatch/internal/poller"
)

// monitorConfig holds mutable state during monitor construction.
type monitorConfig struct {
	state   StateStore
	sink    EventSink
	logger  *slog.Logger
	client  *poller.Client
	now     func() time.Time
	metrics *metrics.Metrics
}

// MonitorOption configures a [Monitor] during construction.
//
// Built-in options: [WithStateStore], [WithEventSink], [WithMonitorLogger],
// [WithHTTPClient], [WithClock].
type MonitorOption func(*monitorConfig) error

// WithStateStore sets where the monitor remembers its last fingerprint.
// Defaults to a private in-memory store.
//
// Returns an error if store is nil.
func WithStateStore(store StateStore) MonitorOption {
	return func(cfg *monitorConfig) error {
		if store == nil {
			return errors.New("state store cannot be nil")
		}
		cfg.state = store
		return nil
	}
}

// WithEventSink sets the sink that receives emitted events. Defaults to a
// sink that discards events.
//
// Example:
//
//	m, err := minerwatch.NewMonitor(cfg,
//	    minerwatch.WithEventSink(minerwatch.EventSinkFunc(func(ctx context.Context, ev minerwatch.Event) error {
//	        log.Printf("%s: %v", ev.Monitor, ev.Payload())
//	        return nil
//	    })),
//	)
//
// Returns an error if sink is nil.
func WithEventSink(sink EventSink) MonitorOption {
	return func(cfg *monitorConfig) error {
		if sink == nil {
			return errors.New("event sink cannot be nil")
		}
		cfg.sink = sink
		return nil
	}
}

// WithMonitorLogger sets the logger for fetch-status lines, debug bodies and
// check failures. Defaults to [slog.Default].
//
// Returns an error if the logger is nil.
func WithMonitorLogger(logger *slog.Logger) MonitorOption {
	return func(cfg *monitorConfig) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		cfg.logger = logger
		return nil
	}
}

// WithHTTPClient sets the http.Client used for pool requests, e.g. to add a
// proxy or custom TLS roots. Per-request timeouts still apply.
//
// Returns an error if the client is nil.
func WithHTTPClient(hc *http.Client) MonitorOption {
	return func(cfg *monitorConfig) error {
		if hc == nil {
			return errors.New("http client cannot be nil")
		}
		cfg.client = poller.NewClientWithHTTP(hc)
		return nil
	}
}

// WithClock overrides the time source used for event timestamps and the
// health predicate.
//
// Returns an error if now is nil.
func WithClock(now func() time.Time) MonitorOption {
	return func(cfg *monitorConfig) error {
		if now == nil {
			return errors.New("clock cannot be nil")
		}
		cfg.now = now
		return nil
	}
}

// withPollerClient shares one pool client between the monitors of a Watcher.
func withPollerClient(c *poller.Client) MonitorOption {
	return func(cfg *monitorConfig) error {
		cfg.client = c
		return nil
	}
}

// withMetrics attaches the Watcher's Prometheus collectors.
func withMetrics(m *metrics.Metrics) MonitorOption {
	return func(cfg *monitorConfig) error {
		cfg.metrics = m
		return nil
	}
}
