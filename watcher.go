package minerwatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jpalmerr/minerwatch/internal/metrics"
	"github.com/jpalmerr/minerwatch/internal/poller"
	"github.com/jpalmerr/minerwatch/internal/server"
	"github.com/jpalmerr/minerwatch/internal/store"
)

const (
	defaultSchedule = poller.DefaultSpec
	defaultPort     = 8080
)

// Watcher runs a set of monitors on cron schedules and serves their status.
//
// It is created using [New] with functional options and started with
// [Watcher.Start]. The typical lifecycle is:
//
//	w, err := minerwatch.New(minerwatch.WithMonitor(cfg))
//	if err != nil {
//	    slog.Error("failed to create watcher", "error", err)
//	    os.Exit(1)
//	}
//
//	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer cancel()
//
//	w.Start(ctx) // blocks until context cancelled
type Watcher struct {
	monitors  []*Monitor
	schedule  string
	port      int
	logger    *slog.Logger
	client    *poller.Client
	feed      *store.Feed
	registry  *prometheus.Registry
	sinks     []EventSink
	callbacks []func(Event)
	byName    map[string]*Monitor

	mu      sync.Mutex
	pending map[string]*delivery // by monitor name
}

// delivery tracks which sinks already accepted a status change that some
// other sink rejected.
type delivery struct {
	fingerprint string
	done        []bool
}

// New creates a new [Watcher] with the given options.
//
// At least one monitor must be configured via [WithMonitor] or
// [WithMonitors]. Other options have sensible defaults:
//   - Schedule: every hour
//   - Port: 8080
//   - State: in-memory
//
// Returns an error if no monitors are configured, a monitor configuration
// is invalid, two monitors share a name, or any option is invalid.
func New(opts ...Option) (*Watcher, error) {
	wc := &watcherConfig{
		schedule: defaultSchedule,
		port:     defaultPort,
	}
	for _, opt := range opts {
		if err := opt(wc); err != nil {
			return nil, err
		}
	}

	if len(wc.monitors) == 0 {
		return nil, errors.New("at least one monitor is required")
	}

	logger := wc.logger
	if logger == nil {
		logger = slog.Default()
	}
	state := wc.state
	if state == nil {
		state = store.NewMemoryStore()
	}
	registry := wc.registry
	if registry == nil {
		registry = prometheus.NewRegistry()
		registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}

	w := &Watcher{
		schedule:  wc.schedule,
		port:      wc.port,
		logger:    logger,
		client:    poller.NewClient(),
		feed:      store.NewFeed(wc.eventHistory),
		registry:  registry,
		sinks:     wc.sinks,
		callbacks: wc.eventCallbacks,
		byName:    make(map[string]*Monitor, len(wc.monitors)),
		pending:   make(map[string]*delivery),
	}
	m := metrics.New(registry)

	// names key the state store, so they must be unique
	seen := make(map[string]bool, len(wc.monitors))
	for i, cfg := range wc.monitors {
		mon, err := NewMonitor(cfg,
			WithStateStore(state),
			WithEventSink(EventSinkFunc(w.emit)),
			WithMonitorLogger(logger),
			withPollerClient(w.client),
			withMetrics(m),
		)
		if err != nil {
			return nil, fmt.Errorf("monitors[%d]: %w", i, err)
		}
		if seen[mon.Name()] {
			return nil, fmt.Errorf("duplicate monitor name: %q", mon.Name())
		}
		seen[mon.Name()] = true
		w.monitors = append(w.monitors, mon)
		w.byName[mon.Name()] = mon
	}

	return w, nil
}

// Start runs every monitor once, then on its schedule, and serves the status
// API until ctx is cancelled.
//
// Returns nil on graceful shutdown, or an error if the HTTP server fails to
// start or a schedule is invalid.
func (w *Watcher) Start(ctx context.Context) error {
	w.logger.Info("minerwatch starting", "monitor_count", len(w.monitors))
	w.logger.Info("schedule configured", "schedule", w.schedule)
	w.logger.Info("status api available", "url", fmt.Sprintf("http://localhost:%d/api/monitors", w.port))

	if ctx.Err() != nil {
		return nil
	}

	scheduler := poller.NewScheduler(w.logger)
	for _, m := range w.monitors {
		spec := m.cfg.Schedule
		if spec == "" {
			spec = w.schedule
		}
		if err := scheduler.Add(spec, m); err != nil {
			return err
		}
	}
	scheduler.Start(ctx)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for result := range scheduler.Results() {
			logAttrs := []any{
				"monitor", result.JobName,
				"duration_ms", result.Duration.Milliseconds(),
			}
			if result.Error != nil {
				// the monitor already logged the failure at error level
				w.logger.Debug("tick completed with error", logAttrs...)
			} else {
				w.logger.Debug("tick completed", logAttrs...)
			}
		}
	}()

	cleanup := func() {
		scheduler.Stop() // closes results channel
		wg.Wait()
		w.client.Close()
	}

	metricsHandler := promhttp.HandlerFor(w.registry, promhttp.HandlerOpts{})
	httpServer := server.NewServer(w, w.feed, metricsHandler, w.port, w.logger)
	if err := httpServer.Start(ctx); err != nil {
		cleanup()
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	<-ctx.Done()
	cleanup()
	w.logger.Info("minerwatch stopped")
	return nil
}

// RunOnce runs a single tick of every monitor in order, without scheduling
// or serving. It returns the failures of all ticks joined together.
func (w *Watcher) RunOnce(ctx context.Context) error {
	var errs []error
	for _, m := range w.monitors {
		if err := m.Check(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", m.Name(), err))
		}
	}
	w.client.Close()
	return errors.Join(errs...)
}

// Monitors returns the watcher's monitors.
//
// The returned slice is a copy; modifying it does not affect the Watcher.
func (w *Watcher) Monitors() []*Monitor {
	cp := make([]*Monitor, len(w.monitors))
	copy(cp, w.monitors)
	return cp
}

// Port returns the configured HTTP port for the status API.
func (w *Watcher) Port() int {
	return w.port
}

// Schedule returns the default cron spec.
func (w *Watcher) Schedule() string {
	return w.schedule
}

// RecentEvents returns up to limit recent events as stored for the status
// API, newest first.
func (w *Watcher) RecentEvents(limit int) []store.EventRecord {
	return w.feed.Recent(limit)
}

// MonitorInfos implements server.MonitorSource.
func (w *Watcher) MonitorInfos(ctx context.Context) []server.MonitorInfo {
	infos := make([]server.MonitorInfo, 0, len(w.monitors))
	for _, m := range w.monitors {
		infos = append(infos, statusToInfo(m.Status(ctx)))
	}
	return infos
}

// emit is the sink handed to every monitor. It fans ev out to the user
// sinks, then records it in the feed and runs the callbacks.
func (w *Watcher) emit(ctx context.Context, ev Event) error {
	if err := w.deliver(ctx, ev); err != nil {
		return err
	}

	logger := w.monitorLogger(ev.Monitor)
	rec, err := eventToRecord(ev)
	if err != nil {
		logger.Error("failed to encode event", "error", err)
	} else {
		w.feed.Publish(rec)
	}

	for _, cb := range w.callbacks {
		invokeCallbackSafe(cb, ev, logger)
	}
	return nil
}

// deliver hands ev to every sink.
//
// A status change rejected by one sink is retried on a later tick; sinks
// that already accepted the same record are skipped then. Hashrate alerts
// repeat every tick, so each one goes to all sinks and the errors are joined.
func (w *Watcher) deliver(ctx context.Context, ev Event) error {
	if ev.Kind == EventHashrateZero {
		var errs []error
		for _, sink := range w.sinks {
			if err := sink.Emit(ctx, ev); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}

	fp := ev.Record.Fingerprint()
	w.mu.Lock()
	d, ok := w.pending[ev.Monitor]
	if !ok || d.fingerprint != fp {
		d = &delivery{fingerprint: fp, done: make([]bool, len(w.sinks))}
	}
	w.mu.Unlock()

	// ticks of one monitor never overlap, so d is not shared
	for i, sink := range w.sinks {
		if d.done[i] {
			continue
		}
		if err := sink.Emit(ctx, ev); err != nil {
			w.mu.Lock()
			w.pending[ev.Monitor] = d
			w.mu.Unlock()
			return err
		}
		d.done[i] = true
	}

	w.mu.Lock()
	delete(w.pending, ev.Monitor)
	w.mu.Unlock()
	return nil
}

// monitorLogger returns the logger of the named monitor, so errors logged
// about its events count against its health.
func (w *Watcher) monitorLogger(name string) *slog.Logger {
	if m, ok := w.byName[name]; ok {
		return m.Logger()
	}
	return w.logger.With("monitor", name)
}

// eventToRecord converts a public event to its storage representation.
func eventToRecord(ev Event) (store.EventRecord, error) {
	payload, err := json.Marshal(ev.Payload())
	if err != nil {
		return store.EventRecord{}, err
	}
	return store.EventRecord{
		ID:        ev.ID,
		Monitor:   ev.Monitor,
		Kind:      string(ev.Kind),
		CreatedAt: ev.CreatedAt,
		Payload:   payload,
	}, nil
}

// statusToInfo converts a monitor status to its API representation.
func statusToInfo(st MonitorStatus) server.MonitorInfo {
	info := server.MonitorInfo{
		Name:        st.Name,
		PoolURL:     st.PoolURL,
		Wallet:      st.Wallet,
		Mode:        st.Mode.String(),
		Healthy:     st.Healthy,
		LastEventAt: timePtr(st.LastEventAt),
		LastErrorAt: timePtr(st.LastErrorAt),
		Fingerprint: st.Fingerprint,
	}
	if st.Mode == ModeAggregate {
		info.WatchedField = st.WatchedField.String()
	}
	return info
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// invokeCallbackSafe calls an event callback with panic recovery.
// Panics are logged but do not propagate.
func invokeCallbackSafe(cb func(Event), ev Event, logger *slog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("event callback panicked",
				"panic", r,
				"event_id", ev.ID,
			)
		}
	}()
	cb(ev)
}
