package minerwatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jpalmerr/minerwatch/internal/metrics"
	"github.com/jpalmerr/minerwatch/internal/poller"
	"github.com/jpalmerr/minerwatch/internal/store"
)

// Monitor watches one wallet on one pool.
//
// Each call to [Monitor.Check] runs one tick: resolve the endpoint, fetch
// the status document, extract the watched status and emit events. Ticks
// are serialized, so a Monitor may be driven by several schedulers at once.
//
// Create a Monitor with [NewMonitor]; use [Watcher] to run many monitors on
// a schedule.
type Monitor struct {
	cfg      Config
	client   *poller.Client
	detector *ChangeDetector
	sink     EventSink
	logger   *slog.Logger
	activity *activity
	health   HealthPredicate
	metrics  *metrics.Metrics
	now      func() time.Time

	mu sync.Mutex
}

// MonitorStatus is a point-in-time view of a [Monitor].
type MonitorStatus struct {
	Name         string
	PoolURL      string
	Wallet       string
	Mode         Mode
	WatchedField WatchedField
	Healthy      bool
	LastEventAt  time.Time
	LastErrorAt  time.Time
	Fingerprint  string
}

// NewMonitor creates a [Monitor] for cfg.
//
// Returns an error if cfg is invalid (see [Config.Validate]) or any option
// fails.
//
// Example:
//
//	m, err := minerwatch.NewMonitor(minerwatch.Config{
//	    PoolURL:       "https://clopool.pro",
//	    WalletAddress: "0x1234...",
//	    WatchedField:  minerwatch.FieldWorkersOnline,
//	}, minerwatch.WithEventSink(sink))
func NewMonitor(cfg Config, opts ...MonitorOption) (*Monitor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	mc := &monitorConfig{now: time.Now}
	for _, opt := range opts {
		if err := opt(mc); err != nil {
			return nil, err
		}
	}
	if mc.state == nil {
		mc.state = store.NewMemoryStore()
	}
	if mc.sink == nil {
		mc.sink = discardSink{}
	}
	if mc.logger == nil {
		mc.logger = slog.Default()
	}
	if mc.client == nil {
		mc.client = poller.NewClient()
	}

	act := &activity{}
	logger := slog.New(newErrorTrackingHandler(mc.logger.Handler(), act, mc.now)).With("monitor", cfg.Name)

	return &Monitor{
		cfg:      cfg,
		client:   mc.client,
		detector: NewChangeDetector(stateKey(cfg.Name), mc.state, mc.sink),
		sink:     mc.sink,
		logger:   logger,
		activity: act,
		health:   HealthPredicate{expectedPeriod: cfg.ExpectedReceivePeriod(), activity: act},
		metrics:  mc.metrics,
		now:      mc.now,
	}, nil
}

// Name returns the monitor name.
func (m *Monitor) Name() string {
	return m.cfg.Name
}

// Config returns the monitor configuration with defaults applied.
func (m *Monitor) Config() Config {
	return m.cfg
}

// Logger returns the monitor's logger. Errors logged through it count
// against [Monitor.Healthy].
func (m *Monitor) Logger() *slog.Logger {
	return m.logger
}

// Check runs one tick.
//
// Failures ([*UnsupportedProviderError], [*FetchError],
// [*MalformedResponseError], state store and sink errors) are logged at
// error level and returned. A failed tick leaves the remembered fingerprint
// untouched and emits nothing; the next tick is the retry.
func (m *Monitor) Check(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	err := m.check(ctx)
	if m.metrics != nil {
		m.metrics.ChecksTotal.WithLabelValues(m.cfg.Name, checkResult(err)).Inc()
	}
	if err != nil {
		m.logger.Error("check failed", "error", err)
	}
	if m.metrics != nil {
		healthy := 0.0
		if m.Healthy() {
			healthy = 1
		}
		m.metrics.Healthy.WithLabelValues(m.cfg.Name).Set(healthy)
	}
	return err
}

func (m *Monitor) check(ctx context.Context) error {
	url, provider, err := ResolveEndpoint(m.cfg.PoolURL, m.cfg.WalletAddress)
	if err != nil {
		return err
	}

	resp := m.client.Get(ctx, url, m.cfg.Timeout)
	if m.metrics != nil {
		m.metrics.FetchDuration.WithLabelValues(m.cfg.Name).Observe(resp.Latency.Seconds())
	}
	if resp.Error == nil {
		m.logger.Info("fetch notification request status", "status_code", resp.StatusCode, "url", url)
		if m.cfg.Debug {
			m.logger.Info("fetch notification response body", "body", string(resp.Body))
		}
	}
	if err := resp.Err(); err != nil {
		return &FetchError{URL: url, StatusCode: resp.StatusCode, Cause: err}
	}
	doc, err := resp.JSON()
	if err != nil {
		return &FetchError{URL: url, StatusCode: resp.StatusCode, Cause: err}
	}

	switch m.cfg.Mode {
	case ModeHashrateZero:
		var alerts []HashrateAlert
		err := m.safeExtract(func() (err error) {
			alerts, err = ExtractHashrateAlerts(doc, provider.Schema, m.cfg.PoolURL, m.cfg.WalletAddress)
			return err
		})
		if err != nil {
			return err
		}
		return m.emitAlerts(ctx, alerts)
	default:
		var rec StatusRecord
		err := m.safeExtract(func() (err error) {
			rec, err = ExtractAggregate(doc, m.cfg.WatchedField)
			return err
		})
		if err != nil {
			return err
		}
		emitted, err := m.detector.Observe(ctx, rec, m.newEvent())
		if err != nil {
			return err
		}
		if emitted {
			m.recordEvent(EventStatusChanged)
			m.logger.Debug("status changed", "record", rec.Fingerprint())
		}
		return nil
	}
}

// emitAlerts forwards every alert to the sink independently. Alerts are not
// deduplicated: they repeat on every tick the zero condition holds.
func (m *Monitor) emitAlerts(ctx context.Context, alerts []HashrateAlert) error {
	var errs []error
	for i := range alerts {
		ev := m.newEvent()
		ev.Kind = EventHashrateZero
		ev.Alert = &alerts[i]
		if err := m.sink.Emit(ctx, ev); err != nil {
			errs = append(errs, fmt.Errorf("emit hashrate alert (worker %q): %w", alerts[i].Worker, err))
			continue
		}
		m.recordEvent(EventHashrateZero)
	}
	return errors.Join(errs...)
}

// safeExtract runs fn with panic recovery. A panic becomes a
// [*MalformedResponseError] whose correlation id matches the logged stack.
func (m *Monitor) safeExtract(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			correlationID := uuid.NewString()
			m.logger.Error("extractor panic",
				"correlation_id", correlationID,
				"panic", fmt.Sprintf("%v", r),
				"stack", string(debug.Stack()),
			)
			err = &MalformedResponseError{Reason: "extractor panic", CorrelationID: correlationID}
		}
	}()
	return fn()
}

func (m *Monitor) newEvent() Event {
	return Event{
		ID:        uuid.NewString(),
		Monitor:   m.cfg.Name,
		CreatedAt: m.now(),
	}
}

func (m *Monitor) recordEvent(kind EventKind) {
	now := m.now()
	m.activity.eventAt(now)
	if m.metrics != nil {
		m.metrics.EventsTotal.WithLabelValues(m.cfg.Name, string(kind)).Inc()
		m.metrics.LastEventTime.WithLabelValues(m.cfg.Name).Set(float64(now.Unix()))
	}
}

// Healthy reports whether the monitor is considered working: no error was
// logged within the recent-activity window and an event was emitted within
// the expected receive period. It is advisory and never blocks a check.
func (m *Monitor) Healthy() bool {
	return m.health.Healthy(m.now())
}

// Status returns a point-in-time view of the monitor. The fingerprint is
// read from the state store; a read error leaves it empty.
func (m *Monitor) Status(ctx context.Context) MonitorStatus {
	lastEvent, lastError := m.activity.snapshot()
	fp, _, _ := m.detector.Fingerprint(ctx)
	return MonitorStatus{
		Name:         m.cfg.Name,
		PoolURL:      m.cfg.PoolURL,
		Wallet:       m.cfg.WalletAddress,
		Mode:         m.cfg.Mode,
		WatchedField: m.cfg.WatchedField,
		Healthy:      m.Healthy(),
		LastEventAt:  lastEvent,
		LastErrorAt:  lastError,
		Fingerprint:  fp,
	}
}

// checkResult maps a check error to the metrics result label.
func checkResult(err error) string {
	var (
		unsupported *UnsupportedProviderError
		fetchErr    *FetchError
		malformed   *MalformedResponseError
	)
	switch {
	case err == nil:
		return metrics.ResultOK
	case errors.As(err, &unsupported):
		return metrics.ResultUnsupportedProvider
	case errors.As(err, &fetchErr):
		return metrics.ResultFetchError
	case errors.As(err, &malformed):
		return metrics.ResultMalformedResponse
	default:
		return metrics.ResultError
	}
}
