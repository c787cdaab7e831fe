package minerwatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jpalmerr/minerwatch/internal/metrics"
	"github.com/jpalmerr/minerwatch/internal/store"
)

// registerLocalPool maps httptest servers (127.0.0.1) to the
// open-ethereum-pool layout.
func registerLocalPool(t *testing.T) {
	t.Helper()
	err := RegisterProvider("127.0.0.1", Provider{
		Name:         "local",
		PathTemplate: "/api/accounts/{wallet}",
		Schema:       openEthereumPool,
	})
	if err != nil {
		t.Fatalf("RegisterProvider() error = %v", err)
	}
}

// fakePool serves a replaceable body for /api/accounts/0xabc.
type fakePool struct {
	*httptest.Server
	mu     sync.Mutex
	body   string
	status int
	hits   atomic.Int32
}

func newFakePool(t *testing.T, body string) *fakePool {
	t.Helper()
	registerLocalPool(t)
	p := &fakePool{body: body, status: http.StatusOK}
	p.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p.hits.Add(1)
		if r.URL.Path != "/api/accounts/0xabc" {
			http.NotFound(w, r)
			return
		}
		p.mu.Lock()
		body, status := p.body, p.status
		p.mu.Unlock()
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(p.Close)
	return p
}

func (p *fakePool) set(status int, body string) {
	p.mu.Lock()
	p.status, p.body = status, body
	p.mu.Unlock()
}

// testClock is a manually advanced clock.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestMonitor(t *testing.T, cfg Config, opts ...MonitorOption) (*Monitor, *recordingSink) {
	t.Helper()
	sink := &recordingSink{}
	opts = append([]MonitorOption{WithEventSink(sink), WithMonitorLogger(discardLogger())}, opts...)
	m, err := NewMonitor(cfg, opts...)
	if err != nil {
		t.Fatalf("NewMonitor() error = %v", err)
	}
	return m, sink
}

func TestMonitor_AggregateEmitsOnChange(t *testing.T) {
	pool := newFakePool(t, `{"workersOnline": 3, "workersOffline": 1}`)
	m, sink := newTestMonitor(t, Config{PoolURL: pool.URL, WalletAddress: "0xabc"})
	ctx := context.Background()

	var fingerprints []string
	for i := 0; i < 3; i++ {
		if err := m.Check(ctx); err != nil {
			t.Fatalf("tick %d: Check() error = %v", i, err)
		}
		fingerprints = append(fingerprints, m.Status(ctx).Fingerprint)
	}
	for i, fp := range fingerprints {
		if fp != `{"workersOnline"=>3}` {
			t.Errorf("tick %d: stored fingerprint = %s, want {\"workersOnline\"=>3}", i, fp)
		}
	}
	if len(sink.events) != 1 {
		t.Fatalf("after 3 identical ticks: len(events) = %d, want 1", len(sink.events))
	}

	// only the watched field matters
	pool.set(http.StatusOK, `{"workersOnline": 3, "workersOffline": 0}`)
	if err := m.Check(ctx); err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if len(sink.events) != 1 {
		t.Fatalf("unwatched change emitted: len(events) = %d", len(sink.events))
	}

	pool.set(http.StatusOK, `{"workersOnline": 2, "workersOffline": 1}`)
	if err := m.Check(ctx); err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if len(sink.events) != 2 {
		t.Fatalf("len(events) = %d, want 2", len(sink.events))
	}

	ev := sink.events[1]
	if ev.Kind != EventStatusChanged || ev.Monitor != "127.0.0.1/0xabc" {
		t.Errorf("event = %+v", ev)
	}
	if ev.ID == "" || ev.ID == sink.events[0].ID {
		t.Errorf("event ids = %q, %q; want distinct", sink.events[0].ID, ev.ID)
	}
	payload, _ := json.Marshal(ev.Payload())
	if string(payload) != `{"workersOnline":2}` {
		t.Errorf("payload = %s", payload)
	}
}

func TestMonitor_AbsentFieldEmitsNull(t *testing.T) {
	pool := newFakePool(t, `{"workersOffline": 1}`)
	m, sink := newTestMonitor(t, Config{PoolURL: pool.URL, WalletAddress: "0xabc"})

	if err := m.Check(context.Background()); err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if len(sink.events) != 1 {
		t.Fatalf("len(events) = %d, want 1", len(sink.events))
	}
	payload, _ := json.Marshal(sink.events[0].Payload())
	if string(payload) != `{"workersOnline":null}` {
		t.Errorf("payload = %s, want {\"workersOnline\":null}", payload)
	}
}

func TestMonitor_FetchErrors(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantStatus int
	}{
		{"server error", http.StatusInternalServerError, `{"error": "boom"}`, 500},
		{"not found", http.StatusNotFound, `{}`, 404},
		{"invalid json", http.StatusOK, `<html>maintenance</html>`, 200},
		{"trailing data", http.StatusOK, `{"workersOnline": 1} extra`, 200},
		{"empty body", http.StatusOK, ``, 200},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pool := newFakePool(t, `{"workersOnline": 3}`)
			state := store.NewMemoryStore()
			m, sink := newTestMonitor(t, Config{PoolURL: pool.URL, WalletAddress: "0xabc"}, WithStateStore(state))
			ctx := context.Background()

			if err := m.Check(ctx); err != nil {
				t.Fatalf("first Check() error = %v", err)
			}

			pool.set(tt.status, tt.body)
			err := m.Check(ctx)
			var fetchErr *FetchError
			if !errors.As(err, &fetchErr) {
				t.Fatalf("error = %v, want *FetchError", err)
			}
			if fetchErr.StatusCode != tt.wantStatus {
				t.Errorf("StatusCode = %d, want %d", fetchErr.StatusCode, tt.wantStatus)
			}
			if len(sink.events) != 1 {
				t.Errorf("len(events) = %d, want 1", len(sink.events))
			}
			if fp, _, _ := state.Get(ctx, stateKey(m.Name())); fp != `{"workersOnline"=>3}` {
				t.Errorf("fingerprint = %q, want it untouched", fp)
			}
		})
	}
}

func TestMonitor_TransportError(t *testing.T) {
	pool := newFakePool(t, `{}`)
	url := pool.URL
	pool.Close()

	m, sink := newTestMonitor(t, Config{PoolURL: url, WalletAddress: "0xabc", Timeout: time.Second})
	err := m.Check(context.Background())

	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("error = %v, want *FetchError", err)
	}
	if fetchErr.StatusCode != 0 {
		t.Errorf("StatusCode = %d, want 0", fetchErr.StatusCode)
	}
	if len(sink.events) != 0 {
		t.Errorf("len(events) = %d, want 0", len(sink.events))
	}
}

func TestMonitor_UnsupportedProvider(t *testing.T) {
	state := store.NewMemoryStore()
	m, sink := newTestMonitor(t,
		Config{PoolURL: "https://unknown-pool.io", WalletAddress: "0xabc"},
		WithStateStore(state),
	)
	ctx := context.Background()

	err := m.Check(ctx)
	var unsupported *UnsupportedProviderError
	if !errors.As(err, &unsupported) {
		t.Fatalf("error = %v, want *UnsupportedProviderError", err)
	}
	if unsupported.Domain != "unknown-pool.io" {
		t.Errorf("Domain = %q", unsupported.Domain)
	}
	if len(sink.events) != 0 {
		t.Errorf("len(events) = %d, want 0", len(sink.events))
	}
	if _, ok, _ := state.Get(ctx, stateKey(m.Name())); ok {
		t.Error("state was written for an unsupported provider")
	}
}

func TestMonitor_HashrateAlertsRepeat(t *testing.T) {
	pool := newFakePool(t, `{"currentHashrate": 0, "workers": {"rig1": {"hr": 0}, "rig2": {"hr": 120}}}`)
	m, sink := newTestMonitor(t, Config{
		PoolURL:       pool.URL,
		WalletAddress: "0xabc",
		Mode:          ModeHashrateZero,
	})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := m.Check(ctx); err != nil {
			t.Fatalf("tick %d: Check() error = %v", i, err)
		}
	}
	if len(sink.events) != 4 {
		t.Fatalf("len(events) = %d, want 4 (2 per tick)", len(sink.events))
	}
	for _, ev := range sink.events {
		if ev.Kind != EventHashrateZero || ev.Alert == nil {
			t.Fatalf("event = %+v, want a hashrate alert", ev)
		}
		if ev.Alert.Pool != pool.URL || ev.Alert.Wallet != "0xabc" || ev.Alert.Status != "hashrate is 0" {
			t.Errorf("alert = %+v", ev.Alert)
		}
	}
	if sink.events[0].Alert.Worker != "" || sink.events[1].Alert.Worker != "rig1" {
		t.Errorf("workers = %q, %q", sink.events[0].Alert.Worker, sink.events[1].Alert.Worker)
	}

	payload, _ := json.Marshal(sink.events[0].Payload())
	want := fmt.Sprintf(`{"pool":%q,"wallet":"0xabc","status":"hashrate is 0","hashrate":"0.0"}`, pool.URL)
	if string(payload) != want {
		t.Errorf("payload = %s, want %s", payload, want)
	}
}

func TestMonitor_HashrateMalformed(t *testing.T) {
	pool := newFakePool(t, `[1, 2, 3]`)
	m, sink := newTestMonitor(t, Config{PoolURL: pool.URL, WalletAddress: "0xabc", Mode: ModeHashrateZero})

	err := m.Check(context.Background())
	var malformed *MalformedResponseError
	if !errors.As(err, &malformed) {
		t.Fatalf("error = %v, want *MalformedResponseError", err)
	}
	if len(sink.events) != 0 {
		t.Errorf("len(events) = %d, want 0", len(sink.events))
	}
}

func TestMonitor_HashrateSinkErrorsAreJoined(t *testing.T) {
	pool := newFakePool(t, `{"currentHashrate": 0, "workers": {"rig1": {"hr": 0}}}`)
	m, sink := newTestMonitor(t, Config{PoolURL: pool.URL, WalletAddress: "0xabc", Mode: ModeHashrateZero})
	sink.err = errors.New("sink down")

	err := m.Check(context.Background())
	if !errors.Is(err, sink.err) {
		t.Fatalf("error = %v, want to wrap the sink error", err)
	}
	if !strings.Contains(err.Error(), `worker "rig1"`) {
		t.Errorf("error = %q, want one entry per alert", err)
	}
}

func TestMonitor_Health(t *testing.T) {
	pool := newFakePool(t, `{"workersOnline": 3}`)
	clock := newTestClock()
	m, _ := newTestMonitor(t,
		Config{PoolURL: pool.URL, WalletAddress: "0xabc", ExpectedReceivePeriodDays: 1},
		WithClock(clock.Now),
	)
	ctx := context.Background()

	if m.Healthy() {
		t.Error("Healthy() = true before any event")
	}

	if err := m.Check(ctx); err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if !m.Healthy() {
		t.Error("Healthy() = false right after an event")
	}

	// an unchanged status emits nothing, so the receive period runs out
	clock.Advance(25 * time.Hour)
	if err := m.Check(ctx); err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if m.Healthy() {
		t.Error("Healthy() = true after the receive period elapsed")
	}

	// a fresh event restores health
	pool.set(http.StatusOK, `{"workersOnline": 4}`)
	if err := m.Check(ctx); err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if !m.Healthy() {
		t.Error("Healthy() = false after a new event")
	}

	// a failed tick marks the monitor unhealthy
	clock.Advance(time.Minute)
	pool.set(http.StatusBadGateway, `bad gateway`)
	if err := m.Check(ctx); err == nil {
		t.Fatal("Check() expected error")
	}
	if m.Healthy() {
		t.Error("Healthy() = true after a logged error")
	}

	st := m.Status(ctx)
	if st.Healthy || st.LastErrorAt.IsZero() || st.LastEventAt.IsZero() {
		t.Errorf("Status() = %+v", st)
	}
	if st.Fingerprint != `{"workersOnline"=>4}` {
		t.Errorf("Status().Fingerprint = %q", st.Fingerprint)
	}
}

func TestMonitor_Logging(t *testing.T) {
	pool := newFakePool(t, `{"workersOnline": 3}`)
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	m, err := NewMonitor(Config{PoolURL: pool.URL, WalletAddress: "0xabc", Debug: true},
		WithMonitorLogger(logger))
	if err != nil {
		t.Fatalf("NewMonitor() error = %v", err)
	}
	if err := m.Check(context.Background()); err != nil {
		t.Fatalf("Check() error = %v", err)
	}

	out := buf.String()
	for _, want := range []string{
		`"msg":"fetch notification request status"`,
		`"status_code":200`,
		`"monitor":"127.0.0.1/0xabc"`,
		`"msg":"fetch notification response body"`,
		`workersOnline`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %s\n%s", want, out)
		}
	}
}

func TestMonitor_NoBodyLogWithoutDebug(t *testing.T) {
	pool := newFakePool(t, `{"workersOnline": 3}`)
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	m, err := NewMonitor(Config{PoolURL: pool.URL, WalletAddress: "0xabc"}, WithMonitorLogger(logger))
	if err != nil {
		t.Fatalf("NewMonitor() error = %v", err)
	}
	if err := m.Check(context.Background()); err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if strings.Contains(buf.String(), "response body") {
		t.Errorf("body logged without debug:\n%s", buf.String())
	}
}

func TestMonitor_SafeExtractRecoversPanic(t *testing.T) {
	m, _ := newTestMonitor(t, Config{PoolURL: "https://clopool.pro", WalletAddress: "0xabc"})

	err := m.safeExtract(func() error {
		var doc map[string]any
		doc["boom"] = 1 // nil map write
		return nil
	})

	var malformed *MalformedResponseError
	if !errors.As(err, &malformed) {
		t.Fatalf("error = %v, want *MalformedResponseError", err)
	}
	if malformed.CorrelationID == "" {
		t.Error("CorrelationID is empty")
	}
}

func TestMonitor_ConcurrentChecksAreSerialized(t *testing.T) {
	pool := newFakePool(t, `{"workersOnline": 3}`)
	var count atomic.Int32
	sink := EventSinkFunc(func(context.Context, Event) error {
		count.Add(1)
		return nil
	})
	m, err := NewMonitor(Config{PoolURL: pool.URL, WalletAddress: "0xabc"},
		WithEventSink(sink), WithMonitorLogger(discardLogger()))
	if err != nil {
		t.Fatalf("NewMonitor() error = %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = m.Check(context.Background())
		}()
	}
	wg.Wait()

	if got := count.Load(); got != 1 {
		t.Errorf("events = %d, want exactly 1", got)
	}
}

func TestNewMonitor_Defaults(t *testing.T) {
	m, err := NewMonitor(Config{PoolURL: "https://eu1.clopool.pro", WalletAddress: "0xabc"})
	if err != nil {
		t.Fatalf("NewMonitor() error = %v", err)
	}
	cfg := m.Config()
	if cfg.Name != "clopool.pro/0xabc" {
		t.Errorf("Name = %q", cfg.Name)
	}
	if cfg.Mode != ModeAggregate || cfg.WatchedField != FieldWorkersOnline {
		t.Errorf("Mode = %q, WatchedField = %q", cfg.Mode, cfg.WatchedField)
	}
	if cfg.ExpectedReceivePeriodDays != 2 {
		t.Errorf("ExpectedReceivePeriodDays = %d, want 2", cfg.ExpectedReceivePeriodDays)
	}
	if cfg.Timeout != 10*time.Second {
		t.Errorf("Timeout = %v, want 10s", cfg.Timeout)
	}
}

func TestNewMonitor_InvalidConfig(t *testing.T) {
	tests := []struct {
		name        string
		cfg         Config
		wantErrLike string
	}{
		{"missing wallet", Config{PoolURL: "https://clopool.pro"}, "wallet_address is a required field"},
		{"missing pool", Config{WalletAddress: "0xabc"}, "pool_url is a required field"},
		{"bad mode", Config{PoolURL: "https://clopool.pro", WalletAddress: "0xabc", Mode: "x"}, "unknown mode"},
		{"bad field", Config{PoolURL: "https://clopool.pro", WalletAddress: "0xabc", WatchedField: "hashrate"}, "status_wanted must be"},
		{"negative period", Config{PoolURL: "https://clopool.pro", WalletAddress: "0xabc", ExpectedReceivePeriodDays: -1}, "expected_receive_period_in_days"},
		{"negative timeout", Config{PoolURL: "https://clopool.pro", WalletAddress: "0xabc", Timeout: -time.Second}, "timeout cannot be negative"},
		{"bad schedule", Config{PoolURL: "https://clopool.pro", WalletAddress: "0xabc", Schedule: "soon"}, "invalid schedule"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewMonitor(tt.cfg)
			if err == nil {
				t.Fatal("NewMonitor() expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErrLike) {
				t.Errorf("error = %q, want to contain %q", err, tt.wantErrLike)
			}
		})
	}
}

func TestNewMonitor_NilOptions(t *testing.T) {
	cfg := Config{PoolURL: "https://clopool.pro", WalletAddress: "0xabc"}
	opts := map[string]MonitorOption{
		"state":  WithStateStore(nil),
		"sink":   WithEventSink(nil),
		"logger": WithMonitorLogger(nil),
		"client": WithHTTPClient(nil),
		"clock":  WithClock(nil),
	}
	for name, opt := range opts {
		t.Run(name, func(t *testing.T) {
			if _, err := NewMonitor(cfg, opt); err == nil {
				t.Error("NewMonitor() expected error for nil option")
			}
		})
	}
}

func TestCheckResult(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, metrics.ResultOK},
		{&UnsupportedProviderError{Domain: "x.io"}, metrics.ResultUnsupportedProvider},
		{fmt.Errorf("wrapped: %w", &FetchError{URL: "u"}), metrics.ResultFetchError},
		{&MalformedResponseError{Reason: "r"}, metrics.ResultMalformedResponse},
		{errors.New("state down"), metrics.ResultError},
	}

	for _, tt := range tests {
		if got := checkResult(tt.err); got != tt.want {
			t.Errorf("checkResult(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
