package minerwatch

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// errorGracePeriod widens the recent-activity window: an error logged up to
// this long before the last event still marks the monitor unhealthy.
const errorGracePeriod = 2 * time.Minute

// activity tracks when a monitor last emitted an event and last logged an
// error. It is shared by the monitor and its error-tracking log handler.
type activity struct {
	mu          sync.RWMutex
	lastEventAt time.Time
	lastErrorAt time.Time
}

func (a *activity) eventAt(t time.Time) {
	a.mu.Lock()
	a.lastEventAt = t
	a.mu.Unlock()
}

func (a *activity) errorAt(t time.Time) {
	a.mu.Lock()
	if t.After(a.lastErrorAt) {
		a.lastErrorAt = t
	}
	a.mu.Unlock()
}

func (a *activity) snapshot() (lastEvent, lastError time.Time) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.lastEventAt, a.lastErrorAt
}

// HealthPredicate derives whether a monitor is working from its activity.
//
// A monitor is unhealthy if it logged an error after (last event - 2m), or
// if it has not emitted an event within the expected receive period. The
// result is advisory and never gates a check.
type HealthPredicate struct {
	expectedPeriod time.Duration
	activity       *activity
}

// Healthy reports whether the monitor is considered working at now.
func (h HealthPredicate) Healthy(now time.Time) bool {
	lastEvent, lastError := h.activity.snapshot()

	if recentErrors(lastEvent, lastError) {
		return false
	}

	if lastEvent.IsZero() || !lastEvent.After(now.Add(-h.expectedPeriod)) {
		return false
	}

	return true
}

// recentErrors reports whether an error was logged within the monitor's
// recent-activity window.
func recentErrors(lastEvent, lastError time.Time) bool {
	if lastEvent.IsZero() || lastError.IsZero() {
		return false
	}
	return lastError.After(lastEvent.Add(-errorGracePeriod))
}

// errorTrackingHandler is a [slog.Handler] that stamps the activity of every
// record at error level or above before passing it on. Stamps come from the
// monitor's clock so they compare with event times.
type errorTrackingHandler struct {
	next     slog.Handler
	activity *activity
	now      func() time.Time
}

func newErrorTrackingHandler(next slog.Handler, a *activity, now func() time.Time) *errorTrackingHandler {
	return &errorTrackingHandler{next: next, activity: a, now: now}
}

func (h *errorTrackingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	// error records must always reach Handle so they are tracked
	return level >= slog.LevelError || h.next.Enabled(ctx, level)
}

func (h *errorTrackingHandler) Handle(ctx context.Context, r slog.Record) error {
	if r.Level >= slog.LevelError {
		h.activity.errorAt(h.now())
	}
	if !h.next.Enabled(ctx, r.Level) {
		return nil
	}
	return h.next.Handle(ctx, r)
}

func (h *errorTrackingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &errorTrackingHandler{next: h.next.WithAttrs(attrs), activity: h.activity, now: h.now}
}

func (h *errorTrackingHandler) WithGroup(name string) slog.Handler {
	return &errorTrackingHandler{next: h.next.WithGroup(name), activity: h.activity, now: h.now}
}
