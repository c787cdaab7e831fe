package minerwatch

import (
	"context"
	"errors"
	"fmt"
)

// StateStore persists the last-seen fingerprint of each monitor.
//
// Implementations must be safe for concurrent use. The in-memory and Redis
// stores returned by [NewMemoryStateStore] and [NewRedisStateStore] satisfy
// this interface.
type StateStore interface {
	// Get returns the value stored under key. ok is false if the key is unset.
	Get(ctx context.Context, key string) (value string, ok bool, err error)

	// Set stores value under key.
	Set(ctx context.Context, key, value string) error

	// Delete removes key. Deleting an unset key is not an error.
	Delete(ctx context.Context, key string) error
}

// stateKey returns the store key of a monitor's fingerprint slot.
func stateKey(monitor string) string {
	return "monitor:" + monitor + ":last_status"
}

// ChangeDetector compares each new [StatusRecord] against the fingerprint
// remembered in its [StateStore] and emits an event only on change.
type ChangeDetector struct {
	key   string
	state StateStore
	sink  EventSink
}

// NewChangeDetector creates a detector that remembers fingerprints under key.
func NewChangeDetector(key string, state StateStore, sink EventSink) *ChangeDetector {
	return &ChangeDetector{key: key, state: state, sink: sink}
}

// Observe records rec and, if its fingerprint differs from the remembered one
// (or none is remembered), stores the new fingerprint and emits ev with
// rec as payload. It reports whether an event was emitted.
//
// The fingerprint update and the emission happen together: if the sink
// rejects the event, the previous fingerprint is restored and the sink error
// is returned.
func (d *ChangeDetector) Observe(ctx context.Context, rec StatusRecord, ev Event) (bool, error) {
	fp := rec.Fingerprint()

	prev, had, err := d.state.Get(ctx, d.key)
	if err != nil {
		return false, fmt.Errorf("read state: %w", err)
	}
	if had && prev == fp {
		return false, nil
	}

	if err := d.state.Set(ctx, d.key, fp); err != nil {
		return false, fmt.Errorf("write state: %w", err)
	}

	ev.Kind = EventStatusChanged
	ev.Record = rec
	if emitErr := d.sink.Emit(ctx, ev); emitErr != nil {
		var rollbackErr error
		if had {
			rollbackErr = d.state.Set(ctx, d.key, prev)
		} else {
			rollbackErr = d.state.Delete(ctx, d.key)
		}
		if rollbackErr != nil {
			return false, errors.Join(fmt.Errorf("emit event: %w", emitErr), fmt.Errorf("restore state: %w", rollbackErr))
		}
		return false, fmt.Errorf("emit event: %w", emitErr)
	}
	return true, nil
}

// Fingerprint returns the remembered fingerprint, if any.
func (d *ChangeDetector) Fingerprint(ctx context.Context) (string, bool, error) {
	return d.state.Get(ctx, d.key)
}
