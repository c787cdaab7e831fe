package minerwatch

import (
	"context"
	"time"
)

// EventKind identifies what produced an [Event].
type EventKind string

const (
	// EventStatusChanged carries a [StatusRecord] that differs from the
	// previously observed one.
	EventStatusChanged EventKind = "status_changed"

	// EventHashrateZero carries a [HashrateAlert].
	EventHashrateZero EventKind = "hashrate_zero"
)

// HashrateZeroStatus is the status text of every [HashrateAlert].
const HashrateZeroStatus = "hashrate is 0"

// HashrateAlert reports a zero hashrate for the whole account or, when Worker
// is set, for a single worker.
type HashrateAlert struct {
	Pool     string `json:"pool"`
	Wallet   string `json:"wallet"`
	Status   string `json:"status"`
	Hashrate string `json:"hashrate"`
	Worker   string `json:"worker,omitempty"`
}

// Event is a record handed to the event sink. Exactly one of Record and Alert
// is set, depending on Kind.
type Event struct {
	// ID uniquely identifies the event.
	ID string `json:"id"`

	// Monitor is the name of the monitor that produced the event.
	Monitor string `json:"monitor"`

	// Kind tells which payload field is populated.
	Kind EventKind `json:"kind"`

	// CreatedAt is when the event was produced.
	CreatedAt time.Time `json:"created_at"`

	// Record is the changed status, for [EventStatusChanged].
	Record StatusRecord `json:"record,omitempty"`

	// Alert is the zero-hashrate alert, for [EventHashrateZero].
	Alert *HashrateAlert `json:"alert,omitempty"`
}

// Payload returns the event payload: the record or the alert.
func (e Event) Payload() any {
	if e.Kind == EventHashrateZero && e.Alert != nil {
		return *e.Alert
	}
	return e.Record
}

// EventSink receives events emitted by a [Monitor].
//
// A non-nil error means the event was not accepted. For status changes the
// monitor then restores its previous fingerprint so the change is detected
// again on the next tick.
type EventSink interface {
	Emit(ctx context.Context, ev Event) error
}

// EventSinkFunc adapts a function to the [EventSink] interface.
type EventSinkFunc func(ctx context.Context, ev Event) error

// Emit calls f(ctx, ev).
func (f EventSinkFunc) Emit(ctx context.Context, ev Event) error {
	return f(ctx, ev)
}

// discardSink drops every event.
type discardSink struct{}

func (discardSink) Emit(context.Context, Event) error { return nil }
