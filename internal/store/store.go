package store

import (
	"context"
	"encoding/json"
	"time"
)

// StateStore holds one opaque string value per key.
//
// Implementations must be safe for concurrent access.
type StateStore interface {
	// Get returns the value stored under key. ok is false if the key is unset.
	Get(ctx context.Context, key string) (value string, ok bool, err error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key, value string) error

	// Delete removes key. Deleting an unset key is not an error.
	Delete(ctx context.Context, key string) error
}

// EventRecord is the storage representation of an emitted event, optimized
// for JSON serialization (used by the REST API and SSE). It is decoupled
// from the public event type to allow independent evolution.
type EventRecord struct {
	// ID uniquely identifies the event.
	ID string `json:"id"`

	// Monitor is the name of the monitor that emitted the event.
	Monitor string `json:"monitor"`

	// Kind is "status_changed" or "hashrate_zero".
	Kind string `json:"kind"`

	// CreatedAt is when the event was emitted.
	CreatedAt time.Time `json:"created_at"`

	// Payload is the event payload as a JSON object.
	Payload json.RawMessage `json:"payload"`
}
