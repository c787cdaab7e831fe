package store

import (
	"context"
	"sync"
)

// defaultFeedCapacity is the number of events a [Feed] keeps by default.
const defaultFeedCapacity = 100

// subscriberBuffer is the channel buffer of each feed subscriber.
const subscriberBuffer = 100

// MemoryStore is an in-memory implementation of [StateStore].
//
// State held in a MemoryStore is lost on restart, so the first tick after a
// restart always reports the current status as a change.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryStore creates a new in-memory [StateStore].
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

// Get returns the value stored under key.
func (m *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok, nil
}

// Set stores value under key.
func (m *MemoryStore) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	m.values[key] = value
	m.mu.Unlock()
	return nil
}

// Delete removes key.
func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.values, key)
	m.mu.Unlock()
	return nil
}

// Feed keeps the most recent events and fans new ones out to subscribers.
//
// Subscribers receive events via buffered channels (buffer size 100). Sends
// are non-blocking; if a subscriber's buffer is full, the event is dropped
// for that subscriber so a slow SSE client cannot stall emission.
type Feed struct {
	mu       sync.RWMutex
	events   []EventRecord
	capacity int

	subMu       sync.RWMutex
	subscribers map[chan EventRecord]struct{}
}

// NewFeed creates a [Feed] retaining up to capacity events. A capacity of
// zero or less uses the default of 100.
func NewFeed(capacity int) *Feed {
	if capacity <= 0 {
		capacity = defaultFeedCapacity
	}
	return &Feed{
		events:      make([]EventRecord, 0, capacity),
		capacity:    capacity,
		subscribers: make(map[chan EventRecord]struct{}),
	}
}

// Publish appends ev, evicting the oldest event when full, and notifies all
// subscribers.
func (f *Feed) Publish(ev EventRecord) {
	f.mu.Lock()
	if len(f.events) == f.capacity {
		copy(f.events, f.events[1:])
		f.events = f.events[:len(f.events)-1]
	}
	f.events = append(f.events, ev)
	f.mu.Unlock()

	f.notifySubscribers(ev)
}

// Recent returns up to limit events, newest first. A limit of zero or less
// returns all retained events. The returned slice is a copy.
func (f *Feed) Recent(limit int) []EventRecord {
	f.mu.RLock()
	defer f.mu.RUnlock()

	n := len(f.events)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]EventRecord, 0, n)
	for i := len(f.events) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, f.events[i])
	}
	return out
}

// Subscribe creates a new subscription and returns a channel for receiving
// events. Caller must call [Feed.Unsubscribe] when done to prevent leaks.
func (f *Feed) Subscribe() <-chan EventRecord {
	ch := make(chan EventRecord, subscriberBuffer)
	f.subMu.Lock()
	f.subscribers[ch] = struct{}{}
	f.subMu.Unlock()
	return ch
}

// Unsubscribe removes a subscription and closes its channel.
// Safe to call multiple times or with an unknown channel.
func (f *Feed) Unsubscribe(ch <-chan EventRecord) {
	f.subMu.Lock()
	defer f.subMu.Unlock()

	for subCh := range f.subscribers {
		if subCh == ch {
			delete(f.subscribers, subCh)
			close(subCh)
			break
		}
	}
}

// notifySubscribers sends ev to all active subscribers without blocking.
func (f *Feed) notifySubscribers(ev EventRecord) {
	f.subMu.RLock()
	defer f.subMu.RUnlock()

	for ch := range f.subscribers {
		select {
		case ch <- ev:
		default:
			// subscriber is slow, drop the event
		}
	}
}
