package minerwatch

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Mode selects what a [Monitor] watches on the pool response.
type Mode string

const (
	// ModeAggregate watches a single top-level aggregate field (see
	// [WatchedField]) and emits an event whenever its value changes.
	ModeAggregate Mode = "aggregate"

	// ModeHashrateZero emits an alert for the global hashrate and for every
	// worker whose hashrate reads as zero. Alerts repeat on every tick the
	// condition holds.
	ModeHashrateZero Mode = "hashrate_zero"
)

// String returns the string representation of the mode.
func (m Mode) String() string {
	return string(m)
}

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	return m == ModeAggregate || m == ModeHashrateZero
}

// WatchedField names the aggregate worker-count field observed in
// [ModeAggregate].
type WatchedField string

const (
	// FieldWorkersOnline is the number of workers currently submitting shares.
	FieldWorkersOnline WatchedField = "workersOnline"
	// FieldWorkersOffline is the number of known workers not submitting shares.
	FieldWorkersOffline WatchedField = "workersOffline"
	// FieldWorkersTotal is the number of workers known to the pool.
	FieldWorkersTotal WatchedField = "workersTotal"
)

// String returns the JSON key of the field.
func (f WatchedField) String() string {
	return string(f)
}

// Valid reports whether f is one of the supported aggregate fields.
func (f WatchedField) Valid() bool {
	switch f {
	case FieldWorkersOnline, FieldWorkersOffline, FieldWorkersTotal:
		return true
	default:
		return false
	}
}

// Field is a single key/value pair of a [StatusRecord].
//
// Value holds a decoded JSON scalar: nil, bool, string or [json.Number].
type Field struct {
	Key   string
	Value any
}

// StatusRecord is the ordered subset of a pool response a monitor is
// interested in.
//
// Field order is significant: two records holding the same pairs in a
// different order have different fingerprints and compare as different.
// Do not normalize the order.
type StatusRecord []Field

// NewStatusRecord builds a record from alternating key/value arguments.
// It panics if an odd number of arguments or a non-string key is given.
func NewStatusRecord(keyValues ...any) StatusRecord {
	if len(keyValues)%2 != 0 {
		panic("minerwatch: NewStatusRecord requires key-value pairs")
	}
	rec := make(StatusRecord, 0, len(keyValues)/2)
	for i := 0; i < len(keyValues); i += 2 {
		key, ok := keyValues[i].(string)
		if !ok {
			panic(fmt.Sprintf("minerwatch: NewStatusRecord key %v is not a string", keyValues[i]))
		}
		rec = append(rec, Field{Key: key, Value: keyValues[i+1]})
	}
	return rec
}

// Get returns the value stored under key and whether the key is present.
func (r StatusRecord) Get(key string) (any, bool) {
	for _, f := range r {
		if f.Key == key {
			return f.Value, true
		}
	}
	return nil, false
}

// Fingerprint returns the canonical string form of the record, e.g.
// {"workersOnline"=>3}. Absent values render as nil.
func (r StatusRecord) Fingerprint() string {
	var b strings.Builder
	b.WriteByte('{')
	for i, f := range r {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(strconv.Quote(f.Key))
		b.WriteString("=>")
		writeCanonical(&b, f.Value)
	}
	b.WriteByte('}')
	return b.String()
}

// Equal reports whether both records share the same fingerprint.
func (r StatusRecord) Equal(other StatusRecord) bool {
	return r.Fingerprint() == other.Fingerprint()
}

// String implements fmt.Stringer.
func (r StatusRecord) String() string {
	return r.Fingerprint()
}

// MarshalJSON encodes the record as a JSON object, keeping field order.
func (r StatusRecord) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range r {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(f.Key)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := json.Marshal(f.Value)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", f.Key, err)
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// writeCanonical renders v the way fingerprints have always been rendered.
func writeCanonical(b *strings.Builder, v any) {
	switch val := v.(type) {
	case nil:
		b.WriteString("nil")
	case string:
		b.WriteString(strconv.Quote(val))
	case json.Number:
		b.WriteString(val.String())
	case bool:
		b.WriteString(strconv.FormatBool(val))
	case float64:
		b.WriteString(strconv.FormatFloat(val, 'f', -1, 64))
	case []any:
		b.WriteByte('[')
		for i, item := range val {
			if i > 0 {
				b.WriteString(", ")
			}
			writeCanonical(b, item)
		}
		b.WriteByte(']')
	case map[string]any:
		// decoded objects lose key order; sort for a stable fingerprint
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(strconv.Quote(k))
			b.WriteString("=>")
			writeCanonical(b, val[k])
		}
		b.WriteByte('}')
	default:
		fmt.Fprintf(b, "%v", val)
	}
}
