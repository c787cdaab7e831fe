package minerwatch

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// zeroHashrate is the canonical string of a zero hashrate.
const zeroHashrate = "0.0"

// ExtractAggregate reads the top-level field named by field from a decoded
// pool response and returns the single-field [StatusRecord] {field: value}.
//
// An absent field is a legitimate observation and yields a nil value.
// Returns a [*MalformedResponseError] if doc is not a JSON object.
//
// Example:
//
//	// For response: {"workersOnline": 3, "workersOffline": 1}
//	rec, _ := minerwatch.ExtractAggregate(doc, minerwatch.FieldWorkersOnline)
//	// rec.Fingerprint() == `{"workersOnline"=>3}`
func ExtractAggregate(doc any, field WatchedField) (StatusRecord, error) {
	obj, ok := doc.(map[string]any)
	if !ok {
		return nil, &MalformedResponseError{Reason: fmt.Sprintf("expected JSON object, got %s", jsonKind(doc))}
	}
	return StatusRecord{{Key: field.String(), Value: obj[field.String()]}}, nil
}

// ExtractHashrateAlerts walks a decoded pool response using schema and
// returns one alert for a zero global hashrate followed by one alert per
// worker whose hashrate is zero.
//
// A hashrate is zero when its canonical string (see [HashrateString]) is
// "0.0". Workers without a hashrate field are skipped. Returns a
// [*MalformedResponseError] if the object holding the global hashrate is
// absent.
func ExtractHashrateAlerts(doc any, schema Schema, pool, wallet string) ([]HashrateAlert, error) {
	parts := splitPath(schema.HashratePath)
	if len(parts) == 0 {
		return nil, &MalformedResponseError{Reason: "provider schema has no hashrate path"}
	}

	parent, ok := walkPath(doc, parts[:len(parts)-1])
	parentObj, isObj := parent.(map[string]any)
	if !ok || !isObj {
		where := strings.Join(parts[:len(parts)-1], ".")
		if where == "" {
			where = "document root"
		}
		return nil, &MalformedResponseError{Reason: fmt.Sprintf("%s is not a JSON object", where)}
	}

	var alerts []HashrateAlert
	newAlert := func(hashrate, worker string) HashrateAlert {
		return HashrateAlert{
			Pool:     pool,
			Wallet:   wallet,
			Status:   HashrateZeroStatus,
			Hashrate: hashrate,
			Worker:   worker,
		}
	}

	if hr, ok := HashrateString(parentObj[parts[len(parts)-1]]); ok && hr == zeroHashrate {
		alerts = append(alerts, newAlert(hr, ""))
	}

	workers, ok := walkPath(doc, splitPath(schema.WorkersPath))
	if !ok || schema.WorkersPath == "" {
		return alerts, nil
	}

	switch list := workers.(type) {
	case []any:
		for _, item := range list {
			w, ok := item.(map[string]any)
			if !ok {
				continue
			}
			if hr, ok := HashrateString(w[schema.WorkerHashrateKey]); ok && hr == zeroHashrate {
				alerts = append(alerts, newAlert(hr, scalarString(w[schema.WorkerIDKey])))
			}
		}
	case map[string]any:
		// keyed by worker id; sort so alerts come out in a stable order
		ids := make([]string, 0, len(list))
		for id := range list {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			w, ok := list[id].(map[string]any)
			if !ok {
				continue
			}
			if hr, ok := HashrateString(w[schema.WorkerHashrateKey]); ok && hr == zeroHashrate {
				alerts = append(alerts, newAlert(hr, id))
			}
		}
	}

	return alerts, nil
}

// HashrateString returns the canonical string of a decoded hashrate value.
//
// JSON strings are returned verbatim, so "0.00" is not considered zero.
// JSON numbers are rendered with at least one decimal place: 0 becomes "0.0"
// and 1.25 stays "1.25". Returns false for absent or non-scalar values.
func HashrateString(v any) (string, bool) {
	switch val := v.(type) {
	case string:
		return val, true
	case json.Number:
		d, err := decimal.NewFromString(val.String())
		if err != nil {
			return val.String(), true
		}
		return formatHashrate(d), true
	case float64:
		return formatHashrate(decimal.NewFromFloat(val)), true
	default:
		return "", false
	}
}

func formatHashrate(d decimal.Decimal) string {
	if d.Equal(d.Truncate(0)) {
		return d.StringFixed(1)
	}
	return d.String()
}

// splitPath splits a dot-notation path, returning nil for an empty path.
func splitPath(path string) []string {
	if path == "" {
		return nil
	}
	return strings.Split(path, ".")
}

// walkPath follows parts through nested JSON objects.
func walkPath(data any, parts []string) (any, bool) {
	current := data
	for _, part := range parts {
		obj, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = obj[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// scalarString converts a worker id to a string.
func scalarString(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case json.Number:
		return val.String()
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

func jsonKind(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case []any:
		return "array"
	case string:
		return "string"
	case json.Number, float64:
		return "number"
	case bool:
		return "boolean"
	default:
		return fmt.Sprintf("%T", v)
	}
}
