package minerwatch

import (
	"fmt"
)

// UnsupportedProviderError is returned when the pool URL cannot be mapped to
// a known provider, either because its domain has no table entry or because
// the URL itself is malformed.
type UnsupportedProviderError struct {
	// URL is the pool base URL that failed to resolve.
	URL string

	// Domain is the derived provider domain. Empty if the URL could not be
	// parsed.
	Domain string

	// Cause is the URL parse error, if any.
	Cause error
}

func (e *UnsupportedProviderError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("unsupported provider for %q: %v", e.URL, e.Cause)
	}
	return fmt.Sprintf("unsupported provider %q (pool url %q)", e.Domain, e.URL)
}

func (e *UnsupportedProviderError) Unwrap() error {
	return e.Cause
}

// FetchError is returned when the pool status request fails at the transport
// level, returns a non-2xx status, or returns a body that is not JSON.
type FetchError struct {
	// URL is the resolved request URL.
	URL string

	// StatusCode is the HTTP status code, zero if no response was received.
	StatusCode int

	// Cause is the underlying error.
	Cause error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d: %v", e.URL, e.StatusCode, e.Cause)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Cause)
}

func (e *FetchError) Unwrap() error {
	return e.Cause
}

// MalformedResponseError is returned when the response is valid JSON but is
// missing the structure the provider schema expects.
type MalformedResponseError struct {
	// Reason describes what was missing or of the wrong shape.
	Reason string

	// CorrelationID is set when the error was produced by a recovered panic,
	// and matches the correlation_id attribute of the logged stack trace.
	CorrelationID string
}

func (e *MalformedResponseError) Error() string {
	if e.CorrelationID != "" {
		return fmt.Sprintf("malformed response: %s (correlation_id: %s)", e.Reason, e.CorrelationID)
	}
	return "malformed response: " + e.Reason
}
