// Package errs defines the typed error kinds propagated by every phase of
// the measurement engine (spec §7). Components never return bare errors
// from a phase boundary; they wrap the underlying cause in an *Error so
// the façade and the CLI can decide fatality by Kind instead of by string
// matching.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies a failure the way the façade needs to reason about it:
// whether to abort the run, log-and-continue, or surface a config problem
// to the user before any network call is made.
type Kind string

const (
	// NetworkIO covers dial, read, write and other transport-level
	// failures that are not specifically TLS or a deadline.
	NetworkIO Kind = "network_io"
	// NetworkTLS covers handshake and certificate failures.
	NetworkTLS Kind = "network_tls"
	// NetworkTimeout covers context-deadline and socket-timeout failures.
	NetworkTimeout Kind = "network_timeout"
	// CatalogEmpty means a catalog fetch succeeded but returned zero
	// usable entries; this is recoverable, not a network failure.
	CatalogEmpty Kind = "catalog_empty"
	// NoServerReachable means every candidate failed latency probing.
	NoServerReachable Kind = "no_server_reachable"
	// MeasurementFailed means a throughput run moved zero bytes or
	// exceeded its tolerated failure ratio.
	MeasurementFailed Kind = "measurement_failed"
	// ProtocolError means a response could not be parsed as the wire
	// format the caller expected (malformed XML, malformed ping reply).
	ProtocolError Kind = "protocol_error"
	// ConfigError means the user supplied an invalid server or flag
	// combination before any network call was attempted.
	ConfigError Kind = "config_error"
)

// Error is the concrete error type returned across every phase boundary.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New constructs an *Error for op, wrapping cause (which may be nil).
func New(kind Kind, op string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Err: cause}
}

// Is reports whether err is an *Error of the given kind, looking through
// any wrapping via errors.As.
func Is(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}
