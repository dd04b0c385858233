// Package errors defines stable error codes for the engine's failure
// modes. Per-unit and per-edge failures are isolated and never abort a
// batch; only a corrupted persisted store is fatal, and then only for
// that store.
package errors

import "fmt"

// Code is a stable machine-readable error code.
type Code string

const (
	// DegradedInput indicates an embedding or analysis call failed; the
	// affected unit is kept in degraded form and processing continues.
	DegradedInput Code = "DEGRADED_INPUT"
	// UnresolvedReference indicates a reference that could not be
	// resolved to an indexed unit. Not an error condition; recorded
	// only for diagnostics.
	UnresolvedReference Code = "UNRESOLVED_REFERENCE"
	// GraphInconsistency indicates an edge referencing a unit that no
	// longer exists. The edge is dropped with a warning.
	GraphInconsistency Code = "GRAPH_INCONSISTENCY"
	// MarkerRace indicates two writers raced on the same marker key.
	// The second writer is a no-op.
	MarkerRace Code = "MARKER_RACE"
	// BypassDetected indicates a commit was created without its gate
	// checks running. A reportable finding, not an engine failure.
	BypassDetected Code = "BYPASS_DETECTED"
	// ReconciliationFailure indicates gate checks still fail when rerun
	// against a bypassed commit.
	ReconciliationFailure Code = "RECONCILIATION_FAILURE"
	// StoreCorrupt indicates a persisted store failed to open or
	// deserialize. Fatal for that store; other stores keep serving.
	StoreCorrupt Code = "STORE_CORRUPT"
	// Timeout indicates an external backend call exceeded its deadline.
	Timeout Code = "TIMEOUT"
	// Internal indicates an unexpected error.
	Internal Code = "INTERNAL_ERROR"
)

// EngineError carries a stable code alongside a message and cause.
type EngineError struct {
	Code    Code
	Message string
	cause   error
}

// New creates an EngineError with the given code and message.
func New(code Code, message string) *EngineError {
	return &EngineError{Code: code, Message: message}
}

// Wrap creates an EngineError wrapping an underlying cause.
func Wrap(code Code, message string, cause error) *EngineError {
	return &EngineError{Code: code, Message: message, cause: cause}
}

// Error implements the error interface.
func (e *EngineError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *EngineError) Unwrap() error {
	return e.cause
}

// CodeOf extracts the stable code from an error chain, or Internal if
// the chain carries none.
func CodeOf(err error) Code {
	for err != nil {
		if ee, ok := err.(*EngineError); ok {
			return ee.Code
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return Internal
}
