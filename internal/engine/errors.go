package engine

import (
	"errors"
	"fmt"
)

// ErrScopeClosed is returned by operations on a closed scope handle.
var ErrScopeClosed = errors.New("scope closed")

// ConsistencyError reports that a cached or stored history diverged from
// its invariants: there is no full snapshot to start from, a payload cannot
// be decoded, or a patch does not fit the state it is applied to.
//
// A ConsistencyError is fatal for the operation that hit it. The engine
// never returns a partially reconstructed state.
type ConsistencyError struct {
	// Code identifies the error category.
	Code ConsistencyErrorCode

	// Message is a human-readable description.
	Message string

	// Scope identifies the affected history.
	Scope string

	// Position is the position of the offending entry, or -1.
	Position int64

	// Err is the underlying codec error, if any.
	Err error
}

// ConsistencyErrorCode categorizes consistency errors.
type ConsistencyErrorCode string

const (
	// ErrCodeNoFullEntry indicates no full snapshot precedes the target.
	ErrCodeNoFullEntry ConsistencyErrorCode = "NO_FULL_ENTRY"

	// ErrCodePatchMismatch indicates a patch's expected values do not match
	// the state it is applied to.
	ErrCodePatchMismatch ConsistencyErrorCode = "PATCH_MISMATCH"

	// ErrCodeHashMismatch indicates a redone state does not hash to the
	// value recorded in its patch.
	ErrCodeHashMismatch ConsistencyErrorCode = "HASH_MISMATCH"

	// ErrCodeCorruptPayload indicates an entry payload cannot be decoded.
	ErrCodeCorruptPayload ConsistencyErrorCode = "CORRUPT_PAYLOAD"
)

// Error implements the error interface.
func (e *ConsistencyError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Scope != "" && e.Position >= 0 {
		msg = fmt.Sprintf("%s (scope=%s, position=%d)", msg, e.Scope, e.Position)
	} else if e.Scope != "" {
		msg = fmt.Sprintf("%s (scope=%s)", msg, e.Scope)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying codec error.
func (e *ConsistencyError) Unwrap() error {
	return e.Err
}

// IsConsistencyError returns true if err is or wraps a ConsistencyError.
func IsConsistencyError(err error) bool {
	var ce *ConsistencyError
	return errors.As(err, &ce)
}

// ConsistencyCode returns the code of a wrapped ConsistencyError, or "".
func ConsistencyCode(err error) ConsistencyErrorCode {
	var ce *ConsistencyError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ""
}

func newConsistencyError(code ConsistencyErrorCode, scope string, position int64, msg string, err error) *ConsistencyError {
	return &ConsistencyError{
		Code:     code,
		Message:  msg,
		Scope:    scope,
		Position: position,
		Err:      err,
	}
}
