package delta

import (
	"errors"
	"fmt"

	"github.com/roach88/rewind/internal/snapshot"
)

var (
	// ErrPatchMismatch is matched (via errors.Is) by every *MismatchError.
	ErrPatchMismatch = errors.New("patch mismatch")

	// ErrInvalidPath indicates a malformed pointer or a pointer that
	// traverses through a scalar.
	ErrInvalidPath = errors.New("invalid patch path")
)

// MismatchError reports that the value found at Path differs from the
// value a Change expected to replace.
type MismatchError struct {
	Path     string
	Expected snapshot.Value
	Found    snapshot.Value
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("patch mismatch at %q: expected %s, found %s",
		e.Path, describe(e.Expected), describe(e.Found))
}

// Is makes errors.Is(err, ErrPatchMismatch) succeed.
func (e *MismatchError) Is(target error) bool {
	return target == ErrPatchMismatch
}

// describe renders a value for error messages, truncating long payloads.
func describe(v snapshot.Value) string {
	if v == nil {
		return "<absent>"
	}
	data, err := snapshot.Marshal(v)
	if err != nil {
		return "<" + v.Kind().String() + ">"
	}
	const maxLen = 64
	if len(data) > maxLen {
		return string(data[:maxLen]) + "..."
	}
	return string(data)
}
