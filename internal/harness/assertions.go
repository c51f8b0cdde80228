package harness

import (
	"fmt"
	"slices"
	"strings"
)

// AssertionError is returned when an assertion fails.
// It includes the scope's stored log to help debug the failure.
type AssertionError struct {
	Type     string     // Assertion type for categorization
	Scope    string     // Scope the assertion checked
	Expected string     // Human-readable expected outcome
	Actual   string     // Human-readable actual outcome
	Log      []LogEntry // Stored log of the scope
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s (scope %s)\n", e.Type, e.Scope)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nStored log:\n")
	for _, entry := range e.Log {
		fmt.Fprintf(&buf, "  [%d] %s %s\n", entry.Position, entry.Kind, describe(entry.State))
	}

	return buf.String()
}

// EvaluateAssertions runs every assertion against the stored log in
// result and returns one message per failure.
func EvaluateAssertions(result *Result, assertions []Assertion, fallback string) []string {
	var errs []string
	for i, a := range assertions {
		scope := a.Scope
		if scope == "" {
			scope = fallback
		}
		if err := evaluateAssertion(result.Log[scope], scope, a); err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return errs
}

func evaluateAssertion(log []LogEntry, scope string, a Assertion) error {
	switch a.Type {
	case AssertEntryCount:
		return assertEntryCount(log, scope, a)
	case AssertEntryKinds:
		return assertEntryKinds(log, scope, a)
	case AssertPositions:
		return assertPositions(log, scope, a)
	case AssertFinalState:
		return assertFinalState(log, scope, a)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

// assertEntryCount checks the number of stored entries.
func assertEntryCount(log []LogEntry, scope string, a Assertion) error {
	if len(log) == a.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertEntryCount,
		Scope:    scope,
		Expected: fmt.Sprintf("%d entries", a.Count),
		Actual:   fmt.Sprintf("%d entries", len(log)),
		Log:      log,
	}
}

// assertEntryKinds checks the stored entry kinds in order.
func assertEntryKinds(log []LogEntry, scope string, a Assertion) error {
	kinds := make([]string, len(log))
	for i, e := range log {
		kinds[i] = e.Kind
	}
	if slices.Equal(kinds, a.Kinds) {
		return nil
	}
	return &AssertionError{
		Type:     AssertEntryKinds,
		Scope:    scope,
		Expected: fmt.Sprintf("%v", a.Kinds),
		Actual:   fmt.Sprintf("%v", kinds),
		Log:      log,
	}
}

// assertPositions checks the stored entry positions in order.
func assertPositions(log []LogEntry, scope string, a Assertion) error {
	positions := make([]int64, len(log))
	for i, e := range log {
		positions[i] = e.Position
	}
	if slices.Equal(positions, a.Positions) {
		return nil
	}
	return &AssertionError{
		Type:     AssertPositions,
		Scope:    scope,
		Expected: fmt.Sprintf("%v", a.Positions),
		Actual:   fmt.Sprintf("%v", positions),
		Log:      log,
	}
}

// assertFinalState checks the reconstructed state of the newest entry.
func assertFinalState(log []LogEntry, scope string, a Assertion) error {
	if len(log) == 0 {
		return &AssertionError{
			Type:     AssertFinalState,
			Scope:    scope,
			Expected: "a stored entry",
			Actual:   "empty log",
		}
	}
	msg := compareState(a.State, log[len(log)-1].State)
	if msg == "" {
		return nil
	}
	return &AssertionError{
		Type:     AssertFinalState,
		Scope:    scope,
		Expected: "newest state to match",
		Actual:   msg,
		Log:      log,
	}
}
