package harness

import (
	"time"

	"github.com/roach88/rewind/internal/snapshot"
)

// StepEvent records the outcome of one executed step.
type StepEvent struct {
	Seq     int
	Op      string
	Scope   string
	Pushed  *bool  // push only
	Moved   *bool  // undo and redo only
	Error   string // consistency code, or the error text
	Current int
	State   snapshot.Value // nil when the scope is empty
}

// LogEntry is a stored entry read back after the run, with its
// reconstructed state.
type LogEntry struct {
	Position    int64
	Kind        string
	ID          string
	Description string
	CreatedAt   time.Time
	State       snapshot.Value
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every step expectation and assertion held.
	Pass bool

	// Trace holds one event per executed step, in order.
	Trace []StepEvent

	// Log holds every non-empty scope's stored entries after the run.
	Log map[string][]LogEntry

	// Errors contains failed expectations and assertions.
	Errors []string
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []StepEvent{},
		Log:    make(map[string][]LogEntry),
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
