package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/roach88/rewind/internal/engine"
	"github.com/roach88/rewind/internal/history"
	"github.com/roach88/rewind/internal/kvstore"
	"github.com/roach88/rewind/internal/snapshot"
	"github.com/roach88/rewind/internal/store"
	"github.com/roach88/rewind/internal/testutil"
)

// Harness is the scenario execution engine.
// It runs steps with a deterministic clock and entry IDs.
type Harness struct {
	log        history.Log
	engine     *engine.Engine
	clock      *testutil.DeterministicClock
	ids        *testutil.SequentialIDs
	logger     *slog.Logger
	maxHistory int
}

// Run executes a scenario and returns the result.
//
// Each scenario runs against a fresh log for isolation. The clock and ID
// generator survive restart steps, so entries written after a restart
// keep advancing.
//
// Execution flow:
// 1. Open a fresh log for the scenario's backend
// 2. Execute steps, checking each step's expectations
// 3. Close the engine, flushing pending writes
// 4. Read every scope's log back and reconstruct each entry
// 5. Evaluate assertions against the stored log
func Run(scenario *Scenario) (*Result, error) {
	ctx := context.Background()

	log, closeLog, err := openLog(scenario.Backend)
	if err != nil {
		return nil, err
	}
	defer closeLog()

	h := &Harness{
		log:        log,
		clock:      testutil.NewDeterministicClock(),
		ids:        testutil.NewSequentialIDs("e"),
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)), // Suppress logs in tests
		maxHistory: scenario.MaxHistory,
	}
	h.engine = h.newEngine()

	result := NewResult()
	for i, step := range scenario.Steps {
		if err := h.executeStep(ctx, i, step, scenario.defaultScope(), result); err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
	}

	if err := h.engine.CloseAll(ctx); err != nil {
		return nil, fmt.Errorf("close engine: %w", err)
	}
	if err := h.collectLog(ctx, result); err != nil {
		return nil, err
	}

	for _, msg := range EvaluateAssertions(result, scenario.Assertions, scenario.defaultScope()) {
		result.AddError(msg)
	}

	return result, nil
}

func (h *Harness) newEngine() *engine.Engine {
	opts := []engine.Option{
		engine.WithClock(h.clock),
		engine.WithIDGenerator(h.ids),
		engine.WithLogger(h.logger),
	}
	if h.maxHistory > 0 {
		opts = append(opts, engine.WithMaxHistory(h.maxHistory))
	}
	return engine.New(h.log, opts...)
}

// openLog creates an empty log for backend and a function releasing it.
func openLog(backend string) (history.Log, func(), error) {
	switch backend {
	case BackendSQLite:
		dir, err := os.MkdirTemp("", "rewind-harness-*")
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create temp dir: %w", err)
		}
		st, err := store.Open(filepath.Join(dir, "history.db"))
		if err != nil {
			os.RemoveAll(dir)
			return nil, nil, fmt.Errorf("failed to create sqlite store: %w", err)
		}
		return st, func() {
			st.Close()
			os.RemoveAll(dir)
		}, nil
	case BackendBadger:
		st, err := kvstore.Open(kvstore.InMemoryConfig())
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create badger store: %w", err)
		}
		return st, func() { st.Close() }, nil
	default:
		return history.NewMemoryLog(), func() {}, nil
	}
}

// executeStep runs one step and records it in result.
//
// Engine errors are part of the outcome and checked against the step's
// expectations. The returned error is reserved for harness failures.
func (h *Harness) executeStep(ctx context.Context, i int, step Step, fallback string, result *Result) error {
	scope := step.Scope
	if scope == "" {
		scope = fallback
	}

	if step.Op == OpRestart {
		if err := h.engine.CloseAll(ctx); err != nil {
			return fmt.Errorf("restart: %w", err)
		}
		h.engine = h.newEngine()
	}

	s, err := h.engine.Open(ctx, scope)
	ev := StepEvent{Seq: i + 1, Op: step.Op, Scope: scope}

	switch step.Op {
	case OpPush:
		var pushed bool
		pushed, err = s.Push(ctx, step.Doc, step.Description)
		ev.Pushed = &pushed
	case OpUndo:
		var moved bool
		_, moved, err = s.Undo(ctx)
		ev.Moved = &moved
	case OpRedo:
		var moved bool
		_, moved, err = s.Redo(ctx)
		ev.Moved = &moved
	case OpLoad:
		err = s.Load(ctx)
	case OpVerify:
		err = s.Verify(ctx)
	case OpRestart:
		// Open above already loaded the scope.
	default:
		return fmt.Errorf("unknown op %q", step.Op)
	}

	ev.Error = errorLabel(err)
	ev.Current = s.Current()
	ev.State = s.State()
	result.Trace = append(result.Trace, ev)

	h.logger.Info("step completed", "seq", ev.Seq, "op", ev.Op, "scope", scope, "current", ev.Current)

	for _, msg := range checkExpect(step, ev) {
		result.AddError(fmt.Sprintf("step %d (%s %s): %s", ev.Seq, ev.Op, scope, msg))
	}
	return nil
}

// errorLabel names an engine error by its consistency code when it has one.
func errorLabel(err error) string {
	if err == nil {
		return ""
	}
	if code := engine.ConsistencyCode(err); code != "" {
		return string(code)
	}
	return err.Error()
}

// checkExpect compares a step's outcome with its expectations.
func checkExpect(step Step, ev StepEvent) []string {
	var errs []string

	want := step.Expect
	if want == nil {
		want = &Expect{}
	}

	if ev.Error != want.Error {
		switch {
		case want.Error == "":
			errs = append(errs, fmt.Sprintf("unexpected error: %s", ev.Error))
		default:
			errs = append(errs, fmt.Sprintf("expected error %s, got %q", want.Error, ev.Error))
		}
	}
	if want.Pushed != nil && (ev.Pushed == nil || *ev.Pushed != *want.Pushed) {
		errs = append(errs, fmt.Sprintf("expected pushed=%v", *want.Pushed))
	}
	if want.Moved != nil && (ev.Moved == nil || *ev.Moved != *want.Moved) {
		errs = append(errs, fmt.Sprintf("expected moved=%v", *want.Moved))
	}
	if want.Current != nil && ev.Current != *want.Current {
		errs = append(errs, fmt.Sprintf("expected current=%d, got %d", *want.Current, ev.Current))
	}
	if want.State != nil {
		if msg := compareState(want.State, ev.State); msg != "" {
			errs = append(errs, msg)
		}
	}
	return errs
}

// compareState reports how got differs from the expected document, or ""
// when they are equal.
func compareState(want any, got snapshot.Value) string {
	expected, err := snapshot.Canonicalize(want)
	if err != nil {
		return fmt.Sprintf("expected state is not a valid document: %v", err)
	}
	if got == nil {
		got = snapshot.Null{}
	}
	if snapshot.Equal(expected, got) {
		return ""
	}
	return fmt.Sprintf("expected state %s, got %s", describe(expected), describe(got))
}

func describe(v snapshot.Value) string {
	data, err := snapshot.Marshal(v)
	if err != nil {
		return fmt.Sprintf("<%v>", err)
	}
	return string(data)
}

// collectLog reads every scope's stored log and reconstructs each entry.
func (h *Harness) collectLog(ctx context.Context, result *Result) error {
	scopes, err := h.log.Scopes(ctx)
	if err != nil {
		return fmt.Errorf("list scopes: %w", err)
	}

	for _, scope := range scopes {
		entries, err := h.log.LoadAll(ctx, scope)
		if err != nil {
			return fmt.Errorf("load %s: %w", scope, err)
		}

		out := make([]LogEntry, len(entries))
		for i, e := range entries {
			state, err := engine.Reconstruct(entries, i)
			if err != nil {
				result.AddError(fmt.Sprintf("log %s: %v", scope, err))
			}
			out[i] = LogEntry{
				Position:    e.Position,
				Kind:        string(e.Kind),
				ID:          e.ID,
				Description: e.Description,
				CreatedAt:   e.CreatedAt,
				State:       state,
			}
		}
		result.Log[scope] = out
	}
	return nil
}
