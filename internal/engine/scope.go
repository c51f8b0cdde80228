package engine

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/roach88/rewind/internal/delta"
	"github.com/roach88/rewind/internal/history"
	"github.com/roach88/rewind/internal/snapshot"
)

// Scope is the exclusive handle for one history.
//
// All cache mutation happens under mu. Log writes are queued in program
// order and executed by the scope's writer goroutine; Push returns before
// they complete, while Undo, Redo, Load, Verify and Close wait for every
// earlier write to finish first.
//
// Invariants (checked by Verify):
//   - current == -1 iff len(entries) == 0, else 0 <= current < len(entries)
//   - entries[0].Kind == KindFull
//   - len(entries) <= maxHistory
//   - state equals Reconstruct(entries, current)
type Scope struct {
	id     string
	eng    *Engine
	logger *slog.Logger
	queue  *writeQueue
	done   chan struct{} // closed when the writer exits

	mu      sync.Mutex
	entries []history.Entry
	current int
	state   snapshot.Value
	closed  bool

	// stale is set after a consistency error; the next operation reloads.
	stale bool
	// resetLog is set when the stored history is unusable; the next push
	// discards it before writing a fresh full entry.
	resetLog bool
	// detached is set while the log cannot be read. Pushes only update the
	// cache; the next successful load records the newest unsaved state.
	detached bool

	// Owned by the writer goroutine.
	rebase   bool // a write failed, so the next stored delta is written full
	skipTrim bool // a head promotion failed, so its trim is skipped

	errMu    sync.Mutex
	writeErr error // first write failure since the last Sync
}

func newScope(e *Engine, id string) *Scope {
	s := &Scope{
		id:      id,
		eng:     e,
		logger:  e.logger.With("scope", id),
		queue:   newWriteQueue(),
		done:    make(chan struct{}),
		current: -1,
	}
	go s.runWriter()
	return s
}

// ID returns the scope identifier.
func (s *Scope) ID() string {
	return s.id
}

// Load discards the cached stack and rebuilds it from the history log:
// current is set to the last entry and state is reconstructed.
func (s *Scope) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrScopeClosed
	}
	if err := s.queue.WaitDrained(ctx); err != nil {
		return err
	}
	return s.reloadLocked(ctx)
}

// reloadLocked replaces the cache with the log's contents.
// Callers hold s.mu and have drained the queue.
//
// A detached cache survives a failed load. After a successful one, its
// current state is pushed on top of the stored history.
func (s *Scope) reloadLocked(ctx context.Context) error {
	entries, err := s.eng.log.LoadAll(ctx, s.id)
	if err != nil {
		if !s.detached {
			s.resetCacheLocked()
		}
		s.stale = true
		s.eng.metrics.StorageErrors.WithLabelValues("load_all").Inc()
		s.logger.Warn("history load failed", "error", err)
		return fmt.Errorf("load %s: %w", s.id, err)
	}

	var (
		unsaved     snapshot.Value
		unsavedDesc string
	)
	if s.detached && s.current >= 0 {
		unsaved = s.state
		unsavedDesc = s.entries[s.current].Description
	}
	s.resetCacheLocked()

	err = s.adoptLocked(entries)
	if unsaved != nil {
		if _, perr := s.pushLocked(unsaved, unsavedDesc); perr != nil {
			s.logger.Error("unsaved state lost", "error", perr)
		} else {
			s.logger.Info("unsaved state restored", "position", s.entries[s.current].Position)
		}
	}
	return err
}

// adoptLocked installs entries read from the log as the cache.
func (s *Scope) adoptLocked(entries []history.Entry) error {
	if len(entries) == 0 {
		s.eng.metrics.Operations.WithLabelValues("load").Inc()
		return nil
	}

	var (
		state snapshot.Value
		err   error
	)
	if entries[0].Kind != history.KindFull {
		err = newConsistencyError(ErrCodeNoFullEntry, s.id, entries[0].Position, "history does not start with a full snapshot", nil)
	} else {
		state, err = Reconstruct(entries, len(entries)-1)
	}
	if err != nil {
		// The stored history is unusable; start over on the next push.
		s.resetLog = true
		s.recordConsistency(err)
		s.logger.Warn("history reset", "reason", err.Error(), "entries", len(entries))
		return err
	}

	s.entries = entries
	s.current = len(entries) - 1
	s.state = state
	s.evictLocked()

	s.eng.metrics.Operations.WithLabelValues("load").Inc()
	s.logger.Debug("history loaded", "entries", len(s.entries), "current", s.current)
	return nil
}

func (s *Scope) resetCacheLocked() {
	s.entries = nil
	s.current = -1
	s.state = nil
	s.stale = false
	s.resetLog = false
	s.detached = false
}

// refreshLocked reloads a stale scope. Callers hold s.mu and have drained
// the queue.
func (s *Scope) refreshLocked(ctx context.Context) error {
	if !s.stale {
		return nil
	}
	s.logger.Warn("history reset", "reason", "reloading after error")
	return s.reloadLocked(ctx)
}

// Push canonicalizes doc and records it as the newest state.
//
// Pushing while mid-history first discards every entry after the current
// one. A doc equal to the current state records nothing and returns false.
// The only error is for a doc that cannot be canonicalized: log writes
// happen in the background and their failures are logged, counted, and
// reported by Sync, never returned here.
func (s *Scope) Push(ctx context.Context, doc any, description string) (bool, error) {
	next, err := snapshot.Canonicalize(doc)
	if err != nil {
		return false, fmt.Errorf("push: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false, ErrScopeClosed
	}
	if s.stale {
		if err := s.queue.WaitDrained(ctx); err != nil {
			return false, err
		}
		// A consistency error leaves an empty cache that the push starts
		// over from. A storage error leaves the stored tail unknown, so
		// nothing is written until a load succeeds.
		if err := s.refreshLocked(ctx); err != nil && !IsConsistencyError(err) && !s.detached {
			s.detached = true
			s.logger.Warn("history detached", "error", err)
		}
	}

	return s.pushLocked(next, description)
}

// pushLocked records next as the newest state. Callers hold s.mu.
func (s *Scope) pushLocked(next snapshot.Value, description string) (bool, error) {
	var err error

	// A new edit abandons the redo branch.
	if s.current < len(s.entries)-1 {
		keep := s.entries[s.current].Position
		dropped := len(s.entries) - 1 - s.current
		s.entries = s.entries[:s.current+1]
		s.enqueue(writeOp{Kind: writeTruncateAfter, Position: keep})
		s.logger.Debug("redo branch discarded", "after", keep, "dropped", dropped)
	}

	var entry history.Entry
	if len(s.entries) == 0 {
		if s.resetLog {
			s.enqueue(writeOp{Kind: writeTruncateAfter, Position: -1})
			s.resetLog = false
		}
		entry, err = history.NewFullEntry(s.id, 0, next)
		if err != nil {
			return false, fmt.Errorf("push: %w", err)
		}
	} else {
		p, changed, err := delta.Diff(s.state, next)
		if err != nil {
			return false, fmt.Errorf("push: %w", err)
		}
		if !changed {
			s.eng.metrics.Operations.WithLabelValues("noop").Inc()
			return false, nil
		}
		entry, err = history.NewDeltaEntry(s.id, s.entries[len(s.entries)-1].Position+1, p)
		if err != nil {
			return false, fmt.Errorf("push: %w", err)
		}
	}

	entry.ID = s.eng.ids.Generate()
	entry.Description = description
	entry.CreatedAt = s.eng.clock.Now()

	s.entries = append(s.entries, entry)
	s.current = len(s.entries) - 1
	s.state = next
	s.enqueue(writeOp{Kind: writeAppend, Entry: entry, State: next})

	s.evictLocked()

	s.eng.metrics.Operations.WithLabelValues("push").Inc()
	s.logger.Debug("pushed", "position", entry.Position, "kind", entry.Kind, "entries", len(s.entries))
	return true, nil
}

// evictLocked drops entries from the head until the capacity holds. The
// new head is promoted to a full snapshot before its predecessor goes, so
// entries[0] is always full.
func (s *Scope) evictLocked() {
	for len(s.entries) > s.eng.maxHistory {
		if s.entries[1].Kind == history.KindDelta {
			state, err := Reconstruct(s.entries, 1)
			if err != nil {
				// Unreachable while the cache is consistent; keep the head
				// rather than orphan the chain.
				s.recordConsistency(err)
				s.logger.Error("eviction skipped", "error", err)
				return
			}
			promoted, err := history.NewFullEntry(s.id, s.entries[1].Position, state)
			if err != nil {
				s.logger.Error("eviction skipped", "error", err)
				return
			}
			promoted.ID = s.entries[1].ID
			promoted.Description = s.entries[1].Description
			promoted.CreatedAt = s.entries[1].CreatedAt

			s.entries[1] = promoted
			s.enqueue(writeOp{Kind: writeReplace, Entry: promoted})
		}

		s.entries = slices.Delete(s.entries, 0, 1)
		s.current--
		s.enqueue(writeOp{Kind: writeTrimBefore, Position: s.entries[0].Position})
		s.eng.metrics.Evictions.Inc()
	}
}

// Undo steps back one entry and returns the earlier state.
// At the oldest entry (or with no history) it returns (nil, false, nil).
//
// A *ConsistencyError leaves the position unchanged and marks the scope
// for reload on its next operation.
func (s *Scope) Undo(ctx context.Context) (snapshot.Value, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.beginLocked(ctx); err != nil {
		return nil, false, err
	}
	if s.current <= 0 {
		return nil, false, nil
	}

	from := s.entries[s.current]
	var (
		prev snapshot.Value
		err  error
	)
	if from.Kind == history.KindDelta {
		prev, err = applyInverse(s.state, from)
	} else {
		prev, err = Reconstruct(s.entries, s.current-1)
	}
	if err != nil {
		return nil, false, s.failLocked(err)
	}

	s.current--
	s.state = prev
	s.eng.metrics.Operations.WithLabelValues("undo").Inc()
	return snapshot.Clone(prev), true, nil
}

// Redo steps forward one entry and returns the later state.
// At the newest entry it returns (nil, false, nil).
//
// A redone patch's result is checked against the state hash it recorded.
func (s *Scope) Redo(ctx context.Context) (snapshot.Value, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.beginLocked(ctx); err != nil {
		return nil, false, err
	}
	if s.current >= len(s.entries)-1 {
		return nil, false, nil
	}

	to := s.entries[s.current+1]
	var (
		next snapshot.Value
		err  error
	)
	if to.Kind == history.KindDelta {
		next, err = s.redoDelta(to)
	} else {
		next, err = decodeFull(to)
	}
	if err != nil {
		return nil, false, s.failLocked(err)
	}

	s.current++
	s.state = next
	s.eng.metrics.Operations.WithLabelValues("redo").Inc()
	return snapshot.Clone(next), true, nil
}

func (s *Scope) redoDelta(e history.Entry) (snapshot.Value, error) {
	p, err := e.Patch()
	if err != nil {
		return nil, newConsistencyError(ErrCodeCorruptPayload, e.Scope, e.Position, "undecodable patch", err)
	}
	next, err := applyPatch(s.state, p, e)
	if err != nil {
		return nil, err
	}
	if err := checkHash(next, p, e); err != nil {
		return nil, err
	}
	return next, nil
}

// beginLocked prepares a reading operation: the scope must be open, every
// earlier write must have reached the log, and a stale cache is reloaded.
func (s *Scope) beginLocked(ctx context.Context) error {
	if s.closed {
		return ErrScopeClosed
	}
	if err := s.queue.WaitDrained(ctx); err != nil {
		return err
	}
	return s.refreshLocked(ctx)
}

// failLocked records a consistency error and marks the scope stale.
func (s *Scope) failLocked(err error) error {
	s.stale = true
	s.recordConsistency(err)
	s.logger.Error("history unavailable, reloading", "error", err, "current", s.current)
	return err
}

func (s *Scope) recordConsistency(err error) {
	code := ConsistencyCode(err)
	if code == "" {
		code = "UNKNOWN"
	}
	s.eng.metrics.ConsistencyErrors.WithLabelValues(string(code)).Inc()
}

// CanUndo reports whether Undo would move.
func (s *Scope) CanUndo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current > 0
}

// CanRedo reports whether Redo would move.
func (s *Scope) CanRedo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current < len(s.entries)-1
}

// Current returns the index of the current entry, or -1 when empty.
func (s *Scope) Current() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Len returns the number of cached entries.
func (s *Scope) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Entries returns a copy of the cached entries.
func (s *Scope) Entries() []history.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.entries)
}

// State returns a copy of the current state, or nil when empty.
func (s *Scope) State() snapshot.Value {
	s.mu.Lock()
	defer s.mu.Unlock()
	return snapshot.Clone(s.state)
}

// Verify checks every invariant of the cached stack and replays the whole
// history, including recorded state hashes.
func (s *Scope) Verify(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrScopeClosed
	}
	if err := s.queue.WaitDrained(ctx); err != nil {
		return err
	}

	n := len(s.entries)
	switch {
	case n == 0 && s.current != -1:
		return fmt.Errorf("verify %s: empty history with current %d", s.id, s.current)
	case n > 0 && (s.current < 0 || s.current >= n):
		return fmt.Errorf("verify %s: current %d out of range [0, %d)", s.id, s.current, n)
	case n > s.eng.maxHistory:
		return fmt.Errorf("verify %s: %d entries exceed capacity %d", s.id, n, s.eng.maxHistory)
	case n == 0:
		return nil
	}

	if err := VerifyEntries(s.entries); err != nil {
		return err
	}
	want, err := Reconstruct(s.entries, s.current)
	if err != nil {
		return err
	}
	if !snapshot.Equal(want, s.state) {
		return newConsistencyError(ErrCodePatchMismatch, s.id, s.entries[s.current].Position,
			"cached state differs from reconstruction", nil)
	}
	return nil
}

// Sync blocks until every queued write has reached the log and returns
// the first write error since the previous Sync.
func (s *Scope) Sync(ctx context.Context) error {
	if err := s.queue.WaitDrained(ctx); err != nil {
		return err
	}

	s.errMu.Lock()
	defer s.errMu.Unlock()
	err := s.writeErr
	s.writeErr = nil
	return err
}

// Close waits for pending writes, stops the writer and releases the
// handle. The next Engine.Open for the same scope loads a fresh handle.
func (s *Scope) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	if err := s.queue.WaitDrained(ctx); err != nil {
		s.mu.Unlock()
		return err
	}
	s.closed = true
	s.queue.Close()
	s.mu.Unlock()

	s.eng.forget(s)
	<-s.done
	return nil
}

func (s *Scope) enqueue(op writeOp) {
	if s.detached {
		return
	}
	if !s.queue.Enqueue(op) {
		// Only reachable after Close, which holds s.mu like every caller.
		s.logger.Error("history write dropped", "op", op.Kind.String())
	}
}

// runWriter executes queued writes in FIFO order until the queue closes.
//
// Writes use a background context: they belong to pushes that have
// already returned, and a caller's cancellation must not tear a history.
func (s *Scope) runWriter() {
	defer close(s.done)
	ctx := context.Background()

	for {
		if op, ok := s.queue.TryDequeue(); ok {
			s.execute(ctx, op)
			s.queue.Done()
			continue
		}

		// Closed channel fires immediately, so re-check before blocking.
		if s.queue.closedAndEmpty() {
			return
		}
		<-s.queue.Wait()
	}
}

func (s *Scope) execute(ctx context.Context, op writeOp) {
	start := time.Now()

	var err error
	switch op.Kind {
	case writeAppend:
		entry := op.Entry
		if s.rebase && entry.Kind == history.KindDelta {
			// The delta's predecessor may be missing from the log.
			entry, err = rebaseEntry(op)
		}
		if err == nil {
			err = s.eng.log.Append(ctx, entry)
		}
		if err == nil && s.rebase {
			s.rebase = false
			s.eng.metrics.Operations.WithLabelValues("rebase").Inc()
			s.logger.Info("history rebased", "position", entry.Position)
		}
	case writeTruncateAfter:
		err = s.eng.log.TruncateAfter(ctx, s.id, op.Position)
	case writeTrimBefore:
		if s.skipTrim {
			// The stored head was not promoted; trimming would leave a
			// delta first.
			s.skipTrim = false
			s.logger.Debug("trim skipped", "position", op.Position)
			return
		}
		err = s.eng.log.TrimBefore(ctx, s.id, op.Position)
	case writeReplace:
		err = s.eng.log.Replace(ctx, op.Entry)
		s.skipTrim = err != nil
	default:
		err = fmt.Errorf("unknown write kind %d", op.Kind)
	}

	s.eng.metrics.WriteDuration.WithLabelValues(op.Kind.String()).Observe(time.Since(start).Seconds())

	if err == nil {
		return
	}

	if op.Kind != writeReplace {
		s.rebase = true
	}
	s.eng.metrics.StorageErrors.WithLabelValues(op.Kind.String()).Inc()
	attrs := []any{"op", op.Kind.String(), "error", err}
	if op.Kind == writeAppend || op.Kind == writeReplace {
		attrs = append(attrs, "position", op.Entry.Position)
	} else {
		attrs = append(attrs, "position", op.Position)
	}
	s.logger.Warn("history write failed", attrs...)

	s.errMu.Lock()
	if s.writeErr == nil {
		s.writeErr = fmt.Errorf("%s %s: %w", op.Kind, s.id, err)
	}
	s.errMu.Unlock()
}

// rebaseEntry rewrites a delta append as a full snapshot of the state it
// produces, keeping its identity.
func rebaseEntry(op writeOp) (history.Entry, error) {
	full, err := history.NewFullEntry(op.Entry.Scope, op.Entry.Position, op.State)
	if err != nil {
		return history.Entry{}, err
	}
	full.ID = op.Entry.ID
	full.Description = op.Entry.Description
	full.CreatedAt = op.Entry.CreatedAt
	return full, nil
}
