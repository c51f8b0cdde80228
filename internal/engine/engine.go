package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/rewind/internal/history"
	"github.com/roach88/rewind/internal/snapshot"
)

// DefaultMaxHistory is the default number of entries kept per scope.
const DefaultMaxHistory = 50

// Engine owns the undo histories of every open scope.
//
// Each scope is served by an exclusive *Scope handle holding the cached
// history and a background writer that persists it. The engine-level lock
// only guards the handle map, so different scopes run concurrently.
//
// Thread-safety: all methods are safe for concurrent use.
type Engine struct {
	log        history.Log
	maxHistory int
	logger     *slog.Logger
	clock      Clock
	ids        IDGenerator
	metrics    *Metrics

	mu     sync.Mutex
	scopes map[string]*Scope
}

// Option allows configuration of engine parameters.
type Option func(*Engine)

// WithMaxHistory sets the maximum number of entries kept per scope.
//
// Default: 50 (DefaultMaxHistory). Values below 1 are ignored.
func WithMaxHistory(n int) Option {
	return func(e *Engine) {
		if n >= 1 {
			e.maxHistory = n
		}
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithClock sets the clock used to stamp entries.
func WithClock(c Clock) Option {
	return func(e *Engine) {
		if c != nil {
			e.clock = c
		}
	}
}

// WithIDGenerator sets the entry ID generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(e *Engine) {
		if g != nil {
			e.ids = g
		}
	}
}

// WithMetrics sets the metrics collectors.
func WithMetrics(m *Metrics) Option {
	return func(e *Engine) {
		if m != nil {
			e.metrics = m
		}
	}
}

// New creates an Engine persisting histories to log.
func New(log history.Log, opts ...Option) *Engine {
	e := &Engine{
		log:        log,
		maxHistory: DefaultMaxHistory,
		logger:     slog.Default(),
		clock:      SystemClock{},
		ids:        UUIDv7Generator{},
		scopes:     make(map[string]*Scope),
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.metrics == nil {
		e.metrics = NewMetrics(nil)
	}
	e.logger = e.logger.With("component", "engine")

	return e
}

// MaxHistory returns the per-scope capacity.
func (e *Engine) MaxHistory() int {
	return e.maxHistory
}

// Open returns the handle for scope, loading its history on first use.
// Repeated calls return the same handle.
//
// Open returns the handle even when the initial load fails. The handle is
// then empty and the error says why: a *ConsistencyError means the stored
// history is unusable and the next Push starts a fresh one; any other
// error is a storage failure and the next operation retries the load. A
// Push that still cannot load keeps its edit in memory until a load
// succeeds.
func (e *Engine) Open(ctx context.Context, scope string) (*Scope, error) {
	e.mu.Lock()
	s, ok := e.scopes[scope]
	if !ok {
		s = newScope(e, scope)
		// Held until the first load finishes, so no operation on the
		// handle sees an unloaded cache.
		s.mu.Lock()
		e.scopes[scope] = s
	}
	e.mu.Unlock()

	if ok {
		return s, nil
	}
	err := s.reloadLocked(ctx)
	s.mu.Unlock()
	return s, err
}

// Scopes returns the IDs of the currently open scopes.
func (e *Engine) Scopes() []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	ids := make([]string, 0, len(e.scopes))
	for id := range e.scopes {
		ids = append(ids, id)
	}
	return ids
}

// Push records doc as the newest state of scope. See Scope.Push.
//
// A failed initial load does not block the push; it was logged and the
// push starts from whatever the handle holds.
func (e *Engine) Push(ctx context.Context, scope string, doc any, description string) (bool, error) {
	s, _ := e.Open(ctx, scope)
	return s.Push(ctx, doc, description)
}

// Undo steps scope back one entry. See Scope.Undo.
func (e *Engine) Undo(ctx context.Context, scope string) (snapshot.Value, bool, error) {
	s, err := e.Open(ctx, scope)
	if err != nil {
		return nil, false, err
	}
	return s.Undo(ctx)
}

// Redo steps scope forward one entry. See Scope.Redo.
func (e *Engine) Redo(ctx context.Context, scope string) (snapshot.Value, bool, error) {
	s, err := e.Open(ctx, scope)
	if err != nil {
		return nil, false, err
	}
	return s.Redo(ctx)
}

// CanUndo reports whether scope has an earlier entry.
func (e *Engine) CanUndo(ctx context.Context, scope string) bool {
	s, _ := e.Open(ctx, scope)
	return s.CanUndo()
}

// CanRedo reports whether scope has a later entry.
func (e *Engine) CanRedo(ctx context.Context, scope string) bool {
	s, _ := e.Open(ctx, scope)
	return s.CanRedo()
}

// Load reloads scope from the history log, discarding the cached stack.
func (e *Engine) Load(ctx context.Context, scope string) error {
	e.mu.Lock()
	s, ok := e.scopes[scope]
	e.mu.Unlock()

	if !ok {
		_, err := e.Open(ctx, scope)
		return err
	}
	return s.Load(ctx)
}

// Close flushes and discards the handle for scope. Closing a scope that
// is not open is a no-op.
func (e *Engine) Close(ctx context.Context, scope string) error {
	e.mu.Lock()
	s, ok := e.scopes[scope]
	e.mu.Unlock()

	if !ok {
		return nil
	}
	return s.Close(ctx)
}

// CloseAll closes every open scope and returns the first error.
func (e *Engine) CloseAll(ctx context.Context) error {
	e.mu.Lock()
	handles := make([]*Scope, 0, len(e.scopes))
	for _, s := range e.scopes {
		handles = append(handles, s)
	}
	e.mu.Unlock()

	var first error
	for _, s := range handles {
		if err := s.Close(ctx); err != nil && first == nil {
			first = fmt.Errorf("close %s: %w", s.ID(), err)
		}
	}
	return first
}

// forget removes a closed handle from the map.
func (e *Engine) forget(s *Scope) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.scopes[s.id] == s {
		delete(e.scopes, s.id)
	}
}
