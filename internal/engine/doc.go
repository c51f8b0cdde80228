// Package engine implements the persistent undo/redo history engine.
//
// The engine keeps, per scope, a cached stack of history entries, the
// index of the current entry, and the state at that index. Every stack
// starts with a full snapshot; later entries are patches against their
// predecessor.
//
// ARCHITECTURE:
//
// Per-Scope Handles:
// Engine.Open returns the exclusive *Scope for an ID. One mutex per scope
// serializes Push, Undo, Redo, Load and Verify; different scopes never
// contend.
//
// Background Writer:
// Each scope owns a FIFO write queue and a writer goroutine. Push updates
// the cache synchronously and enqueues the log writes:
// 1. TruncateAfter, when a push abandons the redo branch
// 2. Append, for the new entry
// 3. Replace and TrimBefore, when the capacity evicts the head
// Undo, Redo, Load, Verify and Close wait until every earlier write has
// reached the log.
//
// FAILURE SEMANTICS:
//
// Storage errors are logged, counted in Metrics, and reported by Sync.
// They never fail a Push: the edit itself is never blocked on history.
//
// Consistency errors (a missing full snapshot, an undecodable payload, a
// patch that does not fit) are fatal for the operation. The cursor does
// not move, and the next operation reloads the scope from the log. If the
// stored history itself is unusable, the scope starts empty and the next
// Push replaces the stored history with a fresh one.
package engine
