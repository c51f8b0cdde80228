// Package history defines the persisted form of an undo history and the
// contract every history log backend implements.
//
// A history is an ordered, per-scope sequence of entries. Each entry is
// either a full snapshot of the document or a patch relative to the entry
// immediately before it. Positions are assigned by the engine, strictly
// increase within a scope, and are the only ordering key: backends MUST
// return entries ordered by position ascending.
//
// The Log interface is deliberately small. The engine treats it as a
// reliable ordered log and owns every decision about what to write; a
// backend only stores, orders, truncates and counts.
package history
