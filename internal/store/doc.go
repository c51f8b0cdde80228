// Package store provides SQLite-backed durable storage for undo histories.
//
// Store implements history.Log on a single table, history_entries, with
// one row per entry and a UNIQUE(scope, position) constraint. Scopes share
// the table but are logically partitioned: every statement filters on
// scope.
//
// # Ordering
//
// Positions are logical and assigned by the engine. All reads use
// ORDER BY position ASC; created_at is informational and never used for
// ordering.
//
// # Legacy rows
//
// Databases created before entry kinds existed have no kind column. The
// v1 migration adds it as a nullable column, and a NULL kind is read as a
// full snapshot.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
package store
