// Package harness runs YAML scenarios against the history engine.
//
// A scenario is a list of steps executed in order against one engine with
// a deterministic clock and sequential entry IDs, so the same scenario
// always produces the same entries, timestamps and states. After the last
// step every scope's stored log is read back and each entry's state is
// reconstructed; assertions run against that log, and golden tests compare
// the full step trace and log against files in testdata/golden.
//
// # Scenario Format
//
//	name: undo_redo
//	description: "Undo and redo move between two states"
//	backend: memory        # memory (default), sqlite or badger
//	max_history: 50        # optional; engine default when omitted
//	scope: doc             # default scope for steps; "doc" when omitted
//	steps:
//	  - op: push
//	    doc: { title: a }
//	    description: create
//	    expect: { pushed: true, current: 0 }
//	  - op: undo
//	    expect: { moved: false, state: { title: a } }
//	  - op: restart        # close the engine and reopen the scope
//	assertions:
//	  - type: entry_count
//	    count: 1
//	  - type: final_state
//	    state: { title: a }
//
// # Step Ops
//
//   - push: record doc (expect pushed)
//   - undo, redo: move one entry (expect moved)
//   - load: reload the scope from the log
//   - verify: check the scope's invariants
//   - restart: close every scope and start a new engine on the same log
//
// Every step may also expect the resulting current index and state, or an
// error; an error is matched by consistency code when it has one.
//
// # Assertion Types
//
//   - entry_count: number of stored entries in a scope
//   - entry_kinds: stored entry kinds in order
//   - positions: stored entry positions in order
//   - final_state: state of the newest stored entry
package harness
