package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/rewind/internal/delta"
	"github.com/roach88/rewind/internal/history"
	"github.com/roach88/rewind/internal/snapshot"
)

// Reconstruct returns the state at entries[target].
//
// It scans back from target to the nearest full entry, decodes it, and
// applies every later patch up to target in order. Any failure is a
// *ConsistencyError; a partially replayed state is never returned.
// Reconstruct is pure: it reads entries and nothing else.
func Reconstruct(entries []history.Entry, target int) (snapshot.Value, error) {
	if target < 0 || target >= len(entries) {
		return nil, fmt.Errorf("reconstruct: index %d out of range [0, %d)", target, len(entries))
	}

	base := -1
	for i := target; i >= 0; i-- {
		if entries[i].Kind != history.KindDelta {
			base = i
			break
		}
	}
	if base < 0 {
		e := entries[target]
		return nil, newConsistencyError(ErrCodeNoFullEntry, e.Scope, e.Position,
			fmt.Sprintf("no full snapshot at or before index %d", target), nil)
	}

	state, err := decodeFull(entries[base])
	if err != nil {
		return nil, err
	}
	for i := base + 1; i <= target; i++ {
		state, err = applyEntry(state, entries[i])
		if err != nil {
			return nil, err
		}
	}
	return state, nil
}

// VerifyEntries replays a whole history front to back and checks that
// every entry is reachable: index 0 is full, positions strictly increase,
// every payload decodes, every patch applies, and every recorded state
// hash matches.
func VerifyEntries(entries []history.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	if entries[0].Kind != history.KindFull {
		e := entries[0]
		return newConsistencyError(ErrCodeNoFullEntry, e.Scope, e.Position, "history does not start with a full snapshot", nil)
	}

	var state snapshot.Value
	for i, e := range entries {
		if i > 0 && e.Position <= entries[i-1].Position {
			return newConsistencyError(ErrCodeCorruptPayload, e.Scope, e.Position,
				fmt.Sprintf("position %d does not follow %d", e.Position, entries[i-1].Position), nil)
		}

		if e.Kind != history.KindDelta {
			next, err := decodeFull(e)
			if err != nil {
				return err
			}
			state = next
			continue
		}

		p, err := e.Patch()
		if err != nil {
			return newConsistencyError(ErrCodeCorruptPayload, e.Scope, e.Position, "undecodable patch", err)
		}
		next, err := applyPatch(state, p, e)
		if err != nil {
			return err
		}
		if err := checkHash(next, p, e); err != nil {
			return err
		}
		state = next
	}
	return nil
}

func decodeFull(e history.Entry) (snapshot.Value, error) {
	state, err := e.State()
	if err != nil {
		return nil, newConsistencyError(ErrCodeCorruptPayload, e.Scope, e.Position, "undecodable snapshot", err)
	}
	return state, nil
}

// applyEntry moves state forward across one entry.
func applyEntry(state snapshot.Value, e history.Entry) (snapshot.Value, error) {
	if e.Kind != history.KindDelta {
		return decodeFull(e)
	}
	p, err := e.Patch()
	if err != nil {
		return nil, newConsistencyError(ErrCodeCorruptPayload, e.Scope, e.Position, "undecodable patch", err)
	}
	return applyPatch(state, p, e)
}

func applyPatch(state snapshot.Value, p *delta.Patch, e history.Entry) (snapshot.Value, error) {
	next, err := delta.Apply(state, p)
	if err != nil {
		return nil, codecError(err, e, "patch does not apply")
	}
	return next, nil
}

func applyInverse(state snapshot.Value, e history.Entry) (snapshot.Value, error) {
	p, err := e.Patch()
	if err != nil {
		return nil, newConsistencyError(ErrCodeCorruptPayload, e.Scope, e.Position, "undecodable patch", err)
	}
	prev, err := delta.ApplyInverse(state, p)
	if err != nil {
		return nil, codecError(err, e, "inverse patch does not apply")
	}
	return prev, nil
}

// checkHash compares next against the state hash recorded in p.
// Patches without a hash are accepted.
func checkHash(next snapshot.Value, p *delta.Patch, e history.Entry) error {
	if p.Hash == "" {
		return nil
	}
	got, err := snapshot.Hash(next)
	if err != nil {
		return newConsistencyError(ErrCodeCorruptPayload, e.Scope, e.Position, "unhashable state", err)
	}
	if got != p.Hash {
		return newConsistencyError(ErrCodeHashMismatch, e.Scope, e.Position,
			fmt.Sprintf("state hash %.12s does not match recorded %.12s", got, p.Hash), nil)
	}
	return nil
}

// codecError classifies a delta error. Mismatches mean the chain diverged;
// anything else means the payload itself is malformed.
func codecError(err error, e history.Entry, msg string) *ConsistencyError {
	code := ErrCodeCorruptPayload
	if errors.Is(err, delta.ErrPatchMismatch) {
		code = ErrCodePatchMismatch
	}
	return newConsistencyError(code, e.Scope, e.Position, msg, err)
}
