package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rewind/internal/delta"
	"github.com/roach88/rewind/internal/history"
	"github.com/roach88/rewind/internal/snapshot"
)

func title(s string) snapshot.Value {
	return snapshot.NewObject(snapshot.O("title", snapshot.String(s)))
}

// chain builds a history whose states are title(states[i]).
func chain(t *testing.T, states ...string) []history.Entry {
	t.Helper()
	full, err := history.NewFullEntry("doc", 0, title(states[0]))
	require.NoError(t, err)
	entries := []history.Entry{full}

	for i := 1; i < len(states); i++ {
		p, ok, err := delta.Diff(title(states[i-1]), title(states[i]))
		require.NoError(t, err)
		require.True(t, ok)
		e, err := history.NewDeltaEntry("doc", int64(i), p)
		require.NoError(t, err)
		entries = append(entries, e)
	}
	return entries
}

func TestReconstruct(t *testing.T) {
	entries := chain(t, "a", "b", "c", "d")

	for i, want := range []string{"a", "b", "c", "d"} {
		got, err := Reconstruct(entries, i)
		require.NoError(t, err)
		assert.True(t, snapshot.Equal(title(want), got), "index %d", i)
	}
}

func TestReconstruct_UsesNearestFull(t *testing.T) {
	entries := chain(t, "a", "b", "c")

	// A full entry mid-chain restarts replay; the corrupt delta before it
	// is never read.
	entries[1].Payload = "garbage"
	full, err := history.NewFullEntry("doc", 2, title("c"))
	require.NoError(t, err)
	entries[2] = full

	got, err := Reconstruct(entries, 2)
	require.NoError(t, err)
	assert.True(t, snapshot.Equal(title("c"), got))
}

func TestReconstruct_Idempotent(t *testing.T) {
	entries := chain(t, "a", "b", "c")
	before := make([]history.Entry, len(entries))
	copy(before, entries)

	first, err := Reconstruct(entries, 2)
	require.NoError(t, err)
	second, err := Reconstruct(entries, 2)
	require.NoError(t, err)

	assert.True(t, snapshot.Equal(first, second))
	assert.Equal(t, before, entries, "entries were modified")
}

func TestReconstruct_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(entries []history.Entry)
		target int
		code   ConsistencyErrorCode
	}{
		{
			name:   "no full entry",
			mutate: func(entries []history.Entry) { entries[0].Kind = history.KindDelta },
			target: 1,
			code:   ErrCodeNoFullEntry,
		},
		{
			name:   "corrupt snapshot",
			mutate: func(entries []history.Entry) { entries[0].Payload = "{" },
			target: 1,
			code:   ErrCodeCorruptPayload,
		},
		{
			name:   "corrupt patch",
			mutate: func(entries []history.Entry) { entries[1].Payload = "[]" },
			target: 2,
			code:   ErrCodeCorruptPayload,
		},
		{
			name: "patch mismatch",
			mutate: func(entries []history.Entry) {
				entries[1].Payload = `{"changes":[{"path":"/title","old":"zzz","new":"b"}]}`
			},
			target: 2,
			code:   ErrCodePatchMismatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries := chain(t, "a", "b", "c")
			tt.mutate(entries)

			got, err := Reconstruct(entries, tt.target)
			require.Error(t, err)
			assert.Nil(t, got, "partial state returned")
			assert.True(t, IsConsistencyError(err))
			assert.Equal(t, tt.code, ConsistencyCode(err))
		})
	}
}

func TestReconstruct_OutOfRange(t *testing.T) {
	entries := chain(t, "a")

	_, err := Reconstruct(entries, 1)
	assert.Error(t, err)
	assert.False(t, IsConsistencyError(err))

	_, err = Reconstruct(nil, 0)
	assert.Error(t, err)
}

func TestVerifyEntries(t *testing.T) {
	require.NoError(t, VerifyEntries(nil))
	require.NoError(t, VerifyEntries(chain(t, "a", "b", "c")))

	t.Run("hash mismatch", func(t *testing.T) {
		entries := chain(t, "a", "b")
		p, err := entries[1].Patch()
		require.NoError(t, err)
		p.Hash = "0000"
		payload, err := delta.Encode(p)
		require.NoError(t, err)
		entries[1].Payload = string(payload)

		err = VerifyEntries(entries)
		assert.Equal(t, ErrCodeHashMismatch, ConsistencyCode(err))

		// Reconstruct does not check hashes.
		_, err = Reconstruct(entries, 1)
		assert.NoError(t, err)
	})

	t.Run("positions out of order", func(t *testing.T) {
		entries := chain(t, "a", "b")
		entries[1].Position = 0
		assert.True(t, IsConsistencyError(VerifyEntries(entries)))
	})

	t.Run("delta head", func(t *testing.T) {
		entries := chain(t, "a", "b")
		assert.Equal(t, ErrCodeNoFullEntry, ConsistencyCode(VerifyEntries(entries[1:])))
	})
}

func TestConsistencyError_Format(t *testing.T) {
	err := newConsistencyError(ErrCodePatchMismatch, "doc", 3, "patch does not apply", delta.ErrPatchMismatch)
	assert.Equal(t, "PATCH_MISMATCH: patch does not apply (scope=doc, position=3): patch mismatch", err.Error())
	assert.ErrorIs(t, err, delta.ErrPatchMismatch)

	bare := newConsistencyError(ErrCodeNoFullEntry, "", -1, "empty", nil)
	assert.Equal(t, "NO_FULL_ENTRY: empty", bare.Error())
	assert.Equal(t, ConsistencyErrorCode(""), ConsistencyCode(assert.AnError))
}
