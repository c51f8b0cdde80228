package historytest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rewind/internal/history"
)

// Entry builds a deterministic full entry for tests.
func Entry(scope string, position int64) history.Entry {
	return history.Entry{
		ID:          fmt.Sprintf("%s-%d", scope, position),
		Scope:       scope,
		Position:    position,
		Kind:        history.KindFull,
		Payload:     fmt.Sprintf(`{"n":%d}`, position),
		Description: fmt.Sprintf("step %d", position),
		CreatedAt:   time.UnixMilli(1700000000000 + position).UTC(),
	}
}

// RunLogContract exercises the behavior every history.Log must share.
// newLog is called once per subtest and must return an empty log.
func RunLogContract(t *testing.T, newLog func(t *testing.T) history.Log) {
	t.Helper()
	ctx := context.Background()

	positions := func(t *testing.T, l history.Log, scope string) []int64 {
		t.Helper()
		entries, err := l.LoadAll(ctx, scope)
		require.NoError(t, err)
		out := make([]int64, 0, len(entries))
		for _, e := range entries {
			out = append(out, e.Position)
		}
		return out
	}

	t.Run("empty scope loads nothing", func(t *testing.T) {
		l := newLog(t)
		entries, err := l.LoadAll(ctx, "missing")
		require.NoError(t, err)
		assert.Empty(t, entries)

		n, err := l.Count(ctx, "missing")
		require.NoError(t, err)
		assert.Equal(t, 0, n)
	})

	t.Run("append and load preserve every field", func(t *testing.T) {
		l := newLog(t)
		want := Entry("doc", 0)
		want.Kind = history.KindDelta
		want.Payload = `{"changes":[]}`
		require.NoError(t, l.Append(ctx, want))

		entries, err := l.LoadAll(ctx, "doc")
		require.NoError(t, err)
		require.Len(t, entries, 1)
		got := entries[0]
		assert.Equal(t, want.ID, got.ID)
		assert.Equal(t, want.Scope, got.Scope)
		assert.Equal(t, want.Position, got.Position)
		assert.Equal(t, want.Kind, got.Kind)
		assert.Equal(t, want.Payload, got.Payload)
		assert.Equal(t, want.Description, got.Description)
		assert.True(t, want.CreatedAt.Equal(got.CreatedAt), "created_at %v != %v", got.CreatedAt, want.CreatedAt)
	})

	t.Run("load orders by position", func(t *testing.T) {
		l := newLog(t)
		for _, p := range []int64{0, 1, 2, 10, 11} {
			require.NoError(t, l.Append(ctx, Entry("doc", p)))
		}
		assert.Equal(t, []int64{0, 1, 2, 10, 11}, positions(t, l, "doc"))
	})

	t.Run("duplicate position rejected", func(t *testing.T) {
		l := newLog(t)
		require.NoError(t, l.Append(ctx, Entry("doc", 0)))
		assert.Error(t, l.Append(ctx, Entry("doc", 0)))
	})

	t.Run("scopes are isolated", func(t *testing.T) {
		l := newLog(t)
		for p := int64(0); p < 3; p++ {
			require.NoError(t, l.Append(ctx, Entry("a", p)))
			require.NoError(t, l.Append(ctx, Entry("b", p)))
		}
		require.NoError(t, l.TruncateAfter(ctx, "a", 0))
		require.NoError(t, l.TrimBefore(ctx, "b", 2))

		assert.Equal(t, []int64{0}, positions(t, l, "a"))
		assert.Equal(t, []int64{2}, positions(t, l, "b"))

		n, err := l.Count(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})

	t.Run("truncate after", func(t *testing.T) {
		l := newLog(t)
		for p := int64(0); p < 5; p++ {
			require.NoError(t, l.Append(ctx, Entry("doc", p)))
		}
		require.NoError(t, l.TruncateAfter(ctx, "doc", 2))
		assert.Equal(t, []int64{0, 1, 2}, positions(t, l, "doc"))

		// Truncating past the end is a no-op.
		require.NoError(t, l.TruncateAfter(ctx, "doc", 99))
		assert.Equal(t, []int64{0, 1, 2}, positions(t, l, "doc"))

		// A later append continues from the new tail.
		require.NoError(t, l.Append(ctx, Entry("doc", 3)))
		assert.Equal(t, []int64{0, 1, 2, 3}, positions(t, l, "doc"))
	})

	t.Run("trim before", func(t *testing.T) {
		l := newLog(t)
		for p := int64(0); p < 5; p++ {
			require.NoError(t, l.Append(ctx, Entry("doc", p)))
		}
		require.NoError(t, l.TrimBefore(ctx, "doc", 3))
		assert.Equal(t, []int64{3, 4}, positions(t, l, "doc"))

		require.NoError(t, l.TrimBefore(ctx, "doc", 0))
		assert.Equal(t, []int64{3, 4}, positions(t, l, "doc"))
	})

	t.Run("replace", func(t *testing.T) {
		l := newLog(t)
		require.NoError(t, l.Append(ctx, Entry("doc", 0)))
		require.NoError(t, l.Append(ctx, Entry("doc", 1)))

		repl := Entry("doc", 1)
		repl.Payload = `{"replaced":true}`
		require.NoError(t, l.Replace(ctx, repl))

		entries, err := l.LoadAll(ctx, "doc")
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, `{"replaced":true}`, entries[1].Payload)
		assert.Equal(t, `{"n":0}`, entries[0].Payload)

		assert.Error(t, l.Replace(ctx, Entry("doc", 7)))
	})

	t.Run("scopes lists non-empty scopes sorted", func(t *testing.T) {
		l := newLog(t)
		require.NoError(t, l.Append(ctx, Entry("zeta", 0)))
		require.NoError(t, l.Append(ctx, Entry("alpha", 0)))
		require.NoError(t, l.Append(ctx, Entry("gone", 0)))
		require.NoError(t, l.TruncateAfter(ctx, "gone", -1))

		scopes, err := l.Scopes(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"alpha", "zeta"}, scopes)
	})
}
