package history_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rewind/internal/history"
	"github.com/roach88/rewind/internal/history/historytest"
)

func TestMemoryLog_Contract(t *testing.T) {
	historytest.RunLogContract(t, func(t *testing.T) history.Log {
		return history.NewMemoryLog()
	})
}

func TestMemoryLog_AppendOrdering(t *testing.T) {
	ctx := context.Background()
	l := history.NewMemoryLog()

	require.NoError(t, l.Append(ctx, historytest.Entry("doc", 5)))
	assert.ErrorIs(t, l.Append(ctx, historytest.Entry("doc", 5)), history.ErrDuplicate)
	assert.ErrorIs(t, l.Append(ctx, historytest.Entry("doc", 2)), history.ErrOutOfOrder)
	assert.ErrorIs(t, l.Replace(ctx, historytest.Entry("doc", 2)), history.ErrNotFound)
}

func TestMemoryLog_LoadReturnsCopy(t *testing.T) {
	ctx := context.Background()
	l := history.NewMemoryLog()
	require.NoError(t, l.Append(ctx, historytest.Entry("doc", 0)))

	entries, err := l.LoadAll(ctx, "doc")
	require.NoError(t, err)
	entries[0].Payload = "mutated"

	again, err := l.LoadAll(ctx, "doc")
	require.NoError(t, err)
	assert.Equal(t, `{"n":0}`, again[0].Payload)
}

func TestFailingLog(t *testing.T) {
	ctx := context.Background()
	f := historytest.NewFailingLog(history.NewMemoryLog())

	require.NoError(t, f.Append(ctx, historytest.Entry("doc", 0)))

	f.FailOn(historytest.OpAppend, nil)
	assert.ErrorIs(t, f.Append(ctx, historytest.Entry("doc", 1)), historytest.ErrInjected)

	n, err := f.Count(ctx, "doc")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	f.Heal()
	require.NoError(t, f.Append(ctx, historytest.Entry("doc", 1)))
	assert.Equal(t, 3, f.Calls(historytest.OpAppend))
}
