package kvstore

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rewind/internal/history"
	"github.com/roach88/rewind/internal/history/historytest"
)

func openInMemory(t *testing.T) *Store {
	t.Helper()
	s, err := Open(InMemoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_Contract(t *testing.T) {
	historytest.RunLogContract(t, func(t *testing.T) history.Log {
		return openInMemory(t)
	})
}

func TestEntryKey(t *testing.T) {
	assert.Equal(t, "h/doc/00000000000000000042", string(entryKey("doc", 42)))
	assert.Equal(t, "h/a%2Fb/00000000000000000000", string(entryKey("a/b", 0)))

	scope, pos, err := parseKey(entryKey("a/b", 7))
	require.NoError(t, err)
	assert.Equal(t, "a/b", scope)
	assert.Equal(t, int64(7), pos)

	for _, bad := range []string{"x/doc/1", "h/doc/12", "h/doc/0000000000000000000x"} {
		_, _, err := parseKey([]byte(bad))
		assert.Error(t, err, bad)
	}
}

func TestStore_ScopesWithSlashesDoNotOverlap(t *testing.T) {
	ctx := context.Background()
	s := openInMemory(t)

	require.NoError(t, s.Append(ctx, historytest.Entry("a", 0)))
	require.NoError(t, s.Append(ctx, historytest.Entry("a/b", 0)))
	require.NoError(t, s.Append(ctx, historytest.Entry("a/b", 1)))

	n, err := s.Count(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, s.TruncateAfter(ctx, "a", -1))
	n, err = s.Count(ctx, "a/b")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	scopes, err := s.Scopes(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a/b"}, scopes)
}

func TestStore_PositionOrderIsNumeric(t *testing.T) {
	ctx := context.Background()
	s := openInMemory(t)

	for _, p := range []int64{2, 9, 10, 100} {
		require.NoError(t, s.Append(ctx, historytest.Entry("doc", p)))
	}
	assert.ErrorIs(t, s.Append(ctx, historytest.Entry("doc", 11)), history.ErrOutOfOrder)
	assert.ErrorIs(t, s.Append(ctx, historytest.Entry("doc", 100)), history.ErrDuplicate)
	assert.Error(t, s.Append(ctx, historytest.Entry("doc", -1)))

	entries, err := s.LoadAll(ctx, "doc")
	require.NoError(t, err)
	require.Len(t, entries, 4)
	assert.Equal(t, int64(100), entries[3].Position)
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	var logs bytes.Buffer
	cfg := DefaultConfig(dir)
	cfg.Logger = slog.New(slog.NewTextHandler(&logs, nil))

	s1, err := Open(cfg)
	require.NoError(t, err)
	legacy := historytest.Entry("doc", 0)
	require.NoError(t, s1.Append(ctx, legacy))
	require.NoError(t, s1.Append(ctx, historytest.Entry("doc", 1)))
	require.NoError(t, s1.Close())

	s2, err := Open(cfg)
	require.NoError(t, err)
	defer s2.Close()

	entries, err := s2.LoadAll(ctx, "doc")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, legacy.ID, entries[0].ID)
	assert.True(t, legacy.CreatedAt.Equal(entries[0].CreatedAt))
}

func TestOpen_RequiresPath(t *testing.T) {
	_, err := Open(Config{})
	assert.Error(t, err)
}
