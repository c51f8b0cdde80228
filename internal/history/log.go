package history

import (
	"context"
	"errors"
	"slices"
	"sync"
)

var (
	// ErrDuplicate is returned when appending a position that already exists.
	ErrDuplicate = errors.New("duplicate position")

	// ErrOutOfOrder is returned when appending a position lower than the
	// scope's last position.
	ErrOutOfOrder = errors.New("out of order")

	// ErrNotFound is returned when replacing an entry that does not exist.
	ErrNotFound = errors.New("entry not found")
)

// Log is an ordered, per-scope append log of history entries.
//
// Scopes are logically partitioned: no method ever reads or modifies
// entries of a scope other than the one it is given.
type Log interface {
	// Append stores e at the end of e.Scope's log.
	Append(ctx context.Context, e Entry) error

	// LoadAll returns every entry of scope ordered by position ascending.
	// An unknown scope yields an empty slice.
	LoadAll(ctx context.Context, scope string) ([]Entry, error)

	// TruncateAfter deletes every entry of scope with a position greater
	// than position.
	TruncateAfter(ctx context.Context, scope string, position int64) error

	// TrimBefore deletes every entry of scope with a position lower than
	// position.
	TrimBefore(ctx context.Context, scope string, position int64) error

	// Replace overwrites the entry with the same scope and position.
	Replace(ctx context.Context, e Entry) error

	// Count returns the number of entries stored for scope.
	Count(ctx context.Context, scope string) (int, error)

	// Scopes lists every scope with at least one entry, sorted.
	Scopes(ctx context.Context) ([]string, error)
}

// MemoryLog is an in-process Log. It is used for ephemeral documents and
// in tests.
//
// Thread-safety: all methods are safe for concurrent use.
type MemoryLog struct {
	mu      sync.Mutex
	entries map[string][]Entry
}

var _ Log = (*MemoryLog)(nil)

// NewMemoryLog creates an empty in-memory log.
func NewMemoryLog() *MemoryLog {
	return &MemoryLog{entries: make(map[string][]Entry)}
}

func (m *MemoryLog) Append(_ context.Context, e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	list := m.entries[e.Scope]
	if n := len(list); n > 0 {
		last := list[n-1].Position
		if e.Position == last {
			return ErrDuplicate
		}
		if e.Position < last {
			return ErrOutOfOrder
		}
	}
	m.entries[e.Scope] = append(list, e)
	return nil
}

func (m *MemoryLog) LoadAll(_ context.Context, scope string) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return slices.Clone(m.entries[scope]), nil
}

func (m *MemoryLog) TruncateAfter(_ context.Context, scope string, position int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	list := m.entries[scope]
	cut := len(list)
	for cut > 0 && list[cut-1].Position > position {
		cut--
	}
	m.set(scope, list[:cut:cut])
	return nil
}

func (m *MemoryLog) TrimBefore(_ context.Context, scope string, position int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	list := m.entries[scope]
	start := 0
	for start < len(list) && list[start].Position < position {
		start++
	}
	m.set(scope, slices.Clone(list[start:]))
	return nil
}

func (m *MemoryLog) Replace(_ context.Context, e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	list := m.entries[e.Scope]
	for i := range list {
		if list[i].Position == e.Position {
			list[i] = e
			return nil
		}
	}
	return ErrNotFound
}

func (m *MemoryLog) Count(_ context.Context, scope string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.entries[scope]), nil
}

func (m *MemoryLog) Scopes(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	scopes := make([]string, 0, len(m.entries))
	for s := range m.entries {
		scopes = append(scopes, s)
	}
	slices.Sort(scopes)
	return scopes, nil
}

// set stores list for scope, dropping the scope when it is empty.
// Callers hold m.mu.
func (m *MemoryLog) set(scope string, list []Entry) {
	if len(list) == 0 {
		delete(m.entries, scope)
		return
	}
	m.entries[scope] = list
}
