package kvstore

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/dgraph-io/badger/v4"

	"github.com/roach88/rewind/internal/history"
)

// Append stores e after the scope's current tail.
func (s *Store) Append(_ context.Context, e history.Entry) error {
	if e.Position < 0 {
		return fmt.Errorf("append entry: negative position %d", e.Position)
	}
	value, err := history.MarshalEntry(e)
	if err != nil {
		return fmt.Errorf("append entry: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		last, ok, err := tailPosition(txn, e.Scope)
		if err != nil {
			return err
		}
		if ok {
			switch {
			case e.Position == last:
				return history.ErrDuplicate
			case e.Position < last:
				return history.ErrOutOfOrder
			}
		}
		return txn.Set(entryKey(e.Scope, e.Position), value)
	})
	if err != nil {
		return fmt.Errorf("append entry %s/%d: %w", e.Scope, e.Position, err)
	}
	return nil
}

// tailPosition returns the highest position stored for scope.
func tailPosition(txn *badger.Txn, scope string) (int64, bool, error) {
	prefix := scopePrefix(scope)
	opts := badger.DefaultIteratorOptions
	opts.Reverse = true
	opts.PrefetchValues = false
	opts.Prefix = prefix

	it := txn.NewIterator(opts)
	defer it.Close()

	// Reverse iteration starts from the first key at or before the seek
	// key, so seek past every key with the prefix.
	it.Seek(append(append([]byte{}, prefix...), 0xFF))
	if !it.ValidForPrefix(prefix) {
		return 0, false, nil
	}
	_, pos, err := parseKey(it.Item().Key())
	if err != nil {
		return 0, false, err
	}
	return pos, true, nil
}

// LoadAll returns every entry of scope ordered by position ascending.
func (s *Store) LoadAll(_ context.Context, scope string) ([]history.Entry, error) {
	entries := []history.Entry{}
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := scopePrefix(scope)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			err := item.Value(func(val []byte) error {
				e, err := history.UnmarshalEntry(val)
				if err != nil {
					return fmt.Errorf("key %q: %w", item.Key(), err)
				}
				entries = append(entries, e)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load entries: %w", err)
	}
	return entries, nil
}

// TruncateAfter deletes the scope's entries with a position greater than
// position.
func (s *Store) TruncateAfter(_ context.Context, scope string, position int64) error {
	err := s.deleteWhere(scope, func(pos int64) bool { return pos > position })
	if err != nil {
		return fmt.Errorf("truncate after %d: %w", position, err)
	}
	return nil
}

// TrimBefore deletes the scope's entries with a position lower than
// position.
func (s *Store) TrimBefore(_ context.Context, scope string, position int64) error {
	err := s.deleteWhere(scope, func(pos int64) bool { return pos < position })
	if err != nil {
		return fmt.Errorf("trim before %d: %w", position, err)
	}
	return nil
}

func (s *Store) deleteWhere(scope string, match func(pos int64) bool) error {
	return s.db.Update(func(txn *badger.Txn) error {
		prefix := scopePrefix(scope)
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix

		var doomed [][]byte
		it := txn.NewIterator(opts)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			_, pos, err := parseKey(it.Item().Key())
			if err != nil {
				it.Close()
				return err
			}
			if match(pos) {
				doomed = append(doomed, it.Item().KeyCopy(nil))
			}
		}
		it.Close()

		for _, key := range doomed {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
}

// Replace overwrites the entry stored at (e.Scope, e.Position).
func (s *Store) Replace(_ context.Context, e history.Entry) error {
	value, err := history.MarshalEntry(e)
	if err != nil {
		return fmt.Errorf("replace entry: %w", err)
	}

	key := entryKey(e.Scope, e.Position)
	err = s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(key); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return history.ErrNotFound
			}
			return err
		}
		return txn.Set(key, value)
	})
	if err != nil {
		return fmt.Errorf("replace entry %s/%d: %w", e.Scope, e.Position, err)
	}
	return nil
}

// Count returns the number of entries stored for scope.
func (s *Store) Count(_ context.Context, scope string) (int, error) {
	n := 0
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := scopePrefix(scope)
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix

		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			n++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("count entries: %w", err)
	}
	return n, nil
}

// Scopes lists every scope with at least one entry, sorted.
func (s *Store) Scopes(_ context.Context) ([]string, error) {
	scopes := []string{}
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := []byte(keyPrefix)
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix

		it := txn.NewIterator(opts)
		defer it.Close()

		last := ""
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			scope, _, err := parseKey(it.Item().Key())
			if err != nil {
				return err
			}
			if len(scopes) == 0 || scope != last {
				scopes = append(scopes, scope)
				last = scope
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list scopes: %w", err)
	}
	// Escaping can reorder scopes relative to their raw names.
	slices.Sort(scopes)
	return scopes, nil
}
