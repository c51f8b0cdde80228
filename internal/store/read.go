package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/roach88/rewind/internal/history"
)

// LoadAll returns every entry of scope ordered by position ascending.
//
// Returns an empty slice (not nil) if the scope has no entries.
func (s *Store) LoadAll(ctx context.Context, scope string) ([]history.Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, scope, position, kind, payload, description, created_at
		FROM history_entries
		WHERE scope = ?
		ORDER BY position ASC
	`, scope)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	entries := []history.Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}

	return entries, nil
}

// Count returns the number of entries stored for scope.
func (s *Store) Count(ctx context.Context, scope string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM history_entries WHERE scope = ?
	`, scope).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count entries: %w", err)
	}
	return n, nil
}

// Scopes lists every scope with at least one entry.
func (s *Store) Scopes(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT scope FROM history_entries ORDER BY scope COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query scopes: %w", err)
	}
	defer rows.Close()

	scopes := []string{}
	for rows.Next() {
		var scope string
		if err := rows.Scan(&scope); err != nil {
			return nil, fmt.Errorf("scan scope: %w", err)
		}
		scopes = append(scopes, scope)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate scopes: %w", err)
	}

	return scopes, nil
}

// scanEntry scans a history_entries row. A NULL kind is a legacy full entry.
func scanEntry(rows *sql.Rows) (history.Entry, error) {
	var (
		e         history.Entry
		kind      sql.NullString
		createdAt int64
	)
	if err := rows.Scan(
		&e.ID,
		&e.Scope,
		&e.Position,
		&kind,
		&e.Payload,
		&e.Description,
		&createdAt,
	); err != nil {
		return history.Entry{}, fmt.Errorf("scan entry: %w", err)
	}

	k, err := history.ParseKind(kind.String)
	if err != nil {
		return history.Entry{}, fmt.Errorf("scan entry %s/%d: %w", e.Scope, e.Position, err)
	}
	e.Kind = k
	e.CreatedAt = time.UnixMilli(createdAt).UTC()

	return e, nil
}
