package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"

	"github.com/roach88/rewind/internal/history"
)

// Append inserts e at the end of its scope's log.
//
// The position must be greater than every position already stored for the
// scope; a repeated position returns history.ErrDuplicate and a lower one
// history.ErrOutOfOrder. The check and the insert share a transaction.
func (s *Store) Append(ctx context.Context, e history.Entry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("append entry: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	var last sql.NullInt64
	err = tx.QueryRowContext(ctx, `
		SELECT MAX(position) FROM history_entries WHERE scope = ?
	`, e.Scope).Scan(&last)
	if err != nil {
		return fmt.Errorf("append entry: read tail: %w", err)
	}
	if last.Valid {
		switch {
		case e.Position == last.Int64:
			return fmt.Errorf("append entry %s/%d: %w", e.Scope, e.Position, history.ErrDuplicate)
		case e.Position < last.Int64:
			return fmt.Errorf("append entry %s/%d: %w", e.Scope, e.Position, history.ErrOutOfOrder)
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO history_entries
		(id, scope, position, kind, payload, description, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		e.ID,
		e.Scope,
		e.Position,
		string(e.Kind),
		e.Payload,
		e.Description,
		e.CreatedAt.UnixMilli(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("append entry %s/%d: %w", e.Scope, e.Position, history.ErrDuplicate)
		}
		return fmt.Errorf("append entry: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("append entry: commit: %w", err)
	}
	return nil
}

// TruncateAfter deletes the scope's entries with a position greater than
// position.
func (s *Store) TruncateAfter(ctx context.Context, scope string, position int64) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM history_entries WHERE scope = ? AND position > ?
	`, scope, position)
	if err != nil {
		return fmt.Errorf("truncate after %d: %w", position, err)
	}
	return nil
}

// TrimBefore deletes the scope's entries with a position lower than
// position.
func (s *Store) TrimBefore(ctx context.Context, scope string, position int64) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM history_entries WHERE scope = ? AND position < ?
	`, scope, position)
	if err != nil {
		return fmt.Errorf("trim before %d: %w", position, err)
	}
	return nil
}

// Replace rewrites the entry stored at (e.Scope, e.Position).
// Returns history.ErrNotFound when there is none.
func (s *Store) Replace(ctx context.Context, e history.Entry) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE history_entries
		SET id = ?, kind = ?, payload = ?, description = ?, created_at = ?
		WHERE scope = ? AND position = ?
	`,
		e.ID,
		string(e.Kind),
		e.Payload,
		e.Description,
		e.CreatedAt.UnixMilli(),
		e.Scope,
		e.Position,
	)
	if err != nil {
		return fmt.Errorf("replace entry: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("replace entry: rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("replace entry %s/%d: %w", e.Scope, e.Position, history.ErrNotFound)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.ExtendedCode == sqlite3.ErrConstraintUnique ||
		se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}
