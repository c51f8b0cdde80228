// Package kvstore provides a BadgerDB-backed history.Log.
//
// Entries are stored one per key:
//
//	h/<escaped scope>/<position as 20-digit zero-padded decimal>
//
// The value is the serialized entry (history.MarshalEntry). Because the
// position is fixed-width, iterating a scope's key prefix yields entries in
// position order. Scopes are path-escaped so that a scope containing "/"
// can never share a prefix with another scope.
package kvstore

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/dgraph-io/badger/v4"

	"github.com/roach88/rewind/internal/history"
)

const (
	keyPrefix   = "h/"
	positionLen = 20
)

// Config holds configuration for a Badger-backed log.
type Config struct {
	// Path is the directory for BadgerDB files.
	// Ignored when InMemory is true.
	Path string

	// InMemory enables in-memory mode (no disk persistence).
	InMemory bool

	// SyncWrites enables synchronous writes for durability.
	SyncWrites bool

	// Logger receives BadgerDB's internal log output.
	// If nil, BadgerDB's internal logging is disabled.
	Logger *slog.Logger
}

// DefaultConfig returns the configuration used for persistent histories.
func DefaultConfig(path string) Config {
	return Config{
		Path:       path,
		SyncWrites: true,
	}
}

// InMemoryConfig returns configuration for tests.
func InMemoryConfig() Config {
	return Config{InMemory: true}
}

// badgerLogger adapts slog.Logger to BadgerDB's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

// Store is a history.Log backed by BadgerDB.
//
// Thread Safety: Safe for concurrent use.
type Store struct {
	db *badger.DB
}

var _ history.Log = (*Store)(nil)

// Open opens the database described by cfg, creating the directory if it
// doesn't exist. Caller must call Close when done.
func Open(cfg Config) (*Store, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent database")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create database directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}

	opts = opts.WithSyncWrites(cfg.SyncWrites)
	opts = opts.WithNumVersionsToKeep(1)

	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger.With("component", "badger")})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func scopePrefix(scope string) []byte {
	return []byte(keyPrefix + url.PathEscape(scope) + "/")
}

func entryKey(scope string, position int64) []byte {
	return fmt.Appendf(scopePrefix(scope), "%0*d", positionLen, position)
}

// parseKey splits a key into its scope and position.
func parseKey(key []byte) (string, int64, error) {
	rest, ok := strings.CutPrefix(string(key), keyPrefix)
	if !ok {
		return "", 0, fmt.Errorf("malformed key %q", key)
	}
	i := strings.LastIndexByte(rest, '/')
	if i < 0 || len(rest)-i-1 != positionLen {
		return "", 0, fmt.Errorf("malformed key %q", key)
	}
	scope, err := url.PathUnescape(rest[:i])
	if err != nil {
		return "", 0, fmt.Errorf("malformed key %q: %w", key, err)
	}
	pos, err := strconv.ParseInt(rest[i+1:], 10, 64)
	if err != nil {
		return "", 0, fmt.Errorf("malformed key %q: %w", key, err)
	}
	return scope, pos, nil
}
