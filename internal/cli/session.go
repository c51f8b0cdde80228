package cli

import (
	"context"
	"errors"
	"io"

	"github.com/roach88/rewind/internal/config"
	"github.com/roach88/rewind/internal/engine"
	"github.com/roach88/rewind/internal/history"
	"github.com/roach88/rewind/internal/kvstore"
	"github.com/roach88/rewind/internal/store"
)

// storedLog is a history log backed by an open database.
type storedLog interface {
	history.Log
	io.Closer
}

// openLog opens the history log selected by the resolved config.
func openLog(opts *RootOptions) (storedLog, error) {
	cfg := opts.Config
	opts.Logger.Debug("opening history", "backend", cfg.Backend, "database", cfg.Database)

	switch cfg.Backend {
	case config.BackendBadger:
		kcfg := kvstore.DefaultConfig(cfg.Database)
		kcfg.Logger = opts.Logger.With("component", "badger")
		st, err := kvstore.Open(kcfg)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to open database", err)
		}
		return st, nil
	default:
		st, err := store.Open(cfg.Database)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to open database", err)
		}
		return st, nil
	}
}

// session is an open log with an engine serving it.
type session struct {
	log    storedLog
	engine *engine.Engine
}

func openSession(opts *RootOptions) (*session, error) {
	log, err := openLog(opts)
	if err != nil {
		return nil, err
	}
	eng := engine.New(log,
		engine.WithMaxHistory(opts.Config.MaxHistory),
		engine.WithLogger(opts.Logger),
	)
	return &session{log: log, engine: eng}, nil
}

// Close flushes every scope and closes the database.
func (s *session) Close(ctx context.Context) error {
	return errors.Join(s.engine.CloseAll(ctx), s.log.Close())
}
