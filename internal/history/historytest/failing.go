// Package historytest provides test doubles and a shared contract suite
// for history.Log implementations.
package historytest

import (
	"context"
	"errors"
	"sync"

	"github.com/roach88/rewind/internal/history"
)

// ErrInjected is the default error returned by a failing operation.
var ErrInjected = errors.New("injected storage failure")

// Op names a history.Log method.
type Op string

const (
	OpAppend        Op = "append"
	OpLoadAll       Op = "load_all"
	OpTruncateAfter Op = "truncate_after"
	OpTrimBefore    Op = "trim_before"
	OpReplace       Op = "replace"
	OpCount         Op = "count"
	OpScopes        Op = "scopes"
)

// FailingLog wraps a history.Log and fails selected operations on demand.
// Operations that are not failing are forwarded to the wrapped log.
type FailingLog struct {
	inner history.Log

	mu      sync.Mutex
	failing map[Op]error
	calls   map[Op]int
}

var _ history.Log = (*FailingLog)(nil)

// NewFailingLog wraps inner. With no failures configured it behaves
// exactly like inner.
func NewFailingLog(inner history.Log) *FailingLog {
	return &FailingLog{
		inner:   inner,
		failing: make(map[Op]error),
		calls:   make(map[Op]int),
	}
}

// FailOn makes op return err until Heal is called. A nil err means
// ErrInjected.
func (f *FailingLog) FailOn(op Op, err error) {
	if err == nil {
		err = ErrInjected
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failing[op] = err
}

// Heal clears every configured failure.
func (f *FailingLog) Heal() {
	f.mu.Lock()
	defer f.mu.Unlock()
	clear(f.failing)
}

// Calls reports how many times op was invoked, failed or not.
func (f *FailingLog) Calls(op Op) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *FailingLog) check(op Op) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[op]++
	return f.failing[op]
}

func (f *FailingLog) Append(ctx context.Context, e history.Entry) error {
	if err := f.check(OpAppend); err != nil {
		return err
	}
	return f.inner.Append(ctx, e)
}

func (f *FailingLog) LoadAll(ctx context.Context, scope string) ([]history.Entry, error) {
	if err := f.check(OpLoadAll); err != nil {
		return nil, err
	}
	return f.inner.LoadAll(ctx, scope)
}

func (f *FailingLog) TruncateAfter(ctx context.Context, scope string, position int64) error {
	if err := f.check(OpTruncateAfter); err != nil {
		return err
	}
	return f.inner.TruncateAfter(ctx, scope, position)
}

func (f *FailingLog) TrimBefore(ctx context.Context, scope string, position int64) error {
	if err := f.check(OpTrimBefore); err != nil {
		return err
	}
	return f.inner.TrimBefore(ctx, scope, position)
}

func (f *FailingLog) Replace(ctx context.Context, e history.Entry) error {
	if err := f.check(OpReplace); err != nil {
		return err
	}
	return f.inner.Replace(ctx, e)
}

func (f *FailingLog) Count(ctx context.Context, scope string) (int, error) {
	if err := f.check(OpCount); err != nil {
		return 0, err
	}
	return f.inner.Count(ctx, scope)
}

func (f *FailingLog) Scopes(ctx context.Context) ([]string, error) {
	if err := f.check(OpScopes); err != nil {
		return nil, err
	}
	return f.inner.Scopes(ctx)
}
