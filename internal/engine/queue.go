package engine

import (
	"context"
	"sync"

	"github.com/roach88/rewind/internal/history"
	"github.com/roach88/rewind/internal/snapshot"
)

// writeKind distinguishes history log writes.
type writeKind int

const (
	writeAppend writeKind = iota + 1
	writeTruncateAfter
	writeTrimBefore
	writeReplace
)

func (k writeKind) String() string {
	switch k {
	case writeAppend:
		return "append"
	case writeTruncateAfter:
		return "truncate_after"
	case writeTrimBefore:
		return "trim_before"
	case writeReplace:
		return "replace"
	default:
		return "unknown"
	}
}

// writeOp is one pending history log write.
// Entry is used by append and replace, Position by truncate and trim.
// State is the state an appended entry produces.
type writeOp struct {
	Kind     writeKind
	Entry    history.Entry
	Position int64
	State    snapshot.Value
}

// writeQueue is a thread-safe FIFO queue of pending log writes for one
// scope.
//
// The queue is unbounded so that Push never blocks on storage. A single
// writer goroutine dequeues; any number of goroutines may wait for the
// queue to drain.
//
// An operation stays pending from Enqueue until the writer calls Done for
// it, so a drained queue means every write has reached the log, not just
// left the queue.
type writeQueue struct {
	mu      sync.Mutex
	ops     []writeOp
	pending int
	closed  bool
	signal  chan struct{} // Signals op availability (buffered, size 1)
	drained chan struct{} // Closed when pending drops to 0
}

// newWriteQueue creates an empty, drained queue.
func newWriteQueue() *writeQueue {
	drained := make(chan struct{})
	close(drained)
	return &writeQueue{
		ops:     make([]writeOp, 0, 8),
		signal:  make(chan struct{}, 1),
		drained: drained,
	}
}

// Enqueue adds an op to the back of the queue.
// Returns false if the queue is closed.
func (q *writeQueue) Enqueue(op writeOp) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.ops = append(q.ops, op)
	if q.pending == 0 {
		q.drained = make(chan struct{})
	}
	q.pending++

	// Non-blocking: the buffer of 1 coalesces multiple signals
	select {
	case q.signal <- struct{}{}:
	default:
	}

	return true
}

// TryDequeue attempts to dequeue without blocking.
// Returns (writeOp{}, false) if the queue is empty.
func (q *writeQueue) TryDequeue() (writeOp, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.ops) == 0 {
		return writeOp{}, false
	}

	op := q.ops[0]
	// Clear the slot so the entry payload can be collected.
	q.ops[0] = writeOp{}
	if len(q.ops) == 1 {
		q.ops = q.ops[:0]
	} else {
		q.ops = q.ops[1:]
	}

	return op, true
}

// Done marks one dequeued op as finished.
func (q *writeQueue) Done() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.pending--
	if q.pending == 0 {
		close(q.drained)
	}
}

// Wait returns a channel that signals when ops may be available.
// The channel is closed once the queue is closed.
func (q *writeQueue) Wait() <-chan struct{} {
	return q.signal
}

// WaitDrained blocks until every enqueued op is done or ctx ends.
func (q *writeQueue) WaitDrained(ctx context.Context) error {
	q.mu.Lock()
	drained := q.drained
	q.mu.Unlock()

	select {
	case <-drained:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Len returns the number of ops not yet done.
func (q *writeQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pending
}

// Close signals that no more ops will be enqueued.
// Ops already queued are still delivered.
func (q *writeQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.closed = true
	close(q.signal)
}

// closedAndEmpty reports whether the writer may exit.
func (q *writeQueue) closedAndEmpty() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed && len(q.ops) == 0
}
