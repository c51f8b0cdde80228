package testutil

import (
	"sync"
	"time"
)

// Epoch is the first instant a DeterministicClock reports.
var Epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// DeterministicClock is a thread-safe test clock that advances by a fixed
// step on every reading.
//
// The same sequence of calls always yields the same timestamps, so entry
// timestamps in golden files are stable.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type DeterministicClock struct {
	mu   sync.Mutex
	step time.Duration
	n    int64
}

// NewDeterministicClock creates a clock that starts at Epoch and advances
// one second per call to Now.
func NewDeterministicClock() *DeterministicClock {
	return &DeterministicClock{step: time.Second}
}

// Now advances the clock and returns the new time.
// The first call returns Epoch + step.
func (c *DeterministicClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n++
	return Epoch.Add(time.Duration(c.n) * c.step)
}

// Ticks returns how many times Now has been called.
func (c *DeterministicClock) Ticks() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

// Reset rewinds the clock to Epoch.
//
// Used for test reuse. After Reset(), the next call to Now() returns Epoch + step.
func (c *DeterministicClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n = 0
}
