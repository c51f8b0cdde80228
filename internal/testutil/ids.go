package testutil

import (
	"fmt"
	"sync"
)

// SequentialIDs generates predictable entry IDs: "<prefix>-1", "<prefix>-2", ...
//
// This enables deterministic test execution and golden snapshot comparison.
// The same scenario with a fresh SequentialIDs produces byte-identical logs.
//
// Thread-safety: SequentialIDs is safe for concurrent use via internal mutex.
type SequentialIDs struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequentialIDs creates a generator. If prefix is empty, "entry" is used.
func NewSequentialIDs(prefix string) *SequentialIDs {
	if prefix == "" {
		prefix = "entry"
	}
	return &SequentialIDs{prefix: prefix}
}

// Generate returns the next ID.
//
// Implements engine.IDGenerator interface.
func (g *SequentialIDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%d", g.prefix, g.n)
}
