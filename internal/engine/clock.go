package engine

import "time"

// Clock stamps history entries with their creation time.
//
// Timestamps are informational only. Ordering within a scope always uses
// entry positions, never wall time.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// Now returns the current time truncated to milliseconds, the resolution
// entries are stored at.
func (SystemClock) Now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}
