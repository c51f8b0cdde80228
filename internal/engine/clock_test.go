package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSystemClock_MillisecondResolution(t *testing.T) {
	now := SystemClock{}.Now()
	assert.Equal(t, now, now.Truncate(time.Millisecond))
	assert.Equal(t, time.UTC, now.Location())
}

func TestUUIDv7Generator_Unique(t *testing.T) {
	gen := UUIDv7Generator{}
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := gen.Generate()
		assert.Len(t, id, 36)
		assert.False(t, seen[id], "id %s generated twice", id)
		seen[id] = true
	}
}
