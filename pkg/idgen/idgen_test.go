package idgen

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUUIDv7_Unique(t *testing.T) {
	gen := UUIDv7()
	seen := make(map[string]struct{})

	for range 100 {
		id := gen()
		_, err := uuid.Parse(id)
		require.NoError(t, err)

		_, dup := seen[id]
		require.False(t, dup)
		seen[id] = struct{}{}
	}
}

func TestPrefixed(t *testing.T) {
	id := Prefixed("anchor_", UUIDv7())()
	assert.True(t, strings.HasPrefix(id, "anchor_"))

	_, err := uuid.Parse(strings.TrimPrefix(id, "anchor_"))
	assert.NoError(t, err)
}

func TestSequential(t *testing.T) {
	gen := Sequential("a")
	assert.Equal(t, "a-1", gen())
	assert.Equal(t, "a-2", gen())
}
