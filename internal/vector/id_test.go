package vector

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkIDDeterministic(t *testing.T) {
	a := ChunkID("acme", "doc-1", 0)
	b := ChunkID("acme", "doc-1", 0)
	assert.Equal(t, a, b)

	_, err := uuid.Parse(a)
	require.NoError(t, err)
}

func TestChunkIDDistinct(t *testing.T) {
	ids := map[string]bool{
		ChunkID("acme", "doc-1", 0):   true,
		ChunkID("acme", "doc-1", 1):   true,
		ChunkID("acme", "doc-2", 0):   true,
		ChunkID("globex", "doc-1", 0): true,
	}
	assert.Len(t, ids, 4)
}
