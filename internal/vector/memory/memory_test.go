package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bkaradeniz/ragline/internal/vector"
)

func chunkWith(docID string, index int, content string, vec []float32) vector.Chunk {
	return vector.Chunk{
		DocumentID: docID,
		Index:      index,
		Content:    content,
		Page:       1,
		Method:     "text",
		Vector:     vec,
	}
}

func TestUpsertAndSearch(t *testing.T) {
	ctx := context.Background()
	s := New()

	require.NoError(t, s.EnsureCollection(ctx, "acme"))
	require.NoError(t, s.Upsert(ctx, "acme", []vector.Chunk{
		chunkWith("doc-1", 0, "about cats", []float32{1, 0, 0}),
		chunkWith("doc-1", 1, "about dogs", []float32{0, 1, 0}),
	}))

	results, err := s.Search(ctx, "acme", vector.SearchParams{
		Query: []float32{1, 0, 0},
		Limit: 10,
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "about cats", results[0].Content)
	assert.InDelta(t, 1.0, results[0].Score, 1e-6)
	assert.InDelta(t, 0.0, results[1].Score, 1e-6)
}

func TestTenantIsolation(t *testing.T) {
	ctx := context.Background()
	s := New()

	require.NoError(t, s.Upsert(ctx, "acme", []vector.Chunk{
		chunkWith("doc-1", 0, "acme secret", []float32{1, 0}),
	}))
	require.NoError(t, s.Upsert(ctx, "globex", []vector.Chunk{
		chunkWith("doc-1", 0, "globex secret", []float32{1, 0}),
	}))

	results, err := s.Search(ctx, "globex", vector.SearchParams{Query: []float32{1, 0}})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "globex secret", results[0].Content)
}

func TestTenantRequired(t *testing.T) {
	ctx := context.Background()
	s := New()

	assert.Error(t, s.EnsureCollection(ctx, ""))
	assert.Error(t, s.Upsert(ctx, "", nil))
	_, err := s.Search(ctx, "", vector.SearchParams{})
	assert.Error(t, err)
	_, err = s.DeleteDocument(ctx, "", "doc")
	assert.Error(t, err)
	assert.Error(t, s.DeleteCollection(ctx, ""))
	_, err = s.Stats(ctx, "")
	assert.Error(t, err)
}

func TestReingestOverwrites(t *testing.T) {
	ctx := context.Background()
	s := New()

	chunks := []vector.Chunk{
		chunkWith("doc-1", 0, "v1 first", []float32{1, 0}),
		chunkWith("doc-1", 1, "v1 second", []float32{0, 1}),
	}
	require.NoError(t, s.Upsert(ctx, "acme", chunks))
	require.NoError(t, s.Upsert(ctx, "acme", []vector.Chunk{
		chunkWith("doc-1", 0, "v2 first", []float32{1, 0}),
		chunkWith("doc-1", 1, "v2 second", []float32{0, 1}),
	}))

	stats, err := s.Stats(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, 2, stats.ChunkCount)

	results, err := s.Search(ctx, "acme", vector.SearchParams{Query: []float32{1, 0}, Limit: 1})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "v2 first", results[0].Content)
}

func TestScoreThresholdFiltering(t *testing.T) {
	ctx := context.Background()
	s := New()

	require.NoError(t, s.Upsert(ctx, "acme", []vector.Chunk{
		chunkWith("doc-1", 0, "close", []float32{1, 0}),
		chunkWith("doc-1", 1, "far", []float32{0, 1}),
	}))

	results, err := s.Search(ctx, "acme", vector.SearchParams{
		Query:          []float32{1, 0},
		Limit:          10,
		ScoreThreshold: 0.5,
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "close", results[0].Content)
}

func TestSearchDocumentFilter(t *testing.T) {
	ctx := context.Background()
	s := New()

	require.NoError(t, s.Upsert(ctx, "acme", []vector.Chunk{
		chunkWith("doc-1", 0, "from one", []float32{1, 0}),
		chunkWith("doc-2", 0, "from two", []float32{1, 0}),
	}))

	results, err := s.Search(ctx, "acme", vector.SearchParams{
		Query:      []float32{1, 0},
		DocumentID: "doc-2",
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "from two", results[0].Content)
}

func TestDeleteDocument(t *testing.T) {
	ctx := context.Background()
	s := New()

	require.NoError(t, s.Upsert(ctx, "acme", []vector.Chunk{
		chunkWith("doc-1", 0, "keep me out", []float32{1, 0}),
		chunkWith("doc-1", 1, "me too", []float32{0, 1}),
		chunkWith("doc-2", 0, "survivor", []float32{1, 1}),
	}))

	found, err := s.DeleteDocument(ctx, "acme", "doc-1")
	require.NoError(t, err)
	assert.True(t, found)

	stats, err := s.Stats(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.ChunkCount)
	assert.Equal(t, []string{"doc-2"}, stats.DocumentIDs)
}

func TestDeleteDocumentNotFound(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.EnsureCollection(ctx, "acme"))

	found, err := s.DeleteDocument(ctx, "acme", "no-such-doc")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestDeleteCollection(t *testing.T) {
	ctx := context.Background()
	s := New()

	require.NoError(t, s.Upsert(ctx, "acme", []vector.Chunk{
		chunkWith("doc-1", 0, "gone soon", []float32{1, 0}),
	}))
	require.NoError(t, s.DeleteCollection(ctx, "acme"))

	stats, err := s.Stats(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, 0, stats.ChunkCount)
	assert.Equal(t, 0, stats.DocCount)
}

func TestSearchLimit(t *testing.T) {
	ctx := context.Background()
	s := New()

	var chunks []vector.Chunk
	for i := 0; i < 20; i++ {
		chunks = append(chunks, chunkWith("doc-1", i, "c", []float32{1, 0}))
	}
	require.NoError(t, s.Upsert(ctx, "acme", chunks))

	results, err := s.Search(ctx, "acme", vector.SearchParams{Query: []float32{1, 0}, Limit: 5})
	require.NoError(t, err)
	assert.Len(t, results, 5)
}

func TestScoresClamped(t *testing.T) {
	ctx := context.Background()
	s := New()

	// Opposed vectors give a raw cosine of -1, which must clamp to 0.
	require.NoError(t, s.Upsert(ctx, "acme", []vector.Chunk{
		chunkWith("doc-1", 0, "opposite", []float32{-1, 0}),
	}))

	results, err := s.Search(ctx, "acme", vector.SearchParams{Query: []float32{1, 0}})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.GreaterOrEqual(t, results[0].Score, float32(0))
	assert.LessOrEqual(t, results[0].Score, float32(1))
}

func TestDeleteDocumentEmptyIDRejected(t *testing.T) {
	ctx := context.Background()
	s := New()

	require.NoError(t, s.Upsert(ctx, "acme", []vector.Chunk{
		chunkWith("doc-1", 0, "first", []float32{1, 0}),
		chunkWith("doc-2", 0, "second", []float32{0, 1}),
	}))

	found, err := s.DeleteDocument(ctx, "acme", "")
	assert.Error(t, err)
	assert.False(t, found)
	assert.Contains(t, err.Error(), "document id required")

	stats, err := s.Stats(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, 2, stats.ChunkCount)
}
