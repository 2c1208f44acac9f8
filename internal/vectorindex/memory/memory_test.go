package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docchat-backend/internal/vectorindex"
)

func TestUpsertOverwritesSameKey(t *testing.T) {
	s := NewStorage()
	ctx := context.Background()

	err := s.Upsert(ctx, []vectorindex.Point{
		{SourceID: "doc1", ChunkIndex: 0, Vector: []float32{1, 0}, Text: "old"},
	})
	require.NoError(t, err)

	err = s.Upsert(ctx, []vectorindex.Point{
		{SourceID: "doc1", ChunkIndex: 0, Vector: []float32{1, 0}, Text: "new"},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, s.Len(), "same key must overwrite, not duplicate")

	results, err := s.Search(ctx, []float32{1, 0}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "new", results[0].Text)
}

func TestSearchOrdersByDescendingScore(t *testing.T) {
	s := NewStorage()
	ctx := context.Background()

	err := s.Upsert(ctx, []vectorindex.Point{
		{SourceID: "doc1", ChunkIndex: 0, Vector: []float32{1, 0}, Text: "aligned"},
		{SourceID: "doc1", ChunkIndex: 1, Vector: []float32{0, 1}, Text: "orthogonal"},
		{SourceID: "doc1", ChunkIndex: 2, Vector: []float32{1, 1}, Text: "diagonal"},
	})
	require.NoError(t, err)

	results, err := s.Search(ctx, []float32{1, 0}, 3)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "aligned", results[0].Text)
	assert.Equal(t, "diagonal", results[1].Text)
	assert.Equal(t, "orthogonal", results[2].Text)
	assert.GreaterOrEqual(t, results[0].Score, results[1].Score)
	assert.GreaterOrEqual(t, results[1].Score, results[2].Score)
}

func TestSearchEmptyIndexReturnsNoResults(t *testing.T) {
	s := NewStorage()
	results, err := s.Search(context.Background(), []float32{1, 0}, 10)
	require.NoError(t, err)
	assert.Empty(t, results, "empty index is not an error")
}

func TestSearchCapsAtK(t *testing.T) {
	s := NewStorage()
	ctx := context.Background()

	points := make([]vectorindex.Point, 20)
	for i := range points {
		points[i] = vectorindex.Point{SourceID: "doc1", ChunkIndex: i, Vector: []float32{1, float32(i)}}
	}
	require.NoError(t, s.Upsert(ctx, points))

	results, err := s.Search(ctx, []float32{1, 0}, 5)
	require.NoError(t, err)
	assert.Len(t, results, 5)
}
