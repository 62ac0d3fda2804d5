package vectorindex

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureCollectionIsIdempotent(t *testing.T) {
	idx := New()

	idx.EnsureCollection("nodes")
	require.NoError(t, idx.Upsert("nodes", "a", []float32{1, 0}, nil))

	idx.EnsureCollection("nodes")

	count, err := idx.Count("nodes")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestQueryUnknownCollection(t *testing.T) {
	idx := New()

	_, err := idx.Query("missing", []float32{1, 0}, 5, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCollectionNotFound)
}

func TestUpsertDimensionMismatch(t *testing.T) {
	idx := New()
	idx.EnsureCollection("nodes")

	require.NoError(t, idx.Upsert("nodes", "a", []float32{1, 0, 0}, nil))

	err := idx.Upsert("nodes", "b", []float32{1, 0}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	_, err = idx.Query("nodes", []float32{1, 0}, 5, nil)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestQueryOrdersBySimilarity(t *testing.T) {
	idx := New()
	idx.EnsureCollection("nodes")

	require.NoError(t, idx.Upsert("nodes", "orthogonal", []float32{0, 1}, nil))
	require.NoError(t, idx.Upsert("nodes", "exact", []float32{1, 0}, nil))
	require.NoError(t, idx.Upsert("nodes", "close", []float32{0.9, 0.1}, nil))

	results, err := idx.Query("nodes", []float32{1, 0}, 10, nil)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, "exact", results[0].ID)
	assert.Equal(t, "close", results[1].ID)
	assert.Equal(t, "orthogonal", results[2].ID)

	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].Similarity, results[i].Similarity)
	}

	assert.InDelta(t, 1.0, results[0].Similarity, 1e-6)
	assert.InDelta(t, 0.0, results[2].Similarity, 1e-6)
}

func TestQueryTiesBreakByInsertionOrder(t *testing.T) {
	idx := New()
	idx.EnsureCollection("nodes")

	require.NoError(t, idx.Upsert("nodes", "first", []float32{1, 0}, nil))
	require.NoError(t, idx.Upsert("nodes", "second", []float32{2, 0}, nil))

	results, err := idx.Query("nodes", []float32{1, 0}, 10, nil)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "first", results[0].ID)
	assert.Equal(t, "second", results[1].ID)
}

func TestQueryRespectsLimitAndFilter(t *testing.T) {
	idx := New()
	idx.EnsureCollection("nodes")

	require.NoError(t, idx.Upsert("nodes", "a", []float32{1, 0}, map[string]any{"category": "model"}))
	require.NoError(t, idx.Upsert("nodes", "b", []float32{1, 0.1}, map[string]any{"category": "memory"}))
	require.NoError(t, idx.Upsert("nodes", "c", []float32{1, 0.2}, map[string]any{"category": "model"}))

	results, err := idx.Query("nodes", []float32{1, 0}, 1, nil)
	require.NoError(t, err)
	assert.Len(t, results, 1)

	results, err = idx.Query("nodes", []float32{1, 0}, 10, map[string]any{"category": "model"})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "a", results[0].ID)
	assert.Equal(t, "c", results[1].ID)
}

func TestQueryEmptyCollection(t *testing.T) {
	idx := New()
	idx.EnsureCollection("templates")

	results, err := idx.Query("templates", []float32{1, 0}, 5, nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestUpsertOverwritesExisting(t *testing.T) {
	idx := New()
	idx.EnsureCollection("nodes")

	require.NoError(t, idx.Upsert("nodes", "a", []float32{1, 0}, map[string]any{"v": 1}))
	require.NoError(t, idx.Upsert("nodes", "a", []float32{0, 1}, map[string]any{"v": 2}))

	count, err := idx.Count("nodes")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	results, err := idx.Query("nodes", []float32{0, 1}, 1, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 2, results[0].Metadata["v"])
}

func TestDelete(t *testing.T) {
	idx := New()
	idx.EnsureCollection("nodes")

	require.NoError(t, idx.Upsert("nodes", "a", []float32{1, 0}, nil))
	require.NoError(t, idx.Delete("nodes", "a"))
	require.NoError(t, idx.Delete("nodes", "a")) // unknown id is a no-op

	count, err := idx.Count("nodes")
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestUpsertBatch(t *testing.T) {
	idx := New()
	idx.EnsureCollection("nodes")

	err := idx.UpsertBatch("nodes", []Entry{
		{ID: "a", Vector: []float32{1, 0}},
		{ID: "b", Vector: []float32{0, 1}},
	})
	require.NoError(t, err)

	count, err := idx.Count("nodes")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}
