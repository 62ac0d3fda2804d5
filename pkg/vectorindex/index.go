package vectorindex

import (
	"math"
	"sort"
	"sync"
)

// Entry is one stored record: an opaque id, its vector, and a metadata bag.
type Entry struct {
	ID       string
	Vector   []float32
	Metadata map[string]any
}

// Result is one query hit. Similarity is cosine-derived, clamped to [0,1],
// and monotonic with semantic relevance for the embedding space in use.
type Result struct {
	ID         string
	Similarity float64
	Metadata   map[string]any
}

// Index stores vectors in named collections and answers nearest-neighbor
// queries by exact cosine scan. Catalog collections run to low thousands of
// entries, well inside the latency envelope for brute force; an ANN structure
// only pays for itself past that.
//
// Safe for concurrent reads and additive writes.
type Index struct {
	mu          sync.RWMutex
	collections map[string]*collection
}

type collection struct {
	dimensions int
	entries    map[string]*Entry
	order      []string // Insertion order, for deterministic tie-breaks
}

// New creates an empty index.
func New() *Index {
	return &Index{collections: make(map[string]*collection)}
}

// EnsureCollection creates the named collection if it does not exist.
// Idempotent: a second call with the same name is a no-op.
func (idx *Index) EnsureCollection(name string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if _, exists := idx.collections[name]; !exists {
		idx.collections[name] = &collection{entries: make(map[string]*Entry)}
	}
}

// Upsert stores or overwrites one entry. The first vector written to a
// collection fixes its dimension; later vectors must match it.
func (idx *Index) Upsert(collectionName, id string, vector []float32, metadata map[string]any) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	return idx.upsertLocked(collectionName, id, vector, metadata)
}

// UpsertBatch stores all entries atomically with respect to concurrent queries.
func (idx *Index) UpsertBatch(collectionName string, entries []Entry) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	for _, entry := range entries {
		if err := idx.upsertLocked(collectionName, entry.ID, entry.Vector, entry.Metadata); err != nil {
			return err
		}
	}

	return nil
}

func (idx *Index) upsertLocked(collectionName, id string, vector []float32, metadata map[string]any) error {
	coll, exists := idx.collections[collectionName]
	if !exists {
		return &CollectionError{Op: "Upsert", Collection: collectionName, Err: ErrCollectionNotFound}
	}

	if len(vector) == 0 {
		return &CollectionError{Op: "Upsert", Collection: collectionName, Err: ErrEmptyVector}
	}

	if coll.dimensions == 0 {
		coll.dimensions = len(vector)
	} else if len(vector) != coll.dimensions {
		return &CollectionError{Op: "Upsert", Collection: collectionName, Err: ErrDimensionMismatch}
	}

	if _, known := coll.entries[id]; !known {
		coll.order = append(coll.order, id)
	}

	coll.entries[id] = &Entry{ID: id, Vector: vector, Metadata: metadata}

	return nil
}

// Query returns up to k entries ordered by descending similarity to the query
// vector, ties broken by insertion order. A filter restricts results to
// entries whose metadata matches every filter key exactly. An empty collection
// yields an empty result, not an error.
func (idx *Index) Query(collectionName string, vector []float32, k int, filter map[string]any) ([]Result, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	coll, exists := idx.collections[collectionName]
	if !exists {
		return nil, &CollectionError{Op: "Query", Collection: collectionName, Err: ErrCollectionNotFound}
	}

	if coll.dimensions != 0 && len(vector) != coll.dimensions {
		return nil, &CollectionError{Op: "Query", Collection: collectionName, Err: ErrDimensionMismatch}
	}

	results := make([]Result, 0, len(coll.order))

	for _, id := range coll.order {
		entry := coll.entries[id]

		if !matchesFilter(entry.Metadata, filter) {
			continue
		}

		results = append(results, Result{
			ID:         id,
			Similarity: cosineSimilarity(vector, entry.Vector),
			Metadata:   entry.Metadata,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})

	if k >= 0 && len(results) > k {
		results = results[:k]
	}

	return results, nil
}

// Delete removes one entry. Removing an unknown id is a no-op.
func (idx *Index) Delete(collectionName, id string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	coll, exists := idx.collections[collectionName]
	if !exists {
		return &CollectionError{Op: "Delete", Collection: collectionName, Err: ErrCollectionNotFound}
	}

	if _, known := coll.entries[id]; !known {
		return nil
	}

	delete(coll.entries, id)

	for i, existing := range coll.order {
		if existing == id {
			coll.order = append(coll.order[:i], coll.order[i+1:]...)

			break
		}
	}

	return nil
}

// Count returns the number of entries in a collection.
func (idx *Index) Count(collectionName string) (int, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	coll, exists := idx.collections[collectionName]
	if !exists {
		return 0, &CollectionError{Op: "Count", Collection: collectionName, Err: ErrCollectionNotFound}
	}

	return len(coll.entries), nil
}

func matchesFilter(metadata, filter map[string]any) bool {
	for key, want := range filter {
		if metadata[key] != want {
			return false
		}
	}

	return true
}

// cosineSimilarity maps cosine distance into [0,1], where 1 is identical
// direction. Zero vectors score 0.
func cosineSimilarity(a, b []float32) float64 {
	var dot, normA, normB float64

	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	// 1 - cosine distance, clamped: negative cosine carries no relevance
	// signal for the embedding spaces in use.
	cosine := dot / (math.Sqrt(normA) * math.Sqrt(normB))

	return math.Max(0, math.Min(1, cosine))
}
