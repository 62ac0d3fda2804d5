// Package vectorindex provides an in-process vector store with named
// collections and cosine similarity search.
package vectorindex

import (
	"errors"
	"fmt"
)

var (
	// ErrCollectionNotFound indicates a collection was queried before
	// EnsureCollection was called for it.
	ErrCollectionNotFound = errors.New("collection not found")

	// ErrDimensionMismatch indicates a vector of the wrong length was
	// supplied for a collection.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrEmptyVector indicates an empty vector was supplied.
	ErrEmptyVector = errors.New("empty vector")
)

// CollectionError wraps index errors with the collection and operation.
type CollectionError struct {
	Op         string
	Collection string
	Err        error
}

func (e *CollectionError) Error() string {
	return fmt.Sprintf("%s failed for collection %s: %v", e.Op, e.Collection, e.Err)
}

func (e *CollectionError) Unwrap() error {
	return e.Err
}

func (e *CollectionError) Is(target error) bool {
	return errors.Is(e.Err, target)
}
