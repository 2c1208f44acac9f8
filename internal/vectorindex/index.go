// Package vectorindex defines the contract against the external vector
// index: idempotent upsert keyed by (source id, chunk index) and
// k-nearest-neighbor search ordered by descending score.
package vectorindex

import "context"

// Point is one chunk written to the index. Upserting the same
// (SourceID, ChunkIndex) twice overwrites; it never duplicates.
type Point struct {
	SourceID   string
	ChunkIndex int
	Vector     []float32
	Text       string
	Metadata   map[string]string
}

// Result is one similarity-search hit.
type Result struct {
	SourceID   string
	ChunkIndex int
	Text       string
	Score      float64
}

// Index is the vector index call contract. Implementations must tolerate
// concurrent upserts: disjoint keys never conflict, same-key writes are
// last-write-wins.
type Index interface {
	Upsert(ctx context.Context, points []Point) error
	Search(ctx context.Context, vector []float32, k int) ([]Result, error)
}
