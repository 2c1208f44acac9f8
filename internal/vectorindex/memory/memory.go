// Package memory is an in-process vector store with cosine similarity,
// used in tests and single-node development setups.
package memory

import (
	"context"
	"math"
	"sort"
	"sync"

	"docchat-backend/internal/vectorindex"
)

type key struct {
	sourceID   string
	chunkIndex int
}

type entry struct {
	vector []float32
	text   string
	meta   map[string]string
}

type Storage struct {
	mu     sync.RWMutex
	points map[key]entry
}

func NewStorage() *Storage {
	return &Storage{points: make(map[key]entry)}
}

func (s *Storage) Upsert(ctx context.Context, points []vectorindex.Point) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range points {
		s.points[key{p.SourceID, p.ChunkIndex}] = entry{vector: p.Vector, text: p.Text, meta: p.Metadata}
	}
	return nil
}

func (s *Storage) Search(ctx context.Context, vector []float32, k int) ([]vectorindex.Result, error) {
	if k <= 0 {
		k = 10
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]vectorindex.Result, 0, len(s.points))
	for kk, e := range s.points {
		results = append(results, vectorindex.Result{
			SourceID:   kk.sourceID,
			ChunkIndex: kk.chunkIndex,
			Text:       e.text,
			Score:      cosine(vector, e.vector),
		})
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		// Stable tie-break so search order is deterministic
		if results[i].SourceID != results[j].SourceID {
			return results[i].SourceID < results[j].SourceID
		}
		return results[i].ChunkIndex < results[j].ChunkIndex
	})
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// Len reports the number of stored points.
func (s *Storage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.points)
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
