package chat

import (
	"context"
	"fmt"

	"docchat-backend/internal/vectorindex"
)

// QueryEmbedder embeds a single retrieval query. Satisfied by ai.Embedder.
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Retriever turns a standalone query into the k most similar indexed chunks.
type Retriever struct {
	embedder QueryEmbedder
	index    vectorindex.Index
	k        int
}

func NewRetriever(embedder QueryEmbedder, index vectorindex.Index, k int) *Retriever {
	if k <= 0 {
		k = 10
	}
	return &Retriever{embedder: embedder, index: index, k: k}
}

// Retrieve embeds the query and searches the index. An empty result set is
// not an error; the generator answers it with the refusal message.
func (r *Retriever) Retrieve(ctx context.Context, query string) ([]vectorindex.Result, error) {
	vector, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	results, err := r.index.Search(ctx, vector, r.k)
	if err != nil {
		return nil, fmt.Errorf("search index: %w", err)
	}
	return results, nil
}
