package ai

import (
	"context"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// Embedder wraps the Google Generative AI embedding model
// (text-embedding-004 by default). The same embedder instance is shared by
// ingestion and query-time retrieval so the deployed dimension always
// matches.
type Embedder struct {
	client    *genai.Client
	model     string
	dimension int
}

func NewEmbedder(ctx context.Context, apiKey, model string, dimension int) (*Embedder, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("missing GEMINI_API_KEY for embeddings")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	return &Embedder{client: client, model: model, dimension: dimension}, nil
}

// EmbedBatch embeds texts in a single provider request. The response
// preserves positional correspondence: vector i belongs to texts[i].
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	model := e.client.EmbeddingModel(e.model)
	batch := model.NewBatch()
	for _, t := range texts {
		batch.AddContent(genai.Text(t))
	}

	resp, err := model.BatchEmbedContents(ctx, batch)
	if err != nil {
		return nil, err
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embedding count %d does not match input count %d", len(resp.Embeddings), len(texts))
	}

	vectors := make([][]float32, len(texts))
	for i, emb := range resp.Embeddings {
		if emb == nil || len(emb.Values) == 0 {
			return nil, fmt.Errorf("no embedding returned for input %d", i)
		}
		if e.dimension > 0 && len(emb.Values) != e.dimension {
			return nil, fmt.Errorf("embedding dimension %d does not match configured dimension %d", len(emb.Values), e.dimension)
		}
		vectors[i] = emb.Values
	}
	return vectors, nil
}

// EmbedQuery embeds a single standalone query with the same model used
// during ingestion.
func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (e *Embedder) Dimension() int {
	return e.dimension
}

func (e *Embedder) Close() error {
	if e.client != nil {
		return e.client.Close()
	}
	return nil
}
