// Package qdrant is a minimal REST client to Qdrant implementing the
// vectorindex.Index contract. It assumes cosine distance and creates the
// collection if missing.
package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"docchat-backend/internal/vectorindex"
)

// Qdrant point ids must be UUIDs or unsigned ints, so the stable
// (sourceID, chunkIndex) identity is mapped to a deterministic SHA1 UUID.
// Re-upserting the same chunk therefore always hits the same point.
var pointNamespace = uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")

type Storage struct {
	url        string
	apiKey     string
	collection string
	dimension  int
	client     *http.Client
}

type Config struct {
	URL        string
	APIKey     string
	Collection string
	Dimension  int
	Timeout    time.Duration
}

func NewStorage(cfg Config) (*Storage, error) {
	if cfg.Dimension <= 0 {
		return nil, errors.New("invalid dimension")
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	s := &Storage{
		url:        cfg.URL,
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		dimension:  cfg.Dimension,
		client:     &http.Client{Timeout: timeout},
	}
	if err := s.ensureCollection(context.Background()); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Storage) ensureCollection(ctx context.Context) error {
	// Qdrant returns 200 OK if the collection exists with the same schema
	body := map[string]any{
		"vectors": map[string]any{
			"size":     s.dimension,
			"distance": "Cosine",
		},
	}
	return s.putJSON(ctx, fmt.Sprintf("%s/collections/%s", s.url, s.collection), body)
}

func PointID(sourceID string, chunkIndex int) string {
	return uuid.NewSHA1(pointNamespace, []byte(fmt.Sprintf("%s:%d", sourceID, chunkIndex))).String()
}

func (s *Storage) Upsert(ctx context.Context, points []vectorindex.Point) error {
	if len(points) == 0 {
		return nil
	}
	body := make([]map[string]any, len(points))
	for i, p := range points {
		if len(p.Vector) != s.dimension {
			return fmt.Errorf("vector dimension %d does not match collection dimension %d", len(p.Vector), s.dimension)
		}
		payload := map[string]any{
			"source_id":   p.SourceID,
			"chunk_index": p.ChunkIndex,
			"text":        p.Text,
		}
		for k, v := range p.Metadata {
			payload["meta_"+k] = v
		}
		body[i] = map[string]any{
			"id":      PointID(p.SourceID, p.ChunkIndex),
			"vector":  p.Vector,
			"payload": payload,
		}
	}
	req := map[string]any{"points": body}
	return s.putJSON(ctx, fmt.Sprintf("%s/collections/%s/points?wait=true", s.url, s.collection), req)
}

func (s *Storage) Search(ctx context.Context, vector []float32, k int) ([]vectorindex.Result, error) {
	if k <= 0 {
		k = 10
	}
	req := map[string]any{
		"vector":       vector,
		"limit":        k,
		"with_payload": true,
	}
	var resp struct {
		Result []struct {
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	if err := s.postJSON(ctx, fmt.Sprintf("%s/collections/%s/points/search", s.url, s.collection), req, &resp); err != nil {
		return nil, err
	}
	results := make([]vectorindex.Result, 0, len(resp.Result))
	for _, r := range resp.Result {
		res := vectorindex.Result{Score: r.Score}
		if v, ok := r.Payload["source_id"].(string); ok {
			res.SourceID = v
		}
		if v, ok := r.Payload["chunk_index"].(float64); ok {
			res.ChunkIndex = int(v)
		}
		if v, ok := r.Payload["text"].(string); ok {
			res.Text = v
		}
		results = append(results, res)
	}
	return results, nil
}

// DeleteSource removes every point of a source. Called when a document is
// deleted.
func (s *Storage) DeleteSource(ctx context.Context, sourceID string) error {
	req := map[string]any{
		"filter": map[string]any{
			"must": []map[string]any{
				{"key": "source_id", "match": map[string]any{"value": sourceID}},
			},
		},
	}
	return s.postJSON(ctx, fmt.Sprintf("%s/collections/%s/points/delete?wait=true", s.url, s.collection), req, nil)
}

func (s *Storage) putJSON(ctx context.Context, url string, body any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("qdrant PUT %s failed: %s", url, resp.Status)
	}
	return nil
}

func (s *Storage) postJSON(ctx context.Context, url string, body any, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("qdrant POST %s failed: %s", url, resp.Status)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
