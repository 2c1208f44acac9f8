package ingest

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docchat-backend/internal/vectorindex/memory"
	"docchat-backend/models"
)

type fakeExtractor struct {
	text string
	err  error
}

func (f *fakeExtractor) ExtractText(ctx context.Context, filePath string) (*ExtractionResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &ExtractionResult{Text: f.text, Pages: 1, Method: "fake"}, nil
}

type fakeEmbedder struct {
	failUntil int // fail the first N calls
	failWith  error
	calls     int
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.calls <= f.failUntil {
		err := f.failWith
		if err == nil {
			err = errors.New("provider unavailable")
		}
		return nil, err
	}
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = []float32{float32(len(text)), 1, 0}
	}
	return vectors, nil
}

type fakeStatus struct {
	mu          sync.Mutex
	transitions []string
	chunkCount  int
	failReason  string
}

func (f *fakeStatus) MarkProcessing(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transitions = append(f.transitions, models.StatusProcessing)
	return nil
}

func (f *fakeStatus) MarkCompleted(ctx context.Context, id string, chunkCount int, text string, meta models.DocumentMetadata) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transitions = append(f.transitions, models.StatusCompleted)
	f.chunkCount = chunkCount
	return nil
}

func (f *fakeStatus) MarkFailed(ctx context.Context, id, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transitions = append(f.transitions, models.StatusFailed)
	f.failReason = reason
	return nil
}

func testConfig() Config {
	return Config{
		ChunkSize:        20,
		ChunkOverlap:     5,
		BatchSize:        4,
		MaxRetryAttempts: 3,
		RetryBackoffBase: time.Millisecond,
	}
}

func testJob() Job {
	return Job{
		SourceID:         "doc-1",
		StoragePath:      "/tmp/doc-1.pdf",
		OriginalFilename: "doc-1.pdf",
		ReceivedAt:       time.Now(),
	}
}

func TestPipelineSuccess(t *testing.T) {
	text := strings.Repeat("chunkable text body ", 10)
	index := memory.NewStorage()
	status := &fakeStatus{}
	p := NewPipeline(&fakeExtractor{text: text}, &fakeEmbedder{}, index, status, testConfig(), nil, nil)

	err := p.Run(context.Background(), testJob())
	require.NoError(t, err)

	want := ChunkCount(len(text), 20, 5)
	assert.Equal(t, want, index.Len())
	assert.Equal(t, []string{models.StatusProcessing, models.StatusCompleted}, status.transitions)
	assert.Equal(t, want, status.chunkCount)
}

func TestPipelineRedeliveryIsIdempotent(t *testing.T) {
	text := strings.Repeat("x", 20*100) // plenty of chunks
	index := memory.NewStorage()
	status := &fakeStatus{}
	p := NewPipeline(&fakeExtractor{text: text}, &fakeEmbedder{}, index, status, testConfig(), nil, nil)

	require.NoError(t, p.Run(context.Background(), testJob()))
	first := index.Len()
	require.NoError(t, p.Run(context.Background(), testJob()))

	assert.Equal(t, first, index.Len(), "a redelivered job must overwrite, not duplicate")
}

func TestPipelineParseFailureIsTerminal(t *testing.T) {
	index := memory.NewStorage()
	status := &fakeStatus{}
	parseErr := &ParseError{Path: "/tmp/doc-1.pdf", Err: errors.New("not a PDF file")}
	p := NewPipeline(&fakeExtractor{err: parseErr}, &fakeEmbedder{}, index, status, testConfig(), nil, nil)

	err := p.Run(context.Background(), testJob())
	require.Error(t, err)
	assert.True(t, IsTerminal(err))
	assert.Equal(t, 0, index.Len())
	assert.Equal(t, []string{models.StatusProcessing, models.StatusFailed}, status.transitions)
	assert.Contains(t, status.failReason, "not a PDF file")
}

func TestPipelineEmbeddingExhaustionLeavesNoPartialState(t *testing.T) {
	text := strings.Repeat("some document text ", 20)
	index := memory.NewStorage()
	status := &fakeStatus{}
	embedder := &fakeEmbedder{failUntil: 1000}
	p := NewPipeline(&fakeExtractor{text: text}, embedder, index, status, testConfig(), nil, nil)

	err := p.Run(context.Background(), testJob())
	require.Error(t, err)
	assert.False(t, IsTerminal(err), "embedding exhaustion is retriable, not terminal")

	var embedErr *EmbeddingError
	assert.ErrorAs(t, err, &embedErr)
	assert.Equal(t, 0, index.Len(), "nothing may be written before every batch embeds")
	assert.Equal(t, []string{models.StatusProcessing, models.StatusFailed}, status.transitions)
}

func TestPipelineEmbeddingRecoversWithinRetryLimit(t *testing.T) {
	text := strings.Repeat("some document text ", 20)
	index := memory.NewStorage()
	status := &fakeStatus{}
	embedder := &fakeEmbedder{failUntil: 2} // succeeds on the third attempt
	p := NewPipeline(&fakeExtractor{text: text}, embedder, index, status, testConfig(), nil, nil)

	err := p.Run(context.Background(), testJob())
	require.NoError(t, err)
	assert.Equal(t, ChunkCount(len(text), 20, 5), index.Len())
}

func TestPipelineEmptyTextCompletesWithZeroChunks(t *testing.T) {
	index := memory.NewStorage()
	status := &fakeStatus{}
	p := NewPipeline(&fakeExtractor{text: ""}, &fakeEmbedder{}, index, status, testConfig(), nil, nil)

	err := p.Run(context.Background(), testJob())
	require.NoError(t, err)
	assert.Equal(t, 0, index.Len())
	assert.Equal(t, []string{models.StatusProcessing, models.StatusCompleted}, status.transitions)
	assert.Equal(t, 0, status.chunkCount)
}
