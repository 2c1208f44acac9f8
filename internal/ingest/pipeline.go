// Package ingest implements the document ingestion state machine:
// Received -> Parsing -> Chunking -> Embedding -> Upserting -> Done, with a
// terminal Failed(reason) reachable from every non-terminal state.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"docchat-backend/internal/telemetry"
	"docchat-backend/internal/vectorindex"
	"docchat-backend/models"
)

// BatchEmbedder is the embedding-provider call contract: batched, with
// positional correspondence between inputs and vectors.
type BatchEmbedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// TextExtractor pulls raw text from a stored source file.
type TextExtractor interface {
	ExtractText(ctx context.Context, filePath string) (*ExtractionResult, error)
}

// Job is one unit of ingestion work dequeued from the queue.
type Job struct {
	SourceID         string
	StoragePath      string
	OriginalFilename string
	ReceivedAt       time.Time
}

// Config bounds the pipeline's chunking, batching and retry behavior.
type Config struct {
	ChunkSize        int
	ChunkOverlap     int
	BatchSize        int
	MaxRetryAttempts int
	RetryBackoffBase time.Duration
}

type Pipeline struct {
	extractor TextExtractor
	embedder  BatchEmbedder
	index     vectorindex.Index
	status    StatusRecorder
	cfg       Config
	metrics   *telemetry.Metrics
	logger    *slog.Logger
}

func NewPipeline(extractor TextExtractor, embedder BatchEmbedder, index vectorindex.Index, status StatusRecorder, cfg Config, metrics *telemetry.Metrics, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 16
	}
	if cfg.MaxRetryAttempts <= 0 {
		cfg.MaxRetryAttempts = 3
	}
	if cfg.RetryBackoffBase <= 0 {
		cfg.RetryBackoffBase = 500 * time.Millisecond
	}
	return &Pipeline{
		extractor: extractor,
		embedder:  embedder,
		index:     index,
		status:    status,
		cfg:       cfg,
		metrics:   metrics,
		logger:    logger,
	}
}

// Run executes the full state machine for one job. It is safe to run the
// same job twice: upserts are keyed by (sourceID, chunkIndex), so a queue
// redelivery overwrites instead of duplicating. No index write happens until
// every chunk of the job has been embedded, so a failed attempt leaves
// nothing half-committed.
func (p *Pipeline) Run(ctx context.Context, job Job) error {
	tracer := otel.Tracer("ingest-pipeline")
	ctx, span := tracer.Start(ctx, "ingest.run")
	defer span.End()
	span.SetAttributes(attribute.String("ingest.source_id", job.SourceID))

	start := time.Now()
	log := p.logger.With("source_id", job.SourceID, "file", job.OriginalFilename)

	p.recordStatus(ctx, func() error { return p.status.MarkProcessing(ctx, job.SourceID) }, log)

	// Parsing
	extraction, err := p.extractor.ExtractText(ctx, job.StoragePath)
	if err != nil {
		return p.fail(ctx, job, start, err, log)
	}
	log.Info("document parsed", "method", extraction.Method, "chars", len(extraction.Text))

	// Chunking
	chunks := SplitText(extraction.Text, p.cfg.ChunkSize, p.cfg.ChunkOverlap)
	span.SetAttributes(attribute.Int("ingest.chunks", len(chunks)))
	if len(chunks) == 0 {
		// Empty extracted text completes as Done with an empty chunk set.
		log.Info("document produced no chunks, completing")
		return p.complete(ctx, job, start, 0, extraction, log)
	}

	// Embedding: all batches must succeed before anything is written to the
	// index, so retry exhaustion leaves no partial state behind.
	vectors := make([][]float32, 0, len(chunks))
	for batchStart := 0; batchStart < len(chunks); batchStart += p.cfg.BatchSize {
		batchEnd := batchStart + p.cfg.BatchSize
		if batchEnd > len(chunks) {
			batchEnd = len(chunks)
		}
		batch := chunks[batchStart:batchEnd]

		var batchVectors [][]float32
		attempts := 0
		err := RetryWithBackoff(ctx, func() error {
			attempts++
			if attempts > 1 && p.metrics != nil {
				p.metrics.ProviderRetries.Add(ctx, 1)
			}
			var embedErr error
			batchVectors, embedErr = p.embedder.EmbedBatch(ctx, batch)
			return embedErr
		}, p.cfg.MaxRetryAttempts, p.cfg.RetryBackoffBase)
		if err != nil {
			return p.fail(ctx, job, start, &EmbeddingError{Batch: batchStart / p.cfg.BatchSize, Err: err}, log)
		}
		if len(batchVectors) != len(batch) {
			return p.fail(ctx, job, start, &EmbeddingError{
				Batch: batchStart / p.cfg.BatchSize,
				Err:   fmt.Errorf("got %d vectors for %d texts", len(batchVectors), len(batch)),
			}, log)
		}
		vectors = append(vectors, batchVectors...)
	}

	// Upserting
	points := make([]vectorindex.Point, len(chunks))
	for i, text := range chunks {
		points[i] = vectorindex.Point{
			SourceID:   job.SourceID,
			ChunkIndex: i,
			Vector:     vectors[i],
			Text:       text,
			Metadata: map[string]string{
				"filename": job.OriginalFilename,
			},
		}
	}
	err = RetryWithBackoff(ctx, func() error {
		return p.index.Upsert(ctx, points)
	}, p.cfg.MaxRetryAttempts, p.cfg.RetryBackoffBase)
	if err != nil {
		return p.fail(ctx, job, start, &IndexError{Err: err}, log)
	}

	return p.complete(ctx, job, start, len(chunks), extraction, log)
}

func (p *Pipeline) complete(ctx context.Context, job Job, start time.Time, chunkCount int, extraction *ExtractionResult, log *slog.Logger) error {
	meta := models.DocumentMetadata{
		Pages:            extraction.Pages,
		CharacterCount:   len(extraction.Text),
		ExtractionMethod: extraction.Method,
		ProcessingMS:     time.Since(start).Milliseconds(),
	}
	p.recordStatus(ctx, func() error {
		return p.status.MarkCompleted(ctx, job.SourceID, chunkCount, extraction.Text, meta)
	}, log)

	p.metrics.RecordIngest(ctx, time.Since(start).Seconds(), chunkCount, false)
	log.Info("document ingested", "chunks", chunkCount, "duration_ms", meta.ProcessingMS)
	return nil
}

func (p *Pipeline) fail(ctx context.Context, job Job, start time.Time, cause error, log *slog.Logger) error {
	p.recordStatus(ctx, func() error {
		return p.status.MarkFailed(ctx, job.SourceID, cause.Error())
	}, log)

	p.metrics.RecordIngest(ctx, time.Since(start).Seconds(), 0, true)
	log.Error("document ingestion failed", "error", cause, "terminal", IsTerminal(cause))
	return cause
}

func (p *Pipeline) recordStatus(ctx context.Context, fn func() error, log *slog.Logger) {
	if p.status == nil {
		return
	}
	if err := fn(); err != nil {
		// Status bookkeeping is best-effort; the index is the source of truth.
		log.Warn("failed to record job status", "error", err)
	}
}
