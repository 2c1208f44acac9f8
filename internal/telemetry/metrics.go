package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all application metrics
type Metrics struct {
	RequestCounter   metric.Int64Counter
	RequestDuration  metric.Float64Histogram
	IngestDuration   metric.Float64Histogram
	ChunksIndexed    metric.Int64Counter
	JobsFailed       metric.Int64Counter
	ChatTurns        metric.Int64Counter
	RetrievalHits    metric.Int64Counter
	RefusalsReturned metric.Int64Counter
	ProviderRetries  metric.Int64Counter
}

// InitMetrics initializes all application metrics
func InitMetrics() (*Metrics, error) {
	meter := otel.Meter("docchat-backend")

	requestCounter, err := meter.Int64Counter(
		"http.requests.total",
		metric.WithDescription("Total HTTP requests"),
	)
	if err != nil {
		return nil, err
	}

	requestDuration, err := meter.Float64Histogram(
		"http.request.duration",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	ingestDuration, err := meter.Float64Histogram(
		"ingest.job.duration",
		metric.WithDescription("Document ingestion duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	chunksIndexed, err := meter.Int64Counter(
		"ingest.chunks.indexed",
		metric.WithDescription("Total chunks upserted into the vector index"),
	)
	if err != nil {
		return nil, err
	}

	jobsFailed, err := meter.Int64Counter(
		"ingest.jobs.failed",
		metric.WithDescription("Total ingestion jobs that reached a failed state"),
	)
	if err != nil {
		return nil, err
	}

	chatTurns, err := meter.Int64Counter(
		"chat.turns.total",
		metric.WithDescription("Total completed conversational turns"),
	)
	if err != nil {
		return nil, err
	}

	retrievalHits, err := meter.Int64Counter(
		"chat.retrieval.hits",
		metric.WithDescription("Total chunks returned by similarity search"),
	)
	if err != nil {
		return nil, err
	}

	refusalsReturned, err := meter.Int64Counter(
		"chat.refusals.total",
		metric.WithDescription("Turns answered with the refusal string"),
	)
	if err != nil {
		return nil, err
	}

	providerRetries, err := meter.Int64Counter(
		"provider.retries.total",
		metric.WithDescription("Retried provider calls during ingestion"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		RequestCounter:   requestCounter,
		RequestDuration:  requestDuration,
		IngestDuration:   ingestDuration,
		ChunksIndexed:    chunksIndexed,
		JobsFailed:       jobsFailed,
		ChatTurns:        chatTurns,
		RetrievalHits:    retrievalHits,
		RefusalsReturned: refusalsReturned,
		ProviderRetries:  providerRetries,
	}, nil
}

// RecordRequest records metrics for a finished HTTP request
func (m *Metrics) RecordRequest(ctx context.Context, method, path, status string, seconds float64) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("http.method", method),
		attribute.String("http.route", path),
		attribute.String("status", status),
	)
	m.RequestCounter.Add(ctx, 1, attrs)
	m.RequestDuration.Record(ctx, seconds, attrs)
}

// RecordIngest records metrics for a finished ingestion job
func (m *Metrics) RecordIngest(ctx context.Context, seconds float64, chunks int, failed bool) {
	if m == nil {
		return
	}
	m.IngestDuration.Record(ctx, seconds)
	if failed {
		m.JobsFailed.Add(ctx, 1)
		return
	}
	m.ChunksIndexed.Add(ctx, int64(chunks), metric.WithAttributes(attribute.Bool("committed", true)))
}
