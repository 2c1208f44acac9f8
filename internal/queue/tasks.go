// Package queue defines the durable task types carried over asynq and the
// worker-side handlers that execute them.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"docchat-backend/internal/ingest"
)

const (
	// TaskIngestDocument is the task type for asynchronous document ingestion.
	TaskIngestDocument = "document:ingest"

	// QueueCritical carries ingestion jobs; it drains ahead of default work.
	QueueCritical = "critical"
)

// IngestPayload is the wire form of one ingestion job.
type IngestPayload struct {
	SourceID    string    `json:"source_id"`
	Filename    string    `json:"filename"`
	StoragePath string    `json:"storage_path"`
	ReceivedAt  time.Time `json:"received_at"`
}

// NewDocumentIngestTask builds an asynq task for the given upload. maxRetry
// bounds queue-level redeliveries; exhausting it moves the task to the
// archived (dead-letter) set.
func NewDocumentIngestTask(sourceID, filename, storagePath string, maxRetry int) (*asynq.Task, error) {
	payload, err := json.Marshal(IngestPayload{
		SourceID:    sourceID,
		Filename:    filename,
		StoragePath: storagePath,
		ReceivedAt:  time.Now(),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal ingest payload: %w", err)
	}
	return asynq.NewTask(TaskIngestDocument, payload,
		asynq.MaxRetry(maxRetry),
		asynq.Timeout(10*time.Minute),
		asynq.Queue(QueueCritical),
	), nil
}

// IngestTaskHandler runs the ingestion pipeline for dequeued tasks.
type IngestTaskHandler struct {
	pipeline *ingest.Pipeline
}

func NewIngestTaskHandler(pipeline *ingest.Pipeline) *IngestTaskHandler {
	return &IngestTaskHandler{pipeline: pipeline}
}

// ProcessDocument handles one document:ingest task. Terminal errors are
// wrapped with asynq.SkipRetry so the task is not redelivered; transient
// errors propagate so asynq retries and eventually archives the task.
func (h *IngestTaskHandler) ProcessDocument(ctx context.Context, t *asynq.Task) error {
	var payload IngestPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal ingest payload: %v: %w", err, asynq.SkipRetry)
	}

	err := h.pipeline.Run(ctx, ingest.Job{
		SourceID:         payload.SourceID,
		StoragePath:      payload.StoragePath,
		OriginalFilename: payload.Filename,
		ReceivedAt:       payload.ReceivedAt,
	})
	if err != nil && ingest.IsTerminal(err) {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	return err
}
