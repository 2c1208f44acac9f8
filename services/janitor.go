package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/hibiken/asynq"

	"docchat-backend/internal/chat"
	"docchat-backend/internal/ingest"
	"docchat-backend/internal/logger"
	internalqueue "docchat-backend/internal/queue"
)

// Janitor runs periodic hygiene work: it reflects dead-lettered ingestion
// tasks into the document status records and expires idle chat sessions.
type Janitor struct {
	scheduler      *gocron.Scheduler
	inspector      *asynq.Inspector
	status         ingest.StatusRecorder
	sessions       *chat.SessionStore
	sessionTimeout time.Duration
}

func NewJanitor(redisOpt asynq.RedisClientOpt, status ingest.StatusRecorder, sessions *chat.SessionStore, sessionTimeout time.Duration) *Janitor {
	s := gocron.NewScheduler(time.UTC)
	s.TagsUnique()

	return &Janitor{
		scheduler:      s,
		inspector:      asynq.NewInspector(redisOpt),
		status:         status,
		sessions:       sessions,
		sessionTimeout: sessionTimeout,
	}
}

// Start registers the sweep jobs and runs the scheduler in the background.
// A nil status recorder skips the dead-letter sweep (the worker owns it);
// a nil session store skips session expiry (sessions live in the API server).
func (j *Janitor) Start() error {
	if j.status != nil {
		if _, err := j.scheduler.Every(15 * time.Minute).Tag("dead-letter-sweep").Do(func() {
			if err := j.SweepDeadLetters(context.Background()); err != nil {
				logger.Error("dead-letter sweep failed", "error", err)
			}
		}); err != nil {
			return fmt.Errorf("schedule dead-letter sweep: %w", err)
		}
	}

	if j.sessions != nil {
		if _, err := j.scheduler.Every(10 * time.Minute).Tag("session-expiry").Do(func() {
			if removed := j.sessions.ExpireIdle(j.sessionTimeout); removed > 0 {
				logger.Info("expired idle chat sessions", "count", removed)
			}
		}); err != nil {
			return fmt.Errorf("schedule session expiry: %w", err)
		}
	}

	j.scheduler.StartAsync()
	return nil
}

func (j *Janitor) Stop() {
	j.scheduler.Stop()
	j.inspector.Close()
}

// SweepDeadLetters marks the document of every archived ingestion task as
// failed, then deletes the task. asynq archives a task once its retries are
// exhausted; without the sweep those documents would sit in "processing"
// forever.
func (j *Janitor) SweepDeadLetters(ctx context.Context) error {
	tasks, err := j.inspector.ListArchivedTasks(internalqueue.QueueCritical, asynq.PageSize(100))
	if err != nil {
		return fmt.Errorf("list archived tasks: %w", err)
	}

	for _, task := range tasks {
		if task.Type != internalqueue.TaskIngestDocument {
			continue
		}

		var payload internalqueue.IngestPayload
		if err := json.Unmarshal(task.Payload, &payload); err != nil {
			logger.Warn("dead-lettered task has malformed payload, deleting", "task_id", task.ID)
			if err := j.inspector.DeleteTask(internalqueue.QueueCritical, task.ID); err != nil {
				logger.Warn("failed to delete archived task", "task_id", task.ID, "error", err)
			}
			continue
		}

		reason := task.LastErr
		if reason == "" {
			reason = "ingestion retries exhausted"
		}
		if err := j.status.MarkFailed(ctx, payload.SourceID, reason); err != nil {
			logger.Warn("failed to mark dead-lettered document", "source_id", payload.SourceID, "error", err)
			continue
		}
		if err := j.inspector.DeleteTask(internalqueue.QueueCritical, task.ID); err != nil {
			logger.Warn("failed to delete archived task", "task_id", task.ID, "error", err)
			continue
		}
		logger.Info("dead-lettered ingestion job marked failed", "source_id", payload.SourceID, "reason", reason)
	}
	return nil
}
