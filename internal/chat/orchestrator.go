package chat

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"docchat-backend/internal/telemetry"
	"docchat-backend/models"
)

// Answer is the result of one completed conversational turn.
type Answer struct {
	Text    string
	Sources []models.SourceRef
}

// Orchestrator runs the full turn: reformulate the message against the
// session history, retrieve similar chunks, generate a grounded answer, then
// commit the exchange to history. The session lock is held for the whole
// turn, so concurrent sends to one session execute one after another.
type Orchestrator struct {
	sessions      *SessionStore
	reformulator  *Reformulator
	retriever     *Retriever
	generator     *Generator
	archive       TranscriptArchiver
	metrics       *telemetry.Metrics
	logger        *slog.Logger
	historyWindow int
}

func NewOrchestrator(sessions *SessionStore, reformulator *Reformulator, retriever *Retriever, generator *Generator, archive TranscriptArchiver, metrics *telemetry.Metrics, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		sessions:      sessions,
		reformulator:  reformulator,
		retriever:     retriever,
		generator:     generator,
		archive:       archive,
		metrics:       metrics,
		logger:        logger,
		historyWindow: 10,
	}
}

// WithHistoryWindow bounds how many prior exchanges are sent to the provider
// per turn. The full history stays in the session; only the prompt is capped.
func (o *Orchestrator) WithHistoryWindow(exchanges int) *Orchestrator {
	if exchanges > 0 {
		o.historyWindow = exchanges
	}
	return o
}

func (o *Orchestrator) windowed(history []models.ChatTurn) []models.ChatTurn {
	max := o.historyWindow * 2 // two turns per exchange
	if len(history) <= max {
		return history
	}
	return history[len(history)-max:]
}

// Respond executes one turn for the session. History is appended only after
// generation succeeds; a failed turn leaves the session exactly as it was,
// so the client can simply resend.
func (o *Orchestrator) Respond(ctx context.Context, sessionID, message string) (*Answer, error) {
	tracer := otel.Tracer("chat-orchestrator")
	ctx, span := tracer.Start(ctx, "chat.respond")
	defer span.End()
	span.SetAttributes(attribute.String("chat.session_id", sessionID))

	var answer *Answer
	err := o.sessions.Do(sessionID, func(full []models.ChatTurn, appendExchange func(user, assistant string)) error {
		history := o.windowed(full)
		query := o.reformulator.Reformulate(ctx, history, message)

		retrieved, err := o.retriever.Retrieve(ctx, query)
		if err != nil {
			return fmt.Errorf("retrieve: %w", err)
		}
		span.SetAttributes(attribute.Int("chat.retrieved", len(retrieved)))

		text, err := o.generator.Generate(ctx, history, message, retrieved)
		if err != nil {
			return err
		}

		sources := make([]models.SourceRef, len(retrieved))
		for i, res := range retrieved {
			sources[i] = models.SourceRef{Text: res.Text, Score: res.Score}
		}
		answer = &Answer{Text: text, Sources: sources}

		appendExchange(message, text)
		o.recordTurn(ctx, len(retrieved), text == RefusalMessage)
		o.archiveTurn(ctx, sessionID, message, answer)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return answer, nil
}

// History returns a copy of a session's live history.
func (o *Orchestrator) History(sessionID string) []models.ChatTurn {
	return o.sessions.History(sessionID)
}

func (o *Orchestrator) recordTurn(ctx context.Context, retrieved int, refused bool) {
	if o.metrics == nil {
		return
	}
	o.metrics.ChatTurns.Add(ctx, 1)
	o.metrics.RetrievalHits.Add(ctx, int64(retrieved))
	if refused {
		o.metrics.RefusalsReturned.Add(ctx, 1)
	}
}

// archiveTurn writes the exchange to the durable transcript. The live
// history is the source of truth for the conversation; the archive backs
// listing and export, so a write failure is logged and swallowed.
func (o *Orchestrator) archiveTurn(ctx context.Context, sessionID, message string, answer *Answer) {
	if o.archive == nil {
		return
	}
	rec := models.MessageRecord{
		SessionID: sessionID,
		Message:   message,
		Reply:     answer.Text,
		Sources:   answer.Sources,
		Timestamp: time.Now(),
	}
	if err := o.archive.Archive(ctx, rec); err != nil {
		o.logger.Warn("failed to archive chat turn", "session_id", sessionID, "error", err)
	}
}
