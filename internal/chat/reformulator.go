package chat

import (
	"context"
	"log/slog"
	"strings"

	"docchat-backend/models"
)

// GenerationProvider is the text-generation call contract. Satisfied by
// ai.GeminiClient.
type GenerationProvider interface {
	Generate(ctx context.Context, systemPrompt string, history []models.ChatTurn, userTurn string) (string, error)
}

const reformulatePrompt = `Given the conversation history, rewrite the user's latest message as a single standalone question that can be understood without the history. Resolve pronouns and references. Return only the rewritten question, nothing else. If the message already stands alone, return it unchanged.`

// Reformulator rewrites context-dependent follow-ups ("what about the second
// one?") into standalone retrieval queries using the conversation history.
type Reformulator struct {
	provider GenerationProvider
	logger   *slog.Logger
}

func NewReformulator(provider GenerationProvider, logger *slog.Logger) *Reformulator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reformulator{provider: provider, logger: logger}
}

// Reformulate returns the standalone form of message. A first turn has no
// history to resolve against and is passed through verbatim. A provider
// failure degrades to the raw message rather than failing the turn; retrieval
// on the unreformulated query is worse than retrieval on the rewritten one,
// but still better than no answer.
func (r *Reformulator) Reformulate(ctx context.Context, history []models.ChatTurn, message string) string {
	if len(history) == 0 {
		return message
	}

	rewritten, err := r.provider.Generate(ctx, reformulatePrompt, history, message)
	if err != nil {
		r.logger.Warn("query reformulation failed, using raw message", "error", err)
		return message
	}
	rewritten = strings.TrimSpace(rewritten)
	if rewritten == "" {
		return message
	}
	return rewritten
}
