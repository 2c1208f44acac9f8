package chat

import (
	"context"
	"fmt"
	"strings"

	"docchat-backend/internal/vectorindex"
	"docchat-backend/models"
)

// RefusalMessage is the exact answer for questions the indexed documents
// cannot ground.
const RefusalMessage = "I don't know based on the provided documents."

const answerPromptTemplate = `You are an assistant that answers questions strictly from the document excerpts below. Use only the excerpts; do not use outside knowledge. If the excerpts do not contain the answer, reply with exactly: %s

Document excerpts:
%s`

// Generator produces a grounded answer from retrieved chunks and the session
// history.
type Generator struct {
	provider GenerationProvider
}

func NewGenerator(provider GenerationProvider) *Generator {
	return &Generator{provider: provider}
}

// Generate answers the user's message from the retrieved context. With no
// retrieved chunks there is nothing to ground an answer in, so the refusal
// message is returned without calling the provider at all.
func (g *Generator) Generate(ctx context.Context, history []models.ChatTurn, message string, retrieved []vectorindex.Result) (string, error) {
	if len(retrieved) == 0 {
		return RefusalMessage, nil
	}

	var b strings.Builder
	for i, res := range retrieved {
		fmt.Fprintf(&b, "[%d] %s\n\n", i+1, res.Text)
	}
	systemPrompt := fmt.Sprintf(answerPromptTemplate, RefusalMessage, strings.TrimSpace(b.String()))

	answer, err := g.provider.Generate(ctx, systemPrompt, history, message)
	if err != nil {
		return "", fmt.Errorf("generate answer: %w", err)
	}
	return strings.TrimSpace(answer), nil
}
