package ai

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"

	genai "github.com/google/generative-ai-go/genai"

	"docchat-backend/models"
)

// ErrProviderUnavailable is returned when the circuit breaker is open.
var ErrProviderUnavailable = errors.New("generation provider unavailable")

// GeminiClient wraps the Gemini generation model behind a circuit breaker
// and a client-side rate limiter.
type GeminiClient struct {
	apiKey      string
	model       string
	breaker     *gobreaker.CircuitBreaker
	rateLimiter *rate.Limiter
	client      *genai.Client
}

type RateLimits struct {
	RPM int // Requests per minute
}

func NewGeminiClient(apiKey, model string) (*GeminiClient, error) {
	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "GeminiAPI",
		MaxRequests: 5,
		Interval:    10 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Printf("Circuit breaker %s: %s -> %s", name, from, to)
		},
	})

	// Free-tier RPM with some buffer
	limits := RateLimits{RPM: 10}
	rateLimiter := rate.NewLimiter(rate.Limit(float64(limits.RPM)*0.9/60.0), 2)

	return &GeminiClient{
		apiKey:      apiKey,
		model:       model,
		breaker:     breaker,
		rateLimiter: rateLimiter,
		client:      client,
	}, nil
}

// Generate produces one completion for the user turn, constrained by the
// system prompt, with prior turns supplied as chat history.
func (gc *GeminiClient) Generate(ctx context.Context, systemPrompt string, history []models.ChatTurn, userTurn string) (string, error) {
	tracer := otel.Tracer("gemini-client")
	ctx, span := tracer.Start(ctx, "gemini.generate")
	defer span.End()

	span.SetAttributes(
		attribute.String("gemini.model", gc.model),
		attribute.Int("gemini.history_turns", len(history)),
	)

	if err := gc.rateLimiter.Wait(ctx); err != nil {
		span.SetAttributes(attribute.Bool("gemini.rate_limited", true))
		return "", err
	}

	result, err := gc.breaker.Execute(func() (interface{}, error) {
		model := gc.client.GenerativeModel(gc.model)
		model.SetTemperature(0.2)
		model.SetMaxOutputTokens(2048)
		model.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(systemPrompt)},
		}

		chat := model.StartChat()
		chat.History = toGenaiHistory(history)

		resp, err := chat.SendMessage(ctx, genai.Text(userTurn))
		if err != nil {
			span.SetAttributes(attribute.Bool("gemini.error", true))
			span.SetAttributes(attribute.String("gemini.error_message", err.Error()))
			return nil, err
		}
		return resp, nil
	})

	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			span.SetAttributes(attribute.Bool("gemini.circuit_breaker_open", true))
			return "", ErrProviderUnavailable
		}
		return "", err
	}

	text, err := extractResponseText(result.(*genai.GenerateContentResponse))
	if err != nil {
		span.SetAttributes(attribute.Bool("gemini.error", true))
		return "", err
	}

	span.SetAttributes(attribute.Bool("gemini.success", true))
	return text, nil
}

func toGenaiHistory(history []models.ChatTurn) []*genai.Content {
	out := make([]*genai.Content, 0, len(history))
	for _, turn := range history {
		role := "user"
		if turn.Role == models.RoleAssistant {
			role = "model"
		}
		out = append(out, &genai.Content{
			Role:  role,
			Parts: []genai.Part{genai.Text(turn.Content)},
		})
	}
	return out
}

func extractResponseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", fmt.Errorf("no candidates in response")
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", fmt.Errorf("empty candidate content")
	}
	text := ""
	for _, part := range candidate.Content.Parts {
		if t, ok := part.(genai.Text); ok {
			text += string(t)
		}
	}
	if text == "" {
		return "", fmt.Errorf("no text parts in response")
	}
	return text, nil
}

// Close the client
func (gc *GeminiClient) Close() error {
	if gc.client != nil {
		return gc.client.Close()
	}
	return nil
}
