// Package ai implements the enrichment calls made to a language model:
// free-text generation and schema-constrained JSON generation, behind one
// Client interface with Gemini and OpenAI-compatible backends.
package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/edgard/checkinbot/internal/config"
	"github.com/edgard/checkinbot/internal/resilience"
)

// ErrEmptyResponse is returned when the model produced no usable text.
var ErrEmptyResponse = errors.New("empty model response")

// Client defines the enrichment operations used by the orchestrator, the
// content handlers and the check-in task.
type Client interface {
	// GenerateText returns a free-text completion for prompt.
	GenerateText(ctx context.Context, prompt string) (string, error)

	// GenerateJSON asks for a JSON object matching schema and decodes it into out.
	GenerateJSON(ctx context.Context, prompt string, schema *Schema, out any) error
}

// NewClient builds the backend selected by cfg.Provider, behind a circuit
// breaker unless cfg.BreakerMaxFailures is zero.
func NewClient(ctx context.Context, cfg config.AIConfig, log *slog.Logger) (Client, error) {
	var (
		client Client
		err    error
	)
	switch cfg.Provider {
	case "gemini":
		client, err = newGeminiClient(ctx, cfg.Gemini, log)
	case "openai":
		client, err = newOpenAIClient(cfg.OpenAI, log)
	default:
		return nil, fmt.Errorf("unknown AI provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}

	if cfg.BreakerMaxFailures > 0 {
		client = WithBreaker(client, resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			Name:        cfg.Provider,
			MaxFailures: cfg.BreakerMaxFailures,
			OpenTimeout: cfg.BreakerOpenTimeout,
			Logger:      log,
		}))
	}
	return client, nil
}

// decodeJSON tolerates markdown code fences around the payload, which some
// models emit even in JSON mode.
func decodeJSON(text string, out any) error {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
		text = strings.TrimSpace(text)
	}
	if text == "" {
		return ErrEmptyResponse
	}
	if err := json.Unmarshal([]byte(text), out); err != nil {
		return fmt.Errorf("invalid JSON received: %w", err)
	}
	return nil
}
