package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	gopenai "github.com/sashabaranov/go-openai"

	"github.com/edgard/checkinbot/internal/config"
)

const jsonInstruction = "Respond with a single JSON object only, no prose, matching this JSON schema:\n"

type openaiClient struct {
	client      *gopenai.Client
	model       string
	temperature float32
	log         *slog.Logger
}

func newOpenAIClient(cfg config.OpenAIConfig, log *slog.Logger) (*openaiClient, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai API key is required")
	}

	aiConfig := gopenai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		aiConfig.BaseURL = cfg.BaseURL
	}

	logger := log.With("component", "openai_client")
	logger.Info("OpenAI client initialized successfully", "model", cfg.Model, "base_url", aiConfig.BaseURL)
	return &openaiClient{
		client:      gopenai.NewClientWithConfig(aiConfig),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		log:         logger,
	}, nil
}

func (c *openaiClient) GenerateText(ctx context.Context, prompt string) (string, error) {
	return c.complete(ctx, gopenai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: c.temperature,
		Messages: []gopenai.ChatCompletionMessage{
			{Role: gopenai.ChatMessageRoleUser, Content: prompt},
		},
	})
}

func (c *openaiClient) GenerateJSON(ctx context.Context, prompt string, schema *Schema, out any) error {
	def, err := json.Marshal(schema.toJSONSchema())
	if err != nil {
		return fmt.Errorf("failed to encode schema: %w", err)
	}

	text, err := c.complete(ctx, gopenai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: c.temperature,
		ResponseFormat: &gopenai.ChatCompletionResponseFormat{
			Type: gopenai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []gopenai.ChatCompletionMessage{
			{Role: gopenai.ChatMessageRoleSystem, Content: jsonInstruction + string(def)},
			{Role: gopenai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return err
	}

	if err := decodeJSON(text, out); err != nil {
		c.log.ErrorContext(ctx, "Failed to parse JSON from chat completion", "error", err, "response_text", text)
		return err
	}
	return nil
}

func (c *openaiClient) complete(ctx context.Context, req gopenai.ChatCompletionRequest) (string, error) {
	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}

	c.log.DebugContext(ctx, "Chat completion received",
		"duration_ms", time.Since(start).Milliseconds(),
		"total_tokens", resp.Usage.TotalTokens)

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response choices returned: %w", ErrEmptyResponse)
	}

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}
