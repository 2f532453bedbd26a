package llm

import (
	"context"
	"fmt"
	"time"

	anthropic "github.com/liushuangls/go-anthropic/v2"
	"go.uber.org/zap"

	"github.com/marianoelfernandez/ancap-ia-challenge-2025/pkg/logging"
)

const anthropicMaxTokens = 4096

// AnthropicClient serves chat completions from the Anthropic Messages API.
// Anthropic has no embedding endpoint, so embeddings are delegated to an
// OpenAI-compatible embedder.
type AnthropicClient struct {
	client   *anthropic.Client
	model    string
	embedder *OpenAIClient
	logger   *zap.Logger
}

// NewAnthropicClient creates an Anthropic-backed chat client. embedCfg
// configures the OpenAI-compatible endpoint used for embeddings.
func NewAnthropicClient(cfg *Config, embedCfg *Config, logger *zap.Logger) (*AnthropicClient, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("model is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api key is required")
	}

	embedder, err := NewOpenAIClient(embedCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("create embedding client: %w", err)
	}

	return &AnthropicClient{
		client:   anthropic.NewClient(cfg.APIKey),
		model:    cfg.Model,
		embedder: embedder,
		logger:   logger.Named("llm"),
	}, nil
}

// Complete generates a chat completion via the Messages API.
func (c *AnthropicClient) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}

	messages := make([]anthropic.Message, 0, len(req.History)+1)
	for _, m := range req.History {
		if m.Role == RoleAssistant {
			messages = append(messages, anthropic.NewAssistantTextMessage(m.Content))
		} else {
			messages = append(messages, anthropic.NewUserTextMessage(m.Content))
		}
	}
	messages = append(messages, anthropic.NewUserTextMessage(req.Prompt))

	temperature := float32(req.Temperature)

	c.logger.Debug("LLM request",
		zap.String("model", model),
		zap.String("prompt", logging.SanitizePrompt(req.Prompt)),
		zap.Int("history_len", len(req.History)))

	start := time.Now()

	resp, err := c.client.CreateMessages(ctx, anthropic.MessagesRequest{
		Model:       anthropic.Model(model),
		System:      req.System,
		Messages:    messages,
		MaxTokens:   anthropicMaxTokens,
		Temperature: &temperature,
	})
	if err != nil {
		c.logger.Error("LLM request failed",
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return "", ClassifyError(err)
	}

	for _, block := range resp.Content {
		if block.Type == "text" && block.Text != nil {
			c.logger.Info("LLM request completed",
				zap.Duration("elapsed", time.Since(start)))
			return *block.Text, nil
		}
	}

	return "", fmt.Errorf("no text content in response")
}

// Embed generates an embedding via the configured OpenAI-compatible endpoint.
func (c *AnthropicClient) Embed(ctx context.Context, input string) ([]float32, error) {
	return c.embedder.Embed(ctx, input)
}

// Model returns the configured default chat model name.
func (c *AnthropicClient) Model() string {
	return c.model
}
