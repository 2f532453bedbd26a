package llm

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/marianoelfernandez/ancap-ia-challenge-2025/pkg/config"
)

// NewFromConfig creates the chat+embedding client selected by configuration.
func NewFromConfig(cfg *config.LLMConfig, logger *zap.Logger) (Client, error) {
	embedCfg := &Config{
		Endpoint:       cfg.EffectiveEmbeddingEndpoint(),
		Model:          cfg.Model,
		EmbeddingModel: cfg.EmbeddingModel,
		APIKey:         cfg.APIKey,
	}

	switch cfg.Provider {
	case "openai":
		return NewOpenAIClient(&Config{
			Endpoint:       cfg.Endpoint,
			Model:          cfg.Model,
			EmbeddingModel: cfg.EmbeddingModel,
			APIKey:         cfg.APIKey,
		}, logger)
	case "anthropic":
		return NewAnthropicClient(&Config{
			Model:  cfg.Model,
			APIKey: cfg.APIKey,
		}, embedCfg, logger)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}
