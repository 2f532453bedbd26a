package schema

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/marianoelfernandez/ancap-ia-challenge-2025/pkg/llm"
	"github.com/marianoelfernandez/ancap-ia-challenge-2025/pkg/prompts"
)

// refreshInterval is how long a formatted live schema is served before the
// warehouse is consulted again.
const refreshInterval = 24 * time.Hour

// Fetcher retrieves raw table/column listings from the warehouse service.
type Fetcher interface {
	GetSchemas(ctx context.Context) ([]map[string]any, error)
}

// Service serves the schema text handed to the SQL-generation prompt.
// In local mode it returns the built-in constant; otherwise it fetches the
// live INFORMATION_SCHEMA dump and has the LLM format it into the DDL-style
// shape the prompts expect. The formatted result is cached in memory.
type Service struct {
	fetcher Fetcher
	client  llm.Client
	local   bool
	logger  *zap.Logger

	mu        sync.Mutex
	schema    string
	fetchedAt time.Time
}

// NewService creates a schema service.
func NewService(fetcher Fetcher, client llm.Client, local bool, logger *zap.Logger) *Service {
	return &Service{
		fetcher: fetcher,
		client:  client,
		local:   local,
		logger:  logger.Named("schema"),
	}
}

// Get returns the current schema text, refreshing it when stale.
// Refresh failures fall back to the last good schema, or the constant when
// nothing has been fetched yet.
func (s *Service) Get(ctx context.Context) string {
	if s.local {
		return Constant
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.schema != "" && time.Since(s.fetchedAt) < refreshInterval {
		return s.schema
	}

	formatted, err := s.refresh(ctx)
	if err != nil {
		s.logger.Warn("schema refresh failed, serving fallback", zap.Error(err))
		if s.schema != "" {
			return s.schema
		}
		return Constant
	}

	s.schema = formatted
	s.fetchedAt = time.Now()
	return s.schema
}

func (s *Service) refresh(ctx context.Context) (string, error) {
	raw, err := s.fetcher.GetSchemas(ctx)
	if err != nil {
		return "", fmt.Errorf("fetch schemas: %w", err)
	}

	rawJSON, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal schemas: %w", err)
	}

	formatted, err := s.client.Complete(ctx, llm.CompletionRequest{
		System: prompts.SchemaFormattingSystem,
		Prompt: prompts.SchemaFormatting(string(rawJSON), Constant),
	})
	if err != nil {
		return "", fmt.Errorf("format schema: %w", err)
	}

	return formatted, nil
}
