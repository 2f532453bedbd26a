// Package llm provides chat-completion and embedding clients for
// OpenAI-compatible and Anthropic endpoints.
package llm

import "context"

// Message roles for chat history injection.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one prior turn injected into a prompt's chat history.
type Message struct {
	Role    string
	Content string
}

// CompletionRequest describes one chat completion call. History, when
// present, is inserted between the system message and the user prompt so
// templated prompts can reference prior turns.
type CompletionRequest struct {
	System      string
	Prompt      string
	History     []Message
	Model       string // optional override of the client's default model
	Temperature float64
}

// Client defines the interface for LLM operations: chat completions plus
// text embeddings. Use this interface for dependency injection to enable
// mocking in tests.
type Client interface {
	// Complete generates a chat completion and returns the response text.
	Complete(ctx context.Context, req CompletionRequest) (string, error)

	// Embed generates an embedding vector for the input text. The output
	// dimensionality is fixed per model version.
	Embed(ctx context.Context, input string) ([]float32, error)

	// Model returns the configured default model name.
	Model() string
}

// Compile-time interface checks.
var (
	_ Client = (*OpenAIClient)(nil)
	_ Client = (*AnthropicClient)(nil)
	_ Client = (*MockClient)(nil)
)
