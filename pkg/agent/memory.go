package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/marianoelfernandez/ancap-ia-challenge-2025/pkg/llm"
	"github.com/marianoelfernandez/ancap-ia-challenge-2025/pkg/repositories"
)

// memoryWindow is how many prior turns of a conversation are replayed into
// the prompt history.
const memoryWindow = 10

// buildHistory loads the most recent turns of a conversation and converts
// them into chat history, oldest first, one user/assistant pair per stored
// query.
func buildHistory(ctx context.Context, queries repositories.QueryRepository, conversationID uuid.UUID) ([]llm.Message, error) {
	records, err := queries.RecentByConversation(ctx, conversationID, memoryWindow)
	if err != nil {
		return nil, fmt.Errorf("load conversation history: %w", err)
	}

	// RecentByConversation returns newest first.
	history := make([]llm.Message, 0, len(records)*2)
	for i := len(records) - 1; i >= 0; i-- {
		rec := records[i]
		history = append(history,
			llm.Message{Role: llm.RoleUser, Content: rec.NaturalQuery},
			llm.Message{Role: llm.RoleAssistant, Content: rec.AgentResponse},
		)
	}

	return history, nil
}

// renderHistory flattens chat history into the plain-text transcript the
// intent-classification prompt embeds.
func renderHistory(history []llm.Message) string {
	if len(history) == 0 {
		return "(sin historial)"
	}

	var b strings.Builder
	for i, m := range history {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(m.Role)
		b.WriteString(": ")
		b.WriteString(m.Content)
	}
	return b.String()
}
