package models

import (
	"time"

	"github.com/google/uuid"
)

// QueryRecord is one completed turn of a conversation: the natural-language
// question, the SQL generated for it (empty for conversational turns), the
// textual output shown to the user, and the warehouse cost of the run.
// Records are immutable once persisted.
type QueryRecord struct {
	ID             uuid.UUID `json:"id"`
	NaturalQuery   string    `json:"natural_query"`
	SQLQuery       string    `json:"sql_query"`
	Output         string    `json:"output"`
	Cost           float64   `json:"cost"`
	ConversationID uuid.UUID `json:"conversation_id"`
	QueriedTables  []string  `json:"queried_tables"`
	AgentResponse  string    `json:"agent_response"`
	CreatedAt      time.Time `json:"created_at"`
}
