// Package agent runs the conversation pipeline that turns natural-language
// questions into executed SQL: an explicit state machine covering cache
// lookup, schema loading, intent detection, curation, SQL generation,
// permission checks and execution with a bounded retry budget.
package agent

import (
	"github.com/google/uuid"

	"github.com/marianoelfernandez/ancap-ia-challenge-2025/pkg/llm"
)

// State identifies one node of the pipeline.
type State int

const (
	StateCheckCache State = iota
	StateLoadSchema
	StateDetectType
	StateGeneralLLM
	StateQueryTranslator
	StateRespondWithRetry
	StatePrepareSQL
	StateExecuteSQL
	StateEnd
)

func (s State) String() string {
	switch s {
	case StateCheckCache:
		return "check_cache"
	case StateLoadSchema:
		return "load_schema"
	case StateDetectType:
		return "detect_type"
	case StateGeneralLLM:
		return "general_llm"
	case StateQueryTranslator:
		return "query_translator"
	case StateRespondWithRetry:
		return "respond_with_retry"
	case StatePrepareSQL:
		return "prepare_sql"
	case StateExecuteSQL:
		return "execute_sql"
	case StateEnd:
		return "end"
	default:
		return "unknown"
	}
}

// maxExecutionAttempts bounds how many times a query may be executed,
// counting the first attempt. Every failed execution loops back through SQL
// generation while budget remains.
const maxExecutionAttempts = 3

// runState is the mutable state threaded through the pipeline for one
// question.
type runState struct {
	Query          string
	ConversationID uuid.UUID
	UserID         string

	History []llm.Message
	Schema  string

	Curated   string
	SQL       string
	FromCache bool

	Description string
	Output      string
	Response    string

	Tables []string
	Cost   float64

	Attempts  int
	LastError string

	NeedsClarification bool
}
