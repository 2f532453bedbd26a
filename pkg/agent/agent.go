package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/marianoelfernandez/ancap-ia-challenge-2025/pkg/apperrors"
	"github.com/marianoelfernandez/ancap-ia-challenge-2025/pkg/cache"
	"github.com/marianoelfernandez/ancap-ia-challenge-2025/pkg/llm"
	"github.com/marianoelfernandez/ancap-ia-challenge-2025/pkg/logging"
	"github.com/marianoelfernandez/ancap-ia-challenge-2025/pkg/models"
	"github.com/marianoelfernandez/ancap-ia-challenge-2025/pkg/prompts"
	"github.com/marianoelfernandez/ancap-ia-challenge-2025/pkg/repositories"
	"github.com/marianoelfernandez/ancap-ia-challenge-2025/pkg/schema"
	sqlutil "github.com/marianoelfernandez/ancap-ia-challenge-2025/pkg/sql"
	"github.com/marianoelfernandez/ancap-ia-challenge-2025/pkg/warehouse"
)

// maxSteps bounds the state machine driver so a transition bug can never
// spin forever.
const maxSteps = 24

// Executor runs SQL against the warehouse. Validate is a dry run that
// estimates cost without touching data. Satisfied by *warehouse.Client.
type Executor interface {
	Execute(ctx context.Context, sqlQuery string) (*warehouse.QueryResult, error)
	Validate(ctx context.Context, sqlQuery string) (*warehouse.ValidationResult, error)
}

// QueryCache is the semantic cache surface the agent needs. Satisfied by
// *cache.SemanticCache.
type QueryCache interface {
	Lookup(ctx context.Context, text string) (*cache.Hit, error)
	Store(ctx context.Context, text, sqlQuery string) (*models.CacheEntry, error)
}

// SchemaProvider returns the formatted warehouse schema. Satisfied by
// *schema.Service.
type SchemaProvider interface {
	Get(ctx context.Context) string
}

// PermissionChecker validates table access for a user. Satisfied by
// *auth.Evaluator.
type PermissionChecker interface {
	CheckForUser(ctx context.Context, sqlQuery, userID string) ([]string, error)
}

// Result is the outcome of one question.
type Result struct {
	ConversationID     uuid.UUID `json:"conversation_id"`
	Answer             string    `json:"answer"`
	SQL                string    `json:"sql,omitempty"`
	Tables             []string  `json:"tables,omitempty"`
	Cost               float64   `json:"cost"`
	CacheHit           bool      `json:"cache_hit"`
	NeedsClarification bool      `json:"needs_clarification"`
}

// Agent orchestrates one question end to end.
type Agent struct {
	llm           llm.Client
	proModel      string
	schemas       SchemaProvider
	cache         QueryCache
	warehouse     Executor
	permissions   PermissionChecker
	conversations repositories.ConversationRepository
	queries       repositories.QueryRepository
	logger        *zap.Logger
}

// New wires an agent from its collaborators. cache may be nil when the
// semantic cache is disabled.
func New(
	client llm.Client,
	proModel string,
	schemas SchemaProvider,
	queryCache QueryCache,
	executor Executor,
	permissions PermissionChecker,
	conversations repositories.ConversationRepository,
	queries repositories.QueryRepository,
	logger *zap.Logger,
) *Agent {
	return &Agent{
		llm:           client,
		proModel:      proModel,
		schemas:       schemas,
		cache:         queryCache,
		warehouse:     executor,
		permissions:   permissions,
		conversations: conversations,
		queries:       queries,
		logger:        logger.Named("agent"),
	}
}

// Ask answers one natural-language question inside a conversation. A nil
// conversationID starts a new conversation titled by the model; otherwise
// the conversation must belong to userID or ErrOwnershipMismatch is
// returned. The completed turn is persisted before returning.
func (a *Agent) Ask(ctx context.Context, query string, conversationID *uuid.UUID, userID string) (*Result, error) {
	conversation, err := a.resolveConversation(ctx, query, conversationID, userID)
	if err != nil {
		return nil, err
	}

	history, err := buildHistory(ctx, a.queries, conversation.ID)
	if err != nil {
		return nil, err
	}

	st := &runState{
		Query:          query,
		ConversationID: conversation.ID,
		UserID:         userID,
		History:        history,
	}

	if err := a.run(ctx, st); err != nil {
		return nil, err
	}

	record := &models.QueryRecord{
		ID:             uuid.New(),
		NaturalQuery:   query,
		SQLQuery:       st.SQL,
		Output:         st.Output,
		Cost:           st.Cost,
		ConversationID: conversation.ID,
		QueriedTables:  st.Tables,
		AgentResponse:  st.Response,
		CreatedAt:      time.Now(),
	}
	if err := a.queries.Save(ctx, record); err != nil {
		return nil, fmt.Errorf("persist conversation turn: %w", err)
	}

	a.maybeCacheTranslation(ctx, st)

	return &Result{
		ConversationID:     conversation.ID,
		Answer:             st.Response,
		SQL:                st.SQL,
		Tables:             st.Tables,
		Cost:               st.Cost,
		CacheHit:           st.FromCache,
		NeedsClarification: st.NeedsClarification,
	}, nil
}

func (a *Agent) resolveConversation(ctx context.Context, query string, conversationID *uuid.UUID, userID string) (*models.Conversation, error) {
	if conversationID != nil {
		conversation, err := a.conversations.Get(ctx, *conversationID)
		if err != nil {
			return nil, err
		}
		if conversation.UserID != userID {
			return nil, apperrors.ErrOwnershipMismatch
		}
		return conversation, nil
	}

	conversation := &models.Conversation{
		ID:        uuid.New(),
		UserID:    userID,
		Title:     a.summarizeTitle(ctx, query),
		CreatedAt: time.Now(),
	}
	if err := a.conversations.Create(ctx, conversation); err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}
	return conversation, nil
}

// summarizeTitle asks the model for a short conversation title, falling
// back to the truncated question if the call fails.
func (a *Agent) summarizeTitle(ctx context.Context, query string) string {
	title, err := a.llm.Complete(ctx, llm.CompletionRequest{
		System: prompts.TitleSystem,
		Prompt: query,
	})
	if err != nil {
		a.logger.Warn("title summarization failed", zap.Error(err))
		return logging.TruncateString(query, 80)
	}
	return strings.TrimSpace(title)
}

// run drives the state machine from cache check to completion.
func (a *Agent) run(ctx context.Context, st *runState) error {
	state := StateCheckCache

	for step := 0; step < maxSteps; step++ {
		a.logger.Debug("agent step",
			zap.String("state", state.String()),
			zap.Int("attempts", st.Attempts))

		var err error
		switch state {
		case StateCheckCache:
			state = a.checkCache(ctx, st)
		case StateLoadSchema:
			state = a.loadSchema(ctx, st)
		case StateDetectType:
			state, err = a.detectType(ctx, st)
		case StateGeneralLLM:
			state, err = a.generalLLM(ctx, st)
		case StateQueryTranslator:
			state, err = a.queryTranslator(ctx, st)
		case StateRespondWithRetry:
			state = a.respondWithRetry(st)
		case StatePrepareSQL:
			state, err = a.prepareSQL(ctx, st)
		case StateExecuteSQL:
			state, err = a.executeSQL(ctx, st)
		case StateEnd:
			return nil
		default:
			return fmt.Errorf("agent reached unknown state %d", state)
		}
		if err != nil {
			return err
		}
	}

	return fmt.Errorf("agent exceeded %d steps without finishing", maxSteps)
}

// checkCache looks for a semantically equivalent previous translation.
// A hit only stashes the cached SQL; the turn still flows through schema
// loading and intent detection, and the cached statement is used only
// when the classifier confirms this is a data question. Any cache
// trouble degrades to a miss.
func (a *Agent) checkCache(ctx context.Context, st *runState) State {
	if a.cache == nil {
		return StateLoadSchema
	}

	hit, err := a.cache.Lookup(ctx, st.Query)
	if err != nil {
		a.logger.Warn("cache lookup unavailable", zap.Error(err))
		return StateLoadSchema
	}
	if hit != nil {
		st.SQL = hit.Entry.SQL
		st.FromCache = true
	}
	return StateLoadSchema
}

func (a *Agent) loadSchema(ctx context.Context, st *runState) State {
	st.Schema = a.schemas.Get(ctx)
	return StateDetectType
}

// detectType classifies the question as a data question or small talk,
// with the recent conversation as context so follow-ups like "and for
// May?" still read as data questions. A data question with a cached
// translation pending skips curation and generation; anything the model
// does not label SQL is handled conversationally, discarding whatever
// the cache matched.
func (a *Agent) detectType(ctx context.Context, st *runState) (State, error) {
	answer, err := a.llm.Complete(ctx, llm.CompletionRequest{
		Prompt: prompts.Intent(renderHistory(st.History), st.Query),
	})
	if err != nil {
		return StateEnd, fmt.Errorf("intent detection failed: %w", err)
	}

	if strings.Contains(strings.ToUpper(answer), "SQL") {
		if st.FromCache && st.SQL != "" {
			return StatePrepareSQL, nil
		}
		return StateQueryTranslator, nil
	}

	st.SQL = ""
	st.FromCache = false
	return StateGeneralLLM, nil
}

func (a *Agent) generalLLM(ctx context.Context, st *runState) (State, error) {
	answer, err := a.llm.Complete(ctx, llm.CompletionRequest{
		System:  prompts.GeneralSystem,
		Prompt:  st.Query,
		History: st.History,
	})
	if err != nil {
		return StateEnd, fmt.Errorf("conversational completion failed: %w", err)
	}

	st.Response = strings.TrimSpace(answer)
	return StateEnd, nil
}

// queryTranslator curates the question against the data dictionary. The
// model either enriches the question with concrete table information or
// asks the user for clarification.
func (a *Agent) queryTranslator(ctx context.Context, st *runState) (State, error) {
	answer, err := a.llm.Complete(ctx, llm.CompletionRequest{
		Prompt:  prompts.Curation(schema.DataDictionary, st.Query),
		History: st.History,
	})
	if err != nil {
		return StateEnd, fmt.Errorf("query curation failed: %w", err)
	}

	curated, needsClarification := ParseCurated(answer)
	if needsClarification {
		st.Curated = curated
		return StateRespondWithRetry, nil
	}

	st.Curated = curated
	return StatePrepareSQL, nil
}

// respondWithRetry surfaces the model's clarification request as the answer
// for this turn. The user's next message starts the pipeline over.
func (a *Agent) respondWithRetry(st *runState) State {
	st.Response = st.Curated
	st.NeedsClarification = true
	return StateEnd
}

// prepareSQL generates the statement (unless it arrived from the cache),
// normalizes it and runs the permission gate.
func (a *Agent) prepareSQL(ctx context.Context, st *runState) (State, error) {
	if !st.FromCache || st.SQL == "" {
		input := st.Query
		if st.LastError != "" {
			input = fmt.Sprintf("%s\n\nLa consulta SQL anterior falló con este error, generá una consulta corregida:\n%s",
				st.Query, st.LastError)
		}

		answer, err := a.llm.Complete(ctx, llm.CompletionRequest{
			System:  prompts.SQLGenerationSystem(st.Schema),
			Prompt:  prompts.SQLGeneration(input, st.Curated),
			History: st.History,
			Model:   a.proModel,
		})
		if err != nil {
			return StateEnd, fmt.Errorf("SQL generation failed: %w", err)
		}

		sqlQuery, description := ParseSQLResponse(answer)
		if sqlQuery == "" {
			// The model answered in prose instead of SQL; show it as-is.
			st.Response = description
			return StateEnd, nil
		}
		st.SQL = sqlQuery
		st.Description = description
	}

	validation := sqlutil.ValidateAndNormalize(st.SQL)
	if validation.Error != nil {
		return StateEnd, fmt.Errorf("generated SQL rejected: %w", validation.Error)
	}
	st.SQL = validation.NormalizedSQL

	tables, err := a.permissions.CheckForUser(ctx, st.SQL, st.UserID)
	if err != nil {
		return StateEnd, err
	}
	st.Tables = tables

	// Dry-run the statement before spending a real execution on it. A
	// rejection costs one attempt; anything else wrong with the dry run
	// only costs a log line.
	estimate, err := a.warehouse.Validate(ctx, st.SQL)
	switch {
	case err == nil:
		a.logger.Debug("dry run estimate",
			zap.Int64("estimated_bytes", estimate.EstimatedBytes),
			zap.Float64("estimated_cost", estimate.EstimatedCost))
	case errors.Is(err, warehouse.ErrInvalidQuery):
		st.Attempts++
		if st.Attempts >= maxExecutionAttempts {
			return StateEnd, fmt.Errorf("%w after %d attempts: %s",
				apperrors.ErrRetriesExhausted, st.Attempts, logging.SanitizeError(err))
		}
		st.LastError = err.Error()
		if st.FromCache {
			st.FromCache = false
			st.SQL = ""
			return StateLoadSchema, nil
		}
		st.SQL = ""
		return StatePrepareSQL, nil
	default:
		a.logger.Warn("dry run validation unavailable", zap.Error(err))
	}

	return StateExecuteSQL, nil
}

// executeSQL runs the statement. A failure spends one attempt of the
// budget: cached SQL falls back to the full generation pipeline, generated
// SQL loops back through generation with the error attached. When the
// budget runs out the last error is wrapped in ErrRetriesExhausted.
func (a *Agent) executeSQL(ctx context.Context, st *runState) (State, error) {
	st.Attempts++

	result, err := a.warehouse.Execute(ctx, st.SQL)
	if err != nil {
		a.logger.Warn("query execution failed",
			zap.Int("attempt", st.Attempts),
			zap.String("sql", logging.SanitizeQuery(st.SQL)),
			zap.Error(err))

		if st.Attempts >= maxExecutionAttempts {
			return StateEnd, fmt.Errorf("%w after %d attempts: %s",
				apperrors.ErrRetriesExhausted, st.Attempts, logging.SanitizeError(err))
		}

		st.LastError = err.Error()
		if st.FromCache {
			// Stale cached SQL: restart the generation pipeline.
			st.FromCache = false
			st.SQL = ""
			return StateLoadSchema, nil
		}
		st.SQL = ""
		return StatePrepareSQL, nil
	}

	st.Output = result.Text()
	st.Cost = result.Cost
	st.Response = a.composeAnswer(st)
	return StateEnd, nil
}

// composeAnswer builds the user-facing answer from the description and the
// result rows.
func (a *Agent) composeAnswer(st *runState) string {
	var b strings.Builder
	if st.Description != "" {
		b.WriteString(st.Description)
		b.WriteString("\n\n")
	}
	b.WriteString(st.Output)
	return b.String()
}

// maybeCacheTranslation stores a freshly generated, successfully executed
// translation for future lookups. Failures only cost a log line; the
// answer is already on its way to the user.
func (a *Agent) maybeCacheTranslation(ctx context.Context, st *runState) {
	if a.cache == nil || st.FromCache || st.NeedsClarification || st.SQL == "" || st.Output == "" {
		return
	}

	storeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	go func() {
		defer cancel()
		if _, err := a.cache.Store(storeCtx, st.Query, st.SQL); err != nil {
			a.logger.Warn("cache store failed", zap.Error(err))
		}
	}()
}

// IsRetriesExhausted reports whether err is the retry-budget error.
func IsRetriesExhausted(err error) bool {
	return errors.Is(err, apperrors.ErrRetriesExhausted)
}
