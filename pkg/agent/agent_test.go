package agent

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/marianoelfernandez/ancap-ia-challenge-2025/pkg/apperrors"
	"github.com/marianoelfernandez/ancap-ia-challenge-2025/pkg/auth"
	"github.com/marianoelfernandez/ancap-ia-challenge-2025/pkg/cache"
	"github.com/marianoelfernandez/ancap-ia-challenge-2025/pkg/llm"
	"github.com/marianoelfernandez/ancap-ia-challenge-2025/pkg/models"
	"github.com/marianoelfernandez/ancap-ia-challenge-2025/pkg/prompts"
	"github.com/marianoelfernandez/ancap-ia-challenge-2025/pkg/warehouse"
)

type memConversationRepo struct {
	mu            sync.Mutex
	conversations map[uuid.UUID]*models.Conversation
}

func newMemConversationRepo() *memConversationRepo {
	return &memConversationRepo{conversations: make(map[uuid.UUID]*models.Conversation)}
}

func (m *memConversationRepo) Create(_ context.Context, c *models.Conversation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.conversations[c.ID] = c
	return nil
}

func (m *memConversationRepo) Get(_ context.Context, id uuid.UUID) (*models.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.conversations[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return c, nil
}

type memQueryRepo struct {
	mu      sync.Mutex
	records []*models.QueryRecord
}

func (m *memQueryRepo) Save(_ context.Context, rec *models.QueryRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
	return nil
}

func (m *memQueryRepo) RecentByConversation(_ context.Context, conversationID uuid.UUID, limit int) ([]*models.QueryRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.QueryRecord
	for i := len(m.records) - 1; i >= 0 && len(out) < limit; i-- {
		if m.records[i].ConversationID == conversationID {
			out = append(out, m.records[i])
		}
	}
	return out, nil
}

func (m *memQueryRepo) ListPage(_ context.Context, page, perPage int) ([]*models.QueryRecord, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.records, len(m.records), nil
}

type memUserRepo struct {
	users map[string]*models.User
}

func (m *memUserRepo) Get(_ context.Context, id string) (*models.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return u, nil
}

type mockExecutor struct {
	mu           sync.Mutex
	calls        []string
	execFunc     func(sqlQuery string) (*warehouse.QueryResult, error)
	validateFunc func(sqlQuery string) (*warehouse.ValidationResult, error)
}

func (m *mockExecutor) Execute(_ context.Context, sqlQuery string) (*warehouse.QueryResult, error) {
	m.mu.Lock()
	m.calls = append(m.calls, sqlQuery)
	m.mu.Unlock()
	return m.execFunc(sqlQuery)
}

func (m *mockExecutor) Validate(_ context.Context, sqlQuery string) (*warehouse.ValidationResult, error) {
	if m.validateFunc != nil {
		return m.validateFunc(sqlQuery)
	}
	return &warehouse.ValidationResult{}, nil
}

func (m *mockExecutor) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

type mockCache struct {
	hit    *cache.Hit
	stored []string
	mu     sync.Mutex
}

func (m *mockCache) Lookup(_ context.Context, _ string) (*cache.Hit, error) {
	return m.hit, nil
}

func (m *mockCache) Store(_ context.Context, text, sqlQuery string) (*models.CacheEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stored = append(m.stored, sqlQuery)
	return &models.CacheEntry{ID: uuid.New(), Text: text, SQL: sqlQuery}, nil
}

type staticSchema struct{}

func (staticSchema) Get(_ context.Context) string { return "-- CREATE TABLE DOCCRG (...)" }

// scriptedLLM answers each pipeline prompt by recognizing its shape.
type scriptedLLM struct {
	intent   string
	curation string
	sqlGen   string
	general  string

	mu          sync.Mutex
	sqlGenCalls int
}

func (s *scriptedLLM) client() *llm.MockClient {
	return &llm.MockClient{
		CompleteFunc: func(_ context.Context, req llm.CompletionRequest) (string, error) {
			switch {
			case req.System == prompts.TitleSystem:
				return "Entregas de marzo", nil
			case strings.Contains(req.Prompt, "answer with only 'SQL' or 'GENERAL'"):
				return s.intent, nil
			case strings.Contains(req.Prompt, "diccionario de datos"):
				return s.curation, nil
			case strings.Contains(req.System, "experto SQL"):
				s.mu.Lock()
				s.sqlGenCalls++
				s.mu.Unlock()
				return s.sqlGen, nil
			case req.System == prompts.GeneralSystem:
				return s.general, nil
			}
			return "", fmt.Errorf("unexpected prompt: %q", req.Prompt)
		},
		EmbedFunc: func(_ context.Context, _ string) ([]float32, error) {
			return []float32{1, 0, 0}, nil
		},
	}
}

type testHarness struct {
	agent    *Agent
	convRepo *memConversationRepo
	qryRepo  *memQueryRepo
	executor *mockExecutor
	cache    *mockCache
	script   *scriptedLLM
}

func newHarness(t *testing.T, role string, script *scriptedLLM, executor *mockExecutor) *testHarness {
	t.Helper()

	convRepo := newMemConversationRepo()
	qryRepo := &memQueryRepo{}
	userRepo := &memUserRepo{users: map[string]*models.User{
		"user-1": {ID: "user-1", Name: "Test", Role: role},
	}}
	evaluator := auth.NewEvaluator(userRepo, zap.NewNop())
	qc := &mockCache{}

	a := New(script.client(), "gpt-4o", staticSchema{}, qc, executor, evaluator, convRepo, qryRepo, zap.NewNop())

	return &testHarness{
		agent:    a,
		convRepo: convRepo,
		qryRepo:  qryRepo,
		executor: executor,
		cache:    qc,
		script:   script,
	}
}

const invoiceSQLResponse = "```sql\n" +
	"SELECT c.CLINOM, SUM(l.FACLINIMP) AS total\n" +
	"FROM FACCAB f\n" +
	"JOIN FACLINPR l ON f.FACNRO = l.FACNRO\n" +
	"JOIN CLIENTES c ON f.CLICOD = c.CLICOD\n" +
	"GROUP BY c.CLINOM;\n" +
	"```\n" +
	"**Descripción de los datos:** El total facturado por cada cliente."

func TestAskSQLHappyPath(t *testing.T) {
	executor := &mockExecutor{execFunc: func(string) (*warehouse.QueryResult, error) {
		return &warehouse.QueryResult{
			Rows: []map[string]any{{"CLINOM": "Distribuidora Sur", "total": 1250.5}},
			Cost: 0.002,
		}, nil
	}}
	script := &scriptedLLM{
		intent:   "SQL",
		curation: "Total facturado por cliente usando FACCAB, FACLINPR y CLIENTES",
		sqlGen:   invoiceSQLResponse,
	}
	h := newHarness(t, models.RoleFacturas, script, executor)

	result, err := h.agent.Ask(context.Background(), "¿cuánto facturó cada cliente?", nil, "user-1")
	require.NoError(t, err)

	assert.Contains(t, result.Answer, "El total facturado por cada cliente.")
	assert.Contains(t, result.Answer, "Distribuidora Sur")
	assert.Equal(t, []string{"FACCAB", "FACLINPR", "CLIENTES"}, result.Tables)
	assert.Equal(t, 0.002, result.Cost)
	assert.False(t, result.CacheHit)
	assert.False(t, result.NeedsClarification)

	// The trailing semicolon is stripped before dispatch.
	require.Equal(t, 1, executor.callCount())
	assert.False(t, strings.HasSuffix(executor.calls[0], ";"))

	require.Len(t, h.qryRepo.records, 1)
	rec := h.qryRepo.records[0]
	assert.Equal(t, "¿cuánto facturó cada cliente?", rec.NaturalQuery)
	assert.Equal(t, result.SQL, rec.SQLQuery)
	assert.Equal(t, result.Tables, rec.QueriedTables)
}

func TestAskGeneralPath(t *testing.T) {
	executor := &mockExecutor{execFunc: func(string) (*warehouse.QueryResult, error) {
		t.Fatal("general questions must not reach the warehouse")
		return nil, nil
	}}
	script := &scriptedLLM{
		intent:  "GENERAL",
		general: "Hola, puedo ayudarte a consultar entregas y facturas de ANCAP.",
	}
	h := newHarness(t, models.RoleAdmin, script, executor)

	result, err := h.agent.Ask(context.Background(), "hola, ¿qué podés hacer?", nil, "user-1")
	require.NoError(t, err)

	assert.Equal(t, "Hola, puedo ayudarte a consultar entregas y facturas de ANCAP.", result.Answer)
	assert.Empty(t, result.SQL)

	require.Len(t, h.qryRepo.records, 1)
	assert.Empty(t, h.qryRepo.records[0].SQLQuery)
}

func TestAskClarificationShortCircuits(t *testing.T) {
	executor := &mockExecutor{execFunc: func(string) (*warehouse.QueryResult, error) {
		t.Fatal("clarification turns must not reach the warehouse")
		return nil, nil
	}}
	script := &scriptedLLM{
		intent:   "SQL",
		curation: "[RETRY] ¿Te referís a entregas o a facturas?",
	}
	h := newHarness(t, models.RoleAdmin, script, executor)

	result, err := h.agent.Ask(context.Background(), "dame los totales", nil, "user-1")
	require.NoError(t, err)

	assert.True(t, result.NeedsClarification)
	assert.Equal(t, "¿Te referís a entregas o a facturas?", result.Answer)
	assert.Empty(t, result.SQL)
	assert.Equal(t, 0, script.sqlGenCalls)
}

func TestAskRetriesExhaustedAfterThreeAttempts(t *testing.T) {
	executor := &mockExecutor{execFunc: func(string) (*warehouse.QueryResult, error) {
		return nil, fmt.Errorf("%w: table DOCCRGX not found", warehouse.ErrInvalidQuery)
	}}
	script := &scriptedLLM{
		intent:   "SQL",
		curation: "Conteo de entregas en DOCCRG",
		sqlGen:   "```sql\nSELECT COUNT(*) FROM DOCCRG\n```\n**Descripción de los datos:** Conteo.",
	}
	h := newHarness(t, models.RoleAdmin, script, executor)

	_, err := h.agent.Ask(context.Background(), "¿cuántas entregas hubo?", nil, "user-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrRetriesExhausted)

	assert.Equal(t, 3, executor.callCount(), "exactly three execution attempts")
	assert.Equal(t, 3, script.sqlGenCalls, "each attempt regenerates the statement")
}

func TestAskRecoversOnSecondAttempt(t *testing.T) {
	attempt := 0
	executor := &mockExecutor{execFunc: func(string) (*warehouse.QueryResult, error) {
		attempt++
		if attempt == 1 {
			return nil, fmt.Errorf("%w: syntax error", warehouse.ErrInvalidQuery)
		}
		return &warehouse.QueryResult{Rows: []map[string]any{{"n": 42.0}}}, nil
	}}
	script := &scriptedLLM{
		intent:   "SQL",
		curation: "Conteo de entregas",
		sqlGen:   "```sql\nSELECT COUNT(*) AS n FROM DOCCRG\n```\n**Descripción de los datos:** Conteo.",
	}
	h := newHarness(t, models.RoleAdmin, script, executor)

	result, err := h.agent.Ask(context.Background(), "¿cuántas entregas hubo?", nil, "user-1")
	require.NoError(t, err)
	assert.Contains(t, result.Answer, "42")
	assert.Equal(t, 2, executor.callCount())
}

func TestAskRegeneratesWhenDryRunRejects(t *testing.T) {
	var validations int
	executor := &mockExecutor{
		execFunc: func(string) (*warehouse.QueryResult, error) {
			return &warehouse.QueryResult{Rows: []map[string]any{{"n": 3.0}}}, nil
		},
		validateFunc: func(string) (*warehouse.ValidationResult, error) {
			validations++
			if validations == 1 {
				return nil, fmt.Errorf("%w: unknown column DOCFEC2", warehouse.ErrInvalidQuery)
			}
			return &warehouse.ValidationResult{EstimatedBytes: 1024}, nil
		},
	}
	script := &scriptedLLM{
		intent:   "SQL",
		curation: "Conteo de entregas",
		sqlGen:   "```sql\nSELECT COUNT(*) AS n FROM DOCCRG\n```\n**Descripción de los datos:** Conteo.",
	}
	h := newHarness(t, models.RoleAdmin, script, executor)

	result, err := h.agent.Ask(context.Background(), "¿cuántas entregas hubo?", nil, "user-1")
	require.NoError(t, err)

	assert.Contains(t, result.Answer, "3")
	assert.Equal(t, 2, script.sqlGenCalls, "rejected dry run regenerates the statement")
	assert.Equal(t, 1, executor.callCount(), "only the validated statement executes")
}

func TestAskCacheHitSkipsGeneration(t *testing.T) {
	executor := &mockExecutor{execFunc: func(string) (*warehouse.QueryResult, error) {
		return &warehouse.QueryResult{Rows: []map[string]any{{"n": 7.0}}}, nil
	}}
	script := &scriptedLLM{intent: "SQL"}
	h := newHarness(t, models.RoleAdmin, script, executor)
	h.agent.cache = &mockCache{hit: &cache.Hit{
		Entry:    &models.CacheEntry{ID: uuid.New(), SQL: "SELECT COUNT(*) AS n FROM DOCCRG"},
		Distance: 0.1,
	}}

	result, err := h.agent.Ask(context.Background(), "¿cuántas entregas se hicieron?", nil, "user-1")
	require.NoError(t, err)

	assert.True(t, result.CacheHit)
	assert.Equal(t, "SELECT COUNT(*) AS n FROM DOCCRG", result.SQL)
	assert.Equal(t, 0, script.sqlGenCalls, "cached SQL skips generation")
	assert.Equal(t, 1, executor.callCount())
}

func TestAskCacheHitStillChecksPermissions(t *testing.T) {
	executor := &mockExecutor{execFunc: func(string) (*warehouse.QueryResult, error) {
		t.Fatal("denied SQL must not execute")
		return nil, nil
	}}
	script := &scriptedLLM{intent: "SQL"}
	h := newHarness(t, models.RoleEntregas, script, executor)
	h.agent.cache = &mockCache{hit: &cache.Hit{
		Entry:    &models.CacheEntry{ID: uuid.New(), SQL: "SELECT * FROM FACCAB"},
		Distance: 0.1,
	}}

	_, err := h.agent.Ask(context.Background(), "mostrame las facturas", nil, "user-1")
	require.Error(t, err)

	denied, ok := apperrors.IsPermissionDenied(err)
	require.True(t, ok)
	assert.Equal(t, []string{"FACCAB"}, denied.Tables)
}

func TestAskConversationalTurnIgnoresCacheHit(t *testing.T) {
	executor := &mockExecutor{execFunc: func(string) (*warehouse.QueryResult, error) {
		t.Fatal("conversational turns must not execute cached SQL")
		return nil, nil
	}}
	script := &scriptedLLM{
		intent:  "GENERAL",
		general: "Puedo ayudarte a consultar entregas y facturas.",
	}
	h := newHarness(t, models.RoleAdmin, script, executor)
	h.agent.cache = &mockCache{hit: &cache.Hit{
		Entry:    &models.CacheEntry{ID: uuid.New(), SQL: "SELECT COUNT(*) FROM DOCCRG"},
		Distance: 0.05,
	}}

	result, err := h.agent.Ask(context.Background(), "gracias, ¿qué más sabés hacer?", nil, "user-1")
	require.NoError(t, err)

	assert.Equal(t, "Puedo ayudarte a consultar entregas y facturas.", result.Answer)
	assert.False(t, result.CacheHit)
	assert.Empty(t, result.SQL)
	assert.Equal(t, 0, executor.callCount())
}

func TestAskOwnershipMismatch(t *testing.T) {
	executor := &mockExecutor{execFunc: func(string) (*warehouse.QueryResult, error) { return nil, nil }}
	script := &scriptedLLM{intent: "GENERAL", general: "hola"}
	h := newHarness(t, models.RoleAdmin, script, executor)

	other := &models.Conversation{ID: uuid.New(), UserID: "someone-else", Title: "x", CreatedAt: time.Now()}
	require.NoError(t, h.convRepo.Create(context.Background(), other))

	_, err := h.agent.Ask(context.Background(), "hola", &other.ID, "user-1")
	assert.ErrorIs(t, err, apperrors.ErrOwnershipMismatch)
}

func TestAskUnknownConversation(t *testing.T) {
	executor := &mockExecutor{execFunc: func(string) (*warehouse.QueryResult, error) { return nil, nil }}
	script := &scriptedLLM{intent: "GENERAL", general: "hola"}
	h := newHarness(t, models.RoleAdmin, script, executor)

	missing := uuid.New()
	_, err := h.agent.Ask(context.Background(), "hola", &missing, "user-1")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestAskStoresTranslationInCache(t *testing.T) {
	executor := &mockExecutor{execFunc: func(string) (*warehouse.QueryResult, error) {
		return &warehouse.QueryResult{Rows: []map[string]any{{"n": 1.0}}}, nil
	}}
	script := &scriptedLLM{
		intent:   "SQL",
		curation: "Conteo de entregas",
		sqlGen:   "```sql\nSELECT COUNT(*) AS n FROM DOCCRG\n```\n**Descripción de los datos:** Conteo.",
	}
	h := newHarness(t, models.RoleAdmin, script, executor)

	_, err := h.agent.Ask(context.Background(), "¿cuántas entregas hubo?", nil, "user-1")
	require.NoError(t, err)

	// The cache store runs asynchronously after the answer is returned.
	assert.Eventually(t, func() bool {
		h.cache.mu.Lock()
		defer h.cache.mu.Unlock()
		return len(h.cache.stored) == 1
	}, time.Second, 10*time.Millisecond)
}

func TestAskConversationMemoryCarriesPriorTurns(t *testing.T) {
	executor := &mockExecutor{execFunc: func(string) (*warehouse.QueryResult, error) { return nil, nil }}

	var sawHistory []llm.Message
	client := &llm.MockClient{
		CompleteFunc: func(_ context.Context, req llm.CompletionRequest) (string, error) {
			switch {
			case req.System == prompts.TitleSystem:
				return "título", nil
			case strings.Contains(req.Prompt, "answer with only 'SQL' or 'GENERAL'"):
				return "GENERAL", nil
			case req.System == prompts.GeneralSystem:
				sawHistory = req.History
				return "respuesta", nil
			}
			return "", fmt.Errorf("unexpected prompt")
		},
	}

	convRepo := newMemConversationRepo()
	qryRepo := &memQueryRepo{}
	userRepo := &memUserRepo{users: map[string]*models.User{"user-1": {ID: "user-1", Role: models.RoleAdmin}}}
	evaluator := auth.NewEvaluator(userRepo, zap.NewNop())

	a := New(client, "gpt-4o", staticSchema{}, nil, executor, evaluator, convRepo, qryRepo, zap.NewNop())

	first, err := a.Ask(context.Background(), "primera pregunta", nil, "user-1")
	require.NoError(t, err)

	_, err = a.Ask(context.Background(), "segunda pregunta", &first.ConversationID, "user-1")
	require.NoError(t, err)

	require.Len(t, sawHistory, 2)
	assert.Equal(t, llm.RoleUser, sawHistory[0].Role)
	assert.Equal(t, "primera pregunta", sawHistory[0].Content)
	assert.Equal(t, llm.RoleAssistant, sawHistory[1].Role)
	assert.Equal(t, "respuesta", sawHistory[1].Content)
}

func TestAskIntentClassificationSeesHistory(t *testing.T) {
	executor := &mockExecutor{execFunc: func(string) (*warehouse.QueryResult, error) { return nil, nil }}

	var intentPrompts []string
	client := &llm.MockClient{
		CompleteFunc: func(_ context.Context, req llm.CompletionRequest) (string, error) {
			switch {
			case req.System == prompts.TitleSystem:
				return "título", nil
			case strings.Contains(req.Prompt, "answer with only 'SQL' or 'GENERAL'"):
				intentPrompts = append(intentPrompts, req.Prompt)
				return "GENERAL", nil
			case req.System == prompts.GeneralSystem:
				return "las entregas se registran en el sistema", nil
			}
			return "", fmt.Errorf("unexpected prompt")
		},
	}

	convRepo := newMemConversationRepo()
	qryRepo := &memQueryRepo{}
	userRepo := &memUserRepo{users: map[string]*models.User{"user-1": {ID: "user-1", Role: models.RoleAdmin}}}
	evaluator := auth.NewEvaluator(userRepo, zap.NewNop())

	a := New(client, "gpt-4o", staticSchema{}, nil, executor, evaluator, convRepo, qryRepo, zap.NewNop())

	first, err := a.Ask(context.Background(), "¿qué son las entregas?", nil, "user-1")
	require.NoError(t, err)

	_, err = a.Ask(context.Background(), "¿y en mayo?", &first.ConversationID, "user-1")
	require.NoError(t, err)

	require.Len(t, intentPrompts, 2)
	assert.Contains(t, intentPrompts[0], "(sin historial)")
	assert.Contains(t, intentPrompts[1], "¿qué son las entregas?")
	assert.Contains(t, intentPrompts[1], "las entregas se registran en el sistema")
}
