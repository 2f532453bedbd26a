package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/marianoelfernandez/ancap-ia-challenge-2025/pkg/apperrors"
	"github.com/marianoelfernandez/ancap-ia-challenge-2025/pkg/config"
	"github.com/marianoelfernandez/ancap-ia-challenge-2025/pkg/llm"
	"github.com/marianoelfernandez/ancap-ia-challenge-2025/pkg/models"
)

type mockStore struct {
	entries map[uuid.UUID]*models.CacheEntry

	saveErr error
	getErr  error
}

func newMockStore() *mockStore {
	return &mockStore{entries: make(map[uuid.UUID]*models.CacheEntry)}
}

func (m *mockStore) Save(_ context.Context, entry *models.CacheEntry) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.entries[entry.ID] = entry
	return nil
}

func (m *mockStore) Get(_ context.Context, id uuid.UUID) (*models.CacheEntry, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	entry, ok := m.entries[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return entry, nil
}

func (m *mockStore) Delete(_ context.Context, ids []uuid.UUID) error {
	for _, id := range ids {
		delete(m.entries, id)
	}
	return nil
}

func (m *mockStore) ListExpired(_ context.Context, now time.Time, limit int) ([]*models.CacheEntry, error) {
	var expired []*models.CacheEntry
	for _, e := range m.entries {
		if e.Expired(now) {
			expired = append(expired, e)
		}
		if limit > 0 && len(expired) == limit {
			break
		}
	}
	return expired, nil
}

func (m *mockStore) ListAll(_ context.Context) ([]*models.CacheEntry, error) {
	all := make([]*models.CacheEntry, 0, len(m.entries))
	for _, e := range m.entries {
		all = append(all, e)
	}
	return all, nil
}

// embedderFor maps known texts to fixed vectors so distances are exact.
func embedderFor(vectors map[string][]float32) *llm.MockClient {
	return &llm.MockClient{
		EmbedFunc: func(_ context.Context, input string) ([]float32, error) {
			v, ok := vectors[input]
			if !ok {
				return []float32{0, 0, 1}, nil
			}
			return v, nil
		},
	}
}

func testConfig() *config.CacheConfig {
	return &config.CacheConfig{
		Mode:              config.CacheModeStreaming,
		DistanceThreshold: 0.4,
		TTL:               24 * time.Hour,
		Neighbors:         3,
	}
}

func TestSemanticCacheRoundTrip(t *testing.T) {
	store := newMockStore()
	embedder := embedderFor(map[string][]float32{
		"¿cuántas entregas hubo?":       {1, 0, 0},
		"¿cuántas entregas se hicieron?": {0.95, 0.05, 0},
	})

	c := New(NewMemoryIndex(), store, embedder, testConfig(), zap.NewNop())

	entry, err := c.Store(context.Background(), "¿cuántas entregas hubo?", "SELECT COUNT(*) FROM DOCCRG")
	require.NoError(t, err)
	require.NotNil(t, entry)

	hit, err := c.Lookup(context.Background(), "¿cuántas entregas se hicieron?")
	require.NoError(t, err)
	require.NotNil(t, hit, "paraphrase within threshold should hit")
	assert.Equal(t, "SELECT COUNT(*) FROM DOCCRG", hit.Entry.SQL)
	assert.LessOrEqual(t, hit.Distance, 0.4)
}

func TestSemanticCacheThresholdDirection(t *testing.T) {
	store := newMockStore()
	embedder := embedderFor(map[string][]float32{
		"entregas de marzo":  {1, 0, 0},
		"facturas impagas":   {0, 1, 0}, // orthogonal, distance 1
		"entregas del tercer mes": {1, 0.01, 0},
	})

	c := New(NewMemoryIndex(), store, embedder, testConfig(), zap.NewNop())

	_, err := c.Store(context.Background(), "entregas de marzo", "SELECT 1")
	require.NoError(t, err)

	hit, err := c.Lookup(context.Background(), "facturas impagas")
	require.NoError(t, err)
	assert.Nil(t, hit, "distance above threshold must miss")

	hit, err = c.Lookup(context.Background(), "entregas del tercer mes")
	require.NoError(t, err)
	assert.NotNil(t, hit, "distance below threshold must hit")
}

func TestSemanticCacheSkipsExpiredEntries(t *testing.T) {
	store := newMockStore()
	embedder := embedderFor(map[string][]float32{"q": {1, 0, 0}})

	c := New(NewMemoryIndex(), store, embedder, testConfig(), zap.NewNop())

	entry, err := c.Store(context.Background(), "q", "SELECT 1")
	require.NoError(t, err)

	// Backdate the expiry so the entry is stale but still indexed.
	entry.ExpiresAt = time.Now().Add(-time.Minute)

	hit, err := c.Lookup(context.Background(), "q")
	require.NoError(t, err)
	assert.Nil(t, hit, "expired entry must not be served")
}

func TestSemanticCacheEmbedFailureIsUnavailable(t *testing.T) {
	store := newMockStore()
	embedder := &llm.MockClient{
		EmbedFunc: func(_ context.Context, _ string) ([]float32, error) {
			return nil, errors.New("embedding endpoint down")
		},
	}

	c := New(NewMemoryIndex(), store, embedder, testConfig(), zap.NewNop())

	_, err := c.Lookup(context.Background(), "q")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrCacheUnavailable)
}

func TestSemanticCacheStreamingUpsertFailureIsSoft(t *testing.T) {
	store := newMockStore()
	embedder := embedderFor(map[string][]float32{"q": {1, 0, 0}})

	idx := &failingIndex{err: errors.New("redis gone")}
	c := New(idx, store, embedder, testConfig(), zap.NewNop())

	entry, err := c.Store(context.Background(), "q", "SELECT 1")
	require.NoError(t, err, "streaming mode tolerates index failures on store")
	require.NotNil(t, entry)
	assert.Len(t, store.entries, 1, "metadata must still be written")
}

func TestSemanticCacheIndexFailureIsMiss(t *testing.T) {
	store := newMockStore()
	embedder := embedderFor(map[string][]float32{"q": {1, 0, 0}})

	idx := &failingIndex{err: errors.New("redis gone")}
	c := New(idx, store, embedder, testConfig(), zap.NewNop())

	hit, err := c.Lookup(context.Background(), "q")
	require.NoError(t, err)
	assert.Nil(t, hit)
}

func TestSemanticCachePurgeExpired(t *testing.T) {
	store := newMockStore()
	embedder := embedderFor(map[string][]float32{
		"old": {1, 0, 0},
		"new": {0, 1, 0},
	})

	idx := NewMemoryIndex()
	c := New(idx, store, embedder, testConfig(), zap.NewNop())

	old, err := c.Store(context.Background(), "old", "SELECT 1")
	require.NoError(t, err)
	old.ExpiresAt = time.Now().Add(-time.Hour)

	_, err = c.Store(context.Background(), "new", "SELECT 2")
	require.NoError(t, err)

	purged, err := c.PurgeExpired(context.Background(), 100)
	require.NoError(t, err)
	assert.Equal(t, 1, purged)
	assert.Len(t, store.entries, 1)

	hit, err := c.Lookup(context.Background(), "old")
	require.NoError(t, err)
	assert.Nil(t, hit, "purged entry must not be found")
}

func TestMemoryIndexRebuildFromStore(t *testing.T) {
	store := newMockStore()
	id := uuid.New()
	store.entries[id] = &models.CacheEntry{
		ID:        id,
		Text:      "q",
		SQL:       "SELECT 1",
		Embedding: []float32{1, 0, 0},
		CreatedAt: time.Now(),
		ExpiresAt: time.Now().Add(time.Hour),
	}

	idx, err := NewMemoryIndexFromStore(context.Background(), store)
	require.NoError(t, err)

	neighbors, err := idx.FindNearest(context.Background(), []float32{1, 0, 0}, 1)
	require.NoError(t, err)
	require.Len(t, neighbors, 1)
	assert.Equal(t, id, neighbors[0].ID)
	assert.InDelta(t, 0, neighbors[0].Distance, 1e-9)
}

func TestCosineDistance(t *testing.T) {
	assert.InDelta(t, 0, CosineDistance([]float32{1, 0}, []float32{2, 0}), 1e-9)
	assert.InDelta(t, 1, CosineDistance([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.InDelta(t, 2, CosineDistance([]float32{1, 0}, []float32{-1, 0}), 1e-9)
	assert.Equal(t, float64(2), CosineDistance([]float32{1}, []float32{1, 2}))
	assert.Equal(t, float64(2), CosineDistance([]float32{0, 0}, []float32{1, 0}))
}

type failingIndex struct {
	err error
}

func (f *failingIndex) Upsert(context.Context, uuid.UUID, []float32) error { return f.err }
func (f *failingIndex) Remove(context.Context, []uuid.UUID) error          { return f.err }
func (f *failingIndex) FindNearest(context.Context, []float32, int) ([]Neighbor, error) {
	return nil, f.err
}
