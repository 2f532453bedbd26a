package cache

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// memoryIndex is an in-process VectorIndex used in batch mode, where the
// index is rebuilt from the metadata store on startup, and in tests.
type memoryIndex struct {
	mu      sync.RWMutex
	vectors map[uuid.UUID][]float32
}

var _ VectorIndex = (*memoryIndex)(nil)

// NewMemoryIndex creates an empty in-memory VectorIndex.
func NewMemoryIndex() VectorIndex {
	return &memoryIndex{vectors: make(map[uuid.UUID][]float32)}
}

// NewMemoryIndexFromStore creates an in-memory index populated with every
// live entry in the store.
func NewMemoryIndexFromStore(ctx context.Context, store MetadataStore) (VectorIndex, error) {
	entries, err := store.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load cache entries: %w", err)
	}

	idx := &memoryIndex{vectors: make(map[uuid.UUID][]float32, len(entries))}
	for _, e := range entries {
		idx.vectors[e.ID] = e.Embedding
	}
	return idx, nil
}

func (m *memoryIndex) Upsert(_ context.Context, id uuid.UUID, embedding []float32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vectors[id] = embedding
	return nil
}

func (m *memoryIndex) Remove(_ context.Context, ids []uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		delete(m.vectors, id)
	}
	return nil
}

func (m *memoryIndex) FindNearest(_ context.Context, embedding []float32, limit int) ([]Neighbor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	neighbors := make([]Neighbor, 0, len(m.vectors))
	for id, stored := range m.vectors {
		neighbors = append(neighbors, Neighbor{
			ID:       id,
			Distance: CosineDistance(embedding, stored),
		})
	}

	sort.Slice(neighbors, func(i, j int) bool {
		return neighbors[i].Distance < neighbors[j].Distance
	})
	if limit > 0 && len(neighbors) > limit {
		neighbors = neighbors[:limit]
	}

	return neighbors, nil
}
