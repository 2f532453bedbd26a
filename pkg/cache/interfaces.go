// Package cache implements the semantic query cache: embedding-based lookup
// of previously generated SQL keyed by natural-language meaning rather than
// exact text.
package cache

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/marianoelfernandez/ancap-ia-challenge-2025/pkg/models"
)

// Neighbor is one candidate returned from a vector search, ordered by
// ascending cosine distance. Lower distance means closer meaning.
type Neighbor struct {
	ID       uuid.UUID
	Distance float64
}

// VectorIndex is the nearest-neighbor side of the cache. Implementations
// hold only vectors and IDs; entry metadata lives in the MetadataStore.
type VectorIndex interface {
	Upsert(ctx context.Context, id uuid.UUID, embedding []float32) error
	Remove(ctx context.Context, ids []uuid.UUID) error
	FindNearest(ctx context.Context, embedding []float32, limit int) ([]Neighbor, error)
}

// MetadataStore persists cache entries durably. Satisfied by
// repositories.CacheRepository.
type MetadataStore interface {
	Save(ctx context.Context, entry *models.CacheEntry) error
	Get(ctx context.Context, id uuid.UUID) (*models.CacheEntry, error)
	Delete(ctx context.Context, ids []uuid.UUID) error
	ListExpired(ctx context.Context, now time.Time, limit int) ([]*models.CacheEntry, error)
	ListAll(ctx context.Context) ([]*models.CacheEntry, error)
}

// Embedder produces the vector for a piece of text.
type Embedder interface {
	Embed(ctx context.Context, input string) ([]float32, error)
}

// CosineDistance returns 1 minus the cosine similarity of a and b.
// Identical directions give 0, orthogonal vectors give 1. Mismatched or
// zero-magnitude vectors are treated as maximally distant.
func CosineDistance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 2
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 2
	}

	return 1 - dot/(math.Sqrt(normA)*math.Sqrt(normB))
}
