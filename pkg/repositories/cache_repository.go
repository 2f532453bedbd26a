package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/marianoelfernandez/ancap-ia-challenge-2025/pkg/apperrors"
	"github.com/marianoelfernandez/ancap-ia-challenge-2025/pkg/database"
	"github.com/marianoelfernandez/ancap-ia-challenge-2025/pkg/models"
)

// CacheRepository is the metadata store behind the semantic cache. It keeps
// the authoritative (text, sql, embedding, expiry) record for every vector
// in the index; the vector index itself only knows ids and embeddings.
type CacheRepository interface {
	Save(ctx context.Context, entry *models.CacheEntry) error
	Get(ctx context.Context, id uuid.UUID) (*models.CacheEntry, error)
	Delete(ctx context.Context, ids []uuid.UUID) error
	ListExpired(ctx context.Context, now time.Time, limit int) ([]*models.CacheEntry, error)
	ListAll(ctx context.Context) ([]*models.CacheEntry, error)
}

type cacheRepository struct {
	db *database.DB
}

// NewCacheRepository creates a new CacheRepository.
func NewCacheRepository(db *database.DB) CacheRepository {
	return &cacheRepository{db: db}
}

var _ CacheRepository = (*cacheRepository)(nil)

func (r *cacheRepository) Save(ctx context.Context, entry *models.CacheEntry) error {
	embeddingJSON, err := json.Marshal(entry.Embedding)
	if err != nil {
		return fmt.Errorf("failed to marshal embedding: %w", err)
	}

	query := `
		INSERT INTO query_cache (id, natural_query, sql_query, embedding, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err = r.db.Exec(ctx, query,
		entry.ID, entry.Text, entry.SQL, embeddingJSON, entry.CreatedAt, entry.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save cache entry: %w", err)
	}

	return nil
}

func (r *cacheRepository) Get(ctx context.Context, id uuid.UUID) (*models.CacheEntry, error) {
	query := `
		SELECT id, natural_query, sql_query, embedding, created_at, expires_at
		FROM query_cache
		WHERE id = $1`

	entry, err := scanCacheRow(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}

	return entry, nil
}

func (r *cacheRepository) Delete(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}

	_, err := r.db.Exec(ctx, `DELETE FROM query_cache WHERE id = ANY($1)`, ids)
	if err != nil {
		return fmt.Errorf("failed to delete cache entries: %w", err)
	}

	return nil
}

// ListExpired returns entries whose expiry is at or before now, oldest
// first, for the TTL sweep.
func (r *cacheRepository) ListExpired(ctx context.Context, now time.Time, limit int) ([]*models.CacheEntry, error) {
	query := `
		SELECT id, natural_query, sql_query, embedding, created_at, expires_at
		FROM query_cache
		WHERE expires_at <= $1
		ORDER BY expires_at ASC
		LIMIT $2`

	rows, err := r.db.Query(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list expired cache entries: %w", err)
	}
	defer rows.Close()

	return scanCacheRows(rows)
}

// ListAll returns every cache entry. Used by batch mode to rebuild the
// in-memory vector index from the metadata store.
func (r *cacheRepository) ListAll(ctx context.Context) ([]*models.CacheEntry, error) {
	query := `
		SELECT id, natural_query, sql_query, embedding, created_at, expires_at
		FROM query_cache
		ORDER BY created_at ASC`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list cache entries: %w", err)
	}
	defer rows.Close()

	return scanCacheRows(rows)
}

func scanCacheRows(rows pgx.Rows) ([]*models.CacheEntry, error) {
	var entries []*models.CacheEntry

	for rows.Next() {
		entry, err := scanCacheRow(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return entries, nil
}

func scanCacheRow(row pgx.Row) (*models.CacheEntry, error) {
	var entry models.CacheEntry
	var embeddingJSON []byte

	err := row.Scan(&entry.ID, &entry.Text, &entry.SQL, &embeddingJSON, &entry.CreatedAt, &entry.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan cache entry: %w", err)
	}

	if len(embeddingJSON) > 0 {
		if err := json.Unmarshal(embeddingJSON, &entry.Embedding); err != nil {
			return nil, fmt.Errorf("failed to unmarshal embedding: %w", err)
		}
	}

	return &entry, nil
}
