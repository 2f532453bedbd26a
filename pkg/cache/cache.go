package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/marianoelfernandez/ancap-ia-challenge-2025/pkg/apperrors"
	"github.com/marianoelfernandez/ancap-ia-challenge-2025/pkg/config"
	"github.com/marianoelfernandez/ancap-ia-challenge-2025/pkg/logging"
	"github.com/marianoelfernandez/ancap-ia-challenge-2025/pkg/models"
)

// Hit is a successful cache lookup.
type Hit struct {
	Entry    *models.CacheEntry
	Distance float64
}

// SemanticCache answers "have we already translated a question that means
// the same thing" by embedding the incoming text and searching the vector
// index, then confirming the winning entry is still alive in the store.
type SemanticCache struct {
	index    VectorIndex
	store    MetadataStore
	embedder Embedder

	threshold float64
	ttl       time.Duration
	neighbors int
	streaming bool

	logger *zap.Logger
}

// New creates a semantic cache from the cache section of the config.
func New(index VectorIndex, store MetadataStore, embedder Embedder, cfg *config.CacheConfig, logger *zap.Logger) *SemanticCache {
	return &SemanticCache{
		index:     index,
		store:     store,
		embedder:  embedder,
		threshold: cfg.DistanceThreshold,
		ttl:       cfg.TTL,
		neighbors: cfg.Neighbors,
		streaming: cfg.Mode == config.CacheModeStreaming,
		logger:    logger.Named("cache"),
	}
}

// Lookup searches for an entry semantically close to text. A candidate is
// accepted only when its cosine distance is at or below the threshold and
// its metadata row still exists and has not expired. A nil Hit with a nil
// error is a miss. Index failures degrade to a miss; an embedding failure
// is ErrCacheUnavailable because nothing could be searched at all.
func (c *SemanticCache) Lookup(ctx context.Context, text string) (*Hit, error) {
	embedding, err := c.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrCacheUnavailable, err)
	}

	neighbors, err := c.index.FindNearest(ctx, embedding, c.neighbors)
	if err != nil {
		c.logger.Warn("vector search failed, treating as miss", zap.Error(err))
		return nil, nil
	}

	now := time.Now()
	for _, n := range neighbors {
		if n.Distance > c.threshold {
			// Neighbors arrive closest first; the rest are farther still.
			break
		}

		entry, err := c.store.Get(ctx, n.ID)
		if err != nil {
			if !errors.Is(err, apperrors.ErrNotFound) {
				c.logger.Warn("cache metadata fetch failed",
					zap.String("id", n.ID.String()), zap.Error(err))
			}
			continue
		}
		if entry.Expired(now) {
			continue
		}

		c.logger.Info("semantic cache hit",
			zap.String("id", entry.ID.String()),
			zap.Float64("distance", n.Distance),
			zap.String("query", logging.TruncateString(text, logging.MaxQueryLogLength)))
		return &Hit{Entry: entry, Distance: n.Distance}, nil
	}

	return nil, nil
}

// Store saves a translation for future lookups. The metadata row is written
// first so the index never points at nothing. In streaming mode an index
// upsert failure is logged and swallowed; the janitor or a batch rebuild
// will reconcile the index later.
func (c *SemanticCache) Store(ctx context.Context, text, sqlQuery string) (*models.CacheEntry, error) {
	embedding, err := c.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed cache entry: %w", err)
	}

	now := time.Now()
	entry := &models.CacheEntry{
		ID:        uuid.New(),
		Text:      text,
		SQL:       sqlQuery,
		Embedding: embedding,
		CreatedAt: now,
		ExpiresAt: now.Add(c.ttl),
	}

	if err := c.store.Save(ctx, entry); err != nil {
		return nil, fmt.Errorf("save cache entry: %w", err)
	}

	if err := c.index.Upsert(ctx, entry.ID, embedding); err != nil {
		if c.streaming {
			c.logger.Warn("index upsert failed, entry stored without vector",
				zap.String("id", entry.ID.String()), zap.Error(err))
			return entry, nil
		}
		return nil, fmt.Errorf("index cache entry: %w", err)
	}

	return entry, nil
}

// PurgeExpired removes entries past their TTL. Vectors are removed from the
// index before the metadata rows are deleted, never the reverse, so a crash
// mid-purge leaves orphan metadata rather than dangling index hits.
func (c *SemanticCache) PurgeExpired(ctx context.Context, batchSize int) (int, error) {
	expired, err := c.store.ListExpired(ctx, time.Now(), batchSize)
	if err != nil {
		return 0, fmt.Errorf("list expired cache entries: %w", err)
	}
	if len(expired) == 0 {
		return 0, nil
	}

	ids := make([]uuid.UUID, len(expired))
	for i, e := range expired {
		ids[i] = e.ID
	}

	if err := c.index.Remove(ctx, ids); err != nil {
		return 0, fmt.Errorf("remove expired vectors: %w", err)
	}
	if err := c.store.Delete(ctx, ids); err != nil {
		return 0, fmt.Errorf("delete expired cache entries: %w", err)
	}

	c.logger.Info("purged expired cache entries", zap.Int("count", len(ids)))
	return len(ids), nil
}

// RunJanitor purges expired entries on the given interval until ctx is done.
func (c *SemanticCache) RunJanitor(ctx context.Context, interval time.Duration, batchSize int) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := c.PurgeExpired(ctx, batchSize); err != nil {
				c.logger.Error("cache purge failed", zap.Error(err))
			}
		}
	}
}
