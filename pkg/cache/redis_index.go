package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const redisVectorKeyPrefix = "semcache:vec:"

// redisIndex keeps one JSON-encoded vector per entry under a prefixed
// string key and scans the keyspace on search. At the cache sizes a
// one-day TTL produces, a brute-force scan is cheaper to operate than a
// dedicated vector store.
type redisIndex struct {
	client *redis.Client
}

var _ VectorIndex = (*redisIndex)(nil)

// NewRedisIndex creates a VectorIndex backed by Redis.
func NewRedisIndex(client *redis.Client) VectorIndex {
	return &redisIndex{client: client}
}

func (r *redisIndex) Upsert(ctx context.Context, id uuid.UUID, embedding []float32) error {
	data, err := json.Marshal(embedding)
	if err != nil {
		return fmt.Errorf("marshal embedding: %w", err)
	}

	if err := r.client.Set(ctx, redisVectorKeyPrefix+id.String(), data, 0).Err(); err != nil {
		return fmt.Errorf("store vector: %w", err)
	}
	return nil
}

func (r *redisIndex) Remove(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = redisVectorKeyPrefix + id.String()
	}

	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("remove vectors: %w", err)
	}
	return nil
}

func (r *redisIndex) FindNearest(ctx context.Context, embedding []float32, limit int) ([]Neighbor, error) {
	var neighbors []Neighbor

	iter := r.client.Scan(ctx, 0, redisVectorKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()

		data, err := r.client.Get(ctx, key).Bytes()
		if err != nil {
			if err == redis.Nil {
				continue
			}
			return nil, fmt.Errorf("fetch vector %s: %w", key, err)
		}

		var stored []float32
		if err := json.Unmarshal(data, &stored); err != nil {
			continue
		}

		id, err := uuid.Parse(strings.TrimPrefix(key, redisVectorKeyPrefix))
		if err != nil {
			continue
		}

		neighbors = append(neighbors, Neighbor{
			ID:       id,
			Distance: CosineDistance(embedding, stored),
		})
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan vectors: %w", err)
	}

	sort.Slice(neighbors, func(i, j int) bool {
		return neighbors[i].Distance < neighbors[j].Distance
	})
	if limit > 0 && len(neighbors) > limit {
		neighbors = neighbors[:limit]
	}

	return neighbors, nil
}
