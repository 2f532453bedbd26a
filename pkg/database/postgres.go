// Package database opens the PostgreSQL pool backing conversations, query
// history and cache metadata, and the Redis client backing the streaming
// vector index.
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/marianoelfernandez/ancap-ia-challenge-2025/pkg/config"
)

// DB wraps the pgx pool shared by all repositories.
type DB struct {
	*pgxpool.Pool
}

// NewConnection opens a pool sized from the service configuration and
// verifies it with a ping before handing it out.
func NewConnection(ctx context.Context, cfg *config.DatabaseConfig) (*DB, error) {
	pc, err := poolConfig(cfg)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &DB{Pool: pool}, nil
}

// poolConfig translates the service settings into a pgx pool config. Zero
// values keep the pgx defaults.
func poolConfig(cfg *config.DatabaseConfig) (*pgxpool.Config, error) {
	pc, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}

	if cfg.MaxConnections > 0 {
		pc.MaxConns = cfg.MaxConnections
	}
	if cfg.MaxConnLifetime > 0 {
		pc.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		pc.MaxConnIdleTime = cfg.MaxConnIdleTime
	}

	return pc, nil
}

// Close releases every pooled connection.
func (db *DB) Close() {
	db.Pool.Close()
}
