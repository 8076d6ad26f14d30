// Package postgres persists random sequence state in PostgreSQL using pgx v5.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cory-johannsen/lootgen/internal/config"
)

// Connect opens a connection pool sized by cfg and pings it.
//
// Precondition: cfg must contain valid database connection parameters.
// Postcondition: Returns a pool that answered a ping, or a non-nil error.
func Connect(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parsing database config: %w", err)
	}
	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return pool, nil
}

// Open connects to the configured database and returns a repository that
// owns the pool.
//
// Postcondition: Close must be called to release the pool.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*SequenceRepository, error) {
	pool, err := Connect(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &SequenceRepository{db: pool, owned: true}, nil
}

// Health reports whether the database answers within timeout.
func (r *SequenceRepository) Health(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return r.db.Ping(ctx)
}

// Close releases the pool if the repository opened it.
func (r *SequenceRepository) Close() {
	if r.owned {
		r.db.Close()
	}
}
