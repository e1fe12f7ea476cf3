package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	pool *pgxpool.Pool
	once sync.Once
)

// Schema for the valuation history table
const Schema = `
CREATE TABLE IF NOT EXISTS dcf_valuations (
	id          UUID PRIMARY KEY,
	ticker      TEXT NOT NULL,
	strategy    TEXT NOT NULL,
	record_json JSONB NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS dcf_valuations_ticker_idx ON dcf_valuations (ticker, created_at DESC);
`

// InitDB initializes the shared connection pool and applies the schema
func InitDB(ctx context.Context, databaseURL string) error {
	var err error
	once.Do(func() {
		if databaseURL == "" {
			err = fmt.Errorf("database URL not set")
			return
		}

		config, parseErr := pgxpool.ParseConfig(databaseURL)
		if parseErr != nil {
			err = fmt.Errorf("failed to parse database config: %w", parseErr)
			return
		}

		pool, err = pgxpool.NewWithConfig(ctx, config)
		if err != nil {
			return
		}
		if _, execErr := pool.Exec(ctx, Schema); execErr != nil {
			err = fmt.Errorf("failed to apply schema: %w", execErr)
		}
	})
	return err
}

// GetPool returns the database connection pool
func GetPool() *pgxpool.Pool {
	return pool
}

// Close closes the database connection pool
func Close() {
	if pool != nil {
		pool.Close()
	}
}
