// Package pgpool constructs the shared pgxpool.Pool used by the document
// store and the lexical half of the index.
package pgpool

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"studycore/internal/config"
)

// Open parses cfg, applies pool-sizing defaults, and pings the database
// before returning so misconfiguration fails fast at startup rather than on
// the first query.
func Open(ctx context.Context, cfg config.PostgresConfig) (*pgxpool.Pool, error) {
	pcfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("pgpool: parse dsn: %w", err)
	}
	pcfg.MaxConns = cfg.MaxConns
	if pcfg.MaxConns <= 0 {
		pcfg.MaxConns = 20
	}
	pcfg.MinConns = cfg.MinConns
	pcfg.MaxConnLifetime = cfg.MaxConnLifetime
	if pcfg.MaxConnLifetime <= 0 {
		pcfg.MaxConnLifetime = time.Hour
	}
	pcfg.MaxConnIdleTime = cfg.MaxConnIdleTime
	if pcfg.MaxConnIdleTime <= 0 {
		pcfg.MaxConnIdleTime = 5 * time.Minute
	}
	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("pgpool: new pool: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pgpool: ping: %w", err)
	}
	return pool, nil
}
