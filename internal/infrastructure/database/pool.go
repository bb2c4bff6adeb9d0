package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/licitaware/procurement-match-backend/internal/infrastructure/config"
)

// Pool wraps a pgx connection pool. All repository writes that must be
// atomic per bid go through Transaction.
type Pool struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

func NewPool(ctx context.Context, cfg *config.DatabaseConfig, logger *zap.Logger) (*Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		poolConfig.MaxConns = int32(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		poolConfig.MinConns = int32(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.ConnMaxLifetime
	}
	poolConfig.MaxConnIdleTime = 10 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	poolConfig.ConnConfig.ConnectTimeout = 5 * time.Second
	poolConfig.ConnConfig.RuntimeParams = map[string]string{
		"application_name":  "procurement_match_backend",
		"timezone":          "UTC",
		"statement_timeout": "30s",
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("database connection pool initialized",
		zap.Int32("max_connections", poolConfig.MaxConns))

	return &Pool{pool: pool, logger: logger}, nil
}

// NewPoolFromPgx wraps an existing pgx pool; used by integration tests that
// manage their own container lifecycle.
func NewPoolFromPgx(pool *pgxpool.Pool, logger *zap.Logger) *Pool {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pool{pool: pool, logger: logger}
}

// Pgx exposes the underlying pool for single-statement queries.
func (p *Pool) Pgx() *pgxpool.Pool {
	return p.pool
}

// Transaction executes fn inside a database transaction, rolling back on
// error or panic.
func (p *Pool) Transaction(ctx context.Context, fn func(pgx.Tx) error) error {
	return pgx.BeginTxFunc(ctx, p.pool, pgx.TxOptions{}, fn)
}

func (p *Pool) Close() {
	p.pool.Close()
	p.logger.Info("database connection pool closed")
}
