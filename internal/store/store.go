// Package store is the persistence boundary over PostgreSQL. Monetary
// values round-trip through NUMERIC columns as strings so they never
// pass through binary floating point.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// ErrNotFound marks a lookup of a row that does not exist
var ErrNotFound = errors.New("not found")

// PgxPool is the pool surface the store uses. *pgxpool.Pool satisfies
// it, as does a pgxmock pool in tests.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// Store wraps the PostgreSQL connection pool
type Store struct {
	pool PgxPool
	log  zerolog.Logger
}

// New creates a store backed by a new connection pool
func New(ctx context.Context, dsn string, logger zerolog.Logger) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	cfg.MaxConnLifetime = time.Hour
	cfg.MaxConnIdleTime = 30 * time.Minute
	cfg.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info().Msg("Database connection pool created")
	return &Store{pool: pool, log: logger}, nil
}

// NewWithPool creates a store over an existing pool
func NewWithPool(pool PgxPool, logger zerolog.Logger) *Store {
	return &Store{pool: pool, log: logger}
}

// Close closes the underlying pool
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Ping checks database connectivity
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// decimalArg renders an optional decimal for a NUMERIC parameter
func decimalArg(d *decimal.Decimal) any {
	if d == nil {
		return nil
	}
	return d.String()
}

// parseDecimal converts a NUMERIC::text scan result
func parseDecimal(s *string) (*decimal.Decimal, error) {
	if s == nil {
		return nil, nil
	}
	d, err := decimal.NewFromString(*s)
	if err != nil {
		return nil, fmt.Errorf("bad numeric %q: %w", *s, err)
	}
	return &d, nil
}
