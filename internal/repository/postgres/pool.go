// Package postgres implements the key-value store contract on PostgreSQL.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/codeGROOVE-dev/retry"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	connectAttempts = 5
	connectDelay    = 500 * time.Millisecond
	connectMaxDelay = 5 * time.Second
)

// PgxPool is the part of a connection pool the store and the limiter use.
// *pgxpool.Pool and pgxmock.PgxPoolIface both satisfy it.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// DB owns the pool shared by every handle.
type DB struct{ Pool PgxPool }

// New parses dsn, opens a pool and waits until the server answers a ping.
// Pool settings such as pool_max_conns can be given in the DSN.
func New(ctx context.Context, dsn string) (*DB, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: new pool: %w", err)
	}
	db := &DB{Pool: pool}
	if err := db.waitReady(ctx, connectDelay); err != nil {
		pool.Close()
		return nil, err
	}
	return db, nil
}

// waitReady pings with backoff; a database started alongside the server may
// still be coming up.
func (db *DB) waitReady(ctx context.Context, delay time.Duration) error {
	err := retry.Do(func() error { return db.Pool.Ping(ctx) },
		retry.Attempts(connectAttempts),
		retry.Delay(delay),
		retry.MaxDelay(connectMaxDelay),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return fmt.Errorf("postgres: ping: %w", err)
	}
	return nil
}

// Close closes the underlying pool.
func (db *DB) Close() { db.Pool.Close() }
