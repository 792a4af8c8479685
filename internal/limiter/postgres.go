package limiter

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// PG is a PostgreSQL-backed limiter with a failure window and lockout.
type PG struct {
	pool     pgxQuerier
	window   time.Duration
	maxFails int
	blockFor time.Duration
}

var _ Limiter = (*PG)(nil)

type pgxQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// NewPG constructs a PostgreSQL-backed limiter over q (a pool or a mock).
func NewPG(q pgxQuerier, window time.Duration, maxFails int, blockFor time.Duration) *PG {
	return &PG{pool: q, window: window, maxFails: maxFails, blockFor: blockFor}
}

// Allow reports whether the peer may authenticate and a retry-after duration.
func (l *PG) Allow(ctx context.Context, peerHash []byte) (bool, time.Duration, error) {
	const q = `SELECT blocked_until FROM auth_limiter WHERE peer_hash=$1`
	var blockedUntil time.Time
	err := l.pool.QueryRow(ctx, q, peerHash).Scan(&blockedUntil)
	switch {
	case err == nil:
		if d := time.Until(blockedUntil); d > 0 {
			return false, d, nil
		}
		return true, 0, nil
	case errors.Is(err, pgx.ErrNoRows):
		return true, 0, nil
	default:
		return false, 0, err
	}
}

// Success resets counters for the peer.
func (l *PG) Success(ctx context.Context, peerHash []byte) error {
	const q = `
INSERT INTO auth_limiter (peer_hash, fail_count, blocked_until, updated_at)
VALUES ($1,0,'epoch',now())
ON CONFLICT (peer_hash)
DO UPDATE SET fail_count=0, blocked_until='epoch', updated_at=now()`
	_, err := l.pool.Exec(ctx, q, peerHash)
	return err
}

// Failure records a failed attempt; counters older than the window start over.
func (l *PG) Failure(ctx context.Context, peerHash []byte) (bool, time.Duration, error) {
	const q = `
INSERT INTO auth_limiter (peer_hash, fail_count, blocked_until, updated_at)
VALUES ($1,1,'epoch',now())
ON CONFLICT (peer_hash) DO UPDATE
SET
  fail_count = CASE WHEN now() - auth_limiter.updated_at > $2::interval THEN 1 ELSE auth_limiter.fail_count + 1 END,
  updated_at = now()
RETURNING fail_count`
	var fails int
	if err := l.pool.QueryRow(ctx, q, peerHash, l.window).Scan(&fails); err != nil {
		return false, 0, err
	}
	if fails < l.maxFails {
		return false, 0, nil
	}
	blockUntil := time.Now().Add(l.blockFor)
	const upd = `UPDATE auth_limiter SET blocked_until=$2 WHERE peer_hash=$1`
	if _, err := l.pool.Exec(ctx, upd, peerHash, blockUntil); err != nil {
		return false, 0, err
	}
	return true, l.blockFor, nil
}
