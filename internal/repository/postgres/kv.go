package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/and161185/monitor/internal/errs"
	"github.com/and161185/monitor/internal/repository"
)

// KVStore implements repository.Opener over the kv_records table.
// Store names map to the namespace column; the table itself is created by migrations,
// so every namespace exists and createIfMissing has nothing to create.
type KVStore struct{ db *DB }

var _ repository.Opener = (*KVStore)(nil)

// NewKVStore constructs a Postgres-backed key-value store.
func NewKVStore(db *DB) *KVStore { return &KVStore{db: db} }

// Open checks the database is reachable and returns a handle bound to namespace name.
func (s *KVStore) Open(ctx context.Context, name string, _ bool) (repository.Handle, error) {
	if name == "" {
		return nil, errors.New("postgres kv: empty namespace")
	}
	if err := s.db.Pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("postgres kv: ping: %w", err)
	}
	return &kvHandle{db: s.db, ns: name}, nil
}

type kvHandle struct {
	db     *DB
	ns     string
	closed bool
}

func (h *kvHandle) Get(ctx context.Context, key string) ([]byte, error) {
	if h.closed {
		return nil, repository.ErrClosed
	}
	const q = `SELECT value FROM kv_records WHERE namespace=$1 AND key=$2`
	var value []byte
	if err := h.db.Pool.QueryRow(ctx, q, h.ns, key).Scan(&value); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return value, nil
}

func (h *kvHandle) Set(ctx context.Context, key string, value []byte) error {
	if h.closed {
		return repository.ErrClosed
	}
	if value == nil {
		value = []byte{}
	}
	const q = `INSERT INTO kv_records (namespace, key, value, updated_at) VALUES ($1,$2,$3,now()) ON CONFLICT (namespace, key) DO UPDATE SET value=EXCLUDED.value, updated_at=now()`
	_, err := h.db.Pool.Exec(ctx, q, h.ns, key, value)
	return err
}

func (h *kvHandle) Delete(ctx context.Context, key string) error {
	if h.closed {
		return repository.ErrClosed
	}
	const q = `DELETE FROM kv_records WHERE namespace=$1 AND key=$2`
	_, err := h.db.Pool.Exec(ctx, q, h.ns, key)
	return err
}

func (h *kvHandle) Close() error {
	if h.closed {
		return repository.ErrClosed
	}
	h.closed = true
	return nil
}
