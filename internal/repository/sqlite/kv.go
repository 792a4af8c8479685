// Package sqlite implements the key-value store on top of single-file SQLite databases.
//
// Each store name maps to one database file under the configured directory.
// A connection is opened per Handle and closed with it; nothing is pooled.
package sqlite

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/and161185/monitor/internal/errs"
	"github.com/and161185/monitor/internal/repository"
)

const schema = `CREATE TABLE IF NOT EXISTS records (
	key   TEXT PRIMARY KEY NOT NULL,
	value BLOB NOT NULL
) WITHOUT ROWID`

var pragmas = []string{
	"PRAGMA busy_timeout=5000",
	"PRAGMA synchronous=NORMAL",
}

// Store opens database files under Dir.
type Store struct {
	Dir string
}

var _ repository.Opener = (*Store)(nil)

// New constructs a store rooted at dir.
func New(dir string) *Store { return &Store{Dir: dir} }

// Open opens (and optionally creates) the database file for name.
func (s *Store) Open(ctx context.Context, name string, createIfMissing bool) (repository.Handle, error) {
	if name == "" || filepath.Base(name) != name {
		return nil, fmt.Errorf("sqlite store: invalid name %q", name)
	}
	path := filepath.Join(s.Dir, name)

	flags := sqlite.OpenReadWrite | sqlite.OpenWAL
	if createIfMissing {
		flags |= sqlite.OpenCreate
	}
	conn, err := sqlite.OpenConn(path, flags)
	if err != nil {
		return nil, fmt.Errorf("sqlite store: open %s: %w", path, err)
	}
	conn.SetInterrupt(ctx.Done())

	for _, p := range pragmas {
		if err := sqlitex.ExecuteTransient(conn, p, nil); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("sqlite store: %s: %w", p, err)
		}
	}
	if createIfMissing {
		if err := sqlitex.ExecuteTransient(conn, schema, nil); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("sqlite store: schema: %w", err)
		}
	}
	return &handle{conn: conn}, nil
}

type handle struct {
	conn *sqlite.Conn
}

func (h *handle) Get(_ context.Context, key string) ([]byte, error) {
	if h.conn == nil {
		return nil, repository.ErrClosed
	}
	var (
		value []byte
		found bool
	)
	err := sqlitex.Execute(h.conn, `SELECT value FROM records WHERE key = ?`, &sqlitex.ExecOptions{
		Args: []any{key},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			value = make([]byte, stmt.ColumnLen(0))
			stmt.ColumnBytes(0, value)
			found = true
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("sqlite store: get: %w", err)
	}
	if !found {
		return nil, errs.ErrNotFound
	}
	return value, nil
}

func (h *handle) Set(_ context.Context, key string, value []byte) error {
	if h.conn == nil {
		return repository.ErrClosed
	}
	if value == nil {
		value = []byte{}
	}
	const q = `INSERT INTO records (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value`
	if err := sqlitex.Execute(h.conn, q, &sqlitex.ExecOptions{Args: []any{key, value}}); err != nil {
		return fmt.Errorf("sqlite store: set: %w", err)
	}
	return nil
}

func (h *handle) Delete(_ context.Context, key string) error {
	if h.conn == nil {
		return repository.ErrClosed
	}
	if err := sqlitex.Execute(h.conn, `DELETE FROM records WHERE key = ?`, &sqlitex.ExecOptions{Args: []any{key}}); err != nil {
		return fmt.Errorf("sqlite store: delete: %w", err)
	}
	return nil
}

func (h *handle) Close() error {
	if h.conn == nil {
		return repository.ErrClosed
	}
	conn := h.conn
	h.conn = nil
	conn.SetInterrupt(nil)
	if err := conn.Close(); err != nil {
		return errors.Join(errors.New("sqlite store: close"), err)
	}
	return nil
}
