// Package memory implements an in-process key-value store for development and tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/and161185/monitor/internal/errs"
	"github.com/and161185/monitor/internal/repository"
)

// Store keeps named namespaces of key/value pairs in memory.
type Store struct {
	mu     sync.RWMutex
	spaces map[string]map[string][]byte
}

var _ repository.Opener = (*Store)(nil)

// New constructs an empty store.
func New() *Store { return &Store{spaces: make(map[string]map[string][]byte)} }

// Open returns a handle to namespace name, creating it when allowed.
func (s *Store) Open(_ context.Context, name string, createIfMissing bool) (repository.Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.spaces[name]; !ok {
		if !createIfMissing {
			return nil, fmt.Errorf("memory store %q: %w", name, errs.ErrNotFound)
		}
		s.spaces[name] = make(map[string][]byte)
	}
	return &handle{store: s, name: name}, nil
}

type handle struct {
	store  *Store
	name   string
	closed bool
}

func (h *handle) Get(_ context.Context, key string) ([]byte, error) {
	if h.closed {
		return nil, repository.ErrClosed
	}
	h.store.mu.RLock()
	defer h.store.mu.RUnlock()

	v, ok := h.store.spaces[h.name][key]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (h *handle) Set(_ context.Context, key string, value []byte) error {
	if h.closed {
		return repository.ErrClosed
	}
	h.store.mu.Lock()
	defer h.store.mu.Unlock()

	h.store.spaces[h.name][key] = append([]byte(nil), value...)
	return nil
}

func (h *handle) Delete(_ context.Context, key string) error {
	if h.closed {
		return repository.ErrClosed
	}
	h.store.mu.Lock()
	defer h.store.mu.Unlock()

	delete(h.store.spaces[h.name], key)
	return nil
}

func (h *handle) Close() error {
	if h.closed {
		return repository.ErrClosed
	}
	h.closed = true
	return nil
}
