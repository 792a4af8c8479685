// Package repository defines storage interfaces implemented by concrete backends.
package repository

import (
	"context"
	"errors"
)

// ErrClosed is returned by Handle methods called after Close.
var ErrClosed = errors.New("handle closed")

// Opener opens named key-value stores. Every Handle it returns is meant for a
// single operation: open immediately before use and close on every exit path.
type Opener interface {
	// Open returns a handle to the store called name. With createIfMissing
	// unset, opening a store that does not exist fails.
	Open(ctx context.Context, name string, createIfMissing bool) (Handle, error)
}

// Handle is a scoped view of one key-value store. It offers no transactions;
// callers that need read-modify-write atomicity provide their own locking.
// A Handle is not reusable after Close.
type Handle interface {
	// Get returns the value stored under key, or errs.ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key string, value []byte) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// Close releases the handle.
	Close() error
}
