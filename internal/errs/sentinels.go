// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across repo/service layers.
var (
	// ErrNotFound indicates the requested key does not exist in the store.
	ErrNotFound = errors.New("not found")

	// ErrCorruptRecord indicates stored bytes do not decode into a client record.
	// Such records are surfaced to the caller and never overwritten.
	ErrCorruptRecord = errors.New("corrupt record")

	// ErrStoreUnavailable indicates the backing key-value store could not be opened, read or written.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrKeyMismatch indicates an upsert was called with an empty merge key (interface name, mount path).
	ErrKeyMismatch = errors.New("empty merge key")

	// ErrInvalidToken indicates an empty client token was passed to the record store.
	ErrInvalidToken = errors.New("invalid client token")

	// ErrUnauthorized indicates failed authentication.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrRateLimited indicates a temporary lock after repeated authentication failures.
	ErrRateLimited = errors.New("rate limited")
)
