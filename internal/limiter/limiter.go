// Package limiter locks out peers that repeatedly fail authentication.
package limiter

import (
	"context"
	"crypto/sha256"
	"time"
)

// Limiter tracks failed authentications per peer and applies temporary lockouts.
type Limiter interface {
	// Allow reports whether the peer may authenticate now and, if not, for how long it is locked.
	Allow(ctx context.Context, peerHash []byte) (bool, time.Duration, error)
	// Success resets the peer's counters.
	Success(ctx context.Context, peerHash []byte) error
	// Failure records a failed attempt and reports whether the peer is now locked.
	Failure(ctx context.Context, peerHash []byte) (bool, time.Duration, error)
}

// HashPeer returns a stable hash of a peer address so raw addresses are never stored.
func HashPeer(addr string) []byte {
	h := sha256.Sum256([]byte(addr))
	return h[:]
}
