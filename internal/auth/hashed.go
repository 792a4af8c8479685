package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/crypto/argon2"

	"github.com/and161185/monitor/internal/errs"
)

// HashPrefix marks a configured token entry holding an argon2id hash instead of the token.
const HashPrefix = "argon2id$"

// Argon2id parameters for token hashes.
const (
	argonTime    uint32 = 2
	argonMemory  uint32 = 19 * 1024 // 19 MB
	argonThreads uint8  = 1
	argonKeyLen  uint32 = 32
	saltLen             = 16
)

var b64 = base64.RawStdEncoding

func hashToken(token, salt []byte) []byte {
	return argon2.IDKey(token, salt, argonTime, argonMemory, argonThreads, argonKeyLen)
}

// HashToken returns a config entry "argon2id$<salt>$<hash>" for token.
func HashToken(token string) (string, error) {
	if token == "" {
		return "", fmt.Errorf("%w: empty token", errs.ErrInvalidToken)
	}
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	return HashPrefix + b64.EncodeToString(salt) + "$" + b64.EncodeToString(hashToken([]byte(token), salt)), nil
}

type tokenHash struct {
	salt, sum []byte
}

// HashedTokens accepts bearers whose argon2id hash matches a configured entry,
// so the server config never holds the tokens themselves.
// Verified bearers are remembered by digest to skip rehashing on every call.
type HashedTokens struct {
	hashes []tokenHash

	mu       sync.Mutex
	verified map[[sha256.Size]byte]struct{}
}

var _ Authenticator = (*HashedTokens)(nil)

// NewHashedTokens parses entries produced by HashToken.
func NewHashedTokens(entries []string) (*HashedTokens, error) {
	h := &HashedTokens{verified: make(map[[sha256.Size]byte]struct{})}
	for i, e := range entries {
		parts := strings.Split(strings.TrimPrefix(e, HashPrefix), "$")
		if !strings.HasPrefix(e, HashPrefix) || len(parts) != 2 {
			return nil, fmt.Errorf("token hash %d: malformed entry", i)
		}
		salt, err := b64.DecodeString(parts[0])
		if err != nil {
			return nil, fmt.Errorf("token hash %d: salt: %w", i, err)
		}
		sum, err := b64.DecodeString(parts[1])
		if err != nil || len(sum) != int(argonKeyLen) {
			return nil, fmt.Errorf("token hash %d: bad hash", i)
		}
		h.hashes = append(h.hashes, tokenHash{salt: salt, sum: sum})
	}
	return h, nil
}

// Authenticate hashes bearer with every entry's salt and compares in constant time.
func (h *HashedTokens) Authenticate(_ context.Context, bearer string) (string, error) {
	if bearer == "" {
		return "", errs.ErrUnauthorized
	}
	digest := sha256.Sum256([]byte(bearer))
	h.mu.Lock()
	_, ok := h.verified[digest]
	h.mu.Unlock()
	if ok {
		return bearer, nil
	}

	for _, th := range h.hashes {
		if subtle.ConstantTimeCompare(hashToken([]byte(bearer), th.salt), th.sum) == 1 {
			h.mu.Lock()
			h.verified[digest] = struct{}{}
			h.mu.Unlock()
			return bearer, nil
		}
	}
	return "", errs.ErrUnauthorized
}

// NewTokens splits configured entries into plain and hashed tokens.
func NewTokens(entries []string) (Chain, error) {
	var plain, hashed []string
	for _, e := range entries {
		if strings.HasPrefix(e, HashPrefix) {
			hashed = append(hashed, e)
		} else {
			plain = append(plain, e)
		}
	}
	chain := Chain{NewStaticTokens(plain)}
	if len(hashed) > 0 {
		h, err := NewHashedTokens(hashed)
		if err != nil {
			return nil, err
		}
		chain = append(chain, h)
	}
	return chain, nil
}
