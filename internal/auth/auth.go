// Package auth resolves bearer credentials to client tokens.
package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/and161185/monitor/internal/errs"
)

// Authenticator maps a bearer credential to the client token it stands for.
// Failures wrap errs.ErrUnauthorized.
type Authenticator interface {
	Authenticate(ctx context.Context, bearer string) (string, error)
}

// StaticTokens accepts a fixed list of client tokens; the bearer is the token itself.
type StaticTokens struct {
	tokens [][]byte
}

var _ Authenticator = (*StaticTokens)(nil)

// NewStaticTokens builds an authenticator over tokens. Empty entries are skipped.
func NewStaticTokens(tokens []string) *StaticTokens {
	s := &StaticTokens{}
	for _, t := range tokens {
		if t != "" {
			s.tokens = append(s.tokens, []byte(t))
		}
	}
	return s
}

// Authenticate compares bearer against every configured token in constant time.
func (s *StaticTokens) Authenticate(_ context.Context, bearer string) (string, error) {
	b := []byte(bearer)
	match := 0
	for _, t := range s.tokens {
		match |= subtle.ConstantTimeCompare(b, t)
	}
	if bearer == "" || match != 1 {
		return "", errs.ErrUnauthorized
	}
	return bearer, nil
}

// JWT accepts HS256 tokens whose subject is the client token.
type JWT struct {
	key    []byte
	leeway time.Duration
	now    func() time.Time
}

var _ Authenticator = (*JWT)(nil)

// NewJWT constructs a JWT authenticator with the given signing key and clock leeway.
func NewJWT(key []byte, leeway time.Duration) *JWT {
	return &JWT{key: key, leeway: leeway, now: time.Now}
}

// Issue signs a token for client valid for ttl.
func (j *JWT) Issue(client string, ttl time.Duration) (string, time.Time, error) {
	if client == "" {
		return "", time.Time{}, errors.New("validation: empty client token")
	}
	now := j.now()
	exp := now.Add(ttl)
	claims := jwt.RegisteredClaims{
		Subject:   client,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.key)
	return signed, exp, err
}

// Authenticate verifies signature and validity window and returns the subject.
func (j *JWT) Authenticate(_ context.Context, bearer string) (string, error) {
	var claims jwt.RegisteredClaims
	parsed, err := jwt.ParseWithClaims(bearer, &claims, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return j.key, nil
	}, jwt.WithoutClaimsValidation())
	if err != nil || !parsed.Valid {
		return "", fmt.Errorf("%w: invalid token", errs.ErrUnauthorized)
	}

	v := jwt.NewValidator(jwt.WithLeeway(j.leeway), jwt.WithTimeFunc(j.now), jwt.WithExpirationRequired())
	if err := v.Validate(&claims); err != nil {
		return "", fmt.Errorf("%w: %w", errs.ErrUnauthorized, err)
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("%w: empty subject", errs.ErrUnauthorized)
	}
	return claims.Subject, nil
}

// Chain tries each authenticator in order and returns the first success.
type Chain []Authenticator

var _ Authenticator = Chain(nil)

func (c Chain) Authenticate(ctx context.Context, bearer string) (string, error) {
	for _, a := range c {
		tok, err := a.Authenticate(ctx, bearer)
		if err == nil {
			return tok, nil
		}
		if !errors.Is(err, errs.ErrUnauthorized) {
			return "", err
		}
	}
	return "", errs.ErrUnauthorized
}
