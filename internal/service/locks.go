package service

import (
	"context"
	"sync"
)

// tokenLocks hands out one mutex per client token.
// The table mutex only guards the map; entries are reference-counted and
// dropped once nobody holds or waits for them.
type tokenLocks struct {
	mu    sync.Mutex
	locks map[string]*tokenLock
}

type tokenLock struct {
	ch   chan struct{} // capacity 1; a value in the channel means "held"
	refs int
}

func newTokenLocks() *tokenLocks {
	return &tokenLocks{locks: make(map[string]*tokenLock)}
}

// acquire blocks until the lock for token is held or ctx is done.
// On success the returned func releases the lock; it must be called exactly once.
func (l *tokenLocks) acquire(ctx context.Context, token string) (func(), error) {
	l.mu.Lock()
	e, ok := l.locks[token]
	if !ok {
		e = &tokenLock{ch: make(chan struct{}, 1)}
		l.locks[token] = e
	}
	e.refs++
	l.mu.Unlock()

	select {
	case e.ch <- struct{}{}:
		return func() {
			<-e.ch
			l.unref(token, e)
		}, nil
	case <-ctx.Done():
		l.unref(token, e)
		return nil, ctx.Err()
	}
}

func (l *tokenLocks) unref(token string, e *tokenLock) {
	l.mu.Lock()
	e.refs--
	if e.refs == 0 {
		delete(l.locks, token)
	}
	l.mu.Unlock()
}

// size reports the number of live lock entries.
func (l *tokenLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
