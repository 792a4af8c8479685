package limiter

import (
	"context"
	"sync"
	"time"
)

// Memory is an in-process limiter with the same semantics as PG.
type Memory struct {
	mu       sync.Mutex
	peers    map[string]*peerState
	window   time.Duration
	maxFails int
	blockFor time.Duration
	now      func() time.Time
}

type peerState struct {
	fails        int
	blockedUntil time.Time
	updatedAt    time.Time
}

var _ Limiter = (*Memory)(nil)

// NewMemory constructs an in-process limiter.
func NewMemory(window time.Duration, maxFails int, blockFor time.Duration) *Memory {
	return &Memory{
		peers:    make(map[string]*peerState),
		window:   window,
		maxFails: maxFails,
		blockFor: blockFor,
		now:      time.Now,
	}
}

func (m *Memory) Allow(_ context.Context, peerHash []byte) (bool, time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.peers[string(peerHash)]
	if !ok {
		return true, 0, nil
	}
	if d := st.blockedUntil.Sub(m.now()); d > 0 {
		return false, d, nil
	}
	return true, 0, nil
}

func (m *Memory) Success(_ context.Context, peerHash []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.peers, string(peerHash))
	return nil
}

func (m *Memory) Failure(_ context.Context, peerHash []byte) (bool, time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	st, ok := m.peers[string(peerHash)]
	if !ok {
		st = &peerState{}
		m.peers[string(peerHash)] = st
	}
	if now.Sub(st.updatedAt) > m.window {
		st.fails = 0
	}
	st.fails++
	st.updatedAt = now
	if st.fails < m.maxFails {
		return false, 0, nil
	}
	st.blockedUntil = now.Add(m.blockFor)
	return true, m.blockFor, nil
}
