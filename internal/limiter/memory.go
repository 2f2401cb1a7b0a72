package limiter

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	fails        int
	updatedAt    time.Time
	blockedUntil time.Time
}

// Memory is an in-process limiter with the same policy as PG.
type Memory struct {
	mu        sync.Mutex
	entries   map[string]*entry
	policy    Policy
	now       func() time.Time
	lastSweep time.Time
}

var _ Limiter = (*Memory)(nil)

// NewMemory constructs an in-process limiter.
func NewMemory(p Policy) *Memory {
	return &Memory{entries: make(map[string]*entry), policy: p, now: time.Now}
}

func key(identifier string, ipHash []byte) string { return identifier + "\x00" + string(ipHash) }

// Allow reports whether login is currently allowed and a retry-after duration.
func (m *Memory) Allow(_ context.Context, identifier string, ipHash []byte) (bool, time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.sweep(now)
	k := key(identifier, ipHash)
	e, ok := m.entries[k]
	if !ok {
		return true, 0, nil
	}
	if e.blockedUntil.After(now) {
		return false, e.blockedUntil.Sub(now), nil
	}
	if m.stale(e, now) {
		delete(m.entries, k)
	}
	return true, 0, nil
}

// Success forgets the pair.
func (m *Memory) Success(_ context.Context, identifier string, ipHash []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key(identifier, ipHash))
	return nil
}

// Failure records a failed attempt; may set a block until a future time.
func (m *Memory) Failure(_ context.Context, identifier string, ipHash []byte) (bool, time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.sweep(now)
	k := key(identifier, ipHash)
	e, ok := m.entries[k]
	if !ok {
		e = &entry{}
		m.entries[k] = e
	}
	if ok && now.Sub(e.updatedAt) > m.policy.Window {
		e.fails = 0
	}
	e.fails++
	e.updatedAt = now

	if e.fails < m.policy.MaxFails {
		return false, 0, nil
	}
	e.blockedUntil = now.Add(m.policy.BlockFor)
	return true, m.policy.BlockFor, nil
}

// stale reports an entry whose window has passed and whose block, if any, is over.
func (m *Memory) stale(e *entry, now time.Time) bool {
	return now.Sub(e.updatedAt) > m.policy.Window && !e.blockedUntil.After(now)
}

// sweep drops stale entries, at most once per window.
func (m *Memory) sweep(now time.Time) {
	if now.Sub(m.lastSweep) < m.policy.Window {
		return
	}
	m.lastSweep = now
	for k, e := range m.entries {
		if m.stale(e, now) {
			delete(m.entries, k)
		}
	}
}
