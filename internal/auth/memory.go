package auth

import (
	"context"
	"sync"
	"time"
)

// MemoryRevocations is the RevocationStore of the memory backend. Entries
// expire like the persisted ones; it only lacks durability.
type MemoryRevocations struct {
	mu      sync.Mutex
	entries map[string]time.Time
}

var _ RevocationStore = (*MemoryRevocations)(nil)

func NewMemoryRevocations() *MemoryRevocations {
	return &MemoryRevocations{entries: make(map[string]time.Time)}
}

func (m *MemoryRevocations) RevokeToken(_ context.Context, jti string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if prev, ok := m.entries[jti]; !ok || expiresAt.After(prev) {
		m.entries[jti] = expiresAt
	}
	return nil
}

func (m *MemoryRevocations) IsRevoked(_ context.Context, jti string, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	exp, ok := m.entries[jti]
	return ok && exp.After(now), nil
}

func (m *MemoryRevocations) PurgeRevoked(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for jti, exp := range m.entries {
		if !exp.After(now) {
			delete(m.entries, jti)
			n++
		}
	}
	return n, nil
}
