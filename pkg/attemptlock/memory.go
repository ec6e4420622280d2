package attemptlock

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory is a process-local Locker.
type Memory struct {
	mu     sync.Mutex
	leases map[string]Lease
	now    func() time.Time
}

var _ Locker = (*Memory)(nil)

// NewMemory creates an in-memory locker.
func NewMemory() *Memory {
	return &Memory{leases: make(map[string]Lease), now: time.Now}
}

// NewMemoryWithClock creates an in-memory locker with a custom clock.
func NewMemoryWithClock(now func() time.Time) *Memory {
	m := NewMemory()
	if now != nil {
		m.now = now
	}
	return m
}

// Acquire implements Locker.
func (m *Memory) Acquire(_ context.Context, key string, ttl time.Duration) (*Lease, error) {
	if ttl <= 0 {
		return nil, ErrInvalidTTL
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if held, ok := m.leases[key]; ok && now.Before(held.ExpiresAt) {
		return nil, ErrLocked
	}

	l := Lease{Key: key, Token: uuid.NewString(), ExpiresAt: now.Add(ttl)}
	m.leases[key] = l
	return &l, nil
}

// Release implements Locker.
func (m *Memory) Release(_ context.Context, lease *Lease) error {
	if lease == nil || lease.Key == "" {
		return ErrInvalidLease
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	held, ok := m.leases[lease.Key]
	if !ok || held.Token != lease.Token {
		return ErrLeaseLost
	}
	delete(m.leases, lease.Key)
	if !m.now().Before(held.ExpiresAt) {
		return ErrLeaseLost
	}
	return nil
}
