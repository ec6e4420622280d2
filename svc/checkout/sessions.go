package checkout

import (
	"errors"
	"time"

	"github.com/dmitrymomot/checkoutkit/pkg/cache"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionLimit    = errors.New("too many active sessions")
)

// SessionStore keeps sessions in memory. It holds at most capacity sessions,
// evicting the least recently used idle one when full, and drops sessions
// idle for longer than ttl on Sweep. Busy sessions are never evicted.
// Removed sessions are closed.
type SessionStore struct {
	sessions *cache.LRUCache[string, *Session]
}

// NewSessionStore creates a store. Panics if capacity is not positive.
func NewSessionStore(capacity int, ttl time.Duration) *SessionStore {
	return NewSessionStoreWithClock(capacity, ttl, time.Now)
}

// NewSessionStoreWithClock is NewSessionStore with an injectable clock.
func NewSessionStoreWithClock(capacity int, ttl time.Duration, now func() time.Time) *SessionStore {
	if capacity <= 0 {
		panic("session store capacity must be positive")
	}
	c := cache.NewLRUCache[string, *Session](capacity)
	c.SetClock(now)
	c.SetIdleTTL(ttl)
	c.SetPinned((*Session).Busy)
	c.SetEvictCallback(func(_ string, s *Session) { s.close() })
	return &SessionStore{sessions: c}
}

// Put adds a session. ErrSessionLimit is returned when the store is full
// and every session is busy.
func (st *SessionStore) Put(s *Session) error {
	if err := st.sessions.Put(s.ID, s); err != nil {
		if errors.Is(err, cache.ErrFull) {
			return ErrSessionLimit
		}
		return err
	}
	return nil
}

// Get returns a session and marks it as recently used.
func (st *SessionStore) Get(id string) (*Session, error) {
	s, ok := st.sessions.Get(id)
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Delete removes and closes a session.
func (st *SessionStore) Delete(id string) bool {
	_, ok := st.sessions.Remove(id)
	return ok
}

func (st *SessionStore) Len() int { return st.sessions.Len() }

// Sweep removes idle sessions unused for longer than the ttl and returns
// how many were removed.
func (st *SessionStore) Sweep() int { return st.sessions.Sweep() }

// Close closes and removes every session.
func (st *SessionStore) Close() { st.sessions.Clear() }
