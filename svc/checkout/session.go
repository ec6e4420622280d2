package checkout

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/dmitrymomot/checkoutkit/pkg/async"
	purchase "github.com/dmitrymomot/checkoutkit/pkg/checkout"
)

// Session is one user's checkout screen: a category, the selection made so
// far and at most one running purchase attempt.
type Session struct {
	ID         string
	UserID     string
	CategoryID string
	CreatedAt  time.Time

	token  string
	orch   *purchase.Orchestrator
	log    *slog.Logger
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	changed chan struct{}
	run     *async.Future[*purchase.Receipt]
	runDone bool
	receipt *purchase.Receipt
	notice  string
}

func newSession(parent context.Context, id, userID, categoryID, token string, now time.Time) *Session {
	ctx, cancel := context.WithCancel(parent)
	return &Session{
		ID:         id,
		UserID:     userID,
		CategoryID: categoryID,
		CreatedAt:  now,
		token:      token,
		ctx:        ctx,
		cancel:     cancel,
		changed:    make(chan struct{}),
	}
}

// Orchestrator returns the purchase flow driven by this session.
func (s *Session) Orchestrator() *purchase.Orchestrator { return s.orch }

// Busy reports whether a network call of the flow is in progress.
func (s *Session) Busy() bool {
	st := s.orch.State()
	return st.InFlight() || st == purchase.StateCouponPending
}

func (s *Session) authorized(token string) bool {
	return subtle.ConstantTimeCompare([]byte(s.token), []byte(token)) == 1
}

func (s *Session) lockKey() string {
	if s.UserID != "" {
		return "user:" + s.UserID
	}
	return "session:" + s.ID
}

// notify wakes everyone waiting for a change.
func (s *Session) notify() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifyLocked()
}

func (s *Session) notifyLocked() {
	close(s.changed)
	s.changed = make(chan struct{})
}

func (s *Session) changes() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.changed
}

// waitFor blocks until cond holds or ctx is done.
func (s *Session) waitFor(ctx context.Context, cond func() bool) error {
	for {
		ch := s.changes()
		if cond() {
			return nil
		}
		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (s *Session) setNotice(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notice = msg
	s.notifyLocked()
}

func (s *Session) snapshot() (notice string, receipt *purchase.Receipt) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.notice, s.receipt
}

func (s *Session) currentRun() *async.Future[*purchase.Receipt] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.run
}

// runFinished reports whether the latest attempt has ended.
func (s *Session) runFinished() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.run != nil && s.runDone
}

func (s *Session) finishRun(receipt *purchase.Receipt, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runDone = true
	s.receipt = receipt
	switch {
	case err == nil:
		s.notice = purchase.MessageActivated
	case errors.Is(err, purchase.ErrCancelled):
		s.notice = purchase.MessageCancelled
	default:
		s.notice = ""
	}
	s.notifyLocked()
}

// close cancels the session context, which dismisses an open checkout.
func (s *Session) close() { s.cancel() }
