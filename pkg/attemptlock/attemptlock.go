package attemptlock

import (
	"context"
	"errors"
	"time"
)

var (
	ErrLocked       = errors.New("attemptlock: key is already leased")
	ErrLeaseLost    = errors.New("attemptlock: lease expired or taken over")
	ErrInvalidLease = errors.New("attemptlock: invalid lease")
	ErrInvalidTTL   = errors.New("attemptlock: ttl must be positive")
)

// Lease is a held lock. Token identifies the holder.
type Lease struct {
	Key       string
	Token     string
	ExpiresAt time.Time
}

// Locker hands out exclusive leases on keys.
type Locker interface {
	// Acquire leases key for ttl, failing with ErrLocked when someone else holds it.
	Acquire(ctx context.Context, key string, ttl time.Duration) (*Lease, error)
	// Release gives the lease back. ErrLeaseLost means it had already expired.
	Release(ctx context.Context, lease *Lease) error
}
