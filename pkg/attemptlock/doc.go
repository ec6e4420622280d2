// Package attemptlock leases a key for the duration of a purchase attempt so
// that a user has at most one attempt in flight, across process replicas
// when backed by Redis.
//
//	lease, err := locks.Acquire(ctx, "user:42", time.Hour)
//	if errors.Is(err, attemptlock.ErrLocked) {
//	    // another attempt is running
//	}
//	defer locks.Release(context.WithoutCancel(ctx), lease)
package attemptlock
