// Package cache provides a generic, thread-safe LRU cache with optional idle
// expiry and pinning.
//
// Pinned entries, decided by a predicate on the value, are never evicted to
// make room and never expired by Sweep:
//
//	c := cache.NewLRUCache[string, *Job](1000)
//	c.SetIdleTTL(30 * time.Minute)
//	c.SetPinned(func(j *Job) bool { return j.Running() })
//	c.SetEvictCallback(func(_ string, j *Job) { j.Cancel() })
//
//	if err := c.Put(id, job); errors.Is(err, cache.ErrFull) {
//		// every cached job is running
//	}
//
// Call Sweep periodically to drop idle entries.
package cache
