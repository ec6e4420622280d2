// Package ratelimiter throttles repeated actions per key with a token
// bucket held in memory.
//
//	l, err := ratelimiter.New(ratelimiter.Config{Capacity: 5, RefillInterval: time.Minute})
//	if res := l.Allow("user:42"); !res.Allowed {
//		w.Header().Set("Retry-After", strconv.Itoa(int(res.RetryAfter.Seconds())))
//	}
//
// Buckets of keys that went quiet are removed with Prune.
package ratelimiter
