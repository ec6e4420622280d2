package cache

import "errors"

// ErrFull is returned by Put when the cache is at capacity and every entry
// is pinned.
var ErrFull = errors.New("cache: full, all entries pinned")
