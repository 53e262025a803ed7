package cache

import "errors"

// Sentinels returned by every Cache implementation. Session and metrics
// callers treat ErrCacheMiss as "load from the database" and the other two
// as a degraded cache that the database can still answer for.
var (
	ErrCacheMiss        = errors.New("cache: miss")
	ErrCacheUnavailable = errors.New("cache: redis unreachable")
	ErrInvalidValue     = errors.New("cache: stored value does not decode")
)
