package rate

import "errors"

var (
	// ErrRateLimited is returned once a fixed window has been exhausted.
	ErrRateLimited = errors.New("rate limited")
	// ErrRedisUnavailable wraps counter read/write failures.
	ErrRedisUnavailable = errors.New("redis unavailable")
)
