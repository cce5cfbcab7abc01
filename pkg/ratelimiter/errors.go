package ratelimiter

import "errors"

var (
	ErrInvalidConfig     = errors.New("ratelimiter: invalid configuration")
	ErrInvalidTokenCount = errors.New("ratelimiter: invalid token count")
	ErrMissingStore      = errors.New("ratelimiter: store is required")
	ErrLimited           = errors.New("ratelimiter: too many requests")
)
