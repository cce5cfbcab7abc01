package redis

import "errors"

var (
	ErrFailedToParseRedisConnString = errors.New("redis: failed to parse connection string")
	ErrRedisNotReady                = errors.New("redis: server did not become ready in time")
	ErrEmptyConnectionURL           = errors.New("redis: empty connection URL")
	ErrHealthcheckFailed            = errors.New("redis: healthcheck failed")
	ErrLockFailed                   = errors.New("redis: failed to acquire lock")
	ErrRateLimitFailed              = errors.New("redis: rate limit script failed")
)
