package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/credkit/pkg/ratelimiter"
)

// tokenBucketScript refills and consumes atomically. Time comes from the
// Redis server so instances with skewed clocks share one view.
//
// KEYS[1] bucket hash; ARGV: capacity, refill rate, interval ms, tokens.
// Returns {remaining, reset_at_ms}.
var tokenBucketScript = redis.NewScript(`
local capacity = tonumber(ARGV[1])
local rate = tonumber(ARGV[2])
local interval = tonumber(ARGV[3])
local want = tonumber(ARGV[4])

local t = redis.call('TIME')
local now = t[1] * 1000 + math.floor(t[2] / 1000)

local state = redis.call('HMGET', KEYS[1], 'tokens', 'refill')
local tokens = tonumber(state[1])
local refill = tonumber(state[2])
if tokens == nil then
  tokens = capacity
  refill = now
end

local intervals = math.floor((now - refill) / interval)
if intervals > 0 then
  intervals = math.min(intervals, math.floor(capacity / rate) + 1)
  tokens = math.min(tokens + intervals * rate, capacity)
  refill = now
end

local remaining = tokens - want
if remaining >= 0 then
  tokens = remaining
end

redis.call('HSET', KEYS[1], 'tokens', tokens, 'refill', refill)
redis.call('PEXPIRE', KEYS[1], interval * (math.floor(capacity / rate) + 1))
return {remaining, refill + interval}
`)

// RateStore is a ratelimiter.Store shared by every instance connected to the
// same Redis.
type RateStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRateStore creates a RateStore. Keys are stored under prefix.
func NewRateStore(client redis.UniversalClient, prefix string) *RateStore {
	if prefix == "" {
		prefix = "credkit:rl"
	}
	return &RateStore{client: client, prefix: prefix}
}

// ConsumeTokens implements ratelimiter.Store.
func (s *RateStore) ConsumeTokens(ctx context.Context, key string, tokens int, cfg ratelimiter.Config) (int, time.Time, error) {
	res, err := tokenBucketScript.Run(ctx, s.client, []string{s.prefix + ":" + key},
		cfg.Capacity, cfg.RefillRate, cfg.RefillInterval.Milliseconds(), tokens,
	).Int64Slice()
	if err != nil {
		return 0, time.Time{}, errors.Join(ErrRateLimitFailed, err)
	}
	if len(res) != 2 {
		return 0, time.Time{}, ErrRateLimitFailed
	}
	return int(res[0]), time.UnixMilli(res[1]), nil
}

// Reset implements ratelimiter.Store.
func (s *RateStore) Reset(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.prefix+":"+key).Err(); err != nil {
		return errors.Join(ErrRateLimitFailed, err)
	}
	return nil
}
