// Package redis connects to Redis with go-redis and provides a lease-style
// Locker used to elect a single process for periodic jobs such as the expired
// challenge sweep, and a token bucket store for the ratelimiter package.
//
//	client, err := redis.Connect(ctx, cfg)
//	locker := redis.NewLocker(client)
//	sweeper := otp.NewSweeper(store, otp.WithLocker(locker))
package redis
