// Package ratelimiter throttles credential endpoints with a token bucket.
//
// A Bucket consumes tokens from a Store keyed by caller. MemoryStore keeps
// buckets in process; the redis package provides a shared store for
// multi-instance deployments.
//
//	store := ratelimiter.NewMemoryStore()
//	defer store.Close()
//
//	bucket, err := ratelimiter.NewBucket(store, ratelimiter.Config{
//		Capacity:       10,
//		RefillRate:     1,
//		RefillInterval: 6 * time.Second,
//	})
//
//	r.With(ratelimiter.Middleware(bucket, ratelimiter.ClientIP)).Post("/login", h.Login)
//
// Responses carry X-RateLimit-Limit, X-RateLimit-Remaining and
// X-RateLimit-Reset headers, plus Retry-After once the bucket is empty.
package ratelimiter
