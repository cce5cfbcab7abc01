package redis

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Locker hands out short-lived exclusive leases with SET NX PX. A lease is
// never released early; it simply expires after its ttl.
type Locker struct {
	client redis.UniversalClient
	owner  string
}

// NewLocker creates a Locker. Each Locker has a random owner token that is
// stored as the lock value.
func NewLocker(client redis.UniversalClient) *Locker {
	return &Locker{client: client, owner: uuid.NewString()}
}

// TryLock takes key for ttl if nobody holds it. It returns true when the
// caller already holds the lease.
func (l *Locker) TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := l.client.SetNX(ctx, key, l.owner, ttl).Result()
	if err != nil {
		return false, errors.Join(ErrLockFailed, err)
	}
	if ok {
		return true, nil
	}

	holder, err := l.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, errors.Join(ErrLockFailed, err)
	}
	return holder == l.owner, nil
}
