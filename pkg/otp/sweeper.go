package otp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dmitrymomot/credkit/pkg/logger"
)

// Locker grants one process the right to sweep for a while. TryLock returns
// false without error when another holder owns the lock.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

const sweepLockKey = "credkit:otp:sweep"

// Sweeper deletes expired challenges on an interval.
type Sweeper struct {
	store    Store
	interval time.Duration
	grace    time.Duration
	locker   Locker
	now      func() time.Time
	log      *slog.Logger
	onSweep  func(deleted int64)
}

// SweeperOption configures a Sweeper.
type SweeperOption func(*Sweeper)

// WithInterval sets the time between sweeps. Default 10 minutes.
func WithInterval(d time.Duration) SweeperOption {
	return func(s *Sweeper) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithGrace keeps challenges for an extra period after expiry.
func WithGrace(d time.Duration) SweeperOption {
	return func(s *Sweeper) {
		if d >= 0 {
			s.grace = d
		}
	}
}

// WithLocker makes only the lock holder sweep on each tick.
func WithLocker(l Locker) SweeperOption {
	return func(s *Sweeper) { s.locker = l }
}

// WithSweeperClock replaces time.Now.
func WithSweeperClock(now func() time.Time) SweeperOption {
	return func(s *Sweeper) {
		if now != nil {
			s.now = now
		}
	}
}

// WithSweeperLogger sets the logger.
func WithSweeperLogger(l *slog.Logger) SweeperOption {
	return func(s *Sweeper) {
		if l != nil {
			s.log = l
		}
	}
}

// WithOnSweep registers a callback invoked after every successful sweep.
func WithOnSweep(fn func(deleted int64)) SweeperOption {
	return func(s *Sweeper) { s.onSweep = fn }
}

// NewSweeper creates a Sweeper for store.
func NewSweeper(store Store, opts ...SweeperOption) *Sweeper {
	s := &Sweeper{
		store:    store,
		interval: 10 * time.Minute,
		now:      time.Now,
		log:      slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RunOnce performs one sweep and returns the number of deleted challenges.
// It returns zero without error when another process holds the lock.
func (s *Sweeper) RunOnce(ctx context.Context) (int64, error) {
	if s.locker != nil {
		ok, err := s.locker.TryLock(ctx, sweepLockKey, s.interval)
		if err != nil {
			return 0, fmt.Errorf("acquire sweep lock: %w", err)
		}
		if !ok {
			return 0, nil
		}
	}

	start := s.now()
	deleted, err := s.store.DeleteExpired(ctx, start.Add(-s.grace))
	if err != nil {
		s.log.ErrorContext(ctx, "otp sweep failed",
			logger.Component("otp.sweeper"),
			logger.Error(err),
		)
		return 0, fmt.Errorf("delete expired challenges: %w", err)
	}

	s.log.InfoContext(ctx, "otp sweep completed",
		logger.Component("otp.sweeper"),
		slog.Int64("deleted_count", deleted),
		logger.Duration(s.now().Sub(start)),
	)
	if s.onSweep != nil {
		s.onSweep(deleted)
	}
	return deleted, nil
}

// Run sweeps on every tick until ctx is cancelled. Failed sweeps are logged
// and retried on the next tick.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		case <-ticker.C:
			_, _ = s.RunOnce(ctx)
		}
	}
}
