package otp

import (
	"context"
	"time"
)

// Purpose scopes a challenge. Codes issued for one purpose never satisfy
// another.
type Purpose string

const (
	PurposeRegistration  Purpose = "registration"
	PurposePasswordReset Purpose = "password_reset"
)

// Challenge is a persisted one-time code. CodeHash is the only trace of the
// code that is ever stored.
type Challenge struct {
	ID        string
	UserID    string
	Purpose   Purpose
	CodeHash  string
	ExpiresAt time.Time
	Used      bool
	Attempts  int
	CreatedAt time.Time
}

// Expired reports whether the challenge is past its expiry at now.
func (c *Challenge) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// Store persists challenges. Implementations must make every method atomic
// against the shared data store, not just the current process.
type Store interface {
	// Issue marks every unused, unexpired challenge for (ch.UserID, ch.Purpose)
	// as used and inserts ch, as one atomic unit.
	Issue(ctx context.Context, ch *Challenge) error

	// Latest returns the most recently created unused challenge for the pair
	// or ErrChallengeNotFound.
	Latest(ctx context.Context, userID string, purpose Purpose) (*Challenge, error)

	// IncrementAttempts increments the counter only if the challenge is unused
	// and attempts < limit, returning the new count. Otherwise it returns
	// ErrStale.
	IncrementAttempts(ctx context.Context, id string, limit int) (int, error)

	// MarkUsed flips used from false to true, or returns ErrStale if it was
	// already true.
	MarkUsed(ctx context.Context, id string) error

	// DeleteExpired removes challenges that expired before the given time and
	// returns how many were removed.
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)

	// DeleteByUser removes every challenge owned by userID.
	DeleteByUser(ctx context.Context, userID string) error
}
