package otp

import (
	"errors"
	"fmt"
)

var (
	ErrNoChallenge       = errors.New("otp: no active challenge")
	ErrExpired           = errors.New("otp: challenge expired")
	ErrAttemptsExhausted = errors.New("otp: maximum verification attempts exceeded")
	ErrInvalidCode       = errors.New("otp: invalid code")
	ErrInvalidConfig     = errors.New("otp: invalid configuration")
	ErrFailedToGenerate  = errors.New("otp: failed to generate code")
	ErrMissingStore      = errors.New("otp: missing store")

	// Store errors.
	ErrChallengeNotFound = errors.New("otp: challenge not found")
	ErrStale             = errors.New("otp: challenge state changed concurrently")
)

// InvalidCodeError reports a mismatched code together with the number of
// attempts left on the challenge.
type InvalidCodeError struct {
	Remaining int
}

func (e *InvalidCodeError) Error() string {
	return fmt.Sprintf("otp: invalid code, %d attempts remaining", e.Remaining)
}

func (e *InvalidCodeError) Unwrap() error { return ErrInvalidCode }
