package jwt

import "errors"

var (
	// ErrInvalidToken is the only error Verify returns. Callers cannot tell a
	// bad signature from a wrong kind or an expired token.
	ErrInvalidToken = errors.New("jwt: invalid token")

	ErrMissingSigningKey = errors.New("jwt: missing signing key")
	ErrInvalidSigningKey = errors.New("jwt: signing key must be at least 32 bytes")
	ErrUnknownKeyID      = errors.New("jwt: unknown key id")
	ErrMissingSubject    = errors.New("jwt: missing subject")
	ErrInvalidKind       = errors.New("jwt: invalid token kind")
	ErrFailedToSign      = errors.New("jwt: failed to sign token")
)
