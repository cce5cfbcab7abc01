package totp

import "errors"

var (
	ErrFailedToGenerateSecretKey = errors.New("totp: failed to generate secret key")
	ErrMissingSecret             = errors.New("totp: missing secret")
	ErrInvalidSecret             = errors.New("totp: invalid secret")
	ErrMissingAccountName        = errors.New("totp: missing account name")
	ErrMissingIssuer             = errors.New("totp: missing issuer")
	ErrInvalidOTP                = errors.New("totp: invalid code format")
	ErrInvalidSkew               = errors.New("totp: skew must not be negative")
)
