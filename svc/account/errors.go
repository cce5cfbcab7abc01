package account

import "errors"

// Store errors. Adapters return these so the service can translate them.
var (
	ErrUserNotFound       = errors.New("account: user not found")
	ErrUserExists         = errors.New("account: user already exists")
	ErrEnrollmentNotFound = errors.New("account: totp enrollment not found")
	ErrStale              = errors.New("account: record state changed concurrently")
)

var (
	ErrMissingDependency = errors.New("account: missing dependency")
)
