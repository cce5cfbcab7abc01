package password

import "errors"

var (
	ErrEmptySecret       = errors.New("password: secret must not be empty")
	ErrInvalidDigest     = errors.New("password: invalid digest format")
	ErrIncompatible      = errors.New("password: incompatible argon2 version")
	ErrFailedToHash      = errors.New("password: failed to hash secret")
	ErrFailedToReadSalt  = errors.New("password: failed to read random salt")
	ErrInvalidParameters = errors.New("password: invalid hashing parameters")
)
