package config

import "errors"

var (
	ErrParsingConfig = errors.New("config: failed to parse environment")
	ErrInvalidConfig = errors.New("config: invalid configuration")
	ErrLoadingEnv    = errors.New("config: failed to load env file")
)
