// Package config loads typed configuration from the environment.
//
// It wraps github.com/joho/godotenv and github.com/caarlos0/env/v11: optional
// .env files are merged into the process environment (without overriding
// variables that are already set) and the environment is then parsed into a
// struct using `env` and `envDefault` field tags.
//
// Load returns a value. Nothing is cached in package state; the caller builds
// its configuration once at start-up and passes the resulting immutable values
// into constructors.
//
// If the struct implements Validator, Validate is called after parsing and a
// failure is reported as ErrInvalidConfig.
//
//	type Config struct {
//		DatabaseURL string        `env:"DATABASE_URL,required"`
//		OTPTTL      time.Duration `env:"OTP_TTL" envDefault:"5m"`
//	}
//
//	cfg, err := config.Load[Config]()
package config
