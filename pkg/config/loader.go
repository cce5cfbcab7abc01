package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Validator is implemented by configuration structs with cross-field rules.
type Validator interface {
	Validate() error
}

// Load reads the default .env file if present and parses the environment
// into a new T.
func Load[T any]() (T, error) {
	return LoadFrom[T](".env")
}

// LoadFrom is Load with explicit env files. Missing files are skipped; files
// listed first take precedence, and real environment variables win over all
// of them.
func LoadFrom[T any](files ...string) (T, error) {
	var cfg T

	if err := loadEnvFiles(files...); err != nil {
		return cfg, err
	}

	if err := env.Parse(&cfg); err != nil {
		return cfg, errors.Join(ErrParsingConfig, err)
	}

	if v, ok := any(&cfg).(Validator); ok {
		if err := v.Validate(); err != nil {
			return cfg, errors.Join(ErrInvalidConfig, err)
		}
	}

	return cfg, nil
}

// MustLoad is Load that panics on failure.
func MustLoad[T any]() T {
	cfg, err := Load[T]()
	if err != nil {
		panic(fmt.Sprintf("failed to load required configuration: %v", err))
	}
	return cfg
}

func loadEnvFiles(files ...string) error {
	existing := make([]string, 0, len(files))
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	if err := godotenv.Load(existing...); err != nil {
		return errors.Join(ErrLoadingEnv, err)
	}
	return nil
}
