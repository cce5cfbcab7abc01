package otp

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/credkit/pkg/logger"
)

// Config holds challenge parameters.
type Config struct {
	Length      int           `env:"OTP_LENGTH" envDefault:"6"`
	TTL         time.Duration `env:"OTP_TTL" envDefault:"5m"`
	MaxAttempts int           `env:"OTP_MAX_ATTEMPTS" envDefault:"3"`
	Pepper      string        `env:"OTP_PEPPER"`
}

// DefaultConfig returns the defaults used for zero fields.
func DefaultConfig() Config {
	return Config{Length: 6, TTL: 5 * time.Minute, MaxAttempts: 3}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Length == 0 {
		c.Length = d.Length
	}
	if c.TTL == 0 {
		c.TTL = d.TTL
	}
	if c.MaxAttempts == 0 {
		c.MaxAttempts = d.MaxAttempts
	}
	return c
}

func (c Config) validate() error {
	if c.Length < 4 || c.Length > 10 {
		return fmt.Errorf("%w: length must be between 4 and 10", ErrInvalidConfig)
	}
	if c.TTL < 0 {
		return fmt.Errorf("%w: ttl must be positive", ErrInvalidConfig)
	}
	if c.MaxAttempts < 1 {
		return fmt.Errorf("%w: max attempts must be at least 1", ErrInvalidConfig)
	}
	return nil
}

// maxCASRetries bounds re-reads after losing a conditional update.
const maxCASRetries = 3

// Manager issues and verifies challenges.
type Manager struct {
	store Store
	cfg   Config
	space *big.Int
	now   func() time.Time
	log   *slog.Logger
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithLogger sets the logger. Codes are never logged.
func WithLogger(l *slog.Logger) ManagerOption {
	return func(m *Manager) {
		if l != nil {
			m.log = l
		}
	}
}

// NewManager creates a Manager. Zero config fields take the defaults.
func NewManager(store Store, cfg Config, opts ...ManagerOption) (*Manager, error) {
	if store == nil {
		return nil, ErrMissingStore
	}
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	m := &Manager{
		store: store,
		cfg:   cfg,
		space: new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(cfg.Length)), nil),
		now:   time.Now,
		log:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Config returns the effective configuration.
func (m *Manager) Config() Config { return m.cfg }

// Issue creates a challenge for (userID, purpose), invalidating any prior
// outstanding one, and returns the plaintext code for delivery.
func (m *Manager) Issue(ctx context.Context, userID string, purpose Purpose) (string, *Challenge, error) {
	return m.IssueWithTTL(ctx, userID, purpose, m.cfg.TTL)
}

// IssueWithTTL is Issue with an explicit lifetime.
func (m *Manager) IssueWithTTL(ctx context.Context, userID string, purpose Purpose, ttl time.Duration) (string, *Challenge, error) {
	code, err := m.generate()
	if err != nil {
		return "", nil, err
	}

	now := m.now()
	ch := &Challenge{
		ID:        uuid.NewString(),
		UserID:    userID,
		Purpose:   purpose,
		CodeHash:  m.hash(code),
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}

	if err := m.store.Issue(ctx, ch); err != nil {
		return "", nil, fmt.Errorf("store challenge: %w", err)
	}

	m.log.DebugContext(ctx, "otp challenge issued",
		logger.Component("otp"),
		logger.UserID(userID),
		slog.String("purpose", string(purpose)),
		slog.String("challenge_id", ch.ID),
	)

	return code, ch, nil
}

// Discard removes every challenge of userID, whatever its purpose or state.
// Outstanding codes stop verifying immediately.
func (m *Manager) Discard(ctx context.Context, userID string) error {
	if err := m.store.DeleteByUser(ctx, userID); err != nil {
		return fmt.Errorf("discard challenges: %w", err)
	}
	return nil
}

// Verify checks candidate against the latest challenge for the pair.
//
// It returns nil on success, ErrNoChallenge, ErrExpired, ErrAttemptsExhausted
// or an *InvalidCodeError. Store failures are returned wrapped.
func (m *Manager) Verify(ctx context.Context, userID string, purpose Purpose, candidate string) error {
	for range maxCASRetries {
		err := m.verifyOnce(ctx, userID, purpose, candidate)
		if !errors.Is(err, ErrStale) {
			return err
		}
	}
	// Persistent contention: deny.
	m.log.WarnContext(ctx, "otp verification lost repeated races",
		logger.Component("otp"),
		logger.UserID(userID),
		slog.String("purpose", string(purpose)),
	)
	return ErrNoChallenge
}

func (m *Manager) verifyOnce(ctx context.Context, userID string, purpose Purpose, candidate string) error {
	ch, err := m.store.Latest(ctx, userID, purpose)
	if errors.Is(err, ErrChallengeNotFound) {
		return ErrNoChallenge
	}
	if err != nil {
		return fmt.Errorf("load challenge: %w", err)
	}

	if ch.Expired(m.now()) {
		return ErrExpired
	}

	if ch.Attempts >= m.cfg.MaxAttempts {
		if err := m.store.MarkUsed(ctx, ch.ID); err != nil && !errors.Is(err, ErrStale) {
			return fmt.Errorf("close exhausted challenge: %w", err)
		}
		return ErrAttemptsExhausted
	}

	attempts, err := m.store.IncrementAttempts(ctx, ch.ID, m.cfg.MaxAttempts)
	if err != nil {
		if errors.Is(err, ErrStale) {
			return ErrStale
		}
		return fmt.Errorf("increment attempts: %w", err)
	}

	if !hmac.Equal([]byte(m.hash(candidate)), []byte(ch.CodeHash)) {
		remaining := max(m.cfg.MaxAttempts-attempts, 0)
		m.log.DebugContext(ctx, "otp code mismatch",
			logger.Component("otp"),
			logger.UserID(userID),
			slog.String("purpose", string(purpose)),
			slog.Int("remaining", remaining),
		)
		return &InvalidCodeError{Remaining: remaining}
	}

	if err := m.store.MarkUsed(ctx, ch.ID); err != nil {
		if errors.Is(err, ErrStale) {
			// Consumed by a concurrent verification.
			return ErrNoChallenge
		}
		return fmt.Errorf("consume challenge: %w", err)
	}

	return nil
}

func (m *Manager) generate() (string, error) {
	n, err := rand.Int(rand.Reader, m.space)
	if err != nil {
		return "", errors.Join(ErrFailedToGenerate, err)
	}
	return fmt.Sprintf("%0*d", m.cfg.Length, n), nil
}

func (m *Manager) hash(code string) string {
	mac := hmac.New(sha256.New, []byte(m.cfg.Pepper))
	mac.Write([]byte(code))
	return hex.EncodeToString(mac.Sum(nil))
}
