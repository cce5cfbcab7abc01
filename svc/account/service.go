package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/dmitrymomot/credkit/core"
	"github.com/dmitrymomot/credkit/pkg/jwt"
	"github.com/dmitrymomot/credkit/pkg/logger"
	"github.com/dmitrymomot/credkit/pkg/metrics"
	"github.com/dmitrymomot/credkit/pkg/otp"
	"github.com/dmitrymomot/credkit/pkg/password"
	"github.com/dmitrymomot/credkit/pkg/secrets"
	"github.com/dmitrymomot/credkit/pkg/validator"
)

// TOTPSecretContext separates TOTP secrets from documents sealed with the
// same master key.
const TOTPSecretContext = "credkit/totp/v1"

// Config holds account service settings.
type Config struct {
	TOTPIssuer    string        `env:"TOTP_ISSUER" envDefault:"Secure Job Platform"`
	NotifyTimeout time.Duration `env:"NOTIFY_TIMEOUT" envDefault:"30s"`
}

// Deps are the collaborators of a Service. All of them are required.
type Deps struct {
	Users       UserStore
	Enrollments EnrollmentStore
	Challenges  *otp.Manager
	Hasher      *password.Hasher
	Tokens      *jwt.Service
	Secrets     *secrets.Cipher
	Notifier    Notifier
}

func (d Deps) validate() error {
	switch {
	case d.Users == nil:
		return fmt.Errorf("%w: user store", ErrMissingDependency)
	case d.Enrollments == nil:
		return fmt.Errorf("%w: enrollment store", ErrMissingDependency)
	case d.Challenges == nil:
		return fmt.Errorf("%w: otp manager", ErrMissingDependency)
	case d.Hasher == nil:
		return fmt.Errorf("%w: password hasher", ErrMissingDependency)
	case d.Tokens == nil:
		return fmt.Errorf("%w: token service", ErrMissingDependency)
	case d.Secrets == nil:
		return fmt.Errorf("%w: secrets cipher", ErrMissingDependency)
	case d.Notifier == nil:
		return fmt.Errorf("%w: notifier", ErrMissingDependency)
	}
	return nil
}

// DeleteHook runs before a user record is deleted, for cleanup the store
// cascade cannot reach.
type DeleteHook func(ctx context.Context, userID string) error

// Service implements the account operations.
type Service struct {
	deps       Deps
	cfg        Config
	policy     validator.PasswordPolicy
	now        func() time.Time
	log        *slog.Logger
	metrics    metrics.Recorder
	syncNotify bool
	onDelete   []DeleteHook
	notifyWG   sync.WaitGroup

	// decoy is verified against when the email is unknown so both paths
	// pay for one hash.
	decoy func() string
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(r metrics.Recorder) Option {
	return func(s *Service) {
		if r != nil {
			s.metrics = r
		}
	}
}

// WithPasswordPolicy overrides the policy for new passwords.
func WithPasswordPolicy(p validator.PasswordPolicy) Option {
	return func(s *Service) {
		if p.MinLength > 0 && p.MaxLength >= p.MinLength {
			s.policy = p
		}
	}
}

// WithSynchronousNotify delivers codes before the operation returns.
func WithSynchronousNotify() Option {
	return func(s *Service) { s.syncNotify = true }
}

// WithDeleteHook adds a hook run by DeleteAccount.
func WithDeleteHook(h DeleteHook) Option {
	return func(s *Service) {
		if h != nil {
			s.onDelete = append(s.onDelete, h)
		}
	}
}

// New creates a Service.
func New(deps Deps, cfg Config, opts ...Option) (*Service, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	if cfg.TOTPIssuer == "" {
		cfg.TOTPIssuer = "Secure Job Platform"
	}
	if cfg.NotifyTimeout <= 0 {
		cfg.NotifyTimeout = 30 * time.Second
	}

	s := &Service{
		deps:    deps,
		cfg:     cfg,
		policy:  validator.DefaultPasswordPolicy(),
		now:     time.Now,
		log:     slog.New(slog.DiscardHandler),
		metrics: metrics.Noop{},
	}
	for _, opt := range opts {
		opt(s)
	}

	s.decoy = sync.OnceValue(func() string {
		digest, err := s.deps.Hasher.Hash("credkit-decoy-password")
		if err != nil {
			return ""
		}
		return digest
	})

	return s, nil
}

// Wait blocks until background deliveries have finished.
func (s *Service) Wait() { s.notifyWG.Wait() }

// notify hands a code to the notifier. Failures are logged, never returned.
func (s *Service) notify(ctx context.Context, d Delivery) {
	deliver := func(ctx context.Context) {
		defer func() {
			if r := recover(); r != nil {
				s.log.ErrorContext(ctx, "notifier panicked",
					logger.Component("account"),
					logger.Purpose(string(d.Purpose)),
					slog.Any("panic", r),
				)
			}
		}()

		ctx, cancel := context.WithTimeout(ctx, s.cfg.NotifyTimeout)
		defer cancel()

		if err := s.deps.Notifier.SendCode(ctx, d); err != nil {
			s.log.ErrorContext(ctx, "failed to deliver code",
				logger.Component("account"),
				logger.Purpose(string(d.Purpose)),
				logger.Error(err),
			)
		}
	}

	if s.syncNotify {
		deliver(ctx)
		return
	}

	s.notifyWG.Add(1)
	go func() {
		defer s.notifyWG.Done()
		deliver(context.WithoutCancel(ctx))
	}()
}

func (s *Service) issueCode(ctx context.Context, u *User, purpose otp.Purpose) error {
	code, ch, err := s.deps.Challenges.Issue(ctx, u.ID, purpose)
	if err != nil {
		return core.Internal(fmt.Errorf("issue %s code: %w", purpose, err))
	}
	s.metrics.RecordOTPIssued(string(purpose))
	s.notify(ctx, Delivery{
		Email:     u.Email,
		Name:      u.FullName,
		Code:      code,
		Purpose:   purpose,
		ExpiresIn: ch.ExpiresAt.Sub(ch.CreatedAt),
	})
	return nil
}

// verifyCode runs the challenge state machine and maps its outcome.
func (s *Service) verifyCode(ctx context.Context, userID string, purpose otp.Purpose, code string) error {
	err := s.deps.Challenges.Verify(ctx, userID, purpose, code)
	s.metrics.RecordOTP(string(purpose), otpOutcome(err))
	return mapOTPError(err)
}

func (s *Service) issueTokens(u *User) (jwt.Pair, error) {
	pair, err := s.deps.Tokens.IssuePair(u.ID, jwt.WithEmail(u.Email), jwt.WithRole(string(u.Role)))
	if err != nil {
		return jwt.Pair{}, core.Internal(err)
	}
	return pair, nil
}

// userByEmail loads a user, mapping a miss to notFound.
func (s *Service) userByEmail(ctx context.Context, email string, notFound error) (*User, error) {
	u, err := s.deps.Users.UserByEmail(ctx, NormalizeEmail(email))
	if errors.Is(err, ErrUserNotFound) {
		return nil, notFound
	}
	if err != nil {
		return nil, core.Internal(fmt.Errorf("load user by email: %w", err))
	}
	return u, nil
}

func (s *Service) userByID(ctx context.Context, id string, notFound error) (*User, error) {
	u, err := s.deps.Users.UserByID(ctx, id)
	if errors.Is(err, ErrUserNotFound) {
		return nil, notFound
	}
	if err != nil {
		return nil, core.Internal(fmt.Errorf("load user: %w", err))
	}
	return u, nil
}

// record reports op to metrics and logs unexpected failures.
func (s *Service) record(ctx context.Context, op string, err error) {
	s.metrics.RecordAuth(op, outcome(err))
	if core.KindOf(err) == core.KindInternal {
		s.log.ErrorContext(ctx, "account operation failed",
			logger.Component("account"),
			slog.String("operation", op),
			logger.Error(err),
		)
	}
}

// NormalizeEmail lower-cases and trims an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func outcome(err error) string {
	if err == nil {
		return metrics.OutcomeSuccess
	}
	return string(core.KindOf(err))
}

func otpOutcome(err error) string {
	var invalid *otp.InvalidCodeError
	switch {
	case err == nil:
		return metrics.OutcomeSuccess
	case errors.As(err, &invalid):
		return "invalid_code"
	case errors.Is(err, otp.ErrExpired):
		return "expired"
	case errors.Is(err, otp.ErrAttemptsExhausted):
		return "exhausted"
	case errors.Is(err, otp.ErrNoChallenge):
		return "no_challenge"
	default:
		return metrics.OutcomeFailure
	}
}

func mapOTPError(err error) error {
	var invalid *otp.InvalidCodeError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &invalid):
		return core.ErrInvalidCode.
			WithMessage(fmt.Sprintf("Invalid verification code. %d attempts remaining.", invalid.Remaining)).
			Wrap(err)
	case errors.Is(err, otp.ErrExpired):
		return core.ErrCodeExpired.Wrap(err)
	case errors.Is(err, otp.ErrAttemptsExhausted):
		return core.ErrAttemptsExhausted.Wrap(err)
	case errors.Is(err, otp.ErrNoChallenge):
		return core.ErrNoChallenge.Wrap(err)
	default:
		return core.Internal(fmt.Errorf("verify code: %w", err))
	}
}

func validationError(err error) error {
	if verrs := validator.ExtractValidationErrors(err); verrs != nil {
		return core.ValidationError(verrs.Map())
	}
	return err
}
