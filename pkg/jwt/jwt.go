package jwt

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/dmitrymomot/credkit/pkg/logger"
)

// Kind distinguishes access tokens from refresh tokens.
type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
)

func (k Kind) valid() bool { return k == KindAccess || k == KindRefresh }

// Default lifetimes.
const (
	DefaultAccessTTL  = 30 * time.Minute
	DefaultRefreshTTL = 7 * 24 * time.Hour
)

// signingMethod is the only algorithm accepted on verification.
var signingMethod = gojwt.SigningMethodHS256

// Claims is the payload of every token.
type Claims struct {
	gojwt.RegisteredClaims
	Kind  Kind           `json:"kind"`
	Email string         `json:"email,omitempty"`
	Role  string         `json:"role,omitempty"`
	Ext   map[string]any `json:"ext,omitempty"`
}

// ClaimOption adds auxiliary claims to a token.
type ClaimOption func(*Claims)

// WithEmail sets the email claim.
func WithEmail(email string) ClaimOption {
	return func(c *Claims) { c.Email = email }
}

// WithRole sets the role claim.
func WithRole(role string) ClaimOption {
	return func(c *Claims) { c.Role = role }
}

// WithExtra sets a free-form claim under "ext".
func WithExtra(key string, value any) ClaimOption {
	return func(c *Claims) {
		if c.Ext == nil {
			c.Ext = make(map[string]any)
		}
		c.Ext[key] = value
	}
}

// Pair is the result of a successful authentication.
type Pair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

// Service signs and verifies tokens. It holds no mutable state and is safe for
// concurrent use.
type Service struct {
	keys       KeyProvider
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
	log        *slog.Logger

	parser    *gojwt.Parser
	validator *gojwt.Validator
}

// Option configures a Service.
type Option func(*Service)

// WithIssuer sets the iss claim and requires it on verification.
func WithIssuer(issuer string) Option {
	return func(s *Service) { s.issuer = issuer }
}

// WithAccessTTL overrides the access token lifetime.
func WithAccessTTL(ttl time.Duration) Option {
	return func(s *Service) { s.accessTTL = ttl }
}

// WithRefreshTTL overrides the refresh token lifetime.
func WithRefreshTTL(ttl time.Duration) Option {
	return func(s *Service) { s.refreshTTL = ttl }
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets a logger for rejected tokens. Rejection reasons are only
// logged at debug level and never returned to the caller.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

// New creates a token service backed by keys.
func New(keys KeyProvider, opts ...Option) (*Service, error) {
	if keys == nil {
		return nil, ErrMissingSigningKey
	}

	s := &Service{
		keys:       keys,
		accessTTL:  DefaultAccessTTL,
		refreshTTL: DefaultRefreshTTL,
		now:        time.Now,
		log:        slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}

	// Claims are validated separately so the kind check runs before expiry.
	s.parser = gojwt.NewParser(
		gojwt.WithValidMethods([]string{signingMethod.Alg()}),
		gojwt.WithoutClaimsValidation(),
	)

	vopts := []gojwt.ParserOption{
		gojwt.WithTimeFunc(s.now),
		gojwt.WithExpirationRequired(),
	}
	if s.issuer != "" {
		vopts = append(vopts, gojwt.WithIssuer(s.issuer))
	}
	s.validator = gojwt.NewValidator(vopts...)

	return s, nil
}

// AccessTTL returns the configured access token lifetime.
func (s *Service) AccessTTL() time.Duration { return s.accessTTL }

// RefreshTTL returns the configured refresh token lifetime.
func (s *Service) RefreshTTL() time.Duration { return s.refreshTTL }

// Issue signs a token of the given kind for subject. A ttl of zero or less
// produces a token that is already expired.
func (s *Service) Issue(subject string, kind Kind, ttl time.Duration, extra ...ClaimOption) (string, error) {
	if subject == "" {
		return "", ErrMissingSubject
	}
	if !kind.valid() {
		return "", ErrInvalidKind
	}

	kid, key, err := s.keys.SigningKey()
	if err != nil {
		return "", errors.Join(ErrFailedToSign, err)
	}

	now := s.now()
	claims := &Claims{
		RegisteredClaims: gojwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   subject,
			Issuer:    s.issuer,
			IssuedAt:  gojwt.NewNumericDate(now),
			NotBefore: gojwt.NewNumericDate(now),
			ExpiresAt: gojwt.NewNumericDate(now.Add(ttl)),
		},
		Kind: kind,
	}
	for _, opt := range extra {
		opt(claims)
	}
	// Options cannot override the kind.
	claims.Kind = kind

	token := gojwt.NewWithClaims(signingMethod, claims)
	token.Header["kid"] = kid

	signed, err := token.SignedString(key)
	if err != nil {
		return "", errors.Join(ErrFailedToSign, err)
	}
	return signed, nil
}

// IssuePair mints an access token and a refresh token for subject.
func (s *Service) IssuePair(subject string, extra ...ClaimOption) (Pair, error) {
	access, err := s.Issue(subject, KindAccess, s.accessTTL, extra...)
	if err != nil {
		return Pair{}, fmt.Errorf("issue access token: %w", err)
	}
	refresh, err := s.Issue(subject, KindRefresh, s.refreshTTL, extra...)
	if err != nil {
		return Pair{}, fmt.Errorf("issue refresh token: %w", err)
	}
	return Pair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "bearer",
		ExpiresIn:    int64(s.accessTTL / time.Second),
	}, nil
}

// Verify checks the signature, then the kind, then expiry. Any failure
// returns ErrInvalidToken.
func (s *Service) Verify(tokenString string, expected Kind) (*Claims, error) {
	claims := &Claims{}
	_, err := s.parser.ParseWithClaims(tokenString, claims, s.keyFunc)
	if err != nil {
		return nil, s.reject("signature", err)
	}

	if claims.Kind != expected {
		return nil, s.reject("kind", ErrInvalidKind)
	}

	if err := s.validator.Validate(claims); err != nil {
		return nil, s.reject("claims", err)
	}

	if claims.Subject == "" {
		return nil, s.reject("claims", ErrMissingSubject)
	}

	return claims, nil
}

// Rotate exchanges a valid refresh token for a new pair carrying the same
// subject and auxiliary claims. The old refresh token stays valid until it
// expires.
func (s *Service) Rotate(refreshToken string) (Pair, *Claims, error) {
	claims, err := s.Verify(refreshToken, KindRefresh)
	if err != nil {
		return Pair{}, nil, err
	}

	opts := []ClaimOption{WithEmail(claims.Email), WithRole(claims.Role)}
	for k, v := range claims.Ext {
		opts = append(opts, WithExtra(k, v))
	}

	pair, err := s.IssuePair(claims.Subject, opts...)
	if err != nil {
		return Pair{}, nil, err
	}
	return pair, claims, nil
}

func (s *Service) keyFunc(token *gojwt.Token) (any, error) {
	kid, _ := token.Header["kid"].(string)
	return s.keys.VerificationKey(kid)
}

func (s *Service) reject(stage string, cause error) error {
	s.log.Debug("token rejected",
		logger.Component("jwt"),
		slog.String("stage", stage),
		logger.Error(cause),
	)
	return ErrInvalidToken
}
