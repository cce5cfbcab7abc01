package account

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/dmitrymomot/credkit/core"
	"github.com/dmitrymomot/credkit/pkg/jwt"
	"github.com/dmitrymomot/credkit/pkg/logger"
	"github.com/dmitrymomot/credkit/pkg/otp"
	"github.com/dmitrymomot/credkit/pkg/validator"
)

// SignupRoles are the roles a user may pick at registration. Admins are
// provisioned out of band.
var SignupRoles = []Role{RoleUser, RoleRecruiter}

// RegisterInput is the self-registration request.
type RegisterInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
	Role     Role   `json:"role"`
}

// LoginResult is the outcome of a password login. When TOTPRequired is set
// no tokens are issued and the caller must repeat the login with a code.
type LoginResult struct {
	Tokens       *jwt.Pair `json:"tokens,omitempty"`
	TOTPRequired bool      `json:"totp_required"`
}

// Register creates an unverified account and sends a registration code.
func (s *Service) Register(ctx context.Context, in RegisterInput) (_ *User, err error) {
	defer func() { s.record(ctx, "register", err) }()

	in.Email = NormalizeEmail(in.Email)
	in.FullName = strings.TrimSpace(in.FullName)
	if in.Role == "" {
		in.Role = RoleUser
	}

	if err := validator.Apply(
		validator.ValidEmail("email", in.Email),
		validator.StrongPassword("password", in.Password, s.policy),
		validator.RequiredString("full_name", in.FullName),
		validator.LenBetween("full_name", in.FullName, 1, 100),
		validator.InList("role", in.Role, SignupRoles),
	); err != nil {
		return nil, validationError(err)
	}

	digest, err := s.deps.Hasher.Hash(in.Password)
	if err != nil {
		return nil, core.Internal(fmt.Errorf("hash password: %w", err))
	}

	now := s.now()
	u := &User{
		ID:           uuid.NewString(),
		Email:        in.Email,
		PasswordHash: digest,
		FullName:     in.FullName,
		Role:         in.Role,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.deps.Users.CreateUser(ctx, u); err != nil {
		if errors.Is(err, ErrUserExists) {
			return nil, core.ErrEmailTaken.Wrap(err)
		}
		return nil, core.Internal(fmt.Errorf("create user: %w", err))
	}

	if err := s.issueCode(ctx, u, otp.PurposeRegistration); err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "user registered",
		logger.Component("account"),
		logger.UserID(u.ID),
		logger.Role(string(u.Role)),
	)
	return u, nil
}

// VerifyEmail consumes a registration code, marks the user verified and
// signs them in.
func (s *Service) VerifyEmail(ctx context.Context, email, code string) (_ jwt.Pair, err error) {
	defer func() { s.record(ctx, "verify_email", err) }()

	u, err := s.userByEmail(ctx, email, core.ErrNoChallenge)
	if err != nil {
		return jwt.Pair{}, err
	}
	if u.IsVerified {
		return jwt.Pair{}, core.ErrAlreadyVerified
	}

	if err := s.verifyCode(ctx, u.ID, otp.PurposeRegistration, code); err != nil {
		return jwt.Pair{}, err
	}

	if err := s.deps.Users.MarkVerified(ctx, u.ID, s.now()); err != nil {
		if errors.Is(err, ErrStale) {
			return jwt.Pair{}, core.ErrAlreadyVerified.Wrap(err)
		}
		return jwt.Pair{}, core.Internal(fmt.Errorf("mark verified: %w", err))
	}
	u.IsVerified = true

	return s.issueTokens(u)
}

// ResendVerification issues a fresh registration code, invalidating the
// previous one. Unknown addresses succeed silently.
func (s *Service) ResendVerification(ctx context.Context, email string) (err error) {
	defer func() { s.record(ctx, "resend_verification", err) }()

	u, err := s.userByEmail(ctx, email, nil)
	if err != nil || u == nil {
		return err
	}
	if u.IsVerified {
		return core.ErrAlreadyVerified
	}
	return s.issueCode(ctx, u, otp.PurposeRegistration)
}

// Login checks a password. Unknown email and wrong password are
// indistinguishable.
func (s *Service) Login(ctx context.Context, email, password string) (_ *LoginResult, err error) {
	defer func() { s.record(ctx, "login", err) }()

	u, err := s.authenticate(ctx, email, password)
	if err != nil {
		return nil, err
	}

	enabled, err := s.totpEnabled(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	if enabled {
		return &LoginResult{TOTPRequired: true}, nil
	}

	pair, err := s.issueTokens(u)
	if err != nil {
		return nil, err
	}
	return &LoginResult{Tokens: &pair}, nil
}

// LoginWithTOTP is Login followed by the second factor when the user has
// TOTP enabled.
func (s *Service) LoginWithTOTP(ctx context.Context, email, password, code string) (_ jwt.Pair, err error) {
	defer func() { s.record(ctx, "login_totp", err) }()

	u, err := s.authenticate(ctx, email, password)
	if err != nil {
		return jwt.Pair{}, err
	}

	if err := s.verifyTOTPLogin(ctx, u.ID, code); err != nil {
		return jwt.Pair{}, err
	}
	return s.issueTokens(u)
}

// authenticate verifies the password and the account status.
func (s *Service) authenticate(ctx context.Context, email, password string) (*User, error) {
	u, err := s.userByEmail(ctx, email, nil)
	if err != nil {
		return nil, err
	}
	if u == nil {
		s.deps.Hasher.Verify(password, s.decoy())
		return nil, core.ErrInvalidCredential
	}
	if !s.deps.Hasher.Verify(password, u.PasswordHash) {
		return nil, core.ErrInvalidCredential
	}

	if err := checkStatus(u); err != nil {
		return nil, err
	}

	if s.deps.Hasher.NeedsRehash(u.PasswordHash) {
		s.rehash(ctx, u, password)
	}
	return u, nil
}

// rehash upgrades a digest made with old parameters. Failure keeps the old
// digest, which still verifies.
func (s *Service) rehash(ctx context.Context, u *User, password string) {
	digest, err := s.deps.Hasher.Hash(password)
	if err == nil {
		err = s.deps.Users.UpdatePassword(ctx, u.ID, digest, s.now())
	}
	if err != nil {
		s.log.WarnContext(ctx, "failed to upgrade password digest",
			logger.Component("account"),
			logger.UserID(u.ID),
			logger.Error(err),
		)
		return
	}
	u.PasswordHash = digest
}

func checkStatus(u *User) error {
	switch {
	case !u.IsActive:
		return core.ErrAccountInactive
	case u.IsSuspended:
		return core.ErrAccountSuspended
	case !u.IsVerified:
		return core.ErrEmailNotVerified
	}
	return nil
}

// Refresh exchanges a refresh token for a new pair. The user must still
// exist and be allowed to sign in.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (_ jwt.Pair, err error) {
	defer func() { s.record(ctx, "refresh", err) }()

	pair, claims, err := s.deps.Tokens.Rotate(refreshToken)
	if err != nil {
		return jwt.Pair{}, core.ErrInvalidToken.Wrap(err)
	}

	u, err := s.userByID(ctx, claims.Subject, core.ErrInvalidToken)
	if err != nil {
		return jwt.Pair{}, err
	}
	if !u.IsActive || u.IsSuspended {
		return jwt.Pair{}, core.ErrInvalidToken
	}

	// Role or email may have changed since the refresh token was minted.
	if claims.Role != string(u.Role) || claims.Email != u.Email {
		return s.issueTokens(u)
	}
	return pair, nil
}

// RequestPasswordReset sends a reset code. The result never reveals whether
// the address is registered.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) (err error) {
	defer func() { s.record(ctx, "password_reset_request", err) }()

	u, err := s.userByEmail(ctx, email, nil)
	if err != nil || u == nil {
		return err
	}
	return s.issueCode(ctx, u, otp.PurposePasswordReset)
}

// ConfirmPasswordReset consumes a reset code and replaces the password.
func (s *Service) ConfirmPasswordReset(ctx context.Context, email, code, newPassword string) (err error) {
	defer func() { s.record(ctx, "password_reset_confirm", err) }()

	if err := validator.Apply(
		validator.StrongPassword("new_password", newPassword, s.policy),
	); err != nil {
		return validationError(err)
	}

	u, err := s.userByEmail(ctx, email, core.ErrNoChallenge)
	if err != nil {
		return err
	}

	if err := s.verifyCode(ctx, u.ID, otp.PurposePasswordReset, code); err != nil {
		return err
	}

	digest, err := s.deps.Hasher.Hash(newPassword)
	if err != nil {
		return core.Internal(fmt.Errorf("hash password: %w", err))
	}
	if err := s.deps.Users.UpdatePassword(ctx, u.ID, digest, s.now()); err != nil {
		return core.Internal(fmt.Errorf("update password: %w", err))
	}

	s.log.InfoContext(ctx, "password reset",
		logger.Component("account"),
		logger.UserID(u.ID),
	)
	return nil
}

// Me returns the profile of userID.
func (s *Service) Me(ctx context.Context, userID string) (*User, error) {
	u, err := s.userByID(ctx, userID, core.ErrNotFound)
	if err != nil {
		return nil, err
	}
	enabled, err := s.totpEnabled(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	u.TOTPEnabled = enabled
	return u, nil
}

// DeleteAccount removes the user after re-checking the password. Delete
// hooks run first; any hook failure aborts the deletion.
func (s *Service) DeleteAccount(ctx context.Context, userID, password string) (err error) {
	defer func() { s.record(ctx, "delete_account", err) }()

	u, err := s.userByID(ctx, userID, core.ErrNotFound)
	if err != nil {
		return err
	}
	if !s.deps.Hasher.Verify(password, u.PasswordHash) {
		return core.ErrInvalidCredential
	}

	for _, hook := range s.onDelete {
		if err := hook(ctx, u.ID); err != nil {
			return core.Internal(fmt.Errorf("delete hook: %w", err))
		}
	}

	// Challenges may live outside the user store, so the cascade is explicit.
	if err := s.deps.Challenges.Discard(ctx, u.ID); err != nil {
		return core.Internal(err)
	}

	if err := s.deps.Users.DeleteUser(ctx, u.ID); err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return core.ErrNotFound.Wrap(err)
		}
		return core.Internal(fmt.Errorf("delete user: %w", err))
	}

	s.log.InfoContext(ctx, "account deleted",
		logger.Component("account"),
		logger.UserID(u.ID),
		logger.Role(string(u.Role)),
	)
	return nil
}
