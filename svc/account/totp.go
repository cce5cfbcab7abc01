package account

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrymomot/credkit/core"
	"github.com/dmitrymomot/credkit/pkg/logger"
	"github.com/dmitrymomot/credkit/pkg/metrics"
	"github.com/dmitrymomot/credkit/pkg/qrcode"
	"github.com/dmitrymomot/credkit/pkg/totp"
)

// Provisioning is what an authenticator app needs to enroll. It is shown
// once; only the sealed secret is kept.
type Provisioning struct {
	Secret string `json:"secret"`
	URI    string `json:"uri"`
	QRCode string `json:"qr_code"`
}

// EnrollTOTP starts or restarts enrollment with a fresh secret. It fails
// when TOTP is already enabled.
func (s *Service) EnrollTOTP(ctx context.Context, userID string) (_ *Provisioning, err error) {
	defer func() { s.recordTOTP(ctx, "enroll", err) }()

	u, err := s.userByID(ctx, userID, core.ErrNotFound)
	if err != nil {
		return nil, err
	}

	enabled, err := s.totpEnabled(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	if enabled {
		return nil, core.ErrTOTPEnabled
	}

	secret, err := totp.GenerateSecretKey()
	if err != nil {
		return nil, core.Internal(err)
	}
	uri, err := totp.GetTOTPURI(totp.TOTPParams{
		Secret:      secret,
		AccountName: u.Email,
		Issuer:      s.cfg.TOTPIssuer,
	})
	if err != nil {
		return nil, core.Internal(fmt.Errorf("build totp uri: %w", err))
	}
	qr, err := qrcode.DataURI(uri)
	if err != nil {
		return nil, core.Internal(fmt.Errorf("render totp qr code: %w", err))
	}

	sealed, err := s.deps.Secrets.EncryptString(secret)
	if err != nil {
		return nil, core.Internal(fmt.Errorf("seal totp secret: %w", err))
	}

	err = s.deps.Enrollments.SavePending(ctx, &Enrollment{
		UserID:    u.ID,
		Secret:    sealed,
		CreatedAt: s.now(),
	})
	if errors.Is(err, ErrStale) {
		return nil, core.ErrTOTPEnabled.Wrap(err)
	}
	if err != nil {
		return nil, core.Internal(fmt.Errorf("save enrollment: %w", err))
	}

	return &Provisioning{Secret: secret, URI: uri, QRCode: qr}, nil
}

// ConfirmTOTP enables TOTP once the user proves possession of the secret.
func (s *Service) ConfirmTOTP(ctx context.Context, userID, code string) (err error) {
	defer func() { s.recordTOTP(ctx, "confirm", err) }()

	e, err := s.enrollment(ctx, userID)
	if err != nil {
		return err
	}
	if e == nil {
		return core.ErrTOTPNotEnrolled
	}
	if e.Enabled {
		return core.ErrTOTPEnabled
	}

	if err := s.checkTOTP(ctx, e, code); err != nil {
		return err
	}

	if err := s.deps.Enrollments.Enable(ctx, userID, s.now()); err != nil {
		if errors.Is(err, ErrStale) {
			return core.ErrTOTPEnabled.Wrap(err)
		}
		return core.Internal(fmt.Errorf("enable totp: %w", err))
	}

	s.log.InfoContext(ctx, "totp enabled",
		logger.Component("account"),
		logger.UserID(userID),
	)
	return nil
}

// DisableTOTP removes the enrollment after re-checking the password.
func (s *Service) DisableTOTP(ctx context.Context, userID, password string) (err error) {
	defer func() { s.recordTOTP(ctx, "disable", err) }()

	u, err := s.userByID(ctx, userID, core.ErrNotFound)
	if err != nil {
		return err
	}

	e, err := s.enrollment(ctx, u.ID)
	if err != nil {
		return err
	}
	if e == nil || !e.Enabled {
		return core.ErrTOTPNotEnabled
	}

	if !s.deps.Hasher.Verify(password, u.PasswordHash) {
		return core.ErrInvalidCredential
	}

	if err := s.deps.Enrollments.DeleteEnrollment(ctx, u.ID); err != nil && !errors.Is(err, ErrEnrollmentNotFound) {
		return core.Internal(fmt.Errorf("delete enrollment: %w", err))
	}

	s.log.InfoContext(ctx, "totp disabled",
		logger.Component("account"),
		logger.UserID(u.ID),
	)
	return nil
}

// verifyTOTPLogin checks the second factor. Users without an enabled
// enrollment pass.
func (s *Service) verifyTOTPLogin(ctx context.Context, userID, code string) (err error) {
	e, err := s.enrollment(ctx, userID)
	if err != nil || e == nil || !e.Enabled {
		return err
	}
	defer func() { s.recordTOTP(ctx, "login", err) }()
	return s.checkTOTP(ctx, e, code)
}

func (s *Service) checkTOTP(_ context.Context, e *Enrollment, code string) error {
	secret, err := s.deps.Secrets.DecryptString(e.Secret)
	if err != nil {
		return core.Internal(fmt.Errorf("open totp secret for %s: %w", e.UserID, err))
	}

	ok, err := totp.ValidateTOTPAt(secret, code, s.now(), totp.DefaultSkew)
	if err != nil && !errors.Is(err, totp.ErrInvalidOTP) {
		return core.Internal(fmt.Errorf("validate totp: %w", err))
	}
	if !ok {
		return core.ErrInvalidCode
	}
	return nil
}

func (s *Service) enrollment(ctx context.Context, userID string) (*Enrollment, error) {
	e, err := s.deps.Enrollments.Enrollment(ctx, userID)
	if errors.Is(err, ErrEnrollmentNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, core.Internal(fmt.Errorf("load enrollment: %w", err))
	}
	return e, nil
}

func (s *Service) totpEnabled(ctx context.Context, userID string) (bool, error) {
	e, err := s.enrollment(ctx, userID)
	if err != nil {
		return false, err
	}
	return e != nil && e.Enabled, nil
}

func (s *Service) recordTOTP(ctx context.Context, op string, err error) {
	if err == nil {
		s.metrics.RecordTOTP(op, metrics.OutcomeSuccess)
		return
	}
	s.metrics.RecordTOTP(op, string(core.KindOf(err)))
	if core.KindOf(err) == core.KindInternal {
		s.log.ErrorContext(ctx, "totp operation failed",
			logger.Component("account"),
			logger.Error(err),
		)
	}
}
