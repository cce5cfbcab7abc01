package account_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/credkit/core"
	"github.com/dmitrymomot/credkit/pkg/totp"
)

func TestTOTPLifecycle(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()
	id := h.registerVerified(t, "a@example.com")

	err := h.svc.ConfirmTOTP(ctx, id, "123456")
	require.ErrorIs(t, err, core.ErrTOTPNotEnrolled)

	prov, err := h.svc.EnrollTOTP(ctx, id)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(prov.URI, "otpauth://totp/"))
	assert.Contains(t, prov.URI, "issuer=Secure+Job+Platform")
	assert.True(t, strings.HasPrefix(prov.QRCode, "data:image/png;base64,"))

	e, err := h.store.Enrollment(ctx, id)
	require.NoError(t, err)
	assert.False(t, e.Enabled)
	assert.NotContains(t, e.Secret, prov.Secret)
	opened, err := h.cipher.DecryptString(e.Secret)
	require.NoError(t, err)
	assert.Equal(t, prov.Secret, opened)

	// Pending enrollment does not gate login.
	res, err := h.svc.Login(ctx, "a@example.com", strongPassword)
	require.NoError(t, err)
	assert.False(t, res.TOTPRequired)

	err = h.svc.ConfirmTOTP(ctx, id, wrongCode(t, prov.Secret, h.clock.Now()))
	require.ErrorIs(t, err, core.ErrInvalidCode)

	code, err := totp.GenerateTOTPWithTime(prov.Secret, h.clock.Now())
	require.NoError(t, err)
	require.NoError(t, h.svc.ConfirmTOTP(ctx, id, code))

	err = h.svc.ConfirmTOTP(ctx, id, code)
	assert.ErrorIs(t, err, core.ErrTOTPEnabled)
	_, err = h.svc.EnrollTOTP(ctx, id)
	assert.ErrorIs(t, err, core.ErrTOTPEnabled)

	me, err := h.svc.Me(ctx, id)
	require.NoError(t, err)
	assert.True(t, me.TOTPEnabled)

	res, err = h.svc.Login(ctx, "a@example.com", strongPassword)
	require.NoError(t, err)
	assert.True(t, res.TOTPRequired)
	assert.Nil(t, res.Tokens)

	h.clock.Advance(30 * time.Second)
	_, err = h.svc.LoginWithTOTP(ctx, "a@example.com", strongPassword, wrongCode(t, prov.Secret, h.clock.Now()))
	assert.ErrorIs(t, err, core.ErrInvalidCode)

	_, err = h.svc.LoginWithTOTP(ctx, "a@example.com", "WrongPass123", code)
	assert.ErrorIs(t, err, core.ErrInvalidCredential)

	code, err = totp.GenerateTOTPWithTime(prov.Secret, h.clock.Now())
	require.NoError(t, err)
	pair, err := h.svc.LoginWithTOTP(ctx, "a@example.com", strongPassword, code)
	require.NoError(t, err)
	assert.NotEmpty(t, pair.AccessToken)

	err = h.svc.DisableTOTP(ctx, id, "WrongPass123")
	assert.ErrorIs(t, err, core.ErrInvalidCredential)

	require.NoError(t, h.svc.DisableTOTP(ctx, id, strongPassword))
	err = h.svc.DisableTOTP(ctx, id, strongPassword)
	assert.ErrorIs(t, err, core.ErrTOTPNotEnabled)

	res, err = h.svc.Login(ctx, "a@example.com", strongPassword)
	require.NoError(t, err)
	assert.NotNil(t, res.Tokens)
}

func TestTOTPCodeOutsideWindow(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()
	id := h.registerVerified(t, "a@example.com")

	prov, err := h.svc.EnrollTOTP(ctx, id)
	require.NoError(t, err)

	stale, err := totp.GenerateTOTPWithTime(prov.Secret, h.clock.Now().Add(-2*time.Minute))
	require.NoError(t, err)
	current, err := totp.GenerateTOTPWithTime(prov.Secret, h.clock.Now())
	require.NoError(t, err)
	if stale != current {
		assert.ErrorIs(t, h.svc.ConfirmTOTP(ctx, id, stale), core.ErrInvalidCode)
	}

	neighbour, err := totp.GenerateTOTPWithTime(prov.Secret, h.clock.Now().Add(-30*time.Second))
	require.NoError(t, err)
	assert.NoError(t, h.svc.ConfirmTOTP(ctx, id, neighbour))
}

func TestEnrollTOTPRestartsPendingEnrollment(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()
	id := h.registerVerified(t, "a@example.com")

	first, err := h.svc.EnrollTOTP(ctx, id)
	require.NoError(t, err)
	second, err := h.svc.EnrollTOTP(ctx, id)
	require.NoError(t, err)
	assert.NotEqual(t, first.Secret, second.Secret)

	code, err := totp.GenerateTOTPWithTime(second.Secret, h.clock.Now())
	require.NoError(t, err)
	assert.NoError(t, h.svc.ConfirmTOTP(ctx, id, code))
}

func TestLoginWithTOTPWithoutEnrollment(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.registerVerified(t, "a@example.com")

	pair, err := h.svc.LoginWithTOTP(context.Background(), "a@example.com", strongPassword, "")
	require.NoError(t, err)
	assert.NotEmpty(t, pair.RefreshToken)
}

// wrongCode returns a well formed code that is not valid around now.
func wrongCode(t *testing.T, secret string, now time.Time) string {
	t.Helper()
	valid := map[string]bool{}
	for _, d := range []time.Duration{-30 * time.Second, 0, 30 * time.Second} {
		c, err := totp.GenerateTOTPWithTime(secret, now.Add(d))
		require.NoError(t, err)
		valid[c] = true
	}
	for _, c := range []string{"000000", "111111", "222222", "333333"} {
		if !valid[c] {
			return c
		}
	}
	t.Fatal("no invalid code available")
	return ""
}
