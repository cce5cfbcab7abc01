package totp_test

import (
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/credkit/pkg/totp"
)

// base32 of the RFC 6238 SHA1 seed "12345678901234567890".
const rfcSecret = "GEZDGNBVGY3TQOJQGEZDGNBVGY3TQOJQ"

func TestGenerateTOTPWithTimeRFCVectors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		unix int64
		want string
	}{
		{59, "287082"},
		{1111111109, "081804"},
		{1111111111, "050471"},
		{1234567890, "005924"},
		{2000000000, "279037"},
	}

	for _, tt := range tests {
		got, err := totp.GenerateTOTPWithTime(rfcSecret, time.Unix(tt.unix, 0))
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "T=%d", tt.unix)
	}
}

func TestValidateTOTPAtSkewWindow(t *testing.T) {
	t.Parallel()

	now := time.Unix(1_700_000_010, 0)
	code, err := totp.GenerateTOTPWithTime(rfcSecret, now)
	require.NoError(t, err)

	tests := []struct {
		name   string
		offset time.Duration
		want   bool
	}{
		{"same step", 0, true},
		{"one step later", 30 * time.Second, true},
		{"one step earlier", -30 * time.Second, true},
		{"three steps later", 90 * time.Second, false},
		{"three steps earlier", -90 * time.Second, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ok, err := totp.ValidateTOTPAt(rfcSecret, code, now.Add(tt.offset), totp.DefaultSkew)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}

	ok, err := totp.ValidateTOTPAt(rfcSecret, code, now.Add(30*time.Second), 0)
	require.NoError(t, err)
	assert.False(t, ok, "zero skew accepts only the exact step")
}

func TestValidateTOTPInputErrors(t *testing.T) {
	t.Parallel()

	now := time.Now()

	_, err := totp.ValidateTOTPAt("", "123456", now, 1)
	assert.ErrorIs(t, err, totp.ErrMissingSecret)

	_, err = totp.ValidateTOTPAt("not base32!", "123456", now, 1)
	assert.ErrorIs(t, err, totp.ErrInvalidSecret)

	for _, code := range []string{"", "12345", "1234567", "12a456"} {
		_, err = totp.ValidateTOTPAt(rfcSecret, code, now, 1)
		assert.ErrorIs(t, err, totp.ErrInvalidOTP, "code %q", code)
	}

	_, err = totp.ValidateTOTPAt(rfcSecret, "123456", now, -1)
	assert.ErrorIs(t, err, totp.ErrInvalidSkew)
}

func TestValidateTOTPNow(t *testing.T) {
	t.Parallel()

	secret, err := totp.GenerateSecretKey()
	require.NoError(t, err)

	code, err := totp.GenerateTOTP(secret)
	require.NoError(t, err)

	ok, err := totp.ValidateTOTP(strings.ToLower(secret), " "+code+" ")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestGenerateSecretKey(t *testing.T) {
	t.Parallel()

	a, err := totp.GenerateSecretKey()
	require.NoError(t, err)
	b, err := totp.GenerateSecretKey()
	require.NoError(t, err)

	assert.Len(t, a, 32) // 20 bytes, unpadded base32
	assert.Regexp(t, totp.ValidateSecretKeyRegex, a)
	assert.NotEqual(t, a, b)
}

func TestGetTOTPURI(t *testing.T) {
	t.Parallel()

	uri, err := totp.GetTOTPURI(totp.TOTPParams{
		Secret:      rfcSecret,
		AccountName: "jane@example.com",
		Issuer:      "Secure Job Platform",
	})
	require.NoError(t, err)

	u, err := url.Parse(uri)
	require.NoError(t, err)
	assert.Equal(t, "otpauth", u.Scheme)
	assert.Equal(t, "totp", u.Host)
	assert.Equal(t, "/Secure Job Platform:jane@example.com", u.Path)

	q := u.Query()
	assert.Equal(t, rfcSecret, q.Get("secret"))
	assert.Equal(t, "Secure Job Platform", q.Get("issuer"))
	assert.Equal(t, "SHA1", q.Get("algorithm"))
	assert.Equal(t, "6", q.Get("digits"))
	assert.Equal(t, "30", q.Get("period"))
}

func TestGetTOTPURIValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		params totp.TOTPParams
		want   error
	}{
		{"missing secret", totp.TOTPParams{AccountName: "a", Issuer: "b"}, totp.ErrMissingSecret},
		{"invalid secret", totp.TOTPParams{Secret: "abc", AccountName: "a", Issuer: "b"}, totp.ErrInvalidSecret},
		{"missing account", totp.TOTPParams{Secret: rfcSecret, Issuer: "b"}, totp.ErrMissingAccountName},
		{"missing issuer", totp.TOTPParams{Secret: rfcSecret, AccountName: "a"}, totp.ErrMissingIssuer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := totp.GetTOTPURI(tt.params)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}
