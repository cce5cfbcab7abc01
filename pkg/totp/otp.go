package totp

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"crypto/subtle"
	"encoding/base32"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultDigits    = 6
	DefaultPeriod    = 30
	DefaultAlgorithm = "SHA1"
	DefaultSkew      = 1
	SecretSize       = 20 // 160 bits
)

// ValidateSecretKeyRegex matches base32 secrets with optional padding.
var ValidateSecretKeyRegex = regexp.MustCompile("^[A-Z2-7]+=*$")

var codeRegex = regexp.MustCompile(fmt.Sprintf(`^\d{%d}$`, DefaultDigits))

var b32 = base32.StdEncoding.WithPadding(base32.NoPadding)

// TOTPParams describes a key for the otpauth URI.
type TOTPParams struct {
	Secret      string // Base32-encoded secret (required)
	AccountName string // Usually the email (required)
	Issuer      string // Name shown in authenticator apps (required)
	Algorithm   string // Defaults to SHA1
	Digits      int    // Defaults to 6
	Period      int    // Seconds, defaults to 30
}

// Validate checks required fields.
func (p TOTPParams) Validate() error {
	if p.Secret == "" {
		return ErrMissingSecret
	}
	if !ValidateSecretKeyRegex.MatchString(p.Secret) {
		return ErrInvalidSecret
	}
	if p.AccountName == "" {
		return ErrMissingAccountName
	}
	if p.Issuer == "" {
		return ErrMissingIssuer
	}
	return nil
}

// GetDefaults fills zero fields with the RFC 6238 defaults.
func (p TOTPParams) GetDefaults() TOTPParams {
	if p.Algorithm == "" {
		p.Algorithm = DefaultAlgorithm
	}
	if p.Digits == 0 {
		p.Digits = DefaultDigits
	}
	if p.Period == 0 {
		p.Period = DefaultPeriod
	}
	return p
}

// GenerateSecretKey returns a new random base32 secret.
func GenerateSecretKey() (string, error) {
	secret := make([]byte, SecretSize)
	if _, err := rand.Read(secret); err != nil {
		return "", errors.Join(ErrFailedToGenerateSecretKey, err)
	}
	return b32.EncodeToString(secret), nil
}

// GetTOTPURI builds an otpauth:// URI in the Key Uri Format understood by
// authenticator apps.
func GetTOTPURI(params TOTPParams) (string, error) {
	if err := params.Validate(); err != nil {
		return "", err
	}
	params = params.GetDefaults()

	label := url.PathEscape(params.Issuer) + ":" + url.PathEscape(params.AccountName)

	query := url.Values{}
	query.Set("secret", params.Secret)
	query.Set("issuer", params.Issuer)
	query.Set("algorithm", params.Algorithm)
	query.Set("digits", strconv.Itoa(params.Digits))
	query.Set("period", strconv.Itoa(params.Period))

	return "otpauth://totp/" + label + "?" + query.Encode(), nil
}

// ValidateTOTP checks code against secret at the current time with one step
// of skew.
func ValidateTOTP(secret, code string) (bool, error) {
	return ValidateTOTPAt(secret, code, time.Now(), DefaultSkew)
}

// ValidateTOTPAt checks code against the steps from t-skew to t+skew. Every
// candidate step is compared, so the running time does not reveal which one
// matched.
func ValidateTOTPAt(secret, code string, t time.Time, skew int) (bool, error) {
	if skew < 0 {
		return false, ErrInvalidSkew
	}
	key, err := decodeSecret(secret)
	if err != nil {
		return false, err
	}

	code = strings.TrimSpace(code)
	if !codeRegex.MatchString(code) {
		return false, ErrInvalidOTP
	}

	counter := t.Unix() / DefaultPeriod
	matched := 0
	for i := -skew; i <= skew; i++ {
		want := formatCode(GenerateHOTP(key, counter+int64(i), DefaultDigits))
		matched |= subtle.ConstantTimeCompare([]byte(want), []byte(code))
	}

	return matched == 1, nil
}

// GenerateTOTP returns the code for the current step.
func GenerateTOTP(secret string) (string, error) {
	return GenerateTOTPWithTime(secret, time.Now())
}

// GenerateTOTPWithTime returns the code for the step containing t.
func GenerateTOTPWithTime(secret string, t time.Time) (string, error) {
	key, err := decodeSecret(secret)
	if err != nil {
		return "", err
	}
	return formatCode(GenerateHOTP(key, t.Unix()/DefaultPeriod, DefaultDigits)), nil
}

// GenerateHOTP computes the RFC 4226 value for counter.
func GenerateHOTP(key []byte, counter int64, digits int) int {
	var msg [8]byte
	binary.BigEndian.PutUint64(msg[:], uint64(counter))

	mac := hmac.New(sha1.New, key)
	mac.Write(msg[:])
	sum := mac.Sum(nil)

	// Dynamic truncation.
	offset := sum[len(sum)-1] & 0x0f
	code := int(binary.BigEndian.Uint32(sum[offset:offset+4]) & 0x7fffffff)

	return code % int(math.Pow10(digits))
}

func decodeSecret(secret string) ([]byte, error) {
	secret = strings.ToUpper(strings.TrimSpace(secret))
	if secret == "" {
		return nil, ErrMissingSecret
	}
	if !ValidateSecretKeyRegex.MatchString(secret) {
		return nil, ErrInvalidSecret
	}
	key, err := b32.DecodeString(strings.TrimRight(secret, "="))
	if err != nil {
		return nil, errors.Join(ErrInvalidSecret, err)
	}
	return key, nil
}

func formatCode(code int) string {
	return fmt.Sprintf("%0*d", DefaultDigits, code)
}
