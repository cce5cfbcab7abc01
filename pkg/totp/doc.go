// Package totp implements RFC 6238 time-based one-time passwords on top of the
// RFC 4226 HOTP construction.
//
// Codes are 6 digits over 30-second steps with HMAC-SHA1, which is what
// common authenticator apps expect. Secrets are 160-bit random values encoded
// as unpadded base32.
//
// # Usage
//
//	secret, err := totp.GenerateSecretKey()
//	uri, err := totp.GetTOTPURI(totp.TOTPParams{
//		Secret:      secret,
//		AccountName: "user@example.com",
//		Issuer:      "Secure Job Platform",
//	})
//	// render uri as a QR code, let the user scan it
//
//	ok, err := totp.ValidateTOTP(secret, userInput)
//
// ValidateTOTPAt accepts an explicit time and skew (number of steps tolerated
// on either side), which keeps validation testable. ValidateTOTP uses the
// current time and one step of skew, so a code is accepted 30 seconds before
// and after its own window but not 90 seconds away.
//
// The package holds no state. Storing the secret (encrypted) and tracking
// whether it is confirmed is left to the caller.
package totp
