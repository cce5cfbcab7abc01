// Package otp issues and verifies short-lived numeric one-time codes bound to
// an identity and a purpose (email verification, password reset and so on).
//
// Each (identity, purpose) pair moves through
//
//	NONE -> ISSUED -> CONSUMED | EXPIRED | EXHAUSTED
//
// Issuing a new challenge invalidates every outstanding challenge for the same
// pair, so only the newest code is ever accepted. Only an HMAC-SHA256 digest
// of the code is stored; the plaintext is returned once to the caller for
// out-of-band delivery.
//
// Verification increments the attempt counter before the comparison. A crash
// between the two steps burns an attempt instead of allowing a replay. Both
// the increment and the consume step are conditional updates in the Store, so
// two concurrent verifications of the same challenge can never both succeed
// and no increment is lost.
//
// The Sweeper periodically deletes expired challenges. It is housekeeping
// only: expired challenges are rejected at verification time whether or not
// the sweep has run.
//
// # Usage
//
//	m, err := otp.NewManager(store, otp.Config{Pepper: cfg.Pepper})
//	code, _, err := m.Issue(ctx, userID, otp.PurposeRegistration)
//	// deliver code by email
//	err = m.Verify(ctx, userID, otp.PurposeRegistration, input)
//	var invalid *otp.InvalidCodeError
//	if errors.As(err, &invalid) {
//		fmt.Println(invalid.Remaining)
//	}
package otp
