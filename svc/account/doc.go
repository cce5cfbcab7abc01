// Package account implements the credential lifecycle of a platform user:
// registration with email verification, password login with an optional
// TOTP second factor, token refresh, password reset and account deletion.
//
// The service owns no storage. Users and TOTP enrollments are persisted
// through UserStore and EnrollmentStore; one-time codes go through an
// *otp.Manager; tokens come from a *jwt.Service. Every failure returned to a
// caller is a *core.Error (or wraps one), so the HTTP boundary renders it
// from its Kind alone.
//
// Codes are handed to a Notifier for delivery. Delivery runs in the
// background and its failure never changes the outcome of the operation
// that produced the code.
package account
