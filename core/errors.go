package core

import (
	"errors"
	"fmt"
)

// Kind is a stable, caller-facing classification of a failure.
// Boundary layers render a response from the kind alone, never from the
// wrapped cause.
type Kind string

const (
	KindInvalidCredential Kind = "invalid_credential"
	KindExpired           Kind = "expired"
	KindAttemptsExhausted Kind = "attempts_exhausted"
	KindAlreadyInState    Kind = "already_in_state"
	KindNotFound          Kind = "not_found"
	KindDecryptionFailure Kind = "decryption_failure"
	KindConflict          Kind = "conflict"
	KindForbidden         Kind = "forbidden"
	KindValidation        Kind = "validation"
	KindRateLimited       Kind = "rate_limited"
	KindMalformed         Kind = "malformed_request"
	KindTooLarge          Kind = "too_large"
	KindInternal          Kind = "internal"
)

// Error carries a Kind, a translation-friendly Key, a user-safe Message and
// the underlying cause. Only Kind, Key and Message may leave the process.
type Error struct {
	Kind    Kind
	Key     string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Key, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Key)
}

// Unwrap exposes the cause for errors.Is / errors.As.
func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error by Kind and Key, so package level values can be
// used as sentinels.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && (t.Key == "" || e.Key == t.Key)
}

// Wrap returns a copy of e carrying cause.
func (e *Error) Wrap(cause error) *Error {
	cp := *e
	cp.Err = cause
	return &cp
}

// WithMessage returns a copy of e with a different user-facing message.
func (e *Error) WithMessage(msg string) *Error {
	cp := *e
	cp.Message = msg
	return &cp
}

// New creates an Error of the given kind.
func New(kind Kind, key, message string) *Error {
	return &Error{Kind: kind, Key: key, Message: message}
}

// Internal wraps an infrastructure failure. The cause is kept for logs only.
func Internal(cause error) *Error {
	return &Error{
		Kind:    KindInternal,
		Key:     "internal_error",
		Message: "Something went wrong. Please try again later.",
		Err:     cause,
	}
}

// KindOf reports the Kind of err. Unclassified errors are KindInternal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	var verr ValidationError
	if errors.As(err, &verr) {
		return KindValidation
	}
	return KindInternal
}

// Public returns the renderable part of err. Unclassified errors collapse to
// a generic internal error so no detail leaks.
func Public(err error) *Error {
	var e *Error
	if errors.As(err, &e) && e.Kind != KindInternal {
		return &Error{Kind: e.Kind, Key: e.Key, Message: e.Message}
	}
	pub := Internal(nil)
	pub.Err = nil
	return pub
}

// Common application errors. Services return these (optionally wrapped) so
// that the boundary renders uniform, information-minimal responses.
var (
	ErrInvalidCredential = New(KindInvalidCredential, "invalid_credentials", "Invalid credentials.")
	ErrInvalidToken      = New(KindInvalidCredential, "invalid_token", "Invalid authentication credentials.")
	ErrInvalidCode       = New(KindInvalidCredential, "invalid_code", "Invalid verification code.")
	ErrNoChallenge       = New(KindInvalidCredential, "no_challenge", "No valid verification code found.")
	ErrCodeExpired       = New(KindExpired, "code_expired", "Verification code has expired.")
	ErrAttemptsExhausted = New(KindAttemptsExhausted, "attempts_exhausted", "Maximum verification attempts exceeded.")
	ErrAlreadyVerified   = New(KindAlreadyInState, "already_verified", "Email already verified.")
	ErrTOTPEnabled       = New(KindAlreadyInState, "totp_already_enabled", "Two-factor authentication is already enabled.")
	ErrTOTPNotEnabled    = New(KindAlreadyInState, "totp_not_enabled", "Two-factor authentication is not enabled.")
	ErrTOTPNotEnrolled   = New(KindNotFound, "totp_not_enrolled", "Two-factor authentication has not been initialized.")
	ErrNotFound          = New(KindNotFound, "not_found", "Resource not found.")
	ErrDecryption        = New(KindDecryptionFailure, "decryption_failed", "Failed to decrypt stored document.")
	ErrEmailTaken        = New(KindConflict, "email_taken", "Email already registered.")
	ErrForbidden         = New(KindForbidden, "forbidden", "You don't have permission to perform this action.")
	ErrAccountInactive   = New(KindForbidden, "account_inactive", "Account is inactive.")
	ErrAccountSuspended  = New(KindForbidden, "account_suspended", "Account is suspended.")
	ErrEmailNotVerified  = New(KindForbidden, "email_not_verified", "Email not verified. Please verify your email first.")
	ErrValidation        = New(KindValidation, "validation_error", "Request validation failed.")
	ErrTooManyRequests   = New(KindRateLimited, "too_many_requests", "Too many requests. Please try again later.")
	ErrUnauthorized      = New(KindInvalidCredential, "unauthorized", "Authentication required.")
	ErrPayloadTooLarge   = New(KindTooLarge, "payload_too_large", "Uploaded file is too large.")
	ErrBadRequest        = New(KindMalformed, "bad_request", "Malformed request body.")
)
