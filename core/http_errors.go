package core

import "net/http"

// HTTPStatus maps an error Kind to the status code the boundary renders.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindInvalidCredential:
		return http.StatusUnauthorized
	case KindExpired, KindAttemptsExhausted, KindAlreadyInState, KindMalformed:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindForbidden:
		return http.StatusForbidden
	case KindValidation:
		return http.StatusUnprocessableEntity
	case KindTooLarge:
		return http.StatusRequestEntityTooLarge
	case KindRateLimited:
		return http.StatusTooManyRequests
	default:
		// DecryptionFailure is a server-side integrity problem, not a client one.
		return http.StatusInternalServerError
	}
}

// StatusOf classifies err and returns its HTTP status.
func StatusOf(err error) int {
	if err == nil {
		return http.StatusOK
	}
	return HTTPStatus(KindOf(err))
}
