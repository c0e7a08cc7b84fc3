package middleware

import (
	"errors"
	"net/http"

	"github.com/MrEthical07/authsession"
	"github.com/MrEthical07/authsession/principal"
)

// ErrNotOwner is returned when the caller is not the principal that created
// the session.
var ErrNotOwner = errors.New("session belongs to another principal")

// StatusFor maps a store or guard error to an HTTP status. A session that
// cannot be completed is a conflict with the client's view of the checkout.
func StatusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, authsession.ErrSessionNotFound),
		errors.Is(err, authsession.ErrSessionAlreadyUsed),
		errors.Is(err, authsession.ErrSessionExpired):
		return http.StatusConflict
	case errors.Is(err, authsession.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, authsession.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, principal.ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, ErrNotOwner):
		return http.StatusForbidden
	case errors.Is(err, authsession.ErrStorageUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// ErrorCode is the stable machine-readable name of err for response bodies.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, authsession.ErrSessionNotFound):
		return "session_not_found"
	case errors.Is(err, authsession.ErrSessionAlreadyUsed):
		return "session_already_used"
	case errors.Is(err, authsession.ErrSessionExpired):
		return "session_expired"
	case errors.Is(err, authsession.ErrInvalidRequest):
		return "invalid_request"
	case errors.Is(err, authsession.ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, principal.ErrInvalidToken):
		return "unauthorized"
	case errors.Is(err, ErrNotOwner):
		return "forbidden"
	case errors.Is(err, authsession.ErrStorageUnavailable):
		return "storage_unavailable"
	default:
		return "internal_error"
	}
}
