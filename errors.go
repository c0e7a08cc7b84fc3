package authsession

import (
	"errors"

	"github.com/MrEthical07/authsession/internal/rate"
	"github.com/MrEthical07/authsession/session"
)

var (
	// ErrSessionNotFound is returned when no usable session record exists.
	ErrSessionNotFound = session.ErrSessionNotFound
	// ErrSessionAlreadyUsed is returned when a session was consumed before.
	ErrSessionAlreadyUsed = session.ErrSessionAlreadyUsed
	// ErrSessionExpired is returned when consumption finds the session past its expiry.
	ErrSessionExpired = session.ErrSessionExpired
	// ErrStorageUnavailable wraps backend failures. The cause stays reachable through errors.Is.
	ErrStorageUnavailable = session.ErrStorageUnavailable
	// ErrInvalidRequest is returned when a creation request fails validation.
	ErrInvalidRequest = session.ErrInvalidRequest
	// ErrRateLimited is returned when an owner or client address exhausted
	// its creation budget.
	ErrRateLimited = rate.ErrRateLimited
	// ErrInvalidConfig is returned by [Config.Validate] and [Builder.Build].
	ErrInvalidConfig = errors.New("invalid authentication session config")
	// ErrBuilderUsed is returned when Build is called twice on the same builder.
	ErrBuilderUsed = errors.New("builder already used")
)
