package session

import (
	"errors"
	"fmt"
)

var (
	// ErrSessionNotFound means no usable record exists. Callers treat it as absence.
	ErrSessionNotFound = errors.New("authentication session not found")
	// ErrSessionAlreadyUsed is returned when consumption finds the session no longer pending.
	ErrSessionAlreadyUsed = errors.New("authentication session already used")
	// ErrSessionExpired is returned when consumption finds the record past its expiry.
	ErrSessionExpired = errors.New("authentication session expired")
	// ErrStorageUnavailable wraps every backend failure unrelated to session state.
	ErrStorageUnavailable = errors.New("authentication session storage unavailable")
	// ErrInvalidRequest is returned when a creation request fails validation.
	ErrInvalidRequest = errors.New("invalid authentication session request")
)

func storageError(err error) error {
	return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
}

func storageErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrStorageUnavailable, fmt.Sprintf(format, args...))
}
