package session

import (
	"context"
	"time"
)

// Provider is the storage contract shared by every backend.
type Provider interface {
	// CreateSession persists a new pending session and returns it with the
	// generated ID and timestamps. Each call yields a distinct session.
	CreateSession(ctx context.Context, req CreateRequest) (*Session, error)

	// GetSession returns the session only while it is pending and unexpired.
	// It returns (nil, nil) otherwise, whatever the reason.
	GetSession(ctx context.Context, id string) (*Session, error)

	// MarkSessionUsed atomically moves the session from pending to used.
	// Returns ErrSessionAlreadyUsed, ErrSessionExpired or ErrSessionNotFound
	// when the transition is refused.
	MarkSessionUsed(ctx context.Context, id string) error

	// DeleteSession removes the record and reports whether one existed.
	DeleteSession(ctx context.Context, id string) (bool, error)

	// HealthCheck probes the backend. It never returns an error.
	HealthCheck(ctx context.Context) bool

	// Close releases resources owned by the provider.
	Close() error
}

// Transitioner is the compare-and-swap primitive a backend must offer.
//
// TryTransition sets the status of id to `to` only if it currently equals
// `from` and the record has not expired. It reports whether the swap happened.
type Transitioner interface {
	TryTransition(ctx context.Context, id string, from, to Status) (bool, error)
}

// rawReader reads a record regardless of status or expiry. It returns
// (nil, nil) when no record exists.
type rawReader interface {
	readRaw(ctx context.Context, id string) (*Session, error)
}

type consumer interface {
	Transitioner
	rawReader
}

// markUsed is the single consumption routine for every provider.
func markUsed(ctx context.Context, c consumer, id string, now time.Time) error {
	ok, err := c.TryTransition(ctx, id, StatusPending, StatusUsed)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}

	rec, err := c.readRaw(ctx, id)
	if err != nil {
		return err
	}
	switch {
	case rec == nil:
		return ErrSessionNotFound
	case rec.Status == StatusUsed:
		return ErrSessionAlreadyUsed
	case !now.Before(rec.ExpiresAt):
		return ErrSessionExpired
	default:
		return storageErrorf("transition refused for pending session %s", id)
	}
}
