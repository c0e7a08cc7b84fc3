package rate

import (
	"context"
	"time"
)

// Config holds limiter tuning parameters.
type Config struct {
	// MaxCreates is the number of sessions allowed per window. Zero disables
	// the limiter.
	MaxCreates int
	Window     time.Duration
	// PerIP also applies MaxCreates to each client address.
	PerIP bool
}

// Counter increments key and returns the count within the current window.
// The window starts on the first increment.
type Counter interface {
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
}

// Limiter enforces creation budgets per owner and, optionally, per IP.
// A nil *Limiter allows everything.
type Limiter struct {
	counter Counter
	config  Config
	prefix  string
}

// New creates a Limiter. prefix is prepended to every counter key.
func New(counter Counter, prefix string, cfg Config) *Limiter {
	if counter == nil || cfg.MaxCreates <= 0 || cfg.Window <= 0 {
		return nil
	}
	return &Limiter{
		counter: counter,
		config:  cfg,
		prefix:  prefix,
	}
}

// AllowCreate records a creation attempt by owner from ip and reports
// ErrRateLimited once either budget is spent. Attempts count even when
// rejected, so a client hammering the endpoint stays throttled for the
// whole window.
func (l *Limiter) AllowCreate(ctx context.Context, owner, ip string) error {
	if l == nil {
		return nil
	}

	if owner != "" {
		if err := l.hit(ctx, l.ownerKey(owner)); err != nil {
			return err
		}
	}
	if l.config.PerIP && ip != "" {
		if err := l.hit(ctx, l.ipKey(ip)); err != nil {
			return err
		}
	}
	return nil
}

func (l *Limiter) hit(ctx context.Context, key string) error {
	count, err := l.counter.Incr(ctx, key, l.config.Window)
	if err != nil {
		return err
	}
	if count > int64(l.config.MaxCreates) {
		return ErrRateLimited
	}
	return nil
}

func (l *Limiter) ownerKey(owner string) string {
	return l.join("rl:o:" + owner)
}

func (l *Limiter) ipKey(ip string) string {
	return l.join("rl:ip:" + ip)
}

func (l *Limiter) join(key string) string {
	if l.prefix == "" {
		return key
	}
	return l.prefix + ":" + key
}
