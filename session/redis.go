package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

var (
	createLua     = redis.NewScript(createScript)
	transitionLua = redis.NewScript(transitionScript)
)

// RedisProvider stores sessions as Redis hashes with native key expiry.
//
// Create is one Lua call (EXISTS guard, HSET, PEXPIREAT) so the key expires on
// the same millisecond as the record. Consumption is a single Lua
// compare-and-swap, so concurrent completions across processes see exactly
// one winner.
type RedisProvider struct {
	redis redis.UniversalClient
	opts  *options
}

// NewRedisProvider creates a provider on top of an existing client. The
// provider does not own the client unless Close is called.
func NewRedisProvider(client redis.UniversalClient, opts ...Option) *RedisProvider {
	return &RedisProvider{
		redis: client,
		opts:  newOptions(opts),
	}
}

func (p *RedisProvider) key(id string) string {
	return p.opts.prefix + ":" + id
}

// CreateSession implements Provider.
func (p *RedisProvider) CreateSession(ctx context.Context, req CreateRequest) (*Session, error) {
	s := newSession(p.opts.newID(), req, p.opts.now())

	fields, err := encodeRecord(s, p.opts.codec)
	if err != nil {
		return nil, storageError(err)
	}

	argv := createArgs(s, fields)
	args := make([]any, len(argv))
	for i, a := range argv {
		args[i] = a
	}
	created, err := createLua.Run(ctx, p.redis, []string{p.key(s.ID)}, args...).Int64()
	if err != nil {
		return nil, storageError(err)
	}
	if created == 0 {
		return nil, storageErrorf("duplicate session id %s", s.ID)
	}

	return s, nil
}

// GetSession implements Provider. An expired record is deleted on the way out.
func (p *RedisProvider) GetSession(ctx context.Context, id string) (*Session, error) {
	s, err := p.readRaw(ctx, id)
	if err != nil || s == nil {
		return nil, err
	}

	now := p.opts.now()
	if s.EffectiveStatus(now) == StatusExpired {
		if err := p.redis.Del(ctx, p.key(id)).Err(); err != nil {
			p.opts.logger.DebugContext(ctx, "expired session cleanup failed",
				slog.String("session_id", id), slog.Any("error", err))
		}
		return nil, nil
	}
	if !s.Live(now) {
		return nil, nil
	}
	return s, nil
}

// MarkSessionUsed implements Provider.
func (p *RedisProvider) MarkSessionUsed(ctx context.Context, id string) error {
	return markUsed(ctx, p, id, p.opts.now())
}

// TryTransition implements Transitioner with a Lua compare-and-swap.
func (p *RedisProvider) TryTransition(ctx context.Context, id string, from, to Status) (bool, error) {
	swapped, err := transitionLua.Run(
		ctx,
		p.redis,
		[]string{p.key(id)},
		string(from),
		string(to),
		p.opts.now().UnixMilli(),
	).Int64()
	if err != nil {
		return false, storageError(err)
	}
	return swapped == 1, nil
}

// DeleteSession implements Provider.
func (p *RedisProvider) DeleteSession(ctx context.Context, id string) (bool, error) {
	n, err := p.redis.Del(ctx, p.key(id)).Result()
	if err != nil {
		return false, storageError(err)
	}
	return n > 0, nil
}

// HealthCheck implements Provider.
func (p *RedisProvider) HealthCheck(ctx context.Context) bool {
	return p.redis.Ping(ctx).Err() == nil
}

// Close closes the underlying client.
func (p *RedisProvider) Close() error {
	return p.redis.Close()
}

func (p *RedisProvider) readRaw(ctx context.Context, id string) (*Session, error) {
	fields, err := p.redis.HGetAll(ctx, p.key(id)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, storageError(err)
	}

	s, err := decodeRecord(fields)
	if err != nil {
		return nil, storageError(fmt.Errorf("session %s: %w", id, err))
	}
	return s, nil
}

var (
	_ Provider     = (*RedisProvider)(nil)
	_ Transitioner = (*RedisProvider)(nil)
)
