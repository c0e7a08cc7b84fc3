package session

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/valkey-io/valkey-go"
)

var (
	valkeyTransitionLua = valkey.NewLuaScript(transitionScript)
	valkeyCreateLua     = valkey.NewLuaScript(createScript)
)

// ValkeyProvider is the Valkey counterpart of [RedisProvider]. It writes the
// same record layout, so both providers can read each other's records.
type ValkeyProvider struct {
	client valkey.Client
	opts   *options
}

func NewValkeyProvider(client valkey.Client, opts ...Option) *ValkeyProvider {
	return &ValkeyProvider{
		client: client,
		opts:   newOptions(opts),
	}
}

func (p *ValkeyProvider) key(id string) string {
	return p.opts.prefix + ":" + id
}

func (p *ValkeyProvider) CreateSession(ctx context.Context, req CreateRequest) (*Session, error) {
	s := newSession(p.opts.newID(), req, p.opts.now())

	fields, err := encodeRecord(s, p.opts.codec)
	if err != nil {
		return nil, storageError(err)
	}

	created, err := valkeyCreateLua.Exec(ctx, p.client, []string{p.key(s.ID)}, createArgs(s, fields)).AsInt64()
	if err != nil {
		return nil, storageError(err)
	}
	if created == 0 {
		return nil, storageErrorf("duplicate session id %s", s.ID)
	}
	return s, nil
}

func (p *ValkeyProvider) GetSession(ctx context.Context, id string) (*Session, error) {
	s, err := p.readRaw(ctx, id)
	if err != nil || s == nil {
		return nil, err
	}

	now := p.opts.now()
	if s.EffectiveStatus(now) == StatusExpired {
		del := p.client.B().Del().Key(p.key(id)).Build()
		if err := p.client.Do(ctx, del).Error(); err != nil {
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

func (p *ValkeyProvider) MarkSessionUsed(ctx context.Context, id string) error {
	return markUsed(ctx, p, id, p.opts.now())
}

func (p *ValkeyProvider) TryTransition(ctx context.Context, id string, from, to Status) (bool, error) {
	swapped, err := valkeyTransitionLua.Exec(
		ctx,
		p.client,
		[]string{p.key(id)},
		[]string{string(from), string(to), strconv.FormatInt(p.opts.now().UnixMilli(), 10)},
	).AsInt64()
	if err != nil {
		return false, storageError(err)
	}
	return swapped == 1, nil
}

func (p *ValkeyProvider) DeleteSession(ctx context.Context, id string) (bool, error) {
	n, err := p.client.Do(ctx, p.client.B().Del().Key(p.key(id)).Build()).AsInt64()
	if err != nil {
		return false, storageError(err)
	}
	return n > 0, nil
}

func (p *ValkeyProvider) HealthCheck(ctx context.Context) bool {
	return p.client.Do(ctx, p.client.B().Ping().Build()).Error() == nil
}

func (p *ValkeyProvider) Close() error {
	p.client.Close()
	return nil
}

func (p *ValkeyProvider) readRaw(ctx context.Context, id string) (*Session, error) {
	fields, err := p.client.Do(ctx, p.client.B().Hgetall().Key(p.key(id)).Build()).AsStrMap()
	if err != nil {
		if valkey.IsValkeyNil(err) {
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
	_ Provider     = (*ValkeyProvider)(nil)
	_ Transitioner = (*ValkeyProvider)(nil)
)
