package session

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Clock returns the current time. Providers use it for stamping and expiry checks.
type Clock func() time.Time

// IDGenerator returns a new, globally unique session id.
type IDGenerator func() string

// Option configures a provider.
type Option func(*options)

type options struct {
	clock         Clock
	newID         IDGenerator
	prefix        string
	table         string
	codec         Codec
	logger        *slog.Logger
	sweepInterval time.Duration
}

const (
	defaultKeyPrefix = "a3ds"
	defaultTable     = "authentication_sessions"
)

func newOptions(opts []Option) *options {
	o := &options{
		clock:  time.Now,
		newID:  uuid.NewString,
		prefix: defaultKeyPrefix,
		table:  defaultTable,
		codec:  JSONCodec{},
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.DiscardHandler)
	}
	return o
}

func (o *options) now() time.Time {
	return normalizeTime(o.clock())
}

// WithClock overrides the time source.
func WithClock(clock Clock) Option {
	return func(o *options) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithIDGenerator overrides session id generation. The default is a random UUID.
func WithIDGenerator(gen IDGenerator) Option {
	return func(o *options) {
		if gen != nil {
			o.newID = gen
		}
	}
}

// WithKeyPrefix sets the key namespace used by the Redis and Valkey providers.
func WithKeyPrefix(prefix string) Option {
	return func(o *options) {
		if prefix != "" {
			o.prefix = prefix
		}
	}
}

// WithTable sets the table used by the Supabase provider.
func WithTable(table string) Option {
	return func(o *options) {
		if table != "" {
			o.table = table
		}
	}
}

// WithCodec sets the codec for billing and shipping blobs. Only the hash-based
// providers (Redis, Valkey) encode blobs; memory and Supabase ignore it.
func WithCodec(codec Codec) Option {
	return func(o *options) {
		if codec != nil {
			o.codec = codec
		}
	}
}

// WithLogger sets the logger for best-effort side effects such as cleanup of
// expired records.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithSweepInterval enables the background expiry sweep of [MemoryProvider].
func WithSweepInterval(d time.Duration) Option {
	return func(o *options) {
		o.sweepInterval = d
	}
}
