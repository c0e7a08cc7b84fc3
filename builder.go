package authsession

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/ksuid"
	"github.com/supabase-community/supabase-go"
	"github.com/valkey-io/valkey-go"

	"github.com/MrEthical07/authsession/internal/audit"
	"github.com/MrEthical07/authsession/internal/rate"
	"github.com/MrEthical07/authsession/session"
)

// Builder assembles a [Store]. Injected clients take precedence over the
// addresses in Config. A Builder is single use.
type Builder struct {
	config Config

	redis    redis.UniversalClient
	valkey   valkey.Client
	supabase *supabase.Client
	provider session.Provider

	logger    *slog.Logger
	auditSink AuditSink
	clock     session.Clock

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithRedis injects a Redis client for the redis backend. The Store takes
// ownership and closes it on Close.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithValkey injects a Valkey client for the valkey backend. The Store takes
// ownership and closes it on Close.
func (b *Builder) WithValkey(client valkey.Client) *Builder {
	b.valkey = client
	return b
}

// WithSupabase injects a Supabase client for the supabase backend.
func (b *Builder) WithSupabase(client *supabase.Client) *Builder {
	b.supabase = client
	return b
}

// WithProvider bypasses backend selection and wraps p directly.
func (b *Builder) WithProvider(p session.Provider) *Builder {
	b.provider = p
	return b
}

func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithClock overrides the time source of the built provider and audit events.
func (b *Builder) WithClock(clock session.Clock) *Builder {
	b.clock = clock
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// Build validates the configuration and constructs the provider. Missing
// backend parameters fail here, never on first use.
func (b *Builder) Build() (*Store, error) {
	if b.built {
		return nil, ErrBuilderUsed
	}

	cfg := b.config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		l, err := NewLogger(cfg.Logging, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		logger = l
	}
	clock := b.clock
	if clock == nil {
		clock = time.Now
	}

	backend := cfg.ResolveBackend()
	provider := b.provider
	var counter rate.Counter
	if provider == nil {
		p, c, err := b.buildProvider(cfg, backend, logger, clock)
		if err != nil {
			return nil, err
		}
		provider, counter = p, c
	}
	var limiter *rate.Limiter
	if cfg.RateLimit.Enabled {
		if counter == nil {
			counter = rate.NewMemoryCounter(clock)
		}
		limiter = rate.New(counter, cfg.Session.KeyPrefix, rate.Config{
			MaxCreates: cfg.RateLimit.MaxCreates,
			Window:     cfg.RateLimit.Window,
			PerIP:      cfg.RateLimit.PerIP,
		})
	}

	store := &Store{
		provider: provider,
		backend:  backend,
		metrics:  NewMetrics(cfg.Metrics),
		limiter:  limiter,
		audit: audit.NewDispatcher(audit.Config{
			Enabled:    cfg.Audit.Enabled,
			BufferSize: cfg.Audit.BufferSize,
			DropIfFull: cfg.Audit.DropIfFull,
		}, b.auditSink, clock),
		logger: logger,
		clock:  clock,
	}

	b.built = true

	logger.Info("authentication session store ready",
		slog.String("backend", string(backend)),
		slog.String("environment", cfg.Environment),
	)
	return store, nil
}

// buildProvider constructs the backend provider and, where the backend can
// hold them, a shared rate counter. A nil counter means process memory.
func (b *Builder) buildProvider(cfg Config, backend Backend, logger *slog.Logger, clock session.Clock) (session.Provider, rate.Counter, error) {
	codec, err := session.CodecByName(cfg.Session.BlobEncoding)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	newID, err := idGenerator(cfg.Session.IDFormat)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	opts := []session.Option{
		session.WithClock(clock),
		session.WithIDGenerator(newID),
		session.WithKeyPrefix(cfg.Session.KeyPrefix),
		session.WithTable(cfg.Supabase.Table),
		session.WithCodec(codec),
		session.WithLogger(logger.With(slog.String("backend", string(backend)))),
	}

	switch backend {
	case BackendMemory:
		opts = append(opts, session.WithSweepInterval(cfg.Memory.SweepInterval))
		return session.NewMemoryProvider(opts...), nil, nil

	case BackendRedis:
		client := b.redis
		if client == nil {
			if cfg.Redis.Addr == "" {
				return nil, nil, fmt.Errorf("%w: redis backend requires a client or Redis.Addr", ErrInvalidConfig)
			}
			client = redis.NewClient(&redis.Options{
				Addr:     cfg.Redis.Addr,
				Password: cfg.Redis.Password,
				DB:       cfg.Redis.DB,
			})
		}
		return session.NewRedisProvider(client, opts...), rate.NewRedisCounter(client), nil

	case BackendValkey:
		client := b.valkey
		if client == nil {
			if cfg.Valkey.Addr == "" {
				return nil, nil, fmt.Errorf("%w: valkey backend requires a client or Valkey.Addr", ErrInvalidConfig)
			}
			client, err = valkey.NewClient(valkey.ClientOption{
				InitAddress: []string{cfg.Valkey.Addr},
				Password:    cfg.Valkey.Password,
			})
			if err != nil {
				return nil, nil, fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
			}
		}
		return session.NewValkeyProvider(client, opts...), rate.NewValkeyCounter(client), nil

	case BackendSupabase:
		if b.supabase != nil {
			return session.NewSupabaseProviderFromClient(b.supabase, opts...), nil, nil
		}
		if cfg.Supabase.URL == "" || cfg.Supabase.APIKey == "" {
			return nil, nil, fmt.Errorf("%w: supabase backend requires Supabase.URL and Supabase.APIKey", ErrInvalidConfig)
		}
		p, err := session.NewSupabaseProvider(session.SupabaseConfig{
			URL:    cfg.Supabase.URL,
			APIKey: cfg.Supabase.APIKey,
		}, opts...)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		return p, nil, nil

	default:
		return nil, nil, fmt.Errorf("%w: unknown backend %q", ErrInvalidConfig, backend)
	}
}

func idGenerator(format string) (session.IDGenerator, error) {
	switch format {
	case "", "uuid":
		return uuid.NewString, nil
	case "ksuid":
		return func() string { return ksuid.New().String() }, nil
	default:
		return nil, fmt.Errorf("unknown session id format %q", format)
	}
}
