package authsession

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/MrEthical07/authsession/session"
)

// Backend names a session storage backend.
type Backend string

const (
	// BackendAuto derives the backend from Config.Environment.
	BackendAuto     Backend = ""
	BackendMemory   Backend = "memory"
	BackendRedis    Backend = "redis"
	BackendValkey   Backend = "valkey"
	BackendSupabase Backend = "supabase"
)

// Config describes how the process-wide session store is built.
//
// Config values are plain data. They are validated by [Config.Validate] and
// treated as immutable once handed to a [Builder].
type Config struct {
	// Backend overrides the environment-driven choice when set.
	Backend Backend
	// Environment is the deployment stage, e.g. "production" or "test".
	Environment string

	Redis     RedisConfig
	Valkey    ValkeyConfig
	Supabase  SupabaseConfig
	Memory    MemoryConfig
	Session   SessionConfig
	RateLimit RateLimitConfig
	Audit     AuditConfig
	Metrics   MetricsConfig
	Logging   LoggingConfig
}

/*
====================================
BACKEND CONFIG
====================================
*/

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type ValkeyConfig struct {
	Addr     string
	Password string
}

type SupabaseConfig struct {
	URL    string
	APIKey string
	Table  string
}

type MemoryConfig struct {
	// SweepInterval enables the background expiry sweep. Zero disables it.
	SweepInterval time.Duration
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig controls the record layout shared by the durable backends.
type SessionConfig struct {
	KeyPrefix    string
	BlobEncoding string // "json" (default) or "cbor"
	IDFormat     string // "uuid" (default) or "ksuid"
}

// RateLimitConfig throttles session creation per owner and, with PerIP,
// per client address. Counters share the session backend when it is Redis
// or Valkey and live in process memory otherwise.
type RateLimitConfig struct {
	Enabled    bool
	MaxCreates int
	Window     time.Duration
	PerIP      bool
}

/*
====================================
OBSERVABILITY CONFIG
====================================
*/

type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

type LoggingConfig struct {
	Level  string // debug, info, warn, error
	Format string // "json" (default) or "text"
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns a production-leaning configuration. The backend is
// resolved from Environment, which defaults to "production".
func DefaultConfig() Config {
	return Config{
		Backend:     BackendAuto,
		Environment: "production",
		Supabase: SupabaseConfig{
			Table: "authentication_sessions",
		},
		Memory: MemoryConfig{
			SweepInterval: time.Minute,
		},
		Session: SessionConfig{
			KeyPrefix:    "a3ds",
			BlobEncoding: "json",
			IDFormat:     "uuid",
		},
		RateLimit: RateLimitConfig{
			Enabled:    false,
			MaxCreates: 10,
			Window:     time.Minute,
			PerIP:      false,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// localEnvironments select the in-memory backend when no override is set.
var localEnvironments = map[string]bool{
	"test":        true,
	"local":       true,
	"development": true,
}

// ResolveBackend returns the backend Build will construct. An explicit
// Backend wins; otherwise local environments get memory and every other
// environment gets redis.
func (c Config) ResolveBackend() Backend {
	if c.Backend != BackendAuto {
		return c.Backend
	}
	if localEnvironments[strings.ToLower(strings.TrimSpace(c.Environment))] {
		return BackendMemory
	}
	return BackendRedis
}

/*
====================================
VALIDATION
====================================
*/

// Validate checks the fields every backend needs. Backend connection
// parameters are checked in [Builder.Build], where an injected client may
// stand in for an address.
func (c Config) Validate() error {
	switch c.Backend {
	case BackendAuto, BackendMemory, BackendRedis, BackendValkey, BackendSupabase:
	default:
		return fmt.Errorf("%w: unknown backend %q", ErrInvalidConfig, c.Backend)
	}

	if _, err := session.CodecByName(c.Session.BlobEncoding); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if _, err := idGenerator(c.Session.IDFormat); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	if c.Redis.DB < 0 {
		return fmt.Errorf("%w: Redis DB must be >= 0", ErrInvalidConfig)
	}
	if c.Memory.SweepInterval < 0 {
		return fmt.Errorf("%w: Memory SweepInterval must be >= 0", ErrInvalidConfig)
	}
	if c.RateLimit.Enabled && (c.RateLimit.MaxCreates <= 0 || c.RateLimit.Window <= 0) {
		return fmt.Errorf("%w: RateLimit MaxCreates and Window must be > 0 when enabled", ErrInvalidConfig)
	}
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return fmt.Errorf("%w: Audit BufferSize must be > 0 when audit is enabled", ErrInvalidConfig)
	}

	if _, err := parseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "json", "text":
	default:
		return fmt.Errorf("%w: Logging Format must be 'json' or 'text'", ErrInvalidConfig)
	}

	return nil
}

/*
====================================
LOADING
====================================
*/

// EnvPrefix prefixes every environment variable read by [LoadConfig].
const EnvPrefix = "AUTHSESSION_"

// LoadConfig starts from [DefaultConfig], loads the given dotenv files and
// overlays AUTHSESSION_* environment variables. Variables already present in
// the environment are not overridden by dotenv files.
//
// Recognized variables: BACKEND, ENV (or APP_ENV without prefix),
// REDIS_ADDR, REDIS_PASSWORD, REDIS_DB, VALKEY_ADDR, VALKEY_PASSWORD,
// SUPABASE_URL, SUPABASE_KEY, SUPABASE_TABLE, KEY_PREFIX, BLOB_ENCODING,
// ID_FORMAT, MEMORY_SWEEP_INTERVAL, RATE_LIMIT_ENABLED, RATE_LIMIT_MAX,
// RATE_LIMIT_WINDOW, RATE_LIMIT_PER_IP, AUDIT_ENABLED, AUDIT_BUFFER,
// METRICS_ENABLED, LOG_LEVEL, LOG_FORMAT.
func LoadConfig(files ...string) (Config, error) {
	for _, file := range files {
		if err := godotenv.Load(file); err != nil {
			return Config{}, fmt.Errorf("load env file %s: %w", file, err)
		}
	}

	cfg := DefaultConfig()
	var errs []error

	if v, ok := lookupEnv("BACKEND"); ok {
		cfg.Backend = Backend(strings.ToLower(v))
	}
	if v, ok := lookupEnv("ENV"); ok {
		cfg.Environment = v
	} else if v, ok := os.LookupEnv("APP_ENV"); ok && v != "" {
		cfg.Environment = v
	}

	if v, ok := lookupEnv("REDIS_ADDR"); ok {
		cfg.Redis.Addr = v
	}
	if v, ok := lookupEnv("REDIS_PASSWORD"); ok {
		cfg.Redis.Password = v
	}
	if v, ok := lookupEnv("REDIS_DB"); ok {
		db, err := strconv.Atoi(v)
		errs = appendParseErr(errs, "REDIS_DB", err)
		cfg.Redis.DB = db
	}

	if v, ok := lookupEnv("VALKEY_ADDR"); ok {
		cfg.Valkey.Addr = v
	}
	if v, ok := lookupEnv("VALKEY_PASSWORD"); ok {
		cfg.Valkey.Password = v
	}

	if v, ok := lookupEnv("SUPABASE_URL"); ok {
		cfg.Supabase.URL = v
	}
	if v, ok := lookupEnv("SUPABASE_KEY"); ok {
		cfg.Supabase.APIKey = v
	}
	if v, ok := lookupEnv("SUPABASE_TABLE"); ok {
		cfg.Supabase.Table = v
	}

	if v, ok := lookupEnv("KEY_PREFIX"); ok {
		cfg.Session.KeyPrefix = v
	}
	if v, ok := lookupEnv("BLOB_ENCODING"); ok {
		cfg.Session.BlobEncoding = strings.ToLower(v)
	}
	if v, ok := lookupEnv("ID_FORMAT"); ok {
		cfg.Session.IDFormat = strings.ToLower(v)
	}

	if v, ok := lookupEnv("MEMORY_SWEEP_INTERVAL"); ok {
		d, err := time.ParseDuration(v)
		errs = appendParseErr(errs, "MEMORY_SWEEP_INTERVAL", err)
		cfg.Memory.SweepInterval = d
	}

	if v, ok := lookupEnv("RATE_LIMIT_ENABLED"); ok {
		b, err := strconv.ParseBool(v)
		errs = appendParseErr(errs, "RATE_LIMIT_ENABLED", err)
		cfg.RateLimit.Enabled = b
	}
	if v, ok := lookupEnv("RATE_LIMIT_MAX"); ok {
		n, err := strconv.Atoi(v)
		errs = appendParseErr(errs, "RATE_LIMIT_MAX", err)
		cfg.RateLimit.MaxCreates = n
	}
	if v, ok := lookupEnv("RATE_LIMIT_WINDOW"); ok {
		d, err := time.ParseDuration(v)
		errs = appendParseErr(errs, "RATE_LIMIT_WINDOW", err)
		cfg.RateLimit.Window = d
	}
	if v, ok := lookupEnv("RATE_LIMIT_PER_IP"); ok {
		b, err := strconv.ParseBool(v)
		errs = appendParseErr(errs, "RATE_LIMIT_PER_IP", err)
		cfg.RateLimit.PerIP = b
	}

	if v, ok := lookupEnv("AUDIT_ENABLED"); ok {
		b, err := strconv.ParseBool(v)
		errs = appendParseErr(errs, "AUDIT_ENABLED", err)
		cfg.Audit.Enabled = b
	}
	if v, ok := lookupEnv("AUDIT_BUFFER"); ok {
		n, err := strconv.Atoi(v)
		errs = appendParseErr(errs, "AUDIT_BUFFER", err)
		cfg.Audit.BufferSize = n
	}
	if v, ok := lookupEnv("METRICS_ENABLED"); ok {
		b, err := strconv.ParseBool(v)
		errs = appendParseErr(errs, "METRICS_ENABLED", err)
		cfg.Metrics.Enabled = b
	}

	if v, ok := lookupEnv("LOG_LEVEL"); ok {
		cfg.Logging.Level = v
	}
	if v, ok := lookupEnv("LOG_FORMAT"); ok {
		cfg.Logging.Format = v
	}

	if len(errs) > 0 {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalidConfig, errs[0])
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func lookupEnv(name string) (string, bool) {
	v, ok := os.LookupEnv(EnvPrefix + name)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

func appendParseErr(errs []error, name string, err error) []error {
	if err == nil {
		return errs
	}
	return append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
}
