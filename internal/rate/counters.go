package rate

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/valkey-io/valkey-go"
)

// incrScript bumps a fixed window and sets its expiry in one step. A counter
// found without an expiry gets one, so a window can never become permanent.
//
// KEYS[1] window key
// ARGV[1] window length (ms)
const incrScript = `
local count = redis.call("INCR", KEYS[1])
if count == 1 or redis.call("PTTL", KEYS[1]) < 0 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return count
`

var (
	incrLua       = redis.NewScript(incrScript)
	valkeyIncrLua = valkey.NewLuaScript(incrScript)
)

// RedisCounter keeps windows in Redis.
type RedisCounter struct {
	client redis.UniversalClient
}

func NewRedisCounter(client redis.UniversalClient) *RedisCounter {
	return &RedisCounter{client: client}
}

func (c *RedisCounter) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	count, err := incrLua.Run(ctx, c.client, []string{key}, window.Milliseconds()).Int64()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrCounterUnavailable, err)
	}
	return count, nil
}

// ValkeyCounter keeps windows in Valkey.
type ValkeyCounter struct {
	client valkey.Client
}

func NewValkeyCounter(client valkey.Client) *ValkeyCounter {
	return &ValkeyCounter{client: client}
}

func (c *ValkeyCounter) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	args := []string{strconv.FormatInt(window.Milliseconds(), 10)}
	count, err := valkeyIncrLua.Exec(ctx, c.client, []string{key}, args).AsInt64()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrCounterUnavailable, err)
	}
	return count, nil
}

// MemoryCounter keeps windows in process memory. Expired windows are
// replaced on the next hit.
type MemoryCounter struct {
	mu      sync.Mutex
	now     func() time.Time
	windows map[string]memoryWindow
}

type memoryWindow struct {
	count   int64
	expires time.Time
}

// NewMemoryCounter returns a MemoryCounter reading time from now, or
// time.Now when now is nil.
func NewMemoryCounter(now func() time.Time) *MemoryCounter {
	if now == nil {
		now = time.Now
	}
	return &MemoryCounter{now: now, windows: make(map[string]memoryWindow)}
}

func (c *MemoryCounter) Incr(_ context.Context, key string, window time.Duration) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	w, ok := c.windows[key]
	if !ok || !now.Before(w.expires) {
		c.prune(now)
		w = memoryWindow{expires: now.Add(window)}
	}
	w.count++
	c.windows[key] = w
	return w.count, nil
}

func (c *MemoryCounter) prune(now time.Time) {
	for k, w := range c.windows {
		if !now.Before(w.expires) {
			delete(c.windows, k)
		}
	}
}
