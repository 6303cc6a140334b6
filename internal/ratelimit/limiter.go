package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limiter grants or denies one request for a source key under a fixed
// request budget per time window.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

var fixedWindowScript = redis.NewScript(`
-- KEYS[1] = window counter key
-- ARGV[1] = limit (int)
-- ARGV[2] = window_ms (int)
--
-- Returns 1 if allowed, 0 if the budget is exhausted.
local current = redis.call('INCR', KEYS[1])
if current == 1 then
  redis.call('PEXPIRE', KEYS[1], ARGV[2])
else
  if redis.call('PTTL', KEYS[1]) < 0 then
    redis.call('PEXPIRE', KEYS[1], ARGV[2])
  end
end

if current > tonumber(ARGV[1]) then
  return 0
end
return 1
`)

// RedisLimiter is a fixed-window counter shared across processes.
type RedisLimiter struct {
	rdb    *redis.Client
	limit  int
	window time.Duration
}

func NewRedisLimiter(rdb *redis.Client, limit int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{rdb: rdb, limit: limit, window: window}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	res, err := fixedWindowScript.Run(ctx, l.rdb, []string{"ratelimit:" + key}, l.limit, l.window.Milliseconds()).Int()
	if err != nil {
		return false, err
	}
	return res == 1, nil
}

// MemoryLimiter is the single-process fallback when Redis is not configured.
// Expired windows are swept on access so the map stays bounded by the number
// of sources seen within one window, not over the process lifetime.
type MemoryLimiter struct {
	mu        sync.Mutex
	limit     int
	window    time.Duration
	clock     func() time.Time
	windows   map[string]*window
	lastSweep time.Time
}

type window struct {
	start time.Time
	count int
}

func NewMemoryLimiter(limit int, win time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		limit:   limit,
		window:  win,
		clock:   time.Now,
		windows: make(map[string]*window),
	}
}

// WithClock overrides the limiter clock. Test hook.
func (l *MemoryLimiter) WithClock(clock func() time.Time) *MemoryLimiter {
	l.clock = clock
	return l
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (bool, error) {
	now := l.clock()

	l.mu.Lock()
	defer l.mu.Unlock()

	// At most one sweep per window keeps Allow amortized O(1).
	if now.Sub(l.lastSweep) >= l.window {
		for k, w := range l.windows {
			if now.Sub(w.start) >= l.window {
				delete(l.windows, k)
			}
		}
		l.lastSweep = now
	}

	w, ok := l.windows[key]
	if !ok || now.Sub(w.start) >= l.window {
		l.windows[key] = &window{start: now, count: 1}
		return true, nil
	}
	w.count++
	return w.count <= l.limit, nil
}
