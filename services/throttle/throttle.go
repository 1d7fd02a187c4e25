// Package throttle counts attempts per key within a fixed window.
package throttle

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/trezcool/homeschool/core"
)

// Limiter blocks a key once it made MaxAttempts attempts within the window.
type Limiter interface {
	// Attempt counts an attempt for key and reports whether it may go ahead.
	Attempt(ctx context.Context, key string) (bool, error)
	Reset(ctx context.Context, key string) error
}

const keyPrefix = "throttle:login:"

// New returns the redis Limiter when an address is configured, the in-memory one otherwise.
func New(conf *core.Config) (Limiter, func() error, error) {
	if conf.Redis.Addr == "" {
		return NewMemoryLimiter(conf.Throttle), func() error { return nil }, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     conf.Redis.Addr,
		Password: conf.Redis.Password,
		DB:       conf.Redis.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, nil, errors.Wrap(err, "pinging redis")
	}
	return NewRedisLimiter(rdb, conf.Throttle), rdb.Close, nil
}

type redisLimiter struct {
	rdb         *redis.Client
	maxAttempts int64
	window      time.Duration
}

var _ Limiter = (*redisLimiter)(nil)

func NewRedisLimiter(rdb *redis.Client, conf core.ThrottleConfig) Limiter {
	return &redisLimiter{rdb: rdb, maxAttempts: int64(conf.MaxAttempts), window: conf.Window}
}

// attemptScript opens the window on the first attempt.
var attemptScript = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if n == 1 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return n
`)

func (l *redisLimiter) Attempt(ctx context.Context, key string) (bool, error) {
	n, err := attemptScript.Run(ctx, l.rdb, []string{keyPrefix + key}, l.window.Milliseconds()).Int64()
	if err != nil {
		return false, errors.Wrap(err, "counting attempt")
	}
	return n <= l.maxAttempts, nil
}

func (l *redisLimiter) Reset(ctx context.Context, key string) error {
	return errors.Wrap(l.rdb.Del(ctx, keyPrefix+key).Err(), "resetting attempts")
}

type counter struct {
	attempts  int
	expiresAt time.Time
}

type memoryLimiter struct {
	mu          sync.Mutex
	counters    map[string]counter
	maxAttempts int
	window      time.Duration
	now         func() time.Time
}

var _ Limiter = (*memoryLimiter)(nil)

func NewMemoryLimiter(conf core.ThrottleConfig) Limiter {
	return &memoryLimiter{
		counters:    make(map[string]counter),
		maxAttempts: conf.MaxAttempts,
		window:      conf.Window,
		now:         time.Now,
	}
}

// get returns the live counter of key. The caller holds the lock.
func (l *memoryLimiter) get(key string) (counter, bool) {
	c, ok := l.counters[key]
	if ok && !l.now().Before(c.expiresAt) {
		delete(l.counters, key)
		return counter{}, false
	}
	return c, ok
}

func (l *memoryLimiter) Attempt(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	c, ok := l.get(key)
	if !ok {
		c.expiresAt = l.now().Add(l.window)
	}
	c.attempts++
	l.counters[key] = c
	return c.attempts <= l.maxAttempts, nil
}

func (l *memoryLimiter) Reset(_ context.Context, key string) error {
	l.mu.Lock()
	delete(l.counters, key)
	l.mu.Unlock()
	return nil
}
