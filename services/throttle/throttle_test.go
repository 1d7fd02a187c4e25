package throttle

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/homeschool/core"
)

var testConf = core.ThrottleConfig{MaxAttempts: 3, Window: time.Minute}

func exerciseLimiter(t *testing.T, l Limiter, key string) {
	ctx := context.Background()

	for i := 0; i < testConf.MaxAttempts; i++ {
		ok, err := l.Attempt(ctx, key)
		require.NoError(t, err)
		assert.True(t, ok, "attempt %d", i+1)
	}

	ok, err := l.Attempt(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = l.Attempt(ctx, key+"-other")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, l.Reset(ctx, key))
	ok, err = l.Attempt(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemoryLimiter(t *testing.T) {
	exerciseLimiter(t, NewMemoryLimiter(testConf), "bob")
}

func TestMemoryLimiter_concurrentAttempts(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLimiter(testConf)

	var (
		wg      sync.WaitGroup
		allowed int32
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := l.Attempt(ctx, "bob"); ok {
				atomic.AddInt32(&allowed, 1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(testConf.MaxAttempts), allowed)
}

func TestMemoryLimiter_windowExpires(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2021, 3, 1, 10, 0, 0, 0, time.UTC)
	l := NewMemoryLimiter(testConf).(*memoryLimiter)
	l.now = func() time.Time { return now }

	for i := 0; i <= testConf.MaxAttempts; i++ {
		_, err := l.Attempt(ctx, "bob")
		require.NoError(t, err)
	}
	ok, _ := l.Attempt(ctx, "bob")
	assert.False(t, ok)

	// a new attempt after the window opens a new one
	now = now.Add(testConf.Window)
	ok, _ = l.Attempt(ctx, "bob")
	assert.True(t, ok)
	assert.Equal(t, 1, l.counters["bob"].attempts)
	assert.Equal(t, now.Add(testConf.Window), l.counters["bob"].expiresAt)
}

func TestNew_withoutRedis(t *testing.T) {
	conf := core.NewTestConfig()
	l, closeFn, err := New(conf)
	require.NoError(t, err)
	assert.IsType(t, &memoryLimiter{}, l)
	assert.NoError(t, closeFn())
}

func TestRedisLimiter(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	defer func() { _ = rdb.Close() }()

	exerciseLimiter(t, NewRedisLimiter(rdb, testConf), uuid.NewString())
}
