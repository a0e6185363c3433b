package ratelimit

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()

	s, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	t.Cleanup(s.Close)

	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() {
		client.Close()
	})

	return client, s
}

func TestRedisLimiter_Admit(t *testing.T) {
	ctx := context.Background()
	limit := Limit{Requests: 10, Window: time.Minute}
	id := Identity{Class: ClassAPIKey, Key: "key-1"}

	t.Run("fifteen requests against a limit of ten", func(t *testing.T) {
		client, _ := setupTestRedis(t)
		l, err := NewRedisLimiter(ctx, client)
		require.NoError(t, err)

		allowed, rejected := 0, 0
		for i := 0; i < 15; i++ {
			dec, err := l.Admit(ctx, id, limit, testNow)
			require.NoError(t, err)

			if dec.Allowed {
				allowed++
				assert.Equal(t, int64(10-allowed), dec.Remaining)
				continue
			}

			rejected++
			assert.Positive(t, dec.RetryAfter)
			assert.LessOrEqual(t, dec.RetryAfter, time.Minute)
		}

		assert.Equal(t, 10, allowed)
		assert.Equal(t, 5, rejected)
	})

	t.Run("key carries prefix and expires with the window", func(t *testing.T) {
		client, s := setupTestRedis(t)
		l, err := NewRedisLimiter(ctx, client, WithPrefix("test:"))
		require.NoError(t, err)

		_, err = l.Admit(ctx, id, limit, testNow)
		require.NoError(t, err)

		assert.True(t, s.Exists("test:apikey:key-1"))
		assert.Equal(t, time.Minute, s.TTL("test:apikey:key-1"))

		s.FastForward(time.Minute)
		assert.False(t, s.Exists("test:apikey:key-1"))
	})

	t.Run("window resets after expiry", func(t *testing.T) {
		client, s := setupTestRedis(t)
		l, err := NewRedisLimiter(ctx, client)
		require.NoError(t, err)

		one := Limit{Requests: 1, Window: time.Second}

		dec, _ := l.Admit(ctx, id, one, testNow)
		assert.True(t, dec.Allowed)

		dec, _ = l.Admit(ctx, id, one, testNow)
		assert.False(t, dec.Allowed)

		s.FastForward(time.Second)

		dec, err = l.Admit(ctx, id, one, testNow.Add(time.Second))
		require.NoError(t, err)
		assert.True(t, dec.Allowed)
	})

	t.Run("script cache flushed", func(t *testing.T) {
		client, s := setupTestRedis(t)
		l, err := NewRedisLimiter(ctx, client)
		require.NoError(t, err)

		s.FlushAll()
		require.NoError(t, client.ScriptFlush(ctx).Err())

		dec, err := l.Admit(ctx, id, limit, testNow)
		require.NoError(t, err)
		assert.True(t, dec.Allowed)
	})

	t.Run("redis unavailable", func(t *testing.T) {
		client, s := setupTestRedis(t)
		l, err := NewRedisLimiter(ctx, client, WithTimeout(50*time.Millisecond))
		require.NoError(t, err)

		s.Close()

		_, err = l.Admit(ctx, id, limit, testNow)
		assert.Error(t, err)
	})
}

func TestRedisLimiter_SharedAcrossInstances(t *testing.T) {
	ctx := context.Background()
	client, _ := setupTestRedis(t)
	limit := Limit{Requests: 10, Window: time.Minute}
	id := Identity{Class: ClassUser, Key: "user-1"}

	a, err := NewRedisLimiter(ctx, client)
	require.NoError(t, err)
	b, err := NewRedisLimiter(ctx, client)
	require.NoError(t, err)

	var (
		wg      sync.WaitGroup
		allowed atomic.Int64
	)

	wg.Add(40)
	for i := range 40 {
		l := a
		if i%2 == 1 {
			l = b
		}

		go func() {
			defer wg.Done()

			dec, err := l.Admit(ctx, id, limit, testNow)
			if err == nil && dec.Allowed {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(10), allowed.Load())
}
