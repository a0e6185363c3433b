package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func TestMemoryLimiter_Admit(t *testing.T) {
	ctx := context.Background()
	limit := Limit{Requests: 10, Window: time.Minute}
	id := Identity{Class: ClassIP, Key: "203.0.113.7"}

	t.Run("first request", func(t *testing.T) {
		l := NewMemoryLimiter()

		dec, err := l.Admit(ctx, id, limit, testNow)

		require.NoError(t, err)
		assert.True(t, dec.Allowed)
		assert.Equal(t, int64(10), dec.Limit)
		assert.Equal(t, int64(9), dec.Remaining)
		assert.Zero(t, dec.RetryAfter)
		assert.Equal(t, testNow.Add(time.Minute), dec.ResetAt)
	})

	t.Run("fifteen requests against a limit of ten", func(t *testing.T) {
		l := NewMemoryLimiter()
		allowed, rejected := 0, 0

		for i := 0; i < 15; i++ {
			now := testNow.Add(time.Duration(i) * time.Second)

			dec, err := l.Admit(ctx, id, limit, now)
			require.NoError(t, err)

			if dec.Allowed {
				allowed++
				continue
			}

			rejected++
			assert.Positive(t, dec.RetryAfter)
			assert.Equal(t, testNow.Add(time.Minute).Sub(now), dec.RetryAfter)
			assert.Zero(t, dec.Remaining)
		}

		assert.Equal(t, 10, allowed)
		assert.Equal(t, 5, rejected)
	})

	t.Run("window resets", func(t *testing.T) {
		l := NewMemoryLimiter()

		for i := 0; i < 11; i++ {
			l.Admit(ctx, id, limit, testNow)
		}

		dec, err := l.Admit(ctx, id, limit, testNow.Add(time.Minute-time.Nanosecond))
		require.NoError(t, err)
		assert.False(t, dec.Allowed)

		dec, err = l.Admit(ctx, id, limit, testNow.Add(time.Minute))
		require.NoError(t, err)
		assert.True(t, dec.Allowed)
		assert.Equal(t, int64(9), dec.Remaining)
		assert.Equal(t, testNow.Add(2*time.Minute), dec.ResetAt)
	})

	t.Run("identities are isolated", func(t *testing.T) {
		l := NewMemoryLimiter()
		one := Limit{Requests: 1, Window: time.Minute}

		dec, _ := l.Admit(ctx, Identity{Class: ClassIP, Key: "k"}, one, testNow)
		assert.True(t, dec.Allowed)

		dec, _ = l.Admit(ctx, Identity{Class: ClassUser, Key: "k"}, one, testNow)
		assert.True(t, dec.Allowed)

		dec, _ = l.Admit(ctx, Identity{Class: ClassIP, Key: "k"}, one, testNow)
		assert.False(t, dec.Allowed)
	})

	t.Run("distinct identities under the limit", func(t *testing.T) {
		l := NewMemoryLimiter()

		for i := 0; i < 100; i++ {
			ip := Identity{Class: ClassIP, Key: fmt.Sprintf("10.0.0.%d", i)}

			dec, err := l.Admit(ctx, ip, limit, testNow)

			require.NoError(t, err)
			assert.True(t, dec.Allowed)
		}
	})
}

func TestMemoryLimiter_Concurrent(t *testing.T) {
	ctx := context.Background()
	limit := Limit{Requests: 10, Window: time.Minute}
	id := Identity{Class: ClassUser, Key: "user-1"}
	l := NewMemoryLimiter()

	var (
		wg      sync.WaitGroup
		allowed atomic.Int64
	)

	wg.Add(100)
	for range 100 {
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

func TestMemoryLimiter_Eviction(t *testing.T) {
	ctx := context.Background()
	limit := Limit{Requests: 1, Window: time.Minute}

	t.Run("capacity is bounded", func(t *testing.T) {
		l := NewMemoryLimiter(WithShards(1), WithMaxKeys(5))

		for i := 0; i < 50; i++ {
			id := Identity{Class: ClassIP, Key: fmt.Sprintf("ip-%d", i)}
			l.Admit(ctx, id, limit, testNow.Add(time.Duration(i)*time.Millisecond))
		}

		assert.Equal(t, 5, l.Len())
	})

	t.Run("expired windows go first", func(t *testing.T) {
		l := NewMemoryLimiter(WithShards(1), WithMaxKeys(2))
		short := Limit{Requests: 1, Window: time.Second}
		long := Limit{Requests: 1, Window: 2 * time.Hour}

		l.Admit(ctx, Identity{Class: ClassIP, Key: "stale"}, short, testNow)
		l.Admit(ctx, Identity{Class: ClassIP, Key: "live"}, long, testNow.Add(-time.Hour))
		l.Admit(ctx, Identity{Class: ClassIP, Key: "new"}, limit, testNow.Add(2*time.Second))

		assert.Equal(t, 2, l.Len())

		// "live" kept its window and is still exhausted.
		dec, _ := l.Admit(ctx, Identity{Class: ClassIP, Key: "live"}, long, testNow.Add(3*time.Second))
		assert.False(t, dec.Allowed)
	})

	t.Run("oldest window is evicted when none expired", func(t *testing.T) {
		l := NewMemoryLimiter(WithShards(1), WithMaxKeys(2))

		l.Admit(ctx, Identity{Class: ClassIP, Key: "a"}, limit, testNow)
		l.Admit(ctx, Identity{Class: ClassIP, Key: "b"}, limit, testNow.Add(time.Second))
		l.Admit(ctx, Identity{Class: ClassIP, Key: "c"}, limit, testNow.Add(2*time.Second))

		assert.Equal(t, 2, l.Len())

		// "a" was evicted, so it starts a fresh window.
		dec, _ := l.Admit(ctx, Identity{Class: ClassIP, Key: "a"}, limit, testNow.Add(3*time.Second))
		assert.True(t, dec.Allowed)
	})
}

func BenchmarkMemoryLimiter_Admit(b *testing.B) {
	ctx := context.Background()
	l := NewMemoryLimiter()
	limit := Limit{Requests: 1 << 40, Window: time.Minute}

	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			id := Identity{Class: ClassIP, Key: fmt.Sprintf("10.0.%d.%d", i/256%256, i%256)}
			l.Admit(ctx, id, limit, testNow)
			i++
		}
	})
}
