package ratelimit

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

//go:embed fixed_window.lua
var fixedWindowSource string

var fixedWindowScript = redis.NewScript(fixedWindowSource)

const (
	defaultPrefix       = "ratelimit:"
	defaultRedisTimeout = 100 * time.Millisecond
)

var errInvalidScriptReply = errors.New("invalid script reply")

type RedisLimiter struct {
	client  redis.Scripter
	prefix  string
	timeout time.Duration
}

type RedisOption func(*RedisLimiter)

// WithPrefix sets the prefix of every key written by the limiter.
func WithPrefix(prefix string) RedisOption {
	return func(r *RedisLimiter) {
		r.prefix = prefix
	}
}

// WithTimeout bounds each call to Redis.
func WithTimeout(d time.Duration) RedisOption {
	return func(r *RedisLimiter) {
		r.timeout = d
	}
}

// NewRedisLimiter loads the window script into the Redis script cache.
// Admit falls back to EVAL if the cache is flushed later.
func NewRedisLimiter(ctx context.Context, client redis.Scripter, opts ...RedisOption) (*RedisLimiter, error) {
	const op = "ratelimit.NewRedisLimiter"

	r := &RedisLimiter{
		client:  client,
		prefix:  defaultPrefix,
		timeout: defaultRedisTimeout,
	}

	for _, opt := range opts {
		opt(r)
	}

	if err := fixedWindowScript.Load(ctx, client).Err(); err != nil {
		return nil, fmt.Errorf("%s: failed to load script: %w", op, err)
	}

	return r, nil
}

// Admit counts the request in Redis. The window is kept by Redis' clock, now
// only anchors the returned ResetAt.
func (r *RedisLimiter) Admit(ctx context.Context, id Identity, limit Limit, now time.Time) (Decision, error) {
	const op = "ratelimit.RedisLimiter.Admit"

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	key := r.prefix + id.String()

	values, err := fixedWindowScript.Run(ctx, r.client, []string{key}, limit.Window.Milliseconds()).Int64Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("%s: failed to run script: %w", op, err)
	}

	if len(values) != 2 {
		return Decision{}, fmt.Errorf("%s: %w: %v", op, errInvalidScriptReply, values)
	}

	count := values[0]
	ttl := time.Duration(values[1]) * time.Millisecond
	start := now.Add(ttl - limit.Window)

	return decide(count, start, limit, now), nil
}
