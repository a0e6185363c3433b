// Package redis builds go-redis clients.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultDialTimeout  = time.Second
	defaultReadTimeout  = 200 * time.Millisecond
	defaultWriteTimeout = 200 * time.Millisecond
	defaultPoolSize     = 20
)

type Option func(*redis.Options)

func WithPassword(password string) Option {
	return func(o *redis.Options) {
		o.Password = password
	}
}

func WithDB(db int) Option {
	return func(o *redis.Options) {
		o.DB = db
	}
}

func WithDialTimeout(d time.Duration) Option {
	return func(o *redis.Options) {
		o.DialTimeout = d
	}
}

func WithReadTimeout(d time.Duration) Option {
	return func(o *redis.Options) {
		o.ReadTimeout = d
	}
}

func WithWriteTimeout(d time.Duration) Option {
	return func(o *redis.Options) {
		o.WriteTimeout = d
	}
}

func WithPoolSize(n int) Option {
	return func(o *redis.Options) {
		o.PoolSize = n
	}
}

// New connects to the server at addr and checks it with PING.
func New(ctx context.Context, addr string, opts ...Option) (*redis.Client, error) {
	const op = "redis.New"

	o := &redis.Options{
		Addr:         addr,
		DialTimeout:  defaultDialTimeout,
		ReadTimeout:  defaultReadTimeout,
		WriteTimeout: defaultWriteTimeout,
		PoolSize:     defaultPoolSize,
	}

	for _, opt := range opts {
		opt(o)
	}

	client := redis.NewClient(o)

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("%s: failed to ping redis: %w", op, err)
	}

	return client, nil
}
