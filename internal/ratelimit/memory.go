package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
)

const (
	defaultShards  = 32
	defaultMaxKeys = 100_000
)

type window struct {
	start  time.Time
	length time.Duration
	count  int64
}

func (w *window) expired(now time.Time) bool {
	return now.Sub(w.start) >= w.length
}

type shard struct {
	mu      sync.Mutex
	windows map[string]*window
}

// evictOne makes room for one window. Expired windows go first, then the
// one that started earliest.
func (s *shard) evictOne(now time.Time) {
	before := len(s.windows)

	for key, w := range s.windows {
		if w.expired(now) {
			delete(s.windows, key)
		}
	}

	if len(s.windows) < before {
		return
	}

	var (
		oldestKey string
		oldest    time.Time
		found     bool
	)

	for key, w := range s.windows {
		if !found || w.start.Before(oldest) {
			oldestKey, oldest, found = key, w.start, true
		}
	}

	if found {
		delete(s.windows, oldestKey)
	}
}

type MemoryLimiter struct {
	shards   []*shard
	shardCap int
}

type MemoryOption func(*memoryOptions)

type memoryOptions struct {
	shards  int
	maxKeys int
}

// WithShards sets the number of independently locked shards.
func WithShards(n int) MemoryOption {
	return func(o *memoryOptions) {
		o.shards = n
	}
}

// WithMaxKeys bounds the number of identities tracked at once.
func WithMaxKeys(n int) MemoryOption {
	return func(o *memoryOptions) {
		o.maxKeys = n
	}
}

func NewMemoryLimiter(opts ...MemoryOption) *MemoryLimiter {
	o := memoryOptions{
		shards:  defaultShards,
		maxKeys: defaultMaxKeys,
	}

	for _, opt := range opts {
		opt(&o)
	}

	if o.shards < 1 {
		o.shards = 1
	}

	shardCap := o.maxKeys / o.shards
	if shardCap < 1 {
		shardCap = 1
	}

	m := &MemoryLimiter{
		shards:   make([]*shard, o.shards),
		shardCap: shardCap,
	}

	for i := range m.shards {
		m.shards[i] = &shard{windows: make(map[string]*window)}
	}

	return m
}

func (m *MemoryLimiter) shardFor(key string) *shard {
	return m.shards[xxhash.Sum64String(key)%uint64(len(m.shards))]
}

func (m *MemoryLimiter) Admit(_ context.Context, id Identity, limit Limit, now time.Time) (Decision, error) {
	key := id.String()
	s := m.shardFor(key)

	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.windows[key]
	switch {
	case !ok:
		if len(s.windows) >= m.shardCap {
			s.evictOne(now)
		}
		w = &window{start: now, length: limit.Window}
		s.windows[key] = w
	case w.expired(now):
		w.start, w.length, w.count = now, limit.Window, 0
	}

	w.count++

	return decide(w.count, w.start, limit, now), nil
}

// Len reports the number of tracked identities.
func (m *MemoryLimiter) Len() int {
	n := 0
	for _, s := range m.shards {
		s.mu.Lock()
		n += len(s.windows)
		s.mu.Unlock()
	}
	return n
}
