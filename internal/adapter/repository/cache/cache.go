// Package cache provides a read-through cache in front of a short URL store.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto"
	"github.com/vadimbarashkov/shortlink/internal/entity"
	"github.com/vadimbarashkov/shortlink/internal/metrics"
)

const (
	defaultNumCounters = 1e6
	defaultMaxCost     = 1 << 26
	defaultTTL         = 5 * time.Minute
)

type urlRepository interface {
	Save(ctx context.Context, url *entity.ShortURL) (*entity.ShortURL, error)
	Resolve(ctx context.Context, code string, now time.Time) (*entity.ShortURL, error)
}

type Config struct {
	NumCounters int64
	MaxCost     int64
	TTL         time.Duration
}

// URLRepository caches resolved records. Entries keep their expiry and are
// checked against it on every hit, so a cached record never outlives its
// soft expiry.
type URLRepository struct {
	next    urlRepository
	cache   *ristretto.Cache
	ttl     time.Duration
	metrics *metrics.Metrics
}

func NewURLRepository(next urlRepository, cfg Config, m *metrics.Metrics) (*URLRepository, error) {
	const op = "adapter.repository.cache.NewURLRepository"

	if cfg.NumCounters <= 0 {
		cfg.NumCounters = defaultNumCounters
	}
	if cfg.MaxCost <= 0 {
		cfg.MaxCost = defaultMaxCost
	}
	if cfg.TTL <= 0 {
		cfg.TTL = defaultTTL
	}

	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: cfg.NumCounters,
		MaxCost:     cfg.MaxCost,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: failed to create cache: %w", op, err)
	}

	return &URLRepository{
		next:    next,
		cache:   c,
		ttl:     cfg.TTL,
		metrics: m,
	}, nil
}

// Save writes through to the underlying store. Codes are never updated in
// place, so there is nothing to invalidate.
func (r *URLRepository) Save(ctx context.Context, url *entity.ShortURL) (*entity.ShortURL, error) {
	return r.next.Save(ctx, url)
}

func (r *URLRepository) Resolve(ctx context.Context, code string, now time.Time) (*entity.ShortURL, error) {
	const op = "adapter.repository.cache.URLRepository.Resolve"

	if v, ok := r.cache.Get(code); ok {
		url := v.(entity.ShortURL)
		if url.IsExpired(now) {
			r.cache.Del(code)
			return nil, fmt.Errorf("%s: %w", op, entity.ErrURLNotFound)
		}

		r.metrics.CacheLookup(true)
		return clone(url), nil
	}

	r.metrics.CacheLookup(false)

	url, err := r.next.Resolve(ctx, code, now)
	if err != nil {
		return nil, err
	}

	ttl := r.ttl
	if url.ExpiresAt != nil {
		if untilExpiry := url.ExpiresAt.Sub(now); untilExpiry < ttl {
			ttl = untilExpiry
		}
	}

	if ttl > 0 {
		r.cache.SetWithTTL(code, *clone(*url), int64(len(url.Code)+len(url.TargetURL)), ttl)
	}

	return url, nil
}

// clone copies url so that no caller shares the cached expiry.
func clone(url entity.ShortURL) *entity.ShortURL {
	if url.ExpiresAt != nil {
		expiresAt := *url.ExpiresAt
		url.ExpiresAt = &expiresAt
	}

	return &url
}

// Wait blocks until pending writes are applied.
func (r *URLRepository) Wait() {
	r.cache.Wait()
}

func (r *URLRepository) Close() {
	r.cache.Close()
}
