package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/vadimbarashkov/shortlink/internal/entity"
	"github.com/vadimbarashkov/shortlink/internal/metrics"
)

// Guard admits requests against a Policy.
type Guard struct {
	limiter  Limiter
	policy   Policy
	failOpen bool
	logger   *slog.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

type GuardOption func(*Guard)

// WithFailOpen admits requests when the backend fails instead of returning
// the backend error.
func WithFailOpen(failOpen bool) GuardOption {
	return func(g *Guard) {
		g.failOpen = failOpen
	}
}

func WithLogger(logger *slog.Logger) GuardOption {
	return func(g *Guard) {
		g.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) GuardOption {
	return func(g *Guard) {
		g.metrics = m
	}
}

func WithClock(now func() time.Time) GuardOption {
	return func(g *Guard) {
		g.now = now
	}
}

func NewGuard(limiter Limiter, policy Policy, opts ...GuardOption) *Guard {
	g := &Guard{
		limiter:  limiter,
		policy:   policy,
		failOpen: true,
		logger:   slog.Default(),
		now:      time.Now,
	}

	for _, opt := range opts {
		opt(g)
	}

	return g
}

// Admit charges one request to id. A rejected request yields a
// *entity.RateLimitError carrying the retry hint.
func (g *Guard) Admit(ctx context.Context, id Identity) (Decision, error) {
	const op = "ratelimit.Guard.Admit"

	limit := g.policy.LimitFor(id.Class)
	now := g.now()

	dec, err := g.limiter.Admit(ctx, id, limit, now)
	if err != nil {
		g.metrics.RateLimitError()

		if g.failOpen {
			g.logger.WarnContext(ctx, "rate limiter unavailable, admitting request",
				slog.String("class", string(id.Class)),
				slog.Any("err", err),
			)

			return Decision{Allowed: true, Limit: limit.Requests, Remaining: limit.Requests, ResetAt: now.Add(limit.Window)}, nil
		}

		return Decision{}, fmt.Errorf("%s: %w", op, err)
	}

	g.metrics.RateLimitDecision(string(id.Class), dec.Allowed)

	if !dec.Allowed {
		return dec, fmt.Errorf("%s: %w", op, &entity.RateLimitError{RetryAfter: dec.RetryAfter})
	}

	return dec, nil
}
