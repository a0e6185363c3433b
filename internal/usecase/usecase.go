package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/vadimbarashkov/shortlink/internal/entity"
	"github.com/vadimbarashkov/shortlink/internal/metrics"
	"github.com/vadimbarashkov/shortlink/internal/ratelimit"
	"github.com/vadimbarashkov/shortlink/internal/shortcode"
)

type urlRepository interface {
	Save(ctx context.Context, url *entity.ShortURL) (*entity.ShortURL, error)
	Resolve(ctx context.Context, code string, now time.Time) (*entity.ShortURL, error)
}

type statsRepository interface {
	Stats(ctx context.Context, code string) (*entity.Stats, error)
}

type rateLimiter interface {
	Admit(ctx context.Context, id ratelimit.Identity) (ratelimit.Decision, error)
}

type codeGenerator interface {
	Validate(targetURL string) error
	Generate(ctx context.Context, targetURL string, claim shortcode.ClaimFunc) (string, error)
}

type visitRecorder interface {
	Record(event entity.VisitEvent)
}

type ShortenInput struct {
	Identity   ratelimit.Identity
	TargetURL  string
	CustomCode string
	ExpiresAt  *time.Time
}

type RedirectInput struct {
	Identity  ratelimit.Identity
	Code      string
	IP        string
	UserAgent string
	Referer   string
}

// URLUseCase coordinates rate-limit admission, code generation, resolution
// and visit capture.
type URLUseCase struct {
	urlRepo   urlRepository
	statsRepo statsRepository
	limiter   rateLimiter
	generator codeGenerator
	recorder  visitRecorder
	logger    *slog.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
}

type Option func(*URLUseCase)

func WithLogger(logger *slog.Logger) Option {
	return func(uc *URLUseCase) {
		uc.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(uc *URLUseCase) {
		uc.metrics = m
	}
}

func WithClock(now func() time.Time) Option {
	return func(uc *URLUseCase) {
		uc.now = now
	}
}

func New(
	urlRepo urlRepository,
	statsRepo statsRepository,
	limiter rateLimiter,
	generator codeGenerator,
	recorder visitRecorder,
	opts ...Option,
) *URLUseCase {
	uc := &URLUseCase{
		urlRepo:   urlRepo,
		statsRepo: statsRepo,
		limiter:   limiter,
		generator: generator,
		recorder:  recorder,
		logger:    slog.Default(),
		now:       time.Now,
	}

	for _, opt := range opts {
		opt(uc)
	}

	return uc
}

func (uc *URLUseCase) observe(operation string, err error, success entity.Outcome) {
	uc.metrics.RequestOutcome(operation, string(entity.OutcomeOf(err, success)))
}

// Shorten creates a short URL for in.TargetURL, either under a caller-chosen
// code or under a generated one.
func (uc *URLUseCase) Shorten(ctx context.Context, in ShortenInput) (url *entity.ShortURL, err error) {
	const op = "usecase.URLUseCase.Shorten"

	defer func() {
		uc.observe("shorten", err, entity.OutcomeCreated)
	}()

	if _, err := uc.limiter.Admit(ctx, in.Identity); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	now := uc.now()

	if in.ExpiresAt != nil && !in.ExpiresAt.After(now) {
		return nil, fmt.Errorf("%s: %w", op, entity.ErrInvalidExpiry)
	}

	record := &entity.ShortURL{
		TargetURL: in.TargetURL,
		OwnerID:   in.Identity.String(),
		ExpiresAt: in.ExpiresAt,
	}

	if in.CustomCode != "" {
		url, err := uc.shortenCustom(ctx, record, in.CustomCode)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		return url, nil
	}

	_, err = uc.generator.Generate(ctx, in.TargetURL, func(ctx context.Context, code string) error {
		candidate := *record
		candidate.Code = code

		saved, err := uc.urlRepo.Save(ctx, &candidate)
		if err != nil {
			return err
		}

		url = saved
		return nil
	})
	if err != nil {
		if errors.Is(err, entity.ErrCodeSpaceExhausted) {
			uc.metrics.CodeSpaceExhausted()
			uc.logger.ErrorContext(ctx, "short code space exhausted, increase the code length",
				slog.String("owner", record.OwnerID),
			)
		}

		return nil, fmt.Errorf("%s: failed to shorten url: %w", op, err)
	}

	return url, nil
}

func (uc *URLUseCase) shortenCustom(ctx context.Context, record *entity.ShortURL, code string) (*entity.ShortURL, error) {
	if err := uc.generator.Validate(record.TargetURL); err != nil {
		return nil, err
	}

	if err := shortcode.ValidateCustom(code); err != nil {
		return nil, err
	}

	record.Code = code

	url, err := uc.urlRepo.Save(ctx, record)
	if err != nil {
		if errors.Is(err, entity.ErrShortCodeExists) {
			return nil, fmt.Errorf("%q: %w", code, entity.ErrCodeAlreadyTaken)
		}

		return nil, fmt.Errorf("failed to save custom code: %w", err)
	}

	return url, nil
}

// Redirect resolves in.Code for a visitor. On success the visit is handed to
// the recorder without waiting for it to be stored.
func (uc *URLUseCase) Redirect(ctx context.Context, in RedirectInput) (url *entity.ShortURL, err error) {
	const op = "usecase.URLUseCase.Redirect"

	defer func() {
		uc.observe("redirect", err, entity.OutcomeRedirectIssued)
	}()

	if _, err := uc.limiter.Admit(ctx, in.Identity); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	now := uc.now()

	url, err = uc.urlRepo.Resolve(ctx, in.Code, now)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to resolve short code: %w", op, err)
	}

	uc.recorder.Record(entity.VisitEvent{
		Code:      url.Code,
		IP:        in.IP,
		UserAgent: in.UserAgent,
		Referer:   in.Referer,
		VisitedAt: now,
	})

	return url, nil
}

// Stats returns the analytics of a live code.
func (uc *URLUseCase) Stats(ctx context.Context, id ratelimit.Identity, code string) (stats *entity.Stats, err error) {
	const op = "usecase.URLUseCase.Stats"

	defer func() {
		uc.observe("stats", err, entity.OutcomeOK)
	}()

	if _, err := uc.limiter.Admit(ctx, id); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if _, err := uc.urlRepo.Resolve(ctx, code, uc.now()); err != nil {
		return nil, fmt.Errorf("%s: failed to resolve short code: %w", op, err)
	}

	stats, err = uc.statsRepo.Stats(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to get stats: %w", op, err)
	}

	return stats, nil
}
