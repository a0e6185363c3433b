package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/httplog/v2"
	"github.com/vadimbarashkov/shortlink/internal/adapter/queue/kafka"
	"github.com/vadimbarashkov/shortlink/internal/adapter/repository/cache"
	"github.com/vadimbarashkov/shortlink/internal/adapter/repository/memory"
	"github.com/vadimbarashkov/shortlink/internal/analytics"
	"github.com/vadimbarashkov/shortlink/internal/config"
	"github.com/vadimbarashkov/shortlink/internal/entity"
	"github.com/vadimbarashkov/shortlink/internal/metrics"
	"github.com/vadimbarashkov/shortlink/internal/ratelimit"
	"github.com/vadimbarashkov/shortlink/internal/shortcode"
	"github.com/vadimbarashkov/shortlink/internal/usecase"
	"github.com/vadimbarashkov/shortlink/migrations"
	"github.com/vadimbarashkov/shortlink/pkg/postgres"
	"github.com/vadimbarashkov/shortlink/pkg/redis"
	"golang.org/x/sync/errgroup"

	delivery "github.com/vadimbarashkov/shortlink/internal/adapter/delivery/http"
	pgrepo "github.com/vadimbarashkov/shortlink/internal/adapter/repository/postgres"
)

const shutdownTimeout = 15 * time.Second

type urlStore interface {
	Save(ctx context.Context, url *entity.ShortURL) (*entity.ShortURL, error)
	Resolve(ctx context.Context, code string, now time.Time) (*entity.ShortURL, error)
}

type visitStore interface {
	RecordVisit(ctx context.Context, visit entity.Visit) error
	Stats(ctx context.Context, code string) (*entity.Stats, error)
}

type visitRecorder interface {
	Record(event entity.VisitEvent)
}

// closers runs cleanup functions in reverse registration order.
type closers []func() error

func (c *closers) add(fn func() error) {
	*c = append(*c, fn)
}

func (c closers) close(logger *slog.Logger) {
	for i := len(c) - 1; i >= 0; i-- {
		if err := c[i](); err != nil {
			logger.Error("failed to release resource", slog.Any("err", err))
		}
	}
}

func newLogger(cfg *config.Config) *httplog.Logger {
	opts := httplog.Options{
		LogLevel:       slog.LevelInfo,
		JSON:           cfg.Env != config.EnvDev,
		Concise:        cfg.Env == config.EnvDev,
		RequestHeaders: cfg.Env == config.EnvDev,
		Tags: map[string]string{
			"env": cfg.Env,
		},
	}

	if cfg.Env == config.EnvDev {
		opts.LogLevel = slog.LevelDebug
	}

	return httplog.NewLogger("shortlink", opts)
}

func Run(ctx context.Context, cfg *config.Config) error {
	const op = "app.Run"

	logger := newLogger(cfg)
	m := metrics.New()

	var cleanup closers
	defer func() {
		cleanup.close(logger.Logger)
	}()

	urls, visits, err := newStorage(ctx, cfg, &cleanup)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if cfg.Cache.Enabled {
		cached, err := cache.NewURLRepository(urls, cache.Config{
			NumCounters: cfg.Cache.NumCounters,
			MaxCost:     cfg.Cache.MaxCost,
			TTL:         cfg.Cache.TTL,
		}, m)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		cleanup.add(func() error {
			cached.Close()
			return nil
		})

		urls = cached
	}

	limiter, err := newLimiter(ctx, cfg, &cleanup)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	guard := ratelimit.NewGuard(limiter, ratelimit.Policy{
		ratelimit.ClassUser:   {Requests: cfg.RateLimit.User.Requests, Window: cfg.RateLimit.User.Window},
		ratelimit.ClassAPIKey: {Requests: cfg.RateLimit.APIKey.Requests, Window: cfg.RateLimit.APIKey.Window},
		ratelimit.ClassIP:     {Requests: cfg.RateLimit.IP.Requests, Window: cfg.RateLimit.IP.Window},
	},
		ratelimit.WithFailOpen(cfg.RateLimit.FailOpen),
		ratelimit.WithLogger(logger.Logger),
		ratelimit.WithMetrics(m),
	)

	parser, err := analytics.NewUserAgentParser(cfg.Analytics.RegexesPath)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	hasher, err := analytics.NewHasher([]byte(cfg.Analytics.HashKey))
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	recorder := analytics.NewRecorder(analytics.Config{
		Workers:      cfg.Analytics.Workers,
		QueueSize:    cfg.Analytics.QueueSize,
		WriteTimeout: cfg.Analytics.WriteTimeout,
	}, visits, parser, hasher, logger.Logger, m)

	g, ctx := errgroup.WithContext(ctx)

	var visitSink visitRecorder

	switch cfg.Analytics.Transport {
	case config.TransportKafka:
		publisher := kafka.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, hasher, logger.Logger, m)
		consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.GroupID, recorder, logger.Logger)

		cleanup.add(consumer.Close)
		cleanup.add(publisher.Close)

		g.Go(func() error {
			return consumer.Run(ctx)
		})

		visitSink = publisher
	default:
		if err := recorder.Start(); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		cleanup.add(func() error {
			stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()

			return recorder.Stop(stopCtx)
		})

		visitSink = recorder
	}

	generator := shortcode.New(
		shortcode.WithLength(cfg.ShortCode.Length),
		shortcode.WithMaxAttempts(cfg.ShortCode.MaxAttempts),
		shortcode.WithMaxURLLength(cfg.ShortCode.MaxURLLength),
		shortcode.WithAllowedSchemes(cfg.ShortCode.AllowedSchemes...),
	)

	urlUseCase := usecase.New(urls, visits, guard, generator, visitSink,
		usecase.WithLogger(logger.Logger),
		usecase.WithMetrics(m),
	)

	trustedProxies, err := cfg.HTTPServer.TrustedProxyPrefixes()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	router := delivery.NewRouter(logger, delivery.RouterConfig{
		BaseURL:        cfg.BaseURL,
		Identifier:     delivery.NewIdentifier(cfg.Auth.JWTSecret, cfg.Auth.APIKeys),
		Metrics:        m.Handler(),
		TrustedProxies: trustedProxies,
	}, urlUseCase)

	server := &http.Server{
		Addr:           cfg.HTTPServer.Addr(),
		Handler:        router,
		ReadTimeout:    cfg.HTTPServer.ReadTimeout,
		WriteTimeout:   cfg.HTTPServer.WriteTimeout,
		IdleTimeout:    cfg.HTTPServer.IdleTimeout,
		MaxHeaderBytes: cfg.HTTPServer.MaxHeaderBytes,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	g.Go(func() error {
		var err error

		logger.Info("starting server", slog.String("addr", server.Addr), slog.String("env", cfg.Env))

		switch cfg.Env {
		case config.EnvProd:
			err = server.ListenAndServeTLS(cfg.HTTPServer.CertFile, cfg.HTTPServer.KeyFile)
		default:
			err = server.ListenAndServe()
		}

		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("%s: server error occurred: %w", op, err)
		}

		return nil
	})

	g.Go(func() error {
		<-ctx.Done()

		logger.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("%s: failed to shutdown server: %w", op, err)
		}

		return nil
	})

	return g.Wait()
}

func newStorage(ctx context.Context, cfg *config.Config, cleanup *closers) (urlStore, visitStore, error) {
	const op = "app.newStorage"

	if cfg.Storage.Driver == config.StorageMemory {
		store := memory.New()
		return store, store, nil
	}

	db, err := postgres.New(
		ctx,
		cfg.Postgres.DSN(),
		postgres.WithConnMaxIdleTime(cfg.Postgres.ConnMaxIdleTime),
		postgres.WithConnMaxLifetime(cfg.Postgres.ConnMaxLifetime),
		postgres.WithMaxIdleConns(cfg.Postgres.MaxIdleConns),
		postgres.WithMaxOpenConns(cfg.Postgres.MaxOpenConns),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: failed to connect to database: %w", op, err)
	}
	cleanup.add(db.Close)

	if err := postgres.RunMigrations(migrations.FS, cfg.Postgres.DSN()); err != nil {
		return nil, nil, fmt.Errorf("%s: failed to run migrations: %w", op, err)
	}

	return pgrepo.NewURLRepository(db), pgrepo.NewVisitRepository(db), nil
}

func newLimiter(ctx context.Context, cfg *config.Config, cleanup *closers) (ratelimit.Limiter, error) {
	const op = "app.newLimiter"

	if cfg.RateLimit.Backend == config.RateLimitMemory {
		return ratelimit.NewMemoryLimiter(
			ratelimit.WithShards(cfg.RateLimit.Shards),
			ratelimit.WithMaxKeys(cfg.RateLimit.MaxKeys),
		), nil
	}

	client, err := redis.New(
		ctx,
		cfg.Redis.Addr,
		redis.WithPassword(cfg.Redis.Password),
		redis.WithDB(cfg.Redis.DB),
		redis.WithDialTimeout(cfg.Redis.DialTimeout),
		redis.WithReadTimeout(cfg.Redis.ReadTimeout),
		redis.WithWriteTimeout(cfg.Redis.WriteTimeout),
		redis.WithPoolSize(cfg.Redis.PoolSize),
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	cleanup.add(client.Close)

	limiter, err := ratelimit.NewRedisLimiter(
		ctx,
		client,
		ratelimit.WithPrefix(cfg.RateLimit.Prefix),
		ratelimit.WithTimeout(cfg.RateLimit.Timeout),
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return limiter, nil
}
