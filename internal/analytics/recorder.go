// Package analytics captures redirect visits off the request path.
//
// Record hands a visit to a bounded queue and returns immediately. A fixed
// pool of workers drains the queue, enriches each visit with device data and
// persists it. When the queue is full the visit is dropped: analytics is best
// effort and must never slow down or fail a redirect.
package analytics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/vadimbarashkov/shortlink/internal/entity"
	"github.com/vadimbarashkov/shortlink/internal/metrics"
)

var (
	ErrAlreadyStarted = errors.New("recorder already started")
	ErrNotStarted     = errors.New("recorder not started")
)

type visitStore interface {
	RecordVisit(ctx context.Context, visit entity.Visit) error
}

type Config struct {
	Workers      int
	QueueSize    int
	WriteTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		Workers:      4,
		QueueSize:    1024,
		WriteTimeout: 5 * time.Second,
	}
}

type Recorder struct {
	cfg     Config
	store   visitStore
	parser  *UserAgentParser
	hasher  *Hasher
	logger  *slog.Logger
	metrics *metrics.Metrics

	queue  chan entity.VisitEvent
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.RWMutex
	started bool
	closed  bool
}

func NewRecorder(
	cfg Config,
	store visitStore,
	parser *UserAgentParser,
	hasher *Hasher,
	logger *slog.Logger,
	m *metrics.Metrics,
) *Recorder {
	def := DefaultConfig()
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = def.QueueSize
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}

	// Workers outlive the requests that produced their events.
	ctx, cancel := context.WithCancel(context.Background())

	return &Recorder{
		cfg:     cfg,
		store:   store,
		parser:  parser,
		hasher:  hasher,
		logger:  logger,
		metrics: m,
		queue:   make(chan entity.VisitEvent, cfg.QueueSize),
		ctx:     ctx,
		cancel:  cancel,
	}
}

func (r *Recorder) Start() error {
	const op = "analytics.Recorder.Start"

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started || r.closed {
		return fmt.Errorf("%s: %w", op, ErrAlreadyStarted)
	}

	for i := 0; i < r.cfg.Workers; i++ {
		r.wg.Add(1)
		go r.worker()
	}

	r.started = true

	r.logger.Info("analytics recorder started",
		slog.Int("workers", r.cfg.Workers),
		slog.Int("queue_size", r.cfg.QueueSize),
	)

	return nil
}

// Record enqueues event without blocking. It never fails the caller: events
// that do not fit are dropped and counted.
func (r *Recorder) Record(event entity.VisitEvent) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		r.drop(event, "recorder stopped")
		return
	}

	select {
	case r.queue <- event:
		r.metrics.AnalyticsQueueDepth(len(r.queue))
	default:
		r.drop(event, "queue full")
	}
}

func (r *Recorder) drop(event entity.VisitEvent, reason string) {
	r.metrics.AnalyticsDropped()
	r.logger.Warn("analytics event dropped",
		slog.String("code", event.Code),
		slog.String("reason", reason),
	)
}

func (r *Recorder) worker() {
	defer r.wg.Done()

	for event := range r.queue {
		r.metrics.AnalyticsQueueDepth(len(r.queue))

		if r.ctx.Err() != nil {
			r.drop(event, "recorder stopped")
			continue
		}

		ctx, cancel := context.WithTimeout(r.ctx, r.cfg.WriteTimeout)
		err := r.Process(ctx, event)
		cancel()

		if err != nil {
			r.logger.Error("failed to record visit",
				slog.String("code", event.Code),
				slog.Any("err", err),
			)
		}
	}
}

// Process enriches and persists a single event synchronously. Failures are
// counted and returned, never retried.
func (r *Recorder) Process(ctx context.Context, event entity.VisitEvent) error {
	const op = "analytics.Recorder.Process"

	if err := r.store.RecordVisit(ctx, r.visitOf(event)); err != nil {
		r.metrics.AnalyticsFailed()
		return fmt.Errorf("%s: %w", op, err)
	}

	r.metrics.AnalyticsRecorded()
	return nil
}

func (r *Recorder) visitOf(event entity.VisitEvent) entity.Visit {
	device := r.parser.Parse(event.UserAgent)

	visitedAt := event.VisitedAt
	if visitedAt.IsZero() {
		visitedAt = time.Now()
	}

	event = r.hasher.Pseudonymise(event)

	return entity.Visit{
		Code:              event.Code,
		VisitedAt:         visitedAt.UTC(),
		DeviceFingerprint: event.DeviceFingerprint,
		OSFamily:          device.OSFamily,
		DeviceType:        device.DeviceType,
		Browser:           device.Browser,
		IPHash:            event.IPHash,
		Referer:           event.Referer,
	}
}

// Stop closes intake and drains the queue. Events still queued when ctx is
// done are abandoned and in-flight writes are cancelled.
func (r *Recorder) Stop(ctx context.Context) error {
	const op = "analytics.Recorder.Stop"

	r.mu.Lock()
	if !r.started {
		r.mu.Unlock()
		return fmt.Errorf("%s: %w", op, ErrNotStarted)
	}
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	close(r.queue)
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.cancel()
		r.logger.Info("analytics recorder stopped")
		return nil
	case <-ctx.Done():
		r.cancel()
		<-done
		r.logger.Warn("analytics recorder stopped before the queue was drained")
		return fmt.Errorf("%s: %w", op, ctx.Err())
	}
}
