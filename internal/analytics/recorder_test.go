package analytics

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadimbarashkov/shortlink/internal/adapter/repository/memory"
	"github.com/vadimbarashkov/shortlink/internal/entity"
	"github.com/vadimbarashkov/shortlink/internal/metrics"
)

var testNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type failingStore struct {
	err   error
	calls atomic.Int64
}

func (s *failingStore) RecordVisit(context.Context, entity.Visit) error {
	s.calls.Add(1)
	return s.err
}

type blockingStore struct{}

func (blockingStore) RecordVisit(ctx context.Context, _ entity.Visit) error {
	<-ctx.Done()
	return ctx.Err()
}

func newTestRecorder(t *testing.T, cfg Config, store visitStore) *Recorder {
	t.Helper()

	parser, err := NewUserAgentParser("")
	require.NoError(t, err)

	hasher, err := NewHasher([]byte("test-key"))
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	return NewRecorder(cfg, store, parser, hasher, logger, metrics.New())
}

func TestRecorder_RecordAndStop(t *testing.T) {
	store := memory.New()
	r := newTestRecorder(t, Config{Workers: 2, QueueSize: 16}, store)
	require.NoError(t, r.Start())

	r.Record(entity.VisitEvent{Code: "abc123", IP: "203.0.113.7", UserAgent: uaIPhone, Referer: "https://ref.example.com", VisitedAt: testNow})
	r.Record(entity.VisitEvent{Code: "abc123", IP: "203.0.113.8", UserAgent: uaWindows, VisitedAt: testNow.Add(time.Second)})

	require.NoError(t, r.Stop(context.Background()))

	visits := store.Visits()
	require.Len(t, visits, 2)

	byOS := map[string]entity.Visit{}
	for _, v := range visits {
		byOS[v.OSFamily] = v
	}

	iphone := byOS["iOS"]
	assert.Equal(t, "abc123", iphone.Code)
	assert.Equal(t, DeviceMobile, iphone.DeviceType)
	assert.Equal(t, testNow, iphone.VisitedAt)
	assert.Equal(t, "https://ref.example.com", iphone.Referer)
	assert.NotEmpty(t, iphone.DeviceFingerprint)
	assert.NotEqual(t, "203.0.113.7", iphone.IPHash)

	assert.Equal(t, DeviceDesktop, byOS["Windows"].DeviceType)
}

func TestRecorder_ProcessPseudonymisedEvent(t *testing.T) {
	store := memory.New()
	r := newTestRecorder(t, DefaultConfig(), store)

	hasher, err := NewHasher([]byte("test-key"))
	require.NoError(t, err)

	event := hasher.Pseudonymise(entity.VisitEvent{Code: "abc123", IP: "203.0.113.7", UserAgent: uaIPhone, VisitedAt: testNow})
	require.NoError(t, r.Process(context.Background(), event))
	require.NoError(t, r.Process(context.Background(), entity.VisitEvent{Code: "abc123", IP: "203.0.113.7", UserAgent: uaIPhone, VisitedAt: testNow}))

	visits := store.Visits()
	require.Len(t, visits, 2)
	assert.Equal(t, visits[0].DeviceFingerprint, visits[1].DeviceFingerprint)
	assert.Equal(t, visits[0].IPHash, visits[1].IPHash)
	assert.Equal(t, "iOS", visits[0].OSFamily)

	stats, err := store.Stats(context.Background(), "abc123")
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.UniqueDevices)
}

func TestRecorder_UniqueDevice(t *testing.T) {
	store := memory.New()
	r := newTestRecorder(t, Config{Workers: 8, QueueSize: 256}, store)
	require.NoError(t, r.Start())

	var wg sync.WaitGroup
	wg.Add(100)
	for range 100 {
		go func() {
			defer wg.Done()
			r.Record(entity.VisitEvent{Code: "abc123", IP: "203.0.113.7", UserAgent: uaAndroid, VisitedAt: testNow})
		}()
	}
	wg.Wait()

	require.NoError(t, r.Stop(context.Background()))

	stats, err := store.Stats(context.Background(), "abc123")
	require.NoError(t, err)
	assert.Equal(t, int64(100), stats.TotalVisits)
	assert.Equal(t, int64(1), stats.UniqueDevices)
	assert.Equal(t, int64(1), stats.UniqueOS)
}

func TestRecorder_QueueFull(t *testing.T) {
	store := memory.New()
	r := newTestRecorder(t, Config{Workers: 1, QueueSize: 2}, store)

	// Not started yet, so nothing drains the queue.
	for range 5 {
		r.Record(entity.VisitEvent{Code: "abc123", IP: "203.0.113.7", VisitedAt: testNow})
	}

	require.NoError(t, r.Start())
	require.NoError(t, r.Stop(context.Background()))

	assert.Len(t, store.Visits(), 2)
}

func TestRecorder_StoreFailureIsNotRetried(t *testing.T) {
	store := &failingStore{err: errors.New("unknown error")}
	r := newTestRecorder(t, Config{Workers: 1, QueueSize: 4}, store)
	require.NoError(t, r.Start())

	r.Record(entity.VisitEvent{Code: "abc123", VisitedAt: testNow})

	require.NoError(t, r.Stop(context.Background()))
	assert.Equal(t, int64(1), store.calls.Load())
}

func TestRecorder_Process(t *testing.T) {
	errUnknown := errors.New("unknown error")
	r := newTestRecorder(t, Config{}, &failingStore{err: errUnknown})

	err := r.Process(context.Background(), entity.VisitEvent{Code: "abc123"})

	assert.ErrorIs(t, err, errUnknown)
}

func TestRecorder_Lifecycle(t *testing.T) {
	t.Run("stop before start", func(t *testing.T) {
		r := newTestRecorder(t, Config{}, memory.New())

		assert.ErrorIs(t, r.Stop(context.Background()), ErrNotStarted)
	})

	t.Run("start twice", func(t *testing.T) {
		r := newTestRecorder(t, Config{}, memory.New())
		require.NoError(t, r.Start())
		t.Cleanup(func() { r.Stop(context.Background()) })

		assert.ErrorIs(t, r.Start(), ErrAlreadyStarted)
	})

	t.Run("record after stop is dropped", func(t *testing.T) {
		store := memory.New()
		r := newTestRecorder(t, Config{}, store)
		require.NoError(t, r.Start())
		require.NoError(t, r.Stop(context.Background()))

		assert.NotPanics(t, func() {
			r.Record(entity.VisitEvent{Code: "abc123"})
		})
		assert.Empty(t, store.Visits())
		assert.NoError(t, r.Stop(context.Background()))
	})

	t.Run("stop deadline cancels in-flight writes", func(t *testing.T) {
		r := newTestRecorder(t, Config{Workers: 1, QueueSize: 4, WriteTimeout: time.Minute}, blockingStore{})
		require.NoError(t, r.Start())

		r.Record(entity.VisitEvent{Code: "abc123"})
		r.Record(entity.VisitEvent{Code: "abc123"})

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		err := r.Stop(ctx)

		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}
