package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadimbarashkov/shortlink/internal/entity"
)

var testNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func TestStorage_SaveResolve(t *testing.T) {
	ctx := context.Background()

	t.Run("round trip", func(t *testing.T) {
		s := New()

		saved, err := s.Save(ctx, &entity.ShortURL{Code: "abc123", TargetURL: "https://example.com", OwnerID: "ip:1"})
		require.NoError(t, err)
		assert.Equal(t, int64(1), saved.ID)

		got, err := s.Resolve(ctx, "abc123", testNow)
		require.NoError(t, err)
		assert.Equal(t, "https://example.com", got.TargetURL)
	})

	t.Run("duplicate code does not overwrite", func(t *testing.T) {
		s := New()

		_, err := s.Save(ctx, &entity.ShortURL{Code: "abc123", TargetURL: "https://first.example.com"})
		require.NoError(t, err)

		_, err = s.Save(ctx, &entity.ShortURL{Code: "abc123", TargetURL: "https://second.example.com"})
		assert.ErrorIs(t, err, entity.ErrShortCodeExists)

		got, err := s.Resolve(ctx, "abc123", testNow)
		require.NoError(t, err)
		assert.Equal(t, "https://first.example.com", got.TargetURL)
	})

	t.Run("unknown code", func(t *testing.T) {
		_, err := New().Resolve(ctx, "missing", testNow)

		assert.ErrorIs(t, err, entity.ErrURLNotFound)
	})

	t.Run("expired code is not found but keeps its slot", func(t *testing.T) {
		s := New()
		expiresAt := testNow.Add(time.Hour)

		_, err := s.Save(ctx, &entity.ShortURL{Code: "abc123", TargetURL: "https://example.com", ExpiresAt: &expiresAt})
		require.NoError(t, err)

		_, err = s.Resolve(ctx, "abc123", testNow)
		assert.NoError(t, err)

		_, err = s.Resolve(ctx, "abc123", expiresAt)
		assert.ErrorIs(t, err, entity.ErrURLNotFound)

		_, err = s.Save(ctx, &entity.ShortURL{Code: "abc123", TargetURL: "https://other.example.com"})
		assert.ErrorIs(t, err, entity.ErrShortCodeExists)
	})

	t.Run("concurrent saves of one code", func(t *testing.T) {
		s := New()

		var (
			wg   sync.WaitGroup
			mu   sync.Mutex
			wins int
		)

		wg.Add(50)
		for i := range 50 {
			go func() {
				defer wg.Done()

				_, err := s.Save(ctx, &entity.ShortURL{Code: "race", TargetURL: fmt.Sprintf("https://example.com/%d", i)})
				if err == nil {
					mu.Lock()
					wins++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, 1, wins)
	})
}

func TestStorage_RecordVisit(t *testing.T) {
	ctx := context.Background()

	t.Run("concurrent visits of one device", func(t *testing.T) {
		s := New()

		var wg sync.WaitGroup
		wg.Add(100)
		for i := range 100 {
			go func() {
				defer wg.Done()

				s.RecordVisit(ctx, entity.Visit{
					Code:              "abc123",
					VisitedAt:         testNow.Add(time.Duration(i) * time.Millisecond),
					DeviceFingerprint: "fp-1",
					OSFamily:          "Android",
					DeviceType:        "mobile",
				})
			}()
		}
		wg.Wait()

		stats, err := s.Stats(ctx, "abc123")
		require.NoError(t, err)
		assert.Equal(t, int64(100), stats.TotalVisits)
		assert.Equal(t, int64(1), stats.UniqueDevices)
		assert.Equal(t, int64(1), stats.UniqueOS)
		assert.Len(t, s.Visits(), 100)
	})

	t.Run("first seen is kept", func(t *testing.T) {
		s := New()

		s.RecordVisit(ctx, entity.Visit{Code: "abc123", VisitedAt: testNow, DeviceFingerprint: "fp", OSFamily: "iOS"})
		s.RecordVisit(ctx, entity.Visit{Code: "abc123", VisitedAt: testNow.Add(time.Hour), DeviceFingerprint: "fp", OSFamily: "iOS"})

		assert.Equal(t, testNow, s.devices[deviceKey{code: "abc123", fingerprint: "fp"}].FirstSeenAt)
		assert.Equal(t, testNow, s.os[osKey{code: "abc123", osFamily: "iOS"}].FirstSeenAt)
	})
}

func TestStorage_Stats(t *testing.T) {
	ctx := context.Background()
	s := New()

	visits := []entity.Visit{
		{Code: "abc123", VisitedAt: testNow, DeviceFingerprint: "a", OSFamily: "iOS", DeviceType: "mobile"},
		{Code: "abc123", VisitedAt: testNow.Add(time.Minute), DeviceFingerprint: "b", OSFamily: "iOS", DeviceType: "tablet"},
		{Code: "abc123", VisitedAt: testNow.Add(2 * time.Minute), DeviceFingerprint: "c", OSFamily: "Windows", DeviceType: "desktop"},
		{Code: "other", VisitedAt: testNow.Add(time.Hour), DeviceFingerprint: "a", OSFamily: "Linux", DeviceType: "desktop"},
	}
	for _, v := range visits {
		require.NoError(t, s.RecordVisit(ctx, v))
	}

	stats, err := s.Stats(ctx, "abc123")

	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.TotalVisits)
	assert.Equal(t, int64(3), stats.UniqueDevices)
	assert.Equal(t, int64(2), stats.UniqueOS)
	assert.Equal(t, map[string]int64{"iOS": 2, "Windows": 1}, stats.VisitsByOS)
	assert.Equal(t, map[string]int64{"mobile": 1, "tablet": 1, "desktop": 1}, stats.VisitsByDevice)
	require.NotNil(t, stats.LastVisitAt)
	assert.Equal(t, testNow.Add(2*time.Minute), *stats.LastVisitAt)
}
