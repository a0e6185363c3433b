// Package memory implements the short URL and visit stores in process memory.
// It backs the "memory" storage driver and the tests of the layers above.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/vadimbarashkov/shortlink/internal/entity"
)

type deviceKey struct {
	code        string
	fingerprint string
}

type osKey struct {
	code     string
	osFamily string
}

type Storage struct {
	mu      sync.RWMutex
	nextID  int64
	urls    map[string]*entity.ShortURL
	visits  []entity.Visit
	devices map[deviceKey]entity.UniqueDevice
	os      map[osKey]entity.UniqueOS
	now     func() time.Time
}

func New() *Storage {
	return &Storage{
		urls:    make(map[string]*entity.ShortURL),
		devices: make(map[deviceKey]entity.UniqueDevice),
		os:      make(map[osKey]entity.UniqueOS),
		now:     time.Now,
	}
}

func (s *Storage) Save(_ context.Context, url *entity.ShortURL) (*entity.ShortURL, error) {
	const op = "adapter.repository.memory.Storage.Save"

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.urls[url.Code]; ok {
		return nil, fmt.Errorf("%s: %w", op, entity.ErrShortCodeExists)
	}

	s.nextID++

	saved := *url
	saved.ID = s.nextID
	saved.CreatedAt = s.now()
	if url.ExpiresAt != nil {
		expiresAt := *url.ExpiresAt
		saved.ExpiresAt = &expiresAt
	}

	s.urls[saved.Code] = &saved

	out := saved
	return &out, nil
}

func (s *Storage) Resolve(_ context.Context, code string, now time.Time) (*entity.ShortURL, error) {
	const op = "adapter.repository.memory.Storage.Resolve"

	s.mu.RLock()
	defer s.mu.RUnlock()

	url, ok := s.urls[code]
	if !ok || url.IsExpired(now) {
		return nil, fmt.Errorf("%s: %w", op, entity.ErrURLNotFound)
	}

	out := *url
	return &out, nil
}

// RecordVisit appends the visit and inserts the unique rows if absent, all
// under one lock.
func (s *Storage) RecordVisit(_ context.Context, visit entity.Visit) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	visit.ID = int64(len(s.visits) + 1)
	s.visits = append(s.visits, visit)

	dk := deviceKey{code: visit.Code, fingerprint: visit.DeviceFingerprint}
	if _, ok := s.devices[dk]; !ok {
		s.devices[dk] = entity.UniqueDevice{
			Code:              visit.Code,
			DeviceFingerprint: visit.DeviceFingerprint,
			FirstSeenAt:       visit.VisitedAt,
		}
	}

	osk := osKey{code: visit.Code, osFamily: visit.OSFamily}
	if _, found := s.os[osk]; !found {
		s.os[osk] = entity.UniqueOS{
			Code:        visit.Code,
			OSFamily:    visit.OSFamily,
			FirstSeenAt: visit.VisitedAt,
		}
	}

	return nil
}

func (s *Storage) Stats(_ context.Context, code string) (*entity.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &entity.Stats{
		Code:           code,
		VisitsByOS:     make(map[string]int64),
		VisitsByDevice: make(map[string]int64),
	}

	for _, v := range s.visits {
		if v.Code != code {
			continue
		}

		stats.TotalVisits++
		stats.VisitsByOS[v.OSFamily]++
		stats.VisitsByDevice[v.DeviceType]++

		if stats.LastVisitAt == nil || v.VisitedAt.After(*stats.LastVisitAt) {
			visitedAt := v.VisitedAt
			stats.LastVisitAt = &visitedAt
		}
	}

	for k := range s.devices {
		if k.code == code {
			stats.UniqueDevices++
		}
	}

	for k := range s.os {
		if k.code == code {
			stats.UniqueOS++
		}
	}

	return stats, nil
}

// Visits returns a copy of the visit log.
func (s *Storage) Visits() []entity.Visit {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]entity.Visit, len(s.visits))
	copy(out, s.visits)
	return out
}
