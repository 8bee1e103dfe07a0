// Package cache provides snapshot stores for the reconciliation layer
package cache

import (
	"context"
	"sync"

	"whispermap/internal/core/geo"
	"whispermap/internal/services/reconcile/domain"
)

// Memory is an in-process snapshot cache, used in tests and as a
// fallback when no cache path is configured
type Memory struct {
	mu   sync.Mutex
	snap domain.Snapshot
	loc  *geo.Location
}

// NewMemory constructs an empty memory cache
func NewMemory() *Memory { return &Memory{} }

// Load implements domain.Cache
func (m *Memory) Load(context.Context) (domain.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneSnapshot(m.snap), nil
}

// Store implements domain.Cache
func (m *Memory) Store(_ context.Context, snap domain.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snap = cloneSnapshot(snap)
	return nil
}

// LoadLocation implements domain.Cache
func (m *Memory) LoadLocation(context.Context) (*geo.Location, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loc == nil {
		return nil, nil
	}
	l := *m.loc
	return &l, nil
}

// StoreLocation implements domain.Cache
func (m *Memory) StoreLocation(_ context.Context, loc geo.Location) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loc = &loc
	return nil
}

func cloneSnapshot(s domain.Snapshot) domain.Snapshot {
	if s.Whispers != nil {
		s.Whispers = append([]domain.CachedWhisper(nil), s.Whispers...)
	}
	return s
}
