// Package domain defines types and ports for client-side reconciliation
package domain

import (
	"context"
	"time"

	"whispermap/internal/core/geo"
	whispers "whispermap/internal/services/whispers/domain"
)

// CachedWhisper is a whisper as the client cache remembers it
// Persistent marks entries that survive a merge even when the server
// no longer returns them: the client's own recent creations, or entries
// cached while no location context existed
type CachedWhisper struct {
	whispers.Whisper
	Persistent bool `json:"persistent,omitempty"`
}

// Snapshot is the last-write-wins cache payload
// it replaces the previous snapshot wholesale, never appends
type Snapshot struct {
	Whispers []CachedWhisper `json:"whispers"`
	SavedAt  time.Time       `json:"savedAt"`
}

// State names the fetch cycle phases
type State int32

// Fetch cycle states
const (
	StateIdle State = iota
	StateFetching
	StateMerging
	StateFallbackToCache
)

// String implements fmt.Stringer
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFetching:
		return "fetching"
	case StateMerging:
		return "merging"
	case StateFallbackToCache:
		return "fallback_to_cache"
	}
	return "unknown"
}

// Fetcher pulls the authoritative server set for a position
type Fetcher interface {
	Fetch(ctx context.Context, pos *geo.Location, radiusMeters float64) ([]whispers.Whisper, error)
}

// Cache is the durable client-side snapshot store plus the last-known
// location used as a geolocation fallback
type Cache interface {
	Load(ctx context.Context) (Snapshot, error)
	Store(ctx context.Context, snap Snapshot) error

	LoadLocation(ctx context.Context) (*geo.Location, error)
	StoreLocation(ctx context.Context, loc geo.Location) error
}

// Locator acquires the live position; errors mean permission denied,
// position unavailable, or timeout
type Locator interface {
	Locate(ctx context.Context) (geo.Location, error)
}
