// Package domain defines types and interfaces for discovery
package domain

import (
	"context"
	"time"

	"whispermap/internal/core/geo"
	whispers "whispermap/internal/services/whispers/domain"
)

// Query describes one discovery request
type Query struct {
	// Location is the searcher position; nil means unavailable and the
	// engine answers empty rather than guessing a default
	Location *geo.Location

	// DetectionRadiusMeters is the searcher's detection radius
	DetectionRadiusMeters float64

	// MaxAge bounds whisper age; zero falls back to the engine default
	MaxAge time.Duration

	// Limit caps the result size; zero falls back to the engine default
	Limit int
}

// EnginePort is the discovery surface exposed to the HTTP layer
type EnginePort interface {
	Discover(ctx context.Context, q Query) ([]whispers.Whisper, error)
}
