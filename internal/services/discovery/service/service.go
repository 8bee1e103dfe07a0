// Package service implements the geospatial discovery engine
package service

import (
	"context"
	"sort"
	"time"

	"whispermap/internal/core/geo"
	"whispermap/internal/platform/logger"
	"whispermap/internal/platform/store"
	ptime "whispermap/internal/platform/time"
	"whispermap/internal/services/discovery/domain"
	whispers "whispermap/internal/services/whispers/domain"
)

// Config tunes the discovery engine
type Config struct {
	// DefaultMaxAge bounds candidate age when the query does not
	DefaultMaxAge time.Duration
	// DefaultLimit and MaxLimit bound result size
	DefaultLimit int
	MaxLimit     int
	// EnforceWhisperRadius switches visibility to
	// min(detection radius, whisper broadcast radius)
	EnforceWhisperRadius bool
}

func (c *Config) fill() {
	if c.DefaultMaxAge <= 0 {
		c.DefaultMaxAge = 24 * time.Hour
	}
	if c.DefaultLimit <= 0 {
		c.DefaultLimit = 50
	}
	if c.MaxLimit <= 0 {
		c.MaxLimit = 200
	}
}

// Service implements domain.EnginePort
type Service struct {
	Reader whispers.ReaderPort
	CH     store.Clickhouse
	Cfg    Config
	Clock  ptime.Clock
	Log    logger.Logger
}

// New constructs the discovery engine over a whisper reader
func New(reader whispers.ReaderPort, ch store.Clickhouse, cfg Config, clock ptime.Clock, log logger.Logger) *Service {
	cfg.fill()
	if clock == nil {
		clock = ptime.Real{}
	}
	return &Service{Reader: reader, CH: ch, Cfg: cfg, Clock: clock, Log: log}
}

// Discover implements domain.EnginePort
// a query without a location answers empty; guessing a default position
// would make whispers appear in the wrong place
func (s *Service) Discover(ctx context.Context, q domain.Query) ([]whispers.Whisper, error) {
	if q.Location == nil {
		return []whispers.Whisper{}, nil
	}

	maxAge := q.MaxAge
	if maxAge <= 0 {
		maxAge = s.Cfg.DefaultMaxAge
	}
	limit := q.Limit
	if limit <= 0 {
		limit = s.Cfg.DefaultLimit
	}
	if limit > s.Cfg.MaxLimit {
		limit = s.Cfg.MaxLimit
	}

	start := s.Clock.Now()
	candidates, err := s.Reader.QueryWindow(ctx, whispers.WindowQuery{
		Center:       *q.Location,
		RadiusMeters: q.DetectionRadiusMeters,
		MaxAge:       maxAge,
	})
	if err != nil {
		return nil, err
	}

	hits := s.FilterByRadius(*q.Location, candidates, q.DetectionRadiusMeters)
	out := RankAndLimit(hits, limit)

	s.record(ctx, *q.Location, q.DetectionRadiusMeters, len(candidates), len(out), time.Since(start))
	return out, nil
}

// FilterByRadius keeps candidates within the exact circle
// the boundary is closed: distance == radius stays in
func (s *Service) FilterByRadius(user geo.Location, candidates []whispers.Whisper, detectionRadiusMeters float64) []whispers.Whisper {
	out := make([]whispers.Whisper, 0, len(candidates))
	for _, w := range candidates {
		r := detectionRadiusMeters
		if s.Cfg.EnforceWhisperRadius && w.RadiusMeters > 0 && w.RadiusMeters < r {
			r = w.RadiusMeters
		}
		if geo.WithinRadius(user, w.Location, r) {
			out = append(out, w)
		}
	}
	return out
}

// RankAndLimit sorts newest first and truncates keeping the newest
// the sort is stable so equal timestamps keep their incoming order
func RankAndLimit(ws []whispers.Whisper, maxCount int) []whispers.Whisper {
	out := append([]whispers.Whisper(nil), ws...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if maxCount > 0 && len(out) > maxCount {
		out = out[:maxCount]
	}
	return out
}

// record emits one analytics row per query, best effort
func (s *Service) record(ctx context.Context, loc geo.Location, radius float64, candidates, results int, elapsed time.Duration) {
	if s.CH == nil {
		return
	}
	err := s.CH.Insert(ctx, "discovery_events",
		[]string{"ts", "lat", "lng", "radius_m", "candidates", "results", "elapsed_ms"},
		[][]any{{
			s.Clock.Now().UTC(),
			loc.Lat,
			loc.Lng,
			radius,
			uint32(candidates),
			uint32(results),
			uint32(elapsed.Milliseconds()),
		}},
	)
	if err != nil {
		s.Log.Warn().Err(err).Msg("discovery analytics insert")
	}
}
