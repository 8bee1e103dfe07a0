// Package sweeper runs the periodic expired-whisper purge
package sweeper

import (
	"context"
	"time"

	"whispermap/internal/platform/logger"
	whispers "whispermap/internal/services/whispers/domain"
)

// Config tunes the sweep loop
type Config struct {
	Interval time.Duration
}

func (c *Config) fill() {
	if c.Interval <= 0 {
		c.Interval = time.Hour
	}
}

// Worker drives PurgeExpired on a ticker
type Worker struct {
	Sweep whispers.SweepPort
	Cfg   Config
	Log   *logger.Logger
}

// New constructs a sweep worker
func New(sweep whispers.SweepPort, cfg Config, log *logger.Logger) *Worker {
	cfg.fill()
	if log == nil {
		log = logger.Get()
	}
	return &Worker{Sweep: sweep, Cfg: cfg, Log: log}
}

// Once runs a single sweep and returns the purge count
func (w *Worker) Once(ctx context.Context) (int, error) {
	start := time.Now()
	n, err := w.Sweep.PurgeExpired(ctx)
	if err != nil {
		w.Log.Error().Err(err).Msg("sweep failed")
		return 0, err
	}
	w.Log.Info().Int("purged", n).Dur("elapsed", time.Since(start)).Msg("sweep complete")
	return n, nil
}

// Run sweeps immediately, then on every tick until ctx is cancelled.
// A failed sweep is logged and retried on the next tick
func (w *Worker) Run(ctx context.Context) error {
	if _, err := w.Once(ctx); err != nil && ctx.Err() != nil {
		return ctx.Err()
	}

	t := time.NewTicker(w.Cfg.Interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			_, _ = w.Once(ctx)
		}
	}
}
