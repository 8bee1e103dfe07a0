// Package service implements the client-side reconciliation cycle
package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"whispermap/internal/core/geo"
	perr "whispermap/internal/platform/errors"
	"whispermap/internal/platform/logger"
	ptime "whispermap/internal/platform/time"
	"whispermap/internal/services/reconcile/domain"
	whispers "whispermap/internal/services/whispers/domain"
)

// Config tunes the reconciler
type Config struct {
	// RadiusMeters is the detection radius sent with every fetch
	RadiusMeters float64

	// MinInterval is the floor between fetches; cycles triggered sooner
	// serve the cache instead of hitting the network
	MinInterval time.Duration

	// SafetyTimeout force-clears a Fetching state that never resolved,
	// so a wedged transport cannot block future cycles forever
	SafetyTimeout time.Duration

	// Cap bounds the merged snapshot; zero means unlimited
	Cap int

	// DefaultLifetime is the expiry substitute for cached entries
	// without one
	DefaultLifetime time.Duration
}

func (c *Config) fill() {
	if c.RadiusMeters <= 0 {
		c.RadiusMeters = 1000
	}
	if c.SafetyTimeout <= 0 {
		c.SafetyTimeout = 30 * time.Second
	}
	if c.DefaultLifetime <= 0 {
		c.DefaultLifetime = 7 * 24 * time.Hour
	}
}

// Reconciler runs serialized fetch cycles, merging the server view into
// the local snapshot cache. Fetch failures are never fatal: the cycle
// falls back to the last good snapshot and records a notice
type Reconciler struct {
	Fetcher domain.Fetcher
	Cache   domain.Cache
	Locator domain.Locator
	Cfg     Config
	Clock   ptime.Clock
	Log     *logger.Logger

	state    atomic.Int32
	inFlight atomic.Bool
	playback atomic.Bool
	gen      atomic.Uint64

	mu        sync.Mutex
	lastFetch time.Time
	lastErr   error
}

// New constructs a reconciler; cache defaults to in-memory semantics
// only through the caller, a nil cache is a programmer error
func New(f domain.Fetcher, c domain.Cache, loc domain.Locator, cfg Config, clock ptime.Clock, log *logger.Logger) *Reconciler {
	cfg.fill()
	if clock == nil {
		clock = ptime.Real{}
	}
	if log == nil {
		log = logger.Get()
	}
	return &Reconciler{
		Fetcher: f,
		Cache:   c,
		Locator: loc,
		Cfg:     cfg,
		Clock:   clock,
		Log:     log,
	}
}

// State reports the current cycle phase
func (r *Reconciler) State() domain.State { return domain.State(r.state.Load()) }

// LastError returns the most recent non-blocking notice, nil when the
// last cycle was clean
func (r *Reconciler) LastError() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastErr
}

// SetPlayback suppresses fetch cycles while audio is playing
func (r *Reconciler) SetPlayback(on bool) { r.playback.Store(on) }

// NoteCreated records one of our own creations as a persistent cache
// entry so it survives merges even before the server echoes it back
func (r *Reconciler) NoteCreated(ctx context.Context, w whispers.Whisper) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap, err := r.Cache.Load(ctx)
	if err != nil {
		return err
	}
	for i := range snap.Whispers {
		if snap.Whispers[i].ID == w.ID {
			snap.Whispers[i] = domain.CachedWhisper{Whisper: w, Persistent: true}
			return r.Cache.Store(ctx, snap)
		}
	}
	snap.Whispers = append([]domain.CachedWhisper{{Whisper: w, Persistent: true}}, snap.Whispers...)
	snap.SavedAt = r.Clock.Now().UTC()
	return r.Cache.Store(ctx, snap)
}

// Refresh runs one fetch cycle and returns the resulting snapshot.
// Concurrent calls coalesce: losers serve the current cache immediately.
// Suppressed cycles (playback, rate limit, no location) also serve the
// cache; only cache I/O failures surface as errors
func (r *Reconciler) Refresh(ctx context.Context) (domain.Snapshot, error) {
	if r.playback.Load() {
		return r.serveCache(ctx)
	}
	if !r.inFlight.CompareAndSwap(false, true) {
		return r.serveCache(ctx)
	}
	gen := r.gen.Add(1)
	defer func() {
		// a later cycle owns the state once the safety timer released us
		if r.gen.Load() == gen {
			r.state.Store(int32(domain.StateIdle))
			r.inFlight.Store(false)
		}
	}()

	now := r.Clock.Now().UTC()
	r.mu.Lock()
	limited := !r.lastFetch.IsZero() && r.Cfg.MinInterval > 0 && now.Sub(r.lastFetch) < r.Cfg.MinInterval
	r.mu.Unlock()
	if limited {
		return r.serveCache(ctx)
	}

	// the notice belongs to the cycle: clear before anything can set it
	r.setLastErr(nil)

	pos, hasLoc := r.resolveLocation(ctx)
	if !hasLoc {
		// no position at all: discovery is off for this cycle
		return r.serveCache(ctx)
	}

	r.state.Store(int32(domain.StateFetching))
	timer := time.AfterFunc(r.Cfg.SafetyTimeout, func() {
		if r.gen.Load() == gen && r.State() == domain.StateFetching {
			r.Log.Warn().Dur("timeout", r.Cfg.SafetyTimeout).Msg("fetch cycle wedged, force-clearing")
			r.state.Store(int32(domain.StateIdle))
			r.inFlight.Store(false)
		}
	})
	defer timer.Stop()

	server, err := r.Fetcher.Fetch(ctx, pos, r.Cfg.RadiusMeters)
	if r.gen.Load() != gen {
		// the safety timer released this cycle while the fetch was
		// wedged; a newer cycle owns the state and the cache now, so
		// whatever this fetch produced is stale and must not be merged
		return r.serveCache(ctx)
	}
	if err != nil {
		r.state.Store(int32(domain.StateFallbackToCache))
		r.setLastErr(err)
		r.Log.Warn().Err(err).Bool("retryable", perr.Retryable(err)).Msg("fetch failed, serving cached snapshot")
		return r.serveCache(ctx)
	}

	r.state.Store(int32(domain.StateMerging))
	snap, err := r.Cache.Load(ctx)
	if err != nil {
		return domain.Snapshot{}, err
	}

	merged := Merge(server, snap.Whispers, now, MergeOptions{
		Cap:             r.Cfg.Cap,
		DefaultLifetime: r.Cfg.DefaultLifetime,
		HasLocation:     true,
	})
	out := domain.Snapshot{Whispers: merged, SavedAt: now}
	if err := r.Cache.Store(ctx, out); err != nil {
		return domain.Snapshot{}, err
	}

	r.mu.Lock()
	r.lastFetch = now
	r.mu.Unlock()

	r.Log.Debug().
		Int("server", len(server)).
		Int("merged", len(merged)).
		Msg("reconcile cycle complete")
	return out, nil
}

// resolveLocation tries the live position first, then the last known
// cached one. A fresh position is written back for future fallbacks
func (r *Reconciler) resolveLocation(ctx context.Context) (*geo.Location, bool) {
	if r.Locator != nil {
		loc, err := r.Locator.Locate(ctx)
		if err == nil {
			if serr := r.Cache.StoreLocation(ctx, loc); serr != nil {
				r.Log.Warn().Err(serr).Msg("persist last known location")
			}
			return &loc, true
		}
		r.setLastErr(err)
		r.Log.Warn().Err(err).Msg("geolocation failed, trying last known location")
	}

	loc, err := r.Cache.LoadLocation(ctx)
	if err != nil || loc == nil {
		return nil, false
	}
	return loc, true
}

func (r *Reconciler) serveCache(ctx context.Context) (domain.Snapshot, error) {
	return r.Cache.Load(ctx)
}

func (r *Reconciler) setLastErr(err error) {
	r.mu.Lock()
	r.lastErr = err
	r.mu.Unlock()
}
