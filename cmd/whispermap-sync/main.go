// whispermap-sync runs the client reconciliation layer as a daemon:
// it fetches nearby whispers from an API base URL on an interval,
// merges them into a local snapshot cache, and logs the resulting view.
// The position is static, standing in for device geolocation.
package main

import (
	"context"
	"flag"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"whispermap/internal/core/geo"
	"whispermap/internal/modkit"
	"whispermap/internal/modkit/module"
	"whispermap/internal/platform/config"
	perr "whispermap/internal/platform/errors"
	"whispermap/internal/platform/logger"
	ptime "whispermap/internal/platform/time"

	"whispermap/internal/services/reconcile/cache"
	recdomain "whispermap/internal/services/reconcile/domain"
	"whispermap/internal/services/reconcile/fetcher"
	recmod "whispermap/internal/services/reconcile/module"
)

// staticLocator serves a fixed position, or fails when none was given
// so the last-known-location fallback gets exercised
type staticLocator struct {
	loc *geo.Location
}

func (s staticLocator) Locate(context.Context) (geo.Location, error) {
	if s.loc == nil {
		return geo.Location{}, perr.Unavailablef("no position configured")
	}
	return *s.loc, nil
}

func main() {
	_ = godotenv.Load()

	root := config.New()
	syncCfg := root.Prefix("CLIENT_SYNC_")

	l := logger.Get()

	var (
		fBase     = flag.String("api", syncCfg.MayString("API_BASE", "http://localhost:4000"), "API base URL")
		fLat      = flag.Float64("lat", 0, "position latitude")
		fLng      = flag.Float64("lng", 0, "position longitude")
		fHasPos   = flag.Bool("pos", false, "treat -lat/-lng as a real position")
		fCache    = flag.String("cache", syncCfg.MayString("CACHE_PATH", "./data/sync/cache.json"), "snapshot cache path")
		fInterval = flag.Duration("interval", syncCfg.MayDuration("INTERVAL", 10*time.Second), "refresh trigger interval")
		fTimeout  = flag.Duration("timeout", syncCfg.MayDuration("FETCH_TIMEOUT", 10*time.Second), "fetch timeout")
	)
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	snapCache, err := cache.NewFile(*fCache)
	if err != nil {
		l.Panic().Err(err).Msg("cache init failed")
	}

	var pos *geo.Location
	if *fHasPos {
		pos = &geo.Location{Lat: *fLat, Lng: *fLng}
	}

	deps := modkit.Deps{
		Log:   *l,
		Cfg:   root,
		Clock: ptime.Real{},
	}
	m := recmod.New(deps,
		fetcher.New(*fBase, *fTimeout),
		snapCache,
		staticLocator{loc: pos},
	)
	rec := module.MustPortsOf[recmod.Ports](m).Reconciler

	l.Info().Str("api", *fBase).Dur("interval", *fInterval).Msg("sync starting")

	t := time.NewTicker(*fInterval)
	defer t.Stop()
	for {
		snap, err := rec.Refresh(ctx)
		if err != nil {
			l.Error().Err(err).Msg("refresh failed")
		} else {
			ev := l.Info().
				Int("whispers", len(snap.Whispers)).
				Str("state", rec.State().String())
			if notice := rec.LastError(); notice != nil {
				ev = ev.Str("notice", notice.Error())
			}
			ev.Msg("snapshot current")
		}

		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

var _ recdomain.Locator = staticLocator{}
