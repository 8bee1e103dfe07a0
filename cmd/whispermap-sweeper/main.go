package main

import (
	"context"
	"flag"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"whispermap/internal/modkit"
	"whispermap/internal/modkit/module"
	"whispermap/internal/platform/config"
	"whispermap/internal/platform/logger"
	"whispermap/internal/platform/store"
	ptime "whispermap/internal/platform/time"

	"whispermap/internal/services/sweeper"
	whispersmod "whispermap/internal/services/whispers/module"
)

func main() {
	_ = godotenv.Load()

	root := config.New()
	pgCfg := root.Prefix("SERVICE_PGSQL_")
	swCfg := root.Prefix("CORE_SWEEPER_")

	l := logger.Get()

	var (
		fOnce     = flag.Bool("once", false, "run a single sweep and exit (cron mode)")
		fInterval = flag.Duration("interval", swCfg.MayDuration("INTERVAL", time.Hour), "sweep interval")
	)
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// the sweeper only makes sense against a durable store
	st, err := store.Open(ctx, store.Config{
		PG: store.PGConfig{
			Enabled:     true,
			URL:         pgCfg.MustString("DBURL"),
			MaxConns:    int32(pgCfg.MayInt("MAX_CONNS", 2)),
			SlowQueryMs: pgCfg.MayInt("SLOW_MS", 500),
			LogSQL:      pgCfg.MayBool("LOG_SQL", false),
		},
	}, store.WithLogger(*l))
	if err != nil {
		l.Panic().Err(err).Msg("store.Open failed")
	}
	defer func() {
		if err := st.Close(context.Background()); err != nil {
			l.Error().Err(err).Msg("failed to close store")
		}
	}()

	deps := modkit.Deps{
		Log:   *l,
		Cfg:   root,
		PG:    st.PG,
		Clock: ptime.Real{},
	}
	ports := module.MustPortsOf[whispersmod.Ports](whispersmod.New(deps))

	w := sweeper.New(ports.Sweep, sweeper.Config{Interval: *fInterval}, l)

	if *fOnce {
		if _, err := w.Once(ctx); err != nil {
			l.Fatal().Err(err).Msg("sweep failed")
		}
		return
	}
	if err := w.Run(ctx); err != nil && err != context.Canceled {
		l.Fatal().Err(err).Msg("sweeper stopped")
	}
}
