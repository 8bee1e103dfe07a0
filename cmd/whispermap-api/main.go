// @title         WhisperMap API
// @version       0.1.0
// @description   Location-based audio whisper sharing

package main

import (
	"context"
	stdhttp "net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"whispermap/internal/platform/config"
	"whispermap/internal/platform/logger"
	"whispermap/internal/platform/msg"
	phttp "whispermap/internal/platform/net/http"
	"whispermap/internal/platform/store"
	ptime "whispermap/internal/platform/time"

	"whispermap/internal/services/api"
	"whispermap/internal/services/whispers/blob"
)

func main() {
	_ = godotenv.Load()

	// service-scoped config for HTTP etc (CORE_API_*)
	root := config.New()
	apiCfg := root.Prefix("CORE_API_")

	pgCfg := root.Prefix("SERVICE_PGSQL_")      // pgCfg lives under SERVICE_PGSQL_*
	chCfg := root.Prefix("SERVICE_CLICKHOUSE_") // chCfg lives under SERVICE_CLICKHOUSE_*
	natsCfg := root.Prefix("SERVICE_NATS_")     // natsCfg lives under SERVICE_NATS_*

	// bring up logging early
	l := logger.Get()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// open the platform store; both backends are optional here:
	// without postgres the whisper store runs volatile in memory
	pgURL := pgCfg.MayString("DBURL", "")
	chURL := chCfg.MayString("DBURL", "")
	st, err := store.Open(ctx, store.Config{
		PG: store.PGConfig{
			Enabled:     pgURL != "",
			URL:         pgURL,
			MaxConns:    int32(pgCfg.MayInt("MAX_CONNS", 4)),
			SlowQueryMs: pgCfg.MayInt("SLOW_MS", 500),
			LogSQL:      pgCfg.MayBool("LOG_SQL", true),
		},
		CH: store.CHConfig{
			Enabled:    chURL != "",
			URL:        chURL,
			ClientName: "whispermap",
			ClientTag:  "api",
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
	if pgURL == "" {
		l.Warn().Msg("postgres disabled, whisper store is volatile")
	}

	// event bus, optional
	var bus msg.Bus = msg.Noop{}
	if natsURL := natsCfg.MayString("URL", ""); natsURL != "" {
		bus, err = msg.Connect(msg.Config{
			URL:            natsURL,
			Name:           "whispermap-api",
			MaxReconnects:  natsCfg.MayInt("MAX_RECONNECTS", -1),
			ReconnectWait:  natsCfg.MayDuration("RECONNECT_WAIT", 2*time.Second),
			ConnectTimeout: natsCfg.MayDuration("CONNECT_TIMEOUT", 5*time.Second),
		}, *l)
		if err != nil {
			l.Panic().Err(err).Msg("nats connect failed")
		}
		defer bus.Close()
	}

	// local audio store
	audioDir := apiCfg.MayString("AUDIO_DIR", "./data/audio")
	audio, err := blob.NewFS(audioDir, apiCfg.MayString("AUDIO_BASE_URL", "/audio"))
	if err != nil {
		l.Panic().Err(err).Msg("audio store init failed")
	}

	// http server (reads CORE_API_PORT)
	srv := phttp.NewServer(apiCfg)

	// mount our API
	api.Mount(
		srv.Router(),
		api.Options{
			Config:         apiCfg,
			Store:          st,
			Logger:         l,
			Bus:            bus,
			Clock:          ptime.Real{},
			Audio:          audio,
			EnableSwagger:  apiCfg.MayBool("SWAGGER", true),
			EnableProfiler: apiCfg.MayBool("PROFILER", true),
		},
	)

	// serve stored audio payloads
	srv.Router().Handle("/audio/*", stdhttp.StripPrefix("/audio/", stdhttp.FileServer(stdhttp.Dir(audioDir))))

	// run until signalled
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Run(ctx) }()

	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shCtx); err != nil {
			l.Error().Err(err).Msg("http shutdown failed")
		}
	case err := <-errCh:
		if err != nil {
			l.Panic().Err(err).Msg("http server stopped")
		}
	}
}
