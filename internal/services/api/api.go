// Package api provides the HTTP API for the application
package api

import (
	"whispermap/internal/platform/config"
	"whispermap/internal/platform/logger"
	"whispermap/internal/platform/msg"
	phttp "whispermap/internal/platform/net/http"
	"whispermap/internal/platform/store"
	ptime "whispermap/internal/platform/time"

	"whispermap/internal/modkit"
	"whispermap/internal/modkit/httpkit"
	"whispermap/internal/modkit/module"
	"whispermap/internal/modkit/swaggerkit"

	metamod "whispermap/internal/services/api/meta/module"
	streammod "whispermap/internal/services/api/stream/module"
	apiwhispers "whispermap/internal/services/api/whispers/module"
	"whispermap/internal/services/whispers/blob"

	// Worker modules (own the store and engine ports)
	discoverymod "whispermap/internal/services/discovery/module"
	whispersmod "whispermap/internal/services/whispers/module"
)

// Options are the API options
type Options struct {
	Config         config.Conf
	Store          *store.Store
	Logger         *logger.Logger
	Bus            msg.Bus
	Clock          ptime.Clock
	Audio          blob.Store
	EnableSwagger  bool
	EnableProfiler bool
}

// Mount mounts the API service onto the given router
func Mount(r phttp.Router, opt Options) {
	// shared deps for modules
	deps := modkit.Deps{
		Cfg:   opt.Config,
		Bus:   opt.Bus,
		Clock: opt.Clock,
	}
	if opt.Logger != nil {
		deps.Log = *opt.Logger
	}
	if opt.Store != nil {
		deps.PG = opt.Store.PG
		deps.CH = opt.Store.CH
	}

	// Construct the worker modules first and extract their ports
	whispersWorker := whispersmod.New(deps)
	wports := module.MustPortsOf[whispersmod.Ports](whispersWorker)

	discoveryWorker := discoverymod.New(deps, wports.Reader)
	dports := module.MustPortsOf[discoverymod.Ports](discoveryWorker)

	// Inject those ports into the API whispers module
	whispersAPI := apiwhispers.New(
		deps,
		modkit.WithPorts(apiwhispers.Ports{
			Reader: wports.Reader,
			Writer: wports.Writer,
			Engine: dports.Engine,
			Audio:  opt.Audio,
		}),
	)

	mods := []module.Module{
		metamod.New(deps),
		whispersWorker, // include workers so their ports are registered
		discoveryWorker,
		whispersAPI,
		streammod.New(deps),
	}

	// versioned API with a common middleware stack
	httpkit.MountAPIV1(r, httpkit.CommonStack(), func(api httpkit.Router) {
		// Swagger + profiler
		swaggerkit.Mount(r, opt.EnableSwagger)
		phttp.MountProfiler(r, "/debug", opt.EnableProfiler)

		for _, m := range mods {
			// register each module's ports under its own name (for cross-module lookups)
			module.Register(m.Name(), m.Ports())

			// mount module routes under its Prefix()
			m.MountRoutes(api)
		}
	})
}
