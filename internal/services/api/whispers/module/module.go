// Package module wires the whispers HTTP surface into the API
package module

import (
	"net/http"

	modkit "whispermap/internal/modkit"
	"whispermap/internal/modkit/httpkit"
	str "whispermap/internal/platform/strings"

	whispershttp "whispermap/internal/services/api/whispers/http"
	discovery "whispermap/internal/services/discovery/domain"
	"whispermap/internal/services/whispers/blob"
	whispers "whispermap/internal/services/whispers/domain"
)

// Ports are the cross-module dependencies this API module consumes
type Ports struct {
	Reader whispers.ReaderPort
	Writer whispers.WriterPort
	Engine discovery.EnginePort
	Audio  blob.Store
}

// Module implements the modkit.Module interface
type Module struct {
	deps   modkit.Deps
	name   string
	prefix string
	mws    []func(http.Handler) http.Handler

	subrouter func(httpkit.Router) httpkit.Router
	register  func(httpkit.Router)

	ports Ports
}

// New constructs the whispers API module; ports come from the worker
// modules via modkit.WithPorts
func New(deps modkit.Deps, opts ...modkit.Option) *Module {
	b := modkit.Build(append([]modkit.Option{
		modkit.WithName("whispers_api"),
		modkit.WithPrefix("/whispers"),
	}, opts...)...)

	ports, ok := b.Ports.(Ports)
	if !ok {
		panic("whispers api module requires Ports via modkit.WithPorts")
	}

	o := FromConfig(deps.Cfg)

	m := &Module{
		deps:      deps,
		name:      b.Name,
		prefix:    b.Prefix,
		mws:       b.Mw,
		subrouter: b.Subrouter,
		ports:     ports,
	}

	external := b.Register
	m.register = func(r httpkit.Router) {
		whispershttp.Register(r, whispershttp.Deps{
			Reader:              ports.Reader,
			Writer:              ports.Writer,
			Engine:              ports.Engine,
			Audio:               ports.Audio,
			DefaultRadiusMeters: o.DefaultRadiusMeters,
		})
		if external != nil {
			external(r)
		}
	}

	return m
}

// MountRoutes implements the modkit.Module interface
func (m *Module) MountRoutes(r httpkit.Router) {
	r.Route(m.prefix, func(rr httpkit.Router) {
		for _, mw := range m.mws {
			rr.Use(mw)
		}
		if m.subrouter != nil {
			rr = m.subrouter(rr)
		}
		if m.register != nil {
			m.register(rr)
		}
	})
}

// Name implements the modkit.Module interface
func (m *Module) Name() string { return str.MustString(m.name, "whispers_api") }

// Prefix implements the modkit.Module interface
func (m *Module) Prefix() string { return str.MustPrefix(m.prefix) }

// Middlewares implements the modkit.Module interface
func (m *Module) Middlewares() []func(http.Handler) http.Handler { return m.mws }

// Ports implements the modkit.Module interface
func (m *Module) Ports() any { return m.ports }
