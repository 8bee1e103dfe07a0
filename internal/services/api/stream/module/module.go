// Package module wires the live stream endpoint into the API
package module

import (
	"net/http"

	modkit "whispermap/internal/modkit"
	"whispermap/internal/modkit/httpkit"
	"whispermap/internal/platform/msg"
	str "whispermap/internal/platform/strings"

	streamhttp "whispermap/internal/services/api/stream/http"
)

// Module implements the modkit.Module interface
type Module struct {
	deps   modkit.Deps
	name   string
	prefix string
	mws    []func(http.Handler) http.Handler

	register func(httpkit.Router)
}

// New constructs the stream module
// the endpoint answers 503 until a real bus is wired
func New(deps modkit.Deps, opts ...modkit.Option) *Module {
	b := modkit.Build(append([]modkit.Option{
		modkit.WithName("stream"),
		modkit.WithPrefix("/stream"),
	}, opts...)...)

	_, disabled := deps.Bus.(msg.Noop)
	enabled := deps.Bus != nil && !disabled

	m := &Module{
		deps:   deps,
		name:   b.Name,
		prefix: b.Prefix,
		mws:    b.Mw,
	}

	external := b.Register
	m.register = func(r httpkit.Router) {
		streamhttp.Register(r, streamhttp.Deps{
			Bus:     deps.Bus,
			Enabled: enabled,
			Log:     deps.Log,
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
		if m.register != nil {
			m.register(rr)
		}
	})
}

// Name implements the modkit.Module interface
func (m *Module) Name() string { return str.MustString(m.name, "stream") }

// Prefix implements the modkit.Module interface
func (m *Module) Prefix() string { return str.MustPrefix(m.prefix) }

// Middlewares implements the modkit.Module interface
func (m *Module) Middlewares() []func(http.Handler) http.Handler { return m.mws }

// Ports implements the modkit.Module interface
func (m *Module) Ports() any { return nil }
