// Package module provides the discovery module
package module

import (
	"net/http"

	"whispermap/internal/modkit"
	"whispermap/internal/modkit/httpkit"
	"whispermap/internal/services/discovery/domain"
	"whispermap/internal/services/discovery/service"
	whispers "whispermap/internal/services/whispers/domain"
)

// Ports exposed by the discovery module
type Ports struct {
	Engine domain.EnginePort
}

// Module implements modkit.Module
type Module struct {
	deps  modkit.Deps
	ports Ports
}

// New constructs a new discovery module over the whispers reader port
func New(deps modkit.Deps, reader whispers.ReaderPort) *Module {
	opts := FromConfig(deps.Cfg)

	svc := service.New(reader, deps.CH, service.Config{
		DefaultMaxAge:        opts.DefaultMaxAge,
		DefaultLimit:         opts.DefaultLimit,
		MaxLimit:             opts.MaxLimit,
		EnforceWhisperRadius: opts.EnforceWhisperRadius,
	}, deps.Clock, deps.Log)

	m := &Module{deps: deps}
	m.ports = Ports{Engine: svc}
	return m
}

// Name implements modkit.Module
func (m *Module) Name() string { return "discovery" }

// Ports implements modkit.Module
func (m *Module) Ports() any { return m.ports }

// Prefix implements modkit.Module
func (m *Module) Prefix() string { return "" }

// Middlewares implements modkit.Module
func (m *Module) Middlewares() []func(http.Handler) http.Handler { return nil }

// MountRoutes implements modkit.Module
func (m *Module) MountRoutes(r httpkit.Router) {}
