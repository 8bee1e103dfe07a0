// Package module provides the client reconciliation module
package module

import (
	"net/http"

	"whispermap/internal/modkit"
	"whispermap/internal/modkit/httpkit"
	"whispermap/internal/services/reconcile/domain"
	"whispermap/internal/services/reconcile/service"
)

// Ports exposed by the reconcile module
type Ports struct {
	Reconciler *service.Reconciler
}

// Module implements modkit.Module
type Module struct {
	deps  modkit.Deps
	ports Ports
}

// New constructs the reconciler over the supplied ports; fetcher and
// cache come from the binary since they depend on deployment shape
func New(deps modkit.Deps, fetcher domain.Fetcher, cache domain.Cache, locator domain.Locator) *Module {
	opts := FromConfig(deps.Cfg)

	rec := service.New(fetcher, cache, locator, service.Config{
		RadiusMeters:    opts.RadiusMeters,
		MinInterval:     opts.MinInterval,
		SafetyTimeout:   opts.SafetyTimeout,
		Cap:             opts.Cap,
		DefaultLifetime: opts.DefaultLifetime,
	}, deps.Clock, deps.Log)

	m := &Module{deps: deps}
	m.ports = Ports{Reconciler: rec}
	return m
}

// Name implements modkit.Module
func (m *Module) Name() string { return "reconcile" }

// Ports implements modkit.Module
func (m *Module) Ports() any { return m.ports }

// Prefix implements modkit.Module
func (m *Module) Prefix() string { return "" }

// Middlewares implements modkit.Module
func (m *Module) Middlewares() []func(http.Handler) http.Handler { return nil }

// MountRoutes implements modkit.Module
// the reconciler is a client-side component and mounts nothing
func (m *Module) MountRoutes(r httpkit.Router) {}
