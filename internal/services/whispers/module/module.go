// Package module provides the whispers module
package module

import (
	"net/http"

	"whispermap/internal/modkit"
	"whispermap/internal/modkit/httpkit"
	"whispermap/internal/modkit/repokit"
	"whispermap/internal/services/whispers/domain"
	"whispermap/internal/services/whispers/repo"
	"whispermap/internal/services/whispers/service"
)

// Ports exposed by the whispers module
type Ports struct {
	Reader domain.ReaderPort
	Writer domain.WriterPort
	Sweep  domain.SweepPort
}

// Module implements modkit.Module
type Module struct {
	deps  modkit.Deps
	ports Ports
}

// New constructs a new whispers module
// Postgres backs the store when wired; otherwise the volatile in-memory
// store, which matches the original design where the client cache is the
// resilience layer
func New(deps modkit.Deps) *Module {
	opts := FromConfig(deps.Cfg)

	db := deps.PG
	var binder repokit.Binder[repo.Storage]
	if db != nil {
		binder = repo.NewPG()
	} else {
		db = repo.MemoryDB()
		binder = repo.MemoryBinder(repo.NewMemory())
	}

	svc := service.New(db, binder, service.Config{
		DefaultLifetimeDays:    opts.DefaultLifetimeDays,
		MaxLifetimeDays:        opts.MaxLifetimeDays,
		PremiumMaxLifetimeDays: opts.PremiumMaxLifetimeDays,
		DefaultRadiusMeters:    opts.DefaultRadiusMeters,
		MaxRadiusMeters:        opts.MaxRadiusMeters,
		MaxTitleRunes:          opts.MaxTitleRunes,
		MaxDescriptionRunes:    opts.MaxDescriptionRunes,
	}, deps.Clock, deps.Bus, deps.Log)

	m := &Module{deps: deps}
	m.ports = Ports{Reader: svc, Writer: svc, Sweep: svc}
	return m
}

// Name implements modkit.Module
func (m *Module) Name() string { return "whispers" }

// Ports implements modkit.Module
func (m *Module) Ports() any { return m.ports }

// Prefix implements modkit.Module
func (m *Module) Prefix() string { return "" }

// Middlewares implements modkit.Module
func (m *Module) Middlewares() []func(http.Handler) http.Handler { return nil }

// MountRoutes implements modkit.Module
// the HTTP surface lives in the api vertical
func (m *Module) MountRoutes(r httpkit.Router) {}
