// Package modkit provides module wiring and core deps
package modkit

import (
	"whispermap/internal/modkit/repokit"
	"whispermap/internal/platform/config"
	"whispermap/internal/platform/logger"
	"whispermap/internal/platform/msg"
	"whispermap/internal/platform/store"
	ptime "whispermap/internal/platform/time"
)

// Deps holds core dependencies passed to modules
// this is wiring only and does not introduce new abstractions
type Deps struct {
	Log   logger.Logger
	Cfg   config.Conf
	PG    repokit.TxRunner
	CH    store.Clickhouse
	Bus   msg.Bus
	Clock ptime.Clock
}

// ZeroOK returns true when deps are safe to use with zero values in tests
// consumers should still nil check for optional stores
func (d Deps) ZeroOK() bool { return true }
