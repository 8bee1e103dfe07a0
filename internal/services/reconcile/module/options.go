package module

import (
	"time"

	"whispermap/internal/platform/config"
)

// Options configures the reconcile module
type Options struct {
	Profile         string
	RadiusMeters    float64
	MinInterval     time.Duration
	SafetyTimeout   time.Duration
	Cap             int
	DefaultLifetime time.Duration
}

// FromConfig reads options from config.Conf
// the profile picks interval and cap defaults: desktop refreshes every
// few seconds unbounded, mobile backs off to tens of seconds and keeps
// the snapshot small. Explicit MIN_INTERVAL / CAP override either
func FromConfig(cfg config.Conf) Options {
	rf := cfg.Prefix("CLIENT_RECONCILE_")

	profile := rf.MayEnum("PROFILE", "desktop", "desktop", "mobile")
	interval := 5 * time.Second
	maxEntries := 100
	if profile == "mobile" {
		interval = 30 * time.Second
		maxEntries = 20
	}

	return Options{
		Profile:         profile,
		RadiusMeters:    rf.MayFloat64("RADIUS_M", 1000),
		MinInterval:     rf.MayDuration("MIN_INTERVAL", interval),
		SafetyTimeout:   rf.MayDuration("SAFETY_TIMEOUT", 30*time.Second),
		Cap:             rf.MayInt("CAP", maxEntries),
		DefaultLifetime: rf.MayDuration("DEFAULT_LIFETIME", 7*24*time.Hour),
	}
}
