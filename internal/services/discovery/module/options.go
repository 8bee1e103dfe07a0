package module

import (
	"time"

	"whispermap/internal/platform/config"
)

// Options configures the discovery module
type Options struct {
	DefaultMaxAge        time.Duration
	DefaultLimit         int
	MaxLimit             int
	EnforceWhisperRadius bool
}

// FromConfig reads options from config.Conf
func FromConfig(cfg config.Conf) Options {
	df := cfg.Prefix("CORE_DISCOVERY_")
	return Options{
		DefaultMaxAge: df.MayDuration("DEFAULT_MAX_AGE", 24*time.Hour),
		DefaultLimit:  df.MayInt("DEFAULT_LIMIT", 50),
		MaxLimit:      df.MayInt("MAX_LIMIT", 200),
		// visibility stays searcher-radius-only unless explicitly flipped
		EnforceWhisperRadius: df.MayBool("ENFORCE_WHISPER_RADIUS", false),
	}
}
