package module

import (
	"whispermap/internal/platform/config"
)

// Options configures the whispers API module
type Options struct {
	DefaultRadiusMeters float64
}

// FromConfig reads options from config.Conf
func FromConfig(cfg config.Conf) Options {
	wf := cfg.Prefix("API_WHISPERS_")
	return Options{
		DefaultRadiusMeters: wf.MayFloat64("DEFAULT_RADIUS_M", 1000),
	}
}
