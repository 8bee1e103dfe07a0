package module

import (
	"whispermap/internal/platform/config"
)

// Options configures the whispers module
type Options struct {
	DefaultLifetimeDays    int
	MaxLifetimeDays        int
	PremiumMaxLifetimeDays int
	DefaultRadiusMeters    float64
	MaxRadiusMeters        float64
	MaxTitleRunes          int
	MaxDescriptionRunes    int
}

// FromConfig reads options from config.Conf
func FromConfig(cfg config.Conf) Options {
	wf := cfg.Prefix("CORE_WHISPERS_")
	return Options{
		DefaultLifetimeDays:    wf.MayInt("DEFAULT_LIFETIME_DAYS", 7),
		MaxLifetimeDays:        wf.MayInt("MAX_LIFETIME_DAYS", 7),
		PremiumMaxLifetimeDays: wf.MayInt("PREMIUM_MAX_LIFETIME_DAYS", 90),
		DefaultRadiusMeters:    wf.MayFloat64("DEFAULT_RADIUS_M", 1000),
		MaxRadiusMeters:        wf.MayFloat64("MAX_RADIUS_M", 10000),
		MaxTitleRunes:          wf.MayInt("MAX_TITLE_RUNES", 80),
		MaxDescriptionRunes:    wf.MayInt("MAX_DESCRIPTION_RUNES", 500),
	}
}
