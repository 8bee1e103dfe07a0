package service

import (
	"sort"
	"time"

	"whispermap/internal/services/reconcile/domain"
	whispers "whispermap/internal/services/whispers/domain"
)

// MergeOptions tune a single merge pass
type MergeOptions struct {
	// Cap bounds the merged set; zero means unlimited. Truncation keeps
	// the newest entries
	Cap int

	// DefaultLifetime stands in for a missing ExpiresAt on cached
	// entries written by older clients
	DefaultLifetime time.Duration

	// HasLocation reports whether this cycle had real location context.
	// Without one, cached extras are trusted wholesale: the server set
	// was fetched blind and proves nothing about what is nearby
	HasLocation bool
}

// Merge reconciles the authoritative server set with the local cache.
// It is pure and deterministic: same inputs, same output, safe to rerun.
//
// The server copy wins on id conflict; the cached twin only contributes
// its Persistent mark. Cached entries the server did not return survive
// when they are still live and either persistent (our own recent
// creations) or fetched without location context. The union is sorted
// newest first and capped
func Merge(server []whispers.Whisper, cached []domain.CachedWhisper, now time.Time, opts MergeOptions) []domain.CachedWhisper {
	if opts.DefaultLifetime <= 0 {
		opts.DefaultLifetime = 7 * 24 * time.Hour
	}

	persistent := make(map[string]bool, len(cached))
	for _, c := range cached {
		if c.Persistent {
			persistent[c.ID] = true
		}
	}

	merged := make([]domain.CachedWhisper, 0, len(server)+len(cached))
	seen := make(map[string]struct{}, len(server))
	for _, w := range server {
		if _, dup := seen[w.ID]; dup {
			continue
		}
		seen[w.ID] = struct{}{}
		merged = append(merged, domain.CachedWhisper{Whisper: w, Persistent: persistent[w.ID]})
	}

	for _, c := range cached {
		if _, dup := seen[c.ID]; dup {
			continue
		}
		if !cachedLive(c, now, opts.DefaultLifetime) {
			continue
		}
		if !c.Persistent && opts.HasLocation {
			continue
		}
		seen[c.ID] = struct{}{}
		merged = append(merged, c)
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].CreatedAt.After(merged[j].CreatedAt)
	})

	if opts.Cap > 0 && len(merged) > opts.Cap {
		merged = merged[:opts.Cap]
	}
	return merged
}

// cachedLive applies the liveness rule to a cached entry, substituting
// CreatedAt+defaultLifetime when the entry carries no expiry
func cachedLive(c domain.CachedWhisper, now time.Time, defaultLifetime time.Duration) bool {
	exp := c.ExpiresAt
	if exp.IsZero() {
		if c.CreatedAt.IsZero() {
			return false
		}
		exp = c.CreatedAt.Add(defaultLifetime)
	}
	return now.Before(exp)
}
