package service

import (
	"context"
	"testing"
	"time"

	"whispermap/internal/core/geo"
	"whispermap/internal/platform/logger"
	ptime "whispermap/internal/platform/time"
	"whispermap/internal/services/discovery/domain"
	whispers "whispermap/internal/services/whispers/domain"
)

// fakeReader serves a fixed candidate set and records the last query
type fakeReader struct {
	rows  []whispers.Whisper
	err   error
	lastQ whispers.WindowQuery
}

func (f *fakeReader) QueryWindow(_ context.Context, q whispers.WindowQuery) ([]whispers.Whisper, error) {
	f.lastQ = q
	return f.rows, f.err
}

func (f *fakeReader) FindByID(context.Context, string) (whispers.Whisper, error) {
	return whispers.Whisper{}, nil
}

func (f *fakeReader) ByUser(context.Context, string) ([]whispers.Whisper, error) {
	return nil, nil
}

var user = geo.Location{Lat: 40.7128, Lng: -74.0060}

func at(loc geo.Location, id string, created time.Time) whispers.Whisper {
	return whispers.Whisper{
		ID:        id,
		Location:  loc,
		CreatedAt: created,
		ExpiresAt: created.Add(7 * 24 * time.Hour),
	}
}

func newEngine(rows []whispers.Whisper, cfg Config) (*Service, *fakeReader) {
	r := &fakeReader{rows: rows}
	clock := &ptime.Fixed{T: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	return New(r, nil, cfg, clock, *logger.Named("discovery-test")), r
}

func TestDiscoverNilLocationAnswersEmpty(t *testing.T) {
	t.Parallel()
	svc, _ := newEngine([]whispers.Whisper{at(user, "a", time.Now())}, Config{})

	got, err := svc.Discover(context.Background(), domain.Query{DetectionRadiusMeters: 1000})
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Fatalf("no location must answer empty, not nil and not guessed: %v", got)
	}
}

func TestDiscoverIncludesNearbyWhisper(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 3, 1, 11, 0, 0, 0, time.UTC)
	near := at(geo.Location{Lat: 40.7135, Lng: -74.0065}, "near", now) // ~88m
	svc, _ := newEngine([]whispers.Whisper{near}, Config{})

	got, err := svc.Discover(context.Background(), domain.Query{
		Location:              &user,
		DetectionRadiusMeters: 1000,
	})
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(got) != 1 || got[0].ID != "near" {
		t.Fatalf("nearby whisper missing: %v", got)
	}
}

func TestDiscoverExcludesWhisperOutsideRadius(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 3, 1, 11, 0, 0, 0, time.UTC)
	far := at(geo.Location{Lat: 40.7300, Lng: -74.0200}, "far", now) // ~2km
	svc, _ := newEngine([]whispers.Whisper{far}, Config{})

	got, err := svc.Discover(context.Background(), domain.Query{
		Location:              &user,
		DetectionRadiusMeters: 1000,
	})
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("distant whisper leaked in: %v", got)
	}
}

func TestFilterByRadiusBoundaryIncluded(t *testing.T) {
	t.Parallel()
	svc, _ := newEngine(nil, Config{})

	w := at(geo.Location{Lat: 0, Lng: 1}, "edge", time.Now())
	d := geo.HaversineMeters(geo.Location{Lat: 0, Lng: 0}, w.Location)

	got := svc.FilterByRadius(geo.Location{Lat: 0, Lng: 0}, []whispers.Whisper{w}, d)
	if len(got) != 1 {
		t.Fatalf("whisper exactly at the radius must be included")
	}
}

func TestFilterByRadiusEnforcesWhisperRadiusWhenEnabled(t *testing.T) {
	t.Parallel()
	// whisper ~88m away broadcasting only 50m
	w := at(geo.Location{Lat: 40.7135, Lng: -74.0065}, "shy", time.Now())
	w.RadiusMeters = 50

	off, _ := newEngine(nil, Config{})
	if got := off.FilterByRadius(user, []whispers.Whisper{w}, 1000); len(got) != 1 {
		t.Fatalf("default behavior checks only the searcher radius")
	}

	on, _ := newEngine(nil, Config{EnforceWhisperRadius: true})
	if got := on.FilterByRadius(user, []whispers.Whisper{w}, 1000); len(got) != 0 {
		t.Fatalf("enforced mode must cap visibility at the whisper radius")
	}
}

func TestRankAndLimitNewestFirstKeepNewest(t *testing.T) {
	t.Parallel()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	in := []whispers.Whisper{
		at(user, "old", base),
		at(user, "newest", base.Add(2*time.Hour)),
		at(user, "mid", base.Add(time.Hour)),
	}

	got := RankAndLimit(in, 2)
	if len(got) != 2 {
		t.Fatalf("expected truncation to 2, got %d", len(got))
	}
	if got[0].ID != "newest" || got[1].ID != "mid" {
		t.Fatalf("truncation must keep the newest, got %s %s", got[0].ID, got[1].ID)
	}
	// input untouched
	if in[0].ID != "old" {
		t.Fatalf("RankAndLimit must not reorder its input")
	}
}

func TestRankAndLimitStableForEqualTimestamps(t *testing.T) {
	t.Parallel()
	ts := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	in := []whispers.Whisper{at(user, "a", ts), at(user, "b", ts), at(user, "c", ts)}

	got := RankAndLimit(in, 0)
	if got[0].ID != "a" || got[1].ID != "b" || got[2].ID != "c" {
		t.Fatalf("equal timestamps must keep incoming order: %v", got)
	}
}

func TestDiscoverPassesWindowToReader(t *testing.T) {
	t.Parallel()
	svc, reader := newEngine(nil, Config{DefaultMaxAge: 12 * time.Hour})

	_, err := svc.Discover(context.Background(), domain.Query{
		Location:              &user,
		DetectionRadiusMeters: 2500,
	})
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if reader.lastQ.RadiusMeters != 2500 {
		t.Fatalf("radius not forwarded: %v", reader.lastQ.RadiusMeters)
	}
	if reader.lastQ.MaxAge != 12*time.Hour {
		t.Fatalf("default max age not applied: %v", reader.lastQ.MaxAge)
	}
}
