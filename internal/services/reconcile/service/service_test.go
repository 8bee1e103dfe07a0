package service

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"whispermap/internal/core/geo"
	perr "whispermap/internal/platform/errors"
	ptime "whispermap/internal/platform/time"
	"whispermap/internal/services/reconcile/cache"
	whispers "whispermap/internal/services/whispers/domain"
)

type fakeFetcher struct {
	calls   atomic.Int32
	lastPos atomic.Pointer[geo.Location]
	fetch   func(ctx context.Context, pos *geo.Location, radius float64) ([]whispers.Whisper, error)
}

func (f *fakeFetcher) Fetch(ctx context.Context, pos *geo.Location, radius float64) ([]whispers.Whisper, error) {
	f.calls.Add(1)
	f.lastPos.Store(pos)
	if f.fetch != nil {
		return f.fetch(ctx, pos, radius)
	}
	return []whispers.Whisper{}, nil
}

type fakeLocator struct {
	loc geo.Location
	err error
}

func (l fakeLocator) Locate(context.Context) (geo.Location, error) { return l.loc, l.err }

var testLoc = geo.Location{Lat: 40.7128, Lng: -74.0060}

func newTestReconciler(clock ptime.Clock) (*Reconciler, *fakeFetcher, *cache.Memory) {
	f := &fakeFetcher{}
	mem := cache.NewMemory()
	r := New(f, mem, fakeLocator{loc: testLoc}, Config{
		RadiusMeters:  1000,
		MinInterval:   0,
		SafetyTimeout: time.Minute,
		Cap:           20,
	}, clock, nil)
	return r, f, mem
}

func liveWhisper(id string, now time.Time) whispers.Whisper {
	return whispers.Whisper{
		ID:        id,
		AudioURL:  "/audio/" + id + ".webm",
		Location:  testLoc,
		CreatedAt: now.Add(-time.Hour),
		ExpiresAt: now.Add(6 * 24 * time.Hour),
	}
}

func TestRefreshMergesAndStoresSnapshot(t *testing.T) {
	t.Parallel()
	clock := &ptime.Fixed{T: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	r, f, mem := newTestReconciler(clock)
	f.fetch = func(context.Context, *geo.Location, float64) ([]whispers.Whisper, error) {
		return []whispers.Whisper{liveWhisper("w1", clock.Now())}, nil
	}

	snap, err := r.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if len(snap.Whispers) != 1 || snap.Whispers[0].ID != "w1" {
		t.Fatalf("unexpected snapshot: %+v", snap.Whispers)
	}
	if r.LastError() != nil {
		t.Fatalf("clean cycle must clear LastError, got %v", r.LastError())
	}

	stored, _ := mem.Load(context.Background())
	if len(stored.Whispers) != 1 || stored.Whispers[0].ID != "w1" {
		t.Fatalf("snapshot was not written back: %+v", stored.Whispers)
	}
	if got := f.lastPos.Load(); got == nil || got.Lat != testLoc.Lat {
		t.Fatalf("fetch did not receive the live position: %+v", got)
	}
}

func TestRefreshFallsBackToCacheOnFetchError(t *testing.T) {
	t.Parallel()
	clock := &ptime.Fixed{T: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	r, f, mem := newTestReconciler(clock)

	f.fetch = func(context.Context, *geo.Location, float64) ([]whispers.Whisper, error) {
		return []whispers.Whisper{liveWhisper("good", clock.Now())}, nil
	}
	if _, err := r.Refresh(context.Background()); err != nil {
		t.Fatalf("seed Refresh: %v", err)
	}

	f.fetch = func(context.Context, *geo.Location, float64) ([]whispers.Whisper, error) {
		return nil, perr.Unavailablef("server down")
	}
	snap, err := r.Refresh(context.Background())
	if err != nil {
		t.Fatalf("fetch failure must not surface as an error: %v", err)
	}
	if len(snap.Whispers) != 1 || snap.Whispers[0].ID != "good" {
		t.Fatalf("expected last good snapshot, got %+v", snap.Whispers)
	}
	if !perr.Retryable(r.LastError()) {
		t.Fatalf("transient failure must be recorded retryable, got %v", r.LastError())
	}

	stored, _ := mem.Load(context.Background())
	if len(stored.Whispers) != 1 {
		t.Fatalf("failed cycle must not clobber the cache: %+v", stored.Whispers)
	}
}

func TestRefreshCoalescesConcurrentTriggers(t *testing.T) {
	t.Parallel()
	clock := &ptime.Fixed{T: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	r, f, _ := newTestReconciler(clock)

	release := make(chan struct{})
	entered := make(chan struct{})
	f.fetch = func(context.Context, *geo.Location, float64) ([]whispers.Whisper, error) {
		close(entered)
		<-release
		return []whispers.Whisper{}, nil
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = r.Refresh(context.Background())
	}()
	<-entered

	if _, err := r.Refresh(context.Background()); err != nil {
		t.Fatalf("coalesced Refresh: %v", err)
	}
	if got := f.calls.Load(); got != 1 {
		t.Fatalf("concurrent trigger must coalesce, saw %d fetches", got)
	}

	close(release)
	<-done
}

func TestWedgedCycleCannotOverwriteNewerSnapshot(t *testing.T) {
	t.Parallel()
	clock := &ptime.Fixed{T: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	r, f, mem := newTestReconciler(clock)
	r.Cfg.SafetyTimeout = 20 * time.Millisecond

	stale := liveWhisper("stale", clock.Now())
	fresh := liveWhisper("fresh", clock.Now().Add(time.Minute))

	release := make(chan struct{})
	f.fetch = func(context.Context, *geo.Location, float64) ([]whispers.Whisper, error) {
		if f.calls.Load() == 1 {
			<-release
			return []whispers.Whisper{stale}, nil
		}
		return []whispers.Whisper{fresh}, nil
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = r.Refresh(context.Background())
	}()

	// wait for the safety timer to release the wedged cycle, then let a
	// second cycle complete with the fresh server set
	deadline := time.After(2 * time.Second)
	for f.calls.Load() < 2 {
		select {
		case <-deadline:
			t.Fatalf("second cycle never ran, saw %d fetches", f.calls.Load())
		case <-time.After(time.Millisecond):
		}
		_, _ = r.Refresh(context.Background())
	}

	close(release)
	<-done

	snap, _ := mem.Load(context.Background())
	if len(snap.Whispers) != 1 || snap.Whispers[0].ID != "fresh" {
		t.Fatalf("wedged cycle overwrote the newer snapshot: %+v", snap.Whispers)
	}
}

func TestRefreshHonorsMinInterval(t *testing.T) {
	t.Parallel()
	clock := &ptime.Fixed{T: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	r, f, _ := newTestReconciler(clock)
	r.Cfg.MinInterval = 30 * time.Second

	if _, err := r.Refresh(context.Background()); err != nil {
		t.Fatalf("first Refresh: %v", err)
	}
	clock.Advance(5 * time.Second)
	if _, err := r.Refresh(context.Background()); err != nil {
		t.Fatalf("rate-limited Refresh: %v", err)
	}
	if got := f.calls.Load(); got != 1 {
		t.Fatalf("expected rate limit to suppress the second fetch, saw %d", got)
	}

	clock.Advance(time.Minute)
	if _, err := r.Refresh(context.Background()); err != nil {
		t.Fatalf("third Refresh: %v", err)
	}
	if got := f.calls.Load(); got != 2 {
		t.Fatalf("interval elapsed, fetch should run again, saw %d", got)
	}
}

func TestRefreshSuppressedDuringPlayback(t *testing.T) {
	t.Parallel()
	clock := &ptime.Fixed{T: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	r, f, _ := newTestReconciler(clock)

	r.SetPlayback(true)
	if _, err := r.Refresh(context.Background()); err != nil {
		t.Fatalf("suppressed Refresh: %v", err)
	}
	if got := f.calls.Load(); got != 0 {
		t.Fatalf("playback must suppress fetching, saw %d fetches", got)
	}

	r.SetPlayback(false)
	if _, err := r.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh after playback: %v", err)
	}
	if got := f.calls.Load(); got != 1 {
		t.Fatalf("expected fetch once playback ended, saw %d", got)
	}
}

func TestRefreshUsesLastKnownLocationWhenLocatorFails(t *testing.T) {
	t.Parallel()
	clock := &ptime.Fixed{T: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	r, f, mem := newTestReconciler(clock)
	r.Locator = fakeLocator{err: perr.Unavailablef("position unavailable")}

	if err := mem.StoreLocation(context.Background(), testLoc); err != nil {
		t.Fatalf("StoreLocation: %v", err)
	}
	if _, err := r.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if got := f.lastPos.Load(); got == nil || got.Lat != testLoc.Lat || got.Lng != testLoc.Lng {
		t.Fatalf("expected fetch at last known location, got %+v", got)
	}
	if r.LastError() == nil {
		t.Fatalf("geolocation failure should leave a notice")
	}
}

func TestRefreshWithoutAnyLocationServesCache(t *testing.T) {
	t.Parallel()
	clock := &ptime.Fixed{T: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	r, f, mem := newTestReconciler(clock)
	r.Locator = fakeLocator{err: perr.Unavailablef("permission denied")}

	seed := liveWhisper("cached", clock.Now())
	if err := r.NoteCreated(context.Background(), seed); err != nil {
		t.Fatalf("NoteCreated: %v", err)
	}

	snap, err := r.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if got := f.calls.Load(); got != 0 {
		t.Fatalf("no location anywhere, fetch must not run, saw %d", got)
	}
	if len(snap.Whispers) != 1 || snap.Whispers[0].ID != "cached" {
		t.Fatalf("expected cached view, got %+v", snap.Whispers)
	}

	stored, _ := mem.Load(context.Background())
	if !stored.Whispers[0].Persistent {
		t.Fatalf("own creation must be cached persistent")
	}
}

func TestNoteCreatedSurvivesMerge(t *testing.T) {
	t.Parallel()
	clock := &ptime.Fixed{T: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	r, f, _ := newTestReconciler(clock)

	own := liveWhisper("mine", clock.Now())
	if err := r.NoteCreated(context.Background(), own); err != nil {
		t.Fatalf("NoteCreated: %v", err)
	}

	// server has not caught up yet and returns an unrelated set
	f.fetch = func(context.Context, *geo.Location, float64) ([]whispers.Whisper, error) {
		return []whispers.Whisper{liveWhisper("other", clock.Now())}, nil
	}
	snap, err := r.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	found := false
	for _, w := range snap.Whispers {
		if w.ID == "mine" && w.Persistent {
			found = true
		}
	}
	if !found {
		t.Fatalf("own creation dropped by merge: %+v", snap.Whispers)
	}
}
