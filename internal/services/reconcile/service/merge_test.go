package service

import (
	"reflect"
	"testing"
	"time"

	"whispermap/internal/services/reconcile/domain"
	whispers "whispermap/internal/services/whispers/domain"
)

var mergeNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func srv(id string, age time.Duration) whispers.Whisper {
	created := mergeNow.Add(-age)
	return whispers.Whisper{
		ID:        id,
		AudioURL:  "/audio/" + id + ".webm",
		CreatedAt: created,
		ExpiresAt: created.Add(7 * 24 * time.Hour),
	}
}

func cachedEntry(id string, age time.Duration, persistent bool) domain.CachedWhisper {
	return domain.CachedWhisper{Whisper: srv(id, age), Persistent: persistent}
}

func ids(ws []domain.CachedWhisper) []string {
	out := make([]string, len(ws))
	for i, w := range ws {
		out[i] = w.ID
	}
	return out
}

func TestMergeIsDeterministicAndIdempotent(t *testing.T) {
	t.Parallel()

	server := []whispers.Whisper{srv("a", time.Hour), srv("b", 2*time.Hour)}
	cached := []domain.CachedWhisper{cachedEntry("c", 30*time.Minute, true)}
	opts := MergeOptions{HasLocation: true}

	first := Merge(server, cached, mergeNow, opts)
	second := Merge(server, cached, mergeNow, opts)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("same inputs produced different outputs:\n%v\n%v", first, second)
	}

	again := Merge(server, first, mergeNow, opts)
	if !reflect.DeepEqual(first, again) {
		t.Fatalf("merge is not idempotent:\n%v\n%v", first, again)
	}
}

func TestMergeServerWinsOnConflict(t *testing.T) {
	t.Parallel()

	fresh := srv("a", time.Hour)
	fresh.Title = "server copy"
	stale := cachedEntry("a", time.Hour, true)
	stale.Title = "cached copy"

	got := Merge([]whispers.Whisper{fresh}, []domain.CachedWhisper{stale}, mergeNow, MergeOptions{HasLocation: true})
	if len(got) != 1 {
		t.Fatalf("expected 1 merged whisper, got %d", len(got))
	}
	if got[0].Title != "server copy" {
		t.Fatalf("server copy must win on id conflict, got %q", got[0].Title)
	}
	if !got[0].Persistent {
		t.Fatalf("persistent mark must carry over from the cached twin")
	}
}

func TestMergeCachedExtras(t *testing.T) {
	t.Parallel()

	server := []whispers.Whisper{srv("a", time.Hour)}
	cached := []domain.CachedWhisper{
		cachedEntry("own", 30*time.Minute, true),
		cachedEntry("stranger", 45*time.Minute, false),
	}

	got := Merge(server, cached, mergeNow, MergeOptions{HasLocation: true})
	if want := []string{"own", "a"}; !reflect.DeepEqual(ids(got), want) {
		t.Fatalf("expected %v, got %v", want, ids(got))
	}

	blind := Merge(server, cached, mergeNow, MergeOptions{HasLocation: false})
	if want := []string{"own", "stranger", "a"}; !reflect.DeepEqual(ids(blind), want) {
		t.Fatalf("without location context all live cached entries survive, got %v", ids(blind))
	}
}

func TestMergeDropsExpiredCachedEntries(t *testing.T) {
	t.Parallel()

	expired := cachedEntry("old", 8*24*time.Hour, true)
	got := Merge(nil, []domain.CachedWhisper{expired}, mergeNow, MergeOptions{HasLocation: true})
	if len(got) != 0 {
		t.Fatalf("expired cached entry survived merge: %v", ids(got))
	}
}

func TestMergeDefaultLifetimeRule(t *testing.T) {
	t.Parallel()

	fresh := cachedEntry("fresh", 6*24*time.Hour, true)
	fresh.ExpiresAt = time.Time{}
	stale := cachedEntry("stale", 8*24*time.Hour, true)
	stale.ExpiresAt = time.Time{}

	got := Merge(nil, []domain.CachedWhisper{fresh, stale}, mergeNow, MergeOptions{HasLocation: true})
	if want := []string{"fresh"}; !reflect.DeepEqual(ids(got), want) {
		t.Fatalf("seven-day default rule: expected %v, got %v", want, ids(got))
	}
}

func TestMergeSortsNewestFirstAndCaps(t *testing.T) {
	t.Parallel()

	server := []whispers.Whisper{srv("old", 3*time.Hour), srv("new", time.Hour), srv("mid", 2*time.Hour)}
	got := Merge(server, nil, mergeNow, MergeOptions{Cap: 2, HasLocation: true})
	if want := []string{"new", "mid"}; !reflect.DeepEqual(ids(got), want) {
		t.Fatalf("cap must keep the newest entries, got %v", ids(got))
	}
}

func TestMergeLeavesInputsUntouched(t *testing.T) {
	t.Parallel()

	server := []whispers.Whisper{srv("b", 2*time.Hour), srv("a", time.Hour)}
	cached := []domain.CachedWhisper{cachedEntry("c", 3*time.Hour, true)}
	serverCopy := append([]whispers.Whisper(nil), server...)
	cachedCopy := append([]domain.CachedWhisper(nil), cached...)

	Merge(server, cached, mergeNow, MergeOptions{Cap: 1, HasLocation: true})
	if !reflect.DeepEqual(server, serverCopy) || !reflect.DeepEqual(cached, cachedCopy) {
		t.Fatalf("merge mutated its inputs")
	}
}
