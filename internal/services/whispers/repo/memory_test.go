package repo

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"whispermap/internal/core/geo"
	perr "whispermap/internal/platform/errors"
	"whispermap/internal/services/whispers/domain"
)

func mkWhisper(id string, created time.Time, loc geo.Location) domain.Whisper {
	return domain.Whisper{
		ID:        id,
		AudioURL:  "/audio/" + id + ".webm",
		Location:  loc,
		Category:  domain.CategoryGeneral,
		CreatedAt: created,
		ExpiresAt: created.Add(7 * 24 * time.Hour),
		OwnerID:   "owner-" + id,
	}
}

func TestMemoryWindowFiltersBoxAndLiveness(t *testing.T) {
	t.Parallel()
	m := NewMemory()
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	center := geo.Location{Lat: 40.7128, Lng: -74.0060}

	inside := mkWhisper("a", now.Add(-time.Hour), center)
	outside := mkWhisper("b", now.Add(-time.Hour), geo.Location{Lat: 41.5, Lng: -74.0})
	expired := mkWhisper("c", now.Add(-8*24*time.Hour), center)

	for _, w := range []domain.Whisper{inside, outside, expired} {
		if err := m.Insert(ctx, w); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}

	box := geo.BoundingBox(center, 1000)
	got, err := m.Window(ctx, box, time.Time{}, now)
	if err != nil {
		t.Fatalf("Window: %v", err)
	}
	if len(got) != 1 || got[0].ID != "a" {
		t.Fatalf("expected only whisper a, got %v", got)
	}
}

func TestMemoryWindowSortsNewestFirst(t *testing.T) {
	t.Parallel()
	m := NewMemory()
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	center := geo.Location{Lat: 10, Lng: 10}

	// inserted out of creation order on purpose
	_ = m.Insert(ctx, mkWhisper("old", now.Add(-3*time.Hour), center))
	_ = m.Insert(ctx, mkWhisper("newest", now.Add(-time.Minute), center))
	_ = m.Insert(ctx, mkWhisper("mid", now.Add(-time.Hour), center))

	got, err := m.Window(ctx, geo.BoundingBox(center, 500), time.Time{}, now)
	if err != nil {
		t.Fatalf("Window: %v", err)
	}
	want := []string{"newest", "mid", "old"}
	for i, id := range want {
		if got[i].ID != id {
			t.Fatalf("position %d = %s, want %s", i, got[i].ID, id)
		}
	}
}

func TestMemoryFindByIDCopiesReplies(t *testing.T) {
	t.Parallel()
	m := NewMemory()
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	w := mkWhisper("a", now, geo.Location{Lat: 1, Lng: 1})
	_ = m.Insert(ctx, w)
	if err := m.AppendReply(ctx, domain.Reply{ID: "r1", WhisperID: "a", AudioURL: "/audio/r1.webm", CreatedAt: now}); err != nil {
		t.Fatalf("AppendReply: %v", err)
	}

	got, err := m.FindByID(ctx, "a")
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	got.Replies[0].ID = "mutated"

	again, _ := m.FindByID(ctx, "a")
	if again.Replies[0].ID != "r1" {
		t.Fatalf("caller mutation leaked into the store")
	}
}

func TestMemoryAppendReplyMissingParent(t *testing.T) {
	t.Parallel()
	m := NewMemory()
	err := m.AppendReply(context.Background(), domain.Reply{ID: "r", WhisperID: "ghost"})
	if !perr.IsCode(err, perr.ErrorCodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestMemoryPurgeExpired(t *testing.T) {
	t.Parallel()
	m := NewMemory()
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	loc := geo.Location{Lat: 5, Lng: 5}

	_ = m.Insert(ctx, mkWhisper("live", now.Add(-time.Hour), loc))
	_ = m.Insert(ctx, mkWhisper("dead1", now.Add(-9*24*time.Hour), loc))
	_ = m.Insert(ctx, mkWhisper("dead2", now.Add(-8*24*time.Hour), loc))

	n, err := m.PurgeExpired(ctx, now)
	if err != nil {
		t.Fatalf("PurgeExpired: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 purged, got %d", n)
	}
	if m.Len() != 1 {
		t.Fatalf("expected 1 left, got %d", m.Len())
	}
}

func TestMemoryConcurrentInsertAndPurge(t *testing.T) {
	t.Parallel()
	m := NewMemory()
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	loc := geo.Location{Lat: 5, Lng: 5}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			_ = m.Insert(ctx, mkWhisper(fmt.Sprintf("w%d", i), now, loc))
		}(i)
		go func() {
			defer wg.Done()
			_, _ = m.PurgeExpired(ctx, now)
		}()
	}
	wg.Wait()

	// nothing inserted here ever expires at now, so no insert may be lost
	if m.Len() != 50 {
		t.Fatalf("lost inserts during concurrent purge: %d", m.Len())
	}
}
