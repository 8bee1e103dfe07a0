package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"whispermap/internal/core/geo"
	perr "whispermap/internal/platform/errors"
	"whispermap/internal/platform/logger"
	"whispermap/internal/platform/msg"
	ptime "whispermap/internal/platform/time"
	"whispermap/internal/services/whispers/domain"
	"whispermap/internal/services/whispers/repo"
)

// recordingBus captures publishes for assertions
type recordingBus struct {
	subjects []string
	payloads [][]byte
}

func (b *recordingBus) Publish(subject string, data []byte) error {
	b.subjects = append(b.subjects, subject)
	b.payloads = append(b.payloads, data)
	return nil
}

func (b *recordingBus) Subscribe(string, func(string, []byte)) (msg.Subscription, error) {
	return nil, nil
}

func (b *recordingBus) Close() {}

func newTestService(clock ptime.Clock) (*Service, *repo.Memory, *recordingBus) {
	mem := repo.NewMemory()
	bus := &recordingBus{}
	svc := New(repo.MemoryDB(), repo.MemoryBinder(mem), Config{}, clock, nil, *logger.Named("whispers-test"))
	svc.Bus = bus
	return svc, mem, bus
}

func fixedClock() *ptime.Fixed {
	return &ptime.Fixed{T: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

var nyc = geo.Location{Lat: 40.7128, Lng: -74.0060}

func mkInput() domain.CreateInput {
	return domain.CreateInput{
		Location: nyc,
		AudioURL: "/audio/abc.webm",
		Category: domain.CategoryStory,
		Title:    "  late night   subway busker ",
		OwnerID:  "user-1",
	}
}

func TestInsertAssignsIDAndExpiry(t *testing.T) {
	t.Parallel()
	clock := fixedClock()
	svc, _, _ := newTestService(clock)

	w, err := svc.Insert(context.Background(), mkInput())
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if w.ID == "" {
		t.Fatalf("expected an assigned id")
	}
	wantExp := clock.T.Add(7 * 24 * time.Hour)
	if !w.ExpiresAt.Equal(wantExp) {
		t.Fatalf("ExpiresAt = %v, want %v (7 day default)", w.ExpiresAt, wantExp)
	}
	if !w.ExpiresAt.After(w.CreatedAt) {
		t.Fatalf("expiresAt must be after createdAt")
	}
	if w.Title != "late night subway busker" {
		t.Fatalf("title not normalized: %q", w.Title)
	}
}

func TestInsertRejectsMissingAudio(t *testing.T) {
	t.Parallel()
	svc, _, _ := newTestService(fixedClock())

	in := mkInput()
	in.AudioURL = ""
	_, err := svc.Insert(context.Background(), in)
	if !perr.IsCode(err, perr.ErrorCodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestInsertRejectsBadCoordinates(t *testing.T) {
	t.Parallel()
	svc, _, _ := newTestService(fixedClock())

	in := mkInput()
	in.Location = geo.Location{Lat: 91, Lng: 0}
	if _, err := svc.Insert(context.Background(), in); !perr.IsCode(err, perr.ErrorCodeValidation) {
		t.Fatalf("expected validation error for lat 91, got %v", err)
	}

	in.Location = geo.Location{Lat: 0, Lng: -181}
	if _, err := svc.Insert(context.Background(), in); !perr.IsCode(err, perr.ErrorCodeValidation) {
		t.Fatalf("expected validation error for lng -181, got %v", err)
	}
}

func TestInsertClampsLifetimeByTier(t *testing.T) {
	t.Parallel()
	clock := fixedClock()
	svc, _, _ := newTestService(clock)

	in := mkInput()
	in.LifetimeDays = 30
	w, err := svc.Insert(context.Background(), in)
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if got := w.ExpiresAt.Sub(w.CreatedAt); got != 7*24*time.Hour {
		t.Fatalf("standard tier must clamp to 7 days, got %v", got)
	}

	in.Premium = true
	w, err = svc.Insert(context.Background(), in)
	if err != nil {
		t.Fatalf("Insert premium: %v", err)
	}
	if got := w.ExpiresAt.Sub(w.CreatedAt); got != 30*24*time.Hour {
		t.Fatalf("premium 30 days should stand, got %v", got)
	}

	in.LifetimeDays = 365
	w, err = svc.Insert(context.Background(), in)
	if err != nil {
		t.Fatalf("Insert premium 365: %v", err)
	}
	if got := w.ExpiresAt.Sub(w.CreatedAt); got != 90*24*time.Hour {
		t.Fatalf("premium tier must clamp to 90 days, got %v", got)
	}
}

func TestInsertPublishesCreatedEvent(t *testing.T) {
	t.Parallel()
	svc, _, bus := newTestService(fixedClock())

	w, err := svc.Insert(context.Background(), mkInput())
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if len(bus.subjects) != 1 || bus.subjects[0] != domain.SubjectWhisperCreated {
		t.Fatalf("expected one publish on %s, got %v", domain.SubjectWhisperCreated, bus.subjects)
	}
	var ev domain.CreatedEvent
	if err := json.Unmarshal(bus.payloads[0], &ev); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	if ev.ID != w.ID {
		t.Fatalf("event id %s, want %s", ev.ID, w.ID)
	}
}

func TestQueryWindowNewestFirst(t *testing.T) {
	t.Parallel()
	clock := fixedClock()
	svc, _, _ := newTestService(clock)

	first, _ := svc.Insert(context.Background(), mkInput())
	clock.Advance(time.Minute)
	second, _ := svc.Insert(context.Background(), mkInput())

	got, err := svc.QueryWindow(context.Background(), domain.WindowQuery{Center: nyc, RadiusMeters: 1000})
	if err != nil {
		t.Fatalf("QueryWindow: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 whispers, got %d", len(got))
	}
	if got[0].ID != second.ID || got[1].ID != first.ID {
		t.Fatalf("expected newest first ordering")
	}
}

func TestQueryWindowExcludesExpired(t *testing.T) {
	t.Parallel()
	clock := fixedClock()
	svc, _, _ := newTestService(clock)

	if _, err := svc.Insert(context.Background(), mkInput()); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	clock.Advance(8 * 24 * time.Hour)
	got, err := svc.QueryWindow(context.Background(), domain.WindowQuery{Center: nyc, RadiusMeters: 1000})
	if err != nil {
		t.Fatalf("QueryWindow: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expired whisper leaked into results: %v", got)
	}
}

func TestQueryWindowHonorsMaxAge(t *testing.T) {
	t.Parallel()
	clock := fixedClock()
	svc, _, _ := newTestService(clock)

	if _, err := svc.Insert(context.Background(), mkInput()); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	clock.Advance(3 * time.Hour)
	fresh, _ := svc.Insert(context.Background(), mkInput())

	got, err := svc.QueryWindow(context.Background(), domain.WindowQuery{
		Center:       nyc,
		RadiusMeters: 1000,
		MaxAge:       time.Hour,
	})
	if err != nil {
		t.Fatalf("QueryWindow: %v", err)
	}
	if len(got) != 1 || got[0].ID != fresh.ID {
		t.Fatalf("expected only the fresh whisper, got %d", len(got))
	}
}

func TestQueryWindowPrefiltersByBox(t *testing.T) {
	t.Parallel()
	clock := fixedClock()
	svc, _, _ := newTestService(clock)

	near := mkInput()
	far := mkInput()
	far.Location = geo.Location{Lat: 40.7300, Lng: -74.0200} // ~2km away
	if _, err := svc.Insert(context.Background(), near); err != nil {
		t.Fatalf("Insert near: %v", err)
	}
	if _, err := svc.Insert(context.Background(), far); err != nil {
		t.Fatalf("Insert far: %v", err)
	}

	got, err := svc.QueryWindow(context.Background(), domain.WindowQuery{Center: nyc, RadiusMeters: 1000})
	if err != nil {
		t.Fatalf("QueryWindow: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("box prefilter should drop the distant whisper, got %d", len(got))
	}
}

func TestFindByIDExpiredReadsAsNotFound(t *testing.T) {
	t.Parallel()
	clock := fixedClock()
	svc, _, _ := newTestService(clock)

	w, _ := svc.Insert(context.Background(), mkInput())

	if _, err := svc.FindByID(context.Background(), w.ID); err != nil {
		t.Fatalf("live whisper should be found: %v", err)
	}

	clock.Advance(8 * 24 * time.Hour)
	_, err := svc.FindByID(context.Background(), w.ID)
	if !perr.IsCode(err, perr.ErrorCodeNotFound) {
		t.Fatalf("expired whisper must read as not found, got %v", err)
	}
}

func TestByUserExcludesAnonymous(t *testing.T) {
	t.Parallel()
	svc, _, _ := newTestService(fixedClock())

	open := mkInput()
	anon := mkInput()
	anon.IsAnonymous = true
	if _, err := svc.Insert(context.Background(), open); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if _, err := svc.Insert(context.Background(), anon); err != nil {
		t.Fatalf("Insert anon: %v", err)
	}

	got, err := svc.ByUser(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("ByUser: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("anonymous whisper must not appear under its owner, got %d", len(got))
	}
}

func TestAppendReplyToLiveWhisper(t *testing.T) {
	t.Parallel()
	svc, _, _ := newTestService(fixedClock())

	w, _ := svc.Insert(context.Background(), mkInput())
	r, err := svc.AppendReply(context.Background(), w.ID, domain.ReplyInput{
		AudioURL: "/audio/reply.webm",
		OwnerID:  "user-2",
	})
	if err != nil {
		t.Fatalf("AppendReply: %v", err)
	}
	if r.ID == "" || r.WhisperID != w.ID {
		t.Fatalf("reply not linked to parent: %+v", r)
	}

	got, err := svc.FindByID(context.Background(), w.ID)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if len(got.Replies) != 1 || got.Replies[0].ID != r.ID {
		t.Fatalf("reply missing from parent read")
	}
}

func TestAppendReplyToExpiredWhisperFails(t *testing.T) {
	t.Parallel()
	clock := fixedClock()
	svc, _, _ := newTestService(clock)

	w, _ := svc.Insert(context.Background(), mkInput())
	clock.Advance(8 * 24 * time.Hour)

	_, err := svc.AppendReply(context.Background(), w.ID, domain.ReplyInput{AudioURL: "/audio/r.webm"})
	if !perr.IsCode(err, perr.ErrorCodeNotFound) {
		t.Fatalf("expected not found for expired parent, got %v", err)
	}
}

func TestPurgeExpiredCountsAndRemoves(t *testing.T) {
	t.Parallel()
	clock := fixedClock()
	svc, mem, _ := newTestService(clock)

	if _, err := svc.Insert(context.Background(), mkInput()); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	clock.Advance(6 * 24 * time.Hour)
	if _, err := svc.Insert(context.Background(), mkInput()); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	// first whisper is now past its 7 day lifetime, second is not
	clock.Advance(2 * 24 * time.Hour)
	n, err := svc.PurgeExpired(context.Background())
	if err != nil {
		t.Fatalf("PurgeExpired: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 purge, got %d", n)
	}
	if mem.Len() != 1 {
		t.Fatalf("expected 1 whisper left, got %d", mem.Len())
	}
}
