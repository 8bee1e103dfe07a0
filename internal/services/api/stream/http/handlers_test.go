package http

import (
	"encoding/json"
	"testing"
	"time"

	"whispermap/internal/core/geo"
	"whispermap/internal/platform/logger"
	whispers "whispermap/internal/services/whispers/domain"
)

var streamCenter = geo.Location{Lat: 40.7128, Lng: -74.0060}

func newTestClient() *client {
	return &client{
		send:   make(chan []byte, 2),
		done:   make(chan struct{}),
		center: streamCenter,
		radius: 1000,
		log:    *logger.Named("stream-test"),
	}
}

func createdEvent(t *testing.T, loc geo.Location) []byte {
	t.Helper()
	data, err := json.Marshal(whispers.CreatedEvent{
		ID:        "w1",
		Location:  loc,
		CreatedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		ExpiresAt: time.Date(2026, 3, 8, 12, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	return data
}

func TestOnCreatedFiltersByRadius(t *testing.T) {
	t.Parallel()
	c := newTestClient()

	// ~88m away: inside the circle
	c.onCreated(whispers.SubjectWhisperCreated, createdEvent(t, geo.Location{Lat: 40.7128, Lng: -74.0050}))
	// ~2.2km away: outside
	c.onCreated(whispers.SubjectWhisperCreated, createdEvent(t, geo.Location{Lat: 40.7328, Lng: -74.0060}))

	if got := len(c.send); got != 1 {
		t.Fatalf("expected exactly the nearby event queued, got %d", got)
	}
}

func TestOnCreatedAfterTeardownDoesNotPanic(t *testing.T) {
	t.Parallel()
	c := newTestClient()
	close(c.done)

	// a bus callback can still be mid-dispatch when the consumer goes
	// away; late events must drop silently, never panic the dispatcher
	ev := createdEvent(t, streamCenter)
	for i := 0; i < 10; i++ {
		c.onCreated(whispers.SubjectWhisperCreated, ev)
	}
}

func TestOnCreatedDropsWhenBufferFull(t *testing.T) {
	t.Parallel()
	c := newTestClient()

	ev := createdEvent(t, streamCenter)
	for i := 0; i < 10; i++ {
		c.onCreated(whispers.SubjectWhisperCreated, ev)
	}
	if got := len(c.send); got != cap(c.send) {
		t.Fatalf("slow consumer must drop, not block: queued %d", got)
	}
}

func TestOnCreatedIgnoresMalformedEvents(t *testing.T) {
	t.Parallel()
	c := newTestClient()

	c.onCreated(whispers.SubjectWhisperCreated, []byte("{not json"))
	if got := len(c.send); got != 0 {
		t.Fatalf("malformed event must not queue, got %d", got)
	}
}
