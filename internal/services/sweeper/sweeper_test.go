package sweeper

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	perr "whispermap/internal/platform/errors"
)

type countingSweep struct {
	calls atomic.Int32
	err   error
}

func (s *countingSweep) PurgeExpired(context.Context) (int, error) {
	s.calls.Add(1)
	if s.err != nil {
		return 0, s.err
	}
	return 3, nil
}

func TestOnceReturnsPurgeCount(t *testing.T) {
	t.Parallel()
	s := &countingSweep{}
	w := New(s, Config{}, nil)

	n, err := w.Once(context.Background())
	if err != nil {
		t.Fatalf("Once: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 purged, got %d", n)
	}
}

func TestOnceSurfacesStoreError(t *testing.T) {
	t.Parallel()
	s := &countingSweep{err: perr.Unavailablef("db down")}
	w := New(s, Config{}, nil)

	if _, err := w.Once(context.Background()); !perr.Retryable(err) {
		t.Fatalf("expected retryable error, got %v", err)
	}
}

func TestRunSweepsOnTickerUntilCancelled(t *testing.T) {
	t.Parallel()
	s := &countingSweep{}
	w := New(s, Config{Interval: 5 * time.Millisecond}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	deadline := time.After(2 * time.Second)
	for s.calls.Load() < 3 {
		select {
		case <-deadline:
			t.Fatalf("expected at least 3 sweeps, saw %d", s.calls.Load())
		case <-time.After(time.Millisecond):
		}
	}
	cancel()

	if err := <-done; err != context.Canceled {
		t.Fatalf("Run should return ctx error, got %v", err)
	}
}
