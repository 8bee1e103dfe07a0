package repo

import (
	"context"
	"sort"
	"sync"
	"time"

	"whispermap/internal/core/geo"
	"whispermap/internal/modkit/repokit"
	perr "whispermap/internal/platform/errors"
	"whispermap/internal/services/whispers/domain"
)

// Memory is the volatile in-process store: a mutex-guarded slice held
// newest first. Process restart clears it; the client reconciliation
// layer is the resilience story, not this repo
type Memory struct {
	mu       sync.Mutex
	whispers []domain.Whisper
}

// NewMemory constructs an empty in-memory store
func NewMemory() *Memory { return &Memory{} }

// MemoryBinder adapts a Memory store to the binder shape so services
// can stay agnostic about which backend they got
func MemoryBinder(m *Memory) repokit.Binder[Storage] {
	return repokit.BindFunc[Storage](func(repokit.Queryer) Storage { return m })
}

// MemoryDB returns a TxRunner whose transactions are just the mutex
// already inside Memory; the queryer it hands out refuses SQL
func MemoryDB() repokit.TxRunner { return memTx{} }

// Insert implements Storage
func (m *Memory) Insert(_ context.Context, w domain.Whisper) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	// newest first
	m.whispers = append([]domain.Whisper{w}, m.whispers...)
	return nil
}

// Window implements Storage
func (m *Memory) Window(_ context.Context, box geo.BBox, since, now time.Time) ([]domain.Whisper, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []domain.Whisper
	for _, w := range m.whispers {
		if !w.Live(now) {
			continue
		}
		if !since.IsZero() && w.CreatedAt.Before(since) {
			continue
		}
		if !box.Contains(w.Location) {
			continue
		}
		out = append(out, cloneWhisper(w))
	}
	// slice is kept newest first, but createdAt may disagree with insert
	// order when callers backdate in tests; sort to match the pg repo
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// FindByID implements Storage
func (m *Memory) FindByID(_ context.Context, id string) (domain.Whisper, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, w := range m.whispers {
		if w.ID == id {
			return cloneWhisper(w), nil
		}
	}
	return domain.Whisper{}, perr.NotFoundf("whisper %s not found", id)
}

// ByOwner implements Storage
func (m *Memory) ByOwner(_ context.Context, ownerID string) ([]domain.Whisper, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Whisper
	for _, w := range m.whispers {
		if w.OwnerID == ownerID && !w.IsAnonymous {
			out = append(out, cloneWhisper(w))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// AppendReply implements Storage
func (m *Memory) AppendReply(_ context.Context, r domain.Reply) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.whispers {
		if m.whispers[i].ID == r.WhisperID {
			m.whispers[i].Replies = append(m.whispers[i].Replies, r)
			return nil
		}
	}
	return perr.NotFoundf("whisper %s not found", r.WhisperID)
}

// PurgeExpired implements Storage
func (m *Memory) PurgeExpired(_ context.Context, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.whispers[:0]
	purged := 0
	for _, w := range m.whispers {
		if w.Live(now) {
			kept = append(kept, w)
		} else {
			purged++
		}
	}
	m.whispers = kept
	return purged, nil
}

// Len reports the current whisper count, handy in tests
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.whispers)
}

func cloneWhisper(w domain.Whisper) domain.Whisper {
	if w.Replies != nil {
		w.Replies = append([]domain.Reply(nil), w.Replies...)
	}
	return w
}

// memTx satisfies repokit.TxRunner for the memory backend
// Memory does its own locking, so Tx just runs fn
type memTx struct{}

func (memTx) Tx(_ context.Context, fn func(q repokit.Queryer) error) error { return fn(memTx{}) }

func (memTx) Exec(context.Context, string, ...any) (repokit.CommandTag, error) {
	return nil, perr.Unavailablef("sql disabled: memory store")
}

func (memTx) Query(context.Context, string, ...any) (repokit.Rows, error) {
	return nil, perr.Unavailablef("sql disabled: memory store")
}

func (memTx) QueryRow(context.Context, string, ...any) repokit.Row { return errRow{} }

type errRow struct{}

func (errRow) Scan(...any) error { return perr.Unavailablef("sql disabled: memory store") }
