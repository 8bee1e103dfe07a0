package cache

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"whispermap/internal/core/geo"
	perr "whispermap/internal/platform/errors"
	"whispermap/internal/services/reconcile/domain"
)

// File persists snapshots as JSON on disk, the localStorage analog
// writes go through a temp file and rename so a crash never leaves a
// torn snapshot
type File struct {
	mu   sync.Mutex
	path string
}

// fileState is the on-disk layout: one document carrying both the
// whisper snapshot and the last known location
type fileState struct {
	Snapshot domain.Snapshot `json:"snapshot"`
	Location *geo.Location   `json:"lastKnownLocation,omitempty"`
}

// NewFile constructs a file cache at path, creating parent dirs
func NewFile(path string) (*File, error) {
	if path == "" {
		return nil, perr.InvalidArgf("cache path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeUnavailable, "create cache dir")
	}
	return &File{path: path}, nil
}

// Load implements domain.Cache
// a missing or corrupt file reads as an empty snapshot; the cache is a
// resilience layer and must never block the flow it protects
func (f *File) Load(context.Context) (domain.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	st, _ := f.read()
	return st.Snapshot, nil
}

// Store implements domain.Cache
func (f *File) Store(_ context.Context, snap domain.Snapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	st, _ := f.read()
	st.Snapshot = snap
	return f.write(st)
}

// LoadLocation implements domain.Cache
func (f *File) LoadLocation(context.Context) (*geo.Location, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	st, _ := f.read()
	return st.Location, nil
}

// StoreLocation implements domain.Cache
func (f *File) StoreLocation(_ context.Context, loc geo.Location) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	st, _ := f.read()
	st.Location = &loc
	return f.write(st)
}

func (f *File) read() (fileState, error) {
	var st fileState
	data, err := os.ReadFile(f.path)
	if err != nil {
		return st, err
	}
	if err := json.Unmarshal(data, &st); err != nil {
		return fileState{}, err
	}
	return st, nil
}

func (f *File) write(st fileState) error {
	data, err := json.Marshal(st)
	if err != nil {
		return perr.Wrap(err, perr.ErrorCodeJSON, "encode cache")
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o640); err != nil {
		return perr.Wrap(err, perr.ErrorCodeUnavailable, "write cache")
	}
	if err := os.Rename(tmp, f.path); err != nil {
		_ = os.Remove(tmp)
		return perr.Wrap(err, perr.ErrorCodeUnavailable, "commit cache")
	}
	return nil
}
