// Package blob stores whisper audio payloads and hands back durable URLs
// the object store collaborator is opaque to the core; this local-disk
// implementation is enough for single-node deployments and tests
package blob

import (
	"context"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	perr "whispermap/internal/platform/errors"

	"github.com/google/uuid"
)

// Store persists an audio payload and returns its public URL.
// Remove takes back a URL Save issued, so a payload saved ahead of a
// rejected create does not linger
type Store interface {
	Save(ctx context.Context, filename string, r io.Reader) (url string, err error)
	Remove(ctx context.Context, url string) error
}

// FS writes payloads under Dir and serves them under BaseURL
type FS struct {
	Dir     string
	BaseURL string
}

// NewFS constructs a disk-backed audio store
func NewFS(dir, baseURL string) (*FS, error) {
	if dir == "" {
		return nil, perr.InvalidArgf("audio dir is required")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeUnavailable, "create audio dir")
	}
	if baseURL == "" {
		baseURL = "/audio"
	}
	return &FS{Dir: dir, BaseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Save implements Store
// the stored name is a fresh uuid plus the caller's extension; caller
// names never touch the filesystem
func (s *FS) Save(ctx context.Context, filename string, r io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	name := uuid.NewString() + safeExt(filename)
	dst := filepath.Join(s.Dir, name)

	f, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640)
	if err != nil {
		return "", perr.Wrap(err, perr.ErrorCodeUnavailable, "create audio file")
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = os.Remove(dst)
		return "", perr.Wrap(err, perr.ErrorCodeUnavailable, "write audio file")
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(dst)
		return "", perr.Wrap(err, perr.ErrorCodeUnavailable, "close audio file")
	}

	return s.BaseURL + "/" + name, nil
}

// Remove implements Store
// only URLs minted by this store are honored; the basename is resolved
// inside Dir so a crafted URL cannot reach outside it
func (s *FS) Remove(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	name, ok := strings.CutPrefix(url, s.BaseURL+"/")
	if !ok || name == "" || name != path.Base(name) {
		return perr.InvalidArgf("url %q was not issued by this store", url)
	}
	if err := os.Remove(filepath.Join(s.Dir, name)); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return perr.Wrap(err, perr.ErrorCodeUnavailable, "remove audio file")
	}
	return nil
}

// safeExt keeps a short well-formed extension and drops anything else
func safeExt(filename string) string {
	ext := strings.ToLower(path.Ext(path.Base(filename)))
	if ext == "" || len(ext) > 8 {
		return ".webm"
	}
	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ".webm"
		}
	}
	return ext
}
