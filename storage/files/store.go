// Package files keeps uploads and generated documents on the local disk.
package files

import (
	"context"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/fetc/proposals/core/attachment"
)

var ErrInvalidKey = errors.New("invalid file key")

// Store saves files under root as {yyyy}/{mm}/{uuid}.{ext}.
type Store struct {
	root string
	now  func() time.Time
}

func NewStore(root string) *Store {
	return &Store{root: root, now: func() time.Time { return time.Now().UTC() }}
}

func (s *Store) path(key string) (string, error) {
	clean := path.Clean(key)
	if key == "" || clean != key || strings.HasPrefix(clean, "/") || strings.HasPrefix(clean, "..") {
		return "", errors.Wrapf(ErrInvalidKey, "%q", key)
	}
	return filepath.Join(s.root, filepath.FromSlash(clean)), nil
}

// Save writes r to a new file and returns its key. Only the extension of name is kept.
func (s *Store) Save(ctx context.Context, name string, r io.Reader) (string, error) {
	now := s.now()
	key := path.Join(now.Format("2006"), now.Format("01"), uuid.New().String())
	if ext := attachment.Extension(name); ext != "" {
		key += "." + ext
	}
	fpath, err := s.path(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(fpath), 0o755); err != nil {
		return "", errors.Wrap(err, "creating upload directory")
	}

	f, err := os.OpenFile(fpath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", errors.Wrap(err, "creating upload")
	}
	if _, err := io.Copy(f, &ctxReader{ctx: ctx, r: r}); err != nil {
		_ = f.Close()
		_ = os.Remove(fpath)
		return "", errors.Wrap(err, "writing upload")
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(fpath)
		return "", errors.Wrap(err, "closing upload")
	}
	return key, nil
}

func (s *Store) Open(_ context.Context, key string) (io.ReadCloser, error) {
	fpath, err := s.path(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(fpath)
	if err != nil {
		return nil, errors.Wrap(err, "opening upload")
	}
	return f, nil
}

// Delete removes the file; missing files are ignored.
func (s *Store) Delete(_ context.Context, key string) error {
	fpath, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(fpath); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "deleting upload")
	}
	return nil
}

// ctxReader stops copying once ctx is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (cr *ctxReader) Read(p []byte) (int, error) {
	if err := cr.ctx.Err(); err != nil {
		return 0, err
	}
	return cr.r.Read(p)
}
