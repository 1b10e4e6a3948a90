package objectstore

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Local keeps objects as files in one directory.
type Local struct {
	dir       string
	urlPrefix string
}

// NewLocal creates the directory if needed.
func NewLocal(dir, urlPrefix string) (*Local, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Local{dir: dir, urlPrefix: strings.TrimRight(urlPrefix, "/")}, nil
}

// Dir is the directory files are written to.
func (l *Local) Dir() string { return l.dir }

// URLPrefix is the path files are served under.
func (l *Local) URLPrefix() string { return l.urlPrefix }

// GetFullPath returns the on-disk path for id.
func (l *Local) GetFullPath(id string) (string, error) {
	if !ValidID(id) {
		return "", ErrBadID
	}
	return filepath.Join(l.dir, id), nil
}

func (l *Local) Put(ctx context.Context, id string, r io.Reader, _ *PutOptions) error {
	path, err := l.GetFullPath(id)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	return f.Close()
}

func (l *Local) Delete(ctx context.Context, id string) error {
	path, err := l.GetFullPath(id)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

func (l *Local) URL(id string) string {
	return l.urlPrefix + "/" + id
}
