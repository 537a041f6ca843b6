package blob

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// Local keeps one file per blob under a root directory, sharded by the
// first two characters of the ID:
//
//	{root}/{id[0:2]}/{id}
//
// Files are written to a temporary name and renamed into place, so a
// reader never sees a partial blob.
type Local struct {
	root  string
	codec Codec
}

// NewLocal creates a Local store rooted at dir.
// The directory is created (with parents) if it does not already exist.
func NewLocal(dir string, codec Codec) (*Local, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, err
	}
	return &Local{root: abs, codec: codec}, nil
}

// Root returns the absolute root directory.
func (l *Local) Root() string {
	return l.root
}

// resolve turns an ID into an absolute filesystem path.
func (l *Local) resolve(id ID) (string, error) {
	if !id.Valid() {
		return "", fmt.Errorf("blob: invalid id %q", id)
	}
	s := string(id)
	return filepath.Join(l.root, s[:2], s), nil
}

func (l *Local) Put(_ context.Context, data []byte) (ID, error) {
	framed, err := l.codec.Encode(data)
	if err != nil {
		return "", err
	}
	id := NewID()
	full, err := l.resolve(id)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", err
	}
	tmp := full + ".tmp"
	if err := os.WriteFile(tmp, framed, 0o644); err != nil {
		return "", fmt.Errorf("blob: put %s: %w", id, err)
	}
	if err := os.Rename(tmp, full); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("blob: put %s: %w", id, err)
	}
	return id, nil
}

func (l *Local) Get(_ context.Context, id ID) ([]byte, error) {
	full, err := l.resolve(id)
	if err != nil {
		return nil, fmt.Errorf("blob: get %s: %w", id, ErrNotFound)
	}
	framed, err := os.ReadFile(full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("blob: get %s: %w", id, ErrNotFound)
		}
		return nil, err
	}
	return l.codec.Decode(framed)
}

// Delete removes the blob file. If it does not exist, Delete returns nil
// (idempotent).
func (l *Local) Delete(_ context.Context, id ID) error {
	full, err := l.resolve(id)
	if err != nil {
		return nil
	}
	err = os.Remove(full)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// Clear removes every shard directory under the root, keeping the root.
func (l *Local) Clear(_ context.Context) error {
	entries, err := os.ReadDir(l.root)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(l.root, e.Name())); err != nil {
			return err
		}
	}
	return nil
}
