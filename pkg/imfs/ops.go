package imfs

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/haivivi/imfs/pkg/blob"
	"github.com/haivivi/imfs/pkg/index"
	"github.com/haivivi/imfs/pkg/vpath"
)

// Info describes one entry. It implements fs.FileInfo and fs.DirEntry.
type Info struct {
	rec index.Record
}

// Path returns the materialized path.
func (i Info) Path() string { return i.rec.Path }

// Record returns the underlying index record.
func (i Info) Record() index.Record { return i.rec }

// Digest returns the hex BLAKE3 digest of a file's content.
func (i Info) Digest() string { return i.rec.Digest }

// Name returns the last path segment, or "." for the root.
func (i Info) Name() string {
	if i.rec.Path == vpath.Root {
		return "."
	}
	return vpath.Base(i.rec.Path)
}

func (i Info) Size() int64 { return i.rec.Size }

func (i Info) Mode() fs.FileMode {
	if i.rec.IsDir() {
		return fs.ModeDir | 0o555
	}
	return 0o444
}

// ModTime is always the zero time; entries carry no timestamps.
func (i Info) ModTime() time.Time { return time.Time{} }

func (i Info) IsDir() bool { return i.rec.IsDir() }

func (i Info) Sys() any { return i.rec }

func (i Info) Type() fs.FileMode { return i.Mode().Type() }

func (i Info) Info() (fs.FileInfo, error) { return i, nil }

// Access reports whether path exists. The root always exists.
func (s *Session) Access(ctx context.Context, path string) error {
	if err := vpath.Validate(path); err != nil {
		return pathErr("access", path, err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, err := s.lookup(ctx, "access", path)
	return err
}

// Stat returns the entry at path.
func (s *Session) Stat(ctx context.Context, path string) (Info, error) {
	if err := vpath.Validate(path); err != nil {
		return Info{}, pathErr("stat", path, err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, err := s.lookup(ctx, "stat", path)
	if err != nil {
		return Info{}, err
	}
	return Info{rec}, nil
}

// ReadDir lists the direct children of the directory at path in ascending
// byte order of their names.
func (s *Session) ReadDir(ctx context.Context, path string) ([]Info, error) {
	if err := vpath.Validate(path); err != nil {
		return nil, pathErr("readdir", path, err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, err := s.lookup(ctx, "readdir", path)
	if err != nil {
		return nil, err
	}
	if !rec.IsDir() {
		return nil, pathErr("readdir", path, ErrNotDirectory)
	}
	var out []Info
	for child, err := range s.index.Children(ctx, path) {
		if err != nil {
			return nil, pathErr("readdir", path, err)
		}
		out = append(out, Info{child})
	}
	return out, nil
}

// Mkdir creates a directory. The parent must already exist; missing
// ancestors are not created.
func (s *Session) Mkdir(ctx context.Context, path string) error {
	if err := vpath.Validate(path); err != nil {
		return pathErr("mkdir", path, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mkdir(ctx, "mkdir", path)
}

// MkdirAll creates a directory together with any missing ancestors. It
// succeeds if the directory already exists.
func (s *Session) MkdirAll(ctx context.Context, path string) error {
	if err := vpath.Validate(path); err != nil {
		return pathErr("mkdir", path, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mkdirAll(ctx, "mkdir", path)
}

func (s *Session) mkdir(ctx context.Context, op, path string) error {
	if path == vpath.Root {
		return pathErr(op, path, ErrAlreadyExists)
	}
	ok, err := s.index.Contains(ctx, path)
	if err != nil {
		return pathErr(op, path, err)
	}
	if ok {
		return pathErr(op, path, ErrAlreadyExists)
	}
	if err := s.checkParent(ctx, op, path); err != nil {
		return err
	}
	if err := s.index.Put(ctx, index.Dir(path)); err != nil {
		return pathErr(op, path, err)
	}
	s.logger.Debug("mkdir", "op", op, "path", path)
	return nil
}

func (s *Session) mkdirAll(ctx context.Context, op, path string) error {
	for i := 0; i <= len(path); i++ {
		if i < len(path) && path[i] != '/' {
			continue
		}
		p := path[:i]
		rec, err := s.index.Get(ctx, p)
		switch {
		case errors.Is(err, index.ErrNotFound):
			if err := s.index.Put(ctx, index.Dir(p)); err != nil {
				return pathErr(op, p, err)
			}
			s.logger.Debug("mkdir", "op", op, "path", p)
		case err != nil:
			return pathErr(op, p, err)
		case !rec.IsDir():
			return pathErr(op, p, ErrNotDirectory)
		}
	}
	return nil
}

// Delete removes a file or an empty directory. The root cannot be deleted.
func (s *Session) Delete(ctx context.Context, path string) error {
	if err := vpath.Validate(path); err != nil {
		return pathErr("delete", path, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.delete(ctx, "delete", path)
}

func (s *Session) delete(ctx context.Context, op, path string) error {
	if path == vpath.Root {
		return pathErr(op, path, fmt.Errorf("%w: the root cannot be deleted", ErrInvalidPath))
	}
	rec, err := s.lookup(ctx, op, path)
	if err != nil {
		return err
	}
	if rec.IsDir() {
		empty, err := s.isEmpty(ctx, path)
		if err != nil {
			return pathErr(op, path, err)
		}
		if !empty {
			return pathErr(op, path, ErrDirectoryNotEmpty)
		}
	}
	if err := s.index.Remove(ctx, path); err != nil {
		return pathErr(op, path, err)
	}
	if rec.IsFile() {
		s.dropBlob(ctx, rec.Blob)
	}
	s.logger.Debug("delete", "op", op, "path", path, "kind", rec.Kind)
	return nil
}

func (s *Session) isEmpty(ctx context.Context, path string) (bool, error) {
	for _, err := range s.index.Children(ctx, path) {
		if err != nil {
			return false, err
		}
		return false, nil
	}
	return true, nil
}

// CopyOption configures Copy.
type CopyOption func(*copyOptions)

type copyOptions struct {
	replace bool
}

// WithReplace asks Copy to overwrite an existing destination. Copy rejects
// it with ErrUnsupported: existing entries are never overwritten.
func WithReplace() CopyOption {
	return func(o *copyOptions) { o.replace = true }
}

// Copy copies the entry at src to dst. A file is copied with its own blob,
// so later changes to either side never show through the other. A
// directory is copied without its children; see tree.CopyAll for a
// recursive copy. The destination must not exist and its parent must be a
// directory.
func (s *Session) Copy(ctx context.Context, src, dst string, opts ...CopyOption) error {
	var o copyOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.replace {
		return pathErr("copy", dst, fmt.Errorf("%w: replacing an existing entry", ErrUnsupported))
	}
	if err := vpath.Validate(src); err != nil {
		return pathErr("copy", src, err)
	}
	if err := vpath.Validate(dst); err != nil {
		return pathErr("copy", dst, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.copy(ctx, "copy", src, dst)
}

func (s *Session) copy(ctx context.Context, op, src, dst string) error {
	rec, err := s.lookup(ctx, op, src)
	if err != nil {
		return err
	}
	exists, err := s.index.Contains(ctx, dst)
	if err != nil {
		return pathErr(op, dst, err)
	}
	if exists {
		return pathErr(op, dst, ErrAlreadyExists)
	}
	if err := s.checkParent(ctx, op, dst); err != nil {
		return err
	}
	if rec.IsDir() {
		if err := s.index.Put(ctx, index.Dir(dst)); err != nil {
			return pathErr(op, dst, err)
		}
		s.logger.Debug("copy", "op", op, "src", src, "dst", dst, "kind", rec.Kind)
		return nil
	}
	data, err := s.blobs.Get(ctx, rec.Blob)
	if err != nil {
		return pathErr(op, src, err)
	}
	id, err := s.blobs.Put(ctx, data)
	if err != nil {
		return pathErr(op, dst, err)
	}
	out := index.Record{Path: dst, Kind: index.File, Blob: id, Size: rec.Size, Digest: rec.Digest}
	if err := s.index.Put(ctx, out); err != nil {
		s.dropBlob(ctx, id)
		return pathErr(op, dst, err)
	}
	s.logger.Debug("copy", "op", op, "src", src, "dst", dst, "kind", rec.Kind, "size", rec.Size)
	return nil
}

// Move is Copy followed by Delete of the source. It is not atomic: if the
// delete step fails, both entries remain. In particular a non-empty
// directory is copied to dst but stays at src with its children; use
// tree.MoveAll to move a whole subtree.
func (s *Session) Move(ctx context.Context, src, dst string) error {
	if err := vpath.Validate(src); err != nil {
		return pathErr("move", src, err)
	}
	if err := vpath.Validate(dst); err != nil {
		return pathErr("move", dst, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.copy(ctx, "move", src, dst); err != nil {
		return err
	}
	return s.delete(ctx, "move", src)
}

// ReadFile returns the content of the file at path.
func (s *Session) ReadFile(ctx context.Context, path string) ([]byte, error) {
	if err := vpath.Validate(path); err != nil {
		return nil, pathErr("read", path, err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, data, err := s.readFile(ctx, "read", path)
	return data, err
}

func (s *Session) readFile(ctx context.Context, op, path string) (index.Record, []byte, error) {
	rec, err := s.lookup(ctx, op, path)
	if err != nil {
		return rec, nil, err
	}
	if rec.IsDir() {
		return rec, nil, pathErr(op, path, fmt.Errorf("%w: %w", ErrIsDirectory, ErrNotFound))
	}
	data, err := s.blobs.Get(ctx, rec.Blob)
	if err != nil {
		return rec, nil, pathErr(op, path, err)
	}
	return rec, data, nil
}

// WriteFile stores data at path through OpenWrite and Close.
func (s *Session) WriteFile(ctx context.Context, path string, data []byte, createNew bool) error {
	w, err := s.OpenWrite(ctx, path, createNew)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return err
	}
	return w.Close()
}

// lookup fetches the record at path, translating a miss into ErrNotFound.
func (s *Session) lookup(ctx context.Context, op, path string) (index.Record, error) {
	rec, err := s.index.Get(ctx, path)
	if err != nil {
		if errors.Is(err, index.ErrNotFound) {
			return rec, pathErr(op, path, ErrNotFound)
		}
		return rec, pathErr(op, path, err)
	}
	return rec, nil
}

// checkParent requires the parent of path to exist and be a directory.
func (s *Session) checkParent(ctx context.Context, op, path string) error {
	parent, err := s.index.Get(ctx, vpath.Dir(path))
	if err != nil {
		if errors.Is(err, index.ErrNotFound) {
			return pathErr(op, path, ErrNotFound)
		}
		return pathErr(op, path, err)
	}
	if !parent.IsDir() {
		return pathErr(op, path, ErrNotDirectory)
	}
	return nil
}

// dropBlob deletes a blob no record references any more. A failure only
// leaks storage, so it is logged rather than returned.
func (s *Session) dropBlob(ctx context.Context, id blob.ID) {
	if id == "" {
		return
	}
	if err := s.blobs.Delete(ctx, id); err != nil {
		s.logger.Warn("drop blob", "blob", id, "error", err)
	}
}
