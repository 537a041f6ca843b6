package imfs

import (
	"context"
	"io"
	"io/fs"
)

// FS returns a read-only io/fs view of the session. Names follow io/fs
// rules: "." is the root and "a/b" is the materialized path a/b. Every call
// through the view uses ctx.
func (s *Session) FS(ctx context.Context) fs.FS {
	return &sessionFS{ctx: ctx, s: s}
}

type sessionFS struct {
	ctx context.Context
	s   *Session
}

var (
	_ fs.ReadDirFS  = (*sessionFS)(nil)
	_ fs.ReadFileFS = (*sessionFS)(nil)
	_ fs.StatFS     = (*sessionFS)(nil)
)

// toPath maps an io/fs name to a materialized path.
func toPath(op, name string) (string, error) {
	if !fs.ValidPath(name) {
		return "", &fs.PathError{Op: op, Path: name, Err: fs.ErrInvalid}
	}
	if name == "." {
		return "", nil
	}
	return name, nil
}

// rename swaps the materialized path in a session error for the io/fs name
// the caller used.
func rename(err error, name string) error {
	if pe, ok := err.(*fs.PathError); ok {
		return &fs.PathError{Op: pe.Op, Path: name, Err: pe.Err}
	}
	return err
}

func (f *sessionFS) Open(name string) (fs.File, error) {
	p, err := toPath("open", name)
	if err != nil {
		return nil, err
	}
	info, err := f.s.Stat(f.ctx, p)
	if err != nil {
		return nil, rename(err, name)
	}
	if info.IsDir() {
		entries, err := f.s.ReadDir(f.ctx, p)
		if err != nil {
			return nil, rename(err, name)
		}
		return &dirFile{name: name, info: info, entries: entries}, nil
	}
	r, err := f.s.Open(f.ctx, p)
	if err != nil {
		return nil, rename(err, name)
	}
	return r, nil
}

func (f *sessionFS) ReadDir(name string) ([]fs.DirEntry, error) {
	p, err := toPath("readdir", name)
	if err != nil {
		return nil, err
	}
	infos, err := f.s.ReadDir(f.ctx, p)
	if err != nil {
		return nil, rename(err, name)
	}
	out := make([]fs.DirEntry, len(infos))
	for i, info := range infos {
		out[i] = info
	}
	return out, nil
}

func (f *sessionFS) ReadFile(name string) ([]byte, error) {
	p, err := toPath("read", name)
	if err != nil {
		return nil, err
	}
	data, err := f.s.ReadFile(f.ctx, p)
	if err != nil {
		return nil, rename(err, name)
	}
	return data, nil
}

func (f *sessionFS) Stat(name string) (fs.FileInfo, error) {
	p, err := toPath("stat", name)
	if err != nil {
		return nil, err
	}
	info, err := f.s.Stat(f.ctx, p)
	if err != nil {
		return nil, rename(err, name)
	}
	return info, nil
}

// dirFile is an open directory. Its listing is taken at Open.
type dirFile struct {
	name    string
	info    Info
	entries []Info
	offset  int
}

func (d *dirFile) Stat() (fs.FileInfo, error) { return d.info, nil }

func (d *dirFile) Read([]byte) (int, error) {
	return 0, &fs.PathError{Op: "read", Path: d.name, Err: ErrIsDirectory}
}

func (d *dirFile) Close() error { return nil }

func (d *dirFile) ReadDir(n int) ([]fs.DirEntry, error) {
	rest := d.entries[d.offset:]
	if n > 0 && len(rest) == 0 {
		return nil, io.EOF
	}
	if n > 0 && n < len(rest) {
		rest = rest[:n]
	}
	d.offset += len(rest)
	out := make([]fs.DirEntry, len(rest))
	for i, info := range rest {
		out[i] = info
	}
	return out, nil
}
