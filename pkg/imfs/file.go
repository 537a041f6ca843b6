package imfs

import (
	"bytes"
	"context"
	"errors"
	"io"
	"io/fs"

	"github.com/haivivi/imfs/pkg/blob"
	"github.com/haivivi/imfs/pkg/index"
	"github.com/haivivi/imfs/pkg/vpath"
)

// Reader is a read handle on a file's committed content. The content is
// loaded once at Open; later writes to the same path are not visible.
type Reader struct {
	path   string
	info   Info
	r      *bytes.Reader
	closed bool
}

// Open opens the file at path for reading. Opening a directory fails with
// an error matching both ErrIsDirectory and ErrNotFound.
func (s *Session) Open(ctx context.Context, path string) (*Reader, error) {
	if err := vpath.Validate(path); err != nil {
		return nil, pathErr("open", path, err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, data, err := s.readFile(ctx, "open", path)
	if err != nil {
		return nil, err
	}
	return &Reader{path: path, info: Info{rec}, r: bytes.NewReader(data)}, nil
}

func (r *Reader) Read(p []byte) (int, error) {
	if r.closed {
		return 0, pathErr("read", r.path, ErrClosed)
	}
	return r.r.Read(p)
}

func (r *Reader) ReadAt(p []byte, off int64) (int, error) {
	if r.closed {
		return 0, pathErr("read", r.path, ErrClosed)
	}
	return r.r.ReadAt(p, off)
}

func (r *Reader) Seek(offset int64, whence int) (int64, error) {
	if r.closed {
		return 0, pathErr("seek", r.path, ErrClosed)
	}
	return r.r.Seek(offset, whence)
}

// Size returns the length of the content.
func (r *Reader) Size() int64 {
	return r.r.Size()
}

// Stat returns the entry as it was when the file was opened.
func (r *Reader) Stat() (fs.FileInfo, error) {
	return r.info, nil
}

// Write always fails: a read handle cannot modify content.
func (r *Reader) Write([]byte) (int, error) {
	return 0, pathErr("write", r.path, ErrUnsupported)
}

// Truncate always fails: a read handle cannot modify content.
func (r *Reader) Truncate(int64) error {
	return pathErr("truncate", r.path, ErrUnsupported)
}

func (r *Reader) Close() error {
	if r.closed {
		return pathErr("close", r.path, ErrClosed)
	}
	r.closed = true
	return nil
}

// Writer buffers a file's new content in memory. Nothing reaches the blob
// store until Close.
type Writer struct {
	s           *Session
	ctx         context.Context
	path        string
	placeholder blob.ID
	buf         bytes.Buffer
	closed      bool
}

// Create is OpenWrite with createNew set.
func (s *Session) Create(ctx context.Context, path string) (*Writer, error) {
	return s.OpenWrite(ctx, path, true)
}

// OpenWrite opens path for writing. With createNew, an existing entry fails
// with ErrAlreadyExists; otherwise an existing file is truncated. The parent
// must be a directory.
//
// The file record is bound to a fresh empty blob before OpenWrite returns,
// so the path is visible (and empty) while the Writer is open. ctx is kept
// for the store operations done by Close.
func (s *Session) OpenWrite(ctx context.Context, path string, createNew bool) (*Writer, error) {
	if err := vpath.Validate(path); err != nil {
		return nil, pathErr("open", path, err)
	}
	if path == vpath.Root {
		return nil, pathErr("open", path, ErrIsDirectory)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	old, err := s.index.Get(ctx, path)
	switch {
	case errors.Is(err, index.ErrNotFound):
		if err := s.checkParent(ctx, "open", path); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, pathErr("open", path, err)
	case createNew:
		return nil, pathErr("open", path, ErrAlreadyExists)
	case old.IsDir():
		return nil, pathErr("open", path, ErrIsDirectory)
	}

	id, err := s.blobs.Put(ctx, nil)
	if err != nil {
		return nil, pathErr("open", path, err)
	}
	rec := index.Record{Path: path, Kind: index.File, Blob: id, Digest: blob.Digest(nil)}
	if err := s.index.Put(ctx, rec); err != nil {
		s.dropBlob(ctx, id)
		return nil, pathErr("open", path, err)
	}
	if old.IsFile() {
		s.dropBlob(ctx, old.Blob)
	}
	s.logger.Debug("open for write", "path", path, "create_new", createNew)
	return &Writer{s: s, ctx: ctx, path: path, placeholder: id}, nil
}

func (w *Writer) Write(p []byte) (int, error) {
	if w.closed {
		return 0, pathErr("write", w.path, ErrClosed)
	}
	return w.buf.Write(p)
}

func (w *Writer) WriteString(str string) (int, error) {
	if w.closed {
		return 0, pathErr("write", w.path, ErrClosed)
	}
	return w.buf.WriteString(str)
}

// Len returns the number of bytes buffered so far.
func (w *Writer) Len() int {
	return w.buf.Len()
}

// Close commits the buffered bytes: one blob Put, then the record is
// rebound to the new blob and the blob it referenced before is deleted.
// The Writer is unusable afterwards, even if Close fails.
//
// If the file was deleted or replaced by a directory while the Writer was
// open, Close fails with ErrNotFound and the content is discarded. If
// another Writer committed in the meantime, the last Close wins.
func (w *Writer) Close() error {
	if w.closed {
		return pathErr("close", w.path, ErrClosed)
	}
	w.closed = true
	data := w.buf.Bytes()
	w.buf = bytes.Buffer{}

	s, ctx := w.s, w.ctx
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, err := s.index.Get(ctx, w.path)
	if err != nil {
		if errors.Is(err, index.ErrNotFound) {
			return pathErr("close", w.path, ErrNotFound)
		}
		return pathErr("close", w.path, err)
	}
	if !cur.IsFile() {
		return pathErr("close", w.path, ErrNotFound)
	}
	if cur.Blob != w.placeholder {
		s.logger.Debug("commit over a newer write", "path", w.path)
	}

	id, err := s.blobs.Put(ctx, data)
	if err != nil {
		return pathErr("close", w.path, err)
	}
	rec := index.Record{
		Path:   w.path,
		Kind:   index.File,
		Blob:   id,
		Size:   int64(len(data)),
		Digest: blob.Digest(data),
	}
	if err := s.index.Put(ctx, rec); err != nil {
		s.dropBlob(ctx, id)
		return pathErr("close", w.path, err)
	}
	s.dropBlob(ctx, cur.Blob)
	s.logger.Debug("commit", "path", w.path, "size", rec.Size)
	return nil
}

var (
	_ io.ReadSeekCloser = (*Reader)(nil)
	_ io.ReaderAt       = (*Reader)(nil)
	_ fs.File           = (*Reader)(nil)
	_ io.WriteCloser    = (*Writer)(nil)
	_ io.StringWriter   = (*Writer)(nil)
)
