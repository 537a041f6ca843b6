// Package snapshot dumps a session subtree to a byte stream and reads it
// back.
//
// A snapshot is a sequence of CBOR items in Core Deterministic Encoding:
// one Header, then one entry per directory or file below the saved root in
// pre-order, with file content inline. Saving the same tree twice produces
// identical bytes. A Reader is a tree.Source, so a snapshot can be imported
// or merged anywhere.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"

	"github.com/fxamacker/cbor/v2"

	"github.com/haivivi/imfs/pkg/blob"
	"github.com/haivivi/imfs/pkg/imfs"
	"github.com/haivivi/imfs/pkg/tree"
	"github.com/haivivi/imfs/pkg/vpath"
)

// Format identifies snapshot streams.
const Format = "imfs-snapshot"

// Version is the stream version written by Save.
const Version = 1

// ErrCorrupt reports a stream that is not a valid snapshot.
var ErrCorrupt = errors.New("snapshot: corrupt stream")

// Header is the first item of a snapshot.
type Header struct {
	Format  string `cbor:"format"`
	Version int    `cbor:"version"`
	// Store and Root record where the snapshot was taken.
	Store string `cbor:"store"`
	Root  string `cbor:"root"`
}

type entry struct {
	Path   string `cbor:"p"`
	Dir    bool   `cbor:"d,omitempty"`
	Data   []byte `cbor:"c,omitempty"`
	Digest string `cbor:"h,omitempty"`
}

// Stats summarizes a saved snapshot.
type Stats struct {
	Dirs  int
	Files int
	Bytes int64
}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("snapshot: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("snapshot: CBOR decoder initialization failed: " + err.Error())
	}
}

// Save writes the directory root of s and everything below it to w. The
// root itself is not written; entry paths are relative to it.
//
// Entries are read one at a time, so a tree mutated during Save may be
// captured partly before and partly after the change.
func Save(ctx context.Context, s *imfs.Session, root string, w io.Writer) (Stats, error) {
	var st Stats
	info, err := s.Stat(ctx, root)
	if err != nil {
		return st, err
	}
	if !info.IsDir() {
		return st, fmt.Errorf("snapshot: save %s: %w", vpath.Abs(root), imfs.ErrNotDirectory)
	}
	enc := encMode.NewEncoder(w)
	if err := enc.Encode(Header{Format: Format, Version: Version, Store: s.ID(), Root: root}); err != nil {
		return st, err
	}
	err = tree.Walk(ctx, s, root, func(info imfs.Info) error {
		if info.Path() == root {
			return nil
		}
		e := entry{Path: relative(root, info.Path()), Dir: info.IsDir()}
		if info.IsDir() {
			st.Dirs++
		} else {
			data, err := s.ReadFile(ctx, info.Path())
			if err != nil {
				return err
			}
			e.Data = data
			e.Digest = blob.Digest(data)
			st.Files++
			st.Bytes += int64(len(data))
		}
		return enc.Encode(e)
	})
	return st, err
}

func relative(root, p string) string {
	if root == vpath.Root {
		return p
	}
	return p[len(root)+1:]
}

// Reader reads a snapshot stream.
type Reader struct {
	dec    *cbor.Decoder
	header Header
	used   bool
}

// NewReader reads and checks the header of a snapshot stream.
func NewReader(r io.Reader) (*Reader, error) {
	dec := decMode.NewDecoder(r)
	var h Header
	if err := dec.Decode(&h); err != nil {
		return nil, fmt.Errorf("%w: header: %v", ErrCorrupt, err)
	}
	if h.Format != Format {
		return nil, fmt.Errorf("%w: format %q", ErrCorrupt, h.Format)
	}
	if h.Version != Version {
		return nil, fmt.Errorf("snapshot: unsupported version %d", h.Version)
	}
	return &Reader{dec: dec, header: h}, nil
}

// Header returns the stream header.
func (r *Reader) Header() Header {
	return r.header
}

// Entries yields the stream's entries. File content is checked against its
// digest. The stream can be consumed only once.
func (r *Reader) Entries(ctx context.Context) iter.Seq2[tree.SourceEntry, error] {
	return func(yield func(tree.SourceEntry, error) bool) {
		if r.used {
			yield(tree.SourceEntry{}, errors.New("snapshot: entries already read"))
			return
		}
		r.used = true
		for {
			if err := ctx.Err(); err != nil {
				yield(tree.SourceEntry{}, err)
				return
			}
			var e entry
			err := r.dec.Decode(&e)
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield(tree.SourceEntry{}, fmt.Errorf("%w: %v", ErrCorrupt, err))
				return
			}
			if !e.Dir && e.Digest != "" && blob.Digest(e.Data) != e.Digest {
				yield(tree.SourceEntry{}, fmt.Errorf("%w: digest mismatch for %q", ErrCorrupt, e.Path))
				return
			}
			if !yield(tree.SourceEntry{Path: e.Path, IsDir: e.Dir, Data: e.Data}, nil) {
				return
			}
		}
	}
}

// Load imports the snapshot in r below the directory dst. With merge,
// collisions are resolved as tree.Merge does; otherwise the first existing
// entry aborts the load.
func Load(ctx context.Context, s *imfs.Session, r io.Reader, dst string, merge bool) (Header, error) {
	sr, err := NewReader(r)
	if err != nil {
		return Header{}, err
	}
	if merge {
		err = tree.Merge(ctx, s, sr, dst)
	} else {
		err = tree.Import(ctx, s, sr, dst)
	}
	return sr.header, err
}
