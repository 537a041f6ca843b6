package tree

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"strings"

	"github.com/haivivi/imfs/pkg/imfs"
	"github.com/haivivi/imfs/pkg/vpath"
)

// MaxMergeAttempts bounds the Copy-<n>-of-<name> names Merge tries for one
// colliding entry.
const MaxMergeAttempts = 100

// SourceEntry is one entry of an external tree.
type SourceEntry struct {
	// Path is relative to the source root, slash-separated.
	Path  string
	IsDir bool
	// Data is the full content of a file; nil for directories.
	Data []byte
}

// Source is an external tree to import. Entries must come parents first, in
// a deterministic order.
type Source interface {
	Entries(ctx context.Context) iter.Seq2[SourceEntry, error]
}

// FSSource reads an io/fs tree: a host directory through os.DirFS, a
// fstest.MapFS, or another session's FS view. Only directories and regular
// files are imported.
type FSSource struct {
	FS fs.FS
	// Root is the directory within FS to import; "" or "." for all of it.
	Root string
}

func (s FSSource) Entries(ctx context.Context) iter.Seq2[SourceEntry, error] {
	root := s.Root
	if root == "" {
		root = "."
	}
	return func(yield func(SourceEntry, error) bool) {
		err := fs.WalkDir(s.FS, root, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			if p == root {
				return nil
			}
			rel := p
			if root != "." {
				rel = strings.TrimPrefix(p, root+"/")
			}
			entry := SourceEntry{Path: rel, IsDir: d.IsDir()}
			switch {
			case d.IsDir():
			case d.Type().IsRegular():
				data, err := fs.ReadFile(s.FS, p)
				if err != nil {
					return err
				}
				entry.Data = data
			default:
				return nil
			}
			if !yield(entry, nil) {
				return fs.SkipAll
			}
			return nil
		})
		if err != nil {
			yield(SourceEntry{}, err)
		}
	}
}

// Import copies every entry of src below the directory dst. Nothing is
// overwritten: the first entry that already exists aborts the import with
// ErrAlreadyExists, leaving what was imported so far in place.
func Import(ctx context.Context, fsys FS, src Source, dst string) error {
	if err := requireDir(ctx, fsys, "import", dst); err != nil {
		return err
	}
	for entry, err := range src.Entries(ctx) {
		if err != nil {
			return err
		}
		if err := vpath.Validate(entry.Path); err != nil || entry.Path == vpath.Root {
			return &fs.PathError{Op: "import", Path: entry.Path, Err: imfs.ErrInvalidPath}
		}
		p := vpath.Join(dst, entry.Path)
		if entry.IsDir {
			err = fsys.Mkdir(ctx, p)
		} else {
			err = writeNew(ctx, fsys, p, entry.Data)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Merge is Import without failing on collisions. A file that collides with
// an existing entry is written to the first free Copy-<n>-of-<name> next to
// it (n from 1 to MaxMergeAttempts). A directory that collides with an
// existing directory is reused and merged into; one that collides with a
// file is renamed like a file. Existing entries are never overwritten.
func Merge(ctx context.Context, fsys FS, src Source, dst string) error {
	if err := requireDir(ctx, fsys, "merge", dst); err != nil {
		return err
	}
	// Where each source directory ended up, since a rename moves its
	// children too.
	placed := map[string]string{vpath.Root: dst}
	for entry, err := range src.Entries(ctx) {
		if err != nil {
			return err
		}
		if err := vpath.Validate(entry.Path); err != nil || entry.Path == vpath.Root {
			return &fs.PathError{Op: "merge", Path: entry.Path, Err: imfs.ErrInvalidPath}
		}
		srcDir, name := vpath.Split(entry.Path)
		parent, ok := placed[srcDir]
		if !ok {
			return &fs.PathError{Op: "merge", Path: entry.Path, Err: fmt.Errorf("%w: parent not listed first", imfs.ErrNotFound)}
		}
		p, err := mergeEntry(ctx, fsys, parent, name, entry)
		if err != nil {
			return err
		}
		if entry.IsDir {
			placed[entry.Path] = p
		}
	}
	return nil
}

func mergeEntry(ctx context.Context, fsys FS, parent, name string, entry SourceEntry) (string, error) {
	p := vpath.Join(parent, name)
	err := create(ctx, fsys, p, entry)
	if err == nil || !errors.Is(err, imfs.ErrAlreadyExists) {
		return p, err
	}
	if entry.IsDir {
		info, err := fsys.Stat(ctx, p)
		if err != nil {
			return "", err
		}
		if info.IsDir() {
			return p, nil
		}
	}
	for n := 1; n <= MaxMergeAttempts; n++ {
		alt := vpath.Join(parent, fmt.Sprintf("Copy-%d-of-%s", n, name))
		err := create(ctx, fsys, alt, entry)
		if err == nil || !errors.Is(err, imfs.ErrAlreadyExists) {
			return alt, err
		}
	}
	return "", &fs.PathError{Op: "merge", Path: vpath.Abs(p), Err: fmt.Errorf("%w: no free name after %d attempts", imfs.ErrAlreadyExists, MaxMergeAttempts)}
}

func create(ctx context.Context, fsys FS, p string, entry SourceEntry) error {
	if entry.IsDir {
		return fsys.Mkdir(ctx, p)
	}
	return writeNew(ctx, fsys, p, entry.Data)
}

func writeNew(ctx context.Context, fsys FS, p string, data []byte) error {
	w, err := fsys.OpenWrite(ctx, p, true)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return err
	}
	return w.Close()
}

func requireDir(ctx context.Context, fsys FS, op, p string) error {
	info, err := fsys.Stat(ctx, p)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return &fs.PathError{Op: op, Path: vpath.Abs(p), Err: imfs.ErrNotDirectory}
	}
	return nil
}
