// Package tree provides recursive operations built from single-entry file
// operations: walking, removing, copying and moving subtrees, importing and
// merging external trees, and searching file contents.
//
// Nothing here touches an index or blob store directly; every function
// works through the FS interface, which *imfs.Session satisfies.
package tree

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/haivivi/imfs/pkg/imfs"
	"github.com/haivivi/imfs/pkg/vpath"
)

// FS is the subset of session operations the tree functions need.
type FS interface {
	Stat(ctx context.Context, path string) (imfs.Info, error)
	ReadDir(ctx context.Context, path string) ([]imfs.Info, error)
	Mkdir(ctx context.Context, path string) error
	Delete(ctx context.Context, path string) error
	Copy(ctx context.Context, src, dst string, opts ...imfs.CopyOption) error
	OpenWrite(ctx context.Context, path string, createNew bool) (*imfs.Writer, error)
	ReadFile(ctx context.Context, path string) ([]byte, error)
}

var _ FS = (*imfs.Session)(nil)

// SkipDir and SkipAll may be returned by a WalkFunc, with the same meaning
// as in io/fs.
var (
	SkipDir = fs.SkipDir
	SkipAll = fs.SkipAll
)

// WalkFunc is called for every entry visited by Walk.
type WalkFunc func(info imfs.Info) error

// Walk visits root and everything below it in pre-order. Children are
// visited in listing order. Returning SkipDir from fn for a directory skips
// its children; SkipAll stops the walk without error.
func Walk(ctx context.Context, fsys FS, root string, fn WalkFunc) error {
	info, err := fsys.Stat(ctx, root)
	if err != nil {
		return err
	}
	err = walk(ctx, fsys, info, fn)
	if errors.Is(err, SkipAll) || errors.Is(err, SkipDir) {
		return nil
	}
	return err
}

func walk(ctx context.Context, fsys FS, info imfs.Info, fn WalkFunc) error {
	if err := fn(info); err != nil {
		return err
	}
	if !info.IsDir() {
		return nil
	}
	children, err := fsys.ReadDir(ctx, info.Path())
	if err != nil {
		return err
	}
	for _, child := range children {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := walk(ctx, fsys, child, fn)
		if errors.Is(err, SkipDir) {
			continue
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// RemoveAll deletes path and everything below it, children before their
// parent. The first failure aborts. RemoveAll on the root empties the store
// but keeps the root itself.
func RemoveAll(ctx context.Context, fsys FS, path string) error {
	info, err := fsys.Stat(ctx, path)
	if err != nil {
		return err
	}
	return removeAll(ctx, fsys, info)
}

func removeAll(ctx context.Context, fsys FS, info imfs.Info) error {
	if info.IsDir() {
		children, err := fsys.ReadDir(ctx, info.Path())
		if err != nil {
			return err
		}
		for _, child := range children {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := removeAll(ctx, fsys, child); err != nil {
				return err
			}
		}
	}
	if info.Path() == vpath.Root {
		return nil
	}
	return fsys.Delete(ctx, info.Path())
}

// CopyAll copies src and everything below it to dst. Parents are created
// before their children, each file gets its own copy of the content, and
// the first failure aborts. dst must not exist and must not lie inside src.
func CopyAll(ctx context.Context, fsys FS, src, dst string) error {
	if src == dst || vpath.IsAncestor(src, dst) {
		return &fs.PathError{Op: "copy", Path: vpath.Abs(dst), Err: fmt.Errorf("%w: destination inside source", imfs.ErrInvalidPath)}
	}
	info, err := fsys.Stat(ctx, src)
	if err != nil {
		return err
	}
	return copyAll(ctx, fsys, info, dst)
}

func copyAll(ctx context.Context, fsys FS, info imfs.Info, dst string) error {
	if err := fsys.Copy(ctx, info.Path(), dst); err != nil {
		return err
	}
	if !info.IsDir() {
		return nil
	}
	children, err := fsys.ReadDir(ctx, info.Path())
	if err != nil {
		return err
	}
	for _, child := range children {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := copyAll(ctx, fsys, child, vpath.Join(dst, child.Name())); err != nil {
			return err
		}
	}
	return nil
}

// MoveAll moves src and everything below it to dst: CopyAll, then
// RemoveAll of src. Like imfs.Session.Move it is not atomic; if removal
// fails part-way, entries exist under both paths.
func MoveAll(ctx context.Context, fsys FS, src, dst string) error {
	if src == vpath.Root {
		return &fs.PathError{Op: "move", Path: vpath.Abs(src), Err: fmt.Errorf("%w: the root cannot be moved", imfs.ErrInvalidPath)}
	}
	if err := CopyAll(ctx, fsys, src, dst); err != nil {
		return err
	}
	return RemoveAll(ctx, fsys, src)
}
