// Package index maps materialized paths to records without building a tree.
//
// A materialized path is the full slash-joined path of an entry ("a/b/c"),
// with the empty string naming the root. Records are stored under their
// path in an ordered key space, so the hierarchy is implicit in key order:
// every descendant of "a/b" sorts inside the half-open interval
// ["a/b/", "a/b0"), because '/' is the byte that follows a complete segment
// and '0' is the next byte after '/'. Children queries scan that interval
// and re-seek past each child's own subtree, which keeps a listing at
// O(log n) per child no matter how deep the tree below it is.
package index

import (
	"context"
	"errors"
	"fmt"
	"iter"

	"github.com/haivivi/imfs/pkg/blob"
)

// Sentinel errors.
var (
	// ErrNotFound is returned by Get when no record exists at the path.
	ErrNotFound = errors.New("index: not found")

	// ErrInvalidRecord is returned by Put for a record that breaks the
	// kind/blob invariant or targets the root.
	ErrInvalidRecord = errors.New("index: invalid record")
)

// Kind distinguishes directories from files.
type Kind uint8

const (
	// Directory records own no content.
	Directory Kind = 1
	// File records reference exactly one blob.
	File Kind = 2
)

func (k Kind) String() string {
	switch k {
	case Directory:
		return "directory"
	case File:
		return "file"
	default:
		return fmt.Sprintf("kind(%d)", k)
	}
}

// Record is the metadata entry for one materialized path.
type Record struct {
	// Path is the materialized path; "" is the root.
	Path string

	Kind Kind

	// Blob references the content of a File. Empty for directories.
	Blob blob.ID

	// Size is the content length in bytes.
	Size int64

	// Digest is the hex BLAKE3-256 of the content, or empty when unknown.
	Digest string
}

// Root is the implicit root directory. It is never stored.
var Root = Record{Path: "", Kind: Directory}

// IsDir reports whether r is a directory.
func (r Record) IsDir() bool { return r.Kind == Directory }

// IsFile reports whether r is a file.
func (r Record) IsFile() bool { return r.Kind == File }

// Dir returns a directory record for path.
func Dir(path string) Record {
	return Record{Path: path, Kind: Directory}
}

// Validate checks the kind/blob invariant: a file has a blob, a directory
// has none.
func (r Record) Validate() error {
	switch r.Kind {
	case Directory:
		if r.Blob != "" || r.Size != 0 {
			return fmt.Errorf("%w: directory %q has content", ErrInvalidRecord, r.Path)
		}
	case File:
		if r.Blob == "" {
			return fmt.Errorf("%w: file %q has no blob", ErrInvalidRecord, r.Path)
		}
	default:
		return fmt.Errorf("%w: %q has %v", ErrInvalidRecord, r.Path, r.Kind)
	}
	return nil
}

// Index is the sorted mapping from materialized path to Record.
//
// Enumeration while another goroutine mutates the index is not isolated:
// the sequence may or may not reflect concurrent changes.
type Index interface {
	// Contains reports whether a record exists at path. The root always
	// exists.
	Contains(ctx context.Context, path string) (bool, error)

	// Get returns the record at path. The root resolves to Root.
	// Returns an error wrapping ErrNotFound if absent.
	Get(ctx context.Context, path string) (Record, error)

	// Put inserts or replaces the record at rec.Path.
	Put(ctx context.Context, rec Record) error

	// Remove deletes the record at path. Removing a missing path is not an
	// error.
	Remove(ctx context.Context, path string) error

	// Children yields the direct children of path in ascending byte order,
	// never grandchildren.
	Children(ctx context.Context, path string) iter.Seq2[Record, error]

	// Descendants yields every record strictly below path in ascending byte
	// order.
	Descendants(ctx context.Context, path string) iter.Seq2[Record, error]

	// Clear removes every record.
	Clear(ctx context.Context) error
}
