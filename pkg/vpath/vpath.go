// Package vpath handles materialized paths and imfs:// URIs.
//
// A materialized path names an entry by its full slash-joined path with no
// leading or trailing slash: "math/algebra/notes.txt". The root is the empty
// string. Host-facing code speaks absolute paths ("/math") or URIs
// ("imfs://store/math"); this package converts between those forms so the
// store itself only ever sees materialized paths.
package vpath

import (
	"fmt"
	"io/fs"
	"net/url"
	"strings"
)

// ErrInvalidPath reports a malformed path or URI. It matches fs.ErrInvalid.
var ErrInvalidPath error = invalidPathError{}

type invalidPathError struct{}

func (invalidPathError) Error() string { return "invalid path" }
func (invalidPathError) Unwrap() error { return fs.ErrInvalid }

// Scheme is the URI scheme for store addresses.
const Scheme = "imfs"

// Root is the materialized path of the root directory.
const Root = ""

// Validate reports whether p is a well-formed materialized path.
func Validate(p string) error {
	if p == Root {
		return nil
	}
	if strings.IndexByte(p, 0) >= 0 {
		return fmt.Errorf("%w: %q contains NUL", ErrInvalidPath, p)
	}
	for seg := range strings.SplitSeq(p, "/") {
		switch seg {
		case "":
			return fmt.Errorf("%w: %q has an empty segment", ErrInvalidPath, p)
		case ".", "..":
			return fmt.Errorf("%w: %q has a relative segment", ErrInvalidPath, p)
		}
	}
	return nil
}

// Clean converts a host-style path into a materialized path: leading,
// trailing and repeated slashes are dropped and "." segments removed.
// ".." segments are resolved lexically and never climb above the root.
func Clean(p string) string {
	var out []string
	for seg := range strings.SplitSeq(p, "/") {
		switch seg {
		case "", ".":
		case "..":
			if len(out) > 0 {
				out = out[:len(out)-1]
			}
		default:
			out = append(out, seg)
		}
	}
	return strings.Join(out, "/")
}

// Join joins materialized path elements, ignoring empty ones.
func Join(elem ...string) string {
	var b strings.Builder
	for _, e := range elem {
		if e == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('/')
		}
		b.WriteString(e)
	}
	return b.String()
}

// Split splits p into its parent and its last segment. The root splits into
// ("", "").
func Split(p string) (dir, name string) {
	i := strings.LastIndexByte(p, '/')
	if i < 0 {
		return Root, p
	}
	return p[:i], p[i+1:]
}

// Dir returns the parent of p. The parent of a top-level entry and of the
// root is the root.
func Dir(p string) string {
	dir, _ := Split(p)
	return dir
}

// Base returns the last segment of p, or "" for the root.
func Base(p string) string {
	_, name := Split(p)
	return name
}

// IsAncestor reports whether a is a strict ancestor of p. The root is an
// ancestor of every other path.
func IsAncestor(a, p string) bool {
	if a == p {
		return false
	}
	if a == Root {
		return true
	}
	return strings.HasPrefix(p, a) && len(p) > len(a) && p[len(a)] == '/'
}

// Resolve interprets rel relative to the materialized directory cwd. An
// absolute rel ("/x/y") ignores cwd. The result is a cleaned materialized
// path; ".." at the root stays at the root.
func Resolve(cwd, rel string) string {
	if strings.HasPrefix(rel, "/") {
		return Clean(rel)
	}
	return Clean(cwd + "/" + rel)
}

// Abs returns the host form of a materialized path: "/" for the root,
// "/a/b" otherwise.
func Abs(p string) string {
	return "/" + p
}

// ParseURI splits an imfs://store/a/b URI into its store id and
// materialized path. Segments may be percent-encoded.
func ParseURI(s string) (store, path string, err error) {
	rest, ok := strings.CutPrefix(s, Scheme+"://")
	if !ok {
		return "", "", fmt.Errorf("%w: %q is not an %s URI", ErrInvalidPath, s, Scheme)
	}
	store, raw, _ := strings.Cut(rest, "/")
	if store == "" {
		return "", "", fmt.Errorf("%w: %q has no store", ErrInvalidPath, s)
	}
	if store, err = url.PathUnescape(store); err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrInvalidPath, err)
	}
	var segs []string
	for seg := range strings.SplitSeq(raw, "/") {
		if seg == "" {
			continue
		}
		if seg, err = url.PathUnescape(seg); err != nil {
			return "", "", fmt.Errorf("%w: %v", ErrInvalidPath, err)
		}
		segs = append(segs, seg)
	}
	path = strings.Join(segs, "/")
	if err := Validate(path); err != nil {
		return "", "", err
	}
	return store, path, nil
}

// FormatURI builds the URI of path in store. Directories are not marked with
// a trailing slash except the root, which formats as imfs://store/.
func FormatURI(store, path string) string {
	var b strings.Builder
	b.WriteString(Scheme)
	b.WriteString("://")
	b.WriteString(url.PathEscape(store))
	b.WriteByte('/')
	if path == Root {
		return b.String()
	}
	for i, seg := range strings.Split(path, "/") {
		if i > 0 {
			b.WriteByte('/')
		}
		b.WriteString(url.PathEscape(seg))
	}
	return b.String()
}
