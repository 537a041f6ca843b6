// Package kv provides an ordered key-value store interface with hierarchical
// path-based keys. Keys are represented as string slices (e.g., ["imfs",
// "default", "r", "math"]) and encoded internally using a configurable
// separator (default ':').
//
// Every backend keeps keys in byte order of their encoded form, so callers can
// scan a prefix with List or an arbitrary half-open interval with Range. The
// file store index relies on Range to find the children of a directory without
// walking a tree.
//
// The package includes a BadgerDB-backed implementation for persistent use and
// a B-tree backed in-memory implementation.
package kv

import (
	"context"
	"errors"
	"iter"
	"strings"
)

// Sentinel errors.
var (
	// ErrNotFound is returned when a key does not exist in the store.
	ErrNotFound = errors.New("kv: not found")
)

// Key is a hierarchical path represented as a slice of string segments.
// For example, Key{"imfs", "s1", "r", "a"} encodes to "imfs:s1:r:a" using
// the default separator ':'.
//
// Segments should not contain the configured separator character unless the
// caller never decodes keys read back from List or Range.
type Key []string

// String returns the key as a human-readable string using ':' as separator.
// This is for display/debug only; use Options.Encode for storage encoding.
func (k Key) String() string {
	return strings.Join(k, ":")
}

// Append returns a new key with segs appended. The receiver is not modified.
func (k Key) Append(segs ...string) Key {
	out := make(Key, 0, len(k)+len(segs))
	out = append(out, k...)
	return append(out, segs...)
}

// Entry is a key-value pair returned by List and Range and used by BatchSet.
type Entry struct {
	Key   Key
	Value []byte
}

// Store is the interface for an ordered key-value store with path-based keys.
type Store interface {
	// Get retrieves the value for a key. Returns ErrNotFound if not present.
	Get(ctx context.Context, key Key) ([]byte, error)

	// Set stores a key-value pair. Overwrites any existing value.
	Set(ctx context.Context, key Key, value []byte) error

	// Delete removes a key. No error if the key does not exist.
	Delete(ctx context.Context, key Key) error

	// List iterates over all entries whose key starts with the given prefix
	// followed by the separator. The iteration order is lexicographic by
	// encoded key.
	List(ctx context.Context, prefix Key) iter.Seq2[Entry, error]

	// Range iterates over all entries whose encoded key k satisfies
	// start <= k < end, in ascending byte order. Positioning at start costs
	// O(log n); entries are produced lazily, so a consumer that stops early
	// pays only for what it read. A nil end means "no upper bound".
	Range(ctx context.Context, start, end []byte) iter.Seq2[Entry, error]

	// BatchSet atomically stores multiple key-value pairs.
	BatchSet(ctx context.Context, entries []Entry) error

	// BatchDelete atomically removes multiple keys.
	BatchDelete(ctx context.Context, keys []Key) error

	// Close releases any resources held by the store.
	Close() error
}

// DefaultSeparator is the default separator byte used to encode key segments.
const DefaultSeparator byte = ':'

// Options configures store behavior.
type Options struct {
	// Separator is the byte used to join key segments when encoding to storage.
	// Default is ':' if zero.
	Separator byte
}

// Sep returns the effective separator.
func (o *Options) Sep() byte {
	if o != nil && o.Separator != 0 {
		return o.Separator
	}
	return DefaultSeparator
}

// Encode converts a Key to its byte representation using the separator.
// Range bounds are expressed in this encoding.
func (o *Options) Encode(k Key) []byte {
	s := o.Sep()
	// Calculate total length to avoid allocations.
	n := 0
	for i, seg := range k {
		if i > 0 {
			n++ // separator
		}
		n += len(seg)
	}
	buf := make([]byte, n)
	pos := 0
	for i, seg := range k {
		if i > 0 {
			buf[pos] = s
			pos++
		}
		pos += copy(buf[pos:], seg)
	}
	return buf
}

// Decode converts a byte representation back to a Key using the separator.
func (o *Options) Decode(b []byte) Key {
	s := o.Sep()
	parts := splitBytes(b, s)
	k := make(Key, len(parts))
	for i, p := range parts {
		k[i] = string(p)
	}
	return k
}

// prefixBytes returns the encoded prefix followed by the separator, or nil
// for an empty prefix (scan everything). Appending the separator keeps
// "a:b" from matching "a:bc".
func (o *Options) prefixBytes(prefix Key) []byte {
	p := o.Encode(prefix)
	if len(p) == 0 {
		return nil
	}
	return append(p, o.Sep())
}

// splitBytes splits b by separator byte, similar to bytes.Split but returns
// [][]byte without importing bytes package for this single use.
func splitBytes(b []byte, sep byte) [][]byte {
	n := 1
	for _, c := range b {
		if c == sep {
			n++
		}
	}
	parts := make([][]byte, 0, n)
	start := 0
	for i, c := range b {
		if c == sep {
			parts = append(parts, b[start:i])
			start = i + 1
		}
	}
	parts = append(parts, b[start:])
	return parts
}

// PrefixEnd returns the smallest byte string greater than every string with
// the given prefix, or nil if no such bound exists (prefix is all 0xff).
// Use it as the exclusive end of a Range that should cover a whole prefix.
func PrefixEnd(prefix []byte) []byte {
	end := make([]byte, len(prefix))
	copy(end, prefix)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xff {
			end[i]++
			return end[:i+1]
		}
	}
	return nil
}
