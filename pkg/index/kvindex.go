package index

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/haivivi/imfs/pkg/blob"
	"github.com/haivivi/imfs/pkg/kv"
)

// KV key layout (relative to the configured prefix):
//
//	{prefix}/{materialized path}  → msgpack recordValue
//
// The store must encode keys with KeyOptions so that the stored key of
// "a/b" is literally "{prefix}/a/b" and byte order matches path order.

// KeyOptions are the kv options every store handed to NewKV must use.
var KeyOptions = &kv.Options{Separator: '/'}

// recordValue is the stored form of a Record; the path lives in the key.
type recordValue struct {
	Kind   Kind   `msgpack:"k"`
	Blob   string `msgpack:"b,omitempty"`
	Size   int64  `msgpack:"s,omitempty"`
	Digest string `msgpack:"d,omitempty"`
}

// KVIndex is an Index implementation backed by a kv.Store. All keys are
// scoped under a prefix, allowing several sessions to share one store.
type KVIndex struct {
	store  kv.Store
	prefix kv.Key
	base   string // encoded prefix plus trailing separator
}

// NewKV creates an index over store rooted at prefix. Prefix segments must
// not contain '/'.
func NewKV(store kv.Store, prefix kv.Key) (*KVIndex, error) {
	if len(prefix) == 0 {
		return nil, errors.New("index: empty prefix")
	}
	for _, seg := range prefix {
		if seg == "" || strings.ContainsRune(seg, '/') {
			return nil, fmt.Errorf("index: invalid prefix segment %q", seg)
		}
	}
	return &KVIndex{
		store:  store,
		prefix: prefix,
		base:   string(KeyOptions.Encode(prefix)) + "/",
	}, nil
}

func (ix *KVIndex) key(path string) kv.Key {
	return ix.prefix.Append(path)
}

// pathOf recovers the materialized path from a key read back from the store.
func (ix *KVIndex) pathOf(k kv.Key) string {
	return strings.Join(k[len(ix.prefix):], "/")
}

func (ix *KVIndex) Contains(ctx context.Context, path string) (bool, error) {
	if path == "" {
		return true, nil
	}
	_, err := ix.store.Get(ctx, ix.key(path))
	if errors.Is(err, kv.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (ix *KVIndex) Get(ctx context.Context, path string) (Record, error) {
	if path == "" {
		return Root, nil
	}
	data, err := ix.store.Get(ctx, ix.key(path))
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return Record{}, fmt.Errorf("%w: %q", ErrNotFound, path)
		}
		return Record{}, err
	}
	return decodeRecord(path, data)
}

func (ix *KVIndex) Put(ctx context.Context, rec Record) error {
	if rec.Path == "" {
		return fmt.Errorf("%w: root is implicit", ErrInvalidRecord)
	}
	if err := rec.Validate(); err != nil {
		return err
	}
	data, err := msgpack.Marshal(recordValue{
		Kind:   rec.Kind,
		Blob:   string(rec.Blob),
		Size:   rec.Size,
		Digest: rec.Digest,
	})
	if err != nil {
		return err
	}
	return ix.store.Set(ctx, ix.key(rec.Path), data)
}

func (ix *KVIndex) Remove(ctx context.Context, path string) error {
	if path == "" {
		return nil
	}
	return ix.store.Delete(ctx, ix.key(path))
}

// bounds returns the half-open key interval holding every descendant of
// path. For the root that is the whole prefix.
func (ix *KVIndex) bounds(path string) (lo, hi string) {
	if path == "" {
		return ix.base, string(kv.PrefixEnd([]byte(ix.base)))
	}
	return ix.base + path + "/", ix.base + path + "0"
}

// Children scans [P/, P0) and yields keys with no '/' after the prefix.
// On reaching a deeper key P/c/..., it re-seeks to P/c0, the first key
// past c's subtree, so grandchildren are skipped rather than read.
func (ix *KVIndex) Children(ctx context.Context, path string) iter.Seq2[Record, error] {
	lo, hi := ix.bounds(path)
	return func(yield func(Record, error) bool) {
		cursor := lo
		for {
			skipTo := ""
			for entry, err := range ix.store.Range(ctx, []byte(cursor), []byte(hi)) {
				if err != nil {
					yield(Record{}, err)
					return
				}
				full := ix.pathOf(entry.Key)
				rest := full[len(lo)-len(ix.base):]
				if i := strings.IndexByte(rest, '/'); i >= 0 {
					skipTo = lo + rest[:i] + "0"
					break
				}
				rec, err := decodeRecord(full, entry.Value)
				if !yield(rec, err) {
					return
				}
			}
			if skipTo == "" {
				return
			}
			cursor = skipTo
		}
	}
}

func (ix *KVIndex) Descendants(ctx context.Context, path string) iter.Seq2[Record, error] {
	lo, hi := ix.bounds(path)
	return func(yield func(Record, error) bool) {
		for entry, err := range ix.store.Range(ctx, []byte(lo), []byte(hi)) {
			if err != nil {
				yield(Record{}, err)
				return
			}
			rec, err := decodeRecord(ix.pathOf(entry.Key), entry.Value)
			if !yield(rec, err) {
				return
			}
		}
	}
}

func (ix *KVIndex) Clear(ctx context.Context) error {
	var keys []kv.Key
	for entry, err := range ix.store.List(ctx, ix.prefix) {
		if err != nil {
			return err
		}
		keys = append(keys, entry.Key)
	}
	if len(keys) == 0 {
		return nil
	}
	return ix.store.BatchDelete(ctx, keys)
}

func decodeRecord(path string, data []byte) (Record, error) {
	var v recordValue
	if err := msgpack.Unmarshal(data, &v); err != nil {
		return Record{}, fmt.Errorf("index: decode %q: %w", path, err)
	}
	return Record{
		Path:   path,
		Kind:   v.Kind,
		Blob:   blob.ID(v.Blob),
		Size:   v.Size,
		Digest: v.Digest,
	}, nil
}

// Compile-time interface check.
var _ Index = (*KVIndex)(nil)
