package kv

import (
	"bytes"
	"context"
	"iter"
	"sync"

	"github.com/google/btree"
)

// btreeDegree is the B-tree node degree. 32 keeps nodes around a cache page
// for short path keys.
const btreeDegree = 32

type memItem struct {
	key string
	val []byte
}

func memLess(a, b memItem) bool { return a.key < b.key }

// Memory is an in-memory Store implementation backed by a B-tree ordered by
// encoded key. It is safe for concurrent use.
type Memory struct {
	mu   sync.RWMutex
	tree *btree.BTreeG[memItem]
	opts *Options
}

// NewMemory creates a new in-memory Store.
// Pass nil for default options.
func NewMemory(opts *Options) *Memory {
	return &Memory{
		tree: btree.NewG(btreeDegree, memLess),
		opts: opts,
	}
}

// Len returns the number of stored keys.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tree.Len()
}

func (m *Memory) Get(_ context.Context, key Key) ([]byte, error) {
	k := string(m.opts.Encode(key))
	m.mu.RLock()
	it, ok := m.tree.Get(memItem{key: k})
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	// Return a copy to prevent mutation.
	return bytes.Clone(it.val), nil
}

func (m *Memory) Set(_ context.Context, key Key, value []byte) error {
	k := string(m.opts.Encode(key))
	cp := bytes.Clone(value)
	if cp == nil {
		cp = []byte{}
	}
	m.mu.Lock()
	m.tree.ReplaceOrInsert(memItem{key: k, val: cp})
	m.mu.Unlock()
	return nil
}

func (m *Memory) Delete(_ context.Context, key Key) error {
	k := string(m.opts.Encode(key))
	m.mu.Lock()
	m.tree.Delete(memItem{key: k})
	m.mu.Unlock()
	return nil
}

func (m *Memory) List(ctx context.Context, prefix Key) iter.Seq2[Entry, error] {
	p := m.opts.prefixBytes(prefix)
	if p == nil {
		return m.Range(ctx, nil, nil)
	}
	return m.Range(ctx, p, PrefixEnd(p))
}

// memRangeBatch is how many entries Range copies per read-lock acquisition.
const memRangeBatch = 64

// Range copies matching entries in small batches under the read lock and
// yields them after releasing it, so a consumer may write to the store while
// iterating. Each batch re-positions in O(log n) just past the last key seen.
func (m *Memory) Range(ctx context.Context, start, end []byte) iter.Seq2[Entry, error] {
	return func(yield func(Entry, error) bool) {
		lo := string(start)
		for {
			if err := ctx.Err(); err != nil {
				yield(Entry{}, err)
				return
			}
			batch := make([]memItem, 0, memRangeBatch)
			visit := func(it memItem) bool {
				batch = append(batch, memItem{key: it.key, val: bytes.Clone(it.val)})
				return len(batch) < memRangeBatch
			}
			m.mu.RLock()
			if end == nil {
				m.tree.AscendGreaterOrEqual(memItem{key: lo}, visit)
			} else {
				m.tree.AscendRange(memItem{key: lo}, memItem{key: string(end)}, visit)
			}
			m.mu.RUnlock()

			for _, it := range batch {
				entry := Entry{
					Key:   m.opts.Decode([]byte(it.key)),
					Value: it.val,
				}
				if !yield(entry, nil) {
					return
				}
			}
			if len(batch) < memRangeBatch {
				return
			}
			// Smallest key strictly greater than the last one yielded.
			lo = batch[len(batch)-1].key + "\x00"
		}
	}
}

func (m *Memory) BatchSet(_ context.Context, entries []Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range entries {
		cp := bytes.Clone(e.Value)
		if cp == nil {
			cp = []byte{}
		}
		m.tree.ReplaceOrInsert(memItem{key: string(m.opts.Encode(e.Key)), val: cp})
	}
	return nil
}

func (m *Memory) BatchDelete(_ context.Context, keys []Key) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		m.tree.Delete(memItem{key: string(m.opts.Encode(key))})
	}
	return nil
}

func (m *Memory) Close() error {
	return nil
}
