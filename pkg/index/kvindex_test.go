package index_test

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"slices"
	"testing"

	"github.com/haivivi/imfs/pkg/blob"
	"github.com/haivivi/imfs/pkg/index"
	"github.com/haivivi/imfs/pkg/kv"
)

func newMemoryIndex(t *testing.T) *index.KVIndex {
	t.Helper()
	store := kv.NewMemory(index.KeyOptions)
	t.Cleanup(func() { store.Close() })
	ix, err := index.NewKV(store, kv.Key{"imfs", "test", "r"})
	if err != nil {
		t.Fatalf("NewKV: %v", err)
	}
	return ix
}

func newBadgerIndex(t *testing.T) *index.KVIndex {
	t.Helper()
	store, err := kv.NewBadger(kv.BadgerOptions{Options: index.KeyOptions, InMemory: true})
	if err != nil {
		t.Fatalf("NewBadger: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	ix, err := index.NewKV(store, kv.Key{"imfs", "test", "r"})
	if err != nil {
		t.Fatalf("NewKV: %v", err)
	}
	return ix
}

func forEachIndex(t *testing.T, fn func(t *testing.T, ix index.Index)) {
	t.Run("memory", func(t *testing.T) { fn(t, newMemoryIndex(t)) })
	t.Run("badger", func(t *testing.T) { fn(t, newBadgerIndex(t)) })
}

func put(t *testing.T, ix index.Index, paths ...string) {
	t.Helper()
	for _, p := range paths {
		if err := ix.Put(context.Background(), index.Dir(p)); err != nil {
			t.Fatalf("Put %q: %v", p, err)
		}
	}
}

func paths(t *testing.T, seq iter.Seq2[index.Record, error]) []string {
	t.Helper()
	var got []string
	for rec, err := range seq {
		if err != nil {
			t.Fatalf("iterate: %v", err)
		}
		got = append(got, rec.Path)
	}
	return got
}

func TestGetPutRemove(t *testing.T) {
	forEachIndex(t, func(t *testing.T, ix index.Index) {
		ctx := context.Background()

		if _, err := ix.Get(ctx, "fun.txt"); !errors.Is(err, index.ErrNotFound) {
			t.Fatalf("Get missing: got %v, want ErrNotFound", err)
		}

		rec := index.Record{Path: "fun.txt", Kind: index.File, Blob: blob.NewID(), Size: 12, Digest: "abc"}
		if err := ix.Put(ctx, rec); err != nil {
			t.Fatalf("Put: %v", err)
		}
		got, err := ix.Get(ctx, "fun.txt")
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if got != rec {
			t.Fatalf("Get = %+v, want %+v", got, rec)
		}
		ok, err := ix.Contains(ctx, "fun.txt")
		if err != nil || !ok {
			t.Fatalf("Contains = %v, %v; want true", ok, err)
		}

		// Upsert replaces.
		rec.Blob = blob.NewID()
		if err := ix.Put(ctx, rec); err != nil {
			t.Fatalf("Put upsert: %v", err)
		}
		got, _ = ix.Get(ctx, "fun.txt")
		if got.Blob != rec.Blob {
			t.Fatalf("Blob = %q, want %q", got.Blob, rec.Blob)
		}

		if err := ix.Remove(ctx, "fun.txt"); err != nil {
			t.Fatalf("Remove: %v", err)
		}
		ok, err = ix.Contains(ctx, "fun.txt")
		if err != nil || ok {
			t.Fatalf("Contains after Remove = %v, %v; want false", ok, err)
		}
	})
}

func TestRootIsImplicit(t *testing.T) {
	forEachIndex(t, func(t *testing.T, ix index.Index) {
		ctx := context.Background()
		got, err := ix.Get(ctx, "")
		if err != nil {
			t.Fatalf("Get root: %v", err)
		}
		if !got.IsDir() || got.Path != "" {
			t.Fatalf("Get root = %+v", got)
		}
		if ok, _ := ix.Contains(ctx, ""); !ok {
			t.Fatal("root must always exist")
		}
		if err := ix.Put(ctx, index.Dir("")); !errors.Is(err, index.ErrInvalidRecord) {
			t.Fatalf("Put root: got %v, want ErrInvalidRecord", err)
		}
	})
}

func TestPutValidates(t *testing.T) {
	forEachIndex(t, func(t *testing.T, ix index.Index) {
		ctx := context.Background()
		bad := []index.Record{
			{Path: "f", Kind: index.File},
			{Path: "d", Kind: index.Directory, Blob: blob.NewID()},
			{Path: "x"},
		}
		for _, rec := range bad {
			if err := ix.Put(ctx, rec); !errors.Is(err, index.ErrInvalidRecord) {
				t.Errorf("Put %+v: got %v, want ErrInvalidRecord", rec, err)
			}
			if ok, _ := ix.Contains(ctx, rec.Path); ok {
				t.Errorf("invalid record %q was stored", rec.Path)
			}
		}
	})
}

func TestChildrenExactPrefix(t *testing.T) {
	forEachIndex(t, func(t *testing.T, ix index.Index) {
		ctx := context.Background()
		put(t, ix,
			"math", "math2", "math-x", "mat",
			"math/foo", "math/foo/bar", "math/foo/bar/baz",
			"math/a", "math/a.txt", "math/z",
			"math2/x",
		)

		got := paths(t, ix.Children(ctx, "math"))
		want := []string{"math/a", "math/a.txt", "math/foo", "math/z"}
		if !slices.Equal(got, want) {
			t.Fatalf("Children(math) = %v, want %v", got, want)
		}

		got = paths(t, ix.Children(ctx, "math/foo"))
		if !slices.Equal(got, []string{"math/foo/bar"}) {
			t.Fatalf("Children(math/foo) = %v", got)
		}

		got = paths(t, ix.Children(ctx, "math2"))
		if !slices.Equal(got, []string{"math2/x"}) {
			t.Fatalf("Children(math2) = %v", got)
		}

		got = paths(t, ix.Children(ctx, "mat"))
		if len(got) != 0 {
			t.Fatalf("Children(mat) = %v, want empty", got)
		}
	})
}

func TestChildrenOfRoot(t *testing.T) {
	forEachIndex(t, func(t *testing.T, ix index.Index) {
		ctx := context.Background()
		put(t, ix, "history", "math", "Spanish", "math/algebra", "math/algebra/notes", "foo")

		got := paths(t, ix.Children(ctx, ""))
		want := []string{"Spanish", "foo", "history", "math"}
		if !slices.Equal(got, want) {
			t.Fatalf("Children(root) = %v, want %v", got, want)
		}
	})
}

// TestChildrenNeverGrandchildren checks the direct-child property on a
// generated tree: every record appears in exactly its parent's listing.
func TestChildrenNeverGrandchildren(t *testing.T) {
	forEachIndex(t, func(t *testing.T, ix index.Index) {
		ctx := context.Background()
		all := []string{""}
		var build func(parent string, depth int)
		build = func(parent string, depth int) {
			if depth == 3 {
				return
			}
			for _, name := range []string{"a", "a0", "a-b", "b"} {
				p := name
				if parent != "" {
					p = parent + "/" + name
				}
				put(t, ix, p)
				all = append(all, p)
				build(p, depth+1)
			}
		}
		build("", 0)

		seen := make(map[string]string)
		for _, parent := range all {
			for _, child := range paths(t, ix.Children(ctx, parent)) {
				if prev, ok := seen[child]; ok {
					t.Fatalf("%q listed under both %q and %q", child, prev, parent)
				}
				seen[child] = parent
				wantParent := ""
				if i := lastSlash(child); i >= 0 {
					wantParent = child[:i]
				}
				if wantParent != parent {
					t.Fatalf("%q listed under %q, want %q", child, parent, wantParent)
				}
			}
		}
		if len(seen) != len(all)-1 {
			t.Fatalf("listed %d records, want %d", len(seen), len(all)-1)
		}
	})
}

func lastSlash(s string) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '/' {
			return i
		}
	}
	return -1
}

func TestDescendants(t *testing.T) {
	forEachIndex(t, func(t *testing.T, ix index.Index) {
		ctx := context.Background()
		put(t, ix, "a", "a/b", "a/b/c", "a2", "a2/x", "b")

		got := paths(t, ix.Descendants(ctx, "a"))
		if !slices.Equal(got, []string{"a/b", "a/b/c"}) {
			t.Fatalf("Descendants(a) = %v", got)
		}
		got = paths(t, ix.Descendants(ctx, ""))
		if len(got) != 6 {
			t.Fatalf("Descendants(root) = %v, want 6 records", got)
		}
	})
}

func TestClearIsScoped(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemory(index.KeyOptions)
	a, _ := index.NewKV(store, kv.Key{"imfs", "a", "r"})
	b, _ := index.NewKV(store, kv.Key{"imfs", "b", "r"})
	put(t, a, "x", "x/y")
	put(t, b, "x")

	if err := a.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if got := paths(t, a.Descendants(ctx, "")); len(got) != 0 {
		t.Fatalf("after Clear: %v", got)
	}
	if ok, _ := b.Contains(ctx, "x"); !ok {
		t.Fatal("Clear removed another index's records")
	}
}

func TestNewKVRejectsBadPrefix(t *testing.T) {
	store := kv.NewMemory(index.KeyOptions)
	for _, p := range []kv.Key{nil, {"imfs", ""}, {"imfs", "a/b"}} {
		if _, err := index.NewKV(store, p); err == nil {
			t.Errorf("NewKV(%v) succeeded, want error", p)
		}
	}
}

// countingStore counts entries produced by Range so tests can check that a
// listing does not read a child's subtree.
type countingStore struct {
	kv.Store
	read int
}

func (c *countingStore) Range(ctx context.Context, start, end []byte) iter.Seq2[kv.Entry, error] {
	inner := c.Store.Range(ctx, start, end)
	return func(yield func(kv.Entry, error) bool) {
		for e, err := range inner {
			c.read++
			if !yield(e, err) {
				return
			}
		}
	}
}

func TestChildrenSkipsSubtrees(t *testing.T) {
	ctx := context.Background()
	store := &countingStore{Store: kv.NewMemory(index.KeyOptions)}
	ix, err := index.NewKV(store, kv.Key{"imfs", "test", "r"})
	if err != nil {
		t.Fatal(err)
	}
	put(t, ix, "big", "big/deep", "small")
	for i := range 500 {
		put(t, ix, fmt.Sprintf("big/deep/f%03d", i))
	}

	store.read = 0
	got := paths(t, ix.Children(ctx, ""))
	if !slices.Equal(got, []string{"big", "small"}) {
		t.Fatalf("Children(root) = %v", got)
	}
	// big, big/deep (triggers skip), small: a handful of reads, not 500.
	if store.read > 10 {
		t.Fatalf("listing root read %d entries; subtree was not skipped", store.read)
	}
}
