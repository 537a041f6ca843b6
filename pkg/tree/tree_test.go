package tree_test

import (
	"context"
	"errors"
	"slices"
	"strconv"
	"testing"
	"testing/fstest"

	"github.com/haivivi/imfs/pkg/imfs"
	"github.com/haivivi/imfs/pkg/tree"
)

func newSession(t *testing.T) *imfs.Session {
	t.Helper()
	reg := imfs.NewRegistry(imfs.RegistryOptions{Seed: imfs.FixtureDirs})
	t.Cleanup(func() { reg.Close() })
	s, err := reg.Open(context.Background(), "TreeTest")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return s
}

// build creates dirs (in order) and files under s.
func build(t *testing.T, s *imfs.Session, dirs []string, files map[string]string) {
	t.Helper()
	ctx := context.Background()
	for _, d := range dirs {
		if err := s.Mkdir(ctx, d); err != nil {
			t.Fatalf("Mkdir %q: %v", d, err)
		}
	}
	for p, content := range files {
		if err := s.WriteFile(ctx, p, []byte(content), true); err != nil {
			t.Fatalf("WriteFile %q: %v", p, err)
		}
	}
}

func walkPaths(t *testing.T, s *imfs.Session, root string) []string {
	t.Helper()
	var got []string
	err := tree.Walk(context.Background(), s, root, func(info imfs.Info) error {
		got = append(got, info.Path())
		return nil
	})
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	return got
}

func TestWalkPreOrder(t *testing.T) {
	s := newSession(t)
	build(t, s, []string{"math/algebra", "math/geometry"}, map[string]string{
		"math/algebra/a.txt": "a",
		"math/z.txt":         "z",
	})
	got := walkPaths(t, s, "math")
	want := []string{"math", "math/algebra", "math/algebra/a.txt", "math/geometry", "math/z.txt"}
	if !slices.Equal(got, want) {
		t.Fatalf("Walk = %v, want %v", got, want)
	}
}

func TestWalkSkipDir(t *testing.T) {
	s := newSession(t)
	build(t, s, []string{"math/algebra"}, map[string]string{"math/algebra/a.txt": "a"})
	var got []string
	err := tree.Walk(context.Background(), s, "", func(info imfs.Info) error {
		got = append(got, info.Path())
		if info.Path() == "math" {
			return tree.SkipDir
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"", "Spanish", "history", "math"}
	if !slices.Equal(got, want) {
		t.Fatalf("Walk = %v, want %v", got, want)
	}
}

func TestRemoveAll(t *testing.T) {
	s := newSession(t)
	ctx := context.Background()
	build(t, s, []string{"math/algebra", "math/algebra/deep", "math2"}, map[string]string{
		"math/algebra/deep/x.txt": "x",
		"math/y.txt":              "y",
	})
	if err := tree.RemoveAll(ctx, s, "math"); err != nil {
		t.Fatalf("RemoveAll: %v", err)
	}
	if err := s.Access(ctx, "math"); !errors.Is(err, imfs.ErrNotFound) {
		t.Fatalf("math still present: %v", err)
	}
	if err := s.Access(ctx, "math2"); err != nil {
		t.Fatalf("sibling with shared prefix removed: %v", err)
	}
	if err := tree.RemoveAll(ctx, s, "math"); !errors.Is(err, imfs.ErrNotFound) {
		t.Fatalf("RemoveAll missing = %v, want ErrNotFound", err)
	}
}

func TestRemoveAllRootKeepsRoot(t *testing.T) {
	s := newSession(t)
	ctx := context.Background()
	if err := tree.RemoveAll(ctx, s, ""); err != nil {
		t.Fatal(err)
	}
	if got := walkPaths(t, s, ""); !slices.Equal(got, []string{""}) {
		t.Fatalf("after RemoveAll root: %v", got)
	}
}

func TestCopyAllAndMoveAll(t *testing.T) {
	s := newSession(t)
	ctx := context.Background()
	build(t, s, []string{"math/algebra"}, map[string]string{
		"math/algebra/a.txt": "alpha",
		"math/b.txt":         "beta",
	})

	if err := tree.CopyAll(ctx, s, "math", "history/math"); err != nil {
		t.Fatalf("CopyAll: %v", err)
	}
	got := walkPaths(t, s, "history/math")
	want := []string{"history/math", "history/math/algebra", "history/math/algebra/a.txt", "history/math/b.txt"}
	if !slices.Equal(got, want) {
		t.Fatalf("copy = %v, want %v", got, want)
	}
	data, _ := s.ReadFile(ctx, "history/math/algebra/a.txt")
	if string(data) != "alpha" {
		t.Fatalf("copied content = %q", data)
	}

	if err := tree.MoveAll(ctx, s, "math", "maths"); err != nil {
		t.Fatalf("MoveAll: %v", err)
	}
	if err := s.Access(ctx, "math"); !errors.Is(err, imfs.ErrNotFound) {
		t.Fatalf("source still present: %v", err)
	}
	data, _ = s.ReadFile(ctx, "maths/b.txt")
	if string(data) != "beta" {
		t.Fatalf("moved content = %q", data)
	}
}

func TestCopyAllIntoItself(t *testing.T) {
	s := newSession(t)
	ctx := context.Background()
	if err := tree.CopyAll(ctx, s, "math", "math/again"); !errors.Is(err, imfs.ErrInvalidPath) {
		t.Fatalf("CopyAll into itself = %v, want ErrInvalidPath", err)
	}
	if err := tree.MoveAll(ctx, s, "", "x"); !errors.Is(err, imfs.ErrInvalidPath) {
		t.Fatalf("MoveAll root = %v, want ErrInvalidPath", err)
	}
}

var lesson = fstest.MapFS{
	"lesson/intro.txt":      {Data: []byte("welcome\n")},
	"lesson/part1/a.txt":    {Data: []byte("one\ntwo\n")},
	"lesson/part1/b.txt":    {Data: []byte("three\n")},
	"lesson/part2/notes.md": {Data: []byte("# notes\n")},
}

func TestImport(t *testing.T) {
	s := newSession(t)
	ctx := context.Background()
	src := tree.FSSource{FS: lesson, Root: "lesson"}
	if err := tree.Import(ctx, s, src, "history"); err != nil {
		t.Fatalf("Import: %v", err)
	}
	got := walkPaths(t, s, "history")
	want := []string{
		"history", "history/intro.txt",
		"history/part1", "history/part1/a.txt", "history/part1/b.txt",
		"history/part2", "history/part2/notes.md",
	}
	if !slices.Equal(got, want) {
		t.Fatalf("imported = %v, want %v", got, want)
	}
	data, _ := s.ReadFile(ctx, "history/part1/a.txt")
	if string(data) != "one\ntwo\n" {
		t.Fatalf("content = %q", data)
	}

	// A second import collides on the first entry.
	if err := tree.Import(ctx, s, src, "history"); !errors.Is(err, imfs.ErrAlreadyExists) {
		t.Fatalf("second Import = %v, want ErrAlreadyExists", err)
	}
	if err := tree.Import(ctx, s, src, "nope"); !errors.Is(err, imfs.ErrNotFound) {
		t.Fatalf("Import into missing dst = %v", err)
	}
}

func TestMergeTwice(t *testing.T) {
	s := newSession(t)
	ctx := context.Background()
	src := tree.FSSource{FS: lesson, Root: "lesson"}
	for i := range 2 {
		if err := tree.Merge(ctx, s, src, "history"); err != nil {
			t.Fatalf("Merge %d: %v", i, err)
		}
	}
	got := walkPaths(t, s, "history")
	want := []string{
		"history",
		"history/Copy-1-of-intro.txt",
		"history/intro.txt",
		"history/part1",
		"history/part1/Copy-1-of-a.txt",
		"history/part1/Copy-1-of-b.txt",
		"history/part1/a.txt",
		"history/part1/b.txt",
		"history/part2",
		"history/part2/Copy-1-of-notes.md",
		"history/part2/notes.md",
	}
	if !slices.Equal(got, want) {
		t.Fatalf("merged = %v\nwant %v", got, want)
	}
	// Originals untouched.
	data, _ := s.ReadFile(ctx, "history/intro.txt")
	if string(data) != "welcome\n" {
		t.Fatalf("original overwritten: %q", data)
	}

	if err := tree.Merge(ctx, s, src, "history"); err != nil {
		t.Fatal(err)
	}
	if err := s.Access(ctx, "history/Copy-2-of-intro.txt"); err != nil {
		t.Fatalf("third merge did not use Copy-2: %v", err)
	}
}

func TestMergeDirectoryOverFile(t *testing.T) {
	s := newSession(t)
	ctx := context.Background()
	build(t, s, nil, map[string]string{"history/part1": "a file in the way"})
	src := tree.FSSource{FS: lesson, Root: "lesson"}
	if err := tree.Merge(ctx, s, src, "history"); err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if _, err := s.ReadFile(ctx, "history/Copy-1-of-part1/a.txt"); err != nil {
		t.Fatalf("renamed directory missing its children: %v", err)
	}
}

func TestMergeGivesUp(t *testing.T) {
	s := newSession(t)
	ctx := context.Background()
	if err := s.WriteFile(ctx, "math/x", nil, true); err != nil {
		t.Fatal(err)
	}
	for n := 1; n <= tree.MaxMergeAttempts; n++ {
		if err := s.WriteFile(ctx, "math/Copy-"+strconv.Itoa(n)+"-of-x", nil, true); err != nil {
			t.Fatal(err)
		}
	}
	src := tree.FSSource{FS: fstest.MapFS{"x": {Data: []byte("x")}}}
	if err := tree.Merge(ctx, s, src, "math"); !errors.Is(err, imfs.ErrAlreadyExists) {
		t.Fatalf("Merge = %v, want ErrAlreadyExists", err)
	}
}

func TestImportFromSession(t *testing.T) {
	a := newSession(t)
	ctx := context.Background()
	build(t, a, []string{"math/algebra"}, map[string]string{"math/algebra/x.txt": "x"})

	reg := imfs.NewRegistry(imfs.RegistryOptions{})
	b, err := reg.Open(ctx, "other")
	if err != nil {
		t.Fatal(err)
	}
	if err := tree.Import(ctx, b, tree.FSSource{FS: a.FS(ctx), Root: "math"}, ""); err != nil {
		t.Fatalf("Import: %v", err)
	}
	data, err := b.ReadFile(ctx, "algebra/x.txt")
	if err != nil || string(data) != "x" {
		t.Fatalf("ReadFile = %q, %v", data, err)
	}
}
