package imfs_test

import (
	"context"
	"errors"
	"io/fs"
	"testing"
	"testing/fstest"

	"github.com/haivivi/imfs/pkg/imfs"
)

func TestFSConformance(t *testing.T) {
	forEachSession(t, func(t *testing.T, s *imfs.Session) {
		ctx := context.Background()
		for _, dir := range []string{"math/algebra", "history/rome"} {
			if err := s.MkdirAll(ctx, dir); err != nil {
				t.Fatal(err)
			}
		}
		files := map[string]string{
			"readme.txt":             "top level\n",
			"math/algebra/notes.txt": "x + y = z\n",
			"history/rome/empty":     "",
		}
		for p, content := range files {
			if err := s.WriteFile(ctx, p, []byte(content), true); err != nil {
				t.Fatal(err)
			}
		}

		if err := fstest.TestFS(s.FS(ctx),
			"readme.txt", "math/algebra/notes.txt", "history/rome/empty", "Spanish",
		); err != nil {
			t.Fatal(err)
		}
	})
}

func TestFSHelpers(t *testing.T) {
	s := newMemorySession(t)
	ctx := context.Background()
	if err := s.WriteFile(ctx, "math/pi.txt", []byte("3.14159\n"), true); err != nil {
		t.Fatal(err)
	}
	fsys := s.FS(ctx)

	data, err := fs.ReadFile(fsys, "math/pi.txt")
	if err != nil || string(data) != "3.14159\n" {
		t.Fatalf("fs.ReadFile = %q, %v", data, err)
	}

	var walked []string
	err = fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		walked = append(walked, p)
		return nil
	})
	if err != nil {
		t.Fatalf("WalkDir: %v", err)
	}
	want := []string{".", "Spanish", "history", "math", "math/pi.txt"}
	if len(walked) != len(want) {
		t.Fatalf("WalkDir = %v, want %v", walked, want)
	}
	for i := range want {
		if walked[i] != want[i] {
			t.Fatalf("WalkDir = %v, want %v", walked, want)
		}
	}

	if _, err := fs.Stat(fsys, "nope"); !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("Stat missing = %v, want fs.ErrNotExist", err)
	}
	var pe *fs.PathError
	if _, err := fsys.Open("math/nope"); !errors.As(err, &pe) || pe.Path != "math/nope" {
		t.Fatalf("Open error path = %v, want io/fs name", err)
	}
	if _, err := fsys.Open("/math"); !errors.Is(err, fs.ErrInvalid) {
		t.Fatalf("Open invalid name = %v", err)
	}
}
