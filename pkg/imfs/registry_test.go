package imfs_test

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/haivivi/imfs/pkg/blob"
	"github.com/haivivi/imfs/pkg/imfs"
	"github.com/haivivi/imfs/pkg/index"
	"github.com/haivivi/imfs/pkg/kv"
)

func TestRegistryOpenReusesSession(t *testing.T) {
	ctx := context.Background()
	reg := imfs.NewRegistry(imfs.RegistryOptions{})
	a, err := reg.Open(ctx, "a")
	if err != nil {
		t.Fatal(err)
	}
	again, err := reg.Open(ctx, "a")
	if err != nil {
		t.Fatal(err)
	}
	if a != again {
		t.Fatal("Open returned a different session for the same id")
	}
	if got, ok := reg.Get("a"); !ok || got != a {
		t.Fatal("Get did not return the open session")
	}
	if _, ok := reg.Get("b"); ok {
		t.Fatal("Get returned a session that was never opened")
	}
	if a.ID() != "a" {
		t.Fatalf("ID = %q", a.ID())
	}
}

func TestRegistryWithoutSeedIsEmpty(t *testing.T) {
	reg := imfs.NewRegistry(imfs.RegistryOptions{})
	s, err := reg.Open(context.Background(), "prod")
	if err != nil {
		t.Fatal(err)
	}
	if got := names(t, s, ""); len(got) != 0 {
		t.Fatalf("unseeded store lists %v", got)
	}
}

func TestRegistrySessionsAreIsolated(t *testing.T) {
	ctx := context.Background()
	db, err := kv.NewBadger(kv.BadgerOptions{Options: index.KeyOptions, InMemory: true})
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	reg := imfs.NewRegistry(imfs.RegistryOptions{
		Backend: imfs.KVBackend(db, imfs.KVBlobs(db, blob.Codec{})),
		Seed:    imfs.FixtureDirs,
	})

	a, _ := reg.Open(ctx, "a")
	ab, _ := reg.Open(ctx, "ab")
	if err := a.Mkdir(ctx, "only-in-a"); err != nil {
		t.Fatal(err)
	}
	if err := ab.Access(ctx, "only-in-a"); !errors.Is(err, imfs.ErrNotFound) {
		t.Fatalf("store ab sees a's entry: %v", err)
	}
	if err := reg.Reset(ctx, "a"); err != nil {
		t.Fatal(err)
	}
	if err := ab.Access(ctx, "math"); err != nil {
		t.Fatalf("resetting a touched ab: %v", err)
	}
	if got := reg.IDs(); !slices.Equal(got, []string{"a", "ab"}) {
		t.Fatalf("IDs = %v", got)
	}
}

func TestRegistryPersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	open := func() (*kv.Badger, *imfs.Registry) {
		db, err := kv.NewBadger(kv.BadgerOptions{Options: index.KeyOptions, Dir: dir})
		if err != nil {
			t.Fatal(err)
		}
		return db, imfs.NewRegistry(imfs.RegistryOptions{
			Backend: imfs.KVBackend(db, imfs.KVBlobs(db, blob.Codec{Compression: blob.CompressionLZ4})),
			Seed:    imfs.FixtureDirs,
		})
	}

	db, reg := open()
	s, err := reg.Open(ctx, "disk")
	if err != nil {
		t.Fatal(err)
	}
	if err := s.WriteFile(ctx, "math/pi.txt", []byte("3.14"), true); err != nil {
		t.Fatal(err)
	}
	reg.Close()
	db.Close()

	db, reg = open()
	defer db.Close()
	s, err = reg.Open(ctx, "disk")
	if err != nil {
		t.Fatal(err)
	}
	got, err := s.ReadFile(ctx, "math/pi.txt")
	if err != nil || string(got) != "3.14" {
		t.Fatalf("after reopen = %q, %v", got, err)
	}
}

func TestRegistryLocalBlobs(t *testing.T) {
	ctx := context.Background()
	reg := imfs.NewRegistry(imfs.RegistryOptions{
		Backend: imfs.KVBackend(kv.NewMemory(index.KeyOptions), imfs.LocalBlobs(t.TempDir(), blob.Codec{})),
	})
	s, err := reg.Open(ctx, "local")
	if err != nil {
		t.Fatal(err)
	}
	if err := s.WriteFile(ctx, "a.txt", []byte("on disk"), true); err != nil {
		t.Fatal(err)
	}
	got, err := s.ReadFile(ctx, "a.txt")
	if err != nil || string(got) != "on disk" {
		t.Fatalf("ReadFile = %q, %v", got, err)
	}
}

func TestRegistryDispose(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemory(index.KeyOptions)
	reg := imfs.NewRegistry(imfs.RegistryOptions{
		Backend: imfs.KVBackend(store, imfs.KVBlobs(store, blob.Codec{})),
		Seed:    []string{"seeded"},
	})
	s, _ := reg.Open(ctx, "tmp")
	if err := s.WriteFile(ctx, "x", []byte("x"), true); err != nil {
		t.Fatal(err)
	}
	if err := reg.Dispose(ctx, "tmp"); err != nil {
		t.Fatalf("Dispose: %v", err)
	}
	if store.Len() != 0 {
		t.Fatalf("Dispose left %d entries", store.Len())
	}
	if _, ok := reg.Get("tmp"); ok {
		t.Fatal("disposed session still registered")
	}
	s, _ = reg.Open(ctx, "tmp")
	if got := names(t, s, ""); !slices.Equal(got, []string{"seeded"}) {
		t.Fatalf("reopened store = %v", got)
	}
}

func TestRegistryRejectsBadIDs(t *testing.T) {
	reg := imfs.NewRegistry(imfs.RegistryOptions{})
	for _, id := range []string{"", "a/b", "a\x00"} {
		if _, err := reg.Open(context.Background(), id); !errors.Is(err, imfs.ErrInvalidPath) {
			t.Errorf("Open(%q) = %v, want ErrInvalidPath", id, err)
		}
	}
}

func TestRegistryClosed(t *testing.T) {
	reg := imfs.NewRegistry(imfs.RegistryOptions{})
	reg.Close()
	if _, err := reg.Open(context.Background(), "a"); !errors.Is(err, imfs.ErrClosed) {
		t.Fatalf("Open after Close = %v, want ErrClosed", err)
	}
}

func TestSessionRejectsBadSeed(t *testing.T) {
	reg := imfs.NewRegistry(imfs.RegistryOptions{Seed: []string{"/abs"}})
	if _, err := reg.Open(context.Background(), "a"); !errors.Is(err, imfs.ErrInvalidPath) {
		t.Fatalf("Open with bad seed = %v, want ErrInvalidPath", err)
	}
}
