package imfs

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/haivivi/imfs/pkg/blob"
	"github.com/haivivi/imfs/pkg/index"
	"github.com/haivivi/imfs/pkg/kv"
)

// KV key layout for a store with ID {id}:
//
//	imfs/{id}/r/{materialized path}  → index record
//	imfs/{id}/b/{blob id}            → blob (KV blob backend only)

// Namespace returns the key prefix under which a store keeps its data.
func Namespace(id string) kv.Key {
	return kv.Key{"imfs", id}
}

// Backend creates the index and blob store for a store ID. It is called
// once per ID by the Registry.
type Backend func(ctx context.Context, id string) (index.Index, blob.Store, error)

// BlobFactory creates the blob store for a store ID.
type BlobFactory func(id string) (blob.Store, error)

// MemoryBackend keeps every store in its own in-memory B-tree; blobs share
// the tree. Nothing survives the process.
func MemoryBackend(codec blob.Codec) Backend {
	return func(ctx context.Context, id string) (index.Index, blob.Store, error) {
		store := kv.NewMemory(index.KeyOptions)
		return KVBackend(store, KVBlobs(store, codec))(ctx, id)
	}
}

// KVBackend keeps the indexes of all stores in one shared kv.Store, each
// under its Namespace. The store must encode keys with index.KeyOptions.
// blobs picks where file content goes.
func KVBackend(store kv.Store, blobs BlobFactory) Backend {
	return func(_ context.Context, id string) (index.Index, blob.Store, error) {
		ix, err := index.NewKV(store, Namespace(id).Append("r"))
		if err != nil {
			return nil, nil, err
		}
		bs, err := blobs(id)
		if err != nil {
			return nil, nil, err
		}
		return ix, bs, nil
	}
}

// KVBlobs stores content in store next to the index records.
func KVBlobs(store kv.Store, codec blob.Codec) BlobFactory {
	return func(id string) (blob.Store, error) {
		return blob.NewKV(store, Namespace(id).Append("b"), codec), nil
	}
}

// LocalBlobs stores content as files under root/{id}.
func LocalBlobs(root string, codec blob.Codec) BlobFactory {
	return func(id string) (blob.Store, error) {
		return blob.NewLocal(filepath.Join(root, id), codec)
	}
}

// S3Blobs stores content as objects under prefix/{id} in bucket.
func S3Blobs(client blob.S3Client, bucket, prefix string, codec blob.Codec) BlobFactory {
	return func(id string) (blob.Store, error) {
		return blob.NewS3(client, bucket, path.Join(prefix, id), codec), nil
	}
}

// RegistryOptions configures a Registry.
type RegistryOptions struct {
	// Backend creates the storage for each store. If nil, uses
	// MemoryBackend without compression.
	Backend Backend

	// Seed lists directories every store starts with, e.g. FixtureDirs.
	Seed []string

	// Logger is optional. If nil, uses slog.Default().
	Logger *slog.Logger
}

// Registry maps store IDs to Sessions, creating each on first use.
type Registry struct {
	backend Backend
	seed    []string
	logger  *slog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
	closed   bool
}

// NewRegistry creates an empty registry.
func NewRegistry(opts RegistryOptions) *Registry {
	backend := opts.Backend
	if backend == nil {
		backend = MemoryBackend(blob.Codec{})
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		backend:  backend,
		seed:     opts.Seed,
		logger:   logger,
		sessions: make(map[string]*Session),
	}
}

// ValidateID checks that id can name a store: non-empty, no '/', no NUL.
func ValidateID(id string) error {
	if id == "" || strings.ContainsAny(id, "/\x00") {
		return fmt.Errorf("imfs: store id %q: %w", id, ErrInvalidPath)
	}
	return nil
}

// Open returns the session for id, creating it on first use.
func (r *Registry) Open(ctx context.Context, id string) (*Session, error) {
	if err := ValidateID(id); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, fmt.Errorf("imfs: registry: %w", ErrClosed)
	}
	if s, ok := r.sessions[id]; ok {
		return s, nil
	}
	ix, blobs, err := r.backend(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("imfs: open store %q: %w", id, err)
	}
	s, err := NewSession(ctx, id, Options{
		Index:  ix,
		Blobs:  blobs,
		Logger: r.logger,
		Seed:   r.seed,
	})
	if err != nil {
		return nil, fmt.Errorf("imfs: open store %q: %w", id, err)
	}
	r.sessions[id] = s
	r.logger.Info("store opened", "store", id)
	return s, nil
}

// Get returns the session for id if it is open.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Reset returns the store to its seeded initial state, opening it first if
// needed.
func (r *Registry) Reset(ctx context.Context, id string) error {
	s, err := r.Open(ctx, id)
	if err != nil {
		return err
	}
	if err := s.Reset(ctx); err != nil {
		return err
	}
	r.logger.Info("store reset", "store", id)
	return nil
}

// Dispose deletes all data of the store and forgets its session. A later
// Open starts from the seed again.
func (r *Registry) Dispose(ctx context.Context, id string) error {
	s, err := r.Open(ctx, id)
	if err != nil {
		return err
	}
	s.mu.Lock()
	err = s.clear(ctx)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	r.mu.Lock()
	delete(r.sessions, id)
	r.mu.Unlock()
	r.logger.Info("store disposed", "store", id)
	return nil
}

// IDs returns the IDs of the open stores in ascending order.
func (r *Registry) IDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Close forgets every session. Stored data is kept; the kv.Store behind a
// KVBackend belongs to the caller and is not closed.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	clear(r.sessions)
	return nil
}
