// Package imfs implements a hierarchical file store on a flat, sorted
// path index.
//
// A Session owns one index.Index and one blob.Store. Directory records and
// file records live in the index under their materialized path; file bytes
// live in the blob store and are referenced by ID. All file operations are
// methods on Session, and a Registry maps store IDs to Sessions.
//
// Writes are deferred: OpenWrite binds the file to an empty blob right away,
// buffers everything written, and stores the content in one piece when the
// Writer is closed. A Writer that is never closed leaves an empty file.
package imfs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/haivivi/imfs/pkg/blob"
	"github.com/haivivi/imfs/pkg/index"
	"github.com/haivivi/imfs/pkg/vpath"
)

// FixtureDirs is the seed used by test stores: three empty top-level
// directories.
var FixtureDirs = []string{"history", "math", "Spanish"}

// Options configures a Session.
type Options struct {
	// Index holds the records. Required.
	Index index.Index

	// Blobs holds file content. Required.
	Blobs blob.Store

	// Logger is optional. If nil, uses slog.Default().
	Logger *slog.Logger

	// Seed lists directories created when the session is opened and again
	// after every Reset. Nested entries ("a/b") create their ancestors.
	Seed []string
}

// Session is one isolated store: an index plus the blobs its files
// reference.
//
// A Session is safe for concurrent use. Mutations are serialized; reads
// share a lock. A listing reflects the index at the moment it was taken.
type Session struct {
	id     string
	index  index.Index
	blobs  blob.Store
	seed   []string
	logger *slog.Logger

	mu sync.RWMutex
}

// NewSession creates a session over the given index and blob store and
// applies the seed. Seeding is idempotent, so reopening a persistent store
// leaves existing entries alone.
func NewSession(ctx context.Context, id string, opts Options) (*Session, error) {
	if opts.Index == nil || opts.Blobs == nil {
		return nil, errors.New("imfs: session needs an index and a blob store")
	}
	for _, p := range opts.Seed {
		if err := vpath.Validate(p); err != nil || p == vpath.Root {
			return nil, fmt.Errorf("imfs: bad seed entry %q: %w", p, ErrInvalidPath)
		}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Session{
		id:     id,
		index:  opts.Index,
		blobs:  opts.Blobs,
		seed:   opts.Seed,
		logger: logger.With("store", id),
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.applySeed(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// ID returns the store ID the session was opened under.
func (s *Session) ID() string {
	return s.id
}

// Reset removes every record and blob and re-applies the seed.
func (s *Session) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.clear(ctx); err != nil {
		return err
	}
	s.logger.Debug("reset")
	return s.applySeed(ctx)
}

func (s *Session) clear(ctx context.Context) error {
	if err := s.index.Clear(ctx); err != nil {
		return fmt.Errorf("imfs: clear index: %w", err)
	}
	if err := s.blobs.Clear(ctx); err != nil {
		return fmt.Errorf("imfs: clear blobs: %w", err)
	}
	return nil
}

func (s *Session) applySeed(ctx context.Context) error {
	for _, p := range s.seed {
		if err := s.mkdirAll(ctx, "seed", p); err != nil {
			return err
		}
	}
	return nil
}
