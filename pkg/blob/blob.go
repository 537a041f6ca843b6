// Package blob stores immutable file contents addressed by opaque IDs.
//
// A Store never mutates stored bytes: Put always mints a new ID, and a file
// whose content changes is rebound to a new blob by its owner. Backends keep
// bytes in a kv.Store (KV), as files on local disk (Local), or as objects in
// an S3-compatible bucket (S3). All backends frame what they store with a
// Codec so content can be compressed transparently.
package blob

import (
	"context"
	"encoding/hex"
	"errors"

	"github.com/google/uuid"
	"github.com/zeebo/blake3"
)

// ErrNotFound is returned by Get when the ID is unknown.
var ErrNotFound = errors.New("blob: not found")

// ID identifies one stored blob. The zero value means "no blob".
type ID string

// NewID returns a fresh random ID.
func NewID() ID {
	return ID(uuid.NewString())
}

// Valid reports whether id is safe to use as a storage key or file name.
func (id ID) Valid() bool {
	_, err := uuid.Parse(string(id))
	return err == nil
}

// Store is the content store for file bytes.
//
// Implementations must be safe for concurrent use.
type Store interface {
	// Put stores data under a new ID and returns it.
	Put(ctx context.Context, data []byte) (ID, error)

	// Get returns the bytes stored under id, or an error wrapping
	// ErrNotFound.
	Get(ctx context.Context, id ID) ([]byte, error)

	// Delete removes the blob. Deleting an unknown ID is not an error.
	Delete(ctx context.Context, id ID) error

	// Clear removes every blob owned by this store.
	Clear(ctx context.Context) error
}

// Digest returns the hex BLAKE3-256 digest of data.
func Digest(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}
