package blob

import (
	"context"
	"errors"
	"fmt"

	"github.com/haivivi/imfs/pkg/kv"
)

// KV keeps blobs as values in a kv.Store, one key per blob:
//
//	{prefix}:{id} → framed bytes
//
// Index records and blobs of a session can then live in the same Badger
// database.
type KV struct {
	store  kv.Store
	prefix kv.Key
	codec  Codec
}

// NewKV creates a blob store scoped under prefix in store.
func NewKV(store kv.Store, prefix kv.Key, codec Codec) *KV {
	return &KV{store: store, prefix: prefix, codec: codec}
}

func (s *KV) key(id ID) kv.Key {
	return s.prefix.Append(string(id))
}

func (s *KV) Put(ctx context.Context, data []byte) (ID, error) {
	framed, err := s.codec.Encode(data)
	if err != nil {
		return "", err
	}
	id := NewID()
	if err := s.store.Set(ctx, s.key(id), framed); err != nil {
		return "", fmt.Errorf("blob: put %s: %w", id, err)
	}
	return id, nil
}

func (s *KV) Get(ctx context.Context, id ID) ([]byte, error) {
	framed, err := s.store.Get(ctx, s.key(id))
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return nil, fmt.Errorf("blob: get %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("blob: get %s: %w", id, err)
	}
	return s.codec.Decode(framed)
}

func (s *KV) Delete(ctx context.Context, id ID) error {
	return s.store.Delete(ctx, s.key(id))
}

func (s *KV) Clear(ctx context.Context) error {
	var keys []kv.Key
	for entry, err := range s.store.List(ctx, s.prefix) {
		if err != nil {
			return err
		}
		keys = append(keys, entry.Key)
	}
	if len(keys) == 0 {
		return nil
	}
	return s.store.BatchDelete(ctx, keys)
}
