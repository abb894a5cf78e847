package store

import (
	"context"
	"errors"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrInvalidKey = errors.New("invalid key")
)

// BlobStore persists opaque payloads under string keys. Set replaces the whole
// value; readers never observe a partially written payload.
type BlobStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}
