// Package storetest holds the behaviour every store.BlobStore adapter must share.
package storetest

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"storefront/backend/internal/store"
)

func Run(t *testing.T, s store.BlobStore, keyPrefix string) {
	t.Helper()
	ctx := context.Background()
	key := keyPrefix + "cart:contract"

	t.Cleanup(func() {
		_ = s.Delete(ctx, key)
	})

	if _, err := s.Get(ctx, key); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for absent key, got %v", err)
	}

	if err := s.Set(ctx, key, []byte(`[{"name":"Red Mug","price":2.1}]`)); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	got, err := s.Get(ctx, key)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if !bytes.Equal(got, []byte(`[{"name":"Red Mug","price":2.1}]`)) {
		t.Fatalf("unexpected payload %q", got)
	}

	if err := s.Set(ctx, key, []byte(`[]`)); err != nil {
		t.Fatalf("overwrite failed: %v", err)
	}
	got, err = s.Get(ctx, key)
	if err != nil || string(got) != "[]" {
		t.Fatalf("expected overwritten payload, got %q (%v)", got, err)
	}

	if err := s.Delete(ctx, key); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, err := s.Get(ctx, key); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if err := s.Delete(ctx, key); err != nil {
		t.Fatalf("deleting an absent key must not fail: %v", err)
	}

	if err := s.Set(ctx, "", []byte("x")); !errors.Is(err, store.ErrInvalidKey) {
		t.Fatalf("expected ErrInvalidKey for empty key, got %v", err)
	}
}
