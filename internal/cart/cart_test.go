package cart

import (
	"context"
	"errors"
	"sync"
	"testing"

	"storefront/backend/internal/domain"
	"storefront/backend/internal/store"
	"storefront/backend/internal/store/memory"
)

type recordingNotifier struct {
	mu     sync.Mutex
	added  []string
	counts []int
}

func (n *recordingNotifier) ItemAdded(_ context.Context, _ string, item domain.CartItem) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.added = append(n.added, item.Name)
}

func (n *recordingNotifier) CountChanged(_ context.Context, _ string, count int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.counts = append(n.counts, count)
}

type failingStore struct {
	store.BlobStore
	failSet    bool
	failGet    bool
	failDelete bool
}

func (f failingStore) Get(ctx context.Context, key string) ([]byte, error) {
	if f.failGet {
		return nil, errors.New("read boom")
	}
	return f.BlobStore.Get(ctx, key)
}

func (f failingStore) Set(ctx context.Context, key string, value []byte) error {
	if f.failSet {
		return errors.New("write boom")
	}
	return f.BlobStore.Set(ctx, key, value)
}

func (f failingStore) Delete(ctx context.Context, key string) error {
	if f.failDelete {
		return errors.New("delete boom")
	}
	return f.BlobStore.Delete(ctx, key)
}

// flakyStore fails the next failGets reads and then behaves normally.
type flakyStore struct {
	store.BlobStore
	mu       sync.Mutex
	failGets int
}

func (f *flakyStore) Get(ctx context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	fail := f.failGets > 0
	if fail {
		f.failGets--
	}
	f.mu.Unlock()
	if fail {
		return nil, errors.New("read timeout")
	}
	return f.BlobStore.Get(ctx, key)
}

func (f *flakyStore) failNext(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failGets = n
}

var (
	redMug  = domain.CartItem{Name: "Red Mug", PriceCents: 210}
	blueMug = domain.CartItem{Name: "Blue Mug", PriceCents: 250}
)

func TestGetEmptyWhenNothingStored(t *testing.T) {
	s := New(memory.New(), nil)
	items := s.Get(context.Background(), "session-a")
	if items == nil || len(items) != 0 {
		t.Fatalf("expected empty non-nil cart, got %+v", items)
	}
	if s.Total(context.Background(), "session-a") != 0 {
		t.Fatalf("expected zero total for empty cart")
	}
}

func TestAddAppendsAndTotals(t *testing.T) {
	notifier := &recordingNotifier{}
	s := New(memory.New(), notifier)
	ctx := context.Background()

	if _, err := s.Add(ctx, "session-a", redMug); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	items, err := s.Add(ctx, "session-a", blueMug)
	if err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if len(items) != 2 || items[0].Name != "Red Mug" || items[1].Name != "Blue Mug" {
		t.Fatalf("unexpected cart order: %+v", items)
	}

	if got := s.Total(ctx, "session-a"); got != 460 {
		t.Fatalf("expected total 460 cents, got %d", got)
	}
	if len(notifier.added) != 2 || notifier.counts[len(notifier.counts)-1] != 2 {
		t.Fatalf("expected acknowledgements and count refresh, got %+v %+v", notifier.added, notifier.counts)
	}
}

func TestAddPermitsDuplicates(t *testing.T) {
	s := New(memory.New(), nil)
	ctx := context.Background()
	_, _ = s.Add(ctx, "s", redMug)
	_, _ = s.Add(ctx, "s", redMug)

	if s.Count(ctx, "s") != 2 {
		t.Fatalf("expected duplicate entries to be kept")
	}
}

func TestCartsAreScopedPerSession(t *testing.T) {
	s := New(memory.New(), nil)
	ctx := context.Background()
	_, _ = s.Add(ctx, "a", redMug)

	if s.Count(ctx, "b") != 0 {
		t.Fatalf("session b must not see session a's cart")
	}
}

func TestRemoveAt(t *testing.T) {
	s := New(memory.New(), nil)
	ctx := context.Background()
	_, _ = s.Add(ctx, "s", redMug)
	_, _ = s.Add(ctx, "s", blueMug)
	_, _ = s.Add(ctx, "s", redMug)

	items, err := s.RemoveAt(ctx, "s", 1)
	if err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	if len(items) != 2 || items[0].Name != "Red Mug" || items[1].Name != "Red Mug" {
		t.Fatalf("expected the middle entry to be removed, got %+v", items)
	}
	if got := s.Get(ctx, "s"); len(got) != 2 {
		t.Fatalf("expected persisted length 2, got %d", len(got))
	}
}

func TestRemoveAtOutOfRangeIsNoop(t *testing.T) {
	notifier := &recordingNotifier{}
	s := New(memory.New(), notifier)
	ctx := context.Background()
	_, _ = s.Add(ctx, "s", redMug)
	countsBefore := len(notifier.counts)

	for _, idx := range []int{-1, 1, 99} {
		items, err := s.RemoveAt(ctx, "s", idx)
		if err != nil {
			t.Fatalf("remove(%d) returned error: %v", idx, err)
		}
		if len(items) != 1 {
			t.Fatalf("remove(%d) changed the cart: %+v", idx, items)
		}
	}
	if s.Count(ctx, "s") != 1 {
		t.Fatalf("expected cart to be unchanged")
	}
	if len(notifier.counts) != countsBefore {
		t.Fatalf("no-op removal must not signal a count change")
	}
}

func TestClearDeletesRecord(t *testing.T) {
	blobs := memory.New()
	s := New(blobs, nil)
	ctx := context.Background()
	_, _ = s.Add(ctx, "s", redMug)

	if err := s.Clear(ctx, "s"); err != nil {
		t.Fatalf("clear failed: %v", err)
	}
	if _, err := blobs.Get(ctx, "cart:s"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected persisted record to be deleted, got %v", err)
	}
	if s.Count(ctx, "s") != 0 {
		t.Fatalf("expected empty cart after clear")
	}
}

func TestCorruptPayloadIsEmptyCart(t *testing.T) {
	blobs := memory.New()
	ctx := context.Background()
	for _, payload := range []string{`not json`, `{"name":"x"}`, `[{"name":"","price":1}]`, `[{"name":"x","price":-3}]`} {
		if err := blobs.Set(ctx, "cart:s", []byte(payload)); err != nil {
			t.Fatalf("seed failed: %v", err)
		}
		s := New(blobs, nil)
		if got := s.Get(ctx, "s"); len(got) != 0 {
			t.Fatalf("expected corrupt payload %q to read as empty, got %+v", payload, got)
		}
	}

	s := New(blobs, nil)
	items, err := s.Add(ctx, "s", redMug)
	if err != nil || len(items) != 1 {
		t.Fatalf("expected add over corrupt payload to start fresh, got %+v (%v)", items, err)
	}
}

func TestReadFailureIsEmptyCart(t *testing.T) {
	s := New(failingStore{BlobStore: memory.New(), failGet: true}, nil)
	if got := s.Get(context.Background(), "s"); len(got) != 0 {
		t.Fatalf("expected empty cart on read failure, got %+v", got)
	}
}

func TestMutationAfterReadFailureKeepsStoredCart(t *testing.T) {
	blobs := &flakyStore{BlobStore: memory.New()}
	notifier := &recordingNotifier{}
	s := New(blobs, notifier)
	ctx := context.Background()
	_, _ = s.Add(ctx, "s", redMug)
	_, _ = s.Add(ctx, "s", blueMug)
	addedBefore := len(notifier.added)

	blobs.failNext(1)
	if _, err := s.Add(ctx, "s", redMug); err == nil {
		t.Fatalf("expected add to fail when the cart cannot be read")
	}
	if len(notifier.added) != addedBefore {
		t.Fatalf("failed add must not be acknowledged")
	}

	blobs.failNext(1)
	if _, err := s.RemoveAt(ctx, "s", 0); err == nil {
		t.Fatalf("expected remove to fail when the cart cannot be read")
	}

	items := s.Get(ctx, "s")
	if len(items) != 2 || items[0].Name != "Red Mug" || items[1].Name != "Blue Mug" {
		t.Fatalf("expected both stored items to survive, got %+v", items)
	}
}

func TestWriteFailureIsReported(t *testing.T) {
	notifier := &recordingNotifier{}
	s := New(failingStore{BlobStore: memory.New(), failSet: true, failDelete: true}, notifier)
	ctx := context.Background()

	if _, err := s.Add(ctx, "s", redMug); err == nil {
		t.Fatalf("expected add to fail when the store cannot write")
	}
	if len(notifier.added) != 0 {
		t.Fatalf("failed add must not be acknowledged")
	}
	if err := s.Clear(ctx, "s"); err == nil {
		t.Fatalf("expected clear to fail when the store cannot delete")
	}
}

func TestEncodeDecodeUsesDecimalPrices(t *testing.T) {
	raw, err := Encode([]domain.CartItem{redMug})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if string(raw) != `[{"name":"Red Mug","price":2.1}]` {
		t.Fatalf("unexpected payload %s", raw)
	}

	items, err := Decode([]byte(`[{"name":"Blue Mug","price":2.50}]`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(items) != 1 || items[0].PriceCents != 250 {
		t.Fatalf("unexpected items %+v", items)
	}

	if _, err := Decode([]byte(`oops`)); !errors.Is(err, ErrStorageCorrupt) {
		t.Fatalf("expected ErrStorageCorrupt, got %v", err)
	}
}

func TestConcurrentAddsAreSerialized(t *testing.T) {
	s := New(memory.New(), nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.Add(ctx, "shared", redMug)
		}()
	}
	wg.Wait()

	if got := s.Count(ctx, "shared"); got != 50 {
		t.Fatalf("expected 50 items after concurrent adds, got %d", got)
	}
	if got := s.Total(ctx, "shared"); got != 50*210 {
		t.Fatalf("unexpected total %d", got)
	}

	s.mu.Lock()
	held := len(s.locks)
	s.mu.Unlock()
	if held != 0 {
		t.Fatalf("expected session locks to be released, %d left", held)
	}
}

func TestSessionLocksDoNotAccumulate(t *testing.T) {
	s := New(memory.New(), nil)
	ctx := context.Background()
	for _, sessionID := range []string{"a", "b", "c"} {
		_, _ = s.Add(ctx, sessionID, redMug)
		_, _ = s.RemoveAt(ctx, sessionID, 5)
		_ = s.Clear(ctx, sessionID)
	}

	if len(s.locks) != 0 {
		t.Fatalf("expected no locks after mutations finished, got %d", len(s.locks))
	}
}
