package cart

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/goccy/go-json"

	"storefront/backend/internal/domain"
	"storefront/backend/internal/logging"
	"storefront/backend/internal/metrics"
	"storefront/backend/internal/store"
)

const keyPrefix = "cart:"

var ErrStorageCorrupt = errors.New("stored cart is corrupt")

// Notifier receives the user-facing side effects of cart mutations.
type Notifier interface {
	ItemAdded(ctx context.Context, sessionID string, item domain.CartItem)
	CountChanged(ctx context.Context, sessionID string, count int)
}

type LogNotifier struct{}

func (LogNotifier) ItemAdded(_ context.Context, sessionID string, item domain.CartItem) {
	logging.Debug().Str("session", sessionID).Str("item", item.Name).Msg("item added to cart")
}

func (LogNotifier) CountChanged(_ context.Context, sessionID string, count int) {
	logging.Debug().Str("session", sessionID).Int("count", count).Msg("cart count changed")
}

// persistedItem is the stored wire shape: prices as two-decimal numbers.
type persistedItem struct {
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

// Store keeps one ordered cart per session in a blob store. Mutations on the
// same session run one at a time as load, change, single write.
type Store struct {
	blobs    store.BlobStore
	notifier Notifier

	mu    sync.Mutex
	locks map[string]*sessionLock
}

// sessionLock is dropped from Store.locks once no caller holds or waits on it.
type sessionLock struct {
	mu   sync.Mutex
	refs int
}

func New(blobs store.BlobStore, notifier Notifier) *Store {
	if notifier == nil {
		notifier = LogNotifier{}
	}
	return &Store{
		blobs:    blobs,
		notifier: notifier,
		locks:    make(map[string]*sessionLock),
	}
}

// Get returns the persisted cart. Absent, unreadable or corrupt state is an empty cart.
func (s *Store) Get(ctx context.Context, sessionID string) []domain.CartItem {
	return s.load(ctx, sessionID)
}

func (s *Store) Count(ctx context.Context, sessionID string) int {
	return len(s.load(ctx, sessionID))
}

// Total sums item prices in cents, recomputed from the stored items on every call.
func (s *Store) Total(ctx context.Context, sessionID string) int64 {
	return Sum(s.load(ctx, sessionID))
}

// Add appends item. A failed read aborts the mutation so the stored cart is
// never overwritten with state that was not seen.
func (s *Store) Add(ctx context.Context, sessionID string, item domain.CartItem) ([]domain.CartItem, error) {
	unlock := s.lock(sessionID)
	items, err := s.loadForUpdate(ctx, sessionID)
	if err == nil {
		items = append(items, domain.CartItem{Name: item.Name, PriceCents: item.PriceCents})
		err = s.save(ctx, sessionID, items)
	}
	unlock()
	if err != nil {
		return nil, err
	}

	metrics.CartMutations.WithLabelValues("add").Inc()
	s.notifier.ItemAdded(ctx, sessionID, item)
	s.notifier.CountChanged(ctx, sessionID, len(items))
	return items, nil
}

// RemoveAt drops the entry at index. An index outside [0, len) changes nothing.
func (s *Store) RemoveAt(ctx context.Context, sessionID string, index int) ([]domain.CartItem, error) {
	unlock := s.lock(sessionID)
	items, err := s.loadForUpdate(ctx, sessionID)
	if err != nil {
		unlock()
		return nil, err
	}
	if index < 0 || index >= len(items) {
		unlock()
		return items, nil
	}

	items = append(items[:index], items[index+1:]...)
	err = s.save(ctx, sessionID, items)
	unlock()
	if err != nil {
		return nil, err
	}

	metrics.CartMutations.WithLabelValues("remove").Inc()
	s.notifier.CountChanged(ctx, sessionID, len(items))
	return items, nil
}

func (s *Store) Clear(ctx context.Context, sessionID string) error {
	unlock := s.lock(sessionID)
	err := s.blobs.Delete(ctx, storageKey(sessionID))
	unlock()
	if err != nil {
		metrics.CartStorageErrors.WithLabelValues("write").Inc()
		return fmt.Errorf("clear cart: %w", err)
	}

	metrics.CartMutations.WithLabelValues("clear").Inc()
	s.notifier.CountChanged(ctx, sessionID, 0)
	return nil
}

func Sum(items []domain.CartItem) int64 {
	var total int64
	for _, item := range items {
		total += item.PriceCents
	}
	return total
}

// load is the read path: any failure reads as an empty cart.
func (s *Store) load(ctx context.Context, sessionID string) []domain.CartItem {
	items, err := s.loadForUpdate(ctx, sessionID)
	if err != nil {
		logging.Warn().Err(err).Str("session", sessionID).Msg("cart read failed, using empty cart")
		return []domain.CartItem{}
	}
	return items
}

// loadForUpdate treats absent and corrupt payloads as an empty cart but
// returns storage read errors.
func (s *Store) loadForUpdate(ctx context.Context, sessionID string) ([]domain.CartItem, error) {
	raw, err := s.blobs.Get(ctx, storageKey(sessionID))
	if errors.Is(err, store.ErrNotFound) {
		return []domain.CartItem{}, nil
	}
	if err != nil {
		metrics.CartStorageErrors.WithLabelValues("read").Inc()
		return nil, fmt.Errorf("read cart: %w", err)
	}

	items, err := Decode(raw)
	if err != nil {
		metrics.CartStorageErrors.WithLabelValues("corrupt").Inc()
		logging.Warn().Err(err).Str("session", sessionID).Msg("discarding unreadable cart")
		return []domain.CartItem{}, nil
	}
	return items, nil
}

func (s *Store) save(ctx context.Context, sessionID string, items []domain.CartItem) error {
	payload, err := Encode(items)
	if err != nil {
		return fmt.Errorf("encode cart: %w", err)
	}
	if err := s.blobs.Set(ctx, storageKey(sessionID), payload); err != nil {
		metrics.CartStorageErrors.WithLabelValues("write").Inc()
		return fmt.Errorf("save cart: %w", err)
	}
	return nil
}

func (s *Store) lock(sessionID string) func() {
	s.mu.Lock()
	l, ok := s.locks[sessionID]
	if !ok {
		l = &sessionLock{}
		s.locks[sessionID] = l
	}
	l.refs++
	s.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		s.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, sessionID)
		}
		s.mu.Unlock()
	}
}

func Encode(items []domain.CartItem) ([]byte, error) {
	out := make([]persistedItem, len(items))
	for i, item := range items {
		out[i] = persistedItem{Name: item.Name, Price: item.Price()}
	}
	return json.Marshal(out)
}

// Decode parses a stored cart. Any structural problem, a blank name or an
// invalid price makes the whole payload corrupt.
func Decode(raw []byte) ([]domain.CartItem, error) {
	var stored []persistedItem
	if err := json.Unmarshal(raw, &stored); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageCorrupt, err)
	}

	items := make([]domain.CartItem, 0, len(stored))
	for i, entry := range stored {
		if entry.Name == "" {
			return nil, fmt.Errorf("%w: item %d has no name", ErrStorageCorrupt, i)
		}
		cents, ok := domain.PriceToCents(entry.Price)
		if !ok {
			return nil, fmt.Errorf("%w: item %d has invalid price", ErrStorageCorrupt, i)
		}
		items = append(items, domain.CartItem{Name: entry.Name, PriceCents: cents})
	}
	return items, nil
}

func storageKey(sessionID string) string {
	return keyPrefix + sessionID
}
