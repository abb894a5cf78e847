package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"storefront/backend/internal/cart"
	"storefront/backend/internal/catalog"
	"storefront/backend/internal/domain"
	"storefront/backend/internal/logging"
	"storefront/backend/internal/metrics"
	"storefront/backend/internal/recommendation"
	"storefront/backend/internal/rules"
	"storefront/backend/internal/source"
)

var (
	ErrUnknownProduct = errors.New("unknown product")
	ErrInvalidRequest = errors.New("invalid request")
	ErrEmptyCart      = errors.New("cart is empty")
	ErrNoSession      = errors.New("missing session")
)

type Fetcher interface {
	Fetch(ctx context.Context, location string) ([]byte, error)
}

type Sources struct {
	Catalog string
	Rules   string
}

// Snapshot is the catalog and rule set produced by one successful load.
type Snapshot struct {
	Catalog    *catalog.Catalog
	Rules      *rules.Set
	Generation uint64
	LoadedAt   time.Time
}

type Service struct {
	fetcher     Fetcher
	sources     Sources
	recommender *recommendation.Engine
	carts       *cart.Store

	mu         sync.RWMutex
	snapshot   Snapshot
	generation uint64
}

func New(fetcher Fetcher, sources Sources, recommender *recommendation.Engine, carts *cart.Store) *Service {
	if recommender == nil {
		recommender = recommendation.NewEngine(nil, 0)
	}
	return &Service{
		fetcher:     fetcher,
		sources:     sources,
		recommender: recommender,
		carts:       carts,
		snapshot: Snapshot{
			Catalog: catalog.Empty(),
			Rules:   rules.NewSet(nil, 0),
		},
	}
}

// Load fetches and parses the catalog and the rules concurrently. The new
// snapshot replaces the current one only when both succeed; otherwise the
// previous data stays in place and a *source.LoadError is returned.
func (s *Service) Load(ctx context.Context) (Snapshot, error) {
	var (
		products []domain.Product
		ruleList []domain.AssociationRule
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		raw, err := s.fetcher.Fetch(gctx, s.sources.Catalog)
		if err != nil {
			metrics.SourceLoads.WithLabelValues("catalog", "error").Inc()
			return &source.LoadError{Source: "catalog", Err: err}
		}
		products = catalog.Parse(string(raw))
		metrics.SourceLoads.WithLabelValues("catalog", "ok").Inc()
		return nil
	})
	g.Go(func() error {
		raw, err := s.fetcher.Fetch(gctx, s.sources.Rules)
		if err == nil {
			ruleList, err = rules.Parse(raw)
		}
		if err != nil {
			metrics.SourceLoads.WithLabelValues("rules", "error").Inc()
			return &source.LoadError{Source: "rules", Err: err}
		}
		metrics.SourceLoads.WithLabelValues("rules", "ok").Inc()
		return nil
	})

	if err := g.Wait(); err != nil {
		logging.Error().Err(err).Msg("catalog/rule load failed, keeping previous data")
		return s.Snapshot(), err
	}

	s.mu.Lock()
	s.generation++
	s.snapshot = Snapshot{
		Catalog:    catalog.New(products),
		Rules:      rules.NewSet(ruleList, s.generation),
		Generation: s.generation,
		LoadedAt:   time.Now().UTC(),
	}
	snap := s.snapshot
	s.mu.Unlock()

	metrics.CatalogProducts.Set(float64(snap.Catalog.Len()))
	metrics.RuleCount.Set(float64(snap.Rules.Len()))
	logging.Info().
		Int("products", snap.Catalog.Len()).
		Int("unique_products", len(snap.Catalog.Unique())).
		Int("rules", snap.Rules.Len()).
		Uint64("generation", snap.Generation).
		Msg("catalog and rules loaded")
	return snap, nil
}

func (s *Service) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot
}

func (s *Service) ListProducts(query string, uniqueOnly bool) domain.ProductListResponse {
	products := s.Snapshot().Catalog.Select(query, uniqueOnly)
	views := make([]domain.ProductView, 0, len(products))
	for _, p := range products {
		views = append(views, toProductView(p))
	}
	return domain.ProductListResponse{Products: views, Count: len(views)}
}

func (s *Service) LookupProduct(name string) (domain.ProductView, error) {
	p, ok := s.Snapshot().Catalog.FindByName(name)
	if !ok {
		return domain.ProductView{}, ErrUnknownProduct
	}
	return toProductView(p), nil
}

func (s *Service) Cart(ctx context.Context, sessionID string) (domain.CartView, error) {
	if err := validateSession(sessionID); err != nil {
		return domain.CartView{}, err
	}
	return toCartView(s.carts.Get(ctx, sessionID)), nil
}

// AddToCart snapshots a catalog product into the cart at its catalog price.
// A request carrying a price is a suggestion being added; the only name it may
// add outside the catalog is an unpriced (zero) suggestion some rule makes.
func (s *Service) AddToCart(ctx context.Context, sessionID string, req domain.AddToCartRequest) (domain.CartView, error) {
	if err := validateSession(sessionID); err != nil {
		return domain.CartView{}, err
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.CartView{}, ErrInvalidRequest
	}
	var priceCents int64
	if req.Price != nil {
		cents, ok := domain.PriceToCents(*req.Price)
		if !ok {
			return domain.CartView{}, ErrInvalidRequest
		}
		priceCents = cents
	}

	snap := s.Snapshot()
	var item domain.CartItem
	if product, ok := snap.Catalog.FindByName(name); ok {
		item = domain.CartItemFromProduct(product)
	} else if req.Price != nil && priceCents == 0 && snap.Rules.Suggests(name) {
		item = domain.CartItem{Name: name}
	} else {
		return domain.CartView{}, ErrUnknownProduct
	}

	items, err := s.carts.Add(ctx, sessionID, item)
	if err != nil {
		return domain.CartView{}, err
	}
	view := toCartView(items)
	view.Message = fmt.Sprintf("Added %q to cart", item.Name)
	return view, nil
}

func (s *Service) RemoveFromCart(ctx context.Context, sessionID string, index int) (domain.CartView, error) {
	if err := validateSession(sessionID); err != nil {
		return domain.CartView{}, err
	}
	items, err := s.carts.RemoveAt(ctx, sessionID, index)
	if err != nil {
		return domain.CartView{}, err
	}
	return toCartView(items), nil
}

func (s *Service) ClearCart(ctx context.Context, sessionID string) (domain.CartView, error) {
	if err := validateSession(sessionID); err != nil {
		return domain.CartView{}, err
	}
	if err := s.carts.Clear(ctx, sessionID); err != nil {
		return domain.CartView{}, err
	}
	return toCartView(nil), nil
}

func (s *Service) Recommend(ctx context.Context, sessionID string, limit int) (domain.RecommendationResponse, error) {
	if err := validateSession(sessionID); err != nil {
		return domain.RecommendationResponse{}, err
	}
	snap := s.Snapshot()
	items := s.carts.Get(ctx, sessionID)
	suggestions := s.recommender.Recommend(ctx, items, snap.Rules, snap.Catalog, limit)
	return domain.RecommendationResponse{
		Suggestions: suggestions,
		Generation:  snap.Generation,
	}, nil
}

// Checkout totals the cart and empties it.
func (s *Service) Checkout(ctx context.Context, sessionID string) (domain.CheckoutResponse, error) {
	if err := validateSession(sessionID); err != nil {
		return domain.CheckoutResponse{}, err
	}
	items := s.carts.Get(ctx, sessionID)
	if len(items) == 0 {
		return domain.CheckoutResponse{}, ErrEmptyCart
	}

	total := cart.Sum(items)
	if err := s.carts.Clear(ctx, sessionID); err != nil {
		return domain.CheckoutResponse{}, err
	}

	logging.Info().Str("session", sessionID).Int("items", len(items)).Int64("total_cents", total).Msg("checkout completed")
	return domain.CheckoutResponse{
		ItemCount:    len(items),
		Total:        domain.CentsToPrice(total),
		TotalDisplay: domain.FormatPrice(total),
		Message:      fmt.Sprintf("Order placed. Total: %s", domain.FormatPrice(total)),
	}, nil
}

func validateSession(sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return ErrNoSession
	}
	return nil
}

func toProductView(p domain.Product) domain.ProductView {
	return domain.ProductView{
		Name:         p.Name,
		Price:        p.Price(),
		PriceDisplay: domain.FormatPrice(p.PriceCents),
	}
}

func toCartView(items []domain.CartItem) domain.CartView {
	lines := make([]domain.CartLine, 0, len(items))
	for i, item := range items {
		lines = append(lines, domain.CartLine{
			Index:        i,
			Name:         item.Name,
			Price:        item.Price(),
			PriceDisplay: domain.FormatPrice(item.PriceCents),
		})
	}
	total := cart.Sum(items)
	return domain.CartView{
		Items:        lines,
		Count:        len(items),
		Total:        domain.CentsToPrice(total),
		TotalDisplay: domain.FormatPrice(total),
	}
}
