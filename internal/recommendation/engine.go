package recommendation

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"storefront/backend/internal/cache"
	"storefront/backend/internal/catalog"
	"storefront/backend/internal/domain"
	"storefront/backend/internal/logging"
	"storefront/backend/internal/metrics"
	"storefront/backend/internal/rules"
)

const DefaultLimit = 6

type Engine struct {
	cache    cache.RecommendationCache
	cacheTTL time.Duration
}

func NewEngine(cacheStore cache.RecommendationCache, cacheTTL time.Duration) *Engine {
	if cacheStore == nil {
		cacheStore = cache.NoopRecommendationCache{}
	}
	if cacheTTL <= 0 {
		cacheTTL = 20 * time.Second
	}

	return &Engine{
		cache:    cacheStore,
		cacheTTL: cacheTTL,
	}
}

// Recommend returns at most limit suggestions for the cart, highest expected
// utility first. The result depends only on the set of case-folded cart names
// and the content of the rule set and catalog, so it is cached under those.
func (e *Engine) Recommend(
	ctx context.Context,
	cart []domain.CartItem,
	ruleSet *rules.Set,
	products *catalog.Catalog,
	limit int,
) []domain.Suggestion {
	startedAt := time.Now()
	suggestions := e.recommend(ctx, cart, ruleSet, products, limit)
	metrics.RecommendationDuration.Observe(time.Since(startedAt).Seconds())
	metrics.RecommendationResults.Observe(float64(len(suggestions)))
	return suggestions
}

func (e *Engine) recommend(
	ctx context.Context,
	cart []domain.CartItem,
	ruleSet *rules.Set,
	products *catalog.Catalog,
	limit int,
) []domain.Suggestion {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if len(cart) == 0 || ruleSet.Len() == 0 {
		return []domain.Suggestion{}
	}

	cartNames := foldedNames(cart)
	cacheKey := buildCacheKey(cartNames, dataVersion(ruleSet, products), limit)
	if cached, ok, err := e.cache.Get(ctx, cacheKey); err != nil {
		logging.Debug().Err(err).Msg("recommendation cache read failed")
	} else if ok {
		metrics.RecommendationCacheHits.Inc()
		return cached
	}

	suggestions := Rank(cartNames, ruleSet, products, limit)

	if err := e.cache.Set(ctx, cacheKey, suggestions, e.cacheTTL); err != nil {
		logging.Debug().Err(err).Msg("recommendation cache write failed")
	}
	return suggestions
}

// dataVersion names the rule and catalog content a result was computed from.
// It is content-derived so processes sharing a cache agree on it.
func dataVersion(ruleSet *rules.Set, products *catalog.Catalog) string {
	return ruleSet.Fingerprint() + "/" + products.Fingerprint()
}

// Rank runs the selection pipeline against a set of case-folded cart names:
// rules whose whole antecedent is in the cart, minus rules suggesting
// something already in the cart, one rule per consequent (highest utility,
// first seen on ties), priced from the catalog, sorted and truncated.
func Rank(cartNames map[string]struct{}, ruleSet *rules.Set, products *catalog.Catalog, limit int) []domain.Suggestion {
	if len(cartNames) == 0 || ruleSet.Len() == 0 {
		return []domain.Suggestion{}
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	best := make(map[string]domain.AssociationRule)
	order := make([]string, 0)

	ruleSet.Each(func(rule domain.AssociationRule) bool {
		if !antecedentSatisfied(rule.Input, cartNames) {
			return true
		}
		key := domain.FoldName(rule.Suggest)
		if _, inCart := cartNames[key]; inCart {
			return true
		}

		current, seen := best[key]
		if !seen {
			order = append(order, key)
			best[key] = rule
			return true
		}
		if rule.ExpectedUtility > current.ExpectedUtility {
			best[key] = rule
		}
		return true
	})

	suggestions := make([]domain.Suggestion, 0, len(order))
	for _, key := range order {
		rule := best[key]
		var priceCents int64
		if product, ok := products.FindByName(rule.Suggest); ok {
			priceCents = product.PriceCents
		}
		suggestions = append(suggestions, domain.Suggestion{
			Suggest:         rule.Suggest,
			PriceCents:      priceCents,
			Price:           domain.CentsToPrice(priceCents),
			ExpectedUtility: rule.ExpectedUtility,
			BasedOn:         append([]string(nil), rule.Input...),
		})
	}

	sort.SliceStable(suggestions, func(i, j int) bool {
		return suggestions[i].ExpectedUtility > suggestions[j].ExpectedUtility
	})

	if len(suggestions) > limit {
		suggestions = suggestions[:limit]
	}
	return suggestions
}

func antecedentSatisfied(input []string, cartNames map[string]struct{}) bool {
	for _, item := range input {
		if _, ok := cartNames[domain.FoldName(item)]; !ok {
			return false
		}
	}
	return true
}

func foldedNames(cart []domain.CartItem) map[string]struct{} {
	names := make(map[string]struct{}, len(cart))
	for _, item := range cart {
		names[domain.FoldName(item.Name)] = struct{}{}
	}
	return names
}

func buildCacheKey(cartNames map[string]struct{}, version string, limit int) string {
	names := make([]string, 0, len(cartNames))
	for name := range cartNames {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names)+2)
	parts = append(parts, "v:"+version)
	parts = append(parts, fmt.Sprintf("l:%d", limit))
	parts = append(parts, names...)

	hash := sha1.Sum([]byte(strings.Join(parts, "\x1f")))
	return "storefront:recommendation:" + hex.EncodeToString(hash[:])
}
