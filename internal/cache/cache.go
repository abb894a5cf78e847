package cache

import (
	"context"
	"time"

	"storefront/backend/internal/domain"
)

type RecommendationCache interface {
	Get(ctx context.Context, key string) ([]domain.Suggestion, bool, error)
	Set(ctx context.Context, key string, value []domain.Suggestion, ttl time.Duration) error
}

type NoopRecommendationCache struct{}

func (NoopRecommendationCache) Get(_ context.Context, _ string) ([]domain.Suggestion, bool, error) {
	return nil, false, nil
}

func (NoopRecommendationCache) Set(_ context.Context, _ string, _ []domain.Suggestion, _ time.Duration) error {
	return nil
}
