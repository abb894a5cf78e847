package cache

import (
	"context"
	"errors"
	"time"

	"github.com/goccy/go-json"
	redis "github.com/redis/go-redis/v9"

	"storefront/backend/internal/domain"
)

type RedisRecommendationCache struct {
	client redis.UniversalClient
}

func NewRedisRecommendationCache(client redis.UniversalClient) *RedisRecommendationCache {
	return &RedisRecommendationCache{client: client}
}

func (c *RedisRecommendationCache) Get(ctx context.Context, key string) ([]domain.Suggestion, bool, error) {
	val, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var suggestions []domain.Suggestion
	if err := json.Unmarshal(val, &suggestions); err != nil {
		return nil, false, err
	}
	return suggestions, true, nil
}

func (c *RedisRecommendationCache) Set(ctx context.Context, key string, value []domain.Suggestion, ttl time.Duration) error {
	if value == nil {
		value = []domain.Suggestion{}
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, payload, ttl).Err()
}
