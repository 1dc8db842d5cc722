package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	redis "github.com/redis/go-redis/v9"

	"drinkpos/backend/internal/domain"
)

type RedisPromotionCache struct {
	client redis.UniversalClient
}

func NewRedisPromotionCache(addr string, password string, db int) *RedisPromotionCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &RedisPromotionCache{client: client}
}

// NewRedisPromotionCacheWithClient wraps an existing client.
func NewRedisPromotionCacheWithClient(client redis.UniversalClient) *RedisPromotionCache {
	return &RedisPromotionCache{client: client}
}

func (c *RedisPromotionCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisPromotionCache) Close() error {
	return c.client.Close()
}

func (c *RedisPromotionCache) GetPromotions(ctx context.Context, key string) ([]domain.Promotion, bool, error) {
	val, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var promos []domain.Promotion
	if err := json.Unmarshal(val, &promos); err != nil {
		return nil, false, err
	}
	return promos, true, nil
}

func (c *RedisPromotionCache) SetPromotions(ctx context.Context, key string, value []domain.Promotion, ttl time.Duration) error {
	if value == nil {
		value = []domain.Promotion{}
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, payload, ttl).Err()
}

func (c *RedisPromotionCache) Invalidate(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}
