package cache

import (
	"context"
	"time"

	"drinkpos/backend/internal/domain"
)

const ActivePromotionsKey = "promotions:active"

// PromotionCache holds the active promotion pool between catalog writes.
type PromotionCache interface {
	GetPromotions(ctx context.Context, key string) ([]domain.Promotion, bool, error)
	SetPromotions(ctx context.Context, key string, value []domain.Promotion, ttl time.Duration) error
	Invalidate(ctx context.Context, keys ...string) error
}

type NoopPromotionCache struct{}

func (NoopPromotionCache) GetPromotions(_ context.Context, _ string) ([]domain.Promotion, bool, error) {
	return nil, false, nil
}

func (NoopPromotionCache) SetPromotions(_ context.Context, _ string, _ []domain.Promotion, _ time.Duration) error {
	return nil
}

func (NoopPromotionCache) Invalidate(_ context.Context, _ ...string) error {
	return nil
}
