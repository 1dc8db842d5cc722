package cache

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"drinkpos/backend/internal/domain"
)

func TestRedisPromotionCacheRoundTrip(t *testing.T) {
	addr := os.Getenv("DRINKPOS_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("set DRINKPOS_TEST_REDIS_ADDR to run redis integration test")
	}

	ctx := context.Background()
	c := NewRedisPromotionCache(addr, "", 0)
	t.Cleanup(func() {
		_ = c.Close()
	})
	if err := c.Ping(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}

	key := fmt.Sprintf("test:promotions:%d", time.Now().UnixNano())
	t.Cleanup(func() {
		_ = c.Invalidate(ctx, key)
	})

	if _, ok, err := c.GetPromotions(ctx, key); err != nil || ok {
		t.Fatalf("expected miss before set, got ok=%t err=%v", ok, err)
	}

	promo := domain.Promotion{
		ID:        "promo-cache",
		Name:      "Cached",
		Type:      domain.PromotionDiscount,
		Condition: domain.PercentDiscount{DiscountPercent: decimal.NewFromInt(5), MinimumAmount: decimal.Zero},
		StartDate: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		Active:    true,
	}
	if err := c.SetPromotions(ctx, key, []domain.Promotion{promo}, time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}

	got, ok, err := c.GetPromotions(ctx, key)
	if err != nil || !ok || len(got) != 1 {
		t.Fatalf("expected one cached promotion, got %v ok=%t err=%v", got, ok, err)
	}
	if _, isDiscount := got[0].Condition.(domain.PercentDiscount); !isDiscount {
		t.Fatalf("expected condition type to survive the cache, got %T", got[0].Condition)
	}

	if err := c.Invalidate(ctx, key); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if _, ok, _ := c.GetPromotions(ctx, key); ok {
		t.Fatalf("expected miss after invalidate")
	}
}
