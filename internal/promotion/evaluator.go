package promotion

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"drinkpos/backend/internal/domain"
	"drinkpos/backend/internal/period"
)

type Mode string

const (
	// ModeReferenced evaluates only promotions attached to the cart's drinks.
	ModeReferenced Mode = "referenced"
	// ModeActive evaluates every active promotion.
	ModeActive Mode = "active"
)

func ParseMode(raw string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(raw))); m {
	case "":
		return ModeReferenced, nil
	case ModeReferenced, ModeActive:
		return m, nil
	default:
		return "", fmt.Errorf("unknown evaluation mode %q", raw)
	}
}

type CartLine struct {
	DrinkID   string          `json:"drink_id"`
	Size      string          `json:"size,omitempty"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type RepricedLine struct {
	DrinkID       string          `json:"drink_id"`
	Quantity      int             `json:"quantity"`
	OriginalPrice decimal.Decimal `json:"original_price"`
	FixedPrice    decimal.Decimal `json:"fixed_price"`
}

type Effect struct {
	DiscountAmount decimal.Decimal          `json:"discount_amount"`
	FreeItems      []domain.DrinkQuantity   `json:"free_items,omitempty"`
	FreeCategory   *domain.CategoryQuantity `json:"free_category,omitempty"`
	RepricedLines  []RepricedLine           `json:"repriced_lines,omitempty"`
}

type Qualified struct {
	Promotion domain.Promotion `json:"promotion"`
	Effect    Effect           `json:"effect"`
}

// Pool selects the candidate promotions for a cart. In ModeReferenced the
// order follows first reference in the cart and ids missing from candidates
// are skipped; in ModeActive candidate order is kept.
func Pool(mode Mode, cart []CartLine, drinks map[string]domain.Drink, candidates []domain.Promotion) []domain.Promotion {
	if mode == ModeActive {
		pool := make([]domain.Promotion, 0, len(candidates))
		for _, promo := range candidates {
			if promo.Active {
				pool = append(pool, promo)
			}
		}
		return pool
	}

	byID := make(map[string]domain.Promotion, len(candidates))
	for _, promo := range candidates {
		byID[promo.ID] = promo
	}
	pool := make([]domain.Promotion, 0, len(byID))
	for _, id := range ReferencedIDs(cart, drinks) {
		if promo, ok := byID[id]; ok {
			pool = append(pool, promo)
		}
	}
	return pool
}

// ReferencedIDs lists the promotion ids attached to the cart's known drinks.
func ReferencedIDs(cart []CartLine, drinks map[string]domain.Drink) []string {
	seen := make(map[string]bool)
	ids := make([]string, 0)
	for _, line := range cart {
		drink, ok := drinks[line.DrinkID]
		if !ok {
			continue
		}
		for _, id := range drink.PromotionIDs {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	return ids
}

type pricedLine struct {
	drink    domain.Drink
	quantity int
	price    decimal.Decimal
}

// Evaluate returns the promotions from pool that the cart satisfies at now.
// It has no side effects; malformed or out-of-window promotions are skipped.
func Evaluate(cart []CartLine, pool []domain.Promotion, drinks map[string]domain.Drink, now time.Time) []Qualified {
	lines := resolve(cart, drinks)
	result := make([]Qualified, 0)
	seen := make(map[string]bool)

	for _, promo := range pool {
		if seen[promo.ID] {
			continue
		}
		seen[promo.ID] = true

		if !inWindow(promo, now) || promo.Validate() != nil {
			continue
		}

		var effect Effect
		var ok bool
		switch cond := promo.Condition.(type) {
		case domain.BuyGetFree:
			effect, ok = evalBuyGetFree(promo.ID, cond, lines, drinks)
		case domain.PercentDiscount:
			effect, ok = evalDiscount(cond, lines)
		case domain.FixedPrice:
			effect, ok = evalFixedPrice(cond, lines)
		case domain.BuyCategoryGetFree:
			effect, ok = evalBuyCategoryGetFree(cond, lines)
		}
		if ok {
			result = append(result, Qualified{Promotion: promo, Effect: effect})
		}
	}
	return result
}

func resolve(cart []CartLine, drinks map[string]domain.Drink) []pricedLine {
	lines := make([]pricedLine, 0, len(cart))
	for _, line := range cart {
		drink, ok := drinks[line.DrinkID]
		if !ok || line.Quantity < 1 {
			continue
		}
		price := line.UnitPrice
		if !price.IsPositive() {
			catalogPrice, _, found := drink.PriceFor(line.Size)
			if !found {
				catalogPrice, _, _ = drink.PriceFor("")
			}
			price = catalogPrice
		}
		lines = append(lines, pricedLine{drink: drink, quantity: line.Quantity, price: price})
	}
	return lines
}

func inWindow(promo domain.Promotion, now time.Time) bool {
	if !promo.Active {
		return false
	}
	start, _, err := period.Range(period.Day, calendarDay(promo.StartDate, now.Location()))
	if err != nil {
		return false
	}
	_, end, err := period.Range(period.Day, calendarDay(promo.EndDate, now.Location()))
	if err != nil {
		return false
	}
	return period.Contains(start, end, now)
}

// calendarDay keeps the date as written and anchors it in loc. Converting
// the instant instead would move midnight UTC onto the previous day in
// zones behind UTC.
func calendarDay(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

func evalBuyGetFree(promoID string, cond domain.BuyGetFree, lines []pricedLine, drinks map[string]domain.Drink) (Effect, bool) {
	required := cond.RequiredQuantity()
	buyDrinks := make(map[string]bool, len(cond.BuyItems))
	for _, item := range cond.BuyItems {
		buyDrinks[item.DrinkID] = true
	}

	aggregate := 0
	single := false
	for _, line := range lines {
		eligible := buyDrinks[line.drink.ID]
		if eligible {
			aggregate += line.quantity
		} else {
			for _, id := range line.drink.PromotionIDs {
				if id == promoID {
					eligible = true
					break
				}
			}
		}
		if eligible && line.quantity >= required {
			single = true
		}
	}
	if aggregate < required && !single {
		return Effect{}, false
	}

	effect := Effect{DiscountAmount: decimal.Zero, FreeItems: append([]domain.DrinkQuantity{}, cond.FreeItems...)}
	for _, free := range cond.FreeItems {
		drink, ok := drinks[free.DrinkID]
		if !ok {
			continue
		}
		price, _, _ := drink.PriceFor("")
		effect.DiscountAmount = effect.DiscountAmount.Add(price.Mul(decimal.NewFromInt(int64(free.Quantity))))
	}
	effect.DiscountAmount = effect.DiscountAmount.Round(2)
	return effect, true
}

func evalDiscount(cond domain.PercentDiscount, lines []pricedLine) (Effect, bool) {
	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(line.price.Mul(decimal.NewFromInt(int64(line.quantity))))
	}
	if total.LessThan(cond.MinimumAmount) {
		return Effect{}, false
	}
	amount := total.Mul(cond.DiscountPercent).Div(decimal.NewFromInt(100)).Round(2)
	return Effect{DiscountAmount: amount}, true
}

func evalFixedPrice(cond domain.FixedPrice, lines []pricedLine) (Effect, bool) {
	effect := Effect{DiscountAmount: decimal.Zero}
	for _, line := range lines {
		item, ok := matchFixedPrice(cond.Items, line.drink)
		if !ok {
			continue
		}
		effect.RepricedLines = append(effect.RepricedLines, RepricedLine{
			DrinkID:       line.drink.ID,
			Quantity:      line.quantity,
			OriginalPrice: line.price,
			FixedPrice:    item.FixedPrice,
		})
		if saving := line.price.Sub(item.FixedPrice); saving.IsPositive() {
			effect.DiscountAmount = effect.DiscountAmount.Add(saving.Mul(decimal.NewFromInt(int64(line.quantity))))
		}
	}
	if len(effect.RepricedLines) == 0 {
		return Effect{}, false
	}
	effect.DiscountAmount = effect.DiscountAmount.Round(2)
	return effect, true
}

// matchFixedPrice prefers a drink-specific item over a category-wide one.
func matchFixedPrice(items []domain.FixedPriceItem, drink domain.Drink) (domain.FixedPriceItem, bool) {
	var categoryMatch *domain.FixedPriceItem
	for i := range items {
		item := items[i]
		if item.DrinkID != "" {
			if item.DrinkID == drink.ID {
				return item, true
			}
			continue
		}
		if categoryMatch == nil && item.CategoryID == drink.CategoryID {
			categoryMatch = &items[i]
		}
	}
	if categoryMatch != nil {
		return *categoryMatch, true
	}
	return domain.FixedPriceItem{}, false
}

func evalBuyCategoryGetFree(cond domain.BuyCategoryGetFree, lines []pricedLine) (Effect, bool) {
	for _, buy := range cond.Buy {
		total := 0
		single := false
		for _, line := range lines {
			if line.drink.CategoryID != buy.CategoryID {
				continue
			}
			total += line.quantity
			if line.quantity >= buy.Quantity {
				single = true
			}
		}
		if total >= buy.Quantity || single {
			free := cond.Free
			return Effect{DiscountAmount: decimal.Zero, FreeCategory: &free}, true
		}
	}
	return Effect{}, false
}
