package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type PromotionType string

const (
	PromotionBuyGetFree         PromotionType = "buy_get_free"
	PromotionDiscount           PromotionType = "discount"
	PromotionFixedPrice         PromotionType = "fixed_price"
	PromotionBuyCategoryGetFree PromotionType = "buy_category_get_free"
)

var ErrInvalidPromotion = errors.New("invalid promotion")

// Condition is the type-specific payload of a promotion. Exactly one
// implementation exists per PromotionType.
type Condition interface {
	PromotionType() PromotionType
	Validate() error
}

type DrinkQuantity struct {
	DrinkID  string `json:"drink_id"`
	Quantity int    `json:"quantity"`
}

type CategoryQuantity struct {
	CategoryID string `json:"category_id"`
	Quantity   int    `json:"quantity"`
}

type BuyGetFree struct {
	BuyItems  []DrinkQuantity `json:"buy_items"`
	FreeItems []DrinkQuantity `json:"free_items"`
}

func (BuyGetFree) PromotionType() PromotionType { return PromotionBuyGetFree }

// RequiredQuantity is the summed quantity of every buy line.
func (c BuyGetFree) RequiredQuantity() int {
	total := 0
	for _, item := range c.BuyItems {
		total += item.Quantity
	}
	return total
}

func (c BuyGetFree) Validate() error {
	if len(c.BuyItems) == 0 {
		return fmt.Errorf("%w: buy_items required", ErrInvalidPromotion)
	}
	for _, item := range append(append([]DrinkQuantity{}, c.BuyItems...), c.FreeItems...) {
		if strings.TrimSpace(item.DrinkID) == "" || item.Quantity < 1 {
			return fmt.Errorf("%w: drink_id and positive quantity required", ErrInvalidPromotion)
		}
	}
	return nil
}

type PercentDiscount struct {
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	MinimumAmount   decimal.Decimal `json:"minimum_amount"`
}

func (PercentDiscount) PromotionType() PromotionType { return PromotionDiscount }

func (c PercentDiscount) Validate() error {
	if !c.DiscountPercent.IsPositive() || c.DiscountPercent.GreaterThan(decimal.NewFromInt(100)) {
		return fmt.Errorf("%w: discount_percent must be in (0, 100]", ErrInvalidPromotion)
	}
	if c.MinimumAmount.IsNegative() {
		return fmt.Errorf("%w: minimum_amount must not be negative", ErrInvalidPromotion)
	}
	return nil
}

// FixedPriceItem targets a single drink when DrinkID is set, otherwise every
// drink of CategoryID.
type FixedPriceItem struct {
	DrinkID    string          `json:"drink_id,omitempty"`
	CategoryID string          `json:"category_id,omitempty"`
	FixedPrice decimal.Decimal `json:"fixed_price"`
}

type FixedPrice struct {
	Items []FixedPriceItem `json:"items"`
}

func (FixedPrice) PromotionType() PromotionType { return PromotionFixedPrice }

func (c FixedPrice) Validate() error {
	if len(c.Items) == 0 {
		return fmt.Errorf("%w: items required", ErrInvalidPromotion)
	}
	for _, item := range c.Items {
		if strings.TrimSpace(item.DrinkID) == "" && strings.TrimSpace(item.CategoryID) == "" {
			return fmt.Errorf("%w: drink_id or category_id required", ErrInvalidPromotion)
		}
		if item.FixedPrice.IsNegative() {
			return fmt.Errorf("%w: fixed_price must not be negative", ErrInvalidPromotion)
		}
	}
	return nil
}

type BuyCategoryGetFree struct {
	Buy  []CategoryQuantity `json:"buy"`
	Free CategoryQuantity   `json:"free"`
}

func (BuyCategoryGetFree) PromotionType() PromotionType { return PromotionBuyCategoryGetFree }

func (c BuyCategoryGetFree) Validate() error {
	if len(c.Buy) == 0 {
		return fmt.Errorf("%w: buy required", ErrInvalidPromotion)
	}
	for _, item := range append(append([]CategoryQuantity{}, c.Buy...), c.Free) {
		if strings.TrimSpace(item.CategoryID) == "" || item.Quantity < 1 {
			return fmt.Errorf("%w: category_id and positive quantity required", ErrInvalidPromotion)
		}
	}
	return nil
}

type Promotion struct {
	ID          string
	Name        string
	Description string
	Type        PromotionType
	Condition   Condition
	StartDate   time.Time
	EndDate     time.Time
	Active      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (p Promotion) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: name required", ErrInvalidPromotion)
	}
	if p.Condition == nil || p.Condition.PromotionType() != p.Type {
		return fmt.Errorf("%w: payload does not match type %q", ErrInvalidPromotion, p.Type)
	}
	if p.StartDate.IsZero() || p.EndDate.IsZero() || p.EndDate.Before(p.StartDate) {
		return fmt.Errorf("%w: invalid validity window", ErrInvalidPromotion)
	}
	return p.Condition.Validate()
}

// promotionJSON is the wire shape: one payload key per type, only the key
// named by "type" may be present.
type promotionJSON struct {
	ID                 string              `json:"id"`
	Name               string              `json:"name"`
	Description        string              `json:"description"`
	Type               PromotionType       `json:"type"`
	BuyGetFree         *BuyGetFree         `json:"buy_get_free,omitempty"`
	Discount           *PercentDiscount    `json:"discount,omitempty"`
	FixedPrice         *FixedPrice         `json:"fixed_price,omitempty"`
	BuyCategoryGetFree *BuyCategoryGetFree `json:"buy_category_get_free,omitempty"`
	StartDate          time.Time           `json:"start_date"`
	EndDate            time.Time           `json:"end_date"`
	Active             bool                `json:"active"`
	CreatedAt          time.Time           `json:"created_at"`
	UpdatedAt          time.Time           `json:"updated_at"`
}

func (p Promotion) MarshalJSON() ([]byte, error) {
	out := promotionJSON{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Type:        p.Type,
		StartDate:   p.StartDate,
		EndDate:     p.EndDate,
		Active:      p.Active,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
	switch c := p.Condition.(type) {
	case BuyGetFree:
		out.BuyGetFree = &c
	case PercentDiscount:
		out.Discount = &c
	case FixedPrice:
		out.FixedPrice = &c
	case BuyCategoryGetFree:
		out.BuyCategoryGetFree = &c
	}
	return json.Marshal(out)
}

func (p *Promotion) UnmarshalJSON(data []byte) error {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()
	var in promotionJSON
	if err := decoder.Decode(&in); err != nil {
		return err
	}

	present := make([]Condition, 0, 1)
	if in.BuyGetFree != nil {
		present = append(present, *in.BuyGetFree)
	}
	if in.Discount != nil {
		present = append(present, *in.Discount)
	}
	if in.FixedPrice != nil {
		present = append(present, *in.FixedPrice)
	}
	if in.BuyCategoryGetFree != nil {
		present = append(present, *in.BuyCategoryGetFree)
	}
	if len(present) != 1 {
		return fmt.Errorf("%w: exactly one payload required, got %d", ErrInvalidPromotion, len(present))
	}
	if present[0].PromotionType() != in.Type {
		return fmt.Errorf("%w: payload does not match type %q", ErrInvalidPromotion, in.Type)
	}

	*p = Promotion{
		ID:          in.ID,
		Name:        in.Name,
		Description: in.Description,
		Type:        in.Type,
		Condition:   present[0],
		StartDate:   in.StartDate,
		EndDate:     in.EndDate,
		Active:      in.Active,
		CreatedAt:   in.CreatedAt,
		UpdatedAt:   in.UpdatedAt,
	}
	return nil
}

// EncodeCondition serializes only the payload, for storage next to the
// promotion's scalar columns.
func EncodeCondition(c Condition) ([]byte, error) {
	if c == nil {
		return nil, fmt.Errorf("%w: missing payload", ErrInvalidPromotion)
	}
	return json.Marshal(c)
}

func DecodeCondition(t PromotionType, raw []byte) (Condition, error) {
	switch t {
	case PromotionBuyGetFree:
		var c BuyGetFree
		err := json.Unmarshal(raw, &c)
		return c, err
	case PromotionDiscount:
		var c PercentDiscount
		err := json.Unmarshal(raw, &c)
		return c, err
	case PromotionFixedPrice:
		var c FixedPrice
		err := json.Unmarshal(raw, &c)
		return c, err
	case PromotionBuyCategoryGetFree:
		var c BuyCategoryGetFree
		err := json.Unmarshal(raw, &c)
		return c, err
	default:
		return nil, fmt.Errorf("%w: unknown type %q", ErrInvalidPromotion, t)
	}
}
