package inventory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"drinkpos/backend/internal/domain"
	"drinkpos/backend/internal/store"
	"drinkpos/backend/internal/xid"
)

// Ledger is the slice of a store transaction the engine needs.
type Ledger interface {
	GetIngredient(ctx context.Context, id string) (*domain.Ingredient, error)
	CompareAndSwapQuantity(ctx context.Context, ingredientID string, expected, next decimal.Decimal) error
	AppendTransaction(ctx context.Context, entry domain.IngredientTransaction) error
}

type Policy string

const (
	PolicyReject        Policy = "reject"
	PolicyAllowNegative Policy = "allow_negative"
)

func ParsePolicy(raw string) (Policy, error) {
	switch p := Policy(strings.ToLower(strings.TrimSpace(raw))); p {
	case "":
		return PolicyReject, nil
	case PolicyReject, PolicyAllowNegative:
		return p, nil
	default:
		return "", fmt.Errorf("unknown stock policy %q", raw)
	}
}

// Line is one finalized cart line with its resolved recipe.
type Line struct {
	DrinkID  string
	Quantity int
	Recipe   []domain.RecipeLine
}

type Result struct {
	Transactions []domain.IngredientTransaction
	Warnings     []domain.StockWarning
	// LowStock holds the final state of every touched ingredient at or
	// below the low-stock threshold.
	LowStock []domain.Ingredient
}

type Engine struct {
	policy            Policy
	lowStockThreshold decimal.Decimal
	now               func() time.Time
}

func NewEngine(policy Policy, lowStockThreshold decimal.Decimal) *Engine {
	if policy == "" {
		policy = PolicyReject
	}
	return &Engine{
		policy:            policy,
		lowStockThreshold: lowStockThreshold,
		now:               func() time.Time { return time.Now().UTC() },
	}
}

func (e *Engine) Policy() Policy {
	return e.policy
}

// Deduct walks lines in order and, per recipe ingredient, records a ledger
// entry against the running quantity before decrementing it. Each step
// re-reads the ingredient so repeated ingredients see earlier decrements.
// The caller owns rollback: any error leaves partial writes in ledger.
func (e *Engine) Deduct(ctx context.Context, ledger Ledger, billID string, lines []Line) (Result, error) {
	result := Result{Transactions: make([]domain.IngredientTransaction, 0, len(lines))}
	touched := make([]string, 0, len(lines))
	final := make(map[string]domain.Ingredient)
	warned := make(map[string]int)

	for _, line := range lines {
		if line.Quantity < 1 {
			return Result{}, fmt.Errorf("%w: drink %s quantity must be positive", store.ErrInvalidCart, line.DrinkID)
		}
		for _, step := range line.Recipe {
			if step.QuantityPerUnit.IsNegative() {
				return Result{}, fmt.Errorf("%w: drink %s recipe quantity for %s is negative", store.ErrInvalidInput, line.DrinkID, step.IngredientID)
			}

			ingredient, err := ledger.GetIngredient(ctx, step.IngredientID)
			if err != nil {
				return Result{}, err
			}

			consumed := step.QuantityPerUnit.Mul(decimal.NewFromInt(int64(line.Quantity)))
			prev := ingredient.Quantity
			next := prev.Sub(consumed)

			if next.IsNegative() {
				if e.policy != PolicyAllowNegative {
					return Result{}, &store.InsufficientStockError{
						IngredientID: ingredient.ID,
						Available:    prev,
						Required:     consumed,
					}
				}
				warning := domain.StockWarning{
					IngredientID:      ingredient.ID,
					Name:              ingredient.Name,
					ResultingQuantity: next,
				}
				if idx, ok := warned[ingredient.ID]; ok {
					result.Warnings[idx] = warning
				} else {
					warned[ingredient.ID] = len(result.Warnings)
					result.Warnings = append(result.Warnings, warning)
				}
			}

			entry := domain.IngredientTransaction{
				ID:           xid.New("itx"),
				Kind:         domain.LedgerKindSale,
				BillID:       billID,
				DrinkID:      line.DrinkID,
				IngredientID: ingredient.ID,
				Quantity:     consumed,
				QuantityPrev: prev,
				UnitPrice:    ingredient.UnitPrice,
				Price:        consumed.Mul(ingredient.UnitPrice).Round(2),
				CreatedAt:    e.now(),
			}
			if err := ledger.AppendTransaction(ctx, entry); err != nil {
				return Result{}, err
			}
			if err := ledger.CompareAndSwapQuantity(ctx, ingredient.ID, prev, next); err != nil {
				return Result{}, err
			}
			result.Transactions = append(result.Transactions, entry)

			if _, seen := final[ingredient.ID]; !seen {
				touched = append(touched, ingredient.ID)
			}
			updated := *ingredient
			updated.Quantity = next
			final[ingredient.ID] = updated
		}
	}

	for _, id := range touched {
		ingredient := final[id]
		if ingredient.Quantity.LessThanOrEqual(e.lowStockThreshold) {
			result.LowStock = append(result.LowStock, ingredient.WithTotalValue())
		}
	}
	return result, nil
}
