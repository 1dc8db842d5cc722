package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"drinkpos/backend/internal/domain"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidInput      = errors.New("invalid input")
	ErrInvalidCart       = errors.New("invalid cart")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrRaceLost          = errors.New("concurrent stock update")
	ErrConflict          = errors.New("conflict")
	ErrForbidden         = errors.New("forbidden")
)

// NotFoundError names the entity that did not resolve.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

func NotFound(kind, id string) error {
	return &NotFoundError{Kind: kind, ID: id}
}

type InsufficientStockError struct {
	IngredientID string
	Available    decimal.Decimal
	Required     decimal.Decimal
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for ingredient %s: have %s, need %s", e.IngredientID, e.Available, e.Required)
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }

// Tx is the unit of work Bill Assembly runs in. Every write made through it
// is discarded if the WithinTx callback returns an error.
type Tx interface {
	GetIngredient(ctx context.Context, id string) (*domain.Ingredient, error)
	// CompareAndSwapQuantity sets quantity to next only if it still equals
	// expected; otherwise it returns ErrRaceLost.
	CompareAndSwapQuantity(ctx context.Context, ingredientID string, expected, next decimal.Decimal) error
	AppendTransaction(ctx context.Context, entry domain.IngredientTransaction) error
	// NextBillSequence atomically increments and returns the 1-based counter
	// for the given YYYYMMDD day key.
	NextBillSequence(ctx context.Context, dayKey string) (int, error)
	CreateBill(ctx context.Context, bill domain.Bill) error
}

type Repository interface {
	WithinTx(ctx context.Context, fn func(tx Tx) error) error

	ListCategories(ctx context.Context) ([]domain.Category, error)
	GetCategory(ctx context.Context, id string) (*domain.Category, error)
	CreateCategory(ctx context.Context, category domain.Category) (*domain.Category, error)
	UpdateCategory(ctx context.Context, category domain.Category) (*domain.Category, error)
	DeleteCategory(ctx context.Context, id string) error

	ListDrinks(ctx context.Context, categoryID string) ([]domain.Drink, error)
	GetDrink(ctx context.Context, id string) (*domain.Drink, error)
	GetDrinksByIDs(ctx context.Context, ids []string) (map[string]domain.Drink, error)
	CreateDrink(ctx context.Context, drink domain.Drink) (*domain.Drink, error)
	UpdateDrink(ctx context.Context, drink domain.Drink) (*domain.Drink, error)
	DeleteDrink(ctx context.Context, id string) error

	ListPromotions(ctx context.Context) ([]domain.Promotion, error)
	GetPromotion(ctx context.Context, id string) (*domain.Promotion, error)
	GetPromotionsByIDs(ctx context.Context, ids []string) (map[string]domain.Promotion, error)
	CreatePromotion(ctx context.Context, promo domain.Promotion) (*domain.Promotion, error)
	UpdatePromotion(ctx context.Context, promo domain.Promotion) (*domain.Promotion, error)
	DeletePromotion(ctx context.Context, id string) error

	ListIngredients(ctx context.Context) ([]domain.Ingredient, error)
	GetIngredient(ctx context.Context, id string) (*domain.Ingredient, error)
	CreateIngredient(ctx context.Context, ingredient domain.Ingredient) (*domain.Ingredient, error)
	UpdateIngredientDetails(ctx context.Context, ingredient domain.Ingredient) (*domain.Ingredient, error)
	// AdjustIngredientQuantity sets an absolute quantity and records a ledger
	// adjustment entry in the same write.
	AdjustIngredientQuantity(ctx context.Context, id string, quantity decimal.Decimal, entryID string) (*domain.Ingredient, error)
	DeleteIngredient(ctx context.Context, id string) error
	Restock(ctx context.Context, expense domain.IngredientExpense) (*domain.Ingredient, *domain.IngredientExpense, error)
	ListIngredientExpenses(ctx context.Context, filter domain.ExpenseFilter) ([]domain.IngredientExpense, int, decimal.Decimal, error)
	ListIngredientTransactions(ctx context.Context, filter domain.IngredientTransactionFilter) ([]domain.IngredientTransaction, error)

	GetBill(ctx context.Context, id string) (*domain.Bill, error)
	ListBills(ctx context.Context, filter domain.BillFilter) ([]domain.Bill, int, decimal.Decimal, error)
	ReplaceBill(ctx context.Context, bill domain.Bill) (*domain.Bill, error)
	DeleteBill(ctx context.Context, id string) error

	ListSchedules(ctx context.Context, userID string) ([]domain.WeekSchedule, error)
	GetSchedule(ctx context.Context, id string) (*domain.WeekSchedule, error)
	CreateSchedule(ctx context.Context, schedule domain.WeekSchedule) (*domain.WeekSchedule, error)
	UpdateSchedule(ctx context.Context, schedule domain.WeekSchedule) (*domain.WeekSchedule, error)
	DeleteSchedule(ctx context.Context, id string) error

	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}
