package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	RoleAdmin   = "admin"
	RoleManager = "manager"
	RoleStaff   = "staff"
)

const (
	SizeSmall  = "S"
	SizeMedium = "M"
	SizeLarge  = "L"
)

type Category struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	ImageURL  string    `json:"image_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type CategoryRequest struct {
	Name     string `json:"name"`
	ImageURL string `json:"image_url"`
}

type RecipeLine struct {
	IngredientID    string          `json:"ingredient_id"`
	QuantityPerUnit decimal.Decimal `json:"quantity_per_unit"`
}

// DrinkOptions lists the values a cart line may pick per axis. An empty axis
// means the drink does not offer that choice.
type DrinkOptions struct {
	Temperature []string `json:"temperature,omitempty"`
	Sugar       []string `json:"sugar,omitempty"`
	Ice         []string `json:"ice,omitempty"`
}

type Drink struct {
	ID           string                     `json:"id"`
	Name         string                     `json:"name"`
	CategoryID   string                     `json:"category_id"`
	ImageURL     string                     `json:"image_url,omitempty"`
	Prices       map[string]decimal.Decimal `json:"prices"`
	Recipe       []RecipeLine               `json:"recipe"`
	Options      DrinkOptions               `json:"options"`
	PromotionIDs []string                   `json:"promotion_ids"`
	Active       bool                       `json:"active"`
	CreatedAt    time.Time                  `json:"created_at"`
	UpdatedAt    time.Time                  `json:"updated_at"`
}

// PriceFor returns the price of the given size. An empty size resolves to
// the smallest size the drink lists.
func (d Drink) PriceFor(size string) (decimal.Decimal, string, bool) {
	if size == "" {
		for _, candidate := range []string{SizeSmall, SizeMedium, SizeLarge} {
			if price, ok := d.Prices[candidate]; ok {
				return price, candidate, true
			}
		}
		return decimal.Zero, "", false
	}
	price, ok := d.Prices[size]
	return price, size, ok
}

type DrinkRequest struct {
	Name         string                     `json:"name"`
	CategoryID   string                     `json:"category_id"`
	ImageURL     string                     `json:"image_url"`
	Prices       map[string]decimal.Decimal `json:"prices"`
	Recipe       []RecipeLine               `json:"recipe"`
	Options      DrinkOptions               `json:"options"`
	PromotionIDs []string                   `json:"promotion_ids"`
	Active       *bool                      `json:"active,omitempty"`
}

type Ingredient struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Quantity   decimal.Decimal `json:"quantity"`
	Unit       string          `json:"unit"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	TotalValue decimal.Decimal `json:"total_value"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// WithTotalValue fills the derived on-hand value.
func (i Ingredient) WithTotalValue() Ingredient {
	i.TotalValue = i.Quantity.Mul(i.UnitPrice).Round(2)
	return i
}

type IngredientCreateRequest struct {
	Name      string          `json:"name"`
	Quantity  decimal.Decimal `json:"quantity"`
	Unit      string          `json:"unit"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type IngredientUpdateRequest struct {
	Name      *string          `json:"name,omitempty"`
	Unit      *string          `json:"unit,omitempty"`
	UnitPrice *decimal.Decimal `json:"unit_price,omitempty"`
	Quantity  *decimal.Decimal `json:"quantity,omitempty"`
	Reason    string           `json:"reason,omitempty"`
}

const (
	LedgerKindSale       = "sale"
	LedgerKindAdjustment = "adjustment"
)

// IngredientTransaction is an immutable ledger entry. QuantityPrev is the
// on-hand quantity immediately before Quantity was applied.
type IngredientTransaction struct {
	ID           string          `json:"id"`
	Kind         string          `json:"kind"`
	BillID       string          `json:"bill_id,omitempty"`
	DrinkID      string          `json:"drink_id,omitempty"`
	IngredientID string          `json:"ingredient_id"`
	Quantity     decimal.Decimal `json:"quantity_transaction"`
	QuantityPrev decimal.Decimal `json:"quantity_prev_transaction"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	Price        decimal.Decimal `json:"price"`
	CreatedAt    time.Time       `json:"created_at"`
}

type IngredientTransactionFilter struct {
	IngredientID string
	BillID       string
	Limit        int
}

type IngredientExpense struct {
	ID           string          `json:"id"`
	IngredientID string          `json:"ingredient_id"`
	Quantity     decimal.Decimal `json:"quantity"`
	Unit         string          `json:"unit"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	TotalAmount  decimal.Decimal `json:"total_amount"`
	CreatedBy    string          `json:"created_by"`
	CreatedAt    time.Time       `json:"created_at"`
}

type RestockRequest struct {
	Quantity  decimal.Decimal `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type RestockResponse struct {
	Ingredient Ingredient        `json:"ingredient"`
	Expense    IngredientExpense `json:"expense"`
}

type ExpenseFilter struct {
	From   time.Time
	To     time.Time
	Offset int
	Limit  int
}

type ExpenseListResponse struct {
	Expenses    []IngredientExpense `json:"expenses"`
	TotalCount  int                 `json:"total_count"`
	TotalAmount decimal.Decimal     `json:"total_amount"`
	Page        int                 `json:"page"`
	PageSize    int                 `json:"page_size"`
}

type LineOptions struct {
	Temperature string `json:"temperature,omitempty"`
	Sugar       string `json:"sugar,omitempty"`
	Ice         string `json:"ice,omitempty"`
}

type CartLine struct {
	DrinkID   string          `json:"drink_id"`
	Size      string          `json:"size,omitempty"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Options   LineOptions     `json:"options"`
}

type BillLine struct {
	DrinkID   string          `json:"drink_id"`
	Name      string          `json:"name"`
	Size      string          `json:"size"`
	Quantity  int             `json:"quantity"`
	Options   LineOptions     `json:"options"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Amount    decimal.Decimal `json:"amount"`
}

type StockWarning struct {
	IngredientID      string          `json:"ingredient_id"`
	Name              string          `json:"name"`
	ResultingQuantity decimal.Decimal `json:"resulting_quantity"`
}

type Bill struct {
	ID            string          `json:"id"`
	Code          string          `json:"code"`
	UserID        string          `json:"user_id"`
	Lines         []BillLine      `json:"lines"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	StockWarnings []StockWarning  `json:"stock_warnings,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

type BillCreateRequest struct {
	UserID string     `json:"user_id"`
	Lines  []CartLine `json:"lines"`
}

// PromotionEvaluateRequest is the pre-checkout promotion check. Mode is
// "referenced" (default) or "active".
type PromotionEvaluateRequest struct {
	Mode  string     `json:"mode"`
	Lines []CartLine `json:"lines"`
}

type BillReplaceRequest struct {
	UserID string     `json:"user_id"`
	Lines  []BillLine `json:"lines"`
}

type BillFilter struct {
	From   time.Time
	To     time.Time
	UserID string
	Offset int
	Limit  int
}

type BillListResponse struct {
	Bills       []Bill          `json:"bills"`
	TotalCount  int             `json:"total_count"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Page        int             `json:"page"`
	PageSize    int             `json:"page_size"`
}

type ItemSold struct {
	Name          string `json:"name"`
	TotalQuantity int    `json:"total_quantity"`
}

type DailyRevenue struct {
	Date         string          `json:"date"`
	TotalRevenue decimal.Decimal `json:"total_revenue"`
}

type RevenueReport struct {
	Period       string          `json:"period"`
	From         *time.Time      `json:"from,omitempty"`
	To           *time.Time      `json:"to,omitempty"`
	Days         []DailyRevenue  `json:"days"`
	TotalRevenue decimal.Decimal `json:"total_revenue"`
}

type ItemsReport struct {
	Period string     `json:"period"`
	From   *time.Time `json:"from,omitempty"`
	To     *time.Time `json:"to,omitempty"`
	Items  []ItemSold `json:"items"`
}

type ShiftSlot struct {
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

type WeekDays struct {
	Monday    []ShiftSlot `json:"monday"`
	Tuesday   []ShiftSlot `json:"tuesday"`
	Wednesday []ShiftSlot `json:"wednesday"`
	Thursday  []ShiftSlot `json:"thursday"`
	Friday    []ShiftSlot `json:"friday"`
	Saturday  []ShiftSlot `json:"saturday"`
	Sunday    []ShiftSlot `json:"sunday"`
}

// All returns the days in Monday-first order.
func (d WeekDays) All() [][]ShiftSlot {
	return [][]ShiftSlot{d.Monday, d.Tuesday, d.Wednesday, d.Thursday, d.Friday, d.Saturday, d.Sunday}
}

type ScheduleWeek struct {
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
	Days      WeekDays  `json:"days"`
}

type WeekSchedule struct {
	ID        string         `json:"id"`
	UserID    string         `json:"user_id"`
	Weeks     []ScheduleWeek `json:"weeks"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

type WeekScheduleRequest struct {
	UserID string         `json:"user_id"`
	Weeks  []ScheduleWeek `json:"weeks"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type Actor struct {
	Username string
	Role     string
}

type UserCreateRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
	Role     string `json:"role"`
}

type User struct {
	Username  string    `json:"username"`
	FullName  string    `json:"full_name"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	Username  string
	Password  string
	FullName  string
	Role      string
	Active    bool
	CreatedAt time.Time
}
