package memory

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"drinkpos/backend/internal/domain"
	"drinkpos/backend/internal/period"
	"drinkpos/backend/internal/store"
)

type Store struct {
	mu            sync.RWMutex
	categories    map[string]domain.Category
	drinks        map[string]domain.Drink
	promotions    map[string]domain.Promotion
	ingredients   map[string]domain.Ingredient
	ledger        []domain.IngredientTransaction
	expenses      []domain.IngredientExpense
	bills         map[string]domain.Bill
	billSequences map[string]int
	schedules     map[string]domain.WeekSchedule
	users         map[string]domain.UserAccount
}

func New() *Store {
	return &Store{
		categories:    make(map[string]domain.Category),
		drinks:        make(map[string]domain.Drink),
		promotions:    make(map[string]domain.Promotion),
		ingredients:   make(map[string]domain.Ingredient),
		bills:         make(map[string]domain.Bill),
		billSequences: make(map[string]int),
		schedules:     make(map[string]domain.WeekSchedule),
		users:         make(map[string]domain.UserAccount),
	}
}

// memTx stages ingredient, ledger, bill and counter writes on top of the
// committed maps. WithinTx holds the write lock for its whole lifetime.
type memTx struct {
	s           *Store
	ingredients map[string]domain.Ingredient
	ledger      []domain.IngredientTransaction
	bills       []domain.Bill
	sequences   map[string]int
}

func (s *Store) WithinTx(ctx context.Context, fn func(tx store.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	tx := &memTx{
		s:           s,
		ingredients: make(map[string]domain.Ingredient),
		sequences:   make(map[string]int),
	}
	if err := fn(tx); err != nil {
		return err
	}

	for id, ing := range tx.ingredients {
		s.ingredients[id] = ing
	}
	s.ledger = append(s.ledger, tx.ledger...)
	for _, bill := range tx.bills {
		s.bills[bill.ID] = bill
	}
	for day, seq := range tx.sequences {
		s.billSequences[day] = seq
	}
	return nil
}

func (t *memTx) GetIngredient(_ context.Context, id string) (*domain.Ingredient, error) {
	if ing, ok := t.ingredients[id]; ok {
		return &ing, nil
	}
	ing, ok := t.s.ingredients[id]
	if !ok {
		return nil, store.NotFound("ingredient", id)
	}
	return &ing, nil
}

func (t *memTx) CompareAndSwapQuantity(ctx context.Context, ingredientID string, expected, next decimal.Decimal) error {
	current, err := t.GetIngredient(ctx, ingredientID)
	if err != nil {
		return err
	}
	if !current.Quantity.Equal(expected) {
		return store.ErrRaceLost
	}
	current.Quantity = next
	current.UpdatedAt = time.Now().UTC()
	t.ingredients[ingredientID] = *current
	return nil
}

func (t *memTx) AppendTransaction(_ context.Context, entry domain.IngredientTransaction) error {
	if entry.ID == "" || entry.IngredientID == "" {
		return store.ErrInvalidInput
	}
	t.ledger = append(t.ledger, entry)
	return nil
}

func (t *memTx) NextBillSequence(_ context.Context, dayKey string) (int, error) {
	seq, ok := t.sequences[dayKey]
	if !ok {
		seq = t.s.billSequences[dayKey]
	}
	seq++
	t.sequences[dayKey] = seq
	return seq, nil
}

func (t *memTx) CreateBill(_ context.Context, bill domain.Bill) error {
	if bill.ID == "" || bill.Code == "" || len(bill.Lines) == 0 {
		return store.ErrInvalidCart
	}
	if _, exists := t.s.bills[bill.ID]; exists {
		return store.ErrConflict
	}
	for _, staged := range t.bills {
		if staged.Code == bill.Code {
			return store.ErrConflict
		}
	}
	for _, existing := range t.s.bills {
		if existing.Code == bill.Code {
			return store.ErrConflict
		}
	}
	t.bills = append(t.bills, cloneBill(bill))
	return nil
}

func (s *Store) ListCategories(_ context.Context) ([]domain.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Category, 0, len(s.categories))
	for _, c := range s.categories {
		out = append(out, c)
	}
	slices.SortFunc(out, func(a, b domain.Category) int { return cmpString(a.Name, b.Name) })
	return out, nil
}

func (s *Store) GetCategory(_ context.Context, id string) (*domain.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.categories[id]
	if !ok {
		return nil, store.NotFound("category", id)
	}
	return &c, nil
}

func (s *Store) CreateCategory(_ context.Context, category domain.Category) (*domain.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if category.ID == "" || category.Name == "" {
		return nil, store.ErrInvalidInput
	}
	for _, existing := range s.categories {
		if strings.EqualFold(existing.Name, category.Name) {
			return nil, store.ErrConflict
		}
	}
	s.categories[category.ID] = category
	return &category, nil
}

func (s *Store) UpdateCategory(_ context.Context, category domain.Category) (*domain.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.categories[category.ID]
	if !ok {
		return nil, store.NotFound("category", category.ID)
	}
	for id, other := range s.categories {
		if id != category.ID && strings.EqualFold(other.Name, category.Name) {
			return nil, store.ErrConflict
		}
	}
	category.CreatedAt = existing.CreatedAt
	s.categories[category.ID] = category
	return &category, nil
}

func (s *Store) DeleteCategory(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.categories[id]; !ok {
		return store.NotFound("category", id)
	}
	for _, drink := range s.drinks {
		if drink.CategoryID == id {
			return store.ErrConflict
		}
	}
	delete(s.categories, id)
	return nil
}

func (s *Store) ListDrinks(_ context.Context, categoryID string) ([]domain.Drink, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Drink, 0, len(s.drinks))
	for _, d := range s.drinks {
		if categoryID != "" && d.CategoryID != categoryID {
			continue
		}
		out = append(out, cloneDrink(d))
	}
	slices.SortFunc(out, func(a, b domain.Drink) int { return cmpString(a.Name, b.Name) })
	return out, nil
}

func (s *Store) GetDrink(_ context.Context, id string) (*domain.Drink, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.drinks[id]
	if !ok {
		return nil, store.NotFound("drink", id)
	}
	dup := cloneDrink(d)
	return &dup, nil
}

func (s *Store) GetDrinksByIDs(_ context.Context, ids []string) (map[string]domain.Drink, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]domain.Drink, len(ids))
	for _, id := range ids {
		if d, ok := s.drinks[id]; ok {
			out[id] = cloneDrink(d)
		}
	}
	return out, nil
}

func (s *Store) CreateDrink(_ context.Context, drink domain.Drink) (*domain.Drink, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if drink.ID == "" || drink.Name == "" {
		return nil, store.ErrInvalidInput
	}
	if _, ok := s.categories[drink.CategoryID]; !ok {
		return nil, store.NotFound("category", drink.CategoryID)
	}
	if _, exists := s.drinks[drink.ID]; exists {
		return nil, store.ErrConflict
	}
	s.drinks[drink.ID] = cloneDrink(drink)
	dup := cloneDrink(drink)
	return &dup, nil
}

func (s *Store) UpdateDrink(_ context.Context, drink domain.Drink) (*domain.Drink, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.drinks[drink.ID]
	if !ok {
		return nil, store.NotFound("drink", drink.ID)
	}
	if _, ok := s.categories[drink.CategoryID]; !ok {
		return nil, store.NotFound("category", drink.CategoryID)
	}
	drink.CreatedAt = existing.CreatedAt
	s.drinks[drink.ID] = cloneDrink(drink)
	dup := cloneDrink(drink)
	return &dup, nil
}

func (s *Store) DeleteDrink(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.drinks[id]; !ok {
		return store.NotFound("drink", id)
	}
	delete(s.drinks, id)
	return nil
}

func (s *Store) ListPromotions(_ context.Context) ([]domain.Promotion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Promotion, 0, len(s.promotions))
	for _, p := range s.promotions {
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b domain.Promotion) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmpString(a.ID, b.ID)
	})
	return out, nil
}

func (s *Store) GetPromotion(_ context.Context, id string) (*domain.Promotion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.promotions[id]
	if !ok {
		return nil, store.NotFound("promotion", id)
	}
	return &p, nil
}

func (s *Store) GetPromotionsByIDs(_ context.Context, ids []string) (map[string]domain.Promotion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]domain.Promotion, len(ids))
	for _, id := range ids {
		if p, ok := s.promotions[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (s *Store) CreatePromotion(_ context.Context, promo domain.Promotion) (*domain.Promotion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if promo.ID == "" {
		return nil, store.ErrInvalidInput
	}
	for _, existing := range s.promotions {
		if existing.Name == promo.Name {
			return nil, store.ErrConflict
		}
	}
	s.promotions[promo.ID] = promo
	return &promo, nil
}

func (s *Store) UpdatePromotion(_ context.Context, promo domain.Promotion) (*domain.Promotion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.promotions[promo.ID]
	if !ok {
		return nil, store.NotFound("promotion", promo.ID)
	}
	for id, other := range s.promotions {
		if id != promo.ID && other.Name == promo.Name {
			return nil, store.ErrConflict
		}
	}
	promo.CreatedAt = existing.CreatedAt
	s.promotions[promo.ID] = promo
	return &promo, nil
}

func (s *Store) DeletePromotion(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.promotions[id]; !ok {
		return store.NotFound("promotion", id)
	}
	delete(s.promotions, id)
	// Drink links go with the promotion, as the postgres cascade does.
	for drinkID, drink := range s.drinks {
		if !slices.Contains(drink.PromotionIDs, id) {
			continue
		}
		drink.PromotionIDs = slices.DeleteFunc(slices.Clone(drink.PromotionIDs), func(linked string) bool {
			return linked == id
		})
		s.drinks[drinkID] = drink
	}
	return nil
}

func (s *Store) ListIngredients(_ context.Context) ([]domain.Ingredient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Ingredient, 0, len(s.ingredients))
	for _, ing := range s.ingredients {
		out = append(out, ing.WithTotalValue())
	}
	slices.SortFunc(out, func(a, b domain.Ingredient) int { return cmpString(a.Name, b.Name) })
	return out, nil
}

func (s *Store) GetIngredient(_ context.Context, id string) (*domain.Ingredient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ing, ok := s.ingredients[id]
	if !ok {
		return nil, store.NotFound("ingredient", id)
	}
	ing = ing.WithTotalValue()
	return &ing, nil
}

func (s *Store) CreateIngredient(_ context.Context, ingredient domain.Ingredient) (*domain.Ingredient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ingredient.ID == "" || ingredient.Name == "" {
		return nil, store.ErrInvalidInput
	}
	for _, existing := range s.ingredients {
		if strings.EqualFold(existing.Name, ingredient.Name) {
			return nil, store.ErrConflict
		}
	}
	s.ingredients[ingredient.ID] = ingredient
	out := ingredient.WithTotalValue()
	return &out, nil
}

func (s *Store) UpdateIngredientDetails(_ context.Context, ingredient domain.Ingredient) (*domain.Ingredient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.ingredients[ingredient.ID]
	if !ok {
		return nil, store.NotFound("ingredient", ingredient.ID)
	}
	existing.Name = ingredient.Name
	existing.Unit = ingredient.Unit
	existing.UnitPrice = ingredient.UnitPrice
	existing.UpdatedAt = ingredient.UpdatedAt
	s.ingredients[existing.ID] = existing
	out := existing.WithTotalValue()
	return &out, nil
}

func (s *Store) AdjustIngredientQuantity(_ context.Context, id string, quantity decimal.Decimal, entryID string) (*domain.Ingredient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.ingredients[id]
	if !ok {
		return nil, store.NotFound("ingredient", id)
	}
	now := time.Now().UTC()
	delta := existing.Quantity.Sub(quantity)
	s.ledger = append(s.ledger, domain.IngredientTransaction{
		ID:           entryID,
		Kind:         domain.LedgerKindAdjustment,
		IngredientID: id,
		Quantity:     delta,
		QuantityPrev: existing.Quantity,
		UnitPrice:    existing.UnitPrice,
		Price:        delta.Mul(existing.UnitPrice).Round(2),
		CreatedAt:    now,
	})
	existing.Quantity = quantity
	existing.UpdatedAt = now
	s.ingredients[id] = existing
	out := existing.WithTotalValue()
	return &out, nil
}

func (s *Store) DeleteIngredient(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.ingredients[id]; !ok {
		return store.NotFound("ingredient", id)
	}
	for _, entry := range s.ledger {
		if entry.IngredientID == id {
			return store.ErrConflict
		}
	}
	for _, drink := range s.drinks {
		for _, line := range drink.Recipe {
			if line.IngredientID == id {
				return store.ErrConflict
			}
		}
	}
	delete(s.ingredients, id)
	return nil
}

func (s *Store) Restock(_ context.Context, expense domain.IngredientExpense) (*domain.Ingredient, *domain.IngredientExpense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ing, ok := s.ingredients[expense.IngredientID]
	if !ok {
		return nil, nil, store.NotFound("ingredient", expense.IngredientID)
	}
	if !expense.Quantity.IsPositive() {
		return nil, nil, store.ErrInvalidInput
	}

	ing.Quantity = ing.Quantity.Add(expense.Quantity)
	if expense.UnitPrice.IsPositive() {
		ing.UnitPrice = expense.UnitPrice
	}
	ing.UpdatedAt = expense.CreatedAt
	expense.Unit = ing.Unit
	s.ingredients[ing.ID] = ing
	s.expenses = append(s.expenses, expense)

	out := ing.WithTotalValue()
	return &out, &expense, nil
}

func (s *Store) ListIngredientExpenses(_ context.Context, filter domain.ExpenseFilter) ([]domain.IngredientExpense, int, decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]domain.IngredientExpense, 0, len(s.expenses))
	total := decimal.Zero
	for _, e := range s.expenses {
		if !period.Contains(filter.From, filter.To, e.CreatedAt) {
			continue
		}
		matched = append(matched, e)
		total = total.Add(e.TotalAmount)
	}
	slices.SortFunc(matched, func(a, b domain.IngredientExpense) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return paginate(matched, filter.Offset, filter.Limit), len(matched), total, nil
}

func (s *Store) ListIngredientTransactions(_ context.Context, filter domain.IngredientTransactionFilter) ([]domain.IngredientTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.IngredientTransaction, 0, len(s.ledger))
	for i := len(s.ledger) - 1; i >= 0; i-- {
		entry := s.ledger[i]
		if filter.IngredientID != "" && entry.IngredientID != filter.IngredientID {
			continue
		}
		if filter.BillID != "" && entry.BillID != filter.BillID {
			continue
		}
		out = append(out, entry)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}

func (s *Store) GetBill(_ context.Context, id string) (*domain.Bill, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bill, ok := s.bills[id]
	if !ok {
		return nil, store.NotFound("bill", id)
	}
	dup := cloneBill(bill)
	return &dup, nil
}

func (s *Store) ListBills(_ context.Context, filter domain.BillFilter) ([]domain.Bill, int, decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]domain.Bill, 0, len(s.bills))
	total := decimal.Zero
	for _, bill := range s.bills {
		if filter.UserID != "" && bill.UserID != filter.UserID {
			continue
		}
		if !period.Contains(filter.From, filter.To, bill.CreatedAt) {
			continue
		}
		matched = append(matched, cloneBill(bill))
		total = total.Add(bill.TotalAmount)
	}
	slices.SortFunc(matched, func(a, b domain.Bill) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmpString(b.Code, a.Code)
	})
	return paginate(matched, filter.Offset, filter.Limit), len(matched), total, nil
}

func (s *Store) ReplaceBill(_ context.Context, bill domain.Bill) (*domain.Bill, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.bills[bill.ID]
	if !ok {
		return nil, store.NotFound("bill", bill.ID)
	}
	bill.Code = existing.Code
	bill.CreatedAt = existing.CreatedAt
	bill.StockWarnings = existing.StockWarnings
	s.bills[bill.ID] = cloneBill(bill)
	dup := cloneBill(bill)
	return &dup, nil
}

func (s *Store) DeleteBill(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.bills[id]; !ok {
		return store.NotFound("bill", id)
	}
	delete(s.bills, id)
	return nil
}

func (s *Store) ListSchedules(_ context.Context, userID string) ([]domain.WeekSchedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.WeekSchedule, 0, len(s.schedules))
	for _, sch := range s.schedules {
		if userID != "" && sch.UserID != userID {
			continue
		}
		out = append(out, cloneSchedule(sch))
	}
	slices.SortFunc(out, func(a, b domain.WeekSchedule) int {
		if c := cmpString(a.UserID, b.UserID); c != 0 {
			return c
		}
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return out, nil
}

func (s *Store) GetSchedule(_ context.Context, id string) (*domain.WeekSchedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sch, ok := s.schedules[id]
	if !ok {
		return nil, store.NotFound("schedule", id)
	}
	dup := cloneSchedule(sch)
	return &dup, nil
}

func (s *Store) CreateSchedule(_ context.Context, schedule domain.WeekSchedule) (*domain.WeekSchedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if schedule.ID == "" || schedule.UserID == "" {
		return nil, store.ErrInvalidInput
	}
	if _, ok := s.users[schedule.UserID]; !ok {
		return nil, store.NotFound("user", schedule.UserID)
	}
	s.schedules[schedule.ID] = cloneSchedule(schedule)
	dup := cloneSchedule(schedule)
	return &dup, nil
}

func (s *Store) UpdateSchedule(_ context.Context, schedule domain.WeekSchedule) (*domain.WeekSchedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.schedules[schedule.ID]
	if !ok {
		return nil, store.NotFound("schedule", schedule.ID)
	}
	if _, ok := s.users[schedule.UserID]; !ok {
		return nil, store.NotFound("user", schedule.UserID)
	}
	schedule.CreatedAt = existing.CreatedAt
	s.schedules[schedule.ID] = cloneSchedule(schedule)
	dup := cloneSchedule(schedule)
	return &dup, nil
}

func (s *Store) DeleteSchedule(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.schedules[id]; !ok {
		return store.NotFound("schedule", id)
	}
	delete(s.schedules, id)
	return nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if user.Username == "" {
		return store.ErrInvalidInput
	}
	if _, exists := s.users[user.Username]; exists {
		return store.ErrConflict
	}
	s.users[user.Username] = user
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.UserAccount, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	slices.SortFunc(out, func(a, b domain.UserAccount) int { return cmpString(a.Username, b.Username) })
	return out, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[username]
	if !ok {
		return store.NotFound("user", username)
	}
	user.Password = password
	s.users[username] = user
	return nil
}

func paginate[T any](items []T, offset, limit int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return []T{}
	}
	end := len(items)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return items[offset:end]
}

func cmpString(a string, b string) int {
	if a == b {
		return 0
	}
	if a < b {
		return -1
	}
	return 1
}

func cloneDrink(src domain.Drink) domain.Drink {
	dup := src
	dup.Prices = make(map[string]decimal.Decimal, len(src.Prices))
	for size, price := range src.Prices {
		dup.Prices[size] = price
	}
	dup.Recipe = slices.Clone(src.Recipe)
	dup.PromotionIDs = slices.Clone(src.PromotionIDs)
	dup.Options = domain.DrinkOptions{
		Temperature: slices.Clone(src.Options.Temperature),
		Sugar:       slices.Clone(src.Options.Sugar),
		Ice:         slices.Clone(src.Options.Ice),
	}
	return dup
}

func cloneBill(src domain.Bill) domain.Bill {
	dup := src
	dup.Lines = slices.Clone(src.Lines)
	dup.StockWarnings = slices.Clone(src.StockWarnings)
	return dup
}

func cloneSchedule(src domain.WeekSchedule) domain.WeekSchedule {
	dup := src
	dup.Weeks = make([]domain.ScheduleWeek, len(src.Weeks))
	for i, week := range src.Weeks {
		dup.Weeks[i] = week
		dup.Weeks[i].Days = domain.WeekDays{
			Monday:    slices.Clone(week.Days.Monday),
			Tuesday:   slices.Clone(week.Days.Tuesday),
			Wednesday: slices.Clone(week.Days.Wednesday),
			Thursday:  slices.Clone(week.Days.Thursday),
			Friday:    slices.Clone(week.Days.Friday),
			Saturday:  slices.Clone(week.Days.Saturday),
			Sunday:    slices.Clone(week.Days.Sunday),
		}
	}
	return dup
}
