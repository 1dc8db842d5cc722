package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"drinkpos/backend/internal/domain"
	"drinkpos/backend/internal/events"
	"drinkpos/backend/internal/inventory"
	"drinkpos/backend/internal/store"
	"drinkpos/backend/internal/store/memory"
)

var fixedNow = time.Date(2026, 3, 10, 9, 30, 15, 0, time.UTC)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func staffCtx() context.Context {
	return WithActor(context.Background(), domain.Actor{Username: "staff", Role: domain.RoleStaff})
}

func managerCtx() context.Context {
	return WithActor(context.Background(), domain.Actor{Username: "manager", Role: domain.RoleManager})
}

func adminCtx() context.Context {
	return WithActor(context.Background(), domain.Actor{Username: "admin", Role: domain.RoleAdmin})
}

// newSyrupStore holds one drink that uses one unit of syrup per cup.
func newSyrupStore(t *testing.T) *memory.Store {
	t.Helper()
	ctx := context.Background()
	repo := memory.New()

	if _, err := repo.CreateCategory(ctx, domain.Category{ID: "cat-coffee", Name: "Coffee"}); err != nil {
		t.Fatalf("create category: %v", err)
	}
	if _, err := repo.CreateIngredient(ctx, domain.Ingredient{ID: "syrup-x", Name: "Syrup X", Quantity: dec("10"), Unit: "ml", UnitPrice: dec("1.5")}); err != nil {
		t.Fatalf("create ingredient: %v", err)
	}
	if _, err := repo.CreateDrink(ctx, domain.Drink{
		ID:         "drink-a",
		Name:       "Drink A",
		CategoryID: "cat-coffee",
		Prices:     map[string]decimal.Decimal{domain.SizeMedium: dec("20000")},
		Recipe:     []domain.RecipeLine{{IngredientID: "syrup-x", QuantityPerUnit: dec("1")}},
		Options:    domain.DrinkOptions{Temperature: []string{"hot", "cold"}},
		Active:     true,
	}); err != nil {
		t.Fatalf("create drink: %v", err)
	}
	return repo
}

func newTestService(repo store.Repository, engine *inventory.Engine, opts Options) *Service {
	if opts.Now == nil {
		opts.Now = func() time.Time { return fixedNow }
	}
	return New(repo, engine, opts)
}

func TestCreateBillDeductsSyrupAndRecordsLedger(t *testing.T) {
	repo := newSyrupStore(t)
	svc := newTestService(repo, nil, Options{})

	bill, err := svc.CreateBill(staffCtx(), domain.BillCreateRequest{
		Lines: []domain.CartLine{{DrinkID: "drink-a", Quantity: 2, Options: domain.LineOptions{Temperature: "Cold"}}},
	})
	if err != nil {
		t.Fatalf("create bill: %v", err)
	}
	if bill.UserID != "staff" {
		t.Fatalf("expected user to default to actor, got %q", bill.UserID)
	}
	if bill.TotalAmount.StringFixed(2) != "40000.00" {
		t.Fatalf("expected total 40000.00, got %s", bill.TotalAmount.StringFixed(2))
	}
	if bill.Lines[0].Size != domain.SizeMedium || bill.Lines[0].Name != "Drink A" {
		t.Fatalf("expected snapshot of size and name, got %+v", bill.Lines[0])
	}

	ing, err := repo.GetIngredient(context.Background(), "syrup-x")
	if err != nil {
		t.Fatalf("get ingredient: %v", err)
	}
	if !ing.Quantity.Equal(dec("8")) {
		t.Fatalf("expected syrup quantity 8, got %s", ing.Quantity)
	}

	entries, err := repo.ListIngredientTransactions(context.Background(), domain.IngredientTransactionFilter{BillID: bill.ID})
	if err != nil {
		t.Fatalf("list ledger: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected one ledger entry, got %d", len(entries))
	}
	entry := entries[0]
	if !entry.Quantity.Equal(dec("2")) || !entry.QuantityPrev.Equal(dec("10")) || entry.Price.StringFixed(2) != "3.00" {
		t.Fatalf("unexpected ledger entry %+v", entry)
	}
	if entry.DrinkID != "drink-a" || entry.Kind != domain.LedgerKindSale {
		t.Fatalf("expected sale entry for drink-a, got %+v", entry)
	}
}

func TestCreateBillCodesIncrementWithinDay(t *testing.T) {
	repo := newSyrupStore(t)
	svc := newTestService(repo, nil, Options{})

	codes := make([]string, 0, 2)
	for i := 0; i < 2; i++ {
		bill, err := svc.CreateBill(staffCtx(), domain.BillCreateRequest{
			Lines: []domain.CartLine{{DrinkID: "drink-a", Quantity: 1}},
		})
		if err != nil {
			t.Fatalf("create bill %d: %v", i+1, err)
		}
		codes = append(codes, bill.Code)
	}

	if codes[0] != "20260310093015-1" || codes[1] != "20260310093015-2" {
		t.Fatalf("expected sequential codes, got %v", codes)
	}
}

func TestCreateBillCodeUsesBusinessTimezone(t *testing.T) {
	repo := newSyrupStore(t)
	loc := time.FixedZone("ICT", 7*60*60)
	svc := newTestService(repo, nil, Options{
		Location: loc,
		Now:      func() time.Time { return time.Date(2026, 3, 10, 20, 0, 0, 0, time.UTC) },
	})

	bill, err := svc.CreateBill(staffCtx(), domain.BillCreateRequest{
		Lines: []domain.CartLine{{DrinkID: "drink-a", Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("create bill: %v", err)
	}
	if !strings.HasPrefix(bill.Code, "20260311030000-") {
		t.Fatalf("expected code in business timezone, got %s", bill.Code)
	}
}

func TestCreateBillMissingIngredientLeavesNoPartialDeduction(t *testing.T) {
	repo := newSyrupStore(t)
	ctx := context.Background()
	if _, err := repo.CreateDrink(ctx, domain.Drink{
		ID:         "drink-broken",
		Name:       "Broken",
		CategoryID: "cat-coffee",
		Prices:     map[string]decimal.Decimal{domain.SizeSmall: dec("15000")},
		Recipe: []domain.RecipeLine{
			{IngredientID: "syrup-x", QuantityPerUnit: dec("1")},
			{IngredientID: "ghost", QuantityPerUnit: dec("1")},
		},
		Active: true,
	}); err != nil {
		t.Fatalf("create drink: %v", err)
	}
	svc := newTestService(repo, nil, Options{})

	_, err := svc.CreateBill(staffCtx(), domain.BillCreateRequest{
		Lines: []domain.CartLine{
			{DrinkID: "drink-a", Quantity: 1},
			{DrinkID: "drink-broken", Quantity: 1},
		},
	})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	var nf *store.NotFoundError
	if !errors.As(err, &nf) || nf.Kind != "ingredient" || nf.ID != "ghost" {
		t.Fatalf("expected missing ingredient ghost, got %v", err)
	}

	ing, _ := repo.GetIngredient(ctx, "syrup-x")
	if !ing.Quantity.Equal(dec("10")) {
		t.Fatalf("expected no partial deduction, syrup is %s", ing.Quantity)
	}
	entries, _ := repo.ListIngredientTransactions(ctx, domain.IngredientTransactionFilter{})
	if len(entries) != 0 {
		t.Fatalf("expected empty ledger, got %d entries", len(entries))
	}
	bills, count, _, _ := repo.ListBills(ctx, domain.BillFilter{})
	if count != 0 || len(bills) != 0 {
		t.Fatalf("expected no bill persisted, got %d", count)
	}
}

func TestCreateBillRejectsInsufficientStock(t *testing.T) {
	repo := newSyrupStore(t)
	svc := newTestService(repo, inventory.NewEngine(inventory.PolicyReject, decimal.Zero), Options{})

	_, err := svc.CreateBill(staffCtx(), domain.BillCreateRequest{
		Lines: []domain.CartLine{{DrinkID: "drink-a", Quantity: 11}},
	})
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}
	ing, _ := repo.GetIngredient(context.Background(), "syrup-x")
	if !ing.Quantity.Equal(dec("10")) {
		t.Fatalf("expected stock untouched, got %s", ing.Quantity)
	}
}

func TestCreateBillAllowNegativeRecordsWarning(t *testing.T) {
	repo := newSyrupStore(t)
	svc := newTestService(repo, inventory.NewEngine(inventory.PolicyAllowNegative, decimal.Zero), Options{})

	bill, err := svc.CreateBill(staffCtx(), domain.BillCreateRequest{
		Lines: []domain.CartLine{{DrinkID: "drink-a", Quantity: 12}},
	})
	if err != nil {
		t.Fatalf("create bill: %v", err)
	}
	if len(bill.StockWarnings) != 1 || !bill.StockWarnings[0].ResultingQuantity.Equal(dec("-2")) {
		t.Fatalf("expected one warning at -2, got %+v", bill.StockWarnings)
	}

	stored, err := repo.GetBill(context.Background(), bill.ID)
	if err != nil {
		t.Fatalf("get bill: %v", err)
	}
	if len(stored.StockWarnings) != 1 {
		t.Fatalf("expected warnings persisted on bill")
	}
}

func TestCreateBillValidatesCart(t *testing.T) {
	repo := newSyrupStore(t)
	svc := newTestService(repo, nil, Options{})

	cases := []struct {
		name  string
		lines []domain.CartLine
		want  error
	}{
		{"empty", nil, store.ErrInvalidCart},
		{"zero quantity", []domain.CartLine{{DrinkID: "drink-a", Quantity: 0}}, store.ErrInvalidCart},
		{"unknown size", []domain.CartLine{{DrinkID: "drink-a", Quantity: 1, Size: "XL"}}, store.ErrInvalidCart},
		{"option not offered", []domain.CartLine{{DrinkID: "drink-a", Quantity: 1, Options: domain.LineOptions{Ice: "50%"}}}, store.ErrInvalidCart},
		{"unknown drink", []domain.CartLine{{DrinkID: "nope", Quantity: 1}}, store.ErrNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreateBill(staffCtx(), domain.BillCreateRequest{Lines: tc.lines})
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestCreateBillRequiresRole(t *testing.T) {
	svc := newTestService(newSyrupStore(t), nil, Options{})

	_, err := svc.CreateBill(context.Background(), domain.BillCreateRequest{
		Lines: []domain.CartLine{{DrinkID: "drink-a", Quantity: 1}},
	})
	if !errors.Is(err, store.ErrForbidden) {
		t.Fatalf("expected forbidden without actor, got %v", err)
	}
}

// racyRepo makes the first few compare-and-swap calls lose.
type racyRepo struct {
	*memory.Store
	mu       sync.Mutex
	failures int
	attempts int
}

type racyTx struct {
	store.Tx
	repo *racyRepo
}

func (r *racyRepo) WithinTx(ctx context.Context, fn func(tx store.Tx) error) error {
	r.mu.Lock()
	r.attempts++
	r.mu.Unlock()
	return r.Store.WithinTx(ctx, func(tx store.Tx) error {
		return fn(&racyTx{Tx: tx, repo: r})
	})
}

func (t *racyTx) CompareAndSwapQuantity(ctx context.Context, id string, expected, next decimal.Decimal) error {
	t.repo.mu.Lock()
	lose := t.repo.failures > 0
	if lose {
		t.repo.failures--
	}
	t.repo.mu.Unlock()
	if lose {
		return store.ErrRaceLost
	}
	return t.Tx.CompareAndSwapQuantity(ctx, id, expected, next)
}

func TestCreateBillRetriesLostRace(t *testing.T) {
	repo := &racyRepo{Store: newSyrupStore(t), failures: 2}
	svc := newTestService(repo, nil, Options{})

	bill, err := svc.CreateBill(staffCtx(), domain.BillCreateRequest{
		Lines: []domain.CartLine{{DrinkID: "drink-a", Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if repo.attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", repo.attempts)
	}
	if !strings.HasSuffix(bill.Code, "-1") {
		t.Fatalf("expected rolled back attempts not to consume sequence, got %s", bill.Code)
	}
	ing, _ := repo.GetIngredient(context.Background(), "syrup-x")
	if !ing.Quantity.Equal(dec("9")) {
		t.Fatalf("expected exactly one deduction, got %s", ing.Quantity)
	}
}

func TestCreateBillGivesUpAfterMaxRetries(t *testing.T) {
	repo := &racyRepo{Store: newSyrupStore(t), failures: 100}
	svc := newTestService(repo, nil, Options{MaxRaceRetries: 2})

	_, err := svc.CreateBill(staffCtx(), domain.BillCreateRequest{
		Lines: []domain.CartLine{{DrinkID: "drink-a", Quantity: 1}},
	})
	if !errors.Is(err, store.ErrRaceLost) {
		t.Fatalf("expected race lost, got %v", err)
	}
	if repo.attempts != 3 {
		t.Fatalf("expected initial attempt plus 2 retries, got %d", repo.attempts)
	}
}

type recordingPublisher struct {
	mu   sync.Mutex
	envs []events.Envelope
}

func (p *recordingPublisher) Publish(_ context.Context, _ string, env events.Envelope) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.envs = append(p.envs, env)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func TestCreateBillPublishesEvents(t *testing.T) {
	repo := newSyrupStore(t)
	pub := &recordingPublisher{}
	svc := newTestService(repo, inventory.NewEngine(inventory.PolicyReject, dec("5")), Options{Publisher: pub})

	ctx := WithRequestID(staffCtx(), "req-42")
	bill, err := svc.CreateBill(ctx, domain.BillCreateRequest{
		Lines: []domain.CartLine{{DrinkID: "drink-a", Quantity: 6}},
	})
	if err != nil {
		t.Fatalf("create bill: %v", err)
	}

	if len(pub.envs) != 2 {
		t.Fatalf("expected bill and low stock events, got %d", len(pub.envs))
	}
	if pub.envs[0].EventType != events.TypeBillCreated || pub.envs[0].CorrelationID != "req-42" {
		t.Fatalf("unexpected first event %+v", pub.envs[0])
	}
	created, err := events.UnwrapPayload[events.BillCreatedPayload](pub.envs[0])
	if err != nil || created.BillID != bill.ID {
		t.Fatalf("expected bill payload for %s, got %+v err=%v", bill.ID, created, err)
	}
	low, err := events.UnwrapPayload[events.LowStockPayload](pub.envs[1])
	if err != nil || low.IngredientID != "syrup-x" || !low.Quantity.Equal(dec("4")) {
		t.Fatalf("unexpected low stock payload %+v err=%v", low, err)
	}
}

func TestEvaluatePromotionsModes(t *testing.T) {
	svc := New(memory.NewSeeded(), nil, Options{})
	ctx := staffCtx()

	referenced, err := svc.EvaluatePromotions(ctx, domain.PromotionEvaluateRequest{
		Lines: []domain.CartLine{{DrinkID: "drink-latte", Size: "L", Quantity: 5}},
	})
	if err != nil {
		t.Fatalf("evaluate referenced: %v", err)
	}
	if len(referenced) != 1 || referenced[0].Promotion.ID != "promo-latte-b2g1" {
		t.Fatalf("expected only the latte promotion, got %+v", referenced)
	}

	active, err := svc.EvaluatePromotions(ctx, domain.PromotionEvaluateRequest{
		Mode:  "active",
		Lines: []domain.CartLine{{DrinkID: "drink-latte", Size: "L", Quantity: 5}},
	})
	if err != nil {
		t.Fatalf("evaluate active: %v", err)
	}
	ids := make([]string, 0, len(active))
	for _, q := range active {
		ids = append(ids, q.Promotion.ID)
	}
	if len(active) != 2 || !containsID(ids, "promo-big-order") {
		t.Fatalf("expected latte and order discount, got %v", ids)
	}
	for _, q := range active {
		if q.Promotion.ID == "promo-big-order" && q.Effect.DiscountAmount.StringFixed(2) != "22500.00" {
			t.Fatalf("expected 10%% of 225000, got %s", q.Effect.DiscountAmount)
		}
	}
}

func TestEvaluatePromotionsIsIdempotent(t *testing.T) {
	svc := New(memory.NewSeeded(), nil, Options{})
	req := domain.PromotionEvaluateRequest{
		Mode: "active",
		Lines: []domain.CartLine{
			{DrinkID: "drink-milk-tea", Quantity: 3},
			{DrinkID: "drink-americano", Quantity: 1},
			{DrinkID: "unknown", Quantity: 9},
		},
	}

	first, err := svc.EvaluatePromotions(staffCtx(), req)
	if err != nil {
		t.Fatalf("first evaluate: %v", err)
	}
	second, err := svc.EvaluatePromotions(staffCtx(), req)
	if err != nil {
		t.Fatalf("second evaluate: %v", err)
	}
	if len(first) != len(second) || len(first) != 2 {
		t.Fatalf("expected same two promotions twice, got %d and %d", len(first), len(second))
	}
	for i := range first {
		if first[i].Promotion.ID != second[i].Promotion.ID || !first[i].Effect.DiscountAmount.Equal(second[i].Effect.DiscountAmount) {
			t.Fatalf("evaluation differs at %d", i)
		}
	}
}

func TestEvaluatePromotionsRejectsUnknownMode(t *testing.T) {
	svc := New(memory.NewSeeded(), nil, Options{})
	_, err := svc.EvaluatePromotions(staffCtx(), domain.PromotionEvaluateRequest{
		Mode:  "everything",
		Lines: []domain.CartLine{{DrinkID: "drink-latte", Quantity: 1}},
	})
	if !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

type mapCache struct {
	mu          sync.Mutex
	entries     map[string][]domain.Promotion
	invalidated int
}

func (c *mapCache) GetPromotions(_ context.Context, key string) ([]domain.Promotion, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[key]
	return v, ok, nil
}

func (c *mapCache) SetPromotions(_ context.Context, key string, value []domain.Promotion, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = value
	return nil
}

func (c *mapCache) Invalidate(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, key := range keys {
		delete(c.entries, key)
	}
	c.invalidated++
	return nil
}

func TestPromotionMutationInvalidatesCache(t *testing.T) {
	c := &mapCache{entries: make(map[string][]domain.Promotion)}
	svc := New(memory.NewSeeded(), nil, Options{Cache: c})
	cart := []domain.CartLine{{DrinkID: "drink-milk-tea", Quantity: 1}}

	before, err := svc.EvaluatePromotions(staffCtx(), domain.PromotionEvaluateRequest{Mode: "active", Lines: cart})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(before) != 0 {
		t.Fatalf("expected nothing to qualify for one tea, got %d", len(before))
	}
	if _, ok := c.entries["promotions:active"]; !ok {
		t.Fatalf("expected active pool to be cached")
	}

	now := time.Now().UTC()
	_, err = svc.CreatePromotion(managerCtx(), domain.Promotion{
		Name:      "Tea happy hour",
		Type:      domain.PromotionDiscount,
		Condition: domain.PercentDiscount{DiscountPercent: dec("20"), MinimumAmount: dec("0")},
		StartDate: now.AddDate(0, 0, -1),
		EndDate:   now.AddDate(0, 0, 1),
		Active:    true,
	})
	if err != nil {
		t.Fatalf("create promotion: %v", err)
	}
	if c.invalidated != 1 {
		t.Fatalf("expected one invalidation, got %d", c.invalidated)
	}

	after, err := svc.EvaluatePromotions(staffCtx(), domain.PromotionEvaluateRequest{Mode: "active", Lines: cart})
	if err != nil {
		t.Fatalf("evaluate after create: %v", err)
	}
	if len(after) != 1 || after[0].Effect.DiscountAmount.StringFixed(2) != "6000.00" {
		t.Fatalf("expected new discount to apply, got %+v", after)
	}
}

func TestCreatePromotionRejectsMismatchedPayload(t *testing.T) {
	svc := New(memory.NewSeeded(), nil, Options{})
	now := time.Now().UTC()
	_, err := svc.CreatePromotion(managerCtx(), domain.Promotion{
		Name:      "Broken",
		Type:      domain.PromotionFixedPrice,
		Condition: domain.PercentDiscount{DiscountPercent: dec("10")},
		StartDate: now,
		EndDate:   now.AddDate(0, 1, 0),
		Active:    true,
	})
	if !errors.Is(err, domain.ErrInvalidPromotion) {
		t.Fatalf("expected invalid promotion, got %v", err)
	}

	_, err = svc.CreatePromotion(staffCtx(), domain.Promotion{Name: "x"})
	if !errors.Is(err, store.ErrForbidden) {
		t.Fatalf("expected staff to be forbidden, got %v", err)
	}
}

func TestRestockIncrementsStockAndLogsExpense(t *testing.T) {
	repo := newSyrupStore(t)
	svc := newTestService(repo, nil, Options{})

	resp, err := svc.Restock(managerCtx(), "syrup-x", domain.RestockRequest{Quantity: dec("5"), UnitPrice: dec("2")})
	if err != nil {
		t.Fatalf("restock: %v", err)
	}
	if !resp.Ingredient.Quantity.Equal(dec("15")) || !resp.Ingredient.UnitPrice.Equal(dec("2")) {
		t.Fatalf("unexpected ingredient after restock %+v", resp.Ingredient)
	}
	if resp.Expense.TotalAmount.StringFixed(2) != "10.00" || resp.Expense.CreatedBy != "manager" {
		t.Fatalf("unexpected expense %+v", resp.Expense)
	}

	list, err := svc.ListIngredientExpenses(managerCtx(), "day", "2026-03-10", 1, 10)
	if err != nil {
		t.Fatalf("list expenses: %v", err)
	}
	if list.TotalCount != 1 || list.TotalAmount.StringFixed(2) != "10.00" {
		t.Fatalf("expected one expense of 10.00, got %+v", list)
	}

	if _, err := svc.Restock(managerCtx(), "syrup-x", domain.RestockRequest{Quantity: dec("0")}); !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected zero restock to be rejected, got %v", err)
	}
	if _, err := svc.Restock(staffCtx(), "syrup-x", domain.RestockRequest{Quantity: dec("1")}); !errors.Is(err, store.ErrForbidden) {
		t.Fatalf("expected staff restock to be forbidden, got %v", err)
	}
}

func TestUpdateIngredientQuantityWritesAdjustment(t *testing.T) {
	repo := newSyrupStore(t)
	svc := newTestService(repo, nil, Options{})
	next := dec("7")

	updated, err := svc.UpdateIngredient(managerCtx(), "syrup-x", domain.IngredientUpdateRequest{Quantity: &next, Reason: "spill"})
	if err != nil {
		t.Fatalf("update ingredient: %v", err)
	}
	if !updated.Quantity.Equal(next) || updated.TotalValue.StringFixed(2) != "10.50" {
		t.Fatalf("unexpected ingredient %+v", updated)
	}

	entries, _ := repo.ListIngredientTransactions(context.Background(), domain.IngredientTransactionFilter{IngredientID: "syrup-x"})
	if len(entries) != 1 || entries[0].Kind != domain.LedgerKindAdjustment || !entries[0].QuantityPrev.Equal(dec("10")) {
		t.Fatalf("expected adjustment entry from 10, got %+v", entries)
	}
}

func TestDeleteIngredientReferencedByRecipeConflicts(t *testing.T) {
	svc := newTestService(newSyrupStore(t), nil, Options{})
	if err := svc.DeleteIngredient(managerCtx(), "syrup-x"); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestReplaceBillKeepsStockAndRecomputesTotal(t *testing.T) {
	repo := newSyrupStore(t)
	svc := newTestService(repo, nil, Options{})

	bill, err := svc.CreateBill(staffCtx(), domain.BillCreateRequest{
		Lines: []domain.CartLine{{DrinkID: "drink-a", Quantity: 2}},
	})
	if err != nil {
		t.Fatalf("create bill: %v", err)
	}

	line := bill.Lines[0]
	line.Quantity = 1
	if _, err := svc.ReplaceBill(staffCtx(), bill.ID, domain.BillReplaceRequest{Lines: []domain.BillLine{line}}); !errors.Is(err, store.ErrForbidden) {
		t.Fatalf("expected staff to be forbidden, got %v", err)
	}

	replaced, err := svc.ReplaceBill(managerCtx(), bill.ID, domain.BillReplaceRequest{Lines: []domain.BillLine{line}})
	if err != nil {
		t.Fatalf("replace bill: %v", err)
	}
	if replaced.Code != bill.Code || replaced.TotalAmount.StringFixed(2) != "20000.00" {
		t.Fatalf("unexpected replaced bill %+v", replaced)
	}

	ing, _ := repo.GetIngredient(context.Background(), "syrup-x")
	if !ing.Quantity.Equal(dec("8")) {
		t.Fatalf("expected stock untouched by replace, got %s", ing.Quantity)
	}
}

func TestDeleteBillRequiresAdmin(t *testing.T) {
	repo := newSyrupStore(t)
	svc := newTestService(repo, nil, Options{})

	bill, err := svc.CreateBill(staffCtx(), domain.BillCreateRequest{
		Lines: []domain.CartLine{{DrinkID: "drink-a", Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("create bill: %v", err)
	}
	if err := svc.DeleteBill(managerCtx(), bill.ID); !errors.Is(err, store.ErrForbidden) {
		t.Fatalf("expected manager delete to be forbidden, got %v", err)
	}
	if err := svc.DeleteBill(adminCtx(), bill.ID); err != nil {
		t.Fatalf("admin delete: %v", err)
	}
	if _, err := svc.GetBill(staffCtx(), bill.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected deleted bill to be gone, got %v", err)
	}
}

func TestListBillsAndReports(t *testing.T) {
	repo := newSyrupStore(t)
	ctx := context.Background()
	if _, err := repo.CreateDrink(ctx, domain.Drink{
		ID: "drink-b", Name: "Drink B", CategoryID: "cat-coffee",
		Prices: map[string]decimal.Decimal{domain.SizeSmall: dec("10000")},
		Active: true,
	}); err != nil {
		t.Fatalf("create drink: %v", err)
	}

	day1 := fixedNow
	day2 := fixedNow.AddDate(0, 0, 1)
	clock := day1
	svc := newTestService(repo, nil, Options{Now: func() time.Time { return clock }})

	for _, step := range []struct {
		at    time.Time
		lines []domain.CartLine
	}{
		{day1, []domain.CartLine{{DrinkID: "drink-a", Quantity: 2}}},
		{day1, []domain.CartLine{{DrinkID: "drink-b", Quantity: 3}}},
		{day2, []domain.CartLine{{DrinkID: "drink-a", Quantity: 1}, {DrinkID: "drink-b", Quantity: 3}}},
	} {
		clock = step.at
		if _, err := svc.CreateBill(staffCtx(), domain.BillCreateRequest{Lines: step.lines}); err != nil {
			t.Fatalf("create bill: %v", err)
		}
	}
	clock = day2

	list, err := svc.ListBills(staffCtx(), BillQuery{Period: "day", Date: "2026-03-10"})
	if err != nil {
		t.Fatalf("list bills: %v", err)
	}
	if list.TotalCount != 2 || list.TotalAmount.StringFixed(2) != "70000.00" {
		t.Fatalf("expected 2 bills worth 70000 on day one, got %d / %s", list.TotalCount, list.TotalAmount)
	}

	revenue, err := svc.RevenueReport(managerCtx(), "week", "2026-03-10")
	if err != nil {
		t.Fatalf("revenue report: %v", err)
	}
	if len(revenue.Days) != 2 || revenue.Days[0].Date != "2026-03-10" || revenue.TotalRevenue.StringFixed(2) != "120000.00" {
		t.Fatalf("unexpected revenue report %+v", revenue)
	}

	items, err := svc.ItemsSoldReport(managerCtx(), "month", "2026-03-10")
	if err != nil {
		t.Fatalf("items report: %v", err)
	}
	if len(items.Items) != 2 || items.Items[0].Name != "Drink A" || items.Items[0].TotalQuantity != 3 || items.Items[1].TotalQuantity != 6 {
		t.Fatalf("unexpected items report %+v", items.Items)
	}

	popular, err := svc.PopularItemsReport(managerCtx(), "all", "", 1)
	if err != nil {
		t.Fatalf("popular report: %v", err)
	}
	if len(popular.Items) != 1 || popular.Items[0].Name != "Drink B" || popular.From != nil {
		t.Fatalf("unexpected popular report %+v", popular)
	}

	if _, err := svc.RevenueReport(staffCtx(), "day", ""); !errors.Is(err, store.ErrForbidden) {
		t.Fatalf("expected staff reports to be forbidden, got %v", err)
	}
	if _, err := svc.RevenueReport(managerCtx(), "decade", ""); !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected invalid period, got %v", err)
	}
}

func TestScheduleValidation(t *testing.T) {
	repo := memory.New()
	if err := repo.CreateUser(context.Background(), domain.UserAccount{Username: "staff", Password: "x", Role: domain.RoleStaff, Active: true}); err != nil {
		t.Fatalf("create user: %v", err)
	}
	svc := newTestService(repo, nil, Options{})

	week := domain.ScheduleWeek{
		StartDate: time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC),
		Days:      domain.WeekDays{Monday: []domain.ShiftSlot{{StartTime: "08:00", EndTime: "12:00"}}},
	}
	created, err := svc.CreateSchedule(managerCtx(), domain.WeekScheduleRequest{UserID: "Staff", Weeks: []domain.ScheduleWeek{week}})
	if err != nil {
		t.Fatalf("create schedule: %v", err)
	}
	if created.UserID != "staff" {
		t.Fatalf("expected normalized user id, got %q", created.UserID)
	}

	bad := week
	bad.Days = domain.WeekDays{Friday: []domain.ShiftSlot{{StartTime: "18:00", EndTime: "09:00"}}}
	if _, err := svc.UpdateSchedule(managerCtx(), created.ID, domain.WeekScheduleRequest{UserID: "staff", Weeks: []domain.ScheduleWeek{bad}}); !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected reversed shift to be rejected, got %v", err)
	}

	if _, err := svc.CreateSchedule(managerCtx(), domain.WeekScheduleRequest{UserID: "ghost", Weeks: []domain.ScheduleWeek{week}}); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected unknown user to be not found, got %v", err)
	}

	list, err := svc.ListSchedules(staffCtx(), "staff")
	if err != nil || len(list) != 1 {
		t.Fatalf("expected one schedule, got %d err=%v", len(list), err)
	}
}

func TestCreateDrinkValidatesReferences(t *testing.T) {
	svc := New(memory.NewSeeded(), nil, Options{})
	req := domain.DrinkRequest{
		Name:         "Iced Mocha",
		CategoryID:   "cat-coffee",
		Prices:       map[string]decimal.Decimal{"m": dec("45000")},
		Recipe:       []domain.RecipeLine{{IngredientID: "ing-espresso", QuantityPerUnit: dec("18")}},
		Options:      domain.DrinkOptions{Temperature: []string{"COLD"}, Ice: []string{"50%"}},
		PromotionIDs: []string{"promo-big-order"},
	}

	drink, err := svc.CreateDrink(managerCtx(), req)
	if err != nil {
		t.Fatalf("create drink: %v", err)
	}
	if _, ok := drink.Prices[domain.SizeMedium]; !ok || !drink.Active || drink.Options.Temperature[0] != "cold" {
		t.Fatalf("unexpected drink %+v", drink)
	}

	req.Recipe = []domain.RecipeLine{{IngredientID: "ing-unknown", QuantityPerUnit: dec("1")}}
	if _, err := svc.CreateDrink(managerCtx(), req); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected unknown ingredient to be not found, got %v", err)
	}

	req.Recipe = nil
	req.Options = domain.DrinkOptions{Sugar: []string{"90%"}}
	if _, err := svc.CreateDrink(managerCtx(), req); !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected unsupported option to be rejected, got %v", err)
	}
}

func containsID(ids []string, want string) bool {
	for _, id := range ids {
		if id == want {
			return true
		}
	}
	return false
}

func TestDeletePromotionDetachesItFromDrinks(t *testing.T) {
	svc := New(memory.NewSeeded(), nil, Options{})
	ctx := managerCtx()

	if err := svc.DeletePromotion(ctx, "promo-latte-b2g1"); err != nil {
		t.Fatalf("delete promotion: %v", err)
	}

	latte, err := svc.GetDrink(ctx, "drink-latte")
	if err != nil {
		t.Fatalf("get drink: %v", err)
	}
	if containsID(latte.PromotionIDs, "promo-latte-b2g1") {
		t.Fatalf("expected deleted promotion to be unlinked, got %v", latte.PromotionIDs)
	}

	// Sending the drink back unchanged must not trip the promotion reference check.
	_, err = svc.UpdateDrink(ctx, latte.ID, domain.DrinkRequest{
		Name:         latte.Name,
		CategoryID:   latte.CategoryID,
		Prices:       latte.Prices,
		Recipe:       latte.Recipe,
		Options:      latte.Options,
		PromotionIDs: latte.PromotionIDs,
	})
	if err != nil {
		t.Fatalf("update drink after promotion delete: %v", err)
	}
}

func TestEvaluatePromotionsReferencedFollowsCartOrder(t *testing.T) {
	svc := New(memory.NewSeeded(), nil, Options{})
	tea := domain.CartLine{DrinkID: "drink-milk-tea", Quantity: 3}
	americano := domain.CartLine{DrinkID: "drink-americano", Quantity: 1}

	cases := []struct {
		name  string
		lines []domain.CartLine
		want  []string
	}{
		{"tea first", []domain.CartLine{tea, americano}, []string{"promo-tea-b3g1", "promo-coffee-fixed"}},
		{"americano first", []domain.CartLine{americano, tea}, []string{"promo-coffee-fixed", "promo-tea-b3g1"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			// repeated so map iteration in the store cannot line up by chance
			for i := 0; i < 10; i++ {
				got, err := svc.EvaluatePromotions(staffCtx(), domain.PromotionEvaluateRequest{Lines: tc.lines})
				if err != nil {
					t.Fatalf("evaluate: %v", err)
				}
				if len(got) != len(tc.want) {
					t.Fatalf("expected %v, got %+v", tc.want, got)
				}
				for j, id := range tc.want {
					if got[j].Promotion.ID != id {
						t.Fatalf("position %d: expected %s, got %s", j, id, got[j].Promotion.ID)
					}
				}
			}
		})
	}
}
