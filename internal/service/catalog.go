package service

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"drinkpos/backend/internal/cache"
	"drinkpos/backend/internal/domain"
	"drinkpos/backend/internal/store"
	"drinkpos/backend/internal/xid"
)

var (
	allowedTemperatures = []string{"hot", "cold"}
	allowedLevels       = []string{"30%", "50%", "70%"}
	allowedSizes        = []string{domain.SizeSmall, domain.SizeMedium, domain.SizeLarge}
)

func (s *Service) ListCategories(ctx context.Context) ([]domain.Category, error) {
	return s.repo.ListCategories(ctx)
}

func (s *Service) CreateCategory(ctx context.Context, req domain.CategoryRequest) (domain.Category, error) {
	if _, err := requireManager(ctx); err != nil {
		return domain.Category{}, err
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Category{}, fmt.Errorf("%w: category name required", store.ErrInvalidInput)
	}

	created, err := s.repo.CreateCategory(ctx, domain.Category{
		ID:        xid.New("cat"),
		Name:      name,
		ImageURL:  strings.TrimSpace(req.ImageURL),
		CreatedAt: s.now().UTC(),
	})
	if err != nil {
		return domain.Category{}, err
	}
	return *created, nil
}

func (s *Service) UpdateCategory(ctx context.Context, id string, req domain.CategoryRequest) (domain.Category, error) {
	if _, err := requireManager(ctx); err != nil {
		return domain.Category{}, err
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Category{}, fmt.Errorf("%w: category name required", store.ErrInvalidInput)
	}

	updated, err := s.repo.UpdateCategory(ctx, domain.Category{
		ID:       strings.TrimSpace(id),
		Name:     name,
		ImageURL: strings.TrimSpace(req.ImageURL),
	})
	if err != nil {
		return domain.Category{}, err
	}
	return *updated, nil
}

func (s *Service) DeleteCategory(ctx context.Context, id string) error {
	if _, err := requireManager(ctx); err != nil {
		return err
	}
	return s.repo.DeleteCategory(ctx, strings.TrimSpace(id))
}

func (s *Service) ListDrinks(ctx context.Context, categoryID string) ([]domain.Drink, error) {
	return s.repo.ListDrinks(ctx, strings.TrimSpace(categoryID))
}

func (s *Service) GetDrink(ctx context.Context, id string) (domain.Drink, error) {
	drink, err := s.repo.GetDrink(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.Drink{}, err
	}
	return *drink, nil
}

func (s *Service) CreateDrink(ctx context.Context, req domain.DrinkRequest) (domain.Drink, error) {
	if _, err := requireManager(ctx); err != nil {
		return domain.Drink{}, err
	}
	drink, err := s.buildDrink(ctx, req)
	if err != nil {
		return domain.Drink{}, err
	}
	drink.ID = xid.New("drink")
	drink.CreatedAt = s.now().UTC()
	drink.UpdatedAt = drink.CreatedAt

	created, err := s.repo.CreateDrink(ctx, drink)
	if err != nil {
		return domain.Drink{}, err
	}
	return *created, nil
}

func (s *Service) UpdateDrink(ctx context.Context, id string, req domain.DrinkRequest) (domain.Drink, error) {
	if _, err := requireManager(ctx); err != nil {
		return domain.Drink{}, err
	}
	drink, err := s.buildDrink(ctx, req)
	if err != nil {
		return domain.Drink{}, err
	}
	drink.ID = strings.TrimSpace(id)
	drink.UpdatedAt = s.now().UTC()

	updated, err := s.repo.UpdateDrink(ctx, drink)
	if err != nil {
		return domain.Drink{}, err
	}
	return *updated, nil
}

func (s *Service) DeleteDrink(ctx context.Context, id string) error {
	if _, err := requireManager(ctx); err != nil {
		return err
	}
	return s.repo.DeleteDrink(ctx, strings.TrimSpace(id))
}

// buildDrink validates a drink request. Recipe ingredients and attached
// promotions must already exist.
func (s *Service) buildDrink(ctx context.Context, req domain.DrinkRequest) (domain.Drink, error) {
	drink := domain.Drink{
		Name:       strings.TrimSpace(req.Name),
		CategoryID: strings.TrimSpace(req.CategoryID),
		ImageURL:   strings.TrimSpace(req.ImageURL),
		Prices:     make(map[string]decimal.Decimal, len(req.Prices)),
		Active:     true,
	}
	if req.Active != nil {
		drink.Active = *req.Active
	}
	if drink.Name == "" || drink.CategoryID == "" {
		return domain.Drink{}, fmt.Errorf("%w: name and category_id required", store.ErrInvalidInput)
	}

	for size, price := range req.Prices {
		size = strings.ToUpper(strings.TrimSpace(size))
		if !slices.Contains(allowedSizes, size) || !price.IsPositive() {
			return domain.Drink{}, fmt.Errorf("%w: invalid price for size %q", store.ErrInvalidInput, size)
		}
		drink.Prices[size] = price
	}
	if len(drink.Prices) == 0 {
		return domain.Drink{}, fmt.Errorf("%w: at least one size price required", store.ErrInvalidInput)
	}

	seen := make(map[string]bool, len(req.Recipe))
	for _, line := range req.Recipe {
		line.IngredientID = strings.TrimSpace(line.IngredientID)
		if line.IngredientID == "" || !line.QuantityPerUnit.IsPositive() {
			return domain.Drink{}, fmt.Errorf("%w: recipe lines need ingredient_id and positive quantity_per_unit", store.ErrInvalidInput)
		}
		if !seen[line.IngredientID] {
			if _, err := s.repo.GetIngredient(ctx, line.IngredientID); err != nil {
				return domain.Drink{}, err
			}
			seen[line.IngredientID] = true
		}
		drink.Recipe = append(drink.Recipe, line)
	}

	drink.Options = domain.DrinkOptions{
		Temperature: normalizeOptionValues(req.Options.Temperature, strings.ToLower),
		Sugar:       normalizeOptionValues(req.Options.Sugar, nil),
		Ice:         normalizeOptionValues(req.Options.Ice, nil),
	}
	for _, axis := range []struct {
		name    string
		values  []string
		allowed []string
	}{
		{"temperature", drink.Options.Temperature, allowedTemperatures},
		{"sugar", drink.Options.Sugar, allowedLevels},
		{"ice", drink.Options.Ice, allowedLevels},
	} {
		for _, v := range axis.values {
			if !slices.Contains(axis.allowed, v) {
				return domain.Drink{}, fmt.Errorf("%w: %s option %q not supported", store.ErrInvalidInput, axis.name, v)
			}
		}
	}

	for _, id := range req.PromotionIDs {
		id = strings.TrimSpace(id)
		if id != "" && !slices.Contains(drink.PromotionIDs, id) {
			drink.PromotionIDs = append(drink.PromotionIDs, id)
		}
	}
	if len(drink.PromotionIDs) > 0 {
		found, err := s.repo.GetPromotionsByIDs(ctx, drink.PromotionIDs)
		if err != nil {
			return domain.Drink{}, err
		}
		for _, id := range drink.PromotionIDs {
			if _, ok := found[id]; !ok {
				return domain.Drink{}, store.NotFound("promotion", id)
			}
		}
	}
	return drink, nil
}

func normalizeOptionValues(values []string, transform func(string) string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if transform != nil {
			v = transform(v)
		}
		if v != "" && !slices.Contains(out, v) {
			out = append(out, v)
		}
	}
	return out
}

func (s *Service) ListIngredients(ctx context.Context) ([]domain.Ingredient, error) {
	return s.repo.ListIngredients(ctx)
}

func (s *Service) GetIngredient(ctx context.Context, id string) (domain.Ingredient, error) {
	ing, err := s.repo.GetIngredient(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.Ingredient{}, err
	}
	return *ing, nil
}

func (s *Service) CreateIngredient(ctx context.Context, req domain.IngredientCreateRequest) (domain.Ingredient, error) {
	if _, err := requireManager(ctx); err != nil {
		return domain.Ingredient{}, err
	}
	name := strings.TrimSpace(req.Name)
	unit := strings.TrimSpace(req.Unit)
	if name == "" || unit == "" {
		return domain.Ingredient{}, fmt.Errorf("%w: name and unit required", store.ErrInvalidInput)
	}
	if req.Quantity.IsNegative() || req.UnitPrice.IsNegative() {
		return domain.Ingredient{}, fmt.Errorf("%w: quantity and unit_price must not be negative", store.ErrInvalidInput)
	}

	now := s.now().UTC()
	created, err := s.repo.CreateIngredient(ctx, domain.Ingredient{
		ID:        xid.New("ing"),
		Name:      name,
		Quantity:  req.Quantity,
		Unit:      unit,
		UnitPrice: req.UnitPrice,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return domain.Ingredient{}, err
	}
	return *created, nil
}

// UpdateIngredient patches descriptive fields. A quantity in the patch is an
// explicit stock correction and is written to the ledger as an adjustment.
func (s *Service) UpdateIngredient(ctx context.Context, id string, req domain.IngredientUpdateRequest) (domain.Ingredient, error) {
	actor, err := requireManager(ctx)
	if err != nil {
		return domain.Ingredient{}, err
	}

	existing, err := s.repo.GetIngredient(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.Ingredient{}, err
	}

	updated := *existing
	detailsChanged := false
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.Ingredient{}, fmt.Errorf("%w: name must not be empty", store.ErrInvalidInput)
		}
		updated.Name = name
		detailsChanged = true
	}
	if req.Unit != nil {
		unit := strings.TrimSpace(*req.Unit)
		if unit == "" {
			return domain.Ingredient{}, fmt.Errorf("%w: unit must not be empty", store.ErrInvalidInput)
		}
		updated.Unit = unit
		detailsChanged = true
	}
	if req.UnitPrice != nil {
		if req.UnitPrice.IsNegative() {
			return domain.Ingredient{}, fmt.Errorf("%w: unit_price must not be negative", store.ErrInvalidInput)
		}
		updated.UnitPrice = *req.UnitPrice
		detailsChanged = true
	}
	if req.Quantity != nil && req.Quantity.IsNegative() {
		return domain.Ingredient{}, fmt.Errorf("%w: quantity must not be negative", store.ErrInvalidInput)
	}

	result := &updated
	if detailsChanged {
		updated.UpdatedAt = s.now().UTC()
		result, err = s.repo.UpdateIngredientDetails(ctx, updated)
		if err != nil {
			return domain.Ingredient{}, err
		}
	}
	if req.Quantity != nil && !req.Quantity.Equal(existing.Quantity) {
		result, err = s.repo.AdjustIngredientQuantity(ctx, existing.ID, *req.Quantity, xid.New("itx"))
		if err != nil {
			return domain.Ingredient{}, err
		}
		s.logger.Info("ingredient stock corrected",
			zap.String("ingredient_id", existing.ID),
			zap.String("from", existing.Quantity.String()),
			zap.String("to", req.Quantity.String()),
			zap.String("reason", strings.TrimSpace(req.Reason)),
			zap.String("actor", actor.Username))
	}
	return result.WithTotalValue(), nil
}

func (s *Service) DeleteIngredient(ctx context.Context, id string) error {
	if _, err := requireManager(ctx); err != nil {
		return err
	}
	return s.repo.DeleteIngredient(ctx, strings.TrimSpace(id))
}

// Restock adds purchased stock and records the expense in one write. A
// positive unit_price becomes the ingredient's new unit price; otherwise the
// current price values the expense.
func (s *Service) Restock(ctx context.Context, id string, req domain.RestockRequest) (domain.RestockResponse, error) {
	actor, err := requireManager(ctx)
	if err != nil {
		return domain.RestockResponse{}, err
	}
	if !req.Quantity.IsPositive() {
		return domain.RestockResponse{}, fmt.Errorf("%w: restock quantity must be positive", store.ErrInvalidInput)
	}
	if req.UnitPrice.IsNegative() {
		return domain.RestockResponse{}, fmt.Errorf("%w: unit_price must not be negative", store.ErrInvalidInput)
	}

	existing, err := s.repo.GetIngredient(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.RestockResponse{}, err
	}
	unitPrice := req.UnitPrice
	if !unitPrice.IsPositive() {
		unitPrice = existing.UnitPrice
	}

	ing, expense, err := s.repo.Restock(ctx, domain.IngredientExpense{
		ID:           xid.New("exp"),
		IngredientID: existing.ID,
		Quantity:     req.Quantity,
		Unit:         existing.Unit,
		UnitPrice:    unitPrice,
		TotalAmount:  req.Quantity.Mul(unitPrice).Round(2),
		CreatedBy:    actor.Username,
		CreatedAt:    s.now().UTC(),
	})
	if err != nil {
		return domain.RestockResponse{}, err
	}

	s.logger.Info("ingredient restocked",
		zap.String("ingredient_id", ing.ID),
		zap.String("quantity", expense.Quantity.String()),
		zap.String("total_amount", expense.TotalAmount.StringFixed(2)),
		zap.String("actor", actor.Username))
	return domain.RestockResponse{Ingredient: *ing, Expense: *expense}, nil
}

func (s *Service) ListIngredientExpenses(ctx context.Context, rawPeriod, rawDate string, page, pageSize int) (domain.ExpenseListResponse, error) {
	if _, err := requireManager(ctx); err != nil {
		return domain.ExpenseListResponse{}, err
	}
	from, to, _, err := s.resolveRange(rawPeriod, rawDate)
	if err != nil {
		return domain.ExpenseListResponse{}, err
	}
	page, pageSize = normalizePage(page, pageSize)

	expenses, count, total, err := s.repo.ListIngredientExpenses(ctx, domain.ExpenseFilter{
		From:   from,
		To:     to,
		Offset: (page - 1) * pageSize,
		Limit:  pageSize,
	})
	if err != nil {
		return domain.ExpenseListResponse{}, err
	}
	return domain.ExpenseListResponse{
		Expenses:    expenses,
		TotalCount:  count,
		TotalAmount: total,
		Page:        page,
		PageSize:    pageSize,
	}, nil
}

func (s *Service) ListIngredientTransactions(ctx context.Context, filter domain.IngredientTransactionFilter) ([]domain.IngredientTransaction, error) {
	if _, err := requireManager(ctx); err != nil {
		return nil, err
	}
	filter.IngredientID = strings.TrimSpace(filter.IngredientID)
	filter.BillID = strings.TrimSpace(filter.BillID)
	if filter.Limit < 1 || filter.Limit > 500 {
		filter.Limit = 100
	}
	return s.repo.ListIngredientTransactions(ctx, filter)
}

func (s *Service) ListPromotions(ctx context.Context) ([]domain.Promotion, error) {
	return s.repo.ListPromotions(ctx)
}

func (s *Service) CreatePromotion(ctx context.Context, promo domain.Promotion) (domain.Promotion, error) {
	actor, err := requireManager(ctx)
	if err != nil {
		return domain.Promotion{}, err
	}
	promo.Name = strings.TrimSpace(promo.Name)
	promo.Description = strings.TrimSpace(promo.Description)
	if err := promo.Validate(); err != nil {
		return domain.Promotion{}, err
	}

	promo.ID = xid.New("promo")
	promo.CreatedAt = s.now().UTC()
	promo.UpdatedAt = promo.CreatedAt

	saved, err := s.repo.CreatePromotion(ctx, promo)
	if err != nil {
		return domain.Promotion{}, err
	}
	s.invalidatePromotions(ctx)
	s.logger.Info("promotion created", zap.String("promotion_id", saved.ID), zap.String("type", string(saved.Type)), zap.String("actor", actor.Username))
	return *saved, nil
}

func (s *Service) UpdatePromotion(ctx context.Context, id string, promo domain.Promotion) (domain.Promotion, error) {
	actor, err := requireManager(ctx)
	if err != nil {
		return domain.Promotion{}, err
	}
	promo.ID = strings.TrimSpace(id)
	promo.Name = strings.TrimSpace(promo.Name)
	promo.Description = strings.TrimSpace(promo.Description)
	if err := promo.Validate(); err != nil {
		return domain.Promotion{}, err
	}
	promo.UpdatedAt = s.now().UTC()

	saved, err := s.repo.UpdatePromotion(ctx, promo)
	if err != nil {
		return domain.Promotion{}, err
	}
	s.invalidatePromotions(ctx)
	s.logger.Info("promotion updated", zap.String("promotion_id", saved.ID), zap.String("actor", actor.Username))
	return *saved, nil
}

func (s *Service) DeletePromotion(ctx context.Context, id string) error {
	if _, err := requireManager(ctx); err != nil {
		return err
	}
	if err := s.repo.DeletePromotion(ctx, strings.TrimSpace(id)); err != nil {
		return err
	}
	s.invalidatePromotions(ctx)
	return nil
}

func (s *Service) invalidatePromotions(ctx context.Context) {
	if err := s.cache.Invalidate(ctx, cache.ActivePromotionsKey); err != nil {
		s.logger.Warn("promotion cache invalidate failed", zap.Error(err))
	}
}
