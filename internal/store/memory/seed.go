package memory

import (
	"log"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"drinkpos/backend/internal/domain"
)

func seedUsers() map[string]domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	managerPwd := envOr("SEED_MANAGER_PASSWORD", "manager123")
	staffPwd := envOr("SEED_STAFF_PASSWORD", "staff123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_MANAGER_PASSWORD") == "" || os.Getenv("SEED_STAFF_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_ADMIN_PASSWORD, SEED_MANAGER_PASSWORD and SEED_STAFF_PASSWORD to override.")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		fullName string
		role     string
	}{
		{"admin", adminPwd, "Store Admin", domain.RoleAdmin},
		{"manager", managerPwd, "Shift Manager", domain.RoleManager},
		{"staff", staffPwd, "Barista", domain.RoleStaff},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[memory-store] failed to hash seed password for %s: %v", u.username, err)
		}
		users[u.username] = domain.UserAccount{
			Username:  u.username,
			Password:  string(hash),
			FullName:  u.fullName,
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func vnd(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

func qty(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// NewSeeded returns a store with a small demo menu: two categories, four
// drinks with recipes, their ingredients and one promotion of every type.
func NewSeeded() *Store {
	s := New()
	now := time.Now().UTC()

	for _, c := range []domain.Category{
		{ID: "cat-coffee", Name: "Coffee"},
		{ID: "cat-tea", Name: "Tea"},
	} {
		c.CreatedAt = now
		s.categories[c.ID] = c
	}

	for _, ing := range []domain.Ingredient{
		{ID: "ing-espresso", Name: "Espresso Beans", Quantity: qty("5000"), Unit: "g", UnitPrice: vnd(450)},
		{ID: "ing-milk", Name: "Fresh Milk", Quantity: qty("20000"), Unit: "ml", UnitPrice: vnd(35)},
		{ID: "ing-caramel", Name: "Caramel Syrup", Quantity: qty("3000"), Unit: "ml", UnitPrice: vnd(120)},
		{ID: "ing-black-tea", Name: "Black Tea Leaves", Quantity: qty("2000"), Unit: "g", UnitPrice: vnd(300)},
		{ID: "ing-sugar", Name: "Cane Sugar", Quantity: qty("10000"), Unit: "g", UnitPrice: vnd(25)},
	} {
		ing.CreatedAt = now
		ing.UpdatedAt = now
		s.ingredients[ing.ID] = ing
	}

	allLevels := []string{"30%", "50%", "70%"}
	for _, d := range []domain.Drink{
		{
			ID: "drink-latte", Name: "Caffe Latte", CategoryID: "cat-coffee",
			Prices: map[string]decimal.Decimal{domain.SizeSmall: vnd(35000), domain.SizeMedium: vnd(40000), domain.SizeLarge: vnd(45000)},
			Recipe: []domain.RecipeLine{
				{IngredientID: "ing-espresso", QuantityPerUnit: qty("18")},
				{IngredientID: "ing-milk", QuantityPerUnit: qty("200")},
			},
			Options:      domain.DrinkOptions{Temperature: []string{"hot", "cold"}, Sugar: allLevels, Ice: allLevels},
			PromotionIDs: []string{"promo-latte-b2g1"},
		},
		{
			ID: "drink-caramel-macchiato", Name: "Caramel Macchiato", CategoryID: "cat-coffee",
			Prices: map[string]decimal.Decimal{domain.SizeMedium: vnd(50000), domain.SizeLarge: vnd(55000)},
			Recipe: []domain.RecipeLine{
				{IngredientID: "ing-espresso", QuantityPerUnit: qty("18")},
				{IngredientID: "ing-milk", QuantityPerUnit: qty("180")},
				{IngredientID: "ing-caramel", QuantityPerUnit: qty("20")},
			},
			Options:      domain.DrinkOptions{Temperature: []string{"hot", "cold"}, Ice: allLevels},
			PromotionIDs: []string{"promo-big-order"},
		},
		{
			ID: "drink-americano", Name: "Americano", CategoryID: "cat-coffee",
			Prices: map[string]decimal.Decimal{domain.SizeSmall: vnd(30000), domain.SizeMedium: vnd(35000)},
			Recipe: []domain.RecipeLine{
				{IngredientID: "ing-espresso", QuantityPerUnit: qty("18")},
			},
			Options:      domain.DrinkOptions{Temperature: []string{"hot", "cold"}, Sugar: allLevels},
			PromotionIDs: []string{"promo-coffee-fixed"},
		},
		{
			ID: "drink-milk-tea", Name: "Milk Tea", CategoryID: "cat-tea",
			Prices: map[string]decimal.Decimal{domain.SizeMedium: vnd(30000), domain.SizeLarge: vnd(35000)},
			Recipe: []domain.RecipeLine{
				{IngredientID: "ing-black-tea", QuantityPerUnit: qty("8")},
				{IngredientID: "ing-milk", QuantityPerUnit: qty("100")},
				{IngredientID: "ing-sugar", QuantityPerUnit: qty("15")},
			},
			Options:      domain.DrinkOptions{Temperature: []string{"cold"}, Sugar: allLevels, Ice: allLevels},
			PromotionIDs: []string{"promo-tea-b3g1"},
		},
	} {
		d.Active = true
		d.CreatedAt = now
		d.UpdatedAt = now
		s.drinks[d.ID] = d
	}

	start := now.AddDate(0, 0, -7)
	end := now.AddDate(0, 3, 0)
	for i, p := range []domain.Promotion{
		{
			ID: "promo-latte-b2g1", Name: "Latte buy 2 get 1", Type: domain.PromotionBuyGetFree,
			Condition: domain.BuyGetFree{
				BuyItems:  []domain.DrinkQuantity{{DrinkID: "drink-latte", Quantity: 2}},
				FreeItems: []domain.DrinkQuantity{{DrinkID: "drink-latte", Quantity: 1}},
			},
		},
		{
			ID: "promo-big-order", Name: "10% off orders over 200k", Type: domain.PromotionDiscount,
			Condition: domain.PercentDiscount{DiscountPercent: vnd(10), MinimumAmount: vnd(200000)},
		},
		{
			ID: "promo-coffee-fixed", Name: "Americano 25k", Type: domain.PromotionFixedPrice,
			Condition: domain.FixedPrice{Items: []domain.FixedPriceItem{{DrinkID: "drink-americano", FixedPrice: vnd(25000)}}},
		},
		{
			ID: "promo-tea-b3g1", Name: "Any 3 teas get 1 tea", Type: domain.PromotionBuyCategoryGetFree,
			Condition: domain.BuyCategoryGetFree{
				Buy:  []domain.CategoryQuantity{{CategoryID: "cat-tea", Quantity: 3}},
				Free: domain.CategoryQuantity{CategoryID: "cat-tea", Quantity: 1},
			},
		},
	} {
		p.Description = p.Name
		p.StartDate = start
		p.EndDate = end
		p.Active = true
		p.CreatedAt = now.Add(time.Duration(i) * time.Millisecond)
		p.UpdatedAt = p.CreatedAt
		s.promotions[p.ID] = p
	}

	s.users = seedUsers()
	return s
}
