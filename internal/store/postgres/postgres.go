package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"

	"drinkpos/backend/internal/domain"
	"drinkpos/backend/internal/store"
)

//go:embed schema.sql
var schemaSQL string

type Store struct {
	db *sql.DB
}

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Migrate creates missing tables and indexes. Every statement is idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// WithinTx runs fn in a serializable transaction. Serialization failures
// surface as store.ErrRaceLost so the caller can retry the whole unit.
func (s *Store) WithinTx(ctx context.Context, fn func(tx store.Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	defer func() { _ = sqlTx.Rollback() }()

	if err := fn(&pgTx{tx: sqlTx}); err != nil {
		return mapError(err)
	}
	if err := sqlTx.Commit(); err != nil {
		return mapError(err)
	}
	return nil
}

type pgTx struct {
	tx *sql.Tx
}

func (t *pgTx) GetIngredient(ctx context.Context, id string) (*domain.Ingredient, error) {
	row := t.tx.QueryRowContext(ctx, `
		SELECT id, name, quantity, unit, unit_price, created_at, updated_at
		FROM ingredients
		WHERE id = $1
		FOR UPDATE
	`, id)
	ing, err := scanIngredient(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.NotFound("ingredient", id)
		}
		return nil, err
	}
	return ing, nil
}

func (t *pgTx) CompareAndSwapQuantity(ctx context.Context, ingredientID string, expected, next decimal.Decimal) error {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE ingredients
		SET quantity = $3, updated_at = now()
		WHERE id = $1 AND quantity = $2
	`, ingredientID, expected, next)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrRaceLost
	}
	return nil
}

func (t *pgTx) AppendTransaction(ctx context.Context, entry domain.IngredientTransaction) error {
	if entry.ID == "" || entry.IngredientID == "" {
		return store.ErrInvalidInput
	}
	return insertLedgerEntry(ctx, t.tx, entry)
}

func (t *pgTx) NextBillSequence(ctx context.Context, dayKey string) (int, error) {
	var seq int
	err := t.tx.QueryRowContext(ctx, `
		INSERT INTO bill_sequences (day_key, last_seq)
		VALUES ($1, 1)
		ON CONFLICT (day_key)
		DO UPDATE SET last_seq = bill_sequences.last_seq + 1
		RETURNING last_seq
	`, dayKey).Scan(&seq)
	return seq, err
}

func (t *pgTx) CreateBill(ctx context.Context, bill domain.Bill) error {
	if bill.ID == "" || bill.Code == "" || len(bill.Lines) == 0 {
		return store.ErrInvalidCart
	}
	lines, err := json.Marshal(bill.Lines)
	if err != nil {
		return err
	}
	warnings, err := marshalWarnings(bill.StockWarnings)
	if err != nil {
		return err
	}

	_, err = t.tx.ExecContext(ctx, `
		INSERT INTO bills (id, code, user_id, lines, total_amount, stock_warnings, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, bill.ID, bill.Code, bill.UserID, lines, bill.TotalAmount, warnings, bill.CreatedAt, bill.UpdatedAt)
	return mapError(err)
}

func (s *Store) ListCategories(ctx context.Context) ([]domain.Category, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, COALESCE(image_url, ''), created_at
		FROM categories
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	categories := make([]domain.Category, 0, 16)
	for rows.Next() {
		var c domain.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.ImageURL, &c.CreatedAt); err != nil {
			return nil, err
		}
		c.CreatedAt = c.CreatedAt.UTC()
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

func (s *Store) GetCategory(ctx context.Context, id string) (*domain.Category, error) {
	var c domain.Category
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, COALESCE(image_url, ''), created_at
		FROM categories
		WHERE id = $1
	`, id).Scan(&c.ID, &c.Name, &c.ImageURL, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.NotFound("category", id)
		}
		return nil, err
	}
	c.CreatedAt = c.CreatedAt.UTC()
	return &c, nil
}

func (s *Store) CreateCategory(ctx context.Context, category domain.Category) (*domain.Category, error) {
	if category.ID == "" || category.Name == "" {
		return nil, store.ErrInvalidInput
	}
	if category.CreatedAt.IsZero() {
		category.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO categories (id, name, image_url, created_at)
		VALUES ($1,$2,$3,$4)
	`, category.ID, category.Name, nullIfEmpty(category.ImageURL), category.CreatedAt)
	if err != nil {
		return nil, mapError(err)
	}
	return &category, nil
}

func (s *Store) UpdateCategory(ctx context.Context, category domain.Category) (*domain.Category, error) {
	err := s.db.QueryRowContext(ctx, `
		UPDATE categories
		SET name = $2, image_url = $3
		WHERE id = $1
		RETURNING created_at
	`, category.ID, category.Name, nullIfEmpty(category.ImageURL)).Scan(&category.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.NotFound("category", category.ID)
		}
		return nil, mapError(err)
	}
	category.CreatedAt = category.CreatedAt.UTC()
	return &category, nil
}

func (s *Store) DeleteCategory(ctx context.Context, id string) error {
	return s.deleteByID(ctx, "categories", "category", id)
}

func (s *Store) ListDrinks(ctx context.Context, categoryID string) ([]domain.Drink, error) {
	if categoryID == "" {
		return s.loadDrinks(ctx, s.db, `ORDER BY name`)
	}
	return s.loadDrinks(ctx, s.db, `WHERE category_id = $1 ORDER BY name`, categoryID)
}

func (s *Store) GetDrink(ctx context.Context, id string) (*domain.Drink, error) {
	drinks, err := s.loadDrinks(ctx, s.db, `WHERE id = $1`, id)
	if err != nil {
		return nil, err
	}
	if len(drinks) == 0 {
		return nil, store.NotFound("drink", id)
	}
	return &drinks[0], nil
}

func (s *Store) GetDrinksByIDs(ctx context.Context, ids []string) (map[string]domain.Drink, error) {
	out := make(map[string]domain.Drink, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	drinks, err := s.loadDrinks(ctx, s.db, `WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	for _, d := range drinks {
		out[d.ID] = d
	}
	return out, nil
}

func (s *Store) CreateDrink(ctx context.Context, drink domain.Drink) (*domain.Drink, error) {
	if drink.ID == "" || drink.Name == "" {
		return nil, store.ErrInvalidInput
	}
	prices, options, err := marshalDrinkJSON(drink)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO drinks (id, name, category_id, image_url, prices, options, active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, drink.ID, drink.Name, drink.CategoryID, nullIfEmpty(drink.ImageURL), prices, options, drink.Active, drink.CreatedAt, drink.UpdatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, store.NotFound("category", drink.CategoryID)
		}
		return nil, mapError(err)
	}
	if err := writeDrinkChildren(ctx, tx, drink); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &drink, nil
}

func (s *Store) UpdateDrink(ctx context.Context, drink domain.Drink) (*domain.Drink, error) {
	prices, options, err := marshalDrinkJSON(drink)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	err = tx.QueryRowContext(ctx, `
		UPDATE drinks
		SET name = $2, category_id = $3, image_url = $4, prices = $5, options = $6, active = $7, updated_at = $8
		WHERE id = $1
		RETURNING created_at
	`, drink.ID, drink.Name, drink.CategoryID, nullIfEmpty(drink.ImageURL), prices, options, drink.Active, drink.UpdatedAt).Scan(&drink.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.NotFound("drink", drink.ID)
		}
		if isForeignKeyViolation(err) {
			return nil, store.NotFound("category", drink.CategoryID)
		}
		return nil, mapError(err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM drink_recipes WHERE drink_id = $1`, drink.ID); err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM drink_promotions WHERE drink_id = $1`, drink.ID); err != nil {
		return nil, err
	}
	if err := writeDrinkChildren(ctx, tx, drink); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	drink.CreatedAt = drink.CreatedAt.UTC()
	return &drink, nil
}

func (s *Store) DeleteDrink(ctx context.Context, id string) error {
	return s.deleteByID(ctx, "drinks", "drink", id)
}

// loadDrinks reads drink rows matching clause, then their recipes and
// promotion links in two batched queries.
func (s *Store) loadDrinks(ctx context.Context, q queryer, clause string, args ...any) ([]domain.Drink, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, name, category_id, COALESCE(image_url, ''), prices, options, active, created_at, updated_at
		FROM drinks
	`+clause, args...)
	if err != nil {
		return nil, err
	}

	drinks := make([]domain.Drink, 0, 32)
	index := make(map[string]int)
	for rows.Next() {
		var (
			d       domain.Drink
			prices  []byte
			options []byte
		)
		if err := rows.Scan(&d.ID, &d.Name, &d.CategoryID, &d.ImageURL, &prices, &options, &d.Active, &d.CreatedAt, &d.UpdatedAt); err != nil {
			_ = rows.Close()
			return nil, err
		}
		if err := json.Unmarshal(prices, &d.Prices); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("decode prices of drink %s: %w", d.ID, err)
		}
		if err := json.Unmarshal(options, &d.Options); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("decode options of drink %s: %w", d.ID, err)
		}
		d.CreatedAt = d.CreatedAt.UTC()
		d.UpdatedAt = d.UpdatedAt.UTC()
		index[d.ID] = len(drinks)
		drinks = append(drinks, d)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	_ = rows.Close()

	if len(drinks) == 0 {
		return drinks, nil
	}
	ids := make([]string, 0, len(drinks))
	for _, d := range drinks {
		ids = append(ids, d.ID)
	}

	recipeRows, err := q.QueryContext(ctx, `
		SELECT drink_id, ingredient_id, quantity_per_unit
		FROM drink_recipes
		WHERE drink_id = ANY($1)
		ORDER BY drink_id, position
	`, ids)
	if err != nil {
		return nil, err
	}
	for recipeRows.Next() {
		var (
			drinkID string
			line    domain.RecipeLine
		)
		if err := recipeRows.Scan(&drinkID, &line.IngredientID, &line.QuantityPerUnit); err != nil {
			_ = recipeRows.Close()
			return nil, err
		}
		i := index[drinkID]
		drinks[i].Recipe = append(drinks[i].Recipe, line)
	}
	if err := recipeRows.Err(); err != nil {
		_ = recipeRows.Close()
		return nil, err
	}
	_ = recipeRows.Close()

	promoRows, err := q.QueryContext(ctx, `
		SELECT drink_id, promotion_id
		FROM drink_promotions
		WHERE drink_id = ANY($1)
		ORDER BY drink_id, position
	`, ids)
	if err != nil {
		return nil, err
	}
	defer promoRows.Close()
	for promoRows.Next() {
		var drinkID, promoID string
		if err := promoRows.Scan(&drinkID, &promoID); err != nil {
			return nil, err
		}
		i := index[drinkID]
		drinks[i].PromotionIDs = append(drinks[i].PromotionIDs, promoID)
	}
	return drinks, promoRows.Err()
}

func writeDrinkChildren(ctx context.Context, tx *sql.Tx, drink domain.Drink) error {
	for i, line := range drink.Recipe {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO drink_recipes (drink_id, position, ingredient_id, quantity_per_unit)
			VALUES ($1,$2,$3,$4)
		`, drink.ID, i, line.IngredientID, line.QuantityPerUnit)
		if err != nil {
			if isForeignKeyViolation(err) {
				return store.NotFound("ingredient", line.IngredientID)
			}
			return err
		}
	}
	for i, promoID := range drink.PromotionIDs {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO drink_promotions (drink_id, promotion_id, position)
			VALUES ($1,$2,$3)
		`, drink.ID, promoID, i)
		if err != nil {
			if isForeignKeyViolation(err) {
				return store.NotFound("promotion", promoID)
			}
			return mapError(err)
		}
	}
	return nil
}

func marshalDrinkJSON(drink domain.Drink) ([]byte, []byte, error) {
	prices := drink.Prices
	if prices == nil {
		prices = map[string]decimal.Decimal{}
	}
	rawPrices, err := json.Marshal(prices)
	if err != nil {
		return nil, nil, err
	}
	rawOptions, err := json.Marshal(drink.Options)
	if err != nil {
		return nil, nil, err
	}
	return rawPrices, rawOptions, nil
}

const promotionColumns = `id, name, description, type, condition, start_date, end_date, active, created_at, updated_at`

func (s *Store) ListPromotions(ctx context.Context) ([]domain.Promotion, error) {
	return s.queryPromotions(ctx, `SELECT `+promotionColumns+` FROM promotions ORDER BY created_at, id`)
}

func (s *Store) GetPromotion(ctx context.Context, id string) (*domain.Promotion, error) {
	promos, err := s.queryPromotions(ctx, `SELECT `+promotionColumns+` FROM promotions WHERE id = $1`, id)
	if err != nil {
		return nil, err
	}
	if len(promos) == 0 {
		return nil, store.NotFound("promotion", id)
	}
	return &promos[0], nil
}

func (s *Store) GetPromotionsByIDs(ctx context.Context, ids []string) (map[string]domain.Promotion, error) {
	out := make(map[string]domain.Promotion, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	promos, err := s.queryPromotions(ctx, `SELECT `+promotionColumns+` FROM promotions WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	for _, p := range promos {
		out[p.ID] = p
	}
	return out, nil
}

func (s *Store) CreatePromotion(ctx context.Context, promo domain.Promotion) (*domain.Promotion, error) {
	if promo.ID == "" {
		return nil, store.ErrInvalidInput
	}
	condition, err := domain.EncodeCondition(promo.Condition)
	if err != nil {
		return nil, err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO promotions (`+promotionColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, promo.ID, promo.Name, promo.Description, string(promo.Type), condition, promo.StartDate, promo.EndDate, promo.Active, promo.CreatedAt, promo.UpdatedAt)
	if err != nil {
		return nil, mapError(err)
	}
	return &promo, nil
}

func (s *Store) UpdatePromotion(ctx context.Context, promo domain.Promotion) (*domain.Promotion, error) {
	condition, err := domain.EncodeCondition(promo.Condition)
	if err != nil {
		return nil, err
	}
	err = s.db.QueryRowContext(ctx, `
		UPDATE promotions
		SET name = $2, description = $3, type = $4, condition = $5, start_date = $6, end_date = $7, active = $8, updated_at = $9
		WHERE id = $1
		RETURNING created_at
	`, promo.ID, promo.Name, promo.Description, string(promo.Type), condition, promo.StartDate, promo.EndDate, promo.Active, promo.UpdatedAt).Scan(&promo.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.NotFound("promotion", promo.ID)
		}
		return nil, mapError(err)
	}
	promo.CreatedAt = promo.CreatedAt.UTC()
	return &promo, nil
}

func (s *Store) DeletePromotion(ctx context.Context, id string) error {
	return s.deleteByID(ctx, "promotions", "promotion", id)
}

// queryPromotions leaves Condition nil when the stored payload cannot be
// decoded; evaluation skips such promotions.
func (s *Store) queryPromotions(ctx context.Context, query string, args ...any) ([]domain.Promotion, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	promos := make([]domain.Promotion, 0, 16)
	for rows.Next() {
		var (
			p       domain.Promotion
			kind    string
			payload []byte
		)
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &kind, &payload, &p.StartDate, &p.EndDate, &p.Active, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		p.Type = domain.PromotionType(kind)
		if cond, err := domain.DecodeCondition(p.Type, payload); err == nil {
			p.Condition = cond
		}
		p.StartDate = p.StartDate.UTC()
		p.EndDate = p.EndDate.UTC()
		p.CreatedAt = p.CreatedAt.UTC()
		p.UpdatedAt = p.UpdatedAt.UTC()
		promos = append(promos, p)
	}
	return promos, rows.Err()
}

const ingredientColumns = `id, name, quantity, unit, unit_price, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanIngredient(row rowScanner) (*domain.Ingredient, error) {
	var ing domain.Ingredient
	if err := row.Scan(&ing.ID, &ing.Name, &ing.Quantity, &ing.Unit, &ing.UnitPrice, &ing.CreatedAt, &ing.UpdatedAt); err != nil {
		return nil, err
	}
	ing.CreatedAt = ing.CreatedAt.UTC()
	ing.UpdatedAt = ing.UpdatedAt.UTC()
	ing = ing.WithTotalValue()
	return &ing, nil
}

func (s *Store) ListIngredients(ctx context.Context) ([]domain.Ingredient, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+ingredientColumns+` FROM ingredients ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Ingredient, 0, 32)
	for rows.Next() {
		ing, err := scanIngredient(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *ing)
	}
	return out, rows.Err()
}

func (s *Store) GetIngredient(ctx context.Context, id string) (*domain.Ingredient, error) {
	ing, err := scanIngredient(s.db.QueryRowContext(ctx, `SELECT `+ingredientColumns+` FROM ingredients WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.NotFound("ingredient", id)
		}
		return nil, err
	}
	return ing, nil
}

func (s *Store) CreateIngredient(ctx context.Context, ingredient domain.Ingredient) (*domain.Ingredient, error) {
	if ingredient.ID == "" || ingredient.Name == "" {
		return nil, store.ErrInvalidInput
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ingredients (`+ingredientColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, ingredient.ID, ingredient.Name, ingredient.Quantity, ingredient.Unit, ingredient.UnitPrice, ingredient.CreatedAt, ingredient.UpdatedAt)
	if err != nil {
		return nil, mapError(err)
	}
	out := ingredient.WithTotalValue()
	return &out, nil
}

func (s *Store) UpdateIngredientDetails(ctx context.Context, ingredient domain.Ingredient) (*domain.Ingredient, error) {
	ing, err := scanIngredient(s.db.QueryRowContext(ctx, `
		UPDATE ingredients
		SET name = $2, unit = $3, unit_price = $4, updated_at = $5
		WHERE id = $1
		RETURNING `+ingredientColumns,
		ingredient.ID, ingredient.Name, ingredient.Unit, ingredient.UnitPrice, ingredient.UpdatedAt))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.NotFound("ingredient", ingredient.ID)
		}
		return nil, mapError(err)
	}
	return ing, nil
}

func (s *Store) AdjustIngredientQuantity(ctx context.Context, id string, quantity decimal.Decimal, entryID string) (*domain.Ingredient, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	existing, err := scanIngredient(tx.QueryRowContext(ctx, `SELECT `+ingredientColumns+` FROM ingredients WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.NotFound("ingredient", id)
		}
		return nil, err
	}

	now := time.Now().UTC()
	delta := existing.Quantity.Sub(quantity)
	if err := insertLedgerEntry(ctx, tx, domain.IngredientTransaction{
		ID:           entryID,
		Kind:         domain.LedgerKindAdjustment,
		IngredientID: id,
		Quantity:     delta,
		QuantityPrev: existing.Quantity,
		UnitPrice:    existing.UnitPrice,
		Price:        delta.Mul(existing.UnitPrice).Round(2),
		CreatedAt:    now,
	}); err != nil {
		return nil, err
	}

	updated, err := scanIngredient(tx.QueryRowContext(ctx, `
		UPDATE ingredients
		SET quantity = $2, updated_at = $3
		WHERE id = $1
		RETURNING `+ingredientColumns, id, quantity, now))
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *Store) DeleteIngredient(ctx context.Context, id string) error {
	return s.deleteByID(ctx, "ingredients", "ingredient", id)
}

func (s *Store) Restock(ctx context.Context, expense domain.IngredientExpense) (*domain.Ingredient, *domain.IngredientExpense, error) {
	if !expense.Quantity.IsPositive() {
		return nil, nil, store.ErrInvalidInput
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = tx.Rollback() }()

	ing, err := scanIngredient(tx.QueryRowContext(ctx, `
		UPDATE ingredients
		SET quantity = quantity + $2,
			unit_price = CASE WHEN $3::numeric > 0 THEN $3::numeric ELSE unit_price END,
			updated_at = $4
		WHERE id = $1
		RETURNING `+ingredientColumns,
		expense.IngredientID, expense.Quantity, expense.UnitPrice, expense.CreatedAt))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, store.NotFound("ingredient", expense.IngredientID)
		}
		return nil, nil, err
	}

	expense.Unit = ing.Unit
	_, err = tx.ExecContext(ctx, `
		INSERT INTO ingredient_expenses (id, ingredient_id, quantity, unit, unit_price, total_amount, created_by, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, expense.ID, expense.IngredientID, expense.Quantity, expense.Unit, expense.UnitPrice, expense.TotalAmount, expense.CreatedBy, expense.CreatedAt)
	if err != nil {
		return nil, nil, mapError(err)
	}
	if err := tx.Commit(); err != nil {
		return nil, nil, err
	}
	return ing, &expense, nil
}

func (s *Store) ListIngredientExpenses(ctx context.Context, filter domain.ExpenseFilter) ([]domain.IngredientExpense, int, decimal.Decimal, error) {
	from, to := nullBound(filter.From), nullBound(filter.To)

	var (
		count int
		total decimal.Decimal
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT count(*), COALESCE(sum(total_amount), 0)
		FROM ingredient_expenses
		WHERE ($1::timestamptz IS NULL OR created_at >= $1)
		  AND ($2::timestamptz IS NULL OR created_at <= $2)
	`, from, to).Scan(&count, &total)
	if err != nil {
		return nil, 0, decimal.Zero, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, ingredient_id, quantity, unit, unit_price, total_amount, created_by, created_at
		FROM ingredient_expenses
		WHERE ($1::timestamptz IS NULL OR created_at >= $1)
		  AND ($2::timestamptz IS NULL OR created_at <= $2)
		ORDER BY created_at DESC
		OFFSET $3
		LIMIT $4
	`, from, to, filter.Offset, nullIfZero(filter.Limit))
	if err != nil {
		return nil, 0, decimal.Zero, err
	}
	defer rows.Close()

	expenses := make([]domain.IngredientExpense, 0, 32)
	for rows.Next() {
		var e domain.IngredientExpense
		if err := rows.Scan(&e.ID, &e.IngredientID, &e.Quantity, &e.Unit, &e.UnitPrice, &e.TotalAmount, &e.CreatedBy, &e.CreatedAt); err != nil {
			return nil, 0, decimal.Zero, err
		}
		e.CreatedAt = e.CreatedAt.UTC()
		expenses = append(expenses, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, decimal.Zero, err
	}
	return expenses, count, total, nil
}

func (s *Store) ListIngredientTransactions(ctx context.Context, filter domain.IngredientTransactionFilter) ([]domain.IngredientTransaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, COALESCE(bill_id, ''), COALESCE(drink_id, ''), ingredient_id,
			quantity, quantity_prev, unit_price, price, created_at
		FROM ingredient_transactions
		WHERE ($1 = '' OR ingredient_id = $1)
		  AND ($2 = '' OR bill_id = $2)
		ORDER BY created_at DESC, id DESC
		LIMIT $3
	`, filter.IngredientID, filter.BillID, nullIfZero(filter.Limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]domain.IngredientTransaction, 0, 64)
	for rows.Next() {
		var e domain.IngredientTransaction
		if err := rows.Scan(&e.ID, &e.Kind, &e.BillID, &e.DrinkID, &e.IngredientID, &e.Quantity, &e.QuantityPrev, &e.UnitPrice, &e.Price, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.CreatedAt = e.CreatedAt.UTC()
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func insertLedgerEntry(ctx context.Context, q queryer, entry domain.IngredientTransaction) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO ingredient_transactions (
			id, kind, bill_id, drink_id, ingredient_id,
			quantity, quantity_prev, unit_price, price, created_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, entry.ID, entry.Kind, nullIfEmpty(entry.BillID), nullIfEmpty(entry.DrinkID), entry.IngredientID,
		entry.Quantity, entry.QuantityPrev, entry.UnitPrice, entry.Price, entry.CreatedAt)
	return mapError(err)
}

const billColumns = `id, code, user_id, lines, total_amount, stock_warnings, created_at, updated_at`

func scanBill(row rowScanner) (*domain.Bill, error) {
	var (
		bill     domain.Bill
		lines    []byte
		warnings []byte
	)
	if err := row.Scan(&bill.ID, &bill.Code, &bill.UserID, &lines, &bill.TotalAmount, &warnings, &bill.CreatedAt, &bill.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(lines, &bill.Lines); err != nil {
		return nil, fmt.Errorf("decode lines of bill %s: %w", bill.ID, err)
	}
	if len(warnings) > 0 {
		if err := json.Unmarshal(warnings, &bill.StockWarnings); err != nil {
			return nil, fmt.Errorf("decode warnings of bill %s: %w", bill.ID, err)
		}
	}
	if len(bill.StockWarnings) == 0 {
		bill.StockWarnings = nil
	}
	bill.CreatedAt = bill.CreatedAt.UTC()
	bill.UpdatedAt = bill.UpdatedAt.UTC()
	return &bill, nil
}

func (s *Store) GetBill(ctx context.Context, id string) (*domain.Bill, error) {
	bill, err := scanBill(s.db.QueryRowContext(ctx, `SELECT `+billColumns+` FROM bills WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.NotFound("bill", id)
		}
		return nil, err
	}
	return bill, nil
}

func (s *Store) ListBills(ctx context.Context, filter domain.BillFilter) ([]domain.Bill, int, decimal.Decimal, error) {
	from, to := nullBound(filter.From), nullBound(filter.To)
	where := `
		WHERE ($1::timestamptz IS NULL OR created_at >= $1)
		  AND ($2::timestamptz IS NULL OR created_at <= $2)
		  AND ($3 = '' OR user_id = $3)
	`

	var (
		count int
		total decimal.Decimal
	)
	err := s.db.QueryRowContext(ctx, `SELECT count(*), COALESCE(sum(total_amount), 0) FROM bills`+where, from, to, filter.UserID).Scan(&count, &total)
	if err != nil {
		return nil, 0, decimal.Zero, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT `+billColumns+` FROM bills`+where+`
		ORDER BY created_at DESC, code DESC
		OFFSET $4
		LIMIT $5
	`, from, to, filter.UserID, filter.Offset, nullIfZero(filter.Limit))
	if err != nil {
		return nil, 0, decimal.Zero, err
	}
	defer rows.Close()

	bills := make([]domain.Bill, 0, 32)
	for rows.Next() {
		bill, err := scanBill(rows)
		if err != nil {
			return nil, 0, decimal.Zero, err
		}
		bills = append(bills, *bill)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, decimal.Zero, err
	}
	return bills, count, total, nil
}

// ReplaceBill rewrites user and lines; code, creation time and recorded
// stock warnings are kept.
func (s *Store) ReplaceBill(ctx context.Context, bill domain.Bill) (*domain.Bill, error) {
	lines, err := json.Marshal(bill.Lines)
	if err != nil {
		return nil, err
	}
	saved, err := scanBill(s.db.QueryRowContext(ctx, `
		UPDATE bills
		SET user_id = $2, lines = $3, total_amount = $4, updated_at = $5
		WHERE id = $1
		RETURNING `+billColumns,
		bill.ID, bill.UserID, lines, bill.TotalAmount, bill.UpdatedAt))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.NotFound("bill", bill.ID)
		}
		return nil, err
	}
	return saved, nil
}

func (s *Store) DeleteBill(ctx context.Context, id string) error {
	return s.deleteByID(ctx, "bills", "bill", id)
}

func (s *Store) ListSchedules(ctx context.Context, userID string) ([]domain.WeekSchedule, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, weeks, created_at, updated_at
		FROM week_schedules
		WHERE ($1 = '' OR user_id = $1)
		ORDER BY user_id, created_at
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	schedules := make([]domain.WeekSchedule, 0, 16)
	for rows.Next() {
		sch, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		schedules = append(schedules, *sch)
	}
	return schedules, rows.Err()
}

func (s *Store) GetSchedule(ctx context.Context, id string) (*domain.WeekSchedule, error) {
	sch, err := scanSchedule(s.db.QueryRowContext(ctx, `
		SELECT id, user_id, weeks, created_at, updated_at
		FROM week_schedules
		WHERE id = $1
	`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.NotFound("schedule", id)
		}
		return nil, err
	}
	return sch, nil
}

func (s *Store) CreateSchedule(ctx context.Context, schedule domain.WeekSchedule) (*domain.WeekSchedule, error) {
	if schedule.ID == "" || schedule.UserID == "" {
		return nil, store.ErrInvalidInput
	}
	weeks, err := json.Marshal(schedule.Weeks)
	if err != nil {
		return nil, err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO week_schedules (id, user_id, weeks, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5)
	`, schedule.ID, schedule.UserID, weeks, schedule.CreatedAt, schedule.UpdatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, store.NotFound("user", schedule.UserID)
		}
		return nil, mapError(err)
	}
	return &schedule, nil
}

func (s *Store) UpdateSchedule(ctx context.Context, schedule domain.WeekSchedule) (*domain.WeekSchedule, error) {
	weeks, err := json.Marshal(schedule.Weeks)
	if err != nil {
		return nil, err
	}
	err = s.db.QueryRowContext(ctx, `
		UPDATE week_schedules
		SET user_id = $2, weeks = $3, updated_at = $4
		WHERE id = $1
		RETURNING created_at
	`, schedule.ID, schedule.UserID, weeks, schedule.UpdatedAt).Scan(&schedule.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.NotFound("schedule", schedule.ID)
		}
		if isForeignKeyViolation(err) {
			return nil, store.NotFound("user", schedule.UserID)
		}
		return nil, mapError(err)
	}
	schedule.CreatedAt = schedule.CreatedAt.UTC()
	return &schedule, nil
}

func (s *Store) DeleteSchedule(ctx context.Context, id string) error {
	return s.deleteByID(ctx, "week_schedules", "schedule", id)
}

func scanSchedule(row rowScanner) (*domain.WeekSchedule, error) {
	var (
		sch   domain.WeekSchedule
		weeks []byte
	)
	if err := row.Scan(&sch.ID, &sch.UserID, &weeks, &sch.CreatedAt, &sch.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(weeks, &sch.Weeks); err != nil {
		return nil, fmt.Errorf("decode weeks of schedule %s: %w", sch.ID, err)
	}
	sch.CreatedAt = sch.CreatedAt.UTC()
	sch.UpdatedAt = sch.UpdatedAt.UTC()
	return &sch, nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	user.Username = strings.ToLower(strings.TrimSpace(user.Username))
	if user.Username == "" || strings.TrimSpace(user.Password) == "" {
		return store.ErrInvalidInput
	}
	if user.Role == "" {
		user.Role = domain.RoleStaff
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO app_users (username, password, full_name, role, active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,now())
	`, user.Username, user.Password, user.FullName, user.Role, user.Active, user.CreatedAt)
	return mapError(err)
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, password, full_name, role, active, created_at
		FROM app_users
		ORDER BY username ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 16)
	for rows.Next() {
		var user domain.UserAccount
		if err := rows.Scan(&user.Username, &user.Password, &user.FullName, &user.Role, &user.Active, &user.CreatedAt); err != nil {
			return nil, err
		}
		user.CreatedAt = user.CreatedAt.UTC()
		users = append(users, user)
	}
	return users, rows.Err()
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return store.ErrInvalidInput
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE app_users
		SET password = $2, updated_at = now()
		WHERE username = $1
	`, username, password)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.NotFound("user", username)
	}
	return nil
}

// deleteByID removes one row; rows still referenced elsewhere surface as
// store.ErrConflict through the foreign key.
func (s *Store) deleteByID(ctx context.Context, table, kind, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM `+table+` WHERE id = $1`, id)
	if err != nil {
		return mapError(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.NotFound(kind, id)
	}
	return nil
}

func marshalWarnings(warnings []domain.StockWarning) ([]byte, error) {
	if warnings == nil {
		warnings = []domain.StockWarning{}
	}
	return json.Marshal(warnings)
}

// mapError translates constraint and serialization failures into store
// sentinels and passes everything else through.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case "23505", "23503":
		return fmt.Errorf("%w: %s", store.ErrConflict, pgErr.Message)
	case "40001", "40P01":
		return fmt.Errorf("%w: %s", store.ErrRaceLost, pgErr.Message)
	}
	return err
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23503"
	}
	return false
}

func nullIfEmpty(val string) any {
	if val == "" {
		return nil
	}
	return val
}

func nullIfZero(val int) any {
	if val <= 0 {
		return nil
	}
	return val
}

func nullBound(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC()
}
