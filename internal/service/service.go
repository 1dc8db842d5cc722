package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"drinkpos/backend/internal/billcode"
	"drinkpos/backend/internal/cache"
	"drinkpos/backend/internal/domain"
	"drinkpos/backend/internal/events"
	"drinkpos/backend/internal/inventory"
	"drinkpos/backend/internal/period"
	"drinkpos/backend/internal/promotion"
	"drinkpos/backend/internal/store"
	"drinkpos/backend/internal/xid"
)

const (
	DefaultMaxRaceRetries = 3
	producerName          = "drinkpos-backend"
)

type actorContextKey struct{}

type requestIDContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

// WithRequestID tags ctx so published events carry the request as
// correlation id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDContextKey{}, id)
}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDContextKey{}).(string)
	return id
}

type Options struct {
	Cache          cache.PromotionCache
	CacheTTL       time.Duration
	Publisher      events.Publisher
	Logger         *zap.Logger
	Location       *time.Location
	MaxRaceRetries int
	Now            func() time.Time
}

type Service struct {
	repo           store.Repository
	engine         *inventory.Engine
	cache          cache.PromotionCache
	cacheTTL       time.Duration
	publisher      events.Publisher
	logger         *zap.Logger
	location       *time.Location
	maxRaceRetries int
	now            func() time.Time
}

func New(repo store.Repository, engine *inventory.Engine, opts Options) *Service {
	if engine == nil {
		engine = inventory.NewEngine(inventory.PolicyReject, decimal.Zero)
	}
	if opts.Cache == nil {
		opts.Cache = cache.NoopPromotionCache{}
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 60 * time.Second
	}
	if opts.Publisher == nil {
		opts.Publisher = events.NoopPublisher{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.MaxRaceRetries < 0 {
		opts.MaxRaceRetries = 0
	} else if opts.MaxRaceRetries == 0 {
		opts.MaxRaceRetries = DefaultMaxRaceRetries
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Service{
		repo:           repo,
		engine:         engine,
		cache:          opts.Cache,
		cacheTTL:       opts.CacheTTL,
		publisher:      opts.Publisher,
		logger:         opts.Logger,
		location:       opts.Location,
		maxRaceRetries: opts.MaxRaceRetries,
		now:            opts.Now,
	}
}

// Location is the business timezone bill codes and report days use.
func (s *Service) Location() *time.Location {
	return s.location
}

func requireRole(ctx context.Context, roles ...string) (domain.Actor, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || !slices.Contains(roles, actor.Role) {
		return domain.Actor{}, fmt.Errorf("%w: requires role %s", store.ErrForbidden, strings.Join(roles, " or "))
	}
	return actor, nil
}

func requireStaff(ctx context.Context) (domain.Actor, error) {
	return requireRole(ctx, domain.RoleStaff, domain.RoleManager, domain.RoleAdmin)
}

func requireManager(ctx context.Context) (domain.Actor, error) {
	return requireRole(ctx, domain.RoleManager, domain.RoleAdmin)
}

// CreateBill validates the cart against the catalog, then allocates the bill
// code, deducts every recipe ingredient and persists the bill in one store
// transaction. A lost stock race restarts the whole transaction.
func (s *Service) CreateBill(ctx context.Context, req domain.BillCreateRequest) (domain.Bill, error) {
	actor, err := requireStaff(ctx)
	if err != nil {
		return domain.Bill{}, err
	}

	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		userID = actor.Username
	}

	cart := normalizeCart(req.Lines)
	if len(cart) == 0 {
		return domain.Bill{}, fmt.Errorf("%w: cart is empty", store.ErrInvalidCart)
	}

	drinks, err := s.repo.GetDrinksByIDs(ctx, cartDrinkIDs(cart))
	if err != nil {
		return domain.Bill{}, err
	}
	lines, deductions, total, err := priceCart(cart, drinks)
	if err != nil {
		return domain.Bill{}, err
	}

	var (
		bill   domain.Bill
		result inventory.Result
	)
	for attempt := 0; ; attempt++ {
		bill, result, err = s.commitBill(ctx, userID, lines, deductions, total)
		if err == nil {
			break
		}
		if !errors.Is(err, store.ErrRaceLost) || attempt >= s.maxRaceRetries {
			return domain.Bill{}, err
		}
		s.logger.Warn("bill stock update lost race, retrying",
			zap.String("user_id", userID),
			zap.Int("attempt", attempt+1),
			zap.Error(err))
	}

	s.logger.Info("bill created",
		zap.String("bill_id", bill.ID),
		zap.String("code", bill.Code),
		zap.String("user_id", bill.UserID),
		zap.String("total_amount", bill.TotalAmount.StringFixed(2)),
		zap.Int("ledger_entries", len(result.Transactions)),
		zap.Int("stock_warnings", len(bill.StockWarnings)))
	s.publishBillEvents(ctx, bill, result.LowStock)

	return bill, nil
}

func (s *Service) commitBill(ctx context.Context, userID string, lines []domain.BillLine, deductions []inventory.Line, total decimal.Decimal) (domain.Bill, inventory.Result, error) {
	var (
		bill   domain.Bill
		result inventory.Result
	)
	err := s.repo.WithinTx(ctx, func(tx store.Tx) error {
		createdAt := s.now().In(s.location)
		seq, err := tx.NextBillSequence(ctx, billcode.DayKey(createdAt))
		if err != nil {
			return fmt.Errorf("allocate bill sequence: %w", err)
		}

		bill = domain.Bill{
			ID:          xid.New("bill"),
			Code:        billcode.Format(createdAt, seq),
			UserID:      userID,
			Lines:       slices.Clone(lines),
			TotalAmount: total,
			CreatedAt:   createdAt.UTC(),
			UpdatedAt:   createdAt.UTC(),
		}

		result, err = s.engine.Deduct(ctx, tx, bill.ID, deductions)
		if err != nil {
			return err
		}
		bill.StockWarnings = result.Warnings

		return tx.CreateBill(ctx, bill)
	})
	if err != nil {
		return domain.Bill{}, inventory.Result{}, err
	}
	return bill, result, nil
}

func (s *Service) publishBillEvents(ctx context.Context, bill domain.Bill, lowStock []domain.Ingredient) {
	correlationID := requestIDFrom(ctx)

	payload := events.BillCreatedPayload{
		BillID:      bill.ID,
		Code:        bill.Code,
		UserID:      bill.UserID,
		TotalAmount: bill.TotalAmount,
		Lines:       make([]events.BillLinePayload, 0, len(bill.Lines)),
	}
	for _, line := range bill.Lines {
		payload.Lines = append(payload.Lines, events.BillLinePayload{DrinkID: line.DrinkID, Quantity: line.Quantity, Amount: line.Amount})
	}
	s.publish(ctx, bill.ID, events.TypeBillCreated, correlationID, payload)

	for _, ing := range lowStock {
		s.publish(ctx, ing.ID, events.TypeIngredientLowStock, correlationID, events.LowStockPayload{
			IngredientID: ing.ID,
			Name:         ing.Name,
			Quantity:     ing.Quantity,
			Unit:         ing.Unit,
			BillID:       bill.ID,
		})
	}
}

func (s *Service) publish(ctx context.Context, key, eventType, correlationID string, payload any) {
	env, err := events.NewEnvelope(producerName, eventType, correlationID, payload)
	if err == nil {
		err = s.publisher.Publish(ctx, key, env)
	}
	if err != nil {
		s.logger.Warn("event publish failed", zap.String("event_type", eventType), zap.String("key", key), zap.Error(err))
	}
}

// EvaluatePromotions reports which promotions the cart satisfies right now.
// Unresolvable drinks and promotions are skipped, never fatal.
func (s *Service) EvaluatePromotions(ctx context.Context, req domain.PromotionEvaluateRequest) ([]promotion.Qualified, error) {
	mode, err := promotion.ParseMode(req.Mode)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrInvalidInput, err)
	}

	cart := make([]promotion.CartLine, 0, len(req.Lines))
	for _, line := range normalizeCart(req.Lines) {
		cart = append(cart, promotion.CartLine{
			DrinkID:   line.DrinkID,
			Size:      line.Size,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
		})
	}
	if len(cart) == 0 {
		return nil, fmt.Errorf("%w: cart is empty", store.ErrInvalidCart)
	}

	ids := make([]string, 0, len(cart))
	for _, line := range cart {
		ids = append(ids, line.DrinkID)
	}
	drinks, err := s.repo.GetDrinksByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	var candidates []domain.Promotion
	switch mode {
	case promotion.ModeActive:
		candidates, err = s.activePromotions(ctx)
		if err != nil {
			return nil, err
		}
	default:
		found, err := s.repo.GetPromotionsByIDs(ctx, promotion.ReferencedIDs(cart, drinks))
		if err != nil {
			return nil, err
		}
		candidates = make([]domain.Promotion, 0, len(found))
		for _, promo := range found {
			candidates = append(candidates, promo)
		}
	}

	// Pool puts referenced candidates in cart order.
	pool := promotion.Pool(mode, cart, drinks, candidates)
	return promotion.Evaluate(cart, pool, drinks, s.now().In(s.location)), nil
}

// activePromotions reads the active pool through the promotion cache.
func (s *Service) activePromotions(ctx context.Context) ([]domain.Promotion, error) {
	cached, ok, err := s.cache.GetPromotions(ctx, cache.ActivePromotionsKey)
	if err != nil {
		s.logger.Warn("promotion cache read failed", zap.Error(err))
	} else if ok {
		return cached, nil
	}

	all, err := s.repo.ListPromotions(ctx)
	if err != nil {
		return nil, err
	}
	active := make([]domain.Promotion, 0, len(all))
	for _, promo := range all {
		if promo.Active {
			active = append(active, promo)
		}
	}

	if err := s.cache.SetPromotions(ctx, cache.ActivePromotionsKey, active, s.cacheTTL); err != nil {
		s.logger.Warn("promotion cache write failed", zap.Error(err))
	}
	return active, nil
}

func (s *Service) GetBill(ctx context.Context, id string) (domain.Bill, error) {
	if _, err := requireStaff(ctx); err != nil {
		return domain.Bill{}, err
	}
	bill, err := s.repo.GetBill(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.Bill{}, err
	}
	return *bill, nil
}

type BillQuery struct {
	Period   string
	Date     string
	UserID   string
	Page     int
	PageSize int
}

func (s *Service) ListBills(ctx context.Context, q BillQuery) (domain.BillListResponse, error) {
	if _, err := requireStaff(ctx); err != nil {
		return domain.BillListResponse{}, err
	}

	from, to, _, err := s.resolveRange(q.Period, q.Date)
	if err != nil {
		return domain.BillListResponse{}, err
	}
	page, pageSize := normalizePage(q.Page, q.PageSize)

	bills, count, total, err := s.repo.ListBills(ctx, domain.BillFilter{
		From:   from,
		To:     to,
		UserID: strings.TrimSpace(q.UserID),
		Offset: (page - 1) * pageSize,
		Limit:  pageSize,
	})
	if err != nil {
		return domain.BillListResponse{}, err
	}

	return domain.BillListResponse{
		Bills:       bills,
		TotalCount:  count,
		TotalAmount: total,
		Page:        page,
		PageSize:    pageSize,
	}, nil
}

// ReplaceBill overwrites a bill's lines with recomputed amounts. Stock is not
// touched: corrections never re-run the deduction.
func (s *Service) ReplaceBill(ctx context.Context, id string, req domain.BillReplaceRequest) (domain.Bill, error) {
	actor, err := requireManager(ctx)
	if err != nil {
		return domain.Bill{}, err
	}

	existing, err := s.repo.GetBill(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.Bill{}, err
	}
	if len(req.Lines) == 0 {
		return domain.Bill{}, fmt.Errorf("%w: bill needs at least one line", store.ErrInvalidCart)
	}

	updated := *existing
	updated.Lines = make([]domain.BillLine, 0, len(req.Lines))
	updated.TotalAmount = decimal.Zero
	for _, line := range req.Lines {
		line.DrinkID = strings.TrimSpace(line.DrinkID)
		line.Name = strings.TrimSpace(line.Name)
		if line.DrinkID == "" || line.Name == "" || line.Quantity < 1 || line.UnitPrice.IsNegative() {
			return domain.Bill{}, fmt.Errorf("%w: invalid bill line for drink %q", store.ErrInvalidCart, line.DrinkID)
		}
		line.Amount = line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity))).Round(2)
		updated.TotalAmount = updated.TotalAmount.Add(line.Amount)
		updated.Lines = append(updated.Lines, line)
	}
	if userID := strings.TrimSpace(req.UserID); userID != "" {
		updated.UserID = userID
	}
	updated.UpdatedAt = s.now().UTC()

	saved, err := s.repo.ReplaceBill(ctx, updated)
	if err != nil {
		return domain.Bill{}, err
	}
	s.logger.Info("bill replaced", zap.String("bill_id", saved.ID), zap.String("actor", actor.Username))
	return *saved, nil
}

func (s *Service) DeleteBill(ctx context.Context, id string) error {
	actor, err := requireRole(ctx, domain.RoleAdmin)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteBill(ctx, strings.TrimSpace(id)); err != nil {
		return err
	}
	s.logger.Info("bill deleted", zap.String("bill_id", id), zap.String("actor", actor.Username))
	return nil
}

func normalizeCart(lines []domain.CartLine) []domain.CartLine {
	out := make([]domain.CartLine, 0, len(lines))
	for _, line := range lines {
		line.DrinkID = strings.TrimSpace(line.DrinkID)
		line.Size = strings.ToUpper(strings.TrimSpace(line.Size))
		line.Options.Temperature = strings.ToLower(strings.TrimSpace(line.Options.Temperature))
		line.Options.Sugar = strings.TrimSpace(line.Options.Sugar)
		line.Options.Ice = strings.TrimSpace(line.Options.Ice)
		out = append(out, line)
	}
	return out
}

func cartDrinkIDs(cart []domain.CartLine) []string {
	ids := make([]string, 0, len(cart))
	for _, line := range cart {
		if !slices.Contains(ids, line.DrinkID) {
			ids = append(ids, line.DrinkID)
		}
	}
	return ids
}

// priceCart snapshots name and catalog price per line and pairs each line
// with the recipe the deduction consumes.
func priceCart(cart []domain.CartLine, drinks map[string]domain.Drink) ([]domain.BillLine, []inventory.Line, decimal.Decimal, error) {
	lines := make([]domain.BillLine, 0, len(cart))
	deductions := make([]inventory.Line, 0, len(cart))
	total := decimal.Zero

	for _, line := range cart {
		if line.DrinkID == "" {
			return nil, nil, decimal.Zero, fmt.Errorf("%w: drink_id required", store.ErrInvalidCart)
		}
		if line.Quantity < 1 {
			return nil, nil, decimal.Zero, fmt.Errorf("%w: quantity for %s must be at least 1", store.ErrInvalidCart, line.DrinkID)
		}
		drink, ok := drinks[line.DrinkID]
		if !ok {
			return nil, nil, decimal.Zero, store.NotFound("drink", line.DrinkID)
		}
		if !drink.Active {
			return nil, nil, decimal.Zero, fmt.Errorf("%w: drink %s is not available", store.ErrInvalidCart, drink.ID)
		}
		price, size, ok := drink.PriceFor(line.Size)
		if !ok {
			return nil, nil, decimal.Zero, fmt.Errorf("%w: size %q not offered for %s", store.ErrInvalidCart, line.Size, drink.ID)
		}
		if err := checkOptions(drink, line.Options); err != nil {
			return nil, nil, decimal.Zero, err
		}

		amount := price.Mul(decimal.NewFromInt(int64(line.Quantity))).Round(2)
		lines = append(lines, domain.BillLine{
			DrinkID:   drink.ID,
			Name:      drink.Name,
			Size:      size,
			Quantity:  line.Quantity,
			Options:   line.Options,
			UnitPrice: price,
			Amount:    amount,
		})
		deductions = append(deductions, inventory.Line{
			DrinkID:  drink.ID,
			Quantity: line.Quantity,
			Recipe:   slices.Clone(drink.Recipe),
		})
		total = total.Add(amount)
	}
	return lines, deductions, total, nil
}

func checkOptions(drink domain.Drink, chosen domain.LineOptions) error {
	for _, axis := range []struct {
		name    string
		value   string
		allowed []string
	}{
		{"temperature", chosen.Temperature, drink.Options.Temperature},
		{"sugar", chosen.Sugar, drink.Options.Sugar},
		{"ice", chosen.Ice, drink.Options.Ice},
	} {
		if axis.value == "" {
			continue
		}
		if !slices.Contains(axis.allowed, axis.value) {
			return fmt.Errorf("%w: %s %q not offered for %s", store.ErrInvalidCart, axis.name, axis.value, drink.ID)
		}
	}
	return nil
}

// resolveRange maps a period name and optional YYYY-MM-DD reference date to
// bounds in the business timezone.
func (s *Service) resolveRange(rawPeriod, rawDate string) (time.Time, time.Time, period.Period, error) {
	p, err := period.Parse(rawPeriod)
	if err != nil {
		return time.Time{}, time.Time{}, "", fmt.Errorf("%w: %v", store.ErrInvalidInput, err)
	}
	ref := s.now().In(s.location)
	if trimmed := strings.TrimSpace(rawDate); trimmed != "" {
		ref, err = time.ParseInLocation("2006-01-02", trimmed, s.location)
		if err != nil {
			return time.Time{}, time.Time{}, "", fmt.Errorf("%w: date must be YYYY-MM-DD", store.ErrInvalidInput)
		}
	}
	from, to, err := period.Range(p, ref)
	if err != nil {
		return time.Time{}, time.Time{}, "", fmt.Errorf("%w: %v", store.ErrInvalidInput, err)
	}
	return from, to, p, nil
}

func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 200 {
		pageSize = 200
	}
	return page, pageSize
}
