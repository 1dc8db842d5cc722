package service

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"drinkpos/backend/internal/domain"
	"drinkpos/backend/internal/period"
)

// billsInRange loads every bill of the period; reports aggregate in memory.
func (s *Service) billsInRange(ctx context.Context, rawPeriod, rawDate string) ([]domain.Bill, period.Period, *time.Time, *time.Time, error) {
	if _, err := requireManager(ctx); err != nil {
		return nil, "", nil, nil, err
	}
	from, to, p, err := s.resolveRange(rawPeriod, rawDate)
	if err != nil {
		return nil, "", nil, nil, err
	}
	bills, _, _, err := s.repo.ListBills(ctx, domain.BillFilter{From: from, To: to})
	if err != nil {
		return nil, "", nil, nil, err
	}

	var fromPtr, toPtr *time.Time
	if !from.IsZero() {
		fromPtr, toPtr = &from, &to
	}
	return bills, p, fromPtr, toPtr, nil
}

func (s *Service) ItemsSoldReport(ctx context.Context, rawPeriod, rawDate string) (domain.ItemsReport, error) {
	bills, p, from, to, err := s.billsInRange(ctx, rawPeriod, rawDate)
	if err != nil {
		return domain.ItemsReport{}, err
	}
	items := aggregateItems(bills)
	sort.Slice(items, func(i, j int) bool { return items[i].Name < items[j].Name })
	return domain.ItemsReport{Period: string(p), From: from, To: to, Items: items}, nil
}

func (s *Service) PopularItemsReport(ctx context.Context, rawPeriod, rawDate string, limit int) (domain.ItemsReport, error) {
	bills, p, from, to, err := s.billsInRange(ctx, rawPeriod, rawDate)
	if err != nil {
		return domain.ItemsReport{}, err
	}
	if limit < 1 {
		limit = 5
	}

	items := aggregateItems(bills)
	sort.Slice(items, func(i, j int) bool {
		if items[i].TotalQuantity != items[j].TotalQuantity {
			return items[i].TotalQuantity > items[j].TotalQuantity
		}
		return items[i].Name < items[j].Name
	})
	if len(items) > limit {
		items = items[:limit]
	}
	return domain.ItemsReport{Period: string(p), From: from, To: to, Items: items}, nil
}

func (s *Service) RevenueReport(ctx context.Context, rawPeriod, rawDate string) (domain.RevenueReport, error) {
	bills, p, from, to, err := s.billsInRange(ctx, rawPeriod, rawDate)
	if err != nil {
		return domain.RevenueReport{}, err
	}

	byDay := make(map[string]decimal.Decimal)
	total := decimal.Zero
	for _, bill := range bills {
		day := bill.CreatedAt.In(s.location).Format("2006-01-02")
		byDay[day] = byDay[day].Add(bill.TotalAmount)
		total = total.Add(bill.TotalAmount)
	}

	days := make([]domain.DailyRevenue, 0, len(byDay))
	for day, revenue := range byDay {
		days = append(days, domain.DailyRevenue{Date: day, TotalRevenue: revenue})
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Date < days[j].Date })

	return domain.RevenueReport{Period: string(p), From: from, To: to, Days: days, TotalRevenue: total}, nil
}

func aggregateItems(bills []domain.Bill) []domain.ItemSold {
	totals := make(map[string]int)
	for _, bill := range bills {
		for _, line := range bill.Lines {
			totals[line.Name] += line.Quantity
		}
	}
	items := make([]domain.ItemSold, 0, len(totals))
	for name, qty := range totals {
		items = append(items, domain.ItemSold{Name: name, TotalQuantity: qty})
	}
	return items
}
