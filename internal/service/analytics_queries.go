package service

import (
	"context"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/boddenberg/spendlens-go/internal/domain"
)

// ============================================================
// Dashboard read models
// ============================================================

// GetOverview returns the aggregated header for a user's dashboard,
// served from the per-user cache when fresh.
func (s *AnalyticsService) GetOverview(ctx context.Context, userID string) (*domain.Overview, error) {
	ctx, span := analyticsTracer.Start(ctx, "AnalyticsService.GetOverview")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	cacheKey := overviewCacheKey(userID)
	if cached, ok := s.cache.Get(cacheKey); ok {
		s.metrics.IncrCacheHit("overview")
		return cached, nil
	}
	s.metrics.IncrCacheMiss("overview")

	var txns []domain.Transaction
	var statements []domain.Statement

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		txns, err = s.store.ListTransactions(gctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		statements, err = s.store.ListStatements(gctx, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	overview := &domain.Overview{
		TotalTransactions: len(txns),
		StatementCount:    len(statements),
	}

	debitCount := 0
	for _, t := range txns {
		switch t.Kind {
		case domain.KindCredit:
			overview.TotalCredits = overview.TotalCredits.Add(t.Amount)
		default:
			overview.TotalSpent = overview.TotalSpent.Add(t.Amount)
			debitCount++
		}
	}
	if debitCount > 0 {
		overview.AvgTransaction = overview.TotalSpent.Div(decimal.NewFromInt(int64(debitCount))).Round(2)
	}
	if len(txns) > 0 {
		// ListTransactions is date-ascending.
		overview.EarliestDate = txns[0].DateString()
		overview.LatestDate = txns[len(txns)-1].DateString()
	}

	s.cache.Set(cacheKey, overview)
	return overview, nil
}

// MonthlyTrend returns per-month spend and credit totals, oldest first.
func (s *AnalyticsService) MonthlyTrend(ctx context.Context, userID string) ([]domain.MonthlyPoint, error) {
	ctx, span := analyticsTracer.Start(ctx, "AnalyticsService.MonthlyTrend")
	defer span.End()

	txns, err := s.store.ListTransactions(ctx, userID)
	if err != nil {
		return nil, err
	}

	byMonth := make(map[string]*domain.MonthlyPoint)
	var months []string
	for _, t := range txns {
		m := t.Month()
		p, ok := byMonth[m]
		if !ok {
			p = &domain.MonthlyPoint{Month: m}
			byMonth[m] = p
			months = append(months, m)
		}
		if t.Kind == domain.KindCredit {
			p.Credits = p.Credits.Add(t.Amount)
		} else {
			p.Spent = p.Spent.Add(t.Amount)
		}
		p.Transactions++
	}
	sort.Strings(months)

	points := make([]domain.MonthlyPoint, 0, len(months))
	for _, m := range months {
		points = append(points, *byMonth[m])
	}
	return points, nil
}

// CategoryBreakdown returns each category's share of debit spend,
// largest first. An empty month means all time; otherwise only
// transactions in the given YYYY-MM month count.
func (s *AnalyticsService) CategoryBreakdown(ctx context.Context, userID, month string) ([]domain.CategorySlice, error) {
	ctx, span := analyticsTracer.Start(ctx, "AnalyticsService.CategoryBreakdown")
	defer span.End()

	txns, err := s.store.ListTransactions(ctx, userID)
	if err != nil {
		return nil, err
	}

	totals := make(map[domain.Category]*domain.CategorySlice)
	var order []domain.Category
	grand := decimal.Zero
	for _, t := range txns {
		if t.Kind != domain.KindDebit {
			continue
		}
		if month != "" && t.Month() != month {
			continue
		}
		slice, ok := totals[t.Category]
		if !ok {
			slice = &domain.CategorySlice{
				Category: t.Category,
				Label:    t.Category.Label(),
				Color:    t.Category.Color(),
			}
			totals[t.Category] = slice
			order = append(order, t.Category)
		}
		slice.Total = slice.Total.Add(t.Amount)
		slice.Count++
		grand = grand.Add(t.Amount)
	}

	slices := make([]domain.CategorySlice, 0, len(order))
	for _, c := range order {
		slice := *totals[c]
		if grand.IsPositive() {
			slice.Percentage = slice.Total.Div(grand).Mul(decimal.NewFromInt(100)).Round(1)
		}
		slices = append(slices, slice)
	}
	sort.SliceStable(slices, func(i, j int) bool {
		return slices[i].Total.GreaterThan(slices[j].Total)
	})
	return slices, nil
}

// TopMerchants returns the user's merchants ranked by total debit spend.
// The limit defaults to 10 and is capped at 50.
func (s *AnalyticsService) TopMerchants(ctx context.Context, userID string, limit int) ([]domain.MerchantSummary, error) {
	ctx, span := analyticsTracer.Start(ctx, "AnalyticsService.TopMerchants")
	defer span.End()

	if limit <= 0 {
		limit = 10
	}
	if limit > 50 {
		limit = 50
	}

	txns, err := s.store.ListTransactions(ctx, userID)
	if err != nil {
		return nil, err
	}

	totals := make(map[string]*domain.MerchantSummary)
	var order []string
	for _, t := range txns {
		if t.Kind != domain.KindDebit {
			continue
		}
		sum, ok := totals[t.Merchant]
		if !ok {
			sum = &domain.MerchantSummary{Merchant: t.Merchant, Category: t.Category}
			totals[t.Merchant] = sum
			order = append(order, t.Merchant)
		}
		sum.Total = sum.Total.Add(t.Amount)
		sum.Count++
	}

	ranked := make([]domain.MerchantSummary, 0, len(order))
	for _, m := range order {
		ranked = append(ranked, *totals[m])
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Total.GreaterThan(ranked[j].Total)
	})
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked, nil
}

// RecurringSummary aggregates the debits currently flagged recurring
// into per-merchant charges plus monthly and yearly totals.
func (s *AnalyticsService) RecurringSummary(ctx context.Context, userID string) (*domain.RecurringSummary, error) {
	ctx, span := analyticsTracer.Start(ctx, "AnalyticsService.RecurringSummary")
	defer span.End()

	txns, err := s.store.ListDebitTransactions(ctx, userID)
	if err != nil {
		return nil, err
	}

	type agg struct {
		charge domain.RecurringCharge
		total  decimal.Decimal
	}
	byMerchant := make(map[string]*agg)
	var order []string
	for _, t := range txns {
		if !t.IsRecurring {
			continue
		}
		key := strings.ToLower(t.Merchant)
		a, ok := byMerchant[key]
		if !ok {
			a = &agg{charge: domain.RecurringCharge{
				Merchant:  t.Merchant,
				Category:  t.Category,
				FirstSeen: t.DateString(),
			}}
			byMerchant[key] = a
			order = append(order, key)
		}
		a.total = a.total.Add(t.Amount)
		a.charge.Occurrences++
		// Listing is merchant-then-date, so the last member wins.
		a.charge.LastSeen = t.DateString()
	}

	summary := &domain.RecurringSummary{Subscriptions: []domain.RecurringCharge{}}
	for _, key := range order {
		a := byMerchant[key]
		a.charge.AvgAmount = a.total.Div(decimal.NewFromInt(int64(a.charge.Occurrences))).Round(2)
		summary.Subscriptions = append(summary.Subscriptions, a.charge)
		summary.MonthlyTotal = summary.MonthlyTotal.Add(a.charge.AvgAmount)
	}
	summary.YearlyEstimate = summary.MonthlyTotal.Mul(decimal.NewFromInt(12))
	return summary, nil
}

// DailySpending returns per-day debit totals for the given YYYY-MM month.
func (s *AnalyticsService) DailySpending(ctx context.Context, userID, month string) ([]domain.DailyPoint, error) {
	ctx, span := analyticsTracer.Start(ctx, "AnalyticsService.DailySpending")
	defer span.End()

	if month == "" {
		return nil, &domain.ErrValidation{Field: "month", Message: "required, format YYYY-MM"}
	}

	txns, err := s.store.ListTransactions(ctx, userID)
	if err != nil {
		return nil, err
	}

	byDay := make(map[string]*domain.DailyPoint)
	var days []string
	for _, t := range txns {
		if t.Kind != domain.KindDebit || t.Month() != month {
			continue
		}
		d := t.DateString()
		p, ok := byDay[d]
		if !ok {
			p = &domain.DailyPoint{Date: d}
			byDay[d] = p
			days = append(days, d)
		}
		p.Spent = p.Spent.Add(t.Amount)
		p.Transactions++
	}
	sort.Strings(days)

	points := make([]domain.DailyPoint, 0, len(days))
	for _, d := range days {
		points = append(points, *byDay[d])
	}
	return points, nil
}

// ListInsights returns the user's stored insight set.
func (s *AnalyticsService) ListInsights(ctx context.Context, userID string) ([]domain.Insight, error) {
	ctx, span := analyticsTracer.Start(ctx, "AnalyticsService.ListInsights")
	defer span.End()

	return s.store.ListInsights(ctx, userID)
}

// InvalidateUser drops the user's cached read models. Called after any
// write that changes the transaction set.
func (s *AnalyticsService) InvalidateUser(userID string) {
	s.cache.Delete(overviewCacheKey(userID))
	s.logger.Debug("analytics cache invalidated", zap.String("user_id", userID))
}

func overviewCacheKey(userID string) string {
	return "overview:" + userID
}
