// Package service provides the business logic layer (use cases).
// AnalyticsService derives recurring charges, insights, and dashboard
// read models; StatementService runs the upload pipeline.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/boddenberg/spendlens-go/internal/domain"
	"github.com/boddenberg/spendlens-go/internal/infra/observability"
	"github.com/boddenberg/spendlens-go/internal/port"
)

var analyticsTracer = otel.Tracer("service/analytics")

// Recurring detection thresholds.
var (
	recurringTolerance = decimal.NewFromFloat(0.10)
	minGapDays         = 20.0
	maxGapDays         = 40.0
)

// AnalyticsService derives recurring groups, insights and dashboard
// aggregates from a user's transaction history.
type AnalyticsService struct {
	store   port.Store
	cache   port.Cache[*domain.Overview]
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewAnalyticsService creates a new analytics service.
func NewAnalyticsService(store port.Store, cache port.Cache[*domain.Overview], metrics *observability.Metrics, logger *zap.Logger) *AnalyticsService {
	return &AnalyticsService{store: store, cache: cache, metrics: metrics, logger: logger}
}

// ============================================================
// Recurring-charge detection
// ============================================================

// DetectRecurring groups the user's debits by merchant and flags groups
// whose amounts are stable (every member within 10% of the group mean)
// and whose cadence is roughly monthly (average gap between consecutive
// charges of 20–40 days). Matching transactions are marked recurring in
// the store. Group order follows the first appearance of each merchant
// in the merchant-sorted listing, so repeated runs over the same data
// produce the same groups.
func (s *AnalyticsService) DetectRecurring(ctx context.Context, userID string) ([]domain.RecurringGroup, error) {
	ctx, span := analyticsTracer.Start(ctx, "AnalyticsService.DetectRecurring")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	txns, err := s.store.ListDebitTransactions(ctx, userID)
	if err != nil {
		return nil, err
	}

	// Group by case-folded merchant, keeping first-seen key order.
	byMerchant := make(map[string][]domain.Transaction)
	var order []string
	for _, t := range txns {
		key := strings.ToLower(t.Merchant)
		if _, ok := byMerchant[key]; !ok {
			order = append(order, key)
		}
		byMerchant[key] = append(byMerchant[key], t)
	}

	var groups []domain.RecurringGroup
	var recurringIDs []string
	for _, key := range order {
		members := byMerchant[key]
		if len(members) < 2 {
			continue
		}

		amounts := make([]decimal.Decimal, len(members))
		for i, m := range members {
			amounts[i] = m.Amount
		}
		mean := decimal.Avg(amounts[0], amounts[1:]...)
		if mean.IsZero() {
			continue
		}

		stable := true
		for _, a := range amounts {
			deviation := a.Sub(mean).Abs().Div(mean)
			if deviation.GreaterThanOrEqual(recurringTolerance) {
				stable = false
				break
			}
		}
		if !stable {
			continue
		}

		// Members arrive date-ascending from the store.
		gapTotal := 0.0
		for i := 1; i < len(members); i++ {
			gapTotal += members[i].Date.Sub(members[i-1].Date).Hours() / 24
		}
		avgGap := gapTotal / float64(len(members)-1)
		if avgGap < minGapDays || avgGap > maxGapDays {
			continue
		}

		for _, m := range members {
			recurringIDs = append(recurringIDs, m.ID)
		}
		groups = append(groups, domain.RecurringGroup{
			Merchant:  members[0].Merchant,
			Amount:    mean.Round(2),
			Frequency: domain.FrequencyMonthly,
			Category:  members[0].Category,
			Count:     len(members),
		})
	}

	if len(recurringIDs) > 0 {
		if err := s.store.MarkTransactionsRecurring(ctx, userID, recurringIDs); err != nil {
			s.logger.Error("failed to mark transactions recurring",
				zap.String("user_id", userID),
				zap.Int("count", len(recurringIDs)),
				zap.Error(err),
			)
			return nil, err
		}
	}

	s.metrics.AddRecurringGroups(len(groups))
	return groups, nil
}

// ============================================================
// Insight generation
// ============================================================

// Structured payloads attached to insights as Data.
type trendData struct {
	CurrentMonth  string          `json:"current_month"`
	PreviousMonth string          `json:"previous_month"`
	CurrentTotal  decimal.Decimal `json:"current_total"`
	PreviousTotal decimal.Decimal `json:"previous_total"`
	ChangePct     decimal.Decimal `json:"change_pct"`
}

type categoryTotal struct {
	Category domain.Category `json:"category"`
	Total    decimal.Decimal `json:"total"`
	Count    int             `json:"count"`
}

type spikeData struct {
	Threshold decimal.Decimal    `json:"threshold"`
	Average   decimal.Decimal    `json:"average"`
	Spikes    []spikeTransaction `json:"spikes"`
}

type spikeTransaction struct {
	Date        string          `json:"date"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
}

type merchantTotal struct {
	Merchant string          `json:"merchant"`
	Total    decimal.Decimal `json:"total"`
	Count    int             `json:"count"`
}

// GenerateInsights recomputes the user's full insight set from their
// current transaction history and atomically replaces the stored set.
// Rules run in a fixed order and each emits at most one insight; a user
// with no qualifying data ends up with an empty set, not a stale one.
func (s *AnalyticsService) GenerateInsights(ctx context.Context, userID string) ([]domain.Insight, error) {
	ctx, span := analyticsTracer.Start(ctx, "AnalyticsService.GenerateInsights")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	start := time.Now()
	defer func() { s.metrics.RecordStageDuration("generate_insights", time.Since(start)) }()

	txns, err := s.store.ListTransactions(ctx, userID)
	if err != nil {
		return nil, err
	}

	groups, err := s.DetectRecurring(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	insights := make([]domain.Insight, 0, 5)
	appendIf := func(ins *domain.Insight) {
		if ins == nil {
			return
		}
		ins.ID = uuid.NewString()
		ins.UserID = userID
		ins.CreatedAt = now
		insights = append(insights, *ins)
		s.metrics.IncrInsight(string(ins.Type))
	}

	appendIf(spendingTrendInsight(txns))
	appendIf(topCategoryInsight(txns))
	appendIf(subscriptionCreepInsight(groups))
	appendIf(spendingSpikesInsight(txns))
	appendIf(topMerchantsInsight(txns))

	if err := s.store.ReplaceInsights(ctx, userID, insights); err != nil {
		s.logger.Error("failed to replace insights",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		return nil, err
	}

	s.logger.Info("insights regenerated",
		zap.String("user_id", userID),
		zap.Int("count", len(insights)),
		zap.Int("recurring_groups", len(groups)),
	)
	return insights, nil
}

// spendingTrendInsight compares the two most recent months of debit
// spend and reports changes larger than 20%.
func spendingTrendInsight(txns []domain.Transaction) *domain.Insight {
	totals := make(map[string]decimal.Decimal)
	var months []string
	for _, t := range txns {
		if t.Kind != domain.KindDebit {
			continue
		}
		m := t.Month()
		if _, ok := totals[m]; !ok {
			months = append(months, m)
		}
		totals[m] = totals[m].Add(t.Amount)
	}
	if len(months) < 2 {
		return nil
	}
	sort.Sort(sort.Reverse(sort.StringSlice(months)))

	cur, prev := months[0], months[1]
	curTotal, prevTotal := totals[cur], totals[prev]
	if prevTotal.IsZero() {
		return nil
	}

	change := curTotal.Sub(prevTotal).Div(prevTotal).Mul(decimal.NewFromInt(100))
	if change.Abs().LessThanOrEqual(decimal.NewFromInt(20)) {
		return nil
	}

	direction := "increased"
	if change.IsNegative() {
		direction = "decreased"
	}
	severity := domain.SeverityInfo
	switch {
	case change.GreaterThan(decimal.NewFromInt(30)):
		severity = domain.SeverityWarning
	case change.LessThan(decimal.NewFromInt(-10)):
		severity = domain.SeverityPositive
	}

	data, _ := json.Marshal(trendData{
		CurrentMonth:  cur,
		PreviousMonth: prev,
		CurrentTotal:  curTotal,
		PreviousTotal: prevTotal,
		ChangePct:     change.Round(2),
	})
	return &domain.Insight{
		Type:        domain.InsightSpendingTrend,
		Title:       fmt.Sprintf("Spending %s %s%%", direction, change.Abs().Round(0)),
		Description: fmt.Sprintf("Your spending in %s was $%s compared to $%s in %s.", cur, curTotal.StringFixed(2), prevTotal.StringFixed(2), prev),
		Severity:    severity,
		Data:        data,
		Period:      cur,
	}
}

// topCategoryInsight reports the category receiving the largest share of
// debit spend. Ties resolve to the category seen first in the history.
func topCategoryInsight(txns []domain.Transaction) *domain.Insight {
	totals := make(map[domain.Category]*categoryTotal)
	var order []domain.Category
	grand := decimal.Zero
	for _, t := range txns {
		if t.Kind != domain.KindDebit {
			continue
		}
		ct, ok := totals[t.Category]
		if !ok {
			ct = &categoryTotal{Category: t.Category}
			totals[t.Category] = ct
			order = append(order, t.Category)
		}
		ct.Total = ct.Total.Add(t.Amount)
		ct.Count++
		grand = grand.Add(t.Amount)
	}
	if len(order) == 0 || grand.IsZero() {
		return nil
	}

	top := totals[order[0]]
	for _, c := range order[1:] {
		if totals[c].Total.GreaterThan(top.Total) {
			top = totals[c]
		}
	}

	pct := top.Total.Div(grand).Mul(decimal.NewFromInt(100)).Round(0)
	severity := domain.SeverityInfo
	if pct.GreaterThan(decimal.NewFromInt(50)) {
		severity = domain.SeverityWarning
	}

	ranked := make([]categoryTotal, 0, len(order))
	for _, c := range order {
		ranked = append(ranked, *totals[c])
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Total.GreaterThan(ranked[j].Total)
	})
	if len(ranked) > 5 {
		ranked = ranked[:5]
	}
	data, _ := json.Marshal(ranked)

	return &domain.Insight{
		Type:        domain.InsightTopCategory,
		Title:       fmt.Sprintf("%s%% of spending on %s", pct, top.Category),
		Description: fmt.Sprintf("Your top spending category is %s with $%s across %d transactions.", top.Category.Label(), top.Total.StringFixed(2), top.Count),
		Severity:    severity,
		Data:        data,
	}
}

// subscriptionCreepInsight totals the detected recurring groups into a
// monthly and yearly subscription cost.
func subscriptionCreepInsight(groups []domain.RecurringGroup) *domain.Insight {
	if len(groups) == 0 {
		return nil
	}

	monthly := decimal.Zero
	for _, g := range groups {
		monthly = monthly.Add(g.Amount)
	}
	yearly := monthly.Mul(decimal.NewFromInt(12))

	severity := domain.SeverityInfo
	if monthly.GreaterThan(decimal.NewFromInt(200)) {
		severity = domain.SeverityWarning
	}

	data, _ := json.Marshal(groups)
	return &domain.Insight{
		Type:        domain.InsightSubscriptionCreep,
		Title:       fmt.Sprintf("$%s/month in subscriptions", monthly.StringFixed(2)),
		Description: fmt.Sprintf("You have %d detected recurring charges totaling ~$%s per year.", len(groups), yearly.StringFixed(0)),
		Severity:    severity,
		Data:        data,
	}
}

// spendingSpikesInsight flags debits more than 3x the average debit.
func spendingSpikesInsight(txns []domain.Transaction) *domain.Insight {
	var debits []domain.Transaction
	total := decimal.Zero
	for _, t := range txns {
		if t.Kind != domain.KindDebit {
			continue
		}
		debits = append(debits, t)
		total = total.Add(t.Amount)
	}
	if len(debits) == 0 {
		return nil
	}

	mean := total.Div(decimal.NewFromInt(int64(len(debits))))
	threshold := mean.Mul(decimal.NewFromInt(3))

	var spikes []domain.Transaction
	for _, t := range debits {
		if t.Amount.GreaterThan(threshold) {
			spikes = append(spikes, t)
		}
	}
	if len(spikes) == 0 {
		return nil
	}

	sort.SliceStable(spikes, func(i, j int) bool {
		return spikes[i].Amount.GreaterThan(spikes[j].Amount)
	})
	if len(spikes) > 5 {
		spikes = spikes[:5]
	}

	payload := spikeData{Threshold: threshold.Round(2), Average: mean.Round(2)}
	for _, t := range spikes {
		payload.Spikes = append(payload.Spikes, spikeTransaction{
			Date:        t.DateString(),
			Description: t.Description,
			Amount:      t.Amount,
		})
	}
	data, _ := json.Marshal(payload)

	plural := ""
	if len(spikes) > 1 {
		plural = "s"
	}
	return &domain.Insight{
		Type:        domain.InsightSpendingSpikes,
		Title:       fmt.Sprintf("%d unusually large transaction%s", len(spikes), plural),
		Description: fmt.Sprintf("Found transactions significantly above your average of $%s.", mean.StringFixed(2)),
		Severity:    domain.SeverityInfo,
		Data:        data,
	}
}

// topMerchantsInsight ranks merchants by total debit spend.
func topMerchantsInsight(txns []domain.Transaction) *domain.Insight {
	totals := make(map[string]*merchantTotal)
	var order []string
	for _, t := range txns {
		if t.Kind != domain.KindDebit {
			continue
		}
		mt, ok := totals[t.Merchant]
		if !ok {
			mt = &merchantTotal{Merchant: t.Merchant}
			totals[t.Merchant] = mt
			order = append(order, t.Merchant)
		}
		mt.Total = mt.Total.Add(t.Amount)
		mt.Count++
	}
	if len(order) == 0 {
		return nil
	}

	ranked := make([]merchantTotal, 0, len(order))
	for _, m := range order {
		ranked = append(ranked, *totals[m])
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Total.GreaterThan(ranked[j].Total)
	})
	if len(ranked) > 5 {
		ranked = ranked[:5]
	}
	data, _ := json.Marshal(ranked)

	top := ranked[0]
	return &domain.Insight{
		Type:        domain.InsightTopMerchants,
		Title:       fmt.Sprintf("Most spent at %s", top.Merchant),
		Description: fmt.Sprintf("$%s across %d transactions.", top.Total.StringFixed(2), top.Count),
		Severity:    domain.SeverityInfo,
		Data:        data,
	}
}
