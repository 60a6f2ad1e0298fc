package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/boddenberg/spendlens-go/internal/domain"
	"github.com/boddenberg/spendlens-go/internal/infra/cache"
	"github.com/boddenberg/spendlens-go/internal/infra/memstore"
	"github.com/boddenberg/spendlens-go/internal/infra/observability"
)

func newTestAnalytics() (*memstore.Store, *AnalyticsService) {
	store := memstore.New()
	c := cache.New[*domain.Overview](time.Minute)
	analytics := NewAnalyticsService(store, c, observability.NewMetrics(), zap.NewNop())
	return store, analytics
}

func debit(userID, merchant, amount, date string) domain.Transaction {
	d, _ := time.Parse("2006-01-02", date)
	return domain.Transaction{
		ID:          uuid.NewString(),
		UserID:      userID,
		StatementID: "stmt-1",
		Date:        d,
		Description: merchant,
		Merchant:    merchant,
		Amount:      decimal.RequireFromString(amount),
		Kind:        domain.KindDebit,
		Category:    domain.CategoryUncategorized,
	}
}

func seed(t *testing.T, store *memstore.Store, txns ...domain.Transaction) {
	t.Helper()
	if err := store.InsertTransactions(context.Background(), txns); err != nil {
		t.Fatalf("seed failed: %v", err)
	}
}

func TestDetectRecurring_MonthlyCharge(t *testing.T) {
	store, analytics := newTestAnalytics()
	ctx := context.Background()

	var txns []domain.Transaction
	for month := 1; month <= 6; month++ {
		tx := debit("u1", "Netflix", "15.49", fmt.Sprintf("2024-%02d-15", month))
		tx.Category = domain.CategorySubscriptions
		txns = append(txns, tx)
	}
	seed(t, store, txns...)

	groups, err := analytics.DetectRecurring(ctx, "u1")
	if err != nil {
		t.Fatalf("DetectRecurring failed: %v", err)
	}
	if len(groups) != 1 {
		t.Fatalf("got %d groups, want 1", len(groups))
	}

	g := groups[0]
	if g.Merchant != "Netflix" {
		t.Errorf("merchant = %q", g.Merchant)
	}
	if g.Count != 6 {
		t.Errorf("count = %d, want 6", g.Count)
	}
	if !g.Amount.Equal(decimal.RequireFromString("15.49")) {
		t.Errorf("amount = %s, want 15.49", g.Amount)
	}
	if g.Frequency != domain.FrequencyMonthly {
		t.Errorf("frequency = %s", g.Frequency)
	}

	flagged, _ := store.ListDebitTransactions(ctx, "u1")
	for _, tx := range flagged {
		if !tx.IsRecurring {
			t.Errorf("transaction %s on %s not flagged recurring", tx.ID, tx.DateString())
		}
	}
}

func TestDetectRecurring_UnstableAmountsDisqualify(t *testing.T) {
	store, analytics := newTestAnalytics()

	// A $50 outlier pushes the whole group outside the 10% band.
	seed(t, store,
		debit("u1", "Acme Gym", "30.00", "2024-01-10"),
		debit("u1", "Acme Gym", "30.00", "2024-02-10"),
		debit("u1", "Acme Gym", "80.00", "2024-03-10"),
	)

	groups, err := analytics.DetectRecurring(context.Background(), "u1")
	if err != nil {
		t.Fatalf("DetectRecurring failed: %v", err)
	}
	if len(groups) != 0 {
		t.Fatalf("got %d groups, want 0: %+v", len(groups), groups)
	}
}

func TestDetectRecurring_WrongCadenceDisqualifies(t *testing.T) {
	store, analytics := newTestAnalytics()

	// Weekly charges: stable amount but ~7 day gaps.
	seed(t, store,
		debit("u1", "Corner Cafe", "5.00", "2024-01-01"),
		debit("u1", "Corner Cafe", "5.00", "2024-01-08"),
		debit("u1", "Corner Cafe", "5.00", "2024-01-15"),
	)

	groups, err := analytics.DetectRecurring(context.Background(), "u1")
	if err != nil {
		t.Fatalf("DetectRecurring failed: %v", err)
	}
	if len(groups) != 0 {
		t.Fatalf("got %d groups, want 0", len(groups))
	}
}

func TestDetectRecurring_SingleChargeIgnored(t *testing.T) {
	store, analytics := newTestAnalytics()
	seed(t, store, debit("u1", "One Off Shop", "99.00", "2024-01-01"))

	groups, err := analytics.DetectRecurring(context.Background(), "u1")
	if err != nil {
		t.Fatalf("DetectRecurring failed: %v", err)
	}
	if len(groups) != 0 {
		t.Fatalf("got %d groups, want 0", len(groups))
	}
}

func TestDetectRecurring_MerchantCaseFolded(t *testing.T) {
	store, analytics := newTestAnalytics()
	seed(t, store,
		debit("u1", "Spotify", "9.99", "2024-01-05"),
		debit("u1", "SPOTIFY", "9.99", "2024-02-05"),
		debit("u1", "spotify", "9.99", "2024-03-05"),
	)

	groups, err := analytics.DetectRecurring(context.Background(), "u1")
	if err != nil {
		t.Fatalf("DetectRecurring failed: %v", err)
	}
	if len(groups) != 1 {
		t.Fatalf("got %d groups, want 1", len(groups))
	}
	if groups[0].Count != 3 {
		t.Errorf("count = %d, want 3", groups[0].Count)
	}
}

func TestGenerateInsights_SpendingTrend(t *testing.T) {
	store, analytics := newTestAnalytics()
	ctx := context.Background()

	// January: $100, February: $125 (+25%).
	seed(t, store,
		debit("u1", "Shop A", "100.00", "2024-01-10"),
		debit("u1", "Shop B", "125.00", "2024-02-10"),
	)

	insights, err := analytics.GenerateInsights(ctx, "u1")
	if err != nil {
		t.Fatalf("GenerateInsights failed: %v", err)
	}

	trend := findInsight(insights, domain.InsightSpendingTrend)
	if trend == nil {
		t.Fatal("expected a spending_trend insight")
	}
	if trend.Title != "Spending increased 25%" {
		t.Errorf("title = %q", trend.Title)
	}
	if trend.Description != "Your spending in 2024-02 was $125.00 compared to $100.00 in 2024-01." {
		t.Errorf("description = %q", trend.Description)
	}
	if trend.Severity != domain.SeverityInfo {
		t.Errorf("severity = %s, want info for a 25%% increase", trend.Severity)
	}
	if trend.Period != "2024-02" {
		t.Errorf("period = %q", trend.Period)
	}
}

func TestGenerateInsights_SmallChangeNoTrend(t *testing.T) {
	store, analytics := newTestAnalytics()

	// +15% month over month stays below the 20% threshold.
	seed(t, store,
		debit("u1", "Shop A", "100.00", "2024-01-10"),
		debit("u1", "Shop B", "115.00", "2024-02-10"),
	)

	insights, err := analytics.GenerateInsights(context.Background(), "u1")
	if err != nil {
		t.Fatalf("GenerateInsights failed: %v", err)
	}
	if ins := findInsight(insights, domain.InsightSpendingTrend); ins != nil {
		t.Errorf("unexpected trend insight: %q", ins.Title)
	}
}

func TestGenerateInsights_DecreasePositive(t *testing.T) {
	store, analytics := newTestAnalytics()

	// -50% month over month reads as positive news.
	seed(t, store,
		debit("u1", "Shop A", "200.00", "2024-01-10"),
		debit("u1", "Shop B", "100.00", "2024-02-10"),
	)

	insights, err := analytics.GenerateInsights(context.Background(), "u1")
	if err != nil {
		t.Fatalf("GenerateInsights failed: %v", err)
	}
	trend := findInsight(insights, domain.InsightSpendingTrend)
	if trend == nil {
		t.Fatal("expected a spending_trend insight")
	}
	if trend.Title != "Spending decreased 50%" {
		t.Errorf("title = %q", trend.Title)
	}
	if trend.Severity != domain.SeverityPositive {
		t.Errorf("severity = %s, want positive", trend.Severity)
	}
}

func TestGenerateInsights_TopCategory(t *testing.T) {
	store, analytics := newTestAnalytics()

	groceries := debit("u1", "Kroger", "300.00", "2024-01-05")
	groceries.Category = domain.CategoryGroceries
	dining := debit("u1", "Cafe", "100.00", "2024-01-06")
	dining.Category = domain.CategoryDining
	seed(t, store, groceries, dining)

	insights, err := analytics.GenerateInsights(context.Background(), "u1")
	if err != nil {
		t.Fatalf("GenerateInsights failed: %v", err)
	}
	top := findInsight(insights, domain.InsightTopCategory)
	if top == nil {
		t.Fatal("expected a top_category insight")
	}
	if top.Title != "75% of spending on groceries" {
		t.Errorf("title = %q", top.Title)
	}
	if top.Severity != domain.SeverityWarning {
		t.Errorf("severity = %s, want warning above 50%%", top.Severity)
	}
}

func TestGenerateInsights_SubscriptionCreep(t *testing.T) {
	store, analytics := newTestAnalytics()

	var txns []domain.Transaction
	for month := 1; month <= 3; month++ {
		txns = append(txns, debit("u1", "Netflix", "15.49", fmt.Sprintf("2024-%02d-15", month)))
		txns = append(txns, debit("u1", "Spotify", "9.99", fmt.Sprintf("2024-%02d-03", month)))
	}
	seed(t, store, txns...)

	insights, err := analytics.GenerateInsights(context.Background(), "u1")
	if err != nil {
		t.Fatalf("GenerateInsights failed: %v", err)
	}
	creep := findInsight(insights, domain.InsightSubscriptionCreep)
	if creep == nil {
		t.Fatal("expected a subscription_creep insight")
	}
	if creep.Title != "$25.48/month in subscriptions" {
		t.Errorf("title = %q", creep.Title)
	}
	if creep.Description != "You have 2 detected recurring charges totaling ~$306 per year." {
		t.Errorf("description = %q", creep.Description)
	}
}

func TestGenerateInsights_SpendingSpikes(t *testing.T) {
	store, analytics := newTestAnalytics()

	// Mean of (10,10,10,10,200) = 48; threshold 144; one spike.
	seed(t, store,
		debit("u1", "Shop", "10.00", "2024-01-01"),
		debit("u1", "Shop", "10.00", "2024-01-02"),
		debit("u1", "Shop", "10.00", "2024-01-03"),
		debit("u1", "Shop", "10.00", "2024-01-04"),
		debit("u1", "Jeweler", "200.00", "2024-01-05"),
	)

	insights, err := analytics.GenerateInsights(context.Background(), "u1")
	if err != nil {
		t.Fatalf("GenerateInsights failed: %v", err)
	}
	spikes := findInsight(insights, domain.InsightSpendingSpikes)
	if spikes == nil {
		t.Fatal("expected a spending_spikes insight")
	}
	if spikes.Title != "1 unusually large transaction" {
		t.Errorf("title = %q", spikes.Title)
	}
	if spikes.Description != "Found transactions significantly above your average of $48.00." {
		t.Errorf("description = %q", spikes.Description)
	}
}

func TestGenerateInsights_TopMerchants(t *testing.T) {
	store, analytics := newTestAnalytics()

	seed(t, store,
		debit("u1", "Kroger", "50.00", "2024-01-02"),
		debit("u1", "Kroger", "60.00", "2024-01-09"),
		debit("u1", "Cafe", "10.00", "2024-01-03"),
	)

	insights, err := analytics.GenerateInsights(context.Background(), "u1")
	if err != nil {
		t.Fatalf("GenerateInsights failed: %v", err)
	}
	top := findInsight(insights, domain.InsightTopMerchants)
	if top == nil {
		t.Fatal("expected a top_merchants insight")
	}
	if top.Title != "Most spent at Kroger" {
		t.Errorf("title = %q", top.Title)
	}
	if top.Description != "$110.00 across 2 transactions." {
		t.Errorf("description = %q", top.Description)
	}
}

func TestGenerateInsights_Idempotent(t *testing.T) {
	store, analytics := newTestAnalytics()
	ctx := context.Background()

	var txns []domain.Transaction
	for month := 1; month <= 4; month++ {
		txns = append(txns, debit("u1", "Netflix", "15.49", fmt.Sprintf("2024-%02d-15", month)))
		txns = append(txns, debit("u1", "Kroger", "80.00", fmt.Sprintf("2024-%02d-02", month)))
	}
	txns = append(txns, debit("u1", "Jeweler", "900.00", "2024-04-20"))
	seed(t, store, txns...)

	first, err := analytics.GenerateInsights(ctx, "u1")
	if err != nil {
		t.Fatalf("first GenerateInsights failed: %v", err)
	}
	second, err := analytics.GenerateInsights(ctx, "u1")
	if err != nil {
		t.Fatalf("second GenerateInsights failed: %v", err)
	}

	if len(first) != len(second) {
		t.Fatalf("insight counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].Type != second[i].Type {
			t.Errorf("insight %d type differs: %s vs %s", i, first[i].Type, second[i].Type)
		}
		if first[i].Title != second[i].Title {
			t.Errorf("insight %d title differs: %q vs %q", i, first[i].Title, second[i].Title)
		}
		if first[i].Description != second[i].Description {
			t.Errorf("insight %d description differs: %q vs %q", i, first[i].Description, second[i].Description)
		}
	}

	stored, err := store.ListInsights(ctx, "u1")
	if err != nil {
		t.Fatalf("ListInsights failed: %v", err)
	}
	if len(stored) != len(second) {
		t.Errorf("stored %d insights, want %d (full replacement)", len(stored), len(second))
	}
}

func TestGenerateInsights_EmptyHistoryClearsSet(t *testing.T) {
	store, analytics := newTestAnalytics()
	ctx := context.Background()

	seed(t, store, debit("u1", "Cafe", "10.00", "2024-01-03"))
	if _, err := analytics.GenerateInsights(ctx, "u1"); err != nil {
		t.Fatalf("GenerateInsights failed: %v", err)
	}

	if err := store.DeleteStatementTransactions(ctx, "u1", "stmt-1"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	insights, err := analytics.GenerateInsights(ctx, "u1")
	if err != nil {
		t.Fatalf("GenerateInsights failed: %v", err)
	}
	if len(insights) != 0 {
		t.Errorf("got %d insights for empty history, want 0", len(insights))
	}

	stored, _ := store.ListInsights(ctx, "u1")
	if len(stored) != 0 {
		t.Errorf("stored set not cleared: %d insights remain", len(stored))
	}
}

func findInsight(insights []domain.Insight, typ domain.InsightType) *domain.Insight {
	for i := range insights {
		if insights[i].Type == typ {
			return &insights[i]
		}
	}
	return nil
}
