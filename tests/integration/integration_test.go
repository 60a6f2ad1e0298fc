package integration_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/boddenberg/spendlens-go/internal/domain"
	"github.com/boddenberg/spendlens-go/internal/infra/cache"
	"github.com/boddenberg/spendlens-go/internal/infra/memstore"
	"github.com/boddenberg/spendlens-go/internal/infra/observability"
	"github.com/boddenberg/spendlens-go/internal/infra/resilience"
	"github.com/boddenberg/spendlens-go/internal/infra/supabase"
	"github.com/boddenberg/spendlens-go/internal/service"
)

// TestIntegration_FullPipeline runs the whole ingestion and insight flow
// against the in-memory store: upload -> enrich -> detect -> insights ->
// dashboard queries -> delete cascade.
func TestIntegration_FullPipeline(t *testing.T) {
	store := memstore.New()
	c := cache.New[*domain.Overview](5 * time.Minute)
	metrics := observability.NewMetrics()
	logger := zap.NewNop()
	analytics := service.NewAnalyticsService(store, c, metrics, logger)
	statements := service.NewStatementService(store, analytics, metrics, logger, 10*1024*1024)

	ctx := context.Background()
	const userID = "user-integration-1"

	content := "Date,Description,Amount\n" +
		"2024-01-05,WHOLE FOODS MKT,80.00\n" +
		"2024-01-10,NETFLIX.COM,15.49\n" +
		"2024-01-20,POS DEBIT - STARBUCKS #12847,6.75\n" +
		"2024-02-03,WHOLE FOODS MKT,120.00\n" +
		"2024-02-10,NETFLIX.COM,15.49\n" +
		"2024-03-10,NETFLIX.COM,15.49\n" +
		"2024-03-12,Paycheck,-1500.00\n"

	// --- Upload ---
	report, err := statements.Upload(ctx, userID, "q1.csv", []byte(content))
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	if report.TransactionsImported != 7 {
		t.Fatalf("imported = %d, want 7", report.TransactionsImported)
	}
	if report.InsightsGenerated == 0 {
		t.Error("expected insights to be generated on upload")
	}

	// --- Overview ---
	overview, err := analytics.GetOverview(ctx, userID)
	if err != nil {
		t.Fatalf("GetOverview failed: %v", err)
	}
	if overview.TotalTransactions != 7 {
		t.Errorf("total transactions = %d, want 7", overview.TotalTransactions)
	}
	if overview.TotalSpent.StringFixed(2) != "253.22" {
		t.Errorf("total spent = %s, want 253.22", overview.TotalSpent.StringFixed(2))
	}
	if overview.TotalCredits.StringFixed(2) != "1500.00" {
		t.Errorf("total credits = %s, want 1500.00", overview.TotalCredits.StringFixed(2))
	}
	if overview.EarliestDate != "2024-01-05" || overview.LatestDate != "2024-03-12" {
		t.Errorf("date range = %s..%s", overview.EarliestDate, overview.LatestDate)
	}

	// --- Monthly trend ---
	trend, err := analytics.MonthlyTrend(ctx, userID)
	if err != nil {
		t.Fatalf("MonthlyTrend failed: %v", err)
	}
	if len(trend) != 3 {
		t.Fatalf("got %d trend points, want 3", len(trend))
	}
	if trend[0].Month != "2024-01" || trend[2].Month != "2024-03" {
		t.Errorf("trend months not ascending: %s..%s", trend[0].Month, trend[2].Month)
	}
	if trend[0].Spent.StringFixed(2) != "102.24" {
		t.Errorf("january spent = %s, want 102.24", trend[0].Spent.StringFixed(2))
	}

	// --- Category breakdown ---
	breakdown, err := analytics.CategoryBreakdown(ctx, userID, "")
	if err != nil {
		t.Fatalf("CategoryBreakdown failed: %v", err)
	}
	if len(breakdown) == 0 {
		t.Fatal("empty category breakdown")
	}
	if breakdown[0].Category != domain.CategoryGroceries {
		t.Errorf("top category = %s, want groceries", breakdown[0].Category)
	}
	if breakdown[0].Total.StringFixed(2) != "200.00" {
		t.Errorf("groceries total = %s, want 200.00", breakdown[0].Total.StringFixed(2))
	}

	// --- Top merchants ---
	merchants, err := analytics.TopMerchants(ctx, userID, 3)
	if err != nil {
		t.Fatalf("TopMerchants failed: %v", err)
	}
	if len(merchants) == 0 {
		t.Fatal("empty merchant list")
	}
	if merchants[0].Total.StringFixed(2) != "200.00" || merchants[0].Count != 2 {
		t.Errorf("top merchant = %+v, want 200.00 across 2", merchants[0])
	}

	// --- Recurring summary ---
	recurring, err := analytics.RecurringSummary(ctx, userID)
	if err != nil {
		t.Fatalf("RecurringSummary failed: %v", err)
	}
	if len(recurring.Subscriptions) != 1 {
		t.Fatalf("got %d subscriptions, want 1 (netflix)", len(recurring.Subscriptions))
	}
	sub := recurring.Subscriptions[0]
	if sub.Occurrences != 3 {
		t.Errorf("occurrences = %d, want 3", sub.Occurrences)
	}
	if sub.AvgAmount.StringFixed(2) != "15.49" {
		t.Errorf("avg amount = %s, want 15.49", sub.AvgAmount.StringFixed(2))
	}
	if sub.FirstSeen != "2024-01-10" || sub.LastSeen != "2024-03-10" {
		t.Errorf("seen range = %s..%s", sub.FirstSeen, sub.LastSeen)
	}
	if recurring.MonthlyTotal.StringFixed(2) != "15.49" {
		t.Errorf("monthly total = %s, want 15.49", recurring.MonthlyTotal.StringFixed(2))
	}

	// --- Daily spending ---
	daily, err := analytics.DailySpending(ctx, userID, "2024-01")
	if err != nil {
		t.Fatalf("DailySpending failed: %v", err)
	}
	if len(daily) != 3 {
		t.Errorf("got %d daily points for january, want 3", len(daily))
	}

	// --- Insights ---
	insights, err := analytics.ListInsights(ctx, userID)
	if err != nil {
		t.Fatalf("ListInsights failed: %v", err)
	}
	byType := make(map[domain.InsightType]domain.Insight, len(insights))
	for _, in := range insights {
		byType[in.Type] = in
	}
	creep, ok := byType[domain.InsightSubscriptionCreep]
	if !ok {
		t.Fatal("expected a subscription_creep insight")
	}
	if creep.Title != "$15.49/month in subscriptions" {
		t.Errorf("creep title = %q", creep.Title)
	}
	if _, ok := byType[domain.InsightSpendingTrend]; !ok {
		t.Error("expected a spending_trend insight")
	}

	// --- Delete cascade ---
	if err := statements.DeleteStatement(ctx, userID, report.Statement.ID); err != nil {
		t.Fatalf("DeleteStatement failed: %v", err)
	}
	after, err := analytics.GetOverview(ctx, userID)
	if err != nil {
		t.Fatalf("GetOverview after delete failed: %v", err)
	}
	if after.TotalTransactions != 0 {
		t.Errorf("%d transactions remain after delete", after.TotalTransactions)
	}
	insights, _ = analytics.ListInsights(ctx, userID)
	if len(insights) != 0 {
		t.Errorf("%d insights remain after delete", len(insights))
	}
}

func newSupabaseClient(baseURL string, maxRetries int) *supabase.Client {
	cfg := resilience.Config{
		MaxRetries:     maxRetries,
		InitialBackoff: time.Millisecond,
		MaxConcurrency: 4,
	}
	cb := resilience.NewCircuitBreaker("supabase-test")
	httpClient := &http.Client{Timeout: 5 * time.Second}
	return supabase.NewClient(httpClient, baseURL, "anon-key", "service-key", cb, cfg, observability.NewMetrics(), zap.NewNop())
}

// TestIntegration_SupabaseAuthAndPaths verifies the PostgREST request
// shape: auth headers on every call, table paths, and batch inserts.
func TestIntegration_SupabaseAuthAndPaths(t *testing.T) {
	var insertedBatch int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("apikey") != "anon-key" {
			t.Errorf("apikey header = %q", r.Header.Get("apikey"))
		}
		if r.Header.Get("Authorization") != "Bearer service-key" {
			t.Errorf("authorization header = %q", r.Header.Get("Authorization"))
		}

		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/rest/v1/statements":
			if r.Header.Get("Prefer") != "return=representation" {
				t.Errorf("prefer header = %q", r.Header.Get("Prefer"))
			}
			w.WriteHeader(http.StatusCreated)
			fmt.Fprint(w, "[]")

		case r.Method == http.MethodPost && r.URL.Path == "/rest/v1/transactions":
			var batch []map[string]any
			if err := json.NewDecoder(r.Body).Decode(&batch); err != nil {
				t.Errorf("transactions payload is not a JSON array: %v", err)
			}
			insertedBatch = len(batch)
			w.WriteHeader(http.StatusCreated)
			fmt.Fprint(w, "[]")

		case r.Method == http.MethodGet && r.URL.Path == "/rest/v1/transactions":
			if !strings.Contains(r.URL.RawQuery, "order=transaction_date.asc") {
				t.Errorf("missing date ordering in query %q", r.URL.RawQuery)
			}
			fmt.Fprint(w, `[{"id":"t1","user_id":"u1","statement_id":"s1","transaction_date":"2024-01-15","description":"Coffee","merchant":"Coffee","amount":"4.5","type":"debit","category":"dining","is_recurring":false}]`)

		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client := newSupabaseClient(server.URL, 0)
	ctx := context.Background()

	st := &domain.Statement{ID: "s1", UserID: "u1", FileHash: "h", UploadedAt: time.Now().UTC()}
	if err := client.CreateStatement(ctx, st); err != nil {
		t.Fatalf("CreateStatement failed: %v", err)
	}

	txns := []domain.Transaction{
		{ID: "t1", UserID: "u1", StatementID: "s1", Kind: domain.KindDebit},
		{ID: "t2", UserID: "u1", StatementID: "s1", Kind: domain.KindCredit},
	}
	if err := client.InsertTransactions(ctx, txns); err != nil {
		t.Fatalf("InsertTransactions failed: %v", err)
	}
	if insertedBatch != 2 {
		t.Errorf("inserted batch size = %d, want 2 in one request", insertedBatch)
	}

	listed, err := client.ListTransactions(ctx, "u1")
	if err != nil {
		t.Fatalf("ListTransactions failed: %v", err)
	}
	if len(listed) != 1 || listed[0].Kind != domain.KindDebit {
		t.Errorf("listed = %+v", listed)
	}
	if !listed[0].Date.Equal(time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("date = %s, want 2024-01-15", listed[0].Date)
	}
}

func TestIntegration_SupabaseEmptyResultIsNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "[]")
	}))
	defer server.Close()

	client := newSupabaseClient(server.URL, 0)
	_, err := client.GetStatementByHash(context.Background(), "u1", "deadbeef")

	var notFound *domain.ErrNotFound
	if !errors.As(err, &notFound) {
		t.Fatalf("expected ErrNotFound through the wrap chain, got %v", err)
	}
}

func TestIntegration_SupabaseRetriesThenFails(t *testing.T) {
	var attempts atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"message":"boom"}`)
	}))
	defer server.Close()

	client := newSupabaseClient(server.URL, 2)
	_, err := client.ListStatements(context.Background(), "u1")

	var external *domain.ErrExternalService
	if !errors.As(err, &external) {
		t.Fatalf("expected ErrExternalService, got %v", err)
	}
	if got := attempts.Load(); got != 3 {
		t.Errorf("attempts = %d, want 3 (initial + 2 retries)", got)
	}
}
