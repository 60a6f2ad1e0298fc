// spendlens ingests a CSV bank statement for a user, persists the
// parsed transactions, and prints the regenerated insights.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/boddenberg/spendlens-go/internal/config"
	"github.com/boddenberg/spendlens-go/internal/domain"
	"github.com/boddenberg/spendlens-go/internal/infra/cache"
	"github.com/boddenberg/spendlens-go/internal/infra/memstore"
	"github.com/boddenberg/spendlens-go/internal/infra/observability"
	"github.com/boddenberg/spendlens-go/internal/infra/resilience"
	"github.com/boddenberg/spendlens-go/internal/infra/supabase"
	"github.com/boddenberg/spendlens-go/internal/port"
	"github.com/boddenberg/spendlens-go/internal/service"
)

func main() {
	userID := flag.String("user", "", "user id to ingest for (required)")
	file := flag.String("file", "", "path to the CSV statement (required)")
	flag.Parse()

	if *userID == "" || *file == "" {
		flag.Usage()
		os.Exit(2)
	}

	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()
	cfg := config.Load()

	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	ctx := context.Background()

	shutdownTracer, err := observability.InitTracer(ctx, cfg.OTLPEndpoint, "spendlens")
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracer(shutdownCtx); err != nil {
			logger.Warn("tracer shutdown failed", zap.Error(err))
		}
	}()

	metrics := observability.NewMetrics()
	overviewCache := cache.New[*domain.Overview](cfg.CacheTTL)

	var store port.Store
	if cfg.UseSupabase && cfg.SupabaseURL != "" {
		httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
		cb := resilience.NewCircuitBreaker("supabase")
		rcfg := resilience.Config{
			MaxRetries:     cfg.MaxRetries,
			InitialBackoff: cfg.InitialBackoff,
			MaxConcurrency: cfg.MaxConcurrency,
		}
		store = supabase.NewClient(httpClient, cfg.SupabaseURL, cfg.SupabaseAnonKey, cfg.SupabaseServiceKey, cb, rcfg, metrics, logger)
		logger.Info("using supabase store", zap.String("url", cfg.SupabaseURL))
	} else {
		store = memstore.New()
		logger.Info("using in-memory store")
	}

	analytics := service.NewAnalyticsService(store, overviewCache, metrics, logger)
	statements := service.NewStatementService(store, analytics, metrics, logger, cfg.MaxUploadBytes)

	content, err := os.ReadFile(*file)
	if err != nil {
		logger.Fatal("failed to read statement file", zap.String("file", *file), zap.Error(err))
	}

	report, err := statements.Upload(ctx, *userID, *file, content)
	if err != nil {
		var rejected *domain.ErrStatementRejected
		var duplicate *domain.ErrDuplicateStatement
		switch {
		case errors.As(err, &rejected):
			fmt.Fprintf(os.Stderr, "statement rejected: %s\n", rejected.Reason)
		case errors.As(err, &duplicate):
			fmt.Fprintln(os.Stderr, "this file was already uploaded")
		default:
			fmt.Fprintf(os.Stderr, "upload failed: %v\n", err)
		}
		os.Exit(1)
	}

	fmt.Printf("Imported %d of %d rows from %s\n", report.TransactionsImported, report.TotalRows, *file)
	if report.RowErrorCount > 0 {
		fmt.Printf("Skipped %d rows:\n", report.RowErrorCount)
		for _, e := range report.RowErrors {
			fmt.Printf("  %s\n", e)
		}
		if report.RowErrorCount > len(report.RowErrors) {
			fmt.Printf("  ... and %d more\n", report.RowErrorCount-len(report.RowErrors))
		}
	}

	insights, err := analytics.ListInsights(ctx, *userID)
	if err != nil {
		logger.Fatal("failed to list insights", zap.Error(err))
	}
	fmt.Printf("\nInsights (%d):\n", len(insights))
	for _, ins := range insights {
		fmt.Printf("  [%s] %s\n      %s\n", ins.Severity, ins.Title, ins.Description)
	}

	overview, err := analytics.GetOverview(ctx, *userID)
	if err != nil {
		logger.Fatal("failed to compute overview", zap.Error(err))
	}
	fmt.Printf("\nOverview: spent $%s across %d transactions", overview.TotalSpent.StringFixed(2), overview.TotalTransactions)
	if overview.EarliestDate != "" {
		fmt.Printf(" (%s to %s)", overview.EarliestDate, overview.LatestDate)
	}
	fmt.Println()

	if cfg.LogLevel == "debug" {
		stats := metrics.Snapshot()
		logger.Debug("pipeline stats",
			zap.Int64("rows_parsed", stats.RowsParsed),
			zap.Int64("row_errors", stats.RowErrors),
			zap.Float64("row_error_rate", stats.RowErrorRate),
			zap.Int64("insights", stats.InsightsGenerated),
			zap.Int64("recurring_groups", stats.RecurringGroups),
		)
	}
}
