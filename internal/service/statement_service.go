package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/boddenberg/spendlens-go/internal/domain"
	"github.com/boddenberg/spendlens-go/internal/infra/observability"
	"github.com/boddenberg/spendlens-go/internal/port"
	"github.com/boddenberg/spendlens-go/internal/statement"
)

var statementTracer = otel.Tracer("service/statement")

// maxRowErrorSample bounds how many row errors the upload report carries.
const maxRowErrorSample = 10

// StatementService runs the upload pipeline: parse, persist, and hand
// off to analytics for insight regeneration.
type StatementService struct {
	store       port.Store
	analytics   *AnalyticsService
	metrics     *observability.Metrics
	logger      *zap.Logger
	maxFileSize int64
}

// NewStatementService creates a new statement service. maxFileSize caps
// accepted uploads in bytes.
func NewStatementService(store port.Store, analytics *AnalyticsService, metrics *observability.Metrics, logger *zap.Logger, maxFileSize int64) *StatementService {
	return &StatementService{
		store:       store,
		analytics:   analytics,
		metrics:     metrics,
		logger:      logger,
		maxFileSize: maxFileSize,
	}
}

// Upload ingests one CSV statement for a user. The document is hashed
// for duplicate detection, parsed into transactions, persisted as an
// atomic batch, and the user's insights are regenerated over the new
// history. The returned report carries the import count and a bounded
// sample of row-level errors.
func (s *StatementService) Upload(ctx context.Context, userID, filename string, content []byte) (*domain.UploadReport, error) {
	ctx, span := statementTracer.Start(ctx, "StatementService.Upload")
	defer span.End()
	span.SetAttributes(
		attribute.String("user.id", userID),
		attribute.String("filename", filename),
		attribute.Int("size_bytes", len(content)),
	)

	start := time.Now()
	defer func() { s.metrics.RecordStageDuration("upload", time.Since(start)) }()

	if userID == "" {
		return nil, &domain.ErrValidation{Field: "user_id", Message: "required"}
	}
	if len(content) == 0 {
		return nil, &domain.ErrValidation{Field: "file", Message: "empty file"}
	}
	if s.maxFileSize > 0 && int64(len(content)) > s.maxFileSize {
		return nil, &domain.ErrValidation{
			Field:   "file",
			Message: fmt.Sprintf("file exceeds maximum size of %d bytes", s.maxFileSize),
		}
	}

	sum := sha256.Sum256(content)
	hash := hex.EncodeToString(sum[:])

	existing, err := s.store.GetStatementByHash(ctx, userID, hash)
	if err != nil {
		var notFound *domain.ErrNotFound
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}
	if existing != nil {
		s.metrics.IncrStatement("duplicate")
		s.logger.Info("duplicate statement rejected",
			zap.String("user_id", userID),
			zap.String("statement_id", existing.ID),
			zap.String("hash", hash),
		)
		return nil, &domain.ErrDuplicateStatement{Hash: hash}
	}

	statementID := uuid.NewString()

	parseStart := time.Now()
	outcome, err := statement.Parse(string(content), userID, statementID)
	s.metrics.RecordStageDuration("parse", time.Since(parseStart))
	if err != nil {
		s.metrics.IncrStatement("rejected")
		return nil, err
	}

	s.metrics.AddRowsParsed(len(outcome.Transactions))
	s.metrics.AddRowErrors(len(outcome.Errors))

	if len(outcome.Transactions) == 0 {
		s.metrics.IncrStatement("rejected")
		return nil, &domain.ErrStatementRejected{Reason: "no valid transactions found in file"}
	}

	record := &domain.Statement{
		ID:           statementID,
		UserID:       userID,
		Filename:     statementID + ".csv",
		OriginalName: filename,
		FileType:     "csv",
		FileHash:     hash,
		RowCount:     len(outcome.Transactions),
		Status:       "completed",
		UploadedAt:   time.Now().UTC(),
	}
	if err := s.store.CreateStatement(ctx, record); err != nil {
		return nil, err
	}

	if err := s.store.InsertTransactions(ctx, outcome.Transactions); err != nil {
		// Best effort: remove the orphaned statement record.
		if delErr := s.store.DeleteStatement(ctx, userID, statementID); delErr != nil {
			s.logger.Error("failed to clean up statement after insert failure",
				zap.String("statement_id", statementID),
				zap.Error(delErr),
			)
		}
		return nil, err
	}

	insights, err := s.analytics.GenerateInsights(ctx, userID)
	if err != nil {
		return nil, err
	}
	s.analytics.InvalidateUser(userID)

	s.metrics.IncrStatement("completed")
	s.logger.Info("statement ingested",
		zap.String("user_id", userID),
		zap.String("statement_id", statementID),
		zap.Int("transactions", len(outcome.Transactions)),
		zap.Int("row_errors", len(outcome.Errors)),
		zap.Int("insights", len(insights)),
	)

	sample := outcome.Errors
	if len(sample) > maxRowErrorSample {
		sample = sample[:maxRowErrorSample]
	}
	return &domain.UploadReport{
		Statement:            record,
		TransactionsImported: len(outcome.Transactions),
		TotalRows:            outcome.TotalRows,
		RowErrors:            sample,
		RowErrorCount:        len(outcome.Errors),
		InsightsGenerated:    len(insights),
	}, nil
}

// ListStatements returns the user's uploaded statements.
func (s *StatementService) ListStatements(ctx context.Context, userID string) ([]domain.Statement, error) {
	ctx, span := statementTracer.Start(ctx, "StatementService.ListStatements")
	defer span.End()

	return s.store.ListStatements(ctx, userID)
}

// DeleteStatement removes a statement and its transactions, then
// regenerates the user's insights over the reduced history.
func (s *StatementService) DeleteStatement(ctx context.Context, userID, statementID string) error {
	ctx, span := statementTracer.Start(ctx, "StatementService.DeleteStatement")
	defer span.End()
	span.SetAttributes(attribute.String("statement.id", statementID))

	if _, err := s.store.GetStatement(ctx, userID, statementID); err != nil {
		return err
	}
	if err := s.store.DeleteStatementTransactions(ctx, userID, statementID); err != nil {
		return err
	}
	if err := s.store.DeleteStatement(ctx, userID, statementID); err != nil {
		return err
	}

	if _, err := s.analytics.GenerateInsights(ctx, userID); err != nil {
		return err
	}
	s.analytics.InvalidateUser(userID)

	s.logger.Info("statement deleted",
		zap.String("user_id", userID),
		zap.String("statement_id", statementID),
	)
	return nil
}
