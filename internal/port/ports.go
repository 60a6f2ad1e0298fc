// Package port defines the interfaces between the services and their
// collaborators. Services depend on these, never on concrete stores.
package port

import (
	"context"

	"github.com/boddenberg/spendlens-go/internal/domain"
)

// StatementStore persists statement records.
type StatementStore interface {
	CreateStatement(ctx context.Context, s *domain.Statement) error
	// GetStatementByHash returns *domain.ErrNotFound when no statement
	// with the given content hash exists for the user.
	GetStatementByHash(ctx context.Context, userID, hash string) (*domain.Statement, error)
	GetStatement(ctx context.Context, userID, statementID string) (*domain.Statement, error)
	ListStatements(ctx context.Context, userID string) ([]domain.Statement, error)
	DeleteStatement(ctx context.Context, userID, statementID string) error
}

// TransactionStore persists transactions.
type TransactionStore interface {
	// InsertTransactions writes the batch atomically: either every
	// transaction is stored or none is.
	InsertTransactions(ctx context.Context, txns []domain.Transaction) error
	// ListTransactions returns all of the user's transactions ordered by
	// date ascending.
	ListTransactions(ctx context.Context, userID string) ([]domain.Transaction, error)
	// ListDebitTransactions returns the user's debits ordered by merchant
	// then date, the order the recurring detector consumes.
	ListDebitTransactions(ctx context.Context, userID string) ([]domain.Transaction, error)
	MarkTransactionsRecurring(ctx context.Context, userID string, ids []string) error
	DeleteStatementTransactions(ctx context.Context, userID, statementID string) error
}

// InsightStore persists derived insights.
type InsightStore interface {
	// ReplaceInsights atomically swaps the user's insight set for the
	// given one. An empty slice clears the set.
	ReplaceInsights(ctx context.Context, userID string, insights []domain.Insight) error
	ListInsights(ctx context.Context, userID string) ([]domain.Insight, error)
}

// Store is the full persistence surface the services wire against.
type Store interface {
	StatementStore
	TransactionStore
	InsightStore
}

// Cache is a TTL cache for derived read models.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
}
