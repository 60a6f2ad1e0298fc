// Package memstore is an in-memory implementation of the persistence
// ports. It backs the CLI when no database is configured and the tests.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/boddenberg/spendlens-go/internal/domain"
)

// Store keeps all data in process memory, keyed by user. Batch writes
// happen under a single lock, so readers never observe partial batches.
type Store struct {
	mu           sync.RWMutex
	statements   map[string][]domain.Statement
	transactions map[string][]domain.Transaction
	insights     map[string][]domain.Insight
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		statements:   make(map[string][]domain.Statement),
		transactions: make(map[string][]domain.Transaction),
		insights:     make(map[string][]domain.Insight),
	}
}

// ============================================================
// Statements
// ============================================================

func (s *Store) CreateStatement(_ context.Context, st *domain.Statement) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.statements[st.UserID] = append(s.statements[st.UserID], *st)
	return nil
}

func (s *Store) GetStatementByHash(_ context.Context, userID, hash string) (*domain.Statement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, st := range s.statements[userID] {
		if st.FileHash == hash {
			out := st
			return &out, nil
		}
	}
	return nil, &domain.ErrNotFound{Resource: "statement", ID: hash}
}

func (s *Store) GetStatement(_ context.Context, userID, statementID string) (*domain.Statement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, st := range s.statements[userID] {
		if st.ID == statementID {
			out := st
			return &out, nil
		}
	}
	return nil, &domain.ErrNotFound{Resource: "statement", ID: statementID}
}

func (s *Store) ListStatements(_ context.Context, userID string) ([]domain.Statement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Statement, len(s.statements[userID]))
	copy(out, s.statements[userID])
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].UploadedAt.After(out[j].UploadedAt)
	})
	return out, nil
}

func (s *Store) DeleteStatement(_ context.Context, userID, statementID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.statements[userID][:0]
	found := false
	for _, st := range s.statements[userID] {
		if st.ID == statementID {
			found = true
			continue
		}
		kept = append(kept, st)
	}
	if !found {
		return &domain.ErrNotFound{Resource: "statement", ID: statementID}
	}
	s.statements[userID] = kept
	return nil
}

// ============================================================
// Transactions
// ============================================================

func (s *Store) InsertTransactions(_ context.Context, txns []domain.Transaction) error {
	if len(txns) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	userID := txns[0].UserID
	s.transactions[userID] = append(s.transactions[userID], txns...)
	return nil
}

func (s *Store) ListTransactions(_ context.Context, userID string) ([]domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Transaction, len(s.transactions[userID]))
	copy(out, s.transactions[userID])
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date.Before(out[j].Date)
	})
	return out, nil
}

func (s *Store) ListDebitTransactions(_ context.Context, userID string) ([]domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Transaction
	for _, t := range s.transactions[userID] {
		if t.Kind == domain.KindDebit {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		mi, mj := strings.ToLower(out[i].Merchant), strings.ToLower(out[j].Merchant)
		if mi != mj {
			return mi < mj
		}
		return out[i].Date.Before(out[j].Date)
	})
	return out, nil
}

func (s *Store) MarkTransactionsRecurring(_ context.Context, userID string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idSet := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		idSet[id] = struct{}{}
	}
	txns := s.transactions[userID]
	for i := range txns {
		if _, ok := idSet[txns[i].ID]; ok {
			txns[i].IsRecurring = true
		}
	}
	return nil
}

func (s *Store) DeleteStatementTransactions(_ context.Context, userID, statementID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.transactions[userID][:0]
	for _, t := range s.transactions[userID] {
		if t.StatementID != statementID {
			kept = append(kept, t)
		}
	}
	s.transactions[userID] = kept
	return nil
}

// ============================================================
// Insights
// ============================================================

func (s *Store) ReplaceInsights(_ context.Context, userID string, insights []domain.Insight) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	replacement := make([]domain.Insight, len(insights))
	copy(replacement, insights)
	s.insights[userID] = replacement
	return nil
}

func (s *Store) ListInsights(_ context.Context, userID string) ([]domain.Insight, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Insight, len(s.insights[userID]))
	copy(out, s.insights[userID])
	return out, nil
}
