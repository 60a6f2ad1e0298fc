package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"

	"github.com/boddenberg/spendlens-go/internal/domain"
)

// transactionRow maps the transactions table columns.
type transactionRow struct {
	ID          string          `json:"id"`
	UserID      string          `json:"user_id"`
	StatementID string          `json:"statement_id"`
	Date        string          `json:"transaction_date"`
	Description string          `json:"description"`
	Merchant    string          `json:"merchant"`
	Amount      decimal.Decimal `json:"amount"`
	Type        string          `json:"type"`
	Category    string          `json:"category"`
	IsRecurring bool            `json:"is_recurring"`
	Raw         json.RawMessage `json:"raw_data,omitempty"`
}

func toTransactionRow(t domain.Transaction) transactionRow {
	return transactionRow{
		ID:          t.ID,
		UserID:      t.UserID,
		StatementID: t.StatementID,
		Date:        t.DateString(),
		Description: t.Description,
		Merchant:    t.Merchant,
		Amount:      t.Amount,
		Type:        string(t.Kind),
		Category:    string(t.Category),
		IsRecurring: t.IsRecurring,
		Raw:         t.Raw,
	}
}

// statementDate parses the date column, which PostgREST returns as a
// plain date or a full timestamp depending on the column type.
func statementDate(raw string) time.Time {
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t
	}
	t, _ := time.Parse(time.RFC3339, raw)
	return t
}

func (r transactionRow) toDomain() domain.Transaction {
	date := statementDate(r.Date)
	return domain.Transaction{
		ID:          r.ID,
		UserID:      r.UserID,
		StatementID: r.StatementID,
		Date:        date,
		Description: r.Description,
		Merchant:    r.Merchant,
		Amount:      r.Amount,
		Kind:        domain.Kind(r.Type),
		Category:    domain.Category(r.Category),
		IsRecurring: r.IsRecurring,
		Raw:         r.Raw,
	}
}

// InsertTransactions writes the batch as a single PostgREST insert,
// which commits atomically.
func (c *Client) InsertTransactions(ctx context.Context, txns []domain.Transaction) error {
	if len(txns) == 0 {
		return nil
	}

	ctx, span := tracer.Start(ctx, "Supabase.InsertTransactions")
	defer span.End()
	span.SetAttributes(attribute.Int("count", len(txns)))

	rows := make([]transactionRow, 0, len(txns))
	for _, t := range txns {
		rows = append(rows, toTransactionRow(t))
	}

	return c.execute(ctx, "transactions", func() error {
		_, err := c.doPost(ctx, "transactions", rows)
		return err
	})
}

// ListTransactions fetches all of the user's transactions, date ascending.
func (c *Client) ListTransactions(ctx context.Context, userID string) ([]domain.Transaction, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListTransactions")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	path := fmt.Sprintf("transactions?user_id=eq.%s&order=transaction_date.asc", userID)
	return c.listTransactions(ctx, path)
}

// ListDebitTransactions fetches the user's debits ordered by merchant
// then date, the order the recurring detector consumes.
func (c *Client) ListDebitTransactions(ctx context.Context, userID string) ([]domain.Transaction, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListDebitTransactions")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	path := fmt.Sprintf("transactions?user_id=eq.%s&type=eq.debit&order=merchant.asc,transaction_date.asc", userID)
	return c.listTransactions(ctx, path)
}

func (c *Client) listTransactions(ctx context.Context, path string) ([]domain.Transaction, error) {
	var out []domain.Transaction
	err := c.execute(ctx, "transactions", func() error {
		body, err := c.doGet(ctx, path)
		if err != nil {
			return err
		}
		if body == nil || string(body) == "[]" {
			out = []domain.Transaction{}
			return nil
		}

		var rows []transactionRow
		if err := json.Unmarshal(body, &rows); err != nil {
			return fmt.Errorf("failed to decode transactions: %w", err)
		}
		out = make([]domain.Transaction, 0, len(rows))
		for _, r := range rows {
			out = append(out, r.toDomain())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// MarkTransactionsRecurring flags the given transactions as recurring.
func (c *Client) MarkTransactionsRecurring(ctx context.Context, userID string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	ctx, span := tracer.Start(ctx, "Supabase.MarkTransactionsRecurring")
	defer span.End()
	span.SetAttributes(attribute.Int("count", len(ids)))

	return c.execute(ctx, "transactions", func() error {
		path := fmt.Sprintf("transactions?user_id=eq.%s&id=in.(%s)", userID, strings.Join(ids, ","))
		return c.doPatch(ctx, path, map[string]any{"is_recurring": true})
	})
}

// DeleteStatementTransactions removes all transactions belonging to a
// statement.
func (c *Client) DeleteStatementTransactions(ctx context.Context, userID, statementID string) error {
	ctx, span := tracer.Start(ctx, "Supabase.DeleteStatementTransactions")
	defer span.End()
	span.SetAttributes(attribute.String("statement.id", statementID))

	return c.execute(ctx, "transactions", func() error {
		path := fmt.Sprintf("transactions?user_id=eq.%s&statement_id=eq.%s", userID, statementID)
		return c.doDelete(ctx, path)
	})
}
