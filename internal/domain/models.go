// Package domain holds the core entities of the statement pipeline:
// statements, transactions, recurring groups, and insights. All entities
// are scoped to a single user; amounts are decimals with the sign carried
// by the transaction kind, never by the magnitude.
package domain

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Transaction is one monetary event parsed from a statement row.
// Amount is always >= 0 and rounded to 2 fraction digits.
type Transaction struct {
	ID          string          `json:"id"`
	UserID      string          `json:"user_id"`
	StatementID string          `json:"statement_id"`
	Date        time.Time       `json:"transaction_date"`
	Description string          `json:"description"`
	Merchant    string          `json:"merchant"`
	Amount      decimal.Decimal `json:"amount"`
	Kind        Kind            `json:"type"`
	Category    Category        `json:"category"`
	IsRecurring bool            `json:"is_recurring"`
	Raw         json.RawMessage `json:"raw_data,omitempty"`
}

// DateString returns the canonical YYYY-MM-DD form of the transaction date.
func (t *Transaction) DateString() string {
	return t.Date.Format("2006-01-02")
}

// Month returns the YYYY-MM label the transaction falls in.
func (t *Transaction) Month() string {
	return t.Date.Format("2006-01")
}

// Statement is one uploaded file and the batch of transactions it produced.
type Statement struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	Filename     string    `json:"filename"`
	OriginalName string    `json:"original_name"`
	FileType     string    `json:"file_type"`
	FileHash     string    `json:"file_hash"`
	RowCount     int       `json:"row_count"`
	Status       string    `json:"status"`
	UploadedAt   time.Time `json:"uploaded_at"`
}

// ParseOutcome is the result of parsing one statement document.
// Transactions holds the rows that survived; Errors holds one
// "Row <n>: <reason>" entry per failed row; TotalRows counts the
// non-blank data rows in the input.
type ParseOutcome struct {
	Transactions []Transaction
	Errors       []string
	TotalRows    int
}

// RecurringGroup is a merchant group judged amount-stable and ~monthly.
// Amount is the group's mean amount rounded to 2 fraction digits.
type RecurringGroup struct {
	Merchant  string          `json:"merchant"`
	Amount    decimal.Decimal `json:"amount"`
	Frequency Frequency       `json:"frequency"`
	Category  Category        `json:"category"`
	Count     int             `json:"count"`
}

// Insight is a derived, human-readable observation about a user's
// transaction history. Title and Description are pre-rendered text,
// Data is an opaque structured payload for the dashboard.
type Insight struct {
	ID          string          `json:"id"`
	UserID      string          `json:"user_id"`
	Type        InsightType     `json:"type"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Severity    Severity        `json:"severity"`
	Data        json.RawMessage `json:"data,omitempty"`
	Period      string          `json:"period,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// UploadReport summarizes one statement upload for the caller.
// RowErrors is a bounded sample; RowErrorCount is the full count.
type UploadReport struct {
	Statement            *Statement `json:"statement"`
	TransactionsImported int        `json:"transactions_imported"`
	TotalRows            int        `json:"total_rows"`
	RowErrors            []string   `json:"row_errors,omitempty"`
	RowErrorCount        int        `json:"row_error_count"`
	InsightsGenerated    int        `json:"insights_generated"`
}

// Overview is the aggregated dashboard header for one user.
type Overview struct {
	TotalSpent        decimal.Decimal `json:"total_spent"`
	TotalCredits      decimal.Decimal `json:"total_credits"`
	TotalTransactions int             `json:"total_transactions"`
	AvgTransaction    decimal.Decimal `json:"avg_transaction"`
	StatementCount    int             `json:"statement_count"`
	EarliestDate      string          `json:"earliest_date,omitempty"`
	LatestDate        string          `json:"latest_date,omitempty"`
}

// MonthlyPoint is one month of spending for the trend chart.
type MonthlyPoint struct {
	Month        string          `json:"month"`
	Spent        decimal.Decimal `json:"spent"`
	Credits      decimal.Decimal `json:"credits"`
	Transactions int             `json:"transactions"`
}

// CategorySlice is one category's share of debit spend.
type CategorySlice struct {
	Category   Category        `json:"category"`
	Label      string          `json:"label"`
	Color      string          `json:"color"`
	Total      decimal.Decimal `json:"total"`
	Count      int             `json:"count"`
	Percentage decimal.Decimal `json:"percentage"`
}

// MerchantSummary is one merchant's aggregate debit spend.
type MerchantSummary struct {
	Merchant string          `json:"merchant"`
	Total    decimal.Decimal `json:"total"`
	Count    int             `json:"count"`
	Category Category        `json:"category"`
}

// RecurringSummary aggregates the transactions currently flagged recurring.
type RecurringSummary struct {
	Subscriptions  []RecurringCharge `json:"subscriptions"`
	MonthlyTotal   decimal.Decimal   `json:"monthly_total"`
	YearlyEstimate decimal.Decimal   `json:"yearly_estimate"`
}

// RecurringCharge is one flagged merchant in the recurring summary.
type RecurringCharge struct {
	Merchant    string          `json:"merchant"`
	AvgAmount   decimal.Decimal `json:"avg_amount"`
	Occurrences int             `json:"occurrences"`
	Category    Category        `json:"category"`
	FirstSeen   string          `json:"first_seen"`
	LastSeen    string          `json:"last_seen"`
}

// DailyPoint is one day of debit spend.
type DailyPoint struct {
	Date         string          `json:"date"`
	Spent        decimal.Decimal `json:"spent"`
	Transactions int             `json:"transactions"`
}

// PipelineStats is a point-in-time snapshot of the pipeline metrics,
// exposed for diagnostics (e.g. printed by the CLI in debug mode).
type PipelineStats struct {
	StatementsCompleted int64   `json:"statements_completed"`
	StatementsRejected  int64   `json:"statements_rejected"`
	StatementsDuplicate int64   `json:"statements_duplicate"`
	RowsParsed          int64   `json:"rows_parsed"`
	RowErrors           int64   `json:"row_errors"`
	RowErrorRate        float64 `json:"row_error_rate"`
	InsightsGenerated   int64   `json:"insights_generated"`
	RecurringGroups     int64   `json:"recurring_groups"`
}
