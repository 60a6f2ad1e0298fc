// Package statement parses uploaded CSV bank statements into normalized
// transactions. Failures are two-tier: a document that cannot be parsed at
// all is rejected with *domain.ErrStatementRejected, while individual bad
// rows are skipped and reported as row errors on the outcome.
package statement

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/boddenberg/spendlens-go/internal/classify"
	"github.com/boddenberg/spendlens-go/internal/domain"
)

// Parse decodes one CSV document into transactions for the given user and
// statement. The first non-blank row is the header; required columns are
// located by synonym matching. Each surviving transaction carries a fresh
// uuid, an absolute amount rounded to 2 digits, a kind, a category and the
// original row preserved as JSON.
func Parse(content, userID, statementID string) (*domain.ParseOutcome, error) {
	content = strings.TrimPrefix(content, "\ufeff")

	reader := csv.NewReader(strings.NewReader(content))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, &domain.ErrStatementRejected{Reason: fmt.Sprintf("malformed CSV: %v", err)}
	}

	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		if !blankRow(rec) {
			rows = append(rows, rec)
		}
	}
	if len(rows) < 2 {
		return nil, &domain.ErrStatementRejected{Reason: "file contains no data rows"}
	}

	header := rows[0]
	dateIdx := findColumn(header, dateColumns)
	descIdx := findColumn(header, descriptionColumns)
	amountIdx := findColumn(header, amountColumns)
	creditIdx := findColumn(header, creditColumns)
	typeIdx := findColumn(header, typeColumns)

	if dateIdx < 0 {
		return nil, rejectMissing("date", dateColumns)
	}
	if descIdx < 0 {
		return nil, rejectMissing("description", descriptionColumns)
	}
	if amountIdx < 0 && creditIdx < 0 {
		return nil, rejectMissing("amount", amountColumns)
	}

	dualColumn := amountIdx >= 0 && creditIdx >= 0

	outcome := &domain.ParseOutcome{TotalRows: len(rows) - 1}
	for i, row := range rows[1:] {
		rowNum := i + 1

		date, ok := ParseDate(cell(row, dateIdx))
		if !ok {
			outcome.Errors = append(outcome.Errors, fmt.Sprintf("Row %d: Invalid date %q", rowNum, cell(row, dateIdx)))
			continue
		}

		description := strings.TrimSpace(cell(row, descIdx))
		if description == "" {
			outcome.Errors = append(outcome.Errors, fmt.Sprintf("Row %d: Empty description", rowNum))
			continue
		}

		var amount decimal.Decimal
		var kind domain.Kind
		if dualColumn {
			credit, creditOK := ParseAmount(cell(row, creditIdx))
			debit, debitOK := ParseAmount(cell(row, amountIdx))
			switch {
			case creditOK && credit.IsPositive():
				amount, kind = credit, domain.KindCredit
			case debitOK && !debit.IsZero():
				amount, kind = debit.Abs(), domain.KindDebit
			default:
				outcome.Errors = append(outcome.Errors, fmt.Sprintf("Row %d: Invalid amount", rowNum))
				continue
			}
		} else {
			idx := amountIdx
			if idx < 0 {
				idx = creditIdx
			}
			raw, ok := ParseAmount(cell(row, idx))
			if !ok {
				outcome.Errors = append(outcome.Errors, fmt.Sprintf("Row %d: Invalid amount %q", rowNum, cell(row, idx)))
				continue
			}
			kind = domain.KindDebit
			if raw.IsNegative() {
				kind = domain.KindCredit
			}
			if typeIdx >= 0 {
				if t := strings.ToLower(strings.TrimSpace(cell(row, typeIdx))); t != "" && strings.Contains(t, "credit") {
					kind = domain.KindCredit
				}
			}
			amount = raw.Abs()
		}

		outcome.Transactions = append(outcome.Transactions, domain.Transaction{
			ID:          uuid.NewString(),
			UserID:      userID,
			StatementID: statementID,
			Date:        date,
			Description: description,
			Merchant:    classify.ExtractMerchant(description),
			Amount:      amount.Round(2),
			Kind:        kind,
			Category:    classify.Categorize(description),
			Raw:         rawRow(header, row),
		})
	}

	return outcome, nil
}

func rejectMissing(name string, candidates []string) error {
	return &domain.ErrStatementRejected{
		Reason: fmt.Sprintf("Could not find a %s column. Expected: %s", name, strings.Join(candidates, ", ")),
	}
}

func blankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// cell reads a column; ragged rows may be shorter than the header, in
// which case the cell is empty.
func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}

func rawRow(header, row []string) json.RawMessage {
	m := make(map[string]string, len(header))
	for i, h := range header {
		m[strings.TrimSpace(h)] = cell(row, i)
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil
	}
	return b
}
