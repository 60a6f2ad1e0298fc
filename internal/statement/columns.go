package statement

import "strings"

// Header synonym tables, in priority order. Matching is case-insensitive
// exact match after trimming; earlier candidates win over later ones.
var (
	dateColumns        = []string{"date", "transaction date", "trans date", "post date", "posting date", "txn date"}
	descriptionColumns = []string{"description", "merchant", "name", "memo", "details", "transaction description", "payee"}
	amountColumns      = []string{"amount", "transaction amount", "debit", "charge"}
	creditColumns      = []string{"credit", "payment", "credit amount"}
	typeColumns        = []string{"type", "transaction type", "trans type"}
)

// findColumn returns the index of the first header matching any candidate,
// scanning candidates in priority order. Returns -1 when nothing matches.
func findColumn(header []string, candidates []string) int {
	normalized := make([]string, len(header))
	for i, h := range header {
		normalized[i] = strings.ToLower(strings.TrimSpace(h))
	}
	for _, want := range candidates {
		for i, h := range normalized {
			if h == want {
				return i
			}
		}
	}
	return -1
}
