// Package classify assigns spending categories to transaction descriptions
// and extracts a clean merchant name from raw statement text.
package classify

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/boddenberg/spendlens-go/internal/domain"
)

var (
	// Transaction-channel noise prefixed by card processors, e.g.
	// "POS DEBIT - STARBUCKS #12847". Stripped repeatedly until stable.
	prefixNoise = regexp.MustCompile(`(?i)^(pos|ach|debit|credit|purchase|sale|payment)\b[\s-]*`)
	// Trailing reference numbers, store ids and masked card digits.
	suffixNoise = regexp.MustCompile(`(?i)\s*(#\d+|ref\s*#?\d+|\d{4,}|xx\d+).*$`)
	multiSpace  = regexp.MustCompile(`\s{2,}`)
)

// Categorize maps a description to a category by case-insensitive keyword
// containment. Rules are scanned in declaration order and the first hit
// wins; no keyword matches means CategoryUncategorized.
func Categorize(description string) domain.Category {
	lowered := strings.ToLower(description)
	for _, r := range rules {
		for _, kw := range r.Keywords {
			if strings.Contains(lowered, kw) {
				return r.Category
			}
		}
	}
	return domain.CategoryUncategorized
}

// ExtractMerchant cleans a raw description into a display merchant name:
// processor prefixes and trailing reference noise are stripped, whitespace
// collapsed, and the result title-cased. If cleaning consumes the whole
// string the original description is returned trimmed, so the merchant is
// never empty for a non-empty input.
func ExtractMerchant(description string) string {
	name := strings.TrimSpace(description)
	for {
		stripped := prefixNoise.ReplaceAllString(name, "")
		stripped = strings.TrimSpace(stripped)
		if stripped == name {
			break
		}
		name = stripped
	}
	name = suffixNoise.ReplaceAllString(name, "")
	name = multiSpace.ReplaceAllString(name, " ")
	name = strings.TrimSpace(name)
	if name == "" {
		name = strings.TrimSpace(description)
	}
	// cases.Caser carries internal state, so build one per call.
	return cases.Title(language.English).String(strings.ToLower(name))
}
