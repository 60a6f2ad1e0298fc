package statement

import (
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	isoDatePattern   = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	usDatePattern    = regexp.MustCompile(`^\d{1,2}/\d{1,2}/\d{4}$`)
	dashDatePattern  = regexp.MustCompile(`^\d{2}-\d{2}-\d{4}$`)
	shortDatePattern = regexp.MustCompile(`^\d{2}/\d{2}/\d{2}$`)

	// Secondary layouts tried when none of the recognized shapes match.
	fallbackLayouts = []string{
		time.RFC3339,
		"Jan 2, 2006",
		"January 2, 2006",
		"2 Jan 2006",
		"2006/01/02",
	}

	amountCleaner = strings.NewReplacer("$", "", "€", "", "£", "", ",", "", " ", "")
)

// ParseDate interprets a raw date cell. Recognized shapes are tried in a
// fixed order: ISO YYYY-MM-DD, M/D/YYYY, MM-DD-YYYY, and MM/DD/YY with a
// two-digit year pivot (YY > 50 resolves to 19YY, otherwise 20YY). A few
// long-form layouts are attempted as a fallback. Every path validates the
// calendar date, so 2024-13-99 fails regardless of shape.
func ParseDate(raw string) (time.Time, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, false
	}

	switch {
	case isoDatePattern.MatchString(s):
		return parseLayout("2006-01-02", s)
	case usDatePattern.MatchString(s):
		return parseLayout("1/2/2006", s)
	case dashDatePattern.MatchString(s):
		return parseLayout("01-02-2006", s)
	case shortDatePattern.MatchString(s):
		return parseShortYear(s)
	}

	for _, layout := range fallbackLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

func parseLayout(layout, s string) (time.Time, bool) {
	t, err := time.Parse(layout, s)
	if err != nil {
		return time.Time{}, false
	}
	return t.UTC(), true
}

func parseShortYear(s string) (time.Time, bool) {
	month := int(s[0]-'0')*10 + int(s[1]-'0')
	day := int(s[3]-'0')*10 + int(s[4]-'0')
	yy := int(s[6]-'0')*10 + int(s[7]-'0')

	year := 2000 + yy
	if yy > 50 {
		year = 1900 + yy
	}

	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	// time.Date normalizes out-of-range components, so round-trip to
	// reject dates like 13/45/24.
	if t.Year() != year || t.Month() != time.Month(month) || t.Day() != day {
		return time.Time{}, false
	}
	return t, true
}

// ParseAmount interprets a raw amount cell. Currency symbols, thousands
// separators and spaces are removed; a parenthesized value means negative.
// The returned decimal keeps its sign; callers decide what sign means.
func ParseAmount(raw string) (decimal.Decimal, bool) {
	s := amountCleaner.Replace(strings.TrimSpace(raw))
	if s == "" {
		return decimal.Zero, false
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	if negative {
		d = d.Neg()
	}
	return d, true
}
