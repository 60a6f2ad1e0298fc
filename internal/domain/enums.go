package domain

// Closed enums for the pipeline. These were free-form strings in earlier
// iterations; they are typed here so every switch point handles the full
// set explicitly.

// Kind is the direction of a transaction.
type Kind string

const (
	KindDebit  Kind = "debit"
	KindCredit Kind = "credit"
)

// Valid reports whether k is one of the two known kinds.
func (k Kind) Valid() bool {
	return k == KindDebit || k == KindCredit
}

// Category is one of the fixed spending categories a transaction can
// be classified into. The set is closed; unknown descriptions map to
// CategoryUncategorized.
type Category string

const (
	CategoryDining        Category = "dining"
	CategoryGroceries     Category = "groceries"
	CategoryTransport     Category = "transport"
	CategoryShopping      Category = "shopping"
	CategorySubscriptions Category = "subscriptions"
	CategoryUtilities     Category = "utilities"
	CategoryHealth        Category = "health"
	CategoryEntertainment Category = "entertainment"
	CategoryTravel        Category = "travel"
	CategoryEducation     Category = "education"
	CategoryInsurance     Category = "insurance"
	CategoryTransfers     Category = "transfers"
	CategoryUncategorized Category = "uncategorized"
)

// Label returns the display name for the category.
func (c Category) Label() string {
	switch c {
	case CategoryDining:
		return "Dining & Restaurants"
	case CategoryGroceries:
		return "Groceries"
	case CategoryTransport:
		return "Transportation"
	case CategoryShopping:
		return "Shopping"
	case CategorySubscriptions:
		return "Subscriptions"
	case CategoryUtilities:
		return "Utilities & Bills"
	case CategoryHealth:
		return "Health & Wellness"
	case CategoryEntertainment:
		return "Entertainment"
	case CategoryTravel:
		return "Travel & Hotels"
	case CategoryEducation:
		return "Education"
	case CategoryInsurance:
		return "Insurance"
	case CategoryTransfers:
		return "Transfers & Payments"
	case CategoryUncategorized:
		return "Other"
	default:
		return string(c)
	}
}

// Color returns the chart color for the category.
func (c Category) Color() string {
	switch c {
	case CategoryDining:
		return "#FF6B6B"
	case CategoryGroceries:
		return "#4ECDC4"
	case CategoryTransport:
		return "#45B7D1"
	case CategoryShopping:
		return "#96CEB4"
	case CategorySubscriptions:
		return "#A78BFA"
	case CategoryUtilities:
		return "#F9CA24"
	case CategoryHealth:
		return "#FF8A80"
	case CategoryEntertainment:
		return "#69DB7C"
	case CategoryTravel:
		return "#74B9FF"
	case CategoryEducation:
		return "#FD79A8"
	case CategoryInsurance:
		return "#FDCB6E"
	case CategoryTransfers:
		return "#81ECEC"
	case CategoryUncategorized:
		return "#636E72"
	default:
		return "#636E72"
	}
}

// Severity grades an insight for the dashboard.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityAlert    Severity = "alert"
	SeverityPositive Severity = "positive"
)

// Color returns the accent color used when rendering the severity.
func (s Severity) Color() string {
	switch s {
	case SeverityWarning:
		return "#F9CA24"
	case SeverityAlert:
		return "#FF6B6B"
	case SeverityPositive:
		return "#69DB7C"
	case SeverityInfo:
		return "#74B9FF"
	default:
		return "#74B9FF"
	}
}

// InsightType identifies which analytical rule produced an insight.
type InsightType string

const (
	InsightSpendingTrend     InsightType = "spending_trend"
	InsightTopCategory       InsightType = "top_category"
	InsightSubscriptionCreep InsightType = "subscription_creep"
	InsightSpendingSpikes    InsightType = "spending_spikes"
	InsightTopMerchants      InsightType = "top_merchants"
)

// Frequency labels how often a recurring group repeats.
// Only monthly detection is implemented.
type Frequency string

const (
	FrequencyMonthly Frequency = "monthly"
)
