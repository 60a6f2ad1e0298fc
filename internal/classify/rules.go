package classify

import "github.com/boddenberg/spendlens-go/internal/domain"

// Rule maps a set of description keywords to a category.
type Rule struct {
	Category domain.Category
	Keywords []string
}

// rules is the hand-curated keyword table. Declaration order matters:
// matching is first-match-wins, so earlier rules shadow later ones.
// Matching is substring containment; false positives on substrings are an
// accepted tradeoff of the heuristic.
var rules = []Rule{
	{
		Category: domain.CategoryDining,
		Keywords: []string{"restaurant", "cafe", "coffee", "starbucks", "mcdonald", "burger", "pizza", "sushi", "doordash", "grubhub", "uber eats", "ubereats", "chipotle", "subway", "wendy", "taco bell", "dunkin", "panera", "chick-fil-a", "panda express", "dine", "eatery", "bistro", "grill", "bakery", "deli"},
	},
	{
		Category: domain.CategoryGroceries,
		Keywords: []string{"grocery", "whole foods", "trader joe", "kroger", "safeway", "costco", "walmart", "target", "aldi", "publix", "wegmans", "heb", "market", "fresh", "food lion", "instacart", "sam's club"},
	},
	{
		Category: domain.CategoryTransport,
		Keywords: []string{"uber", "lyft", "gas", "fuel", "shell", "chevron", "exxon", "bp", "parking", "toll", "transit", "metro", "train", "airline", "flight", "delta", "united", "american air", "southwest", "jetblue", "amtrak"},
	},
	{
		Category: domain.CategoryShopping,
		Keywords: []string{"amazon", "ebay", "etsy", "nike", "adidas", "zara", "h&m", "gap", "nordstrom", "macy", "best buy", "apple store", "ikea", "home depot", "lowes", "wayfair", "clothing", "apparel", "shoe"},
	},
	{
		Category: domain.CategorySubscriptions,
		Keywords: []string{"netflix", "spotify", "hulu", "disney+", "hbo", "apple music", "youtube premium", "adobe", "microsoft 365", "dropbox", "icloud", "notion", "figma", "github", "aws", "heroku", "vercel", "membership", "subscription", "monthly"},
	},
	{
		Category: domain.CategoryUtilities,
		Keywords: []string{"electric", "water", "gas bill", "internet", "comcast", "verizon", "at&t", "t-mobile", "sprint", "phone bill", "utility", "power", "energy", "sewage"},
	},
	{
		Category: domain.CategoryHealth,
		Keywords: []string{"pharmacy", "cvs", "walgreens", "doctor", "hospital", "medical", "dental", "vision", "gym", "fitness", "yoga", "peloton", "health", "therapy", "clinic", "urgent care"},
	},
	{
		Category: domain.CategoryEntertainment,
		Keywords: []string{"movie", "cinema", "theater", "concert", "ticket", "game", "steam", "playstation", "xbox", "nintendo", "amusement", "museum", "bowling", "arcade", "event"},
	},
	{
		Category: domain.CategoryTravel,
		Keywords: []string{"hotel", "airbnb", "booking.com", "expedia", "marriott", "hilton", "hyatt", "resort", "vacation", "rental car", "hertz", "enterprise", "avis"},
	},
	{
		Category: domain.CategoryEducation,
		Keywords: []string{"tuition", "university", "college", "school", "course", "udemy", "coursera", "textbook", "education", "learning", "student"},
	},
	{
		Category: domain.CategoryInsurance,
		Keywords: []string{"insurance", "geico", "state farm", "allstate", "progressive", "premium", "policy"},
	},
	{
		Category: domain.CategoryTransfers,
		Keywords: []string{"venmo", "zelle", "paypal", "cashapp", "cash app", "transfer", "payment", "wire"},
	},
}
