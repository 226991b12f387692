/**
 * @description
 * This package maps a transaction's merchant text and optional merchant
 * category code (MCC) to a spending category label. It is a pure, total
 * function: identical inputs always produce identical outputs and no input
 * ever fails.
 *
 * Rule evaluation order is significant and fixed. MCC rules are checked
 * before merchant-name substring rules, and within each table the first
 * matching rule wins. Substring matching is case-insensitive.
 */

package classify

import "strings"

// Uncategorized is the sentinel label returned when no rule matches.
const Uncategorized = "Uncategorized"

// Category labels used by the rule tables below. Manual expense entry accepts
// these as well as free-form labels; the classifier only ever emits these.
const (
	CategoryEntertainment = "Entertainment"
	CategoryFoodAndDrink  = "Food & Drink"
	CategoryGroceries     = "Groceries"
	CategoryShopping      = "Shopping"
	CategoryTransport     = "Transport"
	CategoryTravel        = "Travel"
	CategoryBills         = "Bills & Utilities"
	CategoryHealth        = "Health"
	CategoryIncome        = "Income"
)

type mccRule struct {
	low, high int // inclusive MCC range; low == high for a single code
	category  string
}

type keywordRule struct {
	substring string // lower-cased
	category  string
}

// mccRules are checked first. Ranges follow the ISO 18245 groupings that the
// aggregation providers emit.
var mccRules = []mccRule{
	{3000, 3299, CategoryTravel},    // airlines
	{3501, 3999, CategoryTravel},    // hotels
	{4111, 4111, CategoryTransport}, // local commuter transport
	{4121, 4121, CategoryTransport}, // taxis and rideshare
	{4131, 4131, CategoryTransport}, // bus lines
	{4899, 4899, CategoryBills},     // cable and streaming subscriptions
	{4900, 4900, CategoryBills},     // utilities
	{5411, 5411, CategoryGroceries}, // grocery stores
	{5812, 5814, CategoryFoodAndDrink},
	{5912, 5912, CategoryHealth},    // pharmacies
	{5942, 5942, CategoryShopping},  // book stores
	{5999, 5999, CategoryShopping},  // misc retail
	{7832, 7832, CategoryEntertainment}, // cinemas
	{7922, 7999, CategoryEntertainment}, // theatres, recreation
	{8011, 8099, CategoryHealth},    // medical services
}

// keywordRules are checked in order after the MCC table, so more specific
// names must come before their prefixes ("uber eats" before "uber").
var keywordRules = []keywordRule{
	{"uber eats", CategoryFoodAndDrink},
	{"doordash", CategoryFoodAndDrink},
	{"deliveroo", CategoryFoodAndDrink},
	{"coffee", CategoryFoodAndDrink},
	{"restaurant", CategoryFoodAndDrink},
	{"cafe", CategoryFoodAndDrink},
	{"mcdonald", CategoryFoodAndDrink},
	{"starbucks", CategoryFoodAndDrink},
	{"uber", CategoryTransport},
	{"lyft", CategoryTransport},
	{"bolt", CategoryTransport},
	{"shell", CategoryTransport},
	{"parking", CategoryTransport},
	{"spotify", CategoryEntertainment},
	{"netflix", CategoryEntertainment},
	{"cinema", CategoryEntertainment},
	{"steam", CategoryEntertainment},
	{"airbnb", CategoryTravel},
	{"booking.com", CategoryTravel},
	{"hotel", CategoryTravel},
	{"airline", CategoryTravel},
	{"grocery", CategoryGroceries},
	{"supermarket", CategoryGroceries},
	{"market", CategoryGroceries},
	{"pharmacy", CategoryHealth},
	{"gym", CategoryHealth},
	{"electric", CategoryBills},
	{"water bill", CategoryBills},
	{"internet", CategoryBills},
	{"insurance", CategoryBills},
	{"rent", CategoryBills},
	{"amazon", CategoryShopping},
	{"shopping", CategoryShopping},
	{"store", CategoryShopping},
	{"payroll", CategoryIncome},
	{"salary", CategoryIncome},
	{"shop", CategoryShopping},
}

// Classify returns the category label for a transaction. mcc may be nil when
// the provider did not supply a merchant category code.
func Classify(merchantText string, mcc *int) string {
	if mcc != nil {
		for _, rule := range mccRules {
			if *mcc >= rule.low && *mcc <= rule.high {
				return rule.category
			}
		}
	}

	text := strings.ToLower(merchantText)
	for _, rule := range keywordRules {
		if strings.Contains(text, rule.substring) {
			return rule.category
		}
	}

	return Uncategorized
}
