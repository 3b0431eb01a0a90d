package core

import "strings"

// Polarity separates expense categories from income categories.
type Polarity int

const (
	Expense Polarity = iota
	Income
)

func (p Polarity) String() string {
	if p == Income {
		return "income"
	}
	return "expense"
}

// ParsePolarity accepts "expense" and "income". Empty means expense.
func ParsePolarity(s string) (Polarity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "expense":
		return Expense, nil
	case "income":
		return Income, nil
	}
	return Expense, invalid("type", "%q is neither expense nor income", s)
}

// Category is a category id. Valid ids come from the closed table of one
// polarity; Misc belongs to both.
type Category string

const Misc Category = "misc"

// CategoryInfo is the display metadata of a category.
type CategoryInfo struct {
	ID    Category `json:"id"`
	Label string   `json:"label"`
	Color string   `json:"color"`
	Group string   `json:"group"`
}

type categoryGroup struct {
	name  string
	items []CategoryInfo
}

var expenseGroups = []categoryGroup{
	{"Daily Essentials", []CategoryInfo{
		{ID: "food", Label: "Food & Dining", Color: "#FF6B6B"},
		{ID: "groceries", Label: "Groceries", Color: "#4ECDC4"},
		{ID: "transport", Label: "Transport", Color: "#45B7D1"},
		{ID: "fuel", Label: "Fuel", Color: "#F97316"},
	}},
	{"Bills & Utilities", []CategoryInfo{
		{ID: "utilities", Label: "Utilities", Color: "#FFD93D"},
		{ID: "rent", Label: "Rent & Housing", Color: "#FFEAA7"},
		{ID: "emi", Label: "EMI / Loan", Color: "#EF4444"},
		{ID: "insurance", Label: "Insurance", Color: "#A78BFA"},
		{ID: "subscriptions", Label: "Subscriptions", Color: "#8B5CF6"},
		{ID: "phone", Label: "Phone & Mobile", Color: "#06B6D4"},
		{ID: "internet", Label: "Internet", Color: "#3B82F6"},
	}},
	{"Lifestyle", []CategoryInfo{
		{ID: "entertainment", Label: "Entertainment", Color: "#EC4899"},
		{ID: "shopping", Label: "Shopping", Color: "#F472B6"},
		{ID: "travel", Label: "Travel", Color: "#14B8A6"},
		{ID: "dining", Label: "Restaurants & Cafe", Color: "#FB923C"},
	}},
	{"Health & Education", []CategoryInfo{
		{ID: "health", Label: "Health & Medical", Color: "#EF4444"},
		{ID: "fitness", Label: "Fitness & Gym", Color: "#10B981"},
		{ID: "education", Label: "Education", Color: "#6366F1"},
	}},
	{"Investments", []CategoryInfo{
		{ID: "sip", Label: "SIP", Color: "#A855F7"},
		{ID: "mutual_funds", Label: "Mutual Funds", Color: "#06B6D4"},
		{ID: "stocks", Label: "Stocks & Equity", Color: "#3B82F6"},
		{ID: "fixed_deposit", Label: "Fixed Deposit", Color: "#14B8A6"},
		{ID: "ppf", Label: "PPF", Color: "#8B5CF6"},
		{ID: "nps", Label: "NPS", Color: "#0EA5E9"},
		{ID: "gold", Label: "Gold", Color: "#FBBF24"},
		{ID: "crypto", Label: "Crypto", Color: "#F97316"},
		{ID: "real_estate", Label: "Real Estate", Color: "#22C55E"},
	}},
	{"Personal", []CategoryInfo{
		{ID: "personal", Label: "Personal Care", Color: "#D946EF"},
		{ID: "gifts", Label: "Gifts", Color: "#F43F5E"},
		{ID: "charity", Label: "Charity & Donations", Color: "#FB7185"},
		{ID: "family", Label: "Family & Kids", Color: "#E879F9"},
	}},
	{"Other", []CategoryInfo{
		{ID: "taxes", Label: "Taxes", Color: "#78716C"},
		{ID: "fees", Label: "Bank Fees & Charges", Color: "#A1A1AA"},
		{ID: Misc, Label: "Miscellaneous", Color: "#6B7280"},
	}},
}

var incomeGroups = []categoryGroup{
	{"Employment", []CategoryInfo{
		{ID: "salary", Label: "Salary", Color: "#22C55E"},
		{ID: "bonus", Label: "Bonus", Color: "#84CC16"},
		{ID: "freelance", Label: "Freelance", Color: "#10B981"},
		{ID: "business", Label: "Business Income", Color: "#14B8A6"},
		{ID: "commission", Label: "Commission", Color: "#06B6D4"},
	}},
	{"Investment Returns", []CategoryInfo{
		{ID: "dividends", Label: "Dividends", Color: "#0EA5E9"},
		{ID: "interest", Label: "Interest", Color: "#3B82F6"},
		{ID: "capital_gains", Label: "Capital Gains", Color: "#6366F1"},
		{ID: "rental", Label: "Rental Income", Color: "#8B5CF6"},
		{ID: "royalties", Label: "Royalties", Color: "#A855F7"},
	}},
	{"Other", []CategoryInfo{
		{ID: "refund", Label: "Refund", Color: "#F59E0B"},
		{ID: "cashback", Label: "Cashback & Rewards", Color: "#FBBF24"},
		{ID: "gift", Label: "Gift Received", Color: "#F472B6"},
		{ID: "lottery", Label: "Lottery & Winnings", Color: "#EC4899"},
		{ID: "settlements", Label: "Settlements from Friends", Color: "#22D3EE"},
		{ID: Misc, Label: "Miscellaneous", Color: "#6B7280"},
	}},
}

var categoryTables = func() [2]struct {
	ordered []CategoryInfo
	byID    map[Category]CategoryInfo
} {
	var tables [2]struct {
		ordered []CategoryInfo
		byID    map[Category]CategoryInfo
	}
	for p, groups := range [][]categoryGroup{expenseGroups, incomeGroups} {
		tables[p].byID = make(map[Category]CategoryInfo)
		for _, g := range groups {
			for _, c := range g.items {
				c.Group = g.name
				tables[p].ordered = append(tables[p].ordered, c)
				tables[p].byID[c.ID] = c
			}
		}
	}
	return tables
}()

// Categories lists the categories of a polarity in display order.
func Categories(p Polarity) []CategoryInfo {
	return append([]CategoryInfo(nil), categoryTables[p].ordered...)
}

// ParseCategory validates user input. Empty input selects Misc.
func ParseCategory(p Polarity, s string) (Category, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Misc, nil
	}
	c := Category(s)
	if _, ok := categoryTables[p].byID[c]; !ok {
		return "", invalid("category", "%q is not a known %s category", s, p)
	}
	return c, nil
}

// NormalizeCategory maps stored values onto the table, folding anything
// unknown into Misc.
func NormalizeCategory(p Polarity, s string) Category {
	c, err := ParseCategory(p, s)
	if err != nil {
		return Misc
	}
	return c
}

// Info returns the display metadata of c. Categories obtained from
// ParseCategory or NormalizeCategory for the same polarity always resolve.
func (c Category) Info(p Polarity) CategoryInfo {
	if info, ok := categoryTables[p].byID[c]; ok {
		return info
	}
	return categoryTables[p].byID[Misc]
}
