package core

import (
	"cmp"
	"slices"

	"github.com/shopspring/decimal"
)

// MonthView is the materialized ledger of one month, real and virtual
// transactions alike, sorted most recent first.
type MonthView struct {
	Month        YearMonth
	Transactions []Transaction
	Balance      decimal.Decimal
	Income       decimal.Decimal
	Expenses     decimal.Decimal
}

// NewMonthView sorts txs by date descending and computes the aggregates.
// Ties break by ref so the order is stable across reads.
func NewMonthView(m YearMonth, txs []Transaction) MonthView {
	slices.SortFunc(txs, func(a, b Transaction) int {
		if c := b.Date.Compare(a.Date); c != 0 {
			return c
		}
		return cmp.Compare(a.Ref().String(), b.Ref().String())
	})
	v := MonthView{Month: m, Transactions: txs}
	for _, tx := range txs {
		v.Balance = v.Balance.Add(tx.Amount)
		if tx.Amount.IsPositive() {
			v.Income = v.Income.Add(tx.Amount)
		} else {
			v.Expenses = v.Expenses.Add(tx.Amount.Abs())
		}
	}
	return v
}

// RecurringExpenses returns the recurring expenses of the view.
func (v MonthView) RecurringExpenses() []Transaction {
	var out []Transaction
	for _, tx := range v.Transactions {
		if tx.IsRecurringExpense() {
			out = append(out, tx)
		}
	}
	return out
}

// CategoryTotal aggregates one category of one polarity.
type CategoryTotal struct {
	Category   Category
	Label      string
	Color      string
	Amount     decimal.Decimal
	Percentage decimal.Decimal
	Count      int
}

// Insights is the per-category breakdown of a month for one polarity.
type Insights struct {
	Month      YearMonth
	Polarity   Polarity
	Total      decimal.Decimal
	Count      int
	Categories []CategoryTotal
}
