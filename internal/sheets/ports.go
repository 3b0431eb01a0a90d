package sheets

import (
	"context"
	"time"

	"moneyboard/internal/core"
)

// Ports for outbound adapters.
type (
	// LedgerExporter writes one owner's month ledger to an external
	// spreadsheet, replacing whatever the month's tab held before.
	LedgerExporter interface {
		ExportMonth(ctx context.Context, owner string, view core.MonthView) (ref string, err error)
	}
)

// TabName is the tab holding owner's ledger for m.
func TabName(owner string, m core.YearMonth) string {
	return owner + " " + m.String()
}

// Header is the first row of every exported tab.
var Header = []any{"Date", "Description", "Category", "Amount", "Recurring", "Ref"}

// Rows renders view as a header, one row per transaction in view order, a
// blank separator and the month totals.
func Rows(view core.MonthView) [][]any {
	rows := make([][]any, 0, len(view.Transactions)+5)
	rows = append(rows, Header)
	for _, tx := range view.Transactions {
		recurring := ""
		if tx.IsRecurring {
			recurring = "yes"
		}
		rows = append(rows, []any{
			tx.Date.Format(time.DateOnly),
			tx.Description,
			tx.Category.Info(tx.Polarity()).Label,
			tx.Amount.StringFixed(2),
			recurring,
			tx.Ref().String(),
		})
	}
	rows = append(rows,
		[]any{},
		[]any{"", "Income", "", view.Income.StringFixed(2)},
		[]any{"", "Expenses", "", view.Expenses.Neg().StringFixed(2)},
		[]any{"", "Balance", "", view.Balance.StringFixed(2)},
	)
	return rows
}
