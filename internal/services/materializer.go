package services

import (
	"moneyboard/internal/core"
)

// Materialize builds the ledger of month from its plain transactions and
// every recurring template of the owner. Templates contribute one virtual
// instance unless the month is before their start or excluded.
func Materialize(month core.YearMonth, plain, templates []core.Transaction) core.MonthView {
	txs := make([]core.Transaction, 0, len(plain)+len(templates))
	for _, tx := range plain {
		if tx.IsRecurring {
			continue
		}
		txs = append(txs, tx.Clone())
	}
	for _, tpl := range templates {
		if v, ok := tpl.Occurrence(month); ok {
			txs = append(txs, v)
		}
	}
	return core.NewMonthView(month, txs)
}
