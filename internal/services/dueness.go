package services

import (
	"time"

	"moneyboard/internal/core"
)

// IsOverdue reports whether a recurring expense is past its day and its
// bill task for that month is missing or not done. Plain entries and
// income are never overdue.
func IsOverdue(tx core.Transaction, tasks []core.Task, now time.Time) bool {
	if !tx.IsRecurringExpense() {
		return false
	}
	n := now.In(tx.Date.Location())
	startOfToday := time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, n.Location())
	if !tx.Date.Before(startOfToday) {
		return false
	}
	month := tx.OccurrenceMonth
	if !tx.IsVirtual {
		month = core.YearMonthOf(tx.Date)
	}
	for _, task := range tasks {
		if task.LinkedTransactionID == tx.ID && task.LinkedMonth == month {
			return task.Status != core.TaskDone
		}
	}
	return true
}

// OverdueSet maps the ref of every overdue transaction to true.
func OverdueSet(txs []core.Transaction, tasks []core.Task, now time.Time) map[string]bool {
	out := make(map[string]bool)
	for _, tx := range txs {
		if IsOverdue(tx, tasks, now) {
			out[tx.Ref().String()] = true
		}
	}
	return out
}
