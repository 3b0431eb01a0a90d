package http

import (
	"time"

	"moneyboard/internal/core"
	"moneyboard/internal/services"

	"github.com/shopspring/decimal"
)

// Amounts travel as fixed two-decimal strings so clients never round.
func money(d decimal.Decimal) string { return d.StringFixed(2) }

type transactionJSON struct {
	Ref                 string           `json:"ref"`
	ID                  string           `json:"id"`
	Date                string           `json:"date"`
	Description         string           `json:"description"`
	Amount              string           `json:"amount"`
	Type                string           `json:"type"`
	Category            core.Category    `json:"category"`
	CategoryLabel       string           `json:"categoryLabel"`
	CategoryColor       string           `json:"categoryColor"`
	IsRecurring         bool             `json:"isRecurring"`
	IsVirtual           bool             `json:"isVirtual"`
	OccurrenceMonth     core.YearMonth   `json:"occurrenceMonth,omitzero"`
	RecurringStartMonth core.YearMonth   `json:"recurringStartMonth,omitzero"`
	ExcludedMonths      []core.YearMonth `json:"excludedMonths,omitempty"`
	Overdue             bool             `json:"overdue"`
}

func toTransactionJSON(tx core.Transaction, overdue bool) transactionJSON {
	p := tx.Polarity()
	info := tx.Category.Info(p)
	return transactionJSON{
		Ref:                 tx.Ref().String(),
		ID:                  tx.ID,
		Date:                tx.Date.Format(time.DateOnly),
		Description:         tx.Description,
		Amount:              money(tx.Amount),
		Type:                p.String(),
		Category:            info.ID,
		CategoryLabel:       info.Label,
		CategoryColor:       info.Color,
		IsRecurring:         tx.IsRecurring,
		IsVirtual:           tx.IsVirtual,
		OccurrenceMonth:     tx.OccurrenceMonth,
		RecurringStartMonth: tx.RecurringStartMonth,
		ExcludedMonths:      tx.ExcludedMonths,
		Overdue:             overdue,
	}
}

type monthViewJSON struct {
	Month        core.YearMonth    `json:"month"`
	Transactions []transactionJSON `json:"transactions"`
	Income       string            `json:"income"`
	Expenses     string            `json:"expenses"`
	Balance      string            `json:"balance"`
	Overdue      int               `json:"overdue"`
}

func toMonthViewJSON(v core.MonthView, overdue map[string]bool) monthViewJSON {
	out := monthViewJSON{
		Month:        v.Month,
		Transactions: make([]transactionJSON, 0, len(v.Transactions)),
		Income:       money(v.Income),
		Expenses:     money(v.Expenses),
		Balance:      money(v.Balance),
		Overdue:      len(overdue),
	}
	for _, tx := range v.Transactions {
		out.Transactions = append(out.Transactions, toTransactionJSON(tx, overdue[tx.Ref().String()]))
	}
	return out
}

type taskJSON struct {
	ID                  string          `json:"id"`
	Title               string          `json:"title"`
	Description         string          `json:"description,omitempty"`
	Amount              string          `json:"amount"`
	Category            core.Category   `json:"category"`
	CategoryLabel       string          `json:"categoryLabel"`
	Status              core.TaskStatus `json:"status"`
	Order               int             `json:"order"`
	Linked              bool            `json:"linked"`
	LinkedTransactionID string          `json:"linkedTransactionId,omitempty"`
	LinkedMonth         core.YearMonth  `json:"linkedMonth,omitzero"`
	DueDate             string          `json:"dueDate,omitempty"`
	AddedToCalendar     bool            `json:"addedToCalendar"`
}

func toTaskJSON(t core.Task) taskJSON {
	info := t.Category.Info(core.Expense)
	out := taskJSON{
		ID:                  t.ID,
		Title:               t.Title,
		Description:         t.Description,
		Amount:              money(t.Amount),
		Category:            info.ID,
		CategoryLabel:       info.Label,
		Status:              t.Status,
		Order:               t.Order,
		Linked:              t.IsLinked(),
		LinkedTransactionID: t.LinkedTransactionID,
		LinkedMonth:         t.LinkedMonth,
		AddedToCalendar:     t.AddedToCalendar,
	}
	if !t.DueDate.IsZero() {
		out.DueDate = t.DueDate.Format(time.DateOnly)
	}
	return out
}

type columnJSON struct {
	Status core.TaskStatus `json:"status"`
	Tasks  []taskJSON      `json:"tasks"`
}

type boardJSON struct {
	Month   core.YearMonth      `json:"month"`
	Sync    services.SyncResult `json:"sync"`
	Columns []columnJSON        `json:"columns"`
}

func toBoardJSON(b services.Board) boardJSON {
	out := boardJSON{Month: b.Month, Sync: b.Sync, Columns: make([]columnJSON, 0, len(b.Columns))}
	for _, c := range b.Columns {
		col := columnJSON{Status: c.Status, Tasks: make([]taskJSON, 0, len(c.Tasks))}
		for _, t := range c.Tasks {
			col.Tasks = append(col.Tasks, toTaskJSON(t))
		}
		out.Columns = append(out.Columns, col)
	}
	return out
}

type categoryTotalJSON struct {
	Category   core.Category `json:"category"`
	Label      string        `json:"label"`
	Color      string        `json:"color"`
	Amount     string        `json:"amount"`
	Percentage string        `json:"percentage"`
	Count      int           `json:"count"`
}

type insightsJSON struct {
	Month      core.YearMonth      `json:"month"`
	Type       string              `json:"type"`
	Total      string              `json:"total"`
	Count      int                 `json:"count"`
	Categories []categoryTotalJSON `json:"categories"`
}

func toInsightsJSON(in core.Insights) insightsJSON {
	out := insightsJSON{
		Month:      in.Month,
		Type:       in.Polarity.String(),
		Total:      money(in.Total),
		Count:      in.Count,
		Categories: make([]categoryTotalJSON, 0, len(in.Categories)),
	}
	for _, c := range in.Categories {
		out.Categories = append(out.Categories, categoryTotalJSON{
			Category:   c.Category,
			Label:      c.Label,
			Color:      c.Color,
			Amount:     money(c.Amount),
			Percentage: money(c.Percentage),
			Count:      c.Count,
		})
	}
	return out
}

// Request bodies. Pointer fields of the PATCH bodies distinguish absent
// from empty.

type createTransactionRequest struct {
	Date        string      `json:"date"`
	Description string      `json:"description"`
	Amount      amountParam `json:"amount"`
	Category    string      `json:"category"`
	IsRecurring bool        `json:"isRecurring"`
}

type updateTransactionRequest struct {
	Date        *string      `json:"date"`
	Description *string      `json:"description"`
	Amount      *amountParam `json:"amount"`
	Category    *string      `json:"category"`
	IsRecurring *bool        `json:"isRecurring"`
}

type createTaskRequest struct {
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Amount      amountParam `json:"amount"`
	Category    string      `json:"category"`
	Status      string      `json:"status"`
	DueDate     string      `json:"dueDate"`
}

type updateTaskRequest struct {
	Title       *string      `json:"title"`
	Description *string      `json:"description"`
	Amount      *amountParam `json:"amount"`
	Category    *string      `json:"category"`
	Status      *string      `json:"status"`
}

type moveTaskRequest struct {
	Status string `json:"status"`
	Index  int    `json:"index"`
}

type calendarRequest struct {
	Date     string `json:"date"`
	Category string `json:"category"`
}
