package firestore

import (
	"time"

	"moneyboard/internal/core"

	"github.com/shopspring/decimal"
)

// Document shapes keep the field names the web client has always written.

type amountChangeDoc struct {
	Amount        float64 `firestore:"amount"`
	EffectiveFrom string  `firestore:"effectiveFrom"`
}

type transactionDoc struct {
	UserID              string            `firestore:"userId"`
	Date                time.Time         `firestore:"date"`
	Description         string            `firestore:"description"`
	Amount              float64           `firestore:"amount"`
	Category            string            `firestore:"category,omitempty"`
	IsRecurring         bool              `firestore:"isRecurring"`
	RecurringStartMonth string            `firestore:"recurringStartMonth,omitempty"`
	ExcludedMonths      []string          `firestore:"excludedMonths,omitempty"`
	AmountHistory       []amountChangeDoc `firestore:"amountHistory,omitempty"`
	CreatedAt           time.Time         `firestore:"createdAt"`
	UpdatedAt           time.Time         `firestore:"updatedAt"`
}

type taskDoc struct {
	UserID              string    `firestore:"userId"`
	Title               string    `firestore:"title"`
	Description         string    `firestore:"description,omitempty"`
	Amount              float64   `firestore:"amount"`
	Category            string    `firestore:"category,omitempty"`
	Status              string    `firestore:"status"`
	Order               int       `firestore:"order"`
	LinkedTransactionID string    `firestore:"linkedTransactionId,omitempty"`
	LinkedMonth         string    `firestore:"linkedMonth,omitempty"`
	DueDate             time.Time `firestore:"dueDate,omitempty"`
	AddedToCalendar     bool      `firestore:"addedToCalendar,omitempty"`
	CreatedAt           time.Time `firestore:"createdAt"`
	UpdatedAt           time.Time `firestore:"updatedAt"`
}

func fromAmount(d decimal.Decimal) float64 { return d.InexactFloat64() }

func toAmount(f float64) decimal.Decimal { return decimal.NewFromFloat(f).Round(2) }

func months(ms []core.YearMonth) []string {
	if len(ms) == 0 {
		return nil
	}
	out := make([]string, len(ms))
	for i, m := range ms {
		out[i] = m.String()
	}
	return out
}

func history(h []core.AmountChange) []amountChangeDoc {
	if len(h) == 0 {
		return nil
	}
	out := make([]amountChangeDoc, len(h))
	for i, c := range h {
		out[i] = amountChangeDoc{Amount: fromAmount(c.Amount), EffectiveFrom: c.EffectiveFrom.String()}
	}
	return out
}

func encodeTransaction(tx core.Transaction) transactionDoc {
	return transactionDoc{
		UserID:              tx.OwnerID,
		Date:                tx.Date,
		Description:         tx.Description,
		Amount:              fromAmount(tx.Amount),
		Category:            string(tx.Category),
		IsRecurring:         tx.IsRecurring,
		RecurringStartMonth: tx.RecurringStartMonth.String(),
		ExcludedMonths:      months(tx.ExcludedMonths),
		AmountHistory:       history(tx.AmountHistory),
		CreatedAt:           tx.CreatedAt,
		UpdatedAt:           tx.UpdatedAt,
	}
}

// decodeTransaction skips malformed months rather than failing the read;
// older clients wrote free-form values.
func decodeTransaction(id string, d transactionDoc) core.Transaction {
	tx := core.Transaction{
		ID:          id,
		OwnerID:     d.UserID,
		Date:        d.Date,
		Description: d.Description,
		Amount:      toAmount(d.Amount),
		IsRecurring: d.IsRecurring,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
	tx.Category = core.NormalizeCategory(tx.Polarity(), d.Category)
	if m, err := core.ParseYearMonth(d.RecurringStartMonth); err == nil {
		tx.RecurringStartMonth = m
	}
	for _, s := range d.ExcludedMonths {
		if m, err := core.ParseYearMonth(s); err == nil {
			tx.ExcludedMonths = core.AddMonth(tx.ExcludedMonths, m)
		}
	}
	for _, h := range d.AmountHistory {
		if m, err := core.ParseYearMonth(h.EffectiveFrom); err == nil {
			tx.AmountHistory = core.UpsertAmountChange(tx.AmountHistory, core.AmountChange{
				Amount:        toAmount(h.Amount),
				EffectiveFrom: m,
			})
		}
	}
	return tx
}

func encodeTask(t core.Task) taskDoc {
	return taskDoc{
		UserID:              t.OwnerID,
		Title:               t.Title,
		Description:         t.Description,
		Amount:              fromAmount(t.Amount),
		Category:            string(t.Category),
		Status:              string(t.Status),
		Order:               t.Order,
		LinkedTransactionID: t.LinkedTransactionID,
		LinkedMonth:         t.LinkedMonth.String(),
		DueDate:             t.DueDate,
		AddedToCalendar:     t.AddedToCalendar,
		CreatedAt:           t.CreatedAt,
		UpdatedAt:           t.UpdatedAt,
	}
}

func decodeTask(id string, d taskDoc) core.Task {
	t := core.Task{
		ID:                  id,
		OwnerID:             d.UserID,
		Title:               d.Title,
		Description:         d.Description,
		Amount:              toAmount(d.Amount),
		Category:            core.NormalizeCategory(core.Expense, d.Category),
		Status:              core.TaskStatus(d.Status),
		Order:               d.Order,
		LinkedTransactionID: d.LinkedTransactionID,
		DueDate:             d.DueDate,
		AddedToCalendar:     d.AddedToCalendar,
		CreatedAt:           d.CreatedAt,
		UpdatedAt:           d.UpdatedAt,
	}
	if m, err := core.ParseYearMonth(d.LinkedMonth); err == nil {
		t.LinkedMonth = m
	}
	if _, err := core.ParseTaskStatus(d.Status); err != nil {
		t.Status = core.TaskTodo
	}
	return t
}
