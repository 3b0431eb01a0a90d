package core

import (
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

const (
	MaxDescriptionLen     = 200
	MaxTitleLen           = 200
	MaxTaskDescriptionLen = 500
)

const (
	TaskTodo       TaskStatus = "todo"
	TaskInProgress TaskStatus = "in-progress"
	TaskDone       TaskStatus = "done"
)

type (
	TaskStatus string

	// AmountChange overrides a template's amount from EffectiveFrom onward,
	// until a later change supersedes it.
	AmountChange struct {
		Amount        decimal.Decimal `json:"amount"`
		EffectiveFrom YearMonth       `json:"effectiveFrom"`
	}

	// Transaction is either a plain entry or, when IsRecurring is set, a
	// template repeating every month from its start month. Virtual instances
	// are projections of a template onto one month and are never stored.
	Transaction struct {
		ID          string
		OwnerID     string
		Date        time.Time
		Description string
		Amount      decimal.Decimal
		Category    Category

		IsRecurring         bool
		RecurringStartMonth YearMonth
		ExcludedMonths      []YearMonth
		AmountHistory       []AmountChange

		CreatedAt time.Time
		UpdatedAt time.Time

		// Set only on virtual instances. ID stays the template id.
		IsVirtual       bool
		OccurrenceMonth YearMonth
		Anchor          time.Time
	}

	// Task is a kanban card. Linked tasks mirror one recurring expense and
	// are owned by the synchronizer.
	Task struct {
		ID          string
		OwnerID     string
		Title       string
		Description string
		Amount      decimal.Decimal
		Category    Category
		Status      TaskStatus
		Order       int

		LinkedTransactionID string
		LinkedMonth         YearMonth
		DueDate             time.Time
		AddedToCalendar     bool

		CreatedAt time.Time
		UpdatedAt time.Time
	}
)

// TaskStatuses lists the board columns in display order.
var TaskStatuses = []TaskStatus{TaskTodo, TaskInProgress, TaskDone}

func ParseTaskStatus(s string) (TaskStatus, error) {
	st := TaskStatus(strings.TrimSpace(s))
	if !slices.Contains(TaskStatuses, st) {
		return "", invalid("status", "%q is not a task status", s)
	}
	return st, nil
}

// CleanText trims s and enforces 1..max characters when required, or
// 0..max otherwise.
func CleanText(field, s string, max int, required bool) (string, error) {
	s = strings.TrimSpace(s)
	if required && s == "" {
		switch field {
		case "description":
			return "", ErrEmptyDescription
		case "title":
			return "", ErrEmptyTitle
		}
		return "", invalid(field, "%s is required", field)
	}
	if utf8.RuneCountInString(s) > max {
		return "", invalid(field, "%s too long (max %d characters)", field, max)
	}
	return s, nil
}

// Polarity is Income for positive amounts and Expense otherwise.
func (t Transaction) Polarity() Polarity {
	if t.Amount.IsPositive() {
		return Income
	}
	return Expense
}

func (t Transaction) IsRecurringExpense() bool {
	return t.IsRecurring && t.Amount.IsNegative()
}

// StartMonth is the first month a template materializes in.
func (t Transaction) StartMonth() YearMonth {
	if !t.RecurringStartMonth.IsZero() {
		return t.RecurringStartMonth
	}
	if t.IsVirtual && !t.Anchor.IsZero() {
		return YearMonthOf(t.Anchor)
	}
	return YearMonthOf(t.Date)
}

func (t Transaction) IsExcluded(m YearMonth) bool {
	return slices.Contains(t.ExcludedMonths, m)
}

// EffectiveAmount resolves the amount history for month m.
func (t Transaction) EffectiveAmount(m YearMonth) decimal.Decimal {
	return ResolveAmount(t.Amount, t.AmountHistory, m)
}

// ResolveAmount returns the amount of the latest change effective at or
// before m, or base when none applies.
func ResolveAmount(base decimal.Decimal, history []AmountChange, m YearMonth) decimal.Decimal {
	sorted := slices.Clone(history)
	slices.SortStableFunc(sorted, func(a, b AmountChange) int {
		return b.EffectiveFrom.Compare(a.EffectiveFrom)
	})
	for _, h := range sorted {
		if !h.EffectiveFrom.After(m) {
			return h.Amount
		}
	}
	return base
}

// UpsertAmountChange returns history with the entry for c.EffectiveFrom
// replaced by c, or c appended when no entry exists for that month.
func UpsertAmountChange(history []AmountChange, c AmountChange) []AmountChange {
	out := make([]AmountChange, 0, len(history)+1)
	for _, h := range history {
		if h.EffectiveFrom != c.EffectiveFrom {
			out = append(out, h)
		}
	}
	return append(out, c)
}

// AddMonth returns months with m added unless already present.
func AddMonth(months []YearMonth, m YearMonth) []YearMonth {
	if slices.Contains(months, m) {
		return slices.Clone(months)
	}
	return append(slices.Clone(months), m)
}

// Occurrence projects a template onto month m. It reports false when the
// template is not active in m: before its start month or excluded.
func (t Transaction) Occurrence(m YearMonth) (Transaction, bool) {
	if !t.IsRecurring || m.Before(t.StartMonth()) || t.IsExcluded(m) {
		return Transaction{}, false
	}
	v := t.Clone()
	v.IsVirtual = true
	v.OccurrenceMonth = m
	v.Anchor = t.Date
	v.Date = OccurrenceDate(t.Date, m)
	v.Amount = t.EffectiveAmount(m)
	return v, true
}

// Ref is the identity of the row as seen by callers.
func (t Transaction) Ref() TxRef {
	if t.IsVirtual {
		return TxRef{ID: t.ID, Month: t.OccurrenceMonth}
	}
	return TxRef{ID: t.ID}
}

// AnchorDate is the template's stored date, for virtual instances too.
func (t Transaction) AnchorDate() time.Time {
	if t.IsVirtual {
		return t.Anchor
	}
	return t.Date
}

// Clone copies t including its slices.
func (t Transaction) Clone() Transaction {
	t.ExcludedMonths = slices.Clone(t.ExcludedMonths)
	t.AmountHistory = slices.Clone(t.AmountHistory)
	return t
}

// Validate checks the fields a caller can set. Category must already be
// parsed for the amount's polarity.
func (t Transaction) Validate() error {
	if t.Date.IsZero() {
		return invalid("date", "date is required")
	}
	if _, err := CleanText("description", t.Description, MaxDescriptionLen, true); err != nil {
		return err
	}
	if err := ValidateAmount(t.Amount); err != nil {
		return err
	}
	if _, err := ParseCategory(t.Polarity(), string(t.Category)); err != nil {
		return err
	}
	for _, h := range t.AmountHistory {
		if err := ValidateAmount(h.Amount); err != nil {
			return err
		}
	}
	return nil
}

func (t Task) IsLinked() bool {
	return t.LinkedTransactionID != ""
}

func (t Task) Validate() error {
	if _, err := CleanText("title", t.Title, MaxTitleLen, true); err != nil {
		return err
	}
	if _, err := CleanText("description", t.Description, MaxTaskDescriptionLen, false); err != nil {
		return err
	}
	if err := ValidatePositiveAmount(t.Amount); err != nil {
		return err
	}
	if _, err := ParseTaskStatus(string(t.Status)); err != nil {
		return err
	}
	if _, err := ParseCategory(Expense, string(t.Category)); err != nil {
		return err
	}
	return nil
}
