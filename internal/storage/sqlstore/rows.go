package sqlstore

import (
	"encoding/json"
	"fmt"
	"time"

	"moneyboard/internal/core"
)

type scanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row scanner) (core.Transaction, error) {
	var (
		tx                           core.Transaction
		dateMS, createdMS, updatedMS int64
		category, startMonth         string
		excludedJSON, historyJSON    []byte
	)
	err := row.Scan(&tx.ID, &tx.OwnerID, &dateMS, &tx.Description, &tx.Amount, &category,
		&tx.IsRecurring, &startMonth, &excludedJSON, &historyJSON, &createdMS, &updatedMS)
	if err != nil {
		return core.Transaction{}, err
	}
	tx.Date = fromMillis(dateMS)
	tx.CreatedAt = fromMillis(createdMS)
	tx.UpdatedAt = fromMillis(updatedMS)
	tx.Category = core.NormalizeCategory(tx.Polarity(), category)
	if err := tx.RecurringStartMonth.UnmarshalText([]byte(startMonth)); err != nil {
		return core.Transaction{}, fmt.Errorf("transaction %s start month: %w", tx.ID, err)
	}
	if err := unmarshalList(excludedJSON, &tx.ExcludedMonths); err != nil {
		return core.Transaction{}, fmt.Errorf("transaction %s excluded months: %w", tx.ID, err)
	}
	if err := unmarshalList(historyJSON, &tx.AmountHistory); err != nil {
		return core.Transaction{}, fmt.Errorf("transaction %s amount history: %w", tx.ID, err)
	}
	return tx, nil
}

func scanTask(row scanner) (core.Task, error) {
	var (
		t                             core.Task
		status, category, linkedMonth string
		dueMS, createdMS, updatedMS   int64
	)
	err := row.Scan(&t.ID, &t.OwnerID, &t.Title, &t.Description, &t.Amount, &category, &status,
		&t.Order, &t.LinkedTransactionID, &linkedMonth, &dueMS, &t.AddedToCalendar, &createdMS, &updatedMS)
	if err != nil {
		return core.Task{}, err
	}
	t.Status = core.TaskStatus(status)
	t.Category = core.NormalizeCategory(core.Expense, category)
	if err := t.LinkedMonth.UnmarshalText([]byte(linkedMonth)); err != nil {
		return core.Task{}, fmt.Errorf("task %s linked month: %w", t.ID, err)
	}
	if dueMS != 0 {
		t.DueDate = fromMillis(dueMS)
	}
	t.CreatedAt = fromMillis(createdMS)
	t.UpdatedAt = fromMillis(updatedMS)
	return t, nil
}

// transactionArgs lists the values of txColumns in order.
func transactionArgs(tx core.Transaction) ([]any, error) {
	excluded, err := marshalList(tx.ExcludedMonths)
	if err != nil {
		return nil, err
	}
	history, err := marshalList(tx.AmountHistory)
	if err != nil {
		return nil, err
	}
	return []any{
		tx.ID, tx.OwnerID, tx.Date.UnixMilli(), tx.Description, tx.Amount.String(), string(tx.Category),
		tx.IsRecurring, tx.RecurringStartMonth.String(), excluded, history,
		tx.CreatedAt.UnixMilli(), tx.UpdatedAt.UnixMilli(),
	}, nil
}

// taskArgs lists the values of taskColumns in order.
func taskArgs(t core.Task) []any {
	var due int64
	if !t.DueDate.IsZero() {
		due = t.DueDate.UnixMilli()
	}
	return []any{
		t.ID, t.OwnerID, t.Title, t.Description, t.Amount.String(), string(t.Category), string(t.Status),
		t.Order, t.LinkedTransactionID, t.LinkedMonth.String(), due, t.AddedToCalendar,
		t.CreatedAt.UnixMilli(), t.UpdatedAt.UnixMilli(),
	}
}

func marshalList[T any](v []T) (string, error) {
	if len(v) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func unmarshalList[T any](b []byte, dst *[]T) error {
	if len(b) == 0 {
		return nil
	}
	var out []T
	if err := json.Unmarshal(b, &out); err != nil {
		return err
	}
	if len(out) > 0 {
		*dst = out
	}
	return nil
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
