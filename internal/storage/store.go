// Package storage defines the document store the services run against and
// the batch operations it must apply atomically.
package storage

import (
	"context"
	"errors"
	"slices"
	"time"

	"moneyboard/internal/core"

	"github.com/shopspring/decimal"
)

// Store is scoped by owner on every call. Reads return fresh copies that
// callers may keep.
type Store interface {
	// ListMonthTransactions returns non-recurring transactions dated in
	// [from, to].
	ListMonthTransactions(ctx context.Context, ownerID string, from, to time.Time) ([]core.Transaction, error)
	ListRecurringTemplates(ctx context.Context, ownerID string) ([]core.Transaction, error)
	GetTransaction(ctx context.Context, ownerID, id string) (core.Transaction, error)

	// ListTasks returns the owner's tasks ordered by column, then order.
	ListTasks(ctx context.Context, ownerID string) ([]core.Task, error)
	GetTask(ctx context.Context, ownerID, id string) (core.Task, error)
	FindTasksByLink(ctx context.Context, ownerID, templateID string) ([]core.Task, error)

	// ListRecurringOwners returns every owner with at least one template.
	ListRecurringOwners(ctx context.Context) ([]string, error)

	// Apply commits ops as one unit: all of them or none.
	Apply(ctx context.Context, ops ...Op) error

	Close() error
}

type OpKind int

const (
	OpCreateTransaction OpKind = iota + 1
	OpUpdateTransaction
	OpDeleteTransaction
	OpCreateTask
	OpUpdateTask
	OpDeleteTask
)

func (k OpKind) String() string {
	switch k {
	case OpCreateTransaction:
		return "create_transaction"
	case OpUpdateTransaction:
		return "update_transaction"
	case OpDeleteTransaction:
		return "delete_transaction"
	case OpCreateTask:
		return "create_task"
	case OpUpdateTask:
		return "update_task"
	case OpDeleteTask:
		return "delete_task"
	}
	return "unknown"
}

// Op is one write of a batch. Build it with the constructors below.
type Op struct {
	Kind    OpKind
	OwnerID string
	ID      string

	Transaction core.Transaction
	TxPatch     TransactionPatch
	Task        core.Task
	TaskPatch   TaskPatch
}

func CreateTransaction(tx core.Transaction) Op {
	return Op{Kind: OpCreateTransaction, OwnerID: tx.OwnerID, ID: tx.ID, Transaction: tx.Clone()}
}

func UpdateTransaction(ownerID, id string, p TransactionPatch) Op {
	return Op{Kind: OpUpdateTransaction, OwnerID: ownerID, ID: id, TxPatch: p}
}

func DeleteTransaction(ownerID, id string) Op {
	return Op{Kind: OpDeleteTransaction, OwnerID: ownerID, ID: id}
}

func CreateTask(t core.Task) Op {
	return Op{Kind: OpCreateTask, OwnerID: t.OwnerID, ID: t.ID, Task: t}
}

func UpdateTask(ownerID, id string, p TaskPatch) Op {
	return Op{Kind: OpUpdateTask, OwnerID: ownerID, ID: id, TaskPatch: p}
}

func DeleteTask(ownerID, id string) Op {
	return Op{Kind: OpDeleteTask, OwnerID: ownerID, ID: id}
}

// TransactionPatch is a partial update. Nil fields are left alone.
// AddExcludedMonth and UpsertAmountChange merge into the stored arrays
// inside the store's transaction rather than replacing them.
type TransactionPatch struct {
	Date        *time.Time
	Description *string
	Amount      *decimal.Decimal
	Category    *core.Category
	IsRecurring *bool

	RecurringStartMonth *core.YearMonth
	// ClearRecurring drops the start month, exclusions and amount history.
	ClearRecurring bool

	AddExcludedMonth   *core.YearMonth
	UpsertAmountChange *core.AmountChange
}

// ApplyTo mutates tx. Stores evaluate it against the row they read inside
// the batch.
func (p TransactionPatch) ApplyTo(tx *core.Transaction) {
	if p.Date != nil {
		tx.Date = *p.Date
	}
	if p.Description != nil {
		tx.Description = *p.Description
	}
	if p.Amount != nil {
		tx.Amount = *p.Amount
	}
	if p.Category != nil {
		tx.Category = *p.Category
	}
	if p.IsRecurring != nil {
		tx.IsRecurring = *p.IsRecurring
	}
	if p.ClearRecurring {
		tx.RecurringStartMonth = core.YearMonth{}
		tx.ExcludedMonths = nil
		tx.AmountHistory = nil
	}
	if p.RecurringStartMonth != nil {
		tx.RecurringStartMonth = *p.RecurringStartMonth
	}
	if p.AddExcludedMonth != nil {
		tx.ExcludedMonths = core.AddMonth(tx.ExcludedMonths, *p.AddExcludedMonth)
	}
	if p.UpsertAmountChange != nil {
		tx.AmountHistory = core.UpsertAmountChange(tx.AmountHistory, *p.UpsertAmountChange)
	}
}

// TaskPatch is a partial task update. Nil fields are left alone.
type TaskPatch struct {
	Title           *string
	Description     *string
	Amount          *decimal.Decimal
	Category        *core.Category
	Status          *core.TaskStatus
	Order           *int
	LinkedMonth     *core.YearMonth
	DueDate         *time.Time
	AddedToCalendar *bool
}

func (p TaskPatch) ApplyTo(t *core.Task) {
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Amount != nil {
		t.Amount = *p.Amount
	}
	if p.Category != nil {
		t.Category = *p.Category
	}
	if p.Status != nil {
		t.Status = *p.Status
	}
	if p.Order != nil {
		t.Order = *p.Order
	}
	if p.LinkedMonth != nil {
		t.LinkedMonth = *p.LinkedMonth
	}
	if p.DueDate != nil {
		t.DueDate = *p.DueDate
	}
	if p.AddedToCalendar != nil {
		t.AddedToCalendar = *p.AddedToCalendar
	}
}

// SortTasks orders tasks by board column, then order, then creation time.
func SortTasks(tasks []core.Task) {
	slices.SortStableFunc(tasks, func(a, b core.Task) int {
		ca, cb := slices.Index(core.TaskStatuses, a.Status), slices.Index(core.TaskStatuses, b.Status)
		if ca != cb {
			return ca - cb
		}
		if a.Order != b.Order {
			return a.Order - b.Order
		}
		return a.CreatedAt.Compare(b.CreatedAt)
	})
}

// Ptr returns a pointer to v, for building patches.
func Ptr[T any](v T) *T { return &v }

var (
	// ErrDuplicate is returned when a create collides with an existing id.
	ErrDuplicate = errors.New("duplicate document")
)
