package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"moneyboard/internal/core"
	"moneyboard/internal/log"
	"moneyboard/internal/storage"

	"github.com/google/uuid"
)

// SyncResult counts the writes of one synchronizer run.
type SyncResult struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Removed int `json:"removed"`
}

func (r SyncResult) Changed() bool {
	return r.Created+r.Updated+r.Removed > 0
}

// TaskSynchronizer keeps exactly one bill task per recurring expense.
type TaskSynchronizer struct {
	store storage.Store
}

func NewTaskSynchronizer(store storage.Store) *TaskSynchronizer {
	return &TaskSynchronizer{store: store}
}

var linkedTaskNamespace = uuid.MustParse("6f1c7c52-3f0e-4b7a-9d86-2a1e5b4f8c11")

// LinkedTaskID is the id of the bill task for an owner's template. Every
// syncer derives the same id, so concurrent creates collide in the store
// instead of leaving two tasks behind.
func LinkedTaskID(owner, templateID string) string {
	return uuid.NewSHA1(linkedTaskNamespace, []byte(owner+"/"+templateID)).String()
}

// Sync reconciles the owner's linked tasks with the recurring expenses among
// instances for month. Tasks are created on first sight, reset to todo when
// the month rolls over and follow mid-month amount changes. Extra tasks for
// the same template are deleted. All writes go in one batch; nothing is
// written when nothing changed. A batch that loses a create race to another
// syncer is planned again from a fresh read.
func (s *TaskSynchronizer) Sync(ctx context.Context, owner string, month core.YearMonth, instances []core.Transaction) (SyncResult, error) {
	var (
		res SyncResult
		err error
	)
	for attempt := 0; attempt < 2; attempt++ {
		var ops []storage.Op
		ops, res, err = s.plan(ctx, owner, month, instances)
		if err != nil {
			return SyncResult{}, err
		}
		if len(ops) == 0 {
			return res, nil
		}
		err = s.store.Apply(ctx, ops...)
		if err == nil {
			break
		}
		if !errors.Is(err, storage.ErrDuplicate) {
			return SyncResult{}, fmt.Errorf("apply task sync: %w", err)
		}
		slog.DebugContext(ctx, "Bill task created concurrently, replanning",
			log.FieldComponent, log.ComponentTasks,
			log.FieldOwner, owner,
			log.FieldError, err)
	}
	if err != nil {
		return SyncResult{}, fmt.Errorf("apply task sync: %w", err)
	}
	slog.InfoContext(ctx, "Bill tasks synchronized",
		log.FieldComponent, log.ComponentTasks,
		log.FieldOperation, log.OpSync,
		log.FieldOwner, owner,
		log.FieldMonth, month.String(),
		"created", res.Created,
		"updated", res.Updated,
		"removed", res.Removed)
	return res, nil
}

func (s *TaskSynchronizer) plan(ctx context.Context, owner string, month core.YearMonth, instances []core.Transaction) ([]storage.Op, SyncResult, error) {
	var res SyncResult

	tasks, err := s.store.ListTasks(ctx, owner)
	if err != nil {
		return nil, res, fmt.Errorf("list tasks: %w", err)
	}

	byLink := make(map[string][]core.Task)
	maxTodo := -1
	for _, t := range tasks {
		if t.IsLinked() {
			byLink[t.LinkedTransactionID] = append(byLink[t.LinkedTransactionID], t)
		}
		if t.Status == core.TaskTodo && t.Order > maxTodo {
			maxTodo = t.Order
		}
	}
	nextTodo := func() int {
		maxTodo++
		return maxTodo
	}

	var ops []storage.Op
	seen := make(map[string]bool)
	for _, inst := range instances {
		if !inst.IsRecurringExpense() {
			continue
		}
		templateID := inst.Ref().TemplateID()
		if seen[templateID] {
			continue
		}
		seen[templateID] = true

		due := core.OccurrenceDate(inst.AnchorDate(), month)
		amount := inst.Amount.Abs()

		existing, extras := pickLinked(byLink[templateID], month)
		for _, dup := range extras {
			ops = append(ops, storage.DeleteTask(owner, dup.ID))
			res.Removed++
		}

		if existing == nil {
			ops = append(ops, storage.CreateTask(core.Task{
				ID:                  LinkedTaskID(owner, templateID),
				OwnerID:             owner,
				Title:               inst.Description,
				Amount:              amount,
				Category:            core.NormalizeCategory(core.Expense, string(inst.Category)),
				Status:              core.TaskTodo,
				Order:               nextTodo(),
				LinkedTransactionID: templateID,
				LinkedMonth:         month,
				DueDate:             due,
			}))
			res.Created++
			continue
		}

		switch {
		case existing.LinkedMonth != month:
			patch := storage.TaskPatch{
				Status:      storage.Ptr(core.TaskTodo),
				LinkedMonth: &month,
				DueDate:     &due,
				Amount:      &amount,
			}
			if existing.Status != core.TaskTodo {
				patch.Order = storage.Ptr(nextTodo())
			}
			ops = append(ops, storage.UpdateTask(owner, existing.ID, patch))
			res.Updated++

		case !existing.Amount.Equal(amount):
			ops = append(ops, storage.UpdateTask(owner, existing.ID, storage.TaskPatch{
				Amount: &amount,
				Title:  storage.Ptr(inst.Description),
			}))
			res.Updated++
		}
	}
	return ops, res, nil
}

// pickLinked keeps the task already on month if there is one, otherwise the
// first in board order. The rest are duplicates.
func pickLinked(linked []core.Task, month core.YearMonth) (*core.Task, []core.Task) {
	if len(linked) == 0 {
		return nil, nil
	}
	keep := 0
	for i, t := range linked {
		if t.LinkedMonth == month {
			keep = i
			break
		}
	}
	extras := make([]core.Task, 0, len(linked)-1)
	for i, t := range linked {
		if i != keep {
			extras = append(extras, t)
		}
	}
	kept := linked[keep]
	return &kept, extras
}
