package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"moneyboard/internal/amqp"
	"moneyboard/internal/auth"
	"moneyboard/internal/core"
	"moneyboard/internal/log"
	"moneyboard/internal/storage"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TaskInput is a manual task as submitted by a caller.
type TaskInput struct {
	Title       string
	Description string
	Amount      decimal.Decimal
	Category    string
	Status      string
	DueDate     time.Time
}

// TaskUpdate is a partial task edit. Nil fields are left alone.
type TaskUpdate struct {
	Title       *string
	Description *string
	Amount      *decimal.Decimal
	Category    *string
	Status      *string
}

// Column is one status column of the board, in display order.
type Column struct {
	Status core.TaskStatus `json:"status"`
	Tasks  []core.Task     `json:"tasks"`
}

// Board is the kanban state after synchronizing the current month.
type Board struct {
	Month   core.YearMonth `json:"month"`
	Sync    SyncResult     `json:"sync"`
	Columns []Column       `json:"columns"`
}

type TaskService struct {
	store     storage.Store
	txs       *TransactionService
	sync      *TaskSynchronizer
	publisher ChangePublisher
	newID     func() string
}

func NewTaskService(store storage.Store, txs *TransactionService, sync *TaskSynchronizer, publisher ChangePublisher) *TaskService {
	return &TaskService{
		store:     store,
		txs:       txs,
		sync:      sync,
		publisher: publisher,
		newID:     uuid.NewString,
	}
}

// SyncOwner materializes owner's current month and runs the synchronizer
// on its recurring expenses.
func (s *TaskService) SyncOwner(ctx context.Context, owner string) (SyncResult, error) {
	return s.SyncOwnerMonth(ctx, owner, s.txs.CurrentMonth())
}

func (s *TaskService) SyncOwnerMonth(ctx context.Context, owner string, month core.YearMonth) (SyncResult, error) {
	view, err := s.txs.MonthViewFor(ctx, owner, month)
	if err != nil {
		return SyncResult{}, err
	}
	return s.sync.Sync(ctx, owner, month, view.RecurringExpenses())
}

// List returns the caller's tasks in board order without synchronizing.
func (s *TaskService) List(ctx context.Context) ([]core.Task, error) {
	owner, err := auth.RequirePrincipal(ctx)
	if err != nil {
		return nil, err
	}
	tasks, err := s.store.ListTasks(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, nil
}

// Board synchronizes the caller's bill tasks, then returns every task
// grouped by status.
func (s *TaskService) Board(ctx context.Context) (Board, error) {
	owner, err := auth.RequirePrincipal(ctx)
	if err != nil {
		return Board{}, err
	}
	month := s.txs.CurrentMonth()
	res, err := s.SyncOwnerMonth(ctx, owner, month)
	if err != nil {
		return Board{}, fmt.Errorf("sync bill tasks: %w", err)
	}
	tasks, err := s.store.ListTasks(ctx, owner)
	if err != nil {
		return Board{}, fmt.Errorf("list tasks: %w", err)
	}

	b := Board{Month: month, Sync: res}
	for _, st := range core.TaskStatuses {
		b.Columns = append(b.Columns, Column{Status: st, Tasks: column(tasks, st, "")})
	}
	return b, nil
}

// Create adds a manual task at the end of its column.
func (s *TaskService) Create(ctx context.Context, in TaskInput) (core.Task, error) {
	owner, err := auth.RequirePrincipal(ctx)
	if err != nil {
		return core.Task{}, err
	}
	task := core.Task{
		ID:      s.newID(),
		OwnerID: owner,
		Amount:  in.Amount.Round(2),
		DueDate: in.DueDate,
	}
	if task.Title, err = core.CleanText("title", in.Title, core.MaxTitleLen, true); err != nil {
		return core.Task{}, err
	}
	if task.Description, err = core.CleanText("description", in.Description, core.MaxTaskDescriptionLen, false); err != nil {
		return core.Task{}, err
	}
	if err := core.ValidatePositiveAmount(task.Amount); err != nil {
		return core.Task{}, err
	}
	if task.Category, err = core.ParseCategory(core.Expense, in.Category); err != nil {
		return core.Task{}, err
	}
	task.Status = core.TaskTodo
	if in.Status != "" {
		if task.Status, err = core.ParseTaskStatus(in.Status); err != nil {
			return core.Task{}, err
		}
	}

	tasks, err := s.store.ListTasks(ctx, owner)
	if err != nil {
		return core.Task{}, fmt.Errorf("list tasks: %w", err)
	}
	task.Order = nextOrder(tasks, task.Status, "")

	if err := s.store.Apply(ctx, storage.CreateTask(task)); err != nil {
		return core.Task{}, fmt.Errorf("save task: %w", err)
	}
	s.committed(ctx, owner, task.ID)
	slog.InfoContext(ctx, "Task created",
		log.FieldComponent, log.ComponentTasks,
		log.FieldOperation, log.OpCreate,
		log.FieldOwner, owner,
		"id", task.ID,
		"status", task.Status)
	return task, nil
}

// Update edits a task. Linked tasks belong to the synchronizer: only their
// status and category may change.
func (s *TaskService) Update(ctx context.Context, id string, u TaskUpdate) (core.Task, error) {
	owner, err := auth.RequirePrincipal(ctx)
	if err != nil {
		return core.Task{}, err
	}
	task, err := s.store.GetTask(ctx, owner, id)
	if err != nil {
		return core.Task{}, fmt.Errorf("get task: %w", err)
	}
	if task.IsLinked() && (u.Title != nil || u.Description != nil || u.Amount != nil) {
		return core.Task{}, fmt.Errorf("linked task %s can only change status or category: %w", id, core.ErrForbidden)
	}

	var patch storage.TaskPatch
	if u.Title != nil {
		title, err := core.CleanText("title", *u.Title, core.MaxTitleLen, true)
		if err != nil {
			return core.Task{}, err
		}
		patch.Title = &title
	}
	if u.Description != nil {
		desc, err := core.CleanText("description", *u.Description, core.MaxTaskDescriptionLen, false)
		if err != nil {
			return core.Task{}, err
		}
		patch.Description = &desc
	}
	if u.Amount != nil {
		amount := u.Amount.Round(2)
		if err := core.ValidatePositiveAmount(amount); err != nil {
			return core.Task{}, err
		}
		patch.Amount = &amount
	}
	if u.Category != nil {
		cat, err := core.ParseCategory(core.Expense, *u.Category)
		if err != nil {
			return core.Task{}, err
		}
		patch.Category = &cat
	}
	if u.Status != nil {
		st, err := core.ParseTaskStatus(*u.Status)
		if err != nil {
			return core.Task{}, err
		}
		if st != task.Status {
			tasks, err := s.store.ListTasks(ctx, owner)
			if err != nil {
				return core.Task{}, fmt.Errorf("list tasks: %w", err)
			}
			patch.Status = &st
			patch.Order = storage.Ptr(nextOrder(tasks, st, task.ID))
		}
	}

	if err := s.store.Apply(ctx, storage.UpdateTask(owner, id, patch)); err != nil {
		return core.Task{}, fmt.Errorf("update task: %w", err)
	}
	patch.ApplyTo(&task)
	s.committed(ctx, owner, id)
	return task, nil
}

// Delete removes a manual task. Linked tasks only go away with their
// recurring series.
func (s *TaskService) Delete(ctx context.Context, id string) error {
	owner, err := auth.RequirePrincipal(ctx)
	if err != nil {
		return err
	}
	task, err := s.store.GetTask(ctx, owner, id)
	if err != nil {
		return fmt.Errorf("get task: %w", err)
	}
	if task.IsLinked() {
		return fmt.Errorf("linked task %s: %w", id, core.ErrForbidden)
	}
	if err := s.store.Apply(ctx, storage.DeleteTask(owner, id)); err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	s.committed(ctx, owner, id)
	slog.InfoContext(ctx, "Task deleted",
		log.FieldComponent, log.ComponentTasks,
		log.FieldOperation, log.OpDelete,
		log.FieldOwner, owner,
		"id", id)
	return nil
}

// Move puts the task at index in the status column. Across columns the
// destination opens a slot at index and the source closes its gap; within
// a column the tasks in between shift by one. Only changed rows are
// written.
func (s *TaskService) Move(ctx context.Context, id string, status string, index int) error {
	owner, err := auth.RequirePrincipal(ctx)
	if err != nil {
		return err
	}
	dest, err := core.ParseTaskStatus(status)
	if err != nil {
		return err
	}
	if index < 0 {
		return &core.ValidationError{Field: "index", Reason: "index cannot be negative"}
	}
	tasks, err := s.store.ListTasks(ctx, owner)
	if err != nil {
		return fmt.Errorf("list tasks: %w", err)
	}
	var moved *core.Task
	for i := range tasks {
		if tasks[i].ID == id {
			moved = &tasks[i]
			break
		}
	}
	if moved == nil {
		return fmt.Errorf("task %s: %w", id, core.ErrNotFound)
	}

	ops := planMove(owner, tasks, *moved, dest, index)
	if len(ops) == 0 {
		return nil
	}
	if err := s.store.Apply(ctx, ops...); err != nil {
		return fmt.Errorf("move task: %w", err)
	}
	s.committed(ctx, owner, id)
	slog.DebugContext(ctx, "Task moved",
		log.FieldComponent, log.ComponentTasks,
		log.FieldOperation, log.OpMove,
		log.FieldOwner, owner,
		"id", id,
		"status", dest,
		"writes", len(ops))
	return nil
}

func planMove(owner string, tasks []core.Task, moved core.Task, dest core.TaskStatus, index int) []storage.Op {
	var ops []storage.Op
	setOrder := func(t core.Task, order int) {
		if t.Order != order {
			ops = append(ops, storage.UpdateTask(owner, t.ID, storage.TaskPatch{Order: storage.Ptr(order)}))
		}
	}

	if moved.Status != dest {
		destCol := column(tasks, dest, "")
		index = min(index, len(destCol))
		ops = append(ops, storage.UpdateTask(owner, moved.ID, storage.TaskPatch{
			Status: &dest,
			Order:  storage.Ptr(index),
		}))
		for i, t := range destCol {
			if i >= index {
				setOrder(t, i+1)
			} else {
				setOrder(t, i)
			}
		}
		for i, t := range column(tasks, moved.Status, moved.ID) {
			setOrder(t, i)
		}
		return ops
	}

	col := column(tasks, dest, "")
	index = min(index, len(col)-1)
	oldIndex := 0
	for i, t := range col {
		if t.ID == moved.ID {
			oldIndex = i
		}
	}
	for i, t := range col {
		order := i
		switch {
		case i == oldIndex:
			order = index
		case oldIndex < index && i > oldIndex && i <= index:
			order = i - 1
		case oldIndex > index && i >= index && i < oldIndex:
			order = i + 1
		}
		setOrder(t, order)
	}
	return ops
}

// AddToCalendar turns a done manual task into a plain expense on date and
// deletes the task in the same batch.
func (s *TaskService) AddToCalendar(ctx context.Context, id string, date time.Time, category string) (core.Transaction, error) {
	owner, err := auth.RequirePrincipal(ctx)
	if err != nil {
		return core.Transaction{}, err
	}
	if date.IsZero() {
		return core.Transaction{}, &core.ValidationError{Field: "date", Reason: "date is required"}
	}
	task, err := s.store.GetTask(ctx, owner, id)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get task: %w", err)
	}
	if task.IsLinked() {
		return core.Transaction{}, fmt.Errorf("linked task %s: %w", id, core.ErrForbidden)
	}
	if task.Status != core.TaskDone {
		return core.Transaction{}, fmt.Errorf("task %s is not done: %w", id, core.ErrForbidden)
	}

	cat := task.Category
	if category != "" {
		if cat, err = core.ParseCategory(core.Expense, category); err != nil {
			return core.Transaction{}, err
		}
	}
	tx := core.Transaction{
		ID:          s.newID(),
		OwnerID:     owner,
		Date:        date.In(s.txs.Location()),
		Description: task.Title,
		Amount:      task.Amount.Abs().Neg(),
		Category:    core.NormalizeCategory(core.Expense, string(cat)),
	}
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}

	if err := s.store.Apply(ctx, storage.CreateTransaction(tx), storage.DeleteTask(owner, id)); err != nil {
		return core.Transaction{}, fmt.Errorf("add task to calendar: %w", err)
	}
	s.txs.committed(ctx, owner, core.YearMonthOf(tx.Date), tx.Ref())
	s.committed(ctx, owner, id)
	slog.InfoContext(ctx, "Task added to calendar",
		log.FieldComponent, log.ComponentTasks,
		log.FieldOperation, log.OpCreate,
		log.FieldOwner, owner,
		log.FieldRef, tx.ID,
		"task_id", id)
	return tx, nil
}

func (s *TaskService) committed(ctx context.Context, owner, ref string) {
	publishChange(ctx, s.publisher, amqp.NewChangeEvent(owner, s.txs.CurrentMonth(), amqp.ChangeTasks, ref))
}

// column returns the tasks of status in board order, leaving out skipID.
func column(tasks []core.Task, status core.TaskStatus, skipID string) []core.Task {
	var out []core.Task
	for _, t := range tasks {
		if t.Status == status && t.ID != skipID {
			out = append(out, t)
		}
	}
	storage.SortTasks(out)
	return out
}

func nextOrder(tasks []core.Task, status core.TaskStatus, skipID string) int {
	highest := -1
	for _, t := range column(tasks, status, skipID) {
		highest = max(highest, t.Order)
	}
	return highest + 1
}
