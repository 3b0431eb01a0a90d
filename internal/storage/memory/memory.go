// Package memory is an in-process Store used by tests and local runs.
package memory

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sort"
	"sync"
	"time"

	"moneyboard/internal/core"
	"moneyboard/internal/storage"
)

type Store struct {
	mu           sync.Mutex
	transactions map[string]core.Transaction
	tasks        map[string]core.Task
	now          func() time.Time
}

func New() *Store {
	return &Store{
		transactions: map[string]core.Transaction{},
		tasks:        map[string]core.Task{},
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the clock used for UpdatedAt stamps.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

func (s *Store) ListMonthTransactions(_ context.Context, ownerID string, from, to time.Time) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Transaction
	for _, tx := range s.transactions {
		if tx.OwnerID != ownerID || tx.IsRecurring {
			continue
		}
		if tx.Date.Before(from) || tx.Date.After(to) {
			continue
		}
		out = append(out, tx.Clone())
	}
	sortByDateDesc(out)
	return out, nil
}

func (s *Store) ListRecurringTemplates(_ context.Context, ownerID string) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Transaction
	for _, tx := range s.transactions {
		if tx.OwnerID == ownerID && tx.IsRecurring {
			out = append(out, tx.Clone())
		}
	}
	sortByDateDesc(out)
	return out, nil
}

func (s *Store) GetTransaction(_ context.Context, ownerID, id string) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.transactions[id]
	if !ok || tx.OwnerID != ownerID {
		return core.Transaction{}, fmt.Errorf("transaction %s: %w", id, core.ErrNotFound)
	}
	return tx.Clone(), nil
}

func (s *Store) ListTasks(_ context.Context, ownerID string) ([]core.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Task
	for _, t := range s.tasks {
		if t.OwnerID == ownerID {
			out = append(out, t)
		}
	}
	storage.SortTasks(out)
	return out, nil
}

func (s *Store) GetTask(_ context.Context, ownerID, id string) (core.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok || t.OwnerID != ownerID {
		return core.Task{}, fmt.Errorf("task %s: %w", id, core.ErrNotFound)
	}
	return t, nil
}

func (s *Store) FindTasksByLink(_ context.Context, ownerID, templateID string) ([]core.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Task
	for _, t := range s.tasks {
		if t.OwnerID == ownerID && t.LinkedTransactionID == templateID {
			out = append(out, t)
		}
	}
	storage.SortTasks(out)
	return out, nil
}

func (s *Store) ListRecurringOwners(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := map[string]struct{}{}
	for _, tx := range s.transactions {
		if tx.IsRecurring {
			seen[tx.OwnerID] = struct{}{}
		}
	}
	return slices.Sorted(maps.Keys(seen)), nil
}

// Apply stages every op on copies of the maps and swaps them in only when
// all ops succeeded.
func (s *Store) Apply(ctx context.Context, ops ...storage.Op) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	txs := maps.Clone(s.transactions)
	tasks := maps.Clone(s.tasks)
	now := s.now()

	for i, op := range ops {
		if err := applyOp(txs, tasks, op, now); err != nil {
			return fmt.Errorf("op %d (%s): %w", i, op.Kind, err)
		}
	}
	s.transactions = txs
	s.tasks = tasks
	return nil
}

func applyOp(txs map[string]core.Transaction, tasks map[string]core.Task, op storage.Op, now time.Time) error {
	switch op.Kind {
	case storage.OpCreateTransaction:
		if _, exists := txs[op.ID]; exists || op.ID == "" {
			return fmt.Errorf("transaction %q: %w", op.ID, storage.ErrDuplicate)
		}
		tx := op.Transaction.Clone()
		stamp(&tx.CreatedAt, &tx.UpdatedAt, now)
		txs[op.ID] = tx
	case storage.OpUpdateTransaction:
		tx, ok := txs[op.ID]
		if !ok || tx.OwnerID != op.OwnerID {
			return fmt.Errorf("transaction %s: %w", op.ID, core.ErrNotFound)
		}
		tx = tx.Clone()
		op.TxPatch.ApplyTo(&tx)
		tx.UpdatedAt = now
		txs[op.ID] = tx
	case storage.OpDeleteTransaction:
		tx, ok := txs[op.ID]
		if !ok || tx.OwnerID != op.OwnerID {
			return fmt.Errorf("transaction %s: %w", op.ID, core.ErrNotFound)
		}
		delete(txs, op.ID)
	case storage.OpCreateTask:
		if _, exists := tasks[op.ID]; exists || op.ID == "" {
			return fmt.Errorf("task %q: %w", op.ID, storage.ErrDuplicate)
		}
		t := op.Task
		stamp(&t.CreatedAt, &t.UpdatedAt, now)
		tasks[op.ID] = t
	case storage.OpUpdateTask:
		t, ok := tasks[op.ID]
		if !ok || t.OwnerID != op.OwnerID {
			return fmt.Errorf("task %s: %w", op.ID, core.ErrNotFound)
		}
		op.TaskPatch.ApplyTo(&t)
		t.UpdatedAt = now
		tasks[op.ID] = t
	case storage.OpDeleteTask:
		t, ok := tasks[op.ID]
		if !ok || t.OwnerID != op.OwnerID {
			return fmt.Errorf("task %s: %w", op.ID, core.ErrNotFound)
		}
		delete(tasks, op.ID)
	default:
		return fmt.Errorf("unsupported op kind %d", op.Kind)
	}
	return nil
}

func stamp(created, updated *time.Time, now time.Time) {
	if created.IsZero() {
		*created = now
	}
	if updated.IsZero() {
		*updated = now
	}
}

func sortByDateDesc(txs []core.Transaction) {
	sort.SliceStable(txs, func(i, j int) bool {
		if !txs[i].Date.Equal(txs[j].Date) {
			return txs[i].Date.After(txs[j].Date)
		}
		return txs[i].ID < txs[j].ID
	})
}

func (s *Store) Close() error { return nil }

var _ storage.Store = (*Store)(nil)
