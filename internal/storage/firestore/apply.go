package firestore

import (
	"context"
	"fmt"
	"time"

	"moneyboard/internal/core"
	"moneyboard/internal/storage"

	"cloud.google.com/go/firestore"
)

// staged holds a document read in the first phase of a transaction. Later
// ops on the same document see the effect of earlier ones.
type staged struct {
	ref  *firestore.DocumentRef
	tx   *core.Transaction
	task *core.Task
}

// Apply runs the batch in a Firestore transaction: every document an update
// or delete touches is read first, then all writes are queued.
func (s *Store) Apply(ctx context.Context, ops ...storage.Op) error {
	if len(ops) == 0 {
		return nil
	}
	err := s.client.RunTransaction(ctx, func(ctx context.Context, t *firestore.Transaction) error {
		docs, err := s.readPhase(t, ops)
		if err != nil {
			return err
		}
		now := s.now()
		for i, op := range ops {
			if err := s.writeOp(t, docs, op, now); err != nil {
				return fmt.Errorf("op %d (%s): %w", i, op.Kind, err)
			}
		}
		return nil
	})
	if err != nil {
		return mapError(err)
	}
	return nil
}

func (s *Store) ref(op storage.Op) *firestore.DocumentRef {
	switch op.Kind {
	case storage.OpCreateTransaction, storage.OpUpdateTransaction, storage.OpDeleteTransaction:
		return s.transactions().Doc(op.ID)
	}
	return s.tasks().Doc(op.ID)
}

func (s *Store) readPhase(t *firestore.Transaction, ops []storage.Op) (map[string]*staged, error) {
	docs := map[string]*staged{}
	for _, op := range ops {
		switch op.Kind {
		case storage.OpCreateTransaction, storage.OpCreateTask:
			if op.ID == "" {
				return nil, fmt.Errorf("empty id: %w", storage.ErrDuplicate)
			}
			continue
		}
		ref := s.ref(op)
		if _, ok := docs[ref.Path]; ok {
			continue
		}
		snap, err := t.Get(ref)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", ref.ID, mapError(err))
		}
		st := &staged{ref: ref}
		switch op.Kind {
		case storage.OpUpdateTransaction, storage.OpDeleteTransaction:
			var d transactionDoc
			if err := snap.DataTo(&d); err != nil {
				return nil, fmt.Errorf("decode transaction %s: %w", ref.ID, err)
			}
			tx := decodeTransaction(ref.ID, d)
			st.tx = &tx
		default:
			var d taskDoc
			if err := snap.DataTo(&d); err != nil {
				return nil, fmt.Errorf("decode task %s: %w", ref.ID, err)
			}
			task := decodeTask(ref.ID, d)
			st.task = &task
		}
		docs[ref.Path] = st
	}
	return docs, nil
}

func (s *Store) writeOp(t *firestore.Transaction, docs map[string]*staged, op storage.Op, now time.Time) error {
	ref := s.ref(op)
	switch op.Kind {
	case storage.OpCreateTransaction:
		tx := op.Transaction.Clone()
		stampTimes(&tx.CreatedAt, &tx.UpdatedAt, now)
		return t.Create(ref, encodeTransaction(tx))

	case storage.OpCreateTask:
		task := op.Task
		stampTimes(&task.CreatedAt, &task.UpdatedAt, now)
		return t.Create(ref, encodeTask(task))

	case storage.OpUpdateTransaction:
		st := docs[ref.Path]
		if st == nil || st.tx == nil || st.tx.OwnerID != op.OwnerID {
			return fmt.Errorf("transaction %s: %w", op.ID, core.ErrNotFound)
		}
		op.TxPatch.ApplyTo(st.tx)
		return t.Update(ref, transactionUpdates(op.TxPatch, *st.tx, now))

	case storage.OpUpdateTask:
		st := docs[ref.Path]
		if st == nil || st.task == nil || st.task.OwnerID != op.OwnerID {
			return fmt.Errorf("task %s: %w", op.ID, core.ErrNotFound)
		}
		op.TaskPatch.ApplyTo(st.task)
		st.task.UpdatedAt = now
		return t.Set(ref, encodeTask(*st.task))

	case storage.OpDeleteTransaction:
		st := docs[ref.Path]
		if st == nil || st.tx == nil || st.tx.OwnerID != op.OwnerID {
			return fmt.Errorf("transaction %s: %w", op.ID, core.ErrNotFound)
		}
		st.tx = nil
		return t.Delete(ref)

	case storage.OpDeleteTask:
		st := docs[ref.Path]
		if st == nil || st.task == nil || st.task.OwnerID != op.OwnerID {
			return fmt.Errorf("task %s: %w", op.ID, core.ErrNotFound)
		}
		st.task = nil
		return t.Delete(ref)
	}
	return fmt.Errorf("unsupported op kind %d", op.Kind)
}

// transactionUpdates writes only the patched fields. Exclusions go through
// ArrayUnion so the server merges them even against a stale read.
func transactionUpdates(p storage.TransactionPatch, patched core.Transaction, now time.Time) []firestore.Update {
	ups := []firestore.Update{{Path: "updatedAt", Value: now}}
	if p.Date != nil {
		ups = append(ups, firestore.Update{Path: "date", Value: patched.Date})
	}
	if p.Description != nil {
		ups = append(ups, firestore.Update{Path: "description", Value: patched.Description})
	}
	if p.Amount != nil {
		ups = append(ups, firestore.Update{Path: "amount", Value: fromAmount(patched.Amount)})
	}
	if p.Category != nil {
		ups = append(ups, firestore.Update{Path: "category", Value: string(patched.Category)})
	}
	if p.IsRecurring != nil {
		ups = append(ups, firestore.Update{Path: "isRecurring", Value: patched.IsRecurring})
	}
	if p.ClearRecurring {
		ups = append(ups,
			firestore.Update{Path: "excludedMonths", Value: firestore.Delete},
			firestore.Update{Path: "amountHistory", Value: firestore.Delete},
		)
		if p.RecurringStartMonth == nil {
			ups = append(ups, firestore.Update{Path: "recurringStartMonth", Value: firestore.Delete})
		}
	}
	if p.RecurringStartMonth != nil {
		ups = append(ups, firestore.Update{Path: "recurringStartMonth", Value: patched.RecurringStartMonth.String()})
	}
	if p.AddExcludedMonth != nil && !p.ClearRecurring {
		ups = append(ups, firestore.Update{Path: "excludedMonths", Value: firestore.ArrayUnion(p.AddExcludedMonth.String())})
	}
	if p.UpsertAmountChange != nil && !p.ClearRecurring {
		ups = append(ups, firestore.Update{Path: "amountHistory", Value: history(patched.AmountHistory)})
	}
	return ups
}

func stampTimes(created, updated *time.Time, now time.Time) {
	if created.IsZero() {
		*created = now
	}
	if updated.IsZero() {
		*updated = now
	}
}
