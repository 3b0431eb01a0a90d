package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"moneyboard/internal/core"
	"moneyboard/internal/storage"
)

// Apply runs every op inside one SQL transaction. Patches are evaluated
// against the row as read (and, on PostgreSQL, locked) within it.
func (s *Store) Apply(ctx context.Context, ops ...storage.Op) error {
	if len(ops) == 0 {
		return nil
	}
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin batch: %w", err)
	}
	defer sqlTx.Rollback()

	now := s.now()
	for i, op := range ops {
		if err := s.applyOp(ctx, sqlTx, op, now); err != nil {
			return fmt.Errorf("op %d (%s): %w", i, op.Kind, err)
		}
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	return nil
}

func (s *Store) applyOp(ctx context.Context, q *sql.Tx, op storage.Op, now time.Time) error {
	d := s.dialect
	switch op.Kind {
	case storage.OpCreateTransaction:
		if err := s.ensureAbsent(ctx, q, "transactions", op.ID); err != nil {
			return err
		}
		tx := op.Transaction.Clone()
		stamp(&tx.CreatedAt, &tx.UpdatedAt, now)
		args, err := transactionArgs(tx)
		if err != nil {
			return err
		}
		_, err = q.ExecContext(ctx, d.Rebind(`INSERT INTO transactions (`+txColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`), args...)
		return mapInsertError("transactions", op.ID, err)

	case storage.OpUpdateTransaction:
		tx, err := getTransaction(ctx, q, d, op.OwnerID, op.ID, true)
		if err != nil {
			return err
		}
		op.TxPatch.ApplyTo(&tx)
		tx.UpdatedAt = now
		args, err := transactionArgs(tx)
		if err != nil {
			return err
		}
		// every column after id and owner_id, then the key.
		set := append(args[2:], tx.ID, tx.OwnerID)
		_, err = q.ExecContext(ctx, d.Rebind(`UPDATE transactions SET
			date_ms = ?, description = ?, amount = ?, category = ?, is_recurring = ?,
			recurring_start_month = ?, excluded_months = ?, amount_history = ?, created_ms = ?, updated_ms = ?
			WHERE id = ? AND owner_id = ?`), set...)
		return err

	case storage.OpDeleteTransaction:
		return s.deleteRow(ctx, q, "transactions", "transaction", op.OwnerID, op.ID)

	case storage.OpCreateTask:
		if err := s.ensureAbsent(ctx, q, "tasks", op.ID); err != nil {
			return err
		}
		t := op.Task
		stamp(&t.CreatedAt, &t.UpdatedAt, now)
		_, err := q.ExecContext(ctx, d.Rebind(`INSERT INTO tasks (`+taskColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`), taskArgs(t)...)
		return mapInsertError("tasks", op.ID, err)

	case storage.OpUpdateTask:
		t, err := getTask(ctx, q, d, op.OwnerID, op.ID, true)
		if err != nil {
			return err
		}
		op.TaskPatch.ApplyTo(&t)
		t.UpdatedAt = now
		args := taskArgs(t)
		set := append(args[2:], t.ID, t.OwnerID)
		_, err = q.ExecContext(ctx, d.Rebind(`UPDATE tasks SET
			title = ?, description = ?, amount = ?, category = ?, status = ?, sort_order = ?,
			linked_transaction_id = ?, linked_month = ?, due_date_ms = ?, added_to_calendar = ?,
			created_ms = ?, updated_ms = ?
			WHERE id = ? AND owner_id = ?`), set...)
		return err

	case storage.OpDeleteTask:
		return s.deleteRow(ctx, q, "tasks", "task", op.OwnerID, op.ID)
	}
	return fmt.Errorf("unsupported op kind %d", op.Kind)
}

func (s *Store) ensureAbsent(ctx context.Context, q *sql.Tx, table, id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("empty id: %w", storage.ErrDuplicate)
	}
	var one int
	err := q.QueryRowContext(ctx, s.dialect.Rebind(`SELECT 1 FROM `+table+` WHERE id = ?`), id).Scan(&one)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil
	case err != nil:
		return err
	}
	return fmt.Errorf("%s %s: %w", table, id, storage.ErrDuplicate)
}

func (s *Store) deleteRow(ctx context.Context, q *sql.Tx, table, kind, ownerID, id string) error {
	res, err := q.ExecContext(ctx, s.dialect.Rebind(`DELETE FROM `+table+` WHERE id = ? AND owner_id = ?`), id, ownerID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, core.ErrNotFound)
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
