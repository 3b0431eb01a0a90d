// Package sqlstore implements storage.Store on database/sql, for SQLite
// (modernc.org/sqlite) and PostgreSQL (lib/pq).
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"moneyboard/internal/core"
	"moneyboard/internal/log"
	"moneyboard/internal/storage"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

type Store struct {
	db      *sql.DB
	dialect Dialect
	now     func() time.Time
}

// OpenSQLite opens (creating if needed) the database file at path and
// migrates it.
func OpenSQLite(ctx context.Context, path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}
	if err := RunMigrations(SQLite, path); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	db, err := sql.Open(SQLite.driver, SQLite.dsn(path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// A single writer connection keeps immediate transactions from queueing
	// on the file lock.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	slog.InfoContext(ctx, "SQLite store ready", log.FieldComponent, log.ComponentStorage, "path", path)
	return newStore(db, SQLite), nil
}

// OpenPostgres connects to dsn and migrates the schema.
func OpenPostgres(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open(Postgres.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if err := RunMigrations(Postgres, dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	slog.InfoContext(ctx, "PostgreSQL store ready", log.FieldComponent, log.ComponentStorage)
	return newStore(db, Postgres), nil
}

func newStore(db *sql.DB, d Dialect) *Store {
	return &Store{db: db, dialect: d, now: func() time.Time { return time.Now().UTC() }}
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Ping reports whether the database answers, for readiness checks.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

const txColumns = `id, owner_id, date_ms, description, amount, category, is_recurring,
	recurring_start_month, excluded_months, amount_history, created_ms, updated_ms`

const taskColumns = `id, owner_id, title, description, amount, category, status, sort_order,
	linked_transaction_id, linked_month, due_date_ms, added_to_calendar, created_ms, updated_ms`

func (s *Store) ListMonthTransactions(ctx context.Context, ownerID string, from, to time.Time) ([]core.Transaction, error) {
	q := `SELECT ` + txColumns + ` FROM transactions
		WHERE owner_id = ? AND is_recurring = ? AND date_ms >= ? AND date_ms <= ?
		ORDER BY date_ms DESC, id`
	out, err := s.queryTransactions(ctx, q, ownerID, false, from.UnixMilli(), to.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("list month transactions: %w", err)
	}
	return out, nil
}

func (s *Store) ListRecurringTemplates(ctx context.Context, ownerID string) ([]core.Transaction, error) {
	q := `SELECT ` + txColumns + ` FROM transactions
		WHERE owner_id = ? AND is_recurring = ?
		ORDER BY date_ms DESC, id`
	out, err := s.queryTransactions(ctx, q, ownerID, true)
	if err != nil {
		return nil, fmt.Errorf("list recurring templates: %w", err)
	}
	return out, nil
}

func (s *Store) GetTransaction(ctx context.Context, ownerID, id string) (core.Transaction, error) {
	return getTransaction(ctx, s.db, s.dialect, ownerID, id, false)
}

func (s *Store) ListTasks(ctx context.Context, ownerID string) ([]core.Task, error) {
	q := `SELECT ` + taskColumns + ` FROM tasks WHERE owner_id = ?`
	out, err := s.queryTasks(ctx, q, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	storage.SortTasks(out)
	return out, nil
}

func (s *Store) GetTask(ctx context.Context, ownerID, id string) (core.Task, error) {
	return getTask(ctx, s.db, s.dialect, ownerID, id, false)
}

func (s *Store) FindTasksByLink(ctx context.Context, ownerID, templateID string) ([]core.Task, error) {
	q := `SELECT ` + taskColumns + ` FROM tasks WHERE owner_id = ? AND linked_transaction_id = ?`
	out, err := s.queryTasks(ctx, q, ownerID, templateID)
	if err != nil {
		return nil, fmt.Errorf("find tasks by link: %w", err)
	}
	storage.SortTasks(out)
	return out, nil
}

func (s *Store) ListRecurringOwners(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.Rebind(
		`SELECT DISTINCT owner_id FROM transactions WHERE is_recurring = ? ORDER BY owner_id`), true)
	if err != nil {
		return nil, fmt.Errorf("list recurring owners: %w", err)
	}
	defer rows.Close()
	var owners []string
	for rows.Next() {
		var owner string
		if err := rows.Scan(&owner); err != nil {
			return nil, fmt.Errorf("scan owner: %w", err)
		}
		owners = append(owners, owner)
	}
	return owners, rows.Err()
}

func (s *Store) queryTransactions(ctx context.Context, q string, args ...any) ([]core.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.Rebind(q), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []core.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

func (s *Store) queryTasks(ctx context.Context, q string, args ...any) ([]core.Task, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.Rebind(q), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []core.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func getTransaction(ctx context.Context, q querier, d Dialect, ownerID, id string, lock bool) (core.Transaction, error) {
	query := `SELECT ` + txColumns + ` FROM transactions WHERE id = ? AND owner_id = ?`
	if lock {
		query += d.forUpdate
	}
	tx, err := scanTransaction(q.QueryRowContext(ctx, d.Rebind(query), id, ownerID))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, fmt.Errorf("transaction %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction %s: %w", id, err)
	}
	return tx, nil
}

func getTask(ctx context.Context, q querier, d Dialect, ownerID, id string, lock bool) (core.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = ? AND owner_id = ?`
	if lock {
		query += d.forUpdate
	}
	t, err := scanTask(q.QueryRowContext(ctx, d.Rebind(query), id, ownerID))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Task{}, fmt.Errorf("task %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Task{}, fmt.Errorf("get task %s: %w", id, err)
	}
	return t, nil
}

var _ storage.Store = (*Store)(nil)
