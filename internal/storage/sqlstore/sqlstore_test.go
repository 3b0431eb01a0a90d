package sqlstore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"moneyboard/internal/core"
	"moneyboard/internal/storage"
	"moneyboard/internal/storage/storetest"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "data", "moneyboard.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) storage.Store { return openTemp(t) })
}

func TestPostgresConformance(t *testing.T) {
	dsn := os.Getenv("MONEYBOARD_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("MONEYBOARD_TEST_POSTGRES_DSN not set")
	}
	storetest.Run(t, func(t *testing.T) storage.Store {
		s, err := OpenPostgres(context.Background(), dsn)
		require.NoError(t, err)
		_, err = s.db.Exec(`TRUNCATE transactions, tasks`)
		require.NoError(t, err)
		t.Cleanup(func() { s.Close() })
		return s
	})
}

func TestMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "m.db")
	require.NoError(t, RunMigrations(SQLite, path))
	require.NoError(t, RunMigrations(SQLite, path))
}

func TestLinkedTaskUniqueness(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	mk := func(id string) core.Task {
		return core.Task{
			ID: id, OwnerID: "u1", Title: "Rent", Amount: decimal.NewFromInt(1200),
			Status: core.TaskTodo, LinkedTransactionID: "tpl", LinkedMonth: core.NewYearMonth(2025, time.March),
		}
	}
	require.NoError(t, s.Apply(ctx, storage.CreateTask(mk("a"))))
	err := s.Apply(ctx, storage.CreateTask(mk("b")))
	require.ErrorIs(t, err, storage.ErrDuplicate)

	tasks, err := s.FindTasksByLink(ctx, "u1", "tpl")
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "a", tasks[0].ID)

	// unlinked tasks are not constrained
	plain := mk("c")
	plain.LinkedTransactionID = ""
	other := mk("d")
	other.LinkedTransactionID = ""
	require.NoError(t, s.Apply(ctx, storage.CreateTask(plain), storage.CreateTask(other)))
}

func TestMapInsertError(t *testing.T) {
	assert.NoError(t, mapInsertError("tasks", "a", nil))

	err := mapInsertError("tasks", "a", &pq.Error{Code: "23505", Message: "duplicate key value violates unique constraint"})
	assert.ErrorIs(t, err, storage.ErrDuplicate)

	err = mapInsertError("tasks", "a", errors.New("constraint failed: UNIQUE constraint failed: tasks.id (1555)"))
	assert.ErrorIs(t, err, storage.ErrDuplicate)

	other := errors.New("disk I/O error")
	assert.Same(t, other, mapInsertError("tasks", "a", other))
}

func TestRebind(t *testing.T) {
	q := `SELECT a FROM t WHERE x = ? AND y = ?`
	assert.Equal(t, q, SQLite.Rebind(q))
	assert.Equal(t, `SELECT a FROM t WHERE x = $1 AND y = $2`, Postgres.Rebind(q))
}

func TestSQLiteDSN(t *testing.T) {
	assert.Equal(t, "a.db?_txlock=immediate&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", SQLite.dsn("a.db"))
	assert.Contains(t, SQLite.dsn("a.db?cache=shared"), "a.db?cache=shared&_txlock=immediate")
}
