package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"moneyboard/internal/core"
	"moneyboard/internal/storage"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (f *fixture) seedTemplate(t *testing.T, id, desc string, amount string, d time.Time, start core.YearMonth) {
	t.Helper()
	require.NoError(t, f.store.Store.Apply(context.Background(), storage.CreateTransaction(core.Transaction{
		ID:                  id,
		OwnerID:             "u1",
		Date:                d,
		Description:         desc,
		Amount:              dec(amount),
		Category:            core.Misc,
		IsRecurring:         true,
		RecurringStartMonth: start,
	})))
}

func TestDedupeRecurringKeepsOldest(t *testing.T) {
	f := newFixture(t)
	f.seedTemplate(t, "rent-b", "Rent", "-1200", date(2025, 2, 1), feb)
	f.seedTemplate(t, "rent-a", "Rent", "-1200.00", date(2025, 1, 1), core.YearMonth{})
	f.seedTemplate(t, "rent-c", "Rent", "-1200", date(2025, 3, 1), mar)
	f.seedTemplate(t, "gym", "Gym", "-40", date(2025, 1, 5), jan)
	f.seedTemplate(t, "gym-pricier", "Gym", "-45", date(2025, 1, 5), jan)
	f.seedTask(t, core.Task{ID: "t-rent-b", Status: core.TaskTodo, LinkedTransactionID: "rent-b", LinkedMonth: mar})

	res, err := f.txs.DedupeRecurring(context.Background(), "u1", false)
	require.NoError(t, err)
	assert.Equal(t, DedupeResult{Templates: 5, Unique: 3, Deleted: 2, Backfilled: 1, Tasks: 1}, res)
	assert.True(t, res.Changed())

	templates, err := f.store.ListRecurringTemplates(context.Background(), "u1")
	require.NoError(t, err)
	var ids []string
	for _, tx := range templates {
		ids = append(ids, tx.ID)
	}
	assert.ElementsMatch(t, []string{"rent-a", "gym", "gym-pricier"}, ids)
	assert.Equal(t, jan, f.template(t, "rent-a").RecurringStartMonth)
	assert.Empty(t, f.allTasks(t))

	events := f.pub.Events()
	require.Len(t, events, 1)
	assert.Equal(t, "u1", events[0].OwnerID)
}

func TestDedupeRecurringDryRun(t *testing.T) {
	f := newFixture(t)
	f.seedTemplate(t, "a", "Rent", "-1200", date(2025, 1, 1), jan)
	f.seedTemplate(t, "b", "Rent", "-1200", date(2025, 2, 1), feb)

	res, err := f.txs.DedupeRecurring(context.Background(), "u1", true)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Deleted)

	templates, err := f.store.ListRecurringTemplates(context.Background(), "u1")
	require.NoError(t, err)
	assert.Len(t, templates, 2)
	assert.Zero(t, f.store.applies.Load(), "dry run must not write")
	assert.Empty(t, f.pub.Events())
}

func TestDedupeRecurringNothingToDo(t *testing.T) {
	f := newFixture(t)
	f.seedTemplate(t, "a", "Rent", "-1200", date(2025, 1, 1), jan)

	res, err := f.txs.DedupeRecurring(context.Background(), "u1", false)
	require.NoError(t, err)
	assert.False(t, res.Changed())
	assert.Equal(t, DedupeResult{Templates: 1, Unique: 1}, res)
	assert.Empty(t, f.pub.Events())
}

func TestDedupeRecurringApplyFailure(t *testing.T) {
	f := newFixture(t)
	f.seedTemplate(t, "a", "Rent", "-1200", date(2025, 1, 1), jan)
	f.seedTemplate(t, "b", "Rent", "-1200", date(2025, 2, 1), feb)
	f.store.failApply = errBroker

	_, err := f.txs.DedupeRecurring(context.Background(), "u1", false)
	require.ErrorIs(t, err, errBroker)
	assert.True(t, f.template(t, "b").Amount.Equal(decimal.NewFromInt(-1200)))
}

// batchRecorder remembers the size of every batch applied through it.
type batchRecorder struct {
	storage.Store
	mu    sync.Mutex
	sizes []int
}

func (b *batchRecorder) Apply(ctx context.Context, ops ...storage.Op) error {
	b.mu.Lock()
	b.sizes = append(b.sizes, len(ops))
	b.mu.Unlock()
	return b.Store.Apply(ctx, ops...)
}

func TestDedupeRecurringSplitsLargeCleanups(t *testing.T) {
	f := newFixture(t)
	for i := range 601 {
		f.seedTemplate(t, fmt.Sprintf("rent-%03d", i), "Rent", "-1200", date(2025, 1, 1).AddDate(0, 0, i), core.YearMonth{})
	}
	rec := &batchRecorder{Store: f.store.Store}
	svc := NewTransactionService(rec, f.pub, TransactionServiceConfig{Location: time.UTC})

	res, err := svc.DedupeRecurring(context.Background(), "u1", false)
	require.NoError(t, err)
	assert.Equal(t, DedupeResult{Templates: 601, Unique: 1, Deleted: 600, Backfilled: 1}, res)
	assert.Equal(t, []int{500, 101}, rec.sizes)

	templates, err := f.store.ListRecurringTemplates(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, templates, 1)
	assert.Equal(t, "rent-000", templates[0].ID)
	assert.Equal(t, jan, templates[0].RecurringStartMonth)
}

func TestBatchOps(t *testing.T) {
	op := storage.DeleteTask("u1", "x")
	unit := func(n int) []storage.Op {
		ops := make([]storage.Op, n)
		for i := range ops {
			ops[i] = op
		}
		return ops
	}
	sizes := func(batches [][]storage.Op) []int {
		var out []int
		for _, b := range batches {
			out = append(out, len(b))
		}
		return out
	}

	assert.Nil(t, batchOps(nil, 3))
	assert.Equal(t, []int{3}, sizes(batchOps([][]storage.Op{unit(1), unit(2)}, 3)))
	// a unit that would overflow starts a new batch
	assert.Equal(t, []int{2, 2}, sizes(batchOps([][]storage.Op{unit(2), unit(2)}, 3)))
	// a unit larger than the limit is split
	assert.Equal(t, []int{1, 3, 3, 1}, sizes(batchOps([][]storage.Op{unit(1), unit(7)}, 3)))
}

func TestPurgeRecurring(t *testing.T) {
	f := newFixture(t)
	f.seedTemplate(t, "rent", "Rent", "-1200", date(2025, 1, 1), jan)
	f.seedTemplate(t, "gym", "Gym", "-40", date(2025, 1, 5), jan)
	f.seedTask(t, core.Task{ID: "t-rent", Status: core.TaskTodo, LinkedTransactionID: "rent", LinkedMonth: mar})
	f.seedTask(t, core.Task{ID: "manual", Status: core.TaskTodo})
	plain := f.addTx(t, "Coffee", -3, date(2025, 3, 2), false)

	n, err := f.txs.PurgeRecurring(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	templates, err := f.store.ListRecurringTemplates(context.Background(), "u1")
	require.NoError(t, err)
	assert.Empty(t, templates)

	tasks := f.allTasks(t)
	require.Len(t, tasks, 1)
	assert.Equal(t, "manual", tasks[0].ID)
	assert.Equal(t, plain.ID, f.template(t, plain.ID).ID)
}
