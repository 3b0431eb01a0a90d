// Package storetest holds the behaviour every storage.Store adapter must
// share. Adapter tests call Run with a constructor for a fresh store.
package storetest

import (
	"context"
	"testing"
	"time"

	"moneyboard/internal/core"
	"moneyboard/internal/storage"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Run(t *testing.T, newStore func(t *testing.T) storage.Store) {
	t.Run("month listing excludes templates and other owners", func(t *testing.T) {
		testMonthListing(t, newStore(t))
	})
	t.Run("patches merge array fields", func(t *testing.T) {
		testTransactionPatch(t, newStore(t))
	})
	t.Run("clear recurring", func(t *testing.T) {
		testClearRecurring(t, newStore(t))
	})
	t.Run("batch is atomic", func(t *testing.T) {
		testAtomicBatch(t, newStore(t))
	})
	t.Run("foreign owner is not found", func(t *testing.T) {
		testOwnerScoping(t, newStore(t))
	})
	t.Run("tasks ordered and linked", func(t *testing.T) {
		testTasks(t, newStore(t))
	})
	t.Run("recurring owners", func(t *testing.T) {
		testRecurringOwners(t, newStore(t))
	})
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func month(y int, m time.Month) core.YearMonth { return core.NewYearMonth(y, m) }

func plain(id, owner string, date time.Time, amount string) core.Transaction {
	return core.Transaction{
		ID:          id,
		OwnerID:     owner,
		Date:        date,
		Description: "tx " + id,
		Amount:      dec(amount),
		Category:    core.Misc,
	}
}

func template(id, owner string) core.Transaction {
	tx := plain(id, owner, time.Date(2025, 1, 31, 8, 0, 0, 0, time.UTC), "-500")
	tx.Description = "Rent"
	tx.Category = "rent"
	tx.IsRecurring = true
	tx.RecurringStartMonth = month(2025, time.January)
	return tx
}

func testMonthListing(t *testing.T, s storage.Store) {
	ctx := context.Background()
	require.NoError(t, s.Apply(ctx,
		storage.CreateTransaction(plain("a", "u1", time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), "100")),
		storage.CreateTransaction(plain("b", "u1", time.Date(2025, 3, 31, 23, 0, 0, 0, time.UTC), "-20.5")),
		storage.CreateTransaction(plain("c", "u1", time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC), "-1")),
		storage.CreateTransaction(plain("d", "u2", time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC), "-1")),
		storage.CreateTransaction(template("t", "u1")),
	))

	m := month(2025, time.March)
	got, err := s.ListMonthTransactions(ctx, "u1", m.Start(time.UTC), m.End(time.UTC))
	require.NoError(t, err)
	require.Len(t, got, 2)
	ids := []string{got[0].ID, got[1].ID}
	assert.ElementsMatch(t, []string{"a", "b"}, ids)
	for _, tx := range got {
		if tx.ID == "b" {
			assert.True(t, tx.Amount.Equal(dec("-20.5")), "amount %s", tx.Amount)
			assert.True(t, tx.Date.Equal(time.Date(2025, 3, 31, 23, 0, 0, 0, time.UTC)))
		}
	}

	tpls, err := s.ListRecurringTemplates(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, tpls, 1)
	assert.Equal(t, "t", tpls[0].ID)
	assert.Equal(t, month(2025, time.January), tpls[0].RecurringStartMonth)
	assert.Equal(t, core.Category("rent"), tpls[0].Category)
	assert.False(t, tpls[0].CreatedAt.IsZero())
}

func testTransactionPatch(t *testing.T, s storage.Store) {
	ctx := context.Background()
	require.NoError(t, s.Apply(ctx, storage.CreateTransaction(template("t", "u1"))))

	march := month(2025, time.March)
	for range 2 {
		require.NoError(t, s.Apply(ctx, storage.UpdateTransaction("u1", "t", storage.TransactionPatch{
			AddExcludedMonth: &march,
		})))
	}
	require.NoError(t, s.Apply(ctx, storage.UpdateTransaction("u1", "t", storage.TransactionPatch{
		UpsertAmountChange: &core.AmountChange{Amount: dec("-600"), EffectiveFrom: month(2025, time.April)},
	})))
	require.NoError(t, s.Apply(ctx, storage.UpdateTransaction("u1", "t", storage.TransactionPatch{
		UpsertAmountChange: &core.AmountChange{Amount: dec("-650"), EffectiveFrom: month(2025, time.April)},
		Description:        storage.Ptr("Rent flat"),
	})))

	got, err := s.GetTransaction(ctx, "u1", "t")
	require.NoError(t, err)
	assert.Equal(t, []core.YearMonth{march}, got.ExcludedMonths)
	require.Len(t, got.AmountHistory, 1)
	assert.True(t, got.AmountHistory[0].Amount.Equal(dec("-650")))
	assert.Equal(t, "Rent flat", got.Description)
	assert.True(t, got.Amount.Equal(dec("-500")), "base amount untouched")
	assert.Equal(t, time.Date(2025, 1, 31, 8, 0, 0, 0, time.UTC), got.Date.UTC())
}

func testClearRecurring(t *testing.T, s storage.Store) {
	ctx := context.Background()
	tpl := template("t", "u1")
	tpl.ExcludedMonths = []core.YearMonth{month(2025, time.February)}
	tpl.AmountHistory = []core.AmountChange{{Amount: dec("-1"), EffectiveFrom: month(2025, time.March)}}
	require.NoError(t, s.Apply(ctx, storage.CreateTransaction(tpl)))

	require.NoError(t, s.Apply(ctx, storage.UpdateTransaction("u1", "t", storage.TransactionPatch{
		IsRecurring:    storage.Ptr(false),
		ClearRecurring: true,
	})))
	got, err := s.GetTransaction(ctx, "u1", "t")
	require.NoError(t, err)
	assert.False(t, got.IsRecurring)
	assert.True(t, got.RecurringStartMonth.IsZero())
	assert.Empty(t, got.ExcludedMonths)
	assert.Empty(t, got.AmountHistory)

	tpls, err := s.ListRecurringTemplates(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, tpls)
}

func testAtomicBatch(t *testing.T, s storage.Store) {
	ctx := context.Background()
	require.NoError(t, s.Apply(ctx, storage.CreateTransaction(template("t", "u1"))))

	err := s.Apply(ctx,
		storage.UpdateTransaction("u1", "t", storage.TransactionPatch{Description: storage.Ptr("changed")}),
		storage.DeleteTask("u1", "missing"),
	)
	require.ErrorIs(t, err, core.ErrNotFound)

	got, err := s.GetTransaction(ctx, "u1", "t")
	require.NoError(t, err)
	assert.Equal(t, "Rent", got.Description)

	err = s.Apply(ctx, storage.CreateTransaction(template("t", "u1")))
	assert.Error(t, err)
}

func testOwnerScoping(t *testing.T, s storage.Store) {
	ctx := context.Background()
	require.NoError(t, s.Apply(ctx, storage.CreateTransaction(template("t", "u1"))))

	_, err := s.GetTransaction(ctx, "u2", "t")
	assert.ErrorIs(t, err, core.ErrNotFound)
	_, err = s.GetTransaction(ctx, "u1", "nope")
	assert.ErrorIs(t, err, core.ErrNotFound)
	_, err = s.GetTask(ctx, "u1", "nope")
	assert.ErrorIs(t, err, core.ErrNotFound)

	assert.ErrorIs(t, s.Apply(ctx, storage.DeleteTransaction("u2", "t")), core.ErrNotFound)
	assert.ErrorIs(t, s.Apply(ctx, storage.UpdateTransaction("u2", "t", storage.TransactionPatch{
		Description: storage.Ptr("stolen"),
	})), core.ErrNotFound)
}

func testTasks(t *testing.T, s storage.Store) {
	ctx := context.Background()
	due := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	mk := func(id string, st core.TaskStatus, order int, link string) core.Task {
		task := core.Task{
			ID: id, OwnerID: "u1", Title: "task " + id, Amount: dec("10.25"),
			Category: core.Misc, Status: st, Order: order, LinkedTransactionID: link,
		}
		if link != "" {
			task.LinkedMonth = month(2025, time.March)
			task.DueDate = due
		}
		return task
	}
	require.NoError(t, s.Apply(ctx,
		storage.CreateTask(mk("d1", core.TaskDone, 0, "")),
		storage.CreateTask(mk("t2", core.TaskTodo, 1, "")),
		storage.CreateTask(mk("t1", core.TaskTodo, 0, "tpl")),
		storage.CreateTask(mk("p1", core.TaskInProgress, 0, "")),
	))

	tasks, err := s.ListTasks(ctx, "u1")
	require.NoError(t, err)
	var ids []string
	for _, task := range tasks {
		ids = append(ids, task.ID)
	}
	assert.Equal(t, []string{"t1", "t2", "p1", "d1"}, ids)

	linked, err := s.FindTasksByLink(ctx, "u1", "tpl")
	require.NoError(t, err)
	require.Len(t, linked, 1)
	assert.Equal(t, month(2025, time.March), linked[0].LinkedMonth)
	assert.True(t, linked[0].DueDate.Equal(due))
	assert.True(t, linked[0].Amount.Equal(dec("10.25")))

	require.NoError(t, s.Apply(ctx, storage.UpdateTask("u1", "t1", storage.TaskPatch{
		Status: storage.Ptr(core.TaskDone),
		Order:  storage.Ptr(1),
	}), storage.DeleteTask("u1", "t2")))

	got, err := s.GetTask(ctx, "u1", "t1")
	require.NoError(t, err)
	assert.Equal(t, core.TaskDone, got.Status)
	assert.Equal(t, 1, got.Order)
	_, err = s.GetTask(ctx, "u1", "t2")
	assert.ErrorIs(t, err, core.ErrNotFound)

	none, err := s.ListTasks(ctx, "u2")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func testRecurringOwners(t *testing.T, s storage.Store) {
	ctx := context.Background()
	require.NoError(t, s.Apply(ctx,
		storage.CreateTransaction(template("t1", "u2")),
		storage.CreateTransaction(template("t2", "u1")),
		storage.CreateTransaction(template("t3", "u1")),
		storage.CreateTransaction(plain("p", "u3", time.Now(), "1")),
	))
	owners, err := s.ListRecurringOwners(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"u1", "u2"}, owners)
}
