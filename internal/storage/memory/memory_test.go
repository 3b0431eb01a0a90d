package memory

import (
	"context"
	"testing"
	"time"

	"moneyboard/internal/core"
	"moneyboard/internal/storage"
	"moneyboard/internal/storage/storetest"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) storage.Store { return New() })
}

func TestReadsReturnCopies(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.Apply(ctx, storage.CreateTransaction(core.Transaction{
		ID: "t", OwnerID: "u1", Date: time.Now(), Description: "Rent",
		Amount: decimal.NewFromInt(-1), IsRecurring: true,
		ExcludedMonths: []core.YearMonth{core.NewYearMonth(2025, time.March)},
	})))

	first, err := s.GetTransaction(ctx, "u1", "t")
	require.NoError(t, err)
	first.ExcludedMonths[0] = core.NewYearMonth(1999, time.January)

	second, err := s.GetTransaction(ctx, "u1", "t")
	require.NoError(t, err)
	assert.Equal(t, core.NewYearMonth(2025, time.March), second.ExcludedMonths[0])
}

func TestUpdateStampsClock(t *testing.T) {
	ctx := context.Background()
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	s := New().WithClock(func() time.Time { return fixed })
	require.NoError(t, s.Apply(ctx, storage.CreateTask(core.Task{ID: "k", OwnerID: "u1", Title: "x", Status: core.TaskTodo})))

	got, err := s.GetTask(ctx, "u1", "k")
	require.NoError(t, err)
	assert.Equal(t, fixed, got.CreatedAt)
	assert.Equal(t, fixed, got.UpdatedAt)
}

func TestApplyHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := New().Apply(ctx, storage.DeleteTask("u1", "x"))
	assert.ErrorIs(t, err, context.Canceled)
}
