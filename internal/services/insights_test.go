package services

import (
	"testing"

	"moneyboard/internal/core"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsightsGroupsByCategory(t *testing.T) {
	view := core.NewMonthView(mar, []core.Transaction{
		{ID: "1", Date: date(2025, 3, 1), Amount: decimal.NewFromInt(-60), Category: "food"},
		{ID: "2", Date: date(2025, 3, 2), Amount: decimal.NewFromInt(-15), Category: "food"},
		{ID: "3", Date: date(2025, 3, 3), Amount: decimal.NewFromInt(-25), Category: "transport"},
		{ID: "4", Date: date(2025, 3, 4), Amount: decimal.NewFromInt(-25), Category: "no-longer-exists"},
		{ID: "5", Date: date(2025, 3, 5), Amount: decimal.NewFromInt(3000), Category: "salary"},
	})

	got := Insights(view, core.Expense)
	assert.Equal(t, mar, got.Month)
	assert.Equal(t, 4, got.Count)
	assert.True(t, got.Total.Equal(decimal.NewFromInt(125)))
	require.Len(t, got.Categories, 3)

	assert.Equal(t, core.Category("food"), got.Categories[0].Category)
	assert.Equal(t, 2, got.Categories[0].Count)
	assert.True(t, got.Categories[0].Amount.Equal(decimal.NewFromInt(75)))
	assert.True(t, got.Categories[0].Percentage.Equal(decimal.NewFromInt(60)))
	assert.NotEmpty(t, got.Categories[0].Label)

	// equal amounts fall back to category id order
	assert.Equal(t, core.Misc, got.Categories[1].Category)
	assert.Equal(t, core.Category("transport"), got.Categories[2].Category)
	assert.True(t, got.Categories[2].Percentage.Equal(decimal.NewFromInt(20)))

	income := Insights(view, core.Income)
	require.Len(t, income.Categories, 1)
	assert.True(t, income.Categories[0].Percentage.Equal(decimal.NewFromInt(100)))
}

func TestInsightsEmptyMonth(t *testing.T) {
	got := Insights(core.NewMonthView(mar, nil), core.Expense)
	assert.True(t, got.Total.IsZero())
	assert.Empty(t, got.Categories)
}

func TestInsightsPercentageRounding(t *testing.T) {
	view := core.NewMonthView(mar, []core.Transaction{
		{ID: "1", Date: date(2025, 3, 1), Amount: decimal.NewFromInt(-1), Category: "food"},
		{ID: "2", Date: date(2025, 3, 1), Amount: decimal.NewFromInt(-2), Category: "rent"},
	})
	got := Insights(view, core.Expense)
	require.Len(t, got.Categories, 2)
	assert.Equal(t, "66.67", got.Categories[0].Percentage.StringFixed(2))
	assert.Equal(t, "33.33", got.Categories[1].Percentage.StringFixed(2))
}
