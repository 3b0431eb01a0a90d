package services

import (
	"testing"
	"time"

	"moneyboard/internal/core"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsOverdue(t *testing.T) {
	now := time.Date(2025, 3, 15, 10, 0, 0, 0, time.UTC)
	tpl := core.Transaction{
		ID: "rent", Date: date(2025, 1, 14), Description: "Rent",
		Amount: decimal.NewFromInt(-900), IsRecurring: true,
	}
	yesterday, ok := tpl.Occurrence(mar)
	require.True(t, ok)

	tomorrowTpl := tpl
	tomorrowTpl.Date = date(2025, 1, 16)
	tomorrow, _ := tomorrowTpl.Occurrence(mar)

	todayTpl := tpl
	todayTpl.Date = date(2025, 1, 15)
	today, _ := todayTpl.Occurrence(mar)

	income := tpl
	income.Amount = decimal.NewFromInt(900)
	incomeInst, _ := income.Occurrence(mar)

	plain := core.Transaction{ID: "p", Date: date(2025, 3, 1), Amount: decimal.NewFromInt(-5)}

	task := func(status core.TaskStatus, m core.YearMonth) []core.Task {
		return []core.Task{{ID: "t", LinkedTransactionID: "rent", LinkedMonth: m, Status: status}}
	}

	tests := []struct {
		name  string
		tx    core.Transaction
		tasks []core.Task
		want  bool
	}{
		{"past with no task", yesterday, nil, true},
		{"past with open task", yesterday, task(core.TaskInProgress, mar), true},
		{"past with done task", yesterday, task(core.TaskDone, mar), false},
		{"done task of another month", yesterday, task(core.TaskDone, feb), true},
		{"due today", today, nil, false},
		{"due tomorrow", tomorrow, nil, false},
		{"income", incomeInst, nil, false},
		{"plain expense", plain, nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsOverdue(tt.tx, tt.tasks, now))
		})
	}
}

func TestIsOverdueUsesTransactionLocation(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		t.Skip("tzdata not available")
	}
	tpl := core.Transaction{
		ID: "rent", Date: time.Date(2025, 1, 15, 0, 0, 0, 0, loc),
		Amount: decimal.NewFromInt(-1), IsRecurring: true,
	}
	inst, _ := tpl.Occurrence(mar)

	// 16:00 UTC on the 14th is already the 15th in Tokyo
	assert.False(t, IsOverdue(inst, nil, time.Date(2025, 3, 14, 16, 0, 0, 0, time.UTC)))
	// 15:00 UTC on the 15th is the 16th in Tokyo
	assert.True(t, IsOverdue(inst, nil, time.Date(2025, 3, 15, 15, 0, 0, 0, time.UTC)))
}

func TestOverdueSet(t *testing.T) {
	now := time.Date(2025, 3, 15, 10, 0, 0, 0, time.UTC)
	a := core.Transaction{ID: "a", Date: date(2025, 1, 2), Amount: decimal.NewFromInt(-1), IsRecurring: true}
	b := core.Transaction{ID: "b", Date: date(2025, 1, 3), Amount: decimal.NewFromInt(-1), IsRecurring: true}
	ai, _ := a.Occurrence(mar)
	bi, _ := b.Occurrence(mar)
	tasks := []core.Task{{ID: "t", LinkedTransactionID: "b", LinkedMonth: mar, Status: core.TaskDone}}

	set := OverdueSet([]core.Transaction{ai, bi}, tasks, now)
	assert.Equal(t, map[string]bool{"a#2025-03": true}, set)
}
