package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseYearMonth(t *testing.T) {
	m, err := ParseYearMonth("2025-03")
	require.NoError(t, err)
	assert.Equal(t, YearMonth{Year: 2025, Month: time.March}, m)
	assert.Equal(t, "2025-03", m.String())

	for _, bad := range []string{"", "2025-3", "2025-13", "25-03", "2025/03", "2025-03-01"} {
		_, err := ParseYearMonth(bad)
		assert.ErrorIs(t, err, ErrValidation, bad)
	}
}

func TestYearMonthArithmetic(t *testing.T) {
	dec2024 := NewYearMonth(2024, time.December)
	assert.Equal(t, "2025-01", dec2024.AddMonths(1).String())
	assert.Equal(t, "2024-01", dec2024.AddMonths(-11).String())
	assert.True(t, dec2024.Before(dec2024.AddMonths(1)))
	assert.True(t, dec2024.After(dec2024.AddMonths(-1)))
	assert.Equal(t, 0, dec2024.Compare(NewYearMonth(2024, 12)))

	assert.Equal(t, 29, NewYearMonth(2024, time.February).DaysIn())
	assert.Equal(t, 28, NewYearMonth(2025, time.February).DaysIn())
	assert.Equal(t, 31, dec2024.DaysIn())
}

func TestYearMonthBounds(t *testing.T) {
	m := NewYearMonth(2025, time.February)
	assert.Equal(t, time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC), m.Start(time.UTC))
	end := m.End(time.UTC)
	assert.Equal(t, 28, end.Day())
	assert.Equal(t, m, YearMonthOf(end))
	assert.Equal(t, NewYearMonth(2025, time.March), YearMonthOf(end.Add(time.Nanosecond)))
}

func TestYearMonthText(t *testing.T) {
	var m YearMonth
	require.NoError(t, m.UnmarshalText([]byte("2026-10")))
	b, err := m.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "2026-10", string(b))

	require.NoError(t, m.UnmarshalText(nil))
	assert.True(t, m.IsZero())
	assert.Equal(t, "", m.String())
}

func TestOccurrenceDateKeepsLocation(t *testing.T) {
	rome, err := time.LoadLocation("Europe/Rome")
	require.NoError(t, err)
	anchor := time.Date(2025, 1, 31, 23, 15, 0, 0, rome)

	got := OccurrenceDate(anchor, NewYearMonth(2025, time.June))
	assert.Equal(t, time.Date(2025, 6, 30, 23, 15, 0, 0, rome), got)
	assert.Equal(t, rome, got.Location())
}
