package core

import (
	"fmt"
	"time"
)

// YearMonth identifies a calendar month. Its text form is "YYYY-MM", zero
// padded, so lexicographic and chronological order agree.
type YearMonth struct {
	Year  int
	Month time.Month
}

const yearMonthLayout = "2006-01"

// NewYearMonth builds a YearMonth, normalising months outside 1..12.
func NewYearMonth(year int, month time.Month) YearMonth {
	t := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return YearMonth{Year: t.Year(), Month: t.Month()}
}

// YearMonthOf returns the month containing t, in t's location.
func YearMonthOf(t time.Time) YearMonth {
	return YearMonth{Year: t.Year(), Month: t.Month()}
}

// ParseYearMonth parses the "YYYY-MM" form.
func ParseYearMonth(s string) (YearMonth, error) {
	t, err := time.Parse(yearMonthLayout, s)
	if err != nil || len(s) != len(yearMonthLayout) {
		return YearMonth{}, &ValidationError{Field: "month", Reason: fmt.Sprintf("%q is not a YYYY-MM month", s)}
	}
	return YearMonth{Year: t.Year(), Month: t.Month()}, nil
}

func (m YearMonth) String() string {
	if m.IsZero() {
		return ""
	}
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month))
}

func (m YearMonth) IsZero() bool {
	return m.Year == 0 && m.Month == 0
}

// Compare returns -1, 0 or +1.
func (m YearMonth) Compare(o YearMonth) int {
	switch {
	case m.Year < o.Year:
		return -1
	case m.Year > o.Year:
		return 1
	case m.Month < o.Month:
		return -1
	case m.Month > o.Month:
		return 1
	}
	return 0
}

func (m YearMonth) Before(o YearMonth) bool { return m.Compare(o) < 0 }
func (m YearMonth) After(o YearMonth) bool  { return m.Compare(o) > 0 }

// AddMonths moves n months forward (or back for negative n).
func (m YearMonth) AddMonths(n int) YearMonth {
	return NewYearMonth(m.Year, m.Month+time.Month(n))
}

// DaysIn returns the number of days in the month.
func (m YearMonth) DaysIn() int {
	return time.Date(m.Year, m.Month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// Start is the first instant of the month in loc.
func (m YearMonth) Start(loc *time.Location) time.Time {
	return time.Date(m.Year, m.Month, 1, 0, 0, 0, 0, loc)
}

// End is the last representable instant of the month in loc.
func (m YearMonth) End(loc *time.Location) time.Time {
	return time.Date(m.Year, m.Month+1, 1, 0, 0, 0, 0, loc).Add(-time.Nanosecond)
}

func (m YearMonth) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *YearMonth) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*m = YearMonth{}
		return nil
	}
	parsed, err := ParseYearMonth(string(b))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// OccurrenceDate projects anchor onto month: the anchor's day of month,
// clamped to the month's last day, at the anchor's time of day and location.
func OccurrenceDate(anchor time.Time, month YearMonth) time.Time {
	day := min(anchor.Day(), month.DaysIn())
	return time.Date(month.Year, month.Month, day,
		anchor.Hour(), anchor.Minute(), anchor.Second(), anchor.Nanosecond(), anchor.Location())
}
