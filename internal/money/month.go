package money

import "time"

// MonthStart returns the first calendar day of t's month, normalized to UTC
// midnight. It is the canonical key for monthly rollovers.
func MonthStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// NextMonthStart returns the month-start immediately after monthStart.
func NextMonthStart(monthStart time.Time) time.Time {
	return MonthStart(monthStart.AddDate(0, 1, 0))
}

// PrevMonthStart returns the month-start immediately before monthStart.
// Ground: teacher's internal/util/month.go PreviousMonth, generalized from
// (year, month) ints to time.Time.
func PrevMonthStart(monthStart time.Time) time.Time {
	return MonthStart(monthStart.AddDate(0, -1, 0))
}

// DayOf normalizes t to a calendar-day boundary (UTC midnight), the unit
// transaction_date and statement_date are compared at.
func DayOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
