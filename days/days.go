package days

import (
	"fmt"
	"time"
)

const Layout = "2006-01-02"

// Truncate returns midnight UTC of the day t falls on (in UTC).
func Truncate(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func Parse(s string) (time.Time, error) {
	t, err := time.ParseInLocation(Layout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse date %q: %w", s, err)
	}
	return t, nil
}

func Format(t time.Time) string {
	return t.UTC().Format(Layout)
}

func Add(t time.Time, n int) time.Time {
	return Truncate(t).AddDate(0, 0, n)
}

// Range returns every day from start to end, both inclusive.
// An end before start yields an empty range.
func Range(start, end time.Time) []time.Time {
	start, end = Truncate(start), Truncate(end)
	if end.Before(start) {
		return []time.Time{}
	}
	res := make([]time.Time, 0, Between(start, end)+1)
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		res = append(res, d)
	}
	return res
}

// Between returns the number of whole days from a to b.
func Between(a, b time.Time) int {
	return int(Truncate(b).Sub(Truncate(a)).Hours() / 24)
}

// Following returns n consecutive days starting the day after t.
func Following(t time.Time, n int) []time.Time {
	if n <= 0 {
		return []time.Time{}
	}
	res := make([]time.Time, n)
	for i := range res {
		res[i] = Add(t, i+1)
	}
	return res
}

func IsMonthStart(t time.Time) bool {
	return t.UTC().Day() == 1
}

func IsMonthEnd(t time.Time) bool {
	return t.UTC().AddDate(0, 0, 1).Day() == 1
}

func IsWeekend(t time.Time) bool {
	wd := t.UTC().Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// WeekOfYear is the ISO 8601 week number.
func WeekOfYear(t time.Time) int {
	_, w := t.UTC().ISOWeek()
	return w
}

// DayOfWeek returns 0 for Monday through 6 for Sunday.
func DayOfWeek(t time.Time) int {
	return (int(t.UTC().Weekday()) + 6) % 7
}
