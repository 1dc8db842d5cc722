package period

import (
	"fmt"
	"strings"
	"time"
)

type Period string

const (
	Day   Period = "day"
	Week  Period = "week"
	Month Period = "month"
	Year  Period = "year"
	All   Period = "all"
)

// Parse maps a request value to a Period. An empty value means Day.
func Parse(raw string) (Period, error) {
	switch p := Period(strings.ToLower(strings.TrimSpace(raw))); p {
	case "":
		return Day, nil
	case Day, Week, Month, Year, All:
		return p, nil
	default:
		return "", fmt.Errorf("invalid period %q", raw)
	}
}

// Range returns the inclusive bounds of the period containing ref, in ref's
// location. Weeks run Sunday through Saturday. All yields zero times, which
// callers treat as unbounded.
func Range(p Period, ref time.Time) (time.Time, time.Time, error) {
	loc := ref.Location()
	y, m, d := ref.Date()

	var start, next time.Time
	switch p {
	case Day:
		start = time.Date(y, m, d, 0, 0, 0, 0, loc)
		next = start.AddDate(0, 0, 1)
	case Week:
		start = time.Date(y, m, d-int(ref.Weekday()), 0, 0, 0, 0, loc)
		next = start.AddDate(0, 0, 7)
	case Month:
		start = time.Date(y, m, 1, 0, 0, 0, 0, loc)
		next = start.AddDate(0, 1, 0)
	case Year:
		start = time.Date(y, time.January, 1, 0, 0, 0, 0, loc)
		next = start.AddDate(1, 0, 0)
	case All:
		return time.Time{}, time.Time{}, nil
	default:
		return time.Time{}, time.Time{}, fmt.Errorf("invalid period %q", p)
	}
	return start, next.Add(-time.Nanosecond), nil
}

// Contains reports whether t falls inside [start, end]; zero bounds are open.
func Contains(start, end, t time.Time) bool {
	if !start.IsZero() && t.Before(start) {
		return false
	}
	if !end.IsZero() && t.After(end) {
		return false
	}
	return true
}
