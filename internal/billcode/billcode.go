package billcode

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	stampLayout = "20060102150405"
	dayLayout   = "20060102"
)

// Format renders YYYYMMDDHHMMSS-N for the bill created at t with per-day
// sequence n.
func Format(t time.Time, n int) string {
	return fmt.Sprintf("%s-%d", t.Format(stampLayout), n)
}

// DayKey is the YYYYMMDD prefix the sequence is counted under.
func DayKey(t time.Time) string {
	return t.Format(dayLayout)
}

func Parse(code string, loc *time.Location) (time.Time, int, error) {
	stamp, seq, ok := strings.Cut(strings.TrimSpace(code), "-")
	if !ok || len(stamp) != len(stampLayout) {
		return time.Time{}, 0, fmt.Errorf("malformed bill code %q", code)
	}
	if loc == nil {
		loc = time.UTC
	}
	at, err := time.ParseInLocation(stampLayout, stamp, loc)
	if err != nil {
		return time.Time{}, 0, fmt.Errorf("malformed bill code %q: %w", code, err)
	}
	n, err := strconv.Atoi(seq)
	if err != nil || n < 1 {
		return time.Time{}, 0, fmt.Errorf("malformed bill code sequence %q", code)
	}
	return at, n, nil
}
