package core

import (
	"strings"
	"time"
)

// MonthKey is a stable YYYY-MM identifier for a calendar month.
// Lexicographic order on the zero-padded string coincides with
// chronological order, so keys sort with plain string comparison.
type MonthKey string

// MonthKeyOf maps a date to its month key. Two dates yield the same
// key iff they share calendar year and month.
func MonthKeyOf(d Date) MonthKey {
	return MonthKey(d.Format("2006-01"))
}

// ParseMonthKey validates a YYYY-MM string.
func ParseMonthKey(s string) (MonthKey, error) {
	t, err := time.Parse("2006-01", strings.TrimSpace(s))
	if err != nil {
		return "", ErrInvalidDate
	}
	return MonthKey(t.Format("2006-01")), nil
}

// Before reports whether m is strictly earlier than other.
func (m MonthKey) Before(other MonthKey) bool {
	return m < other
}

func (m MonthKey) String() string {
	return string(m)
}
