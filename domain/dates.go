package domain

import (
	"strings"
	"time"
)

// DateLayout is the ISO date form used for end dates, exclusions and week
// starts.
const DateLayout = "2006-01-02"

// ParseDate parses a trimmed ISO date. ok is false for empty or malformed
// input.
func ParseDate(value string) (time.Time, bool) {
	raw := strings.TrimSpace(value)
	if raw == "" {
		return time.Time{}, false
	}
	d, err := time.Parse(DateLayout, raw)
	if err != nil {
		return time.Time{}, false
	}
	return d, true
}

// FormatDate renders t as an ISO date.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// WeekStart returns the Monday of the ISO week containing day. The weekday is
// taken from day's calendar date in its own location, so early-morning times
// in positive-offset zones stay in their local week.
func WeekStart(day time.Time) time.Time {
	y, m, d := day.Date()
	day = time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}

// WeekStartOffset returns the Monday weekOffset weeks after the week
// containing day.
func WeekStartOffset(day time.Time, weekOffset int) time.Time {
	return WeekStart(day).AddDate(0, 0, weekOffset*7)
}

// WeekdayDate returns the calendar date of the given weekday column within
// the week starting at weekStart. ok is false for non-weekday columns.
func WeekdayDate(weekStart time.Time, weekday string) (time.Time, bool) {
	idx, ok := WeekdayIndex[weekday]
	if !ok {
		return time.Time{}, false
	}
	return weekStart.AddDate(0, 0, idx), true
}

// WeekdayKeyFor maps a calendar date to its weekday column key.
func WeekdayKeyFor(day time.Time) string {
	return WeekdayColumns[(int(day.Weekday())+6)%7]
}

// NowStamp returns the RFC3339 UTC timestamp used for created_at fields.
func NowStamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}
