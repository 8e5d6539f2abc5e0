// Package timeutil parses the loosely formatted time and date strings found
// in the course catalog.
//
// Parsing never fails loudly: every parser reports whether it produced a
// value and callers skip the entry when it did not.
package timeutil

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// Day is the length of a calendar day used for gap arithmetic.
const Day = 24 * time.Hour

// Span is a lesson time range truncated to whole hours.
type Span struct {
	StartHour int `json:"startHour"`
	EndHour   int `json:"endHour"`
}

// Duration returns the length of the span in hours.
func (s Span) Duration() int {
	return s.EndHour - s.StartHour
}

// Overlaps reports whether two spans share at least one hour.
func (s Span) Overlaps(other Span) bool {
	return s.StartHour < other.EndHour && other.StartHour < s.EndHour
}

// ParseLessonTime parses a "HH:MM-HH:MM" range. Only the hour component is
// kept, so "10:30-12:00" yields 10-12. Minutes must be numeric when present,
// hours must lie in 0-24 and the range must not end before it starts.
func ParseLessonTime(s string) (Span, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Span{}, false
	}

	parts := strings.Split(s, "-")
	if len(parts) != 2 {
		return Span{}, false
	}

	start, ok := parseHour(parts[0])
	if !ok {
		return Span{}, false
	}
	end, ok := parseHour(parts[1])
	if !ok || end < start {
		return Span{}, false
	}

	return Span{StartHour: start, EndHour: end}, true
}

func parseHour(s string) (int, bool) {
	hour, minutes, hasMinutes := strings.Cut(strings.TrimSpace(s), ":")
	h, ok := parseDigits(hour)
	if !ok || h > 24 {
		return 0, false
	}
	if hasMinutes {
		if m, ok := parseDigits(minutes); !ok || m > 59 {
			return 0, false
		}
	}
	return h, true
}

// parseDigits accepts one or two ASCII digits.
func parseDigits(s string) (int, bool) {
	if s == "" || len(s) > 2 {
		return 0, false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, false
		}
	}
	n, _ := strconv.Atoi(s)
	return n, true
}

// ParseDateString parses a "DD/MM/YYYY" exam date into midnight UTC.
// Out of range days and months roll over into the following month or year
// the same way time.Date normalizes them.
func ParseDateString(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	parts := strings.Split(s, "/")
	if len(parts) != 3 {
		return time.Time{}, false
	}

	var nums [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return time.Time{}, false
		}
		nums[i] = n
	}

	day, month, year := nums[0], nums[1], nums[2]
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC), true
}

// ParseISODate parses the date part of an ISO 8601 value such as
// "2024-03-15" or "2024-03-15T00:00:00.000Z" into midnight in loc.
func ParseISODate(s string, loc *time.Location) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if len(s) < len("2006-01-02") {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation("2006-01-02", s[:10], loc)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// DayKey identifies the calendar day of t, used to group exams.
func DayKey(t time.Time) string {
	return t.Format("2006-01-02")
}

// DaysBetween returns the number of days from a to b, rounded to the
// nearest integer.
func DaysBetween(a, b time.Time) int {
	return int(math.Round(float64(b.Sub(a)) / float64(Day)))
}

// FormatDayMonth renders t as "D/M" without zero padding.
func FormatDayMonth(t time.Time) string {
	return strconv.Itoa(t.Day()) + "/" + strconv.Itoa(int(t.Month()))
}

// Number is the set of types ClosestValue can search.
type Number interface {
	~int | ~int32 | ~int64 | ~float64
}

// ClosestValue returns the element of sorted (ascending) nearest to target.
// Targets outside the range clamp to the first or last element and a tie
// between two neighbours resolves to the lower one. ok is false when sorted
// is empty.
func ClosestValue[T Number](target T, sorted []T) (value T, ok bool) {
	if len(sorted) == 0 {
		return value, false
	}
	if target <= sorted[0] {
		return sorted[0], true
	}
	last := sorted[len(sorted)-1]
	if target >= last {
		return last, true
	}

	low, high := 0, len(sorted)-1
	for high > low+1 {
		middle := (low + high) / 2
		if target >= sorted[middle] {
			low = middle
		} else {
			high = middle
		}
	}

	if distance(sorted[low], target) <= distance(sorted[high], target) {
		return sorted[low], true
	}
	return sorted[high], true
}

func distance[T Number](a, b T) T {
	if a > b {
		return a - b
	}
	return b - a
}
