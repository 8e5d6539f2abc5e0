package schedule

import (
	"sort"

	"github.com/arazimproject/dibit/internal/domain"
)

// WeeklyHours returns the total number of scheduled hours in the week.
// Overlapping events each count in full.
func WeeklyHours(w Week) int {
	total := 0
	for _, e := range w.Events() {
		total += e.Span().Duration()
	}
	return total
}

// Overlap is a pair of events on the same day sharing at least one hour.
type Overlap struct {
	Day    domain.Weekday `json:"day"`
	First  Event          `json:"first"`
	Second Event          `json:"second"`
}

// Overlaps lists overlapping event pairs for display. The grid itself is
// never altered.
func Overlaps(w Week) []Overlap {
	var out []Overlap
	for day, events := range w {
		for i := 0; i < len(events); i++ {
			for j := i + 1; j < len(events); j++ {
				if events[i].Span().Overlaps(events[j].Span()) {
					out = append(out, Overlap{Day: domain.Weekday(day), First: events[i], Second: events[j]})
				}
			}
		}
	}
	return out
}

// HourRange returns the earliest start and latest end hour in the week,
// or ok == false when the week is empty.
func HourRange(w Week) (first, last int, ok bool) {
	events := w.Events()
	if len(events) == 0 {
		return 0, 0, false
	}
	starts := make([]int, 0, len(events))
	ends := make([]int, 0, len(events))
	for _, e := range events {
		starts = append(starts, e.StartHour)
		ends = append(ends, e.EndHour)
	}
	sort.Ints(starts)
	sort.Ints(ends)
	return starts[0], ends[len(ends)-1], true
}
