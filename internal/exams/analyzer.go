// Package exams builds the cross-course exam timeline of a semester and
// flags days with more than one exam.
package exams

import (
	"sort"
	"strconv"
	"time"

	"github.com/arazimproject/dibit/internal/domain"
	"github.com/arazimproject/dibit/internal/timeutil"
)

// Entry is one dated exam of a selected course.
type Entry struct {
	CourseID   string    `json:"courseId"`
	CourseName string    `json:"courseName"`
	Color      string    `json:"color"`
	Date       time.Time `json:"date"`
	Hour       string    `json:"hour,omitempty"`
	Moed       string    `json:"moed"`
	Type       string    `json:"type,omitempty"`
}

// DayKey identifies the calendar day of the exam.
func (e Entry) DayKey() string {
	return timeutil.DayKey(e.Date)
}

// Timeline is the sorted exam list of a semester with its per-day index.
type Timeline struct {
	Entries []Entry            `json:"entries"`
	ByDay   map[string][]Entry `json:"byDay"`
}

// Gap annotates an entry with its distance from the previous one. The
// first entry carries its date label instead.
type Gap struct {
	Entry     Entry  `json:"entry"`
	First     bool   `json:"first"`
	Days      int    `json:"days"`
	Label     string `json:"label"`
	Collision bool   `json:"collision"`
}

// Collision lists the exams sharing a calendar day.
type Collision struct {
	Day     string  `json:"day"`
	Entries []Entry `json:"entries"`
}

// Analyze collects every dated exam of the selected courses, sorts the
// result by date and indexes it by day. Courses missing from the catalog
// and exams without a parseable date are skipped.
func Analyze(selected []domain.DibItCourse, catalog domain.SemesterCourses) Timeline {
	entries := collect(selected, catalog)
	return newTimeline(entries)
}

func collect(selected []domain.DibItCourse, catalog domain.SemesterCourses) []Entry {
	var entries []Entry
	for _, sel := range selected {
		course, ok := catalog.Lookup(sel.ID)
		if !ok {
			continue
		}
		color := domain.ResolveColor(sel)
		for _, exam := range course.Exams {
			date, ok := timeutil.ParseDateString(exam.Date)
			if !ok {
				continue
			}
			entries = append(entries, Entry{
				CourseID:   sel.ID,
				CourseName: course.Name,
				Color:      color,
				Date:       date,
				Hour:       exam.Hour,
				Moed:       exam.Moed,
				Type:       exam.Type,
			})
		}
	}
	return entries
}

func newTimeline(entries []Entry) Timeline {
	// Sort key is the ISO date, stable so same-day entries keep their
	// collection order.
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].DayKey() < entries[j].DayKey()
	})

	byDay := make(map[string][]Entry)
	for _, e := range entries {
		byDay[e.DayKey()] = append(byDay[e.DayKey()], e)
	}

	if entries == nil {
		entries = []Entry{}
	}
	return Timeline{Entries: entries, ByDay: byDay}
}

// Len returns the number of exams.
func (t Timeline) Len() int {
	return len(t.Entries)
}

// IsCollision reports whether more than one exam falls on the entry's day.
func (t Timeline) IsCollision(e Entry) bool {
	return len(t.ByDay[e.DayKey()]) > 1
}

// Collisions returns the days holding more than one exam, in date order.
func (t Timeline) Collisions() []Collision {
	var out []Collision
	for day, entries := range t.ByDay {
		if len(entries) > 1 {
			out = append(out, Collision{Day: day, Entries: entries})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Day < out[j].Day })
	return out
}

// Gaps returns the day-gap strip: the first entry is labelled with its
// "D/M" date, each later entry with the days since the previous exam.
func (t Timeline) Gaps() []Gap {
	gaps := make([]Gap, 0, len(t.Entries))
	for i, e := range t.Entries {
		g := Gap{Entry: e, Collision: t.IsCollision(e)}
		if i == 0 {
			g.First = true
			g.Label = timeutil.FormatDayMonth(e.Date)
		} else {
			g.Days = timeutil.DaysBetween(t.Entries[i-1].Date, e.Date)
			g.Label = strconv.Itoa(g.Days)
		}
		gaps = append(gaps, g)
	}
	return gaps
}

// FirstPerCourse keeps only the earliest exam of each course.
func (t Timeline) FirstPerCourse() Timeline {
	seen := make(map[string]struct{})
	var kept []Entry
	for _, e := range t.Entries {
		if _, ok := seen[e.CourseID]; ok {
			continue
		}
		seen[e.CourseID] = struct{}{}
		kept = append(kept, e)
	}
	return newTimeline(kept)
}
