// Package schedule projects a semester selection onto a weekly grid of
// timed events.
package schedule

import (
	"log/slog"
	"strings"

	"github.com/arazimproject/dibit/internal/domain"
	"github.com/arazimproject/dibit/internal/timeutil"
)

// Event is one weekly block on the grid.
type Event struct {
	CourseID  string         `json:"courseId"`
	Group     string         `json:"group"`
	Day       domain.Weekday `json:"day"`
	StartHour int            `json:"startHour"`
	EndHour   int            `json:"endHour"`
	Title     string         `json:"title"`
	Subtitle  string         `json:"subtitle"`
	Color     string         `json:"color"`
}

// Span returns the event's hour range.
func (e Event) Span() timeutil.Span {
	return timeutil.Span{StartHour: e.StartHour, EndHour: e.EndHour}
}

// Week holds the events of each teaching day, Sunday first. Within a day
// events keep selection order; overlapping events are all present.
type Week [domain.TeachingDays][]Event

// Events returns every event of the week, day by day.
func (w Week) Events() []Event {
	var all []Event
	for _, day := range w {
		all = append(all, day...)
	}
	return all
}

// Len returns the number of events in the week.
func (w Week) Len() int {
	n := 0
	for _, day := range w {
		n += len(day)
	}
	return n
}

// Build derives the weekly grid from a semester selection. Courses or
// groups missing from the catalog, lessons with an unparsable time and
// lessons on a non-teaching day are skipped.
func Build(selected []domain.DibItCourse, catalog domain.SemesterCourses) Week {
	var week Week

	for _, sel := range selected {
		course, ok := catalog.Lookup(sel.ID)
		if !ok {
			continue
		}
		color := domain.ResolveColor(sel)

		for _, groupID := range sel.Groups {
			group, ok := course.Group(groupID)
			if !ok {
				continue
			}

			for _, lesson := range group.Lessons {
				day, ok := domain.ParseWeekday(lesson.Day)
				if !ok || int(day) >= domain.TeachingDays {
					slog.Debug("skipping lesson on unknown day",
						"course", sel.ID, "group", groupID, "day", lesson.Day)
					continue
				}
				span, ok := timeutil.ParseLessonTime(lesson.Time)
				if !ok {
					slog.Debug("skipping lesson with unparsable time",
						"course", sel.ID, "group", groupID, "time", lesson.Time)
					continue
				}

				week[day] = append(week[day], Event{
					CourseID:  sel.ID,
					Group:     groupID,
					Day:       day,
					StartHour: span.StartHour,
					EndHour:   span.EndHour,
					Title:     EventTitle(course.Name, lesson.Type),
					Subtitle:  eventSubtitle(lesson, group),
					Color:     color,
				})
			}
		}
	}

	return week
}

// EventTitle formats "<course name> (<lesson type>)".
func EventTitle(courseName, lessonType string) string {
	return courseName + " (" + lessonType + ")"
}

func eventSubtitle(lesson domain.Lesson, group domain.Group) string {
	parts := []string{lesson.Location()}
	if lecturer := group.LecturerName(); lecturer != "" {
		parts = append(parts, "("+lecturer+")")
	}
	return strings.TrimSpace(strings.Join(parts, " "))
}
