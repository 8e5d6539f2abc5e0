// Package calendar exports a semester selection as an iCalendar feed and
// as a printable weekly spreadsheet.
package calendar

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	ics "github.com/arran4/golang-ical"
	"github.com/google/uuid"

	"github.com/arazimproject/dibit/internal/domain"
	"github.com/arazimproject/dibit/internal/timeutil"
)

// DefaultTimezone is the institution's local timezone.
const DefaultTimezone = "Asia/Jerusalem"

const (
	productID       = "-//Arazim Project//Dib It//HE"
	localTimeFormat = "20060102T150405"
	untilFormat     = "20060102T150405Z"
)

var (
	// ErrInvalidWindow indicates unusable semester start/end dates.
	ErrInvalidWindow = errors.New("invalid semester window")
	// ErrExportFailed indicates the calendar could not be serialized.
	ErrExportFailed = errors.New("calendar export failed")
)

var uidNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://dibit.arazim-project.com/"))

// WindowSource resolves the teaching window of a semester.
type WindowSource interface {
	SemesterWindow(ctx context.Context, semester string) (domain.SemesterWindow, error)
}

// Exporter builds iCalendar payloads.
type Exporter struct {
	windows  WindowSource
	location *time.Location
	now      func() time.Time
}

// Option configures an Exporter.
type Option func(*Exporter)

// WithLocation sets the timezone lessons are scheduled in.
func WithLocation(loc *time.Location) Option {
	return func(e *Exporter) {
		e.location = loc
	}
}

// WithClock sets the clock used for DTSTAMP values.
func WithClock(now func() time.Time) Option {
	return func(e *Exporter) {
		e.now = now
	}
}

// NewExporter creates an exporter in the default timezone.
func NewExporter(windows WindowSource, opts ...Option) (*Exporter, error) {
	loc, err := time.LoadLocation(DefaultTimezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone: %w", err)
	}

	e := &Exporter{
		windows:  windows,
		location: loc,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Export renders the selected courses of a semester. The semester window
// is resolved before any event is built and a failure to resolve it fails
// the export. The payload is returned only when the whole calendar
// serialized successfully.
func (e *Exporter) Export(ctx context.Context, semester string, selected []domain.DibItCourse, catalog domain.SemesterCourses) ([]byte, error) {
	window, err := e.windows.SemesterWindow(ctx, semester)
	if err != nil {
		return nil, fmt.Errorf("resolve semester window: %w", err)
	}

	start, ok := timeutil.ParseISODate(window.StartDate, e.location)
	if !ok {
		return nil, fmt.Errorf("%w: start %q", ErrInvalidWindow, window.StartDate)
	}
	end, ok := timeutil.ParseISODate(window.EndDate, e.location)
	if !ok || end.Before(start) {
		return nil, fmt.Errorf("%w: end %q", ErrInvalidWindow, window.EndDate)
	}

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId(productID)
	cal.SetXWRCalName("Dib It " + semester)
	cal.SetXWRTimezone(e.location.String())

	b := builder{
		cal:      cal,
		semester: semester,
		location: e.location,
		stamp:    e.now(),
		start:    start,
		end:      end,
	}
	for _, sel := range selected {
		course, ok := catalog.Lookup(sel.ID)
		if !ok {
			continue
		}
		b.addExams(course)
		b.addLessons(course, sel.Groups)
	}

	var buf bytes.Buffer
	if err := cal.SerializeTo(&buf); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExportFailed, err)
	}
	return buf.Bytes(), nil
}

type builder struct {
	cal      *ics.Calendar
	semester string
	location *time.Location
	stamp    time.Time
	start    time.Time
	end      time.Time
}

func (b builder) uid(parts ...string) string {
	key := strings.Join(append([]string{b.semester}, parts...), "/")
	return uuid.NewSHA1(uidNamespace, []byte(key)).String() + "@dibit"
}

func (b builder) addExams(course domain.Course) {
	for i, exam := range course.Exams {
		date, ok := timeutil.ParseDateString(exam.Date)
		if !ok {
			continue
		}
		ev := b.cal.AddEvent(b.uid(course.ID, "exam", fmt.Sprint(i)))
		ev.SetDtStampTime(b.stamp)
		ev.SetAllDayStartAt(date)
		ev.SetAllDayEndAt(date.AddDate(0, 0, 1))
		ev.SetSummary(ExamTitle(course.Name, exam.Moed))
		ev.SetDescription(courseDescription(course.ID, ""))
	}
}

func (b builder) addLessons(course domain.Course, groups []string) {
	until := time.Date(b.end.Year(), b.end.Month(), b.end.Day(), 23, 59, 59, 0, b.location).UTC().Format(untilFormat)
	tzid := ics.WithTZID(b.location.String())

	for _, groupID := range groups {
		group, ok := course.Group(groupID)
		if !ok {
			continue
		}
		for i, lesson := range group.Lessons {
			day, ok := domain.ParseWeekday(lesson.Day)
			if !ok {
				continue
			}
			span, ok := timeutil.ParseLessonTime(lesson.Time)
			if !ok {
				continue
			}

			first := b.start.AddDate(0, 0, int(day))
			if first.After(b.end) {
				continue
			}
			begin := time.Date(first.Year(), first.Month(), first.Day(), span.StartHour, 0, 0, 0, b.location)
			finish := begin.Add(time.Duration(span.Duration()) * time.Hour)

			ev := b.cal.AddEvent(b.uid(course.ID, groupID, fmt.Sprint(i)))
			ev.SetDtStampTime(b.stamp)
			ev.SetProperty(ics.ComponentPropertyDtStart, begin.Format(localTimeFormat), tzid)
			ev.SetProperty(ics.ComponentPropertyDtEnd, finish.Format(localTimeFormat), tzid)
			ev.AddRrule("FREQ=WEEKLY;UNTIL=" + until)
			ev.SetSummary(course.Name + " (" + lesson.Type + ")")
			ev.SetDescription(courseDescription(course.ID, group.LecturerName()))
			if loc := lesson.Location(); loc != "" {
				ev.SetLocation(loc)
			}
		}
	}
}

// ExamTitle formats the summary of an exam event.
func ExamTitle(courseName, moed string) string {
	return courseName + " (מועד " + moed + ")"
}

func courseDescription(courseID, lecturer string) string {
	var lines []string
	if lecturer != "" {
		lines = append(lines, "מרצה: "+lecturer)
	}
	lines = append(lines, "מספר קורס: "+courseID)
	return strings.Join(lines, "\n")
}
