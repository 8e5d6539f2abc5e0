package calendar

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	ics "github.com/arran4/golang-ical"

	"github.com/arazimproject/dibit/internal/domain"
)

type fakeWindows struct {
	window domain.SemesterWindow
	err    error
	calls  int
}

func (f *fakeWindows) SemesterWindow(ctx context.Context, semester string) (domain.SemesterWindow, error) {
	f.calls++
	return f.window, f.err
}

func fixedClock() time.Time {
	return time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
}

func newTestExporter(t *testing.T, windows WindowSource) *Exporter {
	t.Helper()
	e, err := NewExporter(windows, WithClock(fixedClock))
	if err != nil {
		t.Fatalf("NewExporter() error = %v", err)
	}
	return e
}

func strPtr(s string) *string { return &s }

func singleLessonCatalog() domain.SemesterCourses {
	return domain.SemesterCourses{
		"03661111": {
			ID:   "03661111",
			Name: "Algebra",
			Groups: []domain.Group{{
				Group:    "01",
				Lecturer: strPtr("Cohen"),
				Lessons: []domain.Lesson{
					{Day: "א", Time: "10:00-12:00", Building: "Schreiber", Room: "006", Type: "שיעור"},
					{Day: "ב", Time: "", Type: "שיעור"},
				},
			}},
		},
	}
}

// 2023-12-31 is a Sunday; the window spans eleven weeks.
var testWindow = domain.SemesterWindow{StartDate: "2023-12-31", EndDate: "2024-03-15"}

func parse(t *testing.T, payload []byte) *ics.Calendar {
	t.Helper()
	cal, err := ics.ParseCalendar(bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("ParseCalendar() error = %v", err)
	}
	return cal
}

func TestExportWeeklyLesson(t *testing.T) {
	e := newTestExporter(t, &fakeWindows{window: testWindow})
	selected := []domain.DibItCourse{{ID: "03661111", Groups: []string{"01"}}}

	payload, err := e.Export(context.Background(), "2024a", selected, singleLessonCatalog())
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}

	events := parse(t, payload).Events()
	if len(events) != 1 {
		t.Fatalf("events = %d; want 1", len(events))
	}
	ev := events[0]

	start, err := ev.GetStartAt()
	if err != nil {
		t.Fatalf("GetStartAt() error = %v", err)
	}
	end, err := ev.GetEndAt()
	if err != nil {
		t.Fatalf("GetEndAt() error = %v", err)
	}
	if got := end.Sub(start); got != 2*time.Hour {
		t.Errorf("duration = %v; want 2h", got)
	}
	if start.Weekday() != time.Sunday || start.Hour() != 10 {
		t.Errorf("start = %v; want Sunday 10:00 local", start)
	}

	rrule := ev.GetProperty(ics.ComponentPropertyRrule)
	if rrule == nil {
		t.Fatal("RRULE missing")
	}
	if !strings.HasPrefix(rrule.Value, "FREQ=WEEKLY;UNTIL=20240315T") {
		t.Errorf("RRULE = %q; want weekly until 2024-03-15", rrule.Value)
	}

	dtstart := ev.GetProperty(ics.ComponentPropertyDtStart)
	if tz := dtstart.ICalParameters["TZID"]; len(tz) != 1 || tz[0] != DefaultTimezone {
		t.Errorf("DTSTART TZID = %v; want %s", tz, DefaultTimezone)
	}

	if summary := ev.GetProperty(ics.ComponentPropertySummary); summary == nil || summary.Value != "Algebra (שיעור)" {
		t.Errorf("SUMMARY = %+v", summary)
	}
	if loc := ev.GetProperty(ics.ComponentPropertyLocation); loc == nil || loc.Value != "Schreiber 006" {
		t.Errorf("LOCATION = %+v", loc)
	}
	desc := ev.GetProperty(ics.ComponentPropertyDescription)
	if desc == nil || !strings.Contains(desc.Value, "Cohen") || !strings.Contains(desc.Value, "03661111") {
		t.Errorf("DESCRIPTION = %+v; want lecturer and course ID", desc)
	}
}

func TestExportExams(t *testing.T) {
	catalog := domain.SemesterCourses{
		"A": {ID: "A", Name: "Algebra", Exams: []domain.Exam{
			{Date: "10/02/2024", Moed: "א"},
			{Date: "", Moed: "ב"},
		}},
	}
	e := newTestExporter(t, &fakeWindows{window: testWindow})

	payload, err := e.Export(context.Background(), "2024a", []domain.DibItCourse{{ID: "A"}}, catalog)
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}

	events := parse(t, payload).Events()
	if len(events) != 1 {
		t.Fatalf("events = %d; want 1 dated exam", len(events))
	}
	if summary := events[0].GetProperty(ics.ComponentPropertySummary); summary.Value != "Algebra (מועד א)" {
		t.Errorf("SUMMARY = %q", summary.Value)
	}
	dtstart := events[0].GetProperty(ics.ComponentPropertyDtStart)
	if dtstart.Value != "20240210" {
		t.Errorf("DTSTART = %q; want all-day 20240210", dtstart.Value)
	}
}

func TestExportIsDeterministic(t *testing.T) {
	e := newTestExporter(t, &fakeWindows{window: testWindow})
	selected := []domain.DibItCourse{{ID: "03661111", Groups: []string{"01"}}}

	a, err := e.Export(context.Background(), "2024a", selected, singleLessonCatalog())
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	b, err := e.Export(context.Background(), "2024a", selected, singleLessonCatalog())
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Error("Export() output differs between identical calls")
	}
}

func TestExportWindowFailureRejects(t *testing.T) {
	fetchErr := errors.New("metadata offline")
	e := newTestExporter(t, &fakeWindows{err: fetchErr})

	payload, err := e.Export(context.Background(), "2024a", []domain.DibItCourse{{ID: "03661111", Groups: []string{"01"}}}, singleLessonCatalog())
	if !errors.Is(err, fetchErr) {
		t.Errorf("Export() error = %v; want wrapped fetch error", err)
	}
	if payload != nil {
		t.Error("Export() returned a partial payload")
	}
}

func TestExportInvalidWindow(t *testing.T) {
	e := newTestExporter(t, &fakeWindows{window: domain.SemesterWindow{StartDate: "2024-03-15", EndDate: "2023-12-31"}})

	_, err := e.Export(context.Background(), "2024a", nil, nil)
	if !errors.Is(err, ErrInvalidWindow) {
		t.Errorf("Export() error = %v; want ErrInvalidWindow", err)
	}
}

func TestExportSkipsStaleSelections(t *testing.T) {
	e := newTestExporter(t, &fakeWindows{window: testWindow})
	selected := []domain.DibItCourse{
		{ID: "ghost", Groups: []string{"01"}},
		{ID: "03661111", Groups: []string{"99"}},
	}

	payload, err := e.Export(context.Background(), "2024a", selected, singleLessonCatalog())
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if n := len(parse(t, payload).Events()); n != 0 {
		t.Errorf("events = %d; want 0", n)
	}
}
